package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const tokenTTL = 15 * time.Minute

// GenerateJWT creates a short-lived playground token carrying the caller
// identity.
func GenerateJWT(callerID, callerName string, secret []byte) (string, int64, error) {
	expirationTime := time.Now().Add(tokenTTL).Unix()
	claims := jwt.MapClaims{
		"sub":  callerID,
		"name": callerName,
		"exp":  expirationTime,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", 0, err
	}
	return signedToken, expirationTime, nil
}

// DecodeJWT verifies the token and extracts the caller identity.
func DecodeJWT(tokenString string, secret []byte) (callerID, callerName string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", errors.New("invalid token")
	}

	callerID, _ = claims["sub"].(string)
	callerName, _ = claims["name"].(string)
	if callerID == "" {
		return "", "", errors.New("token has no subject")
	}
	return callerID, callerName, nil
}
