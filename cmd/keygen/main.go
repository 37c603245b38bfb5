package main

import (
	"flag"
	"fmt"
	"log"

	"provider_gateway/internal/vault"
)

// keygen prints a fresh base64 AES key suitable for VAULT_KEY.
func main() {
	size := flag.Int("size", 32, "key size in bytes (16, 24 or 32)")
	flag.Parse()

	key, err := vault.GenerateKey(*size)
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}

	fmt.Println(key)
}
