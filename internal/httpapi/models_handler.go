package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"provider_gateway/internal/cache"
	"provider_gateway/internal/catalog"
	"provider_gateway/internal/utils"
)

// modelView is one catalog entry as the caller sees it. Active means the
// caller has a credential for the entry's provider, so it is computed per
// caller at read time.
type modelView struct {
	ModelName string         `json:"model_name"`
	Provider  string         `json:"provider"`
	Active    bool           `json:"active"`
	Details   map[string]any `json:"details,omitempty"`
}

type modelListResponse struct {
	Count              int         `json:"count"`
	Models             []modelView `json:"models"`
	AvailableProviders []string    `json:"available_providers"`
	Offset             int         `json:"offset"`
	Limit              int         `json:"limit"`
}

// handleListModels serves the filtered, paginated model catalog. Responses
// are cached per caller and exact filter combination; credential mutations
// invalidate the caller's prefix.
func (d *Dependencies) handleListModels(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}
	ctx := r.Context()

	query := r.URL.Query()
	filters := catalog.ListFilters{
		Name:     query.Get("name"),
		Provider: query.Get("provider"),
	}
	var err error
	if filters.Limit, err = queryInt(query.Get("limit"), 0); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filters.Offset, err = queryInt(query.Get("offset"), 0); err != nil || filters.Offset < 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	key := cache.Key("models", caller.ID,
		filters.Name, filters.Provider,
		strconv.Itoa(filters.Limit), strconv.Itoa(filters.Offset))

	body, err := d.Cache.GetOrCompute(ctx, key, d.modelListTTL, func(ctx context.Context) ([]byte, error) {
		return d.renderModelList(ctx, caller.ID, filters)
	})
	if err != nil {
		d.Logger.Error("failed to list models", "owner", caller.ID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (d *Dependencies) renderModelList(ctx context.Context, ownerID string, filters catalog.ListFilters) ([]byte, error) {
	entries, total := d.Catalog.Snapshot().List(filters)

	creds, err := d.Credentials.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	available := make(map[string]bool, len(creds))
	for _, cred := range creds {
		available[string(cred.Provider)] = true
	}

	views := make([]modelView, 0, len(entries))
	for _, e := range entries {
		views = append(views, modelView{
			ModelName: e.Name,
			Provider:  string(e.Provider),
			Active:    available[string(e.Provider)],
			Details:   e.Details,
		})
	}

	providers := make([]string, 0, len(available))
	for p := range available {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	return json.Marshal(modelListResponse{
		Count:              total,
		Models:             views,
		AvailableProviders: providers,
		Offset:             filters.Offset,
		Limit:              filters.Limit,
	})
}

func queryInt(raw string, defaultValue int) (int, error) {
	if raw == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(raw)
}
