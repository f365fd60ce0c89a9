// Package catalog populates the municipality catalog at process bring-up.
// The remote source serves a JSON array of municipality names; any failure
// to reach it degrades to a built-in list and is never fatal.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/zeromonos/waste-pickup-booking/internal/booking"
	"github.com/zeromonos/waste-pickup-booking/internal/config"
)

type Source string

const (
	SourceFetched  Source = "fetched"
	SourceFallback Source = "fallback"
)

// SeedResult describes one import run: where the names came from and how
// many were new versus already present.
type SeedResult struct {
	Source  Source
	Created int
	Skipped int
	Reason  string // why the fallback was used, empty when fetched
}

type Importer struct {
	store  booking.Store
	cache  booking.CatalogCache
	client *http.Client
	url    string
}

func NewImporter(store booking.Store, cache booking.CatalogCache, cfg config.Config) *Importer {
	return &Importer{
		store:  store,
		cache:  cache,
		client: &http.Client{Timeout: cfg.MunicipalitiesTimeout},
		url:    cfg.MunicipalitiesURL,
	}
}

// Run fetches the municipality names and seeds any that are missing. Names
// already present are skipped, not duplicated and not errors. The returned
// error covers store failures only; fetch failures are absorbed into the
// fallback path.
func (i *Importer) Run(ctx context.Context) (SeedResult, error) {
	names, reason := i.fetch(ctx)

	result := SeedResult{Source: SourceFetched}
	if reason != "" {
		log.Printf("municipality fetch unavailable (%s), seeding fallback list", reason)
		names = fallbackNames
		result.Source = SourceFallback
		result.Reason = reason
	}

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		_, err := i.store.FindMunicipalityByName(ctx, name)
		switch {
		case err == nil:
			result.Skipped++
		case errors.Is(err, booking.ErrMunicipalityNotFound):
			if _, err := i.store.CreateMunicipality(ctx, name); err != nil {
				return result, fmt.Errorf("create municipality %q: %w", name, err)
			}
			result.Created++
		default:
			return result, fmt.Errorf("find municipality %q: %w", name, err)
		}
	}

	i.refreshCache(ctx)

	return result, nil
}

// fetch returns the remote name list, or a non-empty reason string when the
// fallback must be used instead.
func (i *Importer) fetch(ctx context.Context) ([]string, string) {
	if i.url == "" {
		return nil, "no source url configured"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.url, nil)
	if err != nil {
		return nil, fmt.Sprintf("build request: %v", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Sprintf("fetch: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, fmt.Sprintf("decode response: %v", err)
	}

	if len(names) == 0 {
		return nil, "empty response"
	}

	return names, ""
}

// refreshCache rewrites the cached name list after seeding. Best effort.
func (i *Importer) refreshCache(ctx context.Context) {
	if i.cache == nil {
		return
	}

	munis, err := i.store.ListMunicipalities(ctx)
	if err != nil {
		log.Printf("catalog cache refresh: list municipalities: %v", err)
		return
	}

	names := make([]string, 0, len(munis))
	for _, m := range munis {
		names = append(names, m.Name)
	}

	if err := i.cache.SetNames(ctx, names); err != nil {
		log.Printf("catalog cache refresh failed: %v", err)
	}
}
