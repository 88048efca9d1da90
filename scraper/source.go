package scraper

import (
	"errors"
	"strings"

	"cartas-scraper/models"
)

// ErrUnknownSource is returned when a caller asks for a marketplace that is
// not in the registry.
var ErrUnknownSource = errors.New("unknown source")

// Source is the capability every marketplace connector implements. Scrape
// returns the raw listings currently advertised, an empty slice when the
// marketplace legitimately has none, or an error when the site is
// unreachable or its payload cannot be parsed. Implementations hold no
// shared mutable state.
type Source interface {
	Name() string
	SourceURL() string
	Scrape() ([]*models.RawListing, error)
}

// Registry is the static list of marketplace sources.
type Registry struct {
	sources []Source
}

// NewRegistry builds a registry over a fixed source list.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{sources: sources}
}

// All returns the registered sources in registration order.
func (r *Registry) All() []Source {
	return r.sources
}

// Names returns the registered source names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	return names
}

// ByName resolves one source, case-insensitively.
func (r *Registry) ByName(name string) (Source, error) {
	for _, s := range r.sources {
		if strings.EqualFold(s.Name(), name) {
			return s, nil
		}
	}
	return nil, ErrUnknownSource
}
