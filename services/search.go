package services

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"cartas-scraper/models"
	"cartas-scraper/storage"
	"cartas-scraper/utils"
)

// suggestionCap bounds each side rail of the tolerance fallback.
const suggestionCap = 5

// SearchEngine filters and paginates stored listings. When the exact filter
// matches nothing and the caller constrained valorCarta, it widens the band
// by the tolerance and offers the nearest listings below and above as
// suggestions next to the empty primary result.
type SearchEngine struct {
	store  storage.Store
	logger *utils.Logger

	DefaultPageSize  int
	DefaultTolerance decimal.Decimal
}

// NewSearchEngine creates a SearchEngine over the given store.
func NewSearchEngine(store storage.Store, defaultPageSize int, defaultTolerance decimal.Decimal, logger *utils.Logger) *SearchEngine {
	if defaultPageSize < 1 {
		defaultPageSize = 20
	}
	return &SearchEngine{
		store:            store,
		logger:           logger,
		DefaultPageSize:  defaultPageSize,
		DefaultTolerance: defaultTolerance,
	}
}

// Search runs the conjunctive filter, paginates, and arms the tolerance
// fallback on an empty result.
func (e *SearchEngine) Search(filter models.SearchFilter) (*models.SearchResult, error) {
	all, err := e.store.FetchAll()
	if err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = e.DefaultPageSize
	}

	matched := make([]*models.Listing, 0, len(all))
	porTipo := make(map[models.Tipo]int)
	for _, l := range all {
		if matches(l, filter, false) {
			matched = append(matched, l)
			porTipo[l.Tipo]++
		}
	}

	total := len(matched)
	result := &models.SearchResult{
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
		PorTipo:    porTipo,
	}

	start := (page - 1) * pageSize
	if start < total {
		end := start + pageSize
		if end > total {
			end = total
		}
		result.Listings = matched[start:end]
	} else {
		result.Listings = []*models.Listing{}
	}

	if total == 0 && filter.HasValorCartaBand() {
		e.suggest(all, filter, result)
	}

	return result, nil
}

// suggest fills the below/above rails: listings that satisfy every filter
// except the value band, within tolerance of it, nearest first.
func (e *SearchEngine) suggest(all []*models.Listing, filter models.SearchFilter, result *models.SearchResult) {
	tol := filter.Tolerancia
	if tol.IsZero() {
		tol = e.DefaultTolerance
	}

	min := filter.ValorCartaMin
	if min.IsZero() {
		min = filter.ValorCartaMax
	}
	max := filter.ValorCartaMax
	if max.IsZero() {
		max = filter.ValorCartaMin
	}

	var below, above []*models.Listing
	for _, l := range all {
		if !matches(l, filter, true) {
			continue
		}
		switch {
		case l.ValorCarta.LessThan(min) && l.ValorCarta.GreaterThanOrEqual(min.Sub(tol)):
			below = append(below, l)
		case l.ValorCarta.GreaterThan(max) && l.ValorCarta.LessThanOrEqual(max.Add(tol)):
			above = append(above, l)
		}
	}

	// Closest to the requested band first on both rails.
	sort.Slice(below, func(i, j int) bool {
		return below[i].ValorCarta.GreaterThan(below[j].ValorCarta)
	})
	sort.Slice(above, func(i, j int) bool {
		return above[i].ValorCarta.LessThan(above[j].ValorCarta)
	})

	if len(below) > suggestionCap {
		below = below[:suggestionCap]
	}
	if len(above) > suggestionCap {
		above = above[:suggestionCap]
	}
	result.Abaixo = below
	result.Acima = above

	e.logger.Debug("[search] Tolerance fallback armed — %d below, %d above (tol %s)",
		len(below), len(above), tol)
}

// matches applies the conjunctive filter. With ignoreValorBand the
// valorCarta min/max bounds are skipped; every other dimension still holds.
func matches(l *models.Listing, f models.SearchFilter, ignoreValorBand bool) bool {
	if f.Tipo != "" && !strings.EqualFold(f.Tipo, "todos") && !strings.EqualFold(f.Tipo, string(l.Tipo)) {
		return false
	}
	if !ignoreValorBand {
		if !f.ValorCartaMin.IsZero() && l.ValorCarta.LessThan(f.ValorCartaMin) {
			return false
		}
		if !f.ValorCartaMax.IsZero() && l.ValorCarta.GreaterThan(f.ValorCartaMax) {
			return false
		}
	}
	if !f.ValorEntradaMax.IsZero() && l.ValorEntrada.GreaterThan(f.ValorEntradaMax) {
		return false
	}
	if !f.ValorParcelaMax.IsZero() && l.ValorParcela.GreaterThan(f.ValorParcelaMax) {
		return false
	}
	if f.ParcelasMax > 0 && l.Parcelas > f.ParcelasMax {
		return false
	}
	if f.Administradora != "" && Fold(f.Administradora) != Fold(l.Administradora) {
		return false
	}
	if f.Vendedor != "" && !strings.EqualFold(f.Vendedor, l.Vendedor) {
		return false
	}
	return true
}
