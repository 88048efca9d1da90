package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cartas-scraper/models"
	"cartas-scraper/storage"
)

func seedStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	s := storage.NewMemoryStore()
	now := time.Now()

	rows := []struct {
		vendedor string
		admin    string
		tipo     models.Tipo
		carta    float64
		entrada  float64
		parcela  float64
		parcelas int
	}{
		{"vpcartas", "Bradesco", models.TipoVeiculo, 30000, 5000, 450, 48},
		{"vpcartas", "Itaú", models.TipoVeiculo, 45000, 8000, 600, 60},
		{"sccartas", "Porto Seguro", models.TipoVeiculo, 80000, 12000, 900, 72},
		{"sccartas", "Bradesco", models.TipoImovel, 150000, 20000, 1100, 180},
		{"contemplamax", "Rodobens", models.TipoImovel, 250000, 40000, 1800, 200},
		{"contemplamax", "Honda", models.TipoMoto, 18000, 2000, 280, 36},
	}

	batch := make([]*models.Listing, 0, len(rows))
	for i, r := range rows {
		l := &models.Listing{
			Tipo:           r.tipo,
			ValorCarta:     decimal.NewFromFloat(r.carta),
			ValorEntrada:   decimal.NewFromFloat(r.entrada),
			ValorParcela:   decimal.NewFromFloat(r.parcela),
			Parcelas:       r.parcelas,
			Administradora: r.admin,
			Vendedor:       r.vendedor,
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
			UpdatedAt:      now.Add(time.Duration(i) * time.Second),
		}
		l.ID = ListingID(l)
		batch = append(batch, l)
	}
	if err := s.Save(batch); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func newEngine(s *storage.MemoryStore) *SearchEngine {
	return NewSearchEngine(s, 20, decimal.NewFromInt(10000), newTestLogger())
}

func TestSearchConjunctiveFilter(t *testing.T) {
	e := newEngine(seedStore(t))

	res, err := e.Search(models.SearchFilter{
		Tipo:          "veiculo",
		ValorCartaMax: decimal.NewFromInt(50000),
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.Total != 2 {
		t.Fatalf("total: got %d, want 2", res.Total)
	}
	for _, l := range res.Listings {
		if l.Tipo != models.TipoVeiculo {
			t.Errorf("tipo: got %q, want veiculo", l.Tipo)
		}
		if l.ValorCarta.GreaterThan(decimal.NewFromInt(50000)) {
			t.Errorf("valorCarta %s exceeds max", l.ValorCarta)
		}
	}
	if res.PorTipo[models.TipoVeiculo] != 2 {
		t.Errorf("porTipo: got %v", res.PorTipo)
	}
}

func TestSearchTipoTodos(t *testing.T) {
	e := newEngine(seedStore(t))

	res, err := e.Search(models.SearchFilter{Tipo: "todos"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 6 {
		t.Errorf("total: got %d, want 6", res.Total)
	}
}

func TestSearchAdministradoraInsensitive(t *testing.T) {
	e := newEngine(seedStore(t))

	res, err := e.Search(models.SearchFilter{Administradora: "ITAU"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 {
		t.Errorf("total: got %d, want 1", res.Total)
	}
}

func TestSearchPagination(t *testing.T) {
	e := newEngine(seedStore(t))

	res, err := e.Search(models.SearchFilter{Page: 2, PageSize: 4})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 6 {
		t.Errorf("total: got %d, want 6", res.Total)
	}
	if res.TotalPages != 2 {
		t.Errorf("totalPages: got %d, want 2", res.TotalPages)
	}
	if len(res.Listings) != 2 {
		t.Errorf("page 2 size: got %d, want 2", len(res.Listings))
	}
}

func TestSearchPaginationDefaults(t *testing.T) {
	e := newEngine(seedStore(t))

	res, err := e.Search(models.SearchFilter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Page != 1 || res.PageSize != 20 {
		t.Errorf("defaults: got page=%d pageSize=%d, want 1/20", res.Page, res.PageSize)
	}
}

func TestSearchPageBeyondEnd(t *testing.T) {
	e := newEngine(seedStore(t))

	res, err := e.Search(models.SearchFilter{Page: 9, PageSize: 4})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Listings) != 0 {
		t.Errorf("beyond-end page must be empty, got %d", len(res.Listings))
	}
	if res.Total != 6 {
		t.Errorf("total survives pagination: got %d, want 6", res.Total)
	}
}

func TestToleranceFallback(t *testing.T) {
	e := newEngine(seedStore(t))

	// Nothing holds a carta between 100k and 120k; 150k sits 30k above the
	// band and is outside the default 10k tolerance, so only the fallback
	// with a wide enough tolerance may surface it.
	res, err := e.Search(models.SearchFilter{
		ValorCartaMin: decimal.NewFromInt(100000),
		ValorCartaMax: decimal.NewFromInt(120000),
		Tolerancia:    decimal.NewFromInt(40000),
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.Total != 0 || len(res.Listings) != 0 {
		t.Fatalf("primary result must stay empty, got %d", res.Total)
	}

	min := decimal.NewFromInt(100000)
	max := decimal.NewFromInt(120000)
	for i, l := range res.Abaixo {
		if !l.ValorCarta.LessThan(min) {
			t.Errorf("abaixo[%d] = %s, must be < min", i, l.ValorCarta)
		}
		if i > 0 && res.Abaixo[i-1].ValorCarta.LessThan(l.ValorCarta) {
			t.Error("abaixo must be sorted descending (closest to min first)")
		}
	}
	for i, l := range res.Acima {
		if !l.ValorCarta.GreaterThan(max) {
			t.Errorf("acima[%d] = %s, must be > max", i, l.ValorCarta)
		}
		if i > 0 && res.Acima[i-1].ValorCarta.GreaterThan(l.ValorCarta) {
			t.Error("acima must be sorted ascending (closest to max first)")
		}
	}
	// 80000 is within 40k below, 150000 within 40k above.
	if len(res.Abaixo) != 1 || len(res.Acima) != 1 {
		t.Errorf("rails: got %d below / %d above, want 1/1", len(res.Abaixo), len(res.Acima))
	}
}

func TestToleranceFallbackKeepsOtherFilters(t *testing.T) {
	e := newEngine(seedStore(t))

	res, err := e.Search(models.SearchFilter{
		Tipo:          "imovel",
		ValorCartaMin: decimal.NewFromInt(100000),
		ValorCartaMax: decimal.NewFromInt(120000),
		Tolerancia:    decimal.NewFromInt(200000),
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, l := range append(res.Abaixo, res.Acima...) {
		if l.Tipo != models.TipoImovel {
			t.Errorf("fallback leaked tipo %q past the filter", l.Tipo)
		}
	}
	if len(res.Acima) != 2 {
		t.Errorf("acima: got %d, want 2 (both imóveis above the band)", len(res.Acima))
	}
}

func TestNoFallbackWithoutValueBand(t *testing.T) {
	e := newEngine(seedStore(t))

	res, err := e.Search(models.SearchFilter{Administradora: "inexistente"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 0 {
		t.Fatalf("total: got %d, want 0", res.Total)
	}
	if len(res.Abaixo) != 0 || len(res.Acima) != 0 {
		t.Error("fallback must stay off when no value band was supplied")
	}
}
