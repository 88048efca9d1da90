package storage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cartas-scraper/models"
)

func listing(id string, vendedor string, created, updated time.Time) *models.Listing {
	return &models.Listing{
		ID:             id,
		Tipo:           models.TipoImovel,
		ValorCarta:     decimal.NewFromInt(100000),
		Administradora: "Bradesco",
		Vendedor:       vendedor,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}
}

func TestSaveUpsertIdempotent(t *testing.T) {
	s := NewMemoryStore()
	created := time.Now().Add(-2 * time.Hour)

	batch := []*models.Listing{
		listing("id-1", "vpcartas", created, created),
		listing("id-2", "vpcartas", created, created),
	}
	if err := s.Save(batch); err != nil {
		t.Fatalf("first save: %v", err)
	}

	refreshed := time.Now()
	again := []*models.Listing{
		listing("id-1", "vpcartas", refreshed, refreshed),
		listing("id-2", "vpcartas", refreshed, refreshed),
	}
	if err := s.Save(again); err != nil {
		t.Fatalf("second save: %v", err)
	}

	n, _ := s.Count()
	if n != 2 {
		t.Errorf("count after re-save: got %d, want 2", n)
	}

	all, _ := s.FetchAll()
	for _, l := range all {
		if !l.CreatedAt.Equal(created) {
			t.Errorf("%s: CreatedAt must survive the upsert", l.ID)
		}
		if !l.UpdatedAt.Equal(refreshed) {
			t.Errorf("%s: UpdatedAt must advance on re-save", l.ID)
		}
	}
}

func TestCleanOldBoundary(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	window := 24 * time.Hour

	_ = s.Save([]*models.Listing{
		listing("stale", "a", now.Add(-25*time.Hour), now.Add(-25*time.Hour)),
		listing("fresh", "a", now.Add(-1*time.Hour), now.Add(-1*time.Hour)),
		listing("refreshed", "a", now.Add(-30*time.Hour), now.Add(-2*time.Hour)),
	})

	removed, err := s.CleanOld(window)
	if err != nil {
		t.Fatalf("CleanOld: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed: got %d, want 1", removed)
	}

	all, _ := s.FetchAll()
	for _, l := range all {
		if l.ID == "stale" {
			t.Error("stale record should have been removed")
		}
	}
	if n, _ := s.Count(); n != 2 {
		t.Errorf("count: got %d, want 2", n)
	}
}

func TestDeleteIDs(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	_ = s.Save([]*models.Listing{
		listing("a", "x", now, now),
		listing("b", "x", now, now),
	})

	removed, err := s.DeleteIDs([]string{"a", "missing"})
	if err != nil {
		t.Fatalf("DeleteIDs: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed: got %d, want 1", removed)
	}
	if n, _ := s.Count(); n != 1 {
		t.Errorf("count: got %d, want 1", n)
	}
}

func TestStatsAndVendedores(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	a := listing("a", "vpcartas", now, now)
	b := listing("b", "sccartas", now, now)
	b.Tipo = models.TipoMoto
	c := listing("c", "vpcartas", now, now)
	c.Tipo = models.TipoMoto
	_ = s.Save([]*models.Listing{a, b, c})

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("total: got %d, want 3", stats.Total)
	}
	if stats.PorTipo[models.TipoMoto] != 2 || stats.PorTipo[models.TipoImovel] != 1 {
		t.Errorf("por tipo wrong: %v", stats.PorTipo)
	}
	if stats.PorVendedor["vpcartas"] != 2 {
		t.Errorf("por vendedor wrong: %v", stats.PorVendedor)
	}

	vendedores, _ := s.Vendedores()
	if len(vendedores) != 2 || vendedores[0] != "sccartas" || vendedores[1] != "vpcartas" {
		t.Errorf("vendedores: got %v", vendedores)
	}
}

func TestLastUpdateRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	got, _ := s.LastUpdate()
	if !got.IsZero() {
		t.Error("LastUpdate should be zero before any refresh")
	}

	now := time.Now()
	if err := s.SetLastUpdate(now); err != nil {
		t.Fatalf("SetLastUpdate: %v", err)
	}
	got, _ = s.LastUpdate()
	if !got.Equal(now) {
		t.Errorf("LastUpdate: got %v, want %v", got, now)
	}
}
