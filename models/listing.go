package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipo is the asset category of a contemplated quota.
type Tipo string

const (
	TipoImovel  Tipo = "imovel"
	TipoVeiculo Tipo = "veiculo"
	TipoPesado  Tipo = "pesado"
	TipoMoto    Tipo = "moto"
)

// Tipos lists every valid category, in display order.
var Tipos = []Tipo{TipoImovel, TipoVeiculo, TipoPesado, TipoMoto}

// RawListing holds unprocessed scraped data exactly as each marketplace
// exposes it. Values and installment counts stay raw strings because every
// source formats them differently.
type RawListing struct {
	Vendedor       string
	SourceURL      string
	Titulo         string
	Categoria      string
	ValorCarta     string
	ValorEntrada   string
	ValorParcela   string
	Parcelas       string
	Administradora string
	ScrapedAt      time.Time
}

// Listing is the canonical, validated record ready for storage and search.
// ID is derived from content, so re-scraping the same quota refreshes the
// existing row instead of creating a new one.
type Listing struct {
	ID             string
	Tipo           Tipo
	ValorCarta     decimal.Decimal
	ValorEntrada   decimal.Decimal
	ValorParcela   decimal.Decimal
	Parcelas       int
	Administradora string
	Vendedor       string
	SourceURL      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SearchFilter carries every optional search dimension. Zero values mean
// "not filtered"; Page and PageSize are normalized to 1 and 20 by the engine.
type SearchFilter struct {
	Tipo            string
	ValorCartaMin   decimal.Decimal
	ValorCartaMax   decimal.Decimal
	ValorEntradaMax decimal.Decimal
	ValorParcelaMax decimal.Decimal
	ParcelasMax     int
	Administradora  string
	Vendedor        string
	Tolerancia      decimal.Decimal
	Page            int
	PageSize        int
}

// HasValorCartaBand reports whether the caller constrained the letter value,
// which is what arms the tolerance fallback.
func (f SearchFilter) HasValorCartaBand() bool {
	return !f.ValorCartaMin.IsZero() || !f.ValorCartaMax.IsZero()
}

// SearchResult is one page of filtered listings plus pagination metadata.
// Abaixo/Acima are populated only when the exact filter matched nothing and
// a value band was supplied: they hold the nearest listings below and above
// the requested band, never substituted into Listings itself.
type SearchResult struct {
	Listings   []*Listing
	Total      int
	Page       int
	PageSize   int
	TotalPages int
	PorTipo    map[Tipo]int
	Abaixo     []*Listing
	Acima      []*Listing
}

// Stats aggregates what the store currently holds.
type Stats struct {
	Total       int
	PorTipo     map[Tipo]int
	PorVendedor map[string]int
}
