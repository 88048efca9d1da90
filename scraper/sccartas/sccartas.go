// Package sccartas scrapes the SC Cartas marketplace. The site renders
// server-side but exposes the same dataset through a POST search endpoint
// used by its own frontend filters.
package sccartas

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cartas-scraper/config"
	"cartas-scraper/models"
	"cartas-scraper/utils"
)

const (
	sourceName = "sccartas"
	baseURL    = "https://www.sccartascontempladas.com.br"
	searchAPI  = baseURL + "/busca/resultado"
)

// searchRow mirrors one row of the SC Cartas search response. Values come
// back as numbers, not formatted strings.
type searchRow struct {
	Codigo   string  `json:"codigo"`
	Segmento string  `json:"segmento"`
	Credito  float64 `json:"credito"`
	Entrada  float64 `json:"entrada"`
	Parcela  float64 `json:"parcela"`
	Prazo    int     `json:"prazo"`
	Admin    string  `json:"admin"`
}

// Scraper pulls listings from the SC Cartas search endpoint, one request
// per segment.
type Scraper struct {
	client *http.Client
	logger *utils.Logger
	retry  *utils.RetryConfig
}

// New creates a ready-to-use SC Cartas scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		client: &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSec) * time.Second},
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

func (s *Scraper) Name() string      { return sourceName }
func (s *Scraper) SourceURL() string { return baseURL }

// Scrape queries every segment the site knows about.
func (s *Scraper) Scrape() ([]*models.RawListing, error) {
	segments := []string{"imoveis", "veiculos", "pesados", "motos"}

	var all []*models.RawListing
	for _, segment := range segments {
		rows, err := s.fetchSegment(segment)
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			all = append(all, &models.RawListing{
				Vendedor:       sourceName,
				SourceURL:      fmt.Sprintf("%s/carta/%s", baseURL, row.Codigo),
				Titulo:         fmt.Sprintf("Carta contemplada %s %s", row.Segmento, row.Codigo),
				Categoria:      row.Segmento,
				ValorCarta:     strconv.FormatFloat(row.Credito, 'f', 2, 64),
				ValorEntrada:   strconv.FormatFloat(row.Entrada, 'f', 2, 64),
				ValorParcela:   strconv.FormatFloat(row.Parcela, 'f', 2, 64),
				Parcelas:       strconv.Itoa(row.Prazo),
				Administradora: row.Admin,
				ScrapedAt:      time.Now(),
			})
		}
	}

	s.logger.Info("[sccartas] Scraped %d raw listings over %d segments", len(all), len(segments))
	return all, nil
}

func (s *Scraper) fetchSegment(segment string) ([]searchRow, error) {
	var rows []searchRow

	err := s.retry.Do("sccartas-"+segment, func() error {
		form := url.Values{"segmento": {segment}, "situacao": {"contemplada"}}
		resp, err := s.client.Post(searchAPI, "application/x-www-form-urlencoded",
			strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		rows = rows[:0]
		return json.Unmarshal(body, &rows)
	})
	if err != nil {
		return nil, fmt.Errorf("sccartas: segment %s: %w", segment, err)
	}
	return rows, nil
}
