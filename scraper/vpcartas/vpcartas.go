// Package vpcartas scrapes the VP Cartas marketplace through its public
// JSON search endpoint.
package vpcartas

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"cartas-scraper/config"
	"cartas-scraper/models"
	"cartas-scraper/utils"
)

const (
	sourceName = "vpcartas"
	baseURL    = "https://www.vpcartas.com.br"
	listingAPI = baseURL + "/api/cartas?status=contemplada&pagina=%d"
)

// apiListing mirrors one row of the VP Cartas JSON payload.
type apiListing struct {
	ID             int    `json:"id"`
	Titulo         string `json:"titulo"`
	Categoria      string `json:"categoria"`
	ValorCredito   string `json:"valor_credito"`
	ValorEntrada   string `json:"valor_entrada"`
	ValorParcela   string `json:"valor_parcela"`
	QtdParcelas    int    `json:"qtd_parcelas"`
	Administradora string `json:"administradora"`
	Slug           string `json:"slug"`
}

type apiPage struct {
	Cartas       []apiListing `json:"cartas"`
	TotalPaginas int          `json:"total_paginas"`
}

// Scraper pulls listings from the VP Cartas API.
type Scraper struct {
	client *http.Client
	logger *utils.Logger
	retry  *utils.RetryConfig
}

// New creates a ready-to-use VP Cartas scraper.
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

// Scrape walks the paginated API until the last page.
func (s *Scraper) Scrape() ([]*models.RawListing, error) {
	var all []*models.RawListing

	page := 1
	for {
		result, err := s.fetchPage(page)
		if err != nil {
			return nil, err
		}

		for _, row := range result.Cartas {
			all = append(all, &models.RawListing{
				Vendedor:       sourceName,
				SourceURL:      fmt.Sprintf("%s/carta/%s", baseURL, row.Slug),
				Titulo:         row.Titulo,
				Categoria:      row.Categoria,
				ValorCarta:     row.ValorCredito,
				ValorEntrada:   row.ValorEntrada,
				ValorParcela:   row.ValorParcela,
				Parcelas:       strconv.Itoa(row.QtdParcelas),
				Administradora: row.Administradora,
				ScrapedAt:      time.Now(),
			})
		}

		if page >= result.TotalPaginas {
			break
		}
		page++
	}

	s.logger.Info("[vpcartas] Scraped %d raw listings over %d pages", len(all), page)
	return all, nil
}

func (s *Scraper) fetchPage(page int) (*apiPage, error) {
	var result apiPage

	err := s.retry.Do(fmt.Sprintf("vpcartas-page-%d", page), func() error {
		resp, err := s.client.Get(fmt.Sprintf(listingAPI, page))
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
		return json.Unmarshal(body, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("vpcartas: fetch page %d: %w", page, err)
	}
	return &result, nil
}
