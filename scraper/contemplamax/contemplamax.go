// Package contemplamax scrapes the Contemplamax marketplace. The site is a
// client-rendered React grid with no usable API, so it runs under a
// headless browser.
package contemplamax

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"cartas-scraper/config"
	"cartas-scraper/models"
	"cartas-scraper/utils"
)

const (
	sourceName = "contemplamax"
	baseURL    = "https://www.contemplamax.com.br"
	gridURL    = baseURL + "/cartas-contempladas"
)

// Scraper drives a headless browser over the Contemplamax listing grid.
type Scraper struct {
	cfg    *config.Config
	logger *utils.Logger
	retry  *utils.RetryConfig
}

// New creates a ready-to-use Contemplamax scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:    cfg,
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

// Scrape loads the grid page and extracts every rendered card.
func (s *Scraper) Scrape() ([]*models.RawListing, error) {
	chromeBin := findChromeBinary(s.cfg.ChromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancelAlloc()

	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelSilent()

	cards, err := s.scrapeGrid(silentCtx)
	if err != nil {
		return nil, fmt.Errorf("contemplamax: %w", err)
	}

	listings := make([]*models.RawListing, 0, len(cards))
	for _, c := range cards {
		listings = append(listings, &models.RawListing{
			Vendedor:       sourceName,
			SourceURL:      c.URL,
			Titulo:         c.Titulo,
			Categoria:      c.Categoria,
			ValorCarta:     c.Credito,
			ValorEntrada:   c.Entrada,
			ValorParcela:   c.Parcela,
			Parcelas:       c.Parcelas,
			Administradora: c.Administradora,
			ScrapedAt:      time.Now(),
		})
	}

	s.logger.Info("[contemplamax] Scraped %d raw listings", len(listings))
	return listings, nil
}

type cardData struct {
	Titulo         string `json:"titulo"`
	Categoria      string `json:"categoria"`
	Credito        string `json:"credito"`
	Entrada        string `json:"entrada"`
	Parcela        string `json:"parcela"`
	Parcelas       string `json:"parcelas"`
	Administradora string `json:"administradora"`
	URL            string `json:"url"`
}

func (s *Scraper) scrapeGrid(allocCtx context.Context) ([]cardData, error) {
	var cards []cardData

	err := s.retry.Do("contemplamax-grid", func() error {
		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 90*time.Second)
		defer cancelTimeout()

		err := chromedp.Run(ctx,
			chromedp.Navigate(gridURL),
			chromedp.Sleep(5*time.Second),

			// Scroll so the lazy grid renders everything.
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),

			chromedp.Evaluate(`
				(function() {
					var results = [];
					var cards = document.querySelectorAll('.carta-card, [data-testid="carta-card"]');
					for (var i = 0; i < cards.length; i++) {
						var card = cards[i];
						var grab = function(sel) {
							var el = card.querySelector(sel);
							return el ? el.innerText.trim() : '';
						};
						var link = card.querySelector('a[href*="/carta/"]');
						results.push({
							titulo:         grab('.carta-titulo, h3'),
							categoria:      grab('.carta-segmento, .badge'),
							credito:        grab('.carta-credito .valor'),
							entrada:        grab('.carta-entrada .valor'),
							parcela:        grab('.carta-parcela .valor'),
							parcelas:       grab('.carta-prazo .valor'),
							administradora: grab('.carta-administradora'),
							url:            link ? link.href : ''
						});
					}
					return results;
				})()
			`, &cards),
		)
		if err != nil {
			return fmt.Errorf("chromedp grid extract: %w", err)
		}
		return nil
	})

	return cards, err
}

// findChromeBinary locates the Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
