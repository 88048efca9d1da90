package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cartas-scraper/config"
	"cartas-scraper/models"
	"cartas-scraper/scraper"
	"cartas-scraper/scraper/contemplamax"
	"cartas-scraper/scraper/sccartas"
	"cartas-scraper/scraper/vpcartas"
	"cartas-scraper/services"
	"cartas-scraper/storage"
	"cartas-scraper/utils"
)

func main() {
	sourceName := flag.String("source", "", "refresh a single marketplace instead of all of them")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Cartas Contempladas Aggregator starting ===")
	logger.Info("Config — concurrency: %d | rate: %dms | freshness: %dh | dedup tolerance: %.0f",
		cfg.MaxConcurrency, cfg.RateLimitMs, cfg.FreshnessHours, cfg.DedupTolerance)

	store := openStore(cfg, logger)
	defer store.Close()

	audit, err := storage.NewCSVWriter(cfg.CSVAuditPath)
	if err != nil {
		logger.Warn("Raw audit CSV disabled: %v", err)
		audit = nil
	} else {
		defer audit.Close()
	}

	registry := scraper.NewRegistry(
		vpcartas.New(cfg, logger),
		sccartas.New(cfg, logger),
		contemplamax.New(cfg, logger),
	)
	logger.Info("Registered sources: %s", strings.Join(registry.Names(), ", "))

	orchestrator := scraper.NewOrchestrator(registry, cfg.MaxConcurrency, logger)
	engine := services.NewSearchEngine(store, cfg.DefaultPageSize,
		decimal.NewFromFloat(cfg.DefaultTolerance), logger)
	dedup := services.NewDeduplicator(decimal.NewFromFloat(cfg.DedupTolerance), logger)

	var auditWriter storage.RawAuditWriter
	if audit != nil {
		auditWriter = audit
	}
	coordinator := services.NewCoordinator(
		orchestrator,
		services.NewNormalizer(logger),
		dedup,
		engine,
		store,
		auditWriter,
		time.Duration(cfg.FreshnessHours)*time.Hour,
		logger,
	)

	result, err := coordinator.Refresh(*sourceName)
	if err != nil {
		logger.Error("Refresh failed: %v", err)
		os.Exit(1)
	}

	logger.Info("Refresh complete — %d upserted, %d duplicates removed, %d stale removed",
		result.Inserted, result.RemovedDuplicates, result.RemovedStale)

	stats, err := coordinator.Stats()
	if err != nil {
		logger.Error("Stats failed: %v", err)
		os.Exit(1)
	}
	lastUpdate, _ := coordinator.LastUpdate()
	printStats(stats, lastUpdate)
}

// openStore connects to PostgreSQL, falling back to the in-memory store so a
// refresh without a database still produces the audit CSV and the report.
func openStore(cfg *config.Config, logger *utils.Logger) storage.Store {
	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Warn("PostgreSQL unavailable (%v) — using in-memory store", err)
		return storage.NewMemoryStore()
	}
	return store
}

func printStats(stats *models.Stats, lastUpdate time.Time) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  CARTAS CONTEMPLADAS — STORE REPORT\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Total listings : \033[1m%d\033[0m\n", stats.Total)
	if !lastUpdate.IsZero() {
		fmt.Printf("  Last update    : %s\n", lastUpdate.Format("2006-01-02 15:04:05"))
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Por tipo\033[0m\n")
	fmt.Printf("  %s\n", thin)
	for _, tipo := range models.Tipos {
		if n := stats.PorTipo[tipo]; n > 0 {
			fmt.Printf("  %-10s %s (%d)\n", tipo, strings.Repeat("█", n), n)
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Por vendedor\033[0m\n")
	fmt.Printf("  %s\n", thin)
	vendedores := make([]string, 0, len(stats.PorVendedor))
	for v := range stats.PorVendedor {
		vendedores = append(vendedores, v)
	}
	sort.Strings(vendedores)
	for _, v := range vendedores {
		fmt.Printf("  %-16s %d\n", v, stats.PorVendedor[v])
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}
