package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"cartas-scraper/models"
	"cartas-scraper/utils"
)

// Deduplicator collapses near-identical listings that different marketplaces
// post for the same underlying quota. Two listings merge when they share the
// tipo, the same administradora (case/accent-insensitive) and both valorCarta
// and valorParcela sit within Tolerance of each other. The content id already
// folds these fields per vendedor; this pass exists to catch the cross-vendor
// resale spam the id cannot see.
type Deduplicator struct {
	logger *utils.Logger

	// Tolerance is the absolute value distance still considered "the same
	// quota". Zero means exact-value matches only.
	Tolerance decimal.Decimal
}

// NewDeduplicator creates a Deduplicator with the given tolerance.
func NewDeduplicator(tolerance decimal.Decimal, logger *utils.Logger) *Deduplicator {
	return &Deduplicator{logger: logger, Tolerance: tolerance}
}

// Removable scans the listings and returns the ids that should be deleted:
// within each duplicate group, every record except the most recently updated
// one. Running it again over the survivors returns nothing.
func (d *Deduplicator) Removable(listings []*models.Listing) []string {
	groups := make(map[string][]*models.Listing)
	for _, l := range listings {
		key := string(l.Tipo) + "|" + Fold(l.Administradora)
		groups[key] = append(groups[key], l)
	}

	var remove []string
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		// Newest first, so the first member of each cluster is the keeper.
		sort.Slice(group, func(i, j int) bool {
			return group[i].UpdatedAt.After(group[j].UpdatedAt)
		})

		claimed := make([]bool, len(group))
		for i, keeper := range group {
			if claimed[i] {
				continue
			}
			for j := i + 1; j < len(group); j++ {
				if claimed[j] {
					continue
				}
				if d.sameQuota(keeper, group[j]) {
					claimed[j] = true
					remove = append(remove, group[j].ID)
					d.logger.Debug("[dedup] %s (%s) duplicates %s (%s)",
						group[j].ID, group[j].Vendedor, keeper.ID, keeper.Vendedor)
				}
			}
		}
	}

	return remove
}

func (d *Deduplicator) sameQuota(a, b *models.Listing) bool {
	return withinTolerance(a.ValorCarta, b.ValorCarta, d.Tolerance) &&
		withinTolerance(a.ValorParcela, b.ValorParcela, d.Tolerance)
}

func withinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(tol) <= 0
}
