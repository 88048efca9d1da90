package scraper

import (
	"errors"
	"testing"

	"cartas-scraper/models"
	"cartas-scraper/utils"
)

type fakeSource struct {
	name     string
	listings []*models.RawListing
	err      error
	panics   bool
}

func (f *fakeSource) Name() string      { return f.name }
func (f *fakeSource) SourceURL() string { return "https://" + f.name + ".example" }

func (f *fakeSource) Scrape() ([]*models.RawListing, error) {
	if f.panics {
		panic("connector blew up")
	}
	return f.listings, f.err
}

func raw(vendedor, titulo string) *models.RawListing {
	return &models.RawListing{Vendedor: vendedor, Titulo: titulo}
}

func TestScrapeAllIsolatesFailures(t *testing.T) {
	reg := NewRegistry(
		&fakeSource{name: "alpha", listings: []*models.RawListing{raw("alpha", "a1"), raw("alpha", "a2")}},
		&fakeSource{name: "broken", err: errors.New("connection refused")},
		&fakeSource{name: "beta", listings: []*models.RawListing{raw("beta", "b1")}},
	)

	o := NewOrchestrator(reg, 3, utils.NewLogger())
	all, report := o.ScrapeAll()

	if len(all) != 3 {
		t.Errorf("listings: got %d, want 3", len(all))
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("report: got %d ok / %d failed, want 2/1", report.Succeeded, report.Failed)
	}
	if _, ok := report.Errors["broken"]; !ok {
		t.Error("expected failure recorded for source \"broken\"")
	}
	for _, l := range all {
		if l.Vendedor != "alpha" && l.Vendedor != "beta" {
			t.Errorf("unexpected vendedor in batch: %q", l.Vendedor)
		}
	}
}

func TestScrapeAllContainsPanics(t *testing.T) {
	reg := NewRegistry(
		&fakeSource{name: "boom", panics: true},
		&fakeSource{name: "ok", listings: []*models.RawListing{raw("ok", "x")}},
	)

	o := NewOrchestrator(reg, 2, utils.NewLogger())
	all, report := o.ScrapeAll()

	if len(all) != 1 {
		t.Errorf("listings: got %d, want 1", len(all))
	}
	if report.Failed != 1 {
		t.Errorf("failed: got %d, want 1", report.Failed)
	}
}

func TestScrapeAllAllFailed(t *testing.T) {
	reg := NewRegistry(
		&fakeSource{name: "x", err: errors.New("timeout")},
		&fakeSource{name: "y", err: errors.New("http 503")},
	)

	o := NewOrchestrator(reg, 2, utils.NewLogger())
	all, report := o.ScrapeAll()

	if len(all) != 0 {
		t.Errorf("listings: got %d, want 0", len(all))
	}
	if !report.AllFailed() {
		t.Error("AllFailed should be true when every source errored")
	}
}

func TestScrapeByNameCaseInsensitive(t *testing.T) {
	reg := NewRegistry(&fakeSource{name: "VPCartas", listings: []*models.RawListing{raw("VPCartas", "v")}})
	o := NewOrchestrator(reg, 1, utils.NewLogger())

	got, err := o.ScrapeByName("vpcartas")
	if err != nil {
		t.Fatalf("ScrapeByName: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("listings: got %d, want 1", len(got))
	}
}

func TestScrapeByNameUnknown(t *testing.T) {
	reg := NewRegistry(&fakeSource{name: "alpha"})
	o := NewOrchestrator(reg, 1, utils.NewLogger())

	_, err := o.ScrapeByName("nope")
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("got %v, want ErrUnknownSource", err)
	}
}
