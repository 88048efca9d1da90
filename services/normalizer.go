package services

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"cartas-scraper/models"
	"cartas-scraper/utils"
)

// tipoKeywords maps marketplace category vocabulary onto the canonical Tipo.
// Checked in order: the heavy-vehicle terms must win before the generic
// vehicle ones ("caminhão" ads usually also say "veículo").
var tipoKeywords = []struct {
	tipo     models.Tipo
	keywords []string
}{
	{models.TipoPesado, []string{"pesado", "caminhao", "carreta", "trator", "onibus", "implemento"}},
	{models.TipoMoto, []string{"moto", "motocicleta", "scooter", "biz", "cg "}},
	{models.TipoImovel, []string{"imovel", "imoveis", "casa", "apartamento", "terreno", "imobiliario", "sala comercial"}},
	{models.TipoVeiculo, []string{"veiculo", "automovel", "carro", "picape", "suv", "utilitario"}},
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases a string and strips diacritics, so "Caminhão" and
// "caminhao" compare equal. Used for classification and for the fuzzy
// duplicate key.
func Fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Normalizer maps raw marketplace rows into canonical Listings. Rows that
// cannot be classified or carry an unparseable letter value are expected
// upstream noise and dropped without error.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize converts raw listings into canonical ones, dropping malformed
// rows and collapsing same-id repeats within the batch.
func (n *Normalizer) Normalize(raw []*models.RawListing) []*models.Listing {
	seen := utils.NewIDSet()
	result := make([]*models.Listing, 0, len(raw))

	for _, r := range raw {
		l, ok := n.normalizeOne(r)
		if !ok {
			continue
		}
		if !seen.Add(l.ID) {
			n.logger.Debug("[normalizer] Repeated id within batch skipped: %s (%s)", l.ID, l.Vendedor)
			continue
		}
		result = append(result, l)
	}

	n.logger.Info("[normalizer] Normalized %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

func (n *Normalizer) normalizeOne(r *models.RawListing) (*models.Listing, bool) {
	tipo, ok := ClassifyTipo(r.Categoria, r.Titulo)
	if !ok {
		n.logger.Debug("[normalizer] Unclassifiable row from %s: categoria=%q titulo=%q",
			r.Vendedor, r.Categoria, r.Titulo)
		return nil, false
	}

	valorCarta, err := ParseValor(r.ValorCarta)
	if err != nil || !valorCarta.IsPositive() {
		n.logger.Debug("[normalizer] Bad valorCarta %q from %s", r.ValorCarta, r.Vendedor)
		return nil, false
	}

	administradora := normalizeText(r.Administradora)
	if administradora == "" {
		n.logger.Debug("[normalizer] Missing administradora from %s: %q", r.Vendedor, r.Titulo)
		return nil, false
	}

	valorEntrada, err := ParseValor(r.ValorEntrada)
	if err != nil || valorEntrada.IsNegative() {
		valorEntrada = decimal.Zero
	}
	valorParcela, err := ParseValor(r.ValorParcela)
	if err != nil || valorParcela.IsNegative() {
		valorParcela = decimal.Zero
	}

	parcelas := 0
	if p, err := strconv.Atoi(strings.TrimSpace(r.Parcelas)); err == nil && p > 0 {
		parcelas = p
	}

	now := time.Now()
	l := &models.Listing{
		Tipo:           tipo,
		ValorCarta:     valorCarta,
		ValorEntrada:   valorEntrada,
		ValorParcela:   valorParcela,
		Parcelas:       parcelas,
		Administradora: administradora,
		Vendedor:       r.Vendedor,
		SourceURL:      r.SourceURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	l.ID = ListingID(l)
	return l, true
}

// ClassifyTipo resolves the canonical category from the source's free-form
// category and title strings. Returns false when nothing matches: such rows
// are dropped, never stored as "unknown".
func ClassifyTipo(categoria, titulo string) (models.Tipo, bool) {
	text := Fold(categoria) + " " + Fold(titulo)
	for _, entry := range tipoKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.tipo, true
			}
		}
	}
	return "", false
}

// ParseValor parses Brazilian-formatted currency strings into a decimal.
// Accepts "R$ 150.000,00", "150.000", "150000,50", "150000.50" and plain
// integers; anything without digits is an error.
func ParseValor(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, nil
	}

	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	s = b.String()

	switch {
	case strings.Contains(s, ","):
		// Comma is the decimal separator, dots are thousands.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Contains(s, "."):
		// A dot followed by exactly three digits is a thousands separator
		// ("150.000", "1.500.000"); otherwise it is a decimal point.
		idx := strings.LastIndex(s, ".")
		if len(s)-idx-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	return decimal.NewFromString(s)
}

// ListingID derives the stable content id: the same quota scraped again
// hashes to the same id, so a re-scrape refreshes the row instead of
// duplicating it.
func ListingID(l *models.Listing) string {
	h := sha1.New()
	h.Write([]byte(l.Vendedor))
	h.Write([]byte{'|'})
	h.Write([]byte(Fold(l.Administradora)))
	h.Write([]byte{'|'})
	h.Write([]byte(l.Tipo))
	h.Write([]byte{'|'})
	h.Write([]byte(l.ValorCarta.String()))
	h.Write([]byte{'|'})
	h.Write([]byte(l.ValorParcela.String()))
	return hex.EncodeToString(h.Sum(nil))[:20]
}

// normalizeText strips leading/trailing whitespace and collapses internal
// whitespace.
func normalizeText(s string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(s), unicode.IsSpace)
	return strings.Join(fields, " ")
}
