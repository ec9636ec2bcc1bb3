// Package tables holds the read-only lookup data used by the resolvers:
// place aliases, IATA codes, well-known coordinates, country names,
// currency aliases and the static fallback rate table.
package tables

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

type document struct {
	HomeCurrency         string                `yaml:"home_currency"`
	CityAliases          map[string]string     `yaml:"city_aliases"`
	IATACodes            map[string]string     `yaml:"iata_codes"`
	WellKnownCoordinates map[string][2]float64 `yaml:"well_known_coordinates"`
	CountryNames         map[string]string     `yaml:"country_names"`
	CurrencyAliases      map[string]string     `yaml:"currency_aliases"`
	FallbackRates        map[string]string     `yaml:"fallback_rates"`
}

// Tables is immutable after Parse and safe for concurrent readers.
type Tables struct {
	homeCurrency    string
	cityAliases     map[string]string
	iataCodes       map[string]string
	coordinates     map[string][2]float64
	countryNames    map[string]string
	currencyAliases map[string]string
	fallbackRates   map[string]decimal.Decimal
}

// Default returns the embedded tables. The embedded document is validated by tests.
func Default() *Tables {
	tables, err := Parse(defaultTables)
	if err != nil {
		panic(fmt.Sprintf("tables: embedded document is invalid: %v", err))
	}
	return tables
}

// Parse builds Tables from a YAML document
func Parse(data []byte) (*Tables, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tables: %w", err)
	}

	tables := &Tables{
		homeCurrency:    strings.ToUpper(strings.TrimSpace(doc.HomeCurrency)),
		cityAliases:     foldKeys(doc.CityAliases),
		iataCodes:       foldKeys(doc.IATACodes),
		coordinates:     make(map[string][2]float64, len(doc.WellKnownCoordinates)),
		countryNames:    make(map[string]string, len(doc.CountryNames)),
		currencyAliases: make(map[string]string, len(doc.CurrencyAliases)),
		fallbackRates:   make(map[string]decimal.Decimal, len(doc.FallbackRates)),
	}
	if tables.homeCurrency == "" {
		return nil, fmt.Errorf("parse tables: home_currency is required")
	}

	for name, pair := range doc.WellKnownCoordinates {
		if pair[0] < -180 || pair[0] > 180 || pair[1] < -90 || pair[1] > 90 {
			return nil, fmt.Errorf("parse tables: coordinate for %q out of range", name)
		}
		tables.coordinates[Fold(name)] = pair
	}
	for code, name := range doc.CountryNames {
		tables.countryNames[strings.ToUpper(code)] = name
	}
	for code, alias := range doc.CurrencyAliases {
		tables.currencyAliases[strings.ToUpper(code)] = strings.ToUpper(alias)
	}
	for code, value := range doc.FallbackRates {
		rate, err := decimal.NewFromString(value)
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("parse tables: fallback rate for %s must be a positive decimal", code)
		}
		tables.fallbackRates[strings.ToUpper(code)] = rate
	}

	return tables, nil
}

// HomeCurrency is the currency the daily-rate source quotes against
func (t *Tables) HomeCurrency() string {
	return t.homeCurrency
}

// CityAlias maps a place name to its canonical English name
func (t *Tables) CityAlias(name string) (string, bool) {
	alias, ok := t.cityAliases[Fold(name)]
	return alias, ok
}

// IATACode returns the booking provider city code for a place name
func (t *Tables) IATACode(name string) (string, bool) {
	code, ok := t.iataCodes[Fold(name)]
	return code, ok
}

// Coordinates returns last-resort [lon, lat] for a well-known place
func (t *Tables) Coordinates(name string) (longitude, latitude float64, ok bool) {
	pair, ok := t.coordinates[Fold(name)]
	return pair[0], pair[1], ok
}

// CountryName expands an ISO alpha-2 code; unknown codes come back upper-cased
func (t *Tables) CountryName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if name, ok := t.countryNames[code]; ok {
		return name
	}
	return code
}

// SourceCurrencyCode returns the designation the daily-rate source uses for a currency
func (t *Tables) SourceCurrencyCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if alias, ok := t.currencyAliases[code]; ok {
		return alias
	}
	return code
}

// FallbackRate returns the approximate home-currency value of one unit
func (t *Tables) FallbackRate(code string) (decimal.Decimal, bool) {
	rate, ok := t.fallbackRates[strings.ToUpper(code)]
	return rate, ok
}

// Fold normalizes a key: NFC, accents removed, lower-cased, whitespace collapsed.
func Fold(s string) string {
	folded, _, err := transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.ToLower(s),
	)
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}

func foldKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[Fold(key)] = value
	}
	return out
}
