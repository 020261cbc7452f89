// Package currency converts itinerary amounts between currencies using a
// public exchange-rate API with cached rates.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wayfarer-travel/wayfarer/pkg/apis/cache"
)

const (
	// DefaultBaseURL serves rates without an API key on its free tier.
	DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

	requestTimeout = 10 * time.Second

	// Rates move slowly enough that an hour of staleness is acceptable
	// for itinerary budgeting.
	rateCacheTTL = time.Hour
)

// symbols maps supported currency codes to their display symbols. The key
// set doubles as the supported-currency list.
var symbols = map[string]string{
	"USD": "$", "EUR": "€", "GBP": "£", "JPY": "¥", "CAD": "C$", "AUD": "A$",
	"CHF": "CHF", "CNY": "¥", "INR": "₹", "MXN": "$", "BRL": "R$", "KRW": "₩",
	"SGD": "S$", "HKD": "HK$", "NOK": "kr", "SEK": "kr", "DKK": "kr", "NZD": "NZ$",
	"ZAR": "R", "THB": "฿", "PLN": "zł", "CZK": "Kč", "HUF": "Ft", "ILS": "₪",
	"TRY": "₺", "AED": "د.إ", "SAR": "﷼", "PHP": "₱", "MYR": "RM", "IDR": "Rp",
}

// zeroDecimalCurrencies are conventionally displayed without cents.
var zeroDecimalCurrencies = map[string]bool{"JPY": true, "KRW": true, "IDR": true}

// Conversion is the result of converting one amount.
type Conversion struct {
	OriginalAmount    float64   `json:"original_amount"`
	OriginalCurrency  string    `json:"original_currency"`
	ConvertedAmount   float64   `json:"converted_amount"`
	ConvertedCurrency string    `json:"converted_currency"`
	ExchangeRate      float64   `json:"exchange_rate"`
	ConversionDate    time.Time `json:"conversion_date"`
}

// Service fetches and caches exchange rates. The cache is optional; without
// it every rate lookup hits the provider.
type Service struct {
	httpClient *http.Client
	baseURL    string
	cache      cache.Cache
}

func NewService(baseURL string, cacheClient cache.Cache) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Service{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		cache:      cacheClient,
	}
}

// Supported reports whether a currency code can be converted.
func Supported(code string) bool {
	_, ok := symbols[strings.ToUpper(code)]
	return ok
}

// SupportedCurrencies returns the sorted list of supported codes.
func SupportedCurrencies() []string {
	codes := make([]string, 0, len(symbols))
	for code := range symbols {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Rate returns the multiplier that converts 1 unit of from into to.
func (s *Service) Rate(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if !Supported(from) {
		return 0, fmt.Errorf("unsupported currency %q", from)
	}
	if !Supported(to) {
		return 0, fmt.Errorf("unsupported currency %q", to)
	}
	if from == to {
		return 1, nil
	}

	rates, err := s.rates(ctx, from)
	if err != nil {
		return 0, err
	}

	rate, ok := rates[to]
	if !ok {
		return 0, fmt.Errorf("no rate from %s to %s", from, to)
	}
	return rate, nil
}

// Convert converts an amount between currencies at the current rate.
func (s *Service) Convert(ctx context.Context, amount float64, from, to string) (*Conversion, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	rate, err := s.Rate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &Conversion{
		OriginalAmount:    amount,
		OriginalCurrency:  from,
		ConvertedAmount:   round2(amount * rate),
		ConvertedCurrency: to,
		ExchangeRate:      rate,
		ConversionDate:    time.Now().UTC(),
	}, nil
}

// rates returns the full rate table for one base currency, cache-first.
func (s *Service) rates(ctx context.Context, base string) (map[string]float64, error) {
	key := rateCacheKey(base)

	if s.cache != nil {
		if raw, err := s.cache.Get(key); err == nil && len(raw) > 0 {
			var cached map[string]float64
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	rates, err := s.fetchRates(ctx, base)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, merr := json.Marshal(rates); merr == nil {
			if cerr := s.cache.Set(key, raw, rateCacheTTL); cerr != nil {
				log.WithError(cerr).Warn("could not cache exchange rates")
			}
		}
	}
	return rates, nil
}

func (s *Service) fetchRates(ctx context.Context, base string) (map[string]float64, error) {
	url := fmt.Sprintf("%s/%s", s.baseURL, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WithMessage(err, "building exchange rate request")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithMessagef(err, "fetching exchange rates for %s", base)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange rate provider returned %d for %s", resp.StatusCode, base)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.WithMessage(err, "decoding exchange rate response")
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("exchange rate provider returned no rates for %s", base)
	}
	return payload.Rates, nil
}

// Symbol returns the display symbol for a currency code, or the code itself
// when none is known.
func Symbol(code string) string {
	if s, ok := symbols[strings.ToUpper(code)]; ok {
		return s
	}
	return code
}

// FormatAmount renders an amount with its currency symbol, dropping cents
// for currencies that don't use them.
func FormatAmount(amount float64, code string) string {
	code = strings.ToUpper(code)
	if zeroDecimalCurrencies[code] {
		return fmt.Sprintf("%s%d", Symbol(code), int64(amount))
	}
	return fmt.Sprintf("%s%.2f", Symbol(code), amount)
}

// DetectCurrency guesses a currency code from free text, checking explicit
// codes before symbols. Bare dollar signs and unrecognized text default to
// USD.
func DetectCurrency(text string) string {
	upper := strings.ToUpper(text)
	for _, code := range SupportedCurrencies() {
		if strings.Contains(upper, code) {
			return code
		}
	}

	// Multi-character symbols first so "R$" isn't read as ZAR's "R".
	ordered := []struct{ symbol, code string }{
		{"R$", "BRL"}, {"C$", "CAD"}, {"A$", "AUD"}, {"S$", "SGD"},
		{"HK$", "HKD"}, {"NZ$", "NZD"}, {"zł", "PLN"},
		{"€", "EUR"}, {"£", "GBP"}, {"¥", "JPY"}, {"₹", "INR"},
		{"₩", "KRW"}, {"฿", "THB"}, {"₪", "ILS"}, {"₺", "TRY"},
		{"₱", "PHP"}, {"kr", "SEK"},
	}
	for _, entry := range ordered {
		if strings.Contains(text, entry.symbol) {
			return entry.code
		}
	}

	return "USD"
}

func rateCacheKey(base string) string {
	return fmt.Sprintf("currency/rates/%s", base)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
