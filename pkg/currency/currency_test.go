package currency

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	gets    int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("cache miss for %s", key)
	}
	return raw, nil
}

func (c *memCache) Set(key string, content []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = content
	return nil
}

func rateServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		switch r.URL.Path {
		case "/EUR":
			fmt.Fprint(w, `{"base":"EUR","rates":{"USD":1.09,"GBP":0.86,"JPY":163.2}}`)
		case "/USD":
			fmt.Fprint(w, `{"base":"USD","rates":{"EUR":0.92,"JPY":149.7}}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestConvertAmount(t *testing.T) {
	hits := 0
	server := rateServer(t, &hits)
	defer server.Close()

	svc := NewService(server.URL, nil)
	conversion, err := svc.Convert(context.Background(), 250, "eur", "usd")
	require.NoError(t, err)

	assert.Equal(t, "EUR", conversion.OriginalCurrency)
	assert.Equal(t, "USD", conversion.ConvertedCurrency)
	assert.InDelta(t, 1.09, conversion.ExchangeRate, 0.0001)
	assert.InDelta(t, 272.50, conversion.ConvertedAmount, 0.001)
	assert.False(t, conversion.ConversionDate.IsZero())
}

func TestSameCurrencySkipsProvider(t *testing.T) {
	hits := 0
	server := rateServer(t, &hits)
	defer server.Close()

	svc := NewService(server.URL, nil)
	rate, err := svc.Rate(context.Background(), "USD", "USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
	assert.Zero(t, hits)
}

func TestRatesAreCached(t *testing.T) {
	hits := 0
	server := rateServer(t, &hits)
	defer server.Close()

	cacheClient := newMemCache()
	svc := NewService(server.URL, cacheClient)

	_, err := svc.Rate(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	// Second lookup on the same base, different target.
	rate, err := svc.Rate(context.Background(), "EUR", "GBP")
	require.NoError(t, err)

	assert.InDelta(t, 0.86, rate, 0.0001)
	assert.Equal(t, 1, hits, "second lookup should come from cache")
	assert.Equal(t, 1, cacheClient.sets)
}

func TestUnsupportedCurrencyRejected(t *testing.T) {
	svc := NewService("http://localhost:0", nil)

	_, err := svc.Rate(context.Background(), "XXX", "USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported currency")

	_, err = svc.Convert(context.Background(), 10, "USD", "???")
	require.Error(t, err)
}

func TestProviderFailureSurfacesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := NewService(server.URL, nil)
	_, err := svc.Rate(context.Background(), "EUR", "USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestProviderDownWithWarmCacheStillConverts(t *testing.T) {
	hits := 0
	server := rateServer(t, &hits)
	cacheClient := newMemCache()
	svc := NewService(server.URL, cacheClient)

	_, err := svc.Rate(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	server.Close()

	rate, err := svc.Rate(context.Background(), "EUR", "JPY")
	require.NoError(t, err)
	assert.InDelta(t, 163.2, rate, 0.0001)
}

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"EUR 50", "EUR"},
		{"50 eur", "EUR"},
		{"€49.99", "EUR"},
		{"£120", "GBP"},
		{"R$300", "BRL"},
		{"¥1200", "JPY"},
		{"$25", "USD"},
		{"just a number 42", "USD"},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.expected, DetectCurrency(tc.text))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$1450.50", FormatAmount(1450.5, "USD"))
	assert.Equal(t, "€99.90", FormatAmount(99.9, "eur"))
	assert.Equal(t, "¥12000", FormatAmount(12000, "JPY"))
	assert.Equal(t, "XYZ10.00", FormatAmount(10, "XYZ"))
}

func TestSupportedCurrenciesSortedAndComplete(t *testing.T) {
	codes := SupportedCurrencies()
	assert.Len(t, codes, 30)
	assert.True(t, Supported("usd"))
	assert.False(t, Supported("BTC"))

	for i := 1; i < len(codes); i++ {
		assert.Less(t, codes[i-1], codes[i])
	}
}
