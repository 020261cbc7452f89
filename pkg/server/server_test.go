package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	travelv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/travel/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/currency"
)

func testServer() *Server {
	return &Server{}
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	rec := doRequest(t, testServer(), http.MethodGet, "/api/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTripInsightsWithInlineElements(t *testing.T) {
	checkIn := time.Date(2025, 11, 7, 15, 0, 0, 0, time.UTC)
	checkOut := time.Date(2025, 11, 10, 11, 0, 0, 0, time.UTC)
	landing := time.Date(2025, 11, 5, 22, 0, 0, 0, time.UTC)
	takeoff := landing.Add(-9 * time.Hour)

	tripID := uuid.New()
	body := tripInsightsRequest{
		Trip: travelv1.Trip{Destination: "Tokyo"},
		Elements: []travelv1.ItineraryElement{
			{ID: uuid.New(), Type: travelv1.ElementFlight, Name: "UA 837", StartTime: &takeoff, EndTime: &landing},
			{ID: uuid.New(), Type: travelv1.ElementAccommodation, Name: "Park Hotel", StartTime: &checkIn, EndTime: &checkOut},
		},
	}

	rec := doRequest(t, testServer(), http.MethodPost, fmt.Sprintf("/api/trips/%s/insights", tripID), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var response tripInsightsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, tripID, response.TripID)

	// 41 hours between landing and check-in with no accommodation.
	require.NotEmpty(t, response.ActionRequired)
	assert.Equal(t, "accommodation_gap_arrival", response.ActionRequired[0].ID)

	// Counts covers the report buckets, never the proactive list.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Contains(t, raw, "counts")
	assert.Equal(t, len(response.ActionRequired), response.Counts.ActionRequired)
	assert.Equal(t, len(response.Recommendations), response.Counts.Recommendations)
	assert.Equal(t, len(response.GoodToKnow), response.Counts.GoodToKnow)
	assert.Equal(t,
		len(response.ActionRequired)+len(response.Recommendations)+len(response.GoodToKnow),
		response.Counts.Total)
}

func TestTripInsightsRejectsBadID(t *testing.T) {
	rec := doRequest(t, testServer(), http.MethodPost, "/api/trips/not-a-uuid/insights", tripInsightsRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTripInsightsRejectsBadJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/trips/%s/insights", uuid.New()), bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	testServer().router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewLearningRejectsBadInput(t *testing.T) {
	rec := doRequest(t, testServer(), http.MethodPost, "/api/insights/learnings/nope/approve", reviewLearningRequest{Approved: true, Reviewer: "ops"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, testServer(), http.MethodPost,
		fmt.Sprintf("/api/insights/learnings/%s/approve", uuid.New()), reviewLearningRequest{Approved: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatWithoutAgentUnavailable(t *testing.T) {
	rec := doRequest(t, testServer(), http.MethodPost, "/api/chat", chatRequest{Message: "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestConvertCurrencyEndpoint(t *testing.T) {
	rates := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"base":"EUR","rates":{"USD":1.10}}`)
	}))
	defer rates.Close()

	s := &Server{currency: currency.NewService(rates.URL, nil)}

	rec := doRequest(t, s, http.MethodGet, "/api/currency/convert?amount=100&from=EUR&to=USD", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var conversion currency.Conversion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conversion))
	assert.InDelta(t, 110.0, conversion.ConvertedAmount, 0.001)

	rec = doRequest(t, s, http.MethodGet, "/api/currency/convert?amount=100&from=XXX", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/currency/convert?from=EUR", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSupportedCurrenciesEndpoint(t *testing.T) {
	rec := doRequest(t, testServer(), http.MethodGet, "/api/currency/supported", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 30)
	assert.Equal(t, "AED", out[0]["code"])
}
