package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	log "github.com/sirupsen/logrus"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	travelv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/travel/v1"
)

const (
	enhanceMaxTokens   = 2000
	enhanceTemperature = 0.3
)

const enhanceInstructions = `You are a travel optimization expert. Analyze itineraries and provide specific, actionable recommendations. Return only valid JSON.`

// Completer is the completion surface the enhancer needs. *LLMClient
// satisfies it; tests substitute a canned implementation.
type Completer interface {
	Enabled() bool
	ChatJSON(ctx context.Context, instructions, data string, maxTokens int64, temperature float64) (string, error)
}

// Enhancer layers model-generated recommendations on top of the rule-based
// report. It never overrides a deterministic finding and never fails the
// analysis: on any upstream or parse error the base report is returned
// unchanged.
type Enhancer struct {
	llm Completer
}

func NewEnhancer(llm Completer) *Enhancer {
	return &Enhancer{llm: llm}
}

func (e *Enhancer) Enhance(ctx context.Context, trip travelv1.Trip, elements []travelv1.ItineraryElement, base insightsv1.Report) insightsv1.Report {
	if e.llm == nil || !e.llm.Enabled() {
		log.Debug("LLM not available, returning rule-based insights only")
		return base
	}

	prompt := buildAnalysisPrompt(trip, formatItinerary(elements), base)

	raw, err := e.llm.ChatJSON(ctx, enhanceInstructions, prompt, enhanceMaxTokens, enhanceTemperature)
	if err != nil {
		log.WithError(err).Warn("LLM enhancement failed, returning rule-based insights only")
		return base
	}

	batch, err := parseInsightBatch(raw)
	if err != nil {
		log.WithError(err).Warn("could not parse LLM response, returning rule-based insights only")
		return base
	}

	merged := mergeReports(base, batch)
	log.Infof("generated %d AI recommendations", len(merged.Recommendations)-len(base.Recommendations))
	return merged
}

// insightBatch is the validated shape of a model response: two insight lists
// mirroring the recommendation and good-to-know buckets.
type insightBatch struct {
	Recommendations []insightsv1.Insight `json:"recommendations"`
	GoodToKnow      []insightsv1.Insight `json:"good_to_know"`
}

// parseInsightBatch validates and decodes the model's JSON. The model output
// is untrusted; anything that is not an object with well-formed lists is a
// parse failure and the caller falls back to the base report.
func parseInsightBatch(raw string) (insightBatch, error) {
	var batch insightBatch

	trimmed := strings.TrimSpace(raw)
	if !gjson.Valid(trimmed) {
		return batch, fmt.Errorf("response is not valid JSON")
	}

	root := gjson.Parse(trimmed)
	if !root.IsObject() {
		return batch, fmt.Errorf("response is not a JSON object")
	}

	if recs := root.Get("recommendations"); recs.Exists() {
		if err := json.Unmarshal([]byte(recs.Raw), &batch.Recommendations); err != nil {
			return insightBatch{}, fmt.Errorf("malformed recommendations list: %w", err)
		}
	}
	if gtk := root.Get("good_to_know"); gtk.Exists() {
		if err := json.Unmarshal([]byte(gtk.Raw), &batch.GoodToKnow); err != nil {
			return insightBatch{}, fmt.Errorf("malformed good_to_know list: %w", err)
		}
	}

	return batch, nil
}

// mergeReports unions the model's output into the base report.
// action_required passes through verbatim: generated output must never
// override a critical deterministic finding. Recommendations are deduplicated
// against the base by case-insensitive title equality; good_to_know is
// appended as-is.
func mergeReports(base insightsv1.Report, batch insightBatch) insightsv1.Report {
	merged := insightsv1.Report{
		ActionRequired:  base.ActionRequired,
		Recommendations: append([]insightsv1.Insight{}, base.Recommendations...),
		GoodToKnow:      append([]insightsv1.Insight{}, base.GoodToKnow...),
	}

	existingTitles := map[string]bool{}
	for _, in := range merged.Recommendations {
		existingTitles[strings.ToLower(in.Title)] = true
	}

	for _, rec := range batch.Recommendations {
		title := strings.ToLower(rec.Title)
		if title == "" || existingTitles[title] {
			continue
		}
		merged.Recommendations = append(merged.Recommendations, rec)
		existingTitles[title] = true
	}

	merged.GoodToKnow = append(merged.GoodToKnow, batch.GoodToKnow...)

	return merged
}

// formatItinerary renders the trip elements as a readable timeline for the
// prompt, in chronological order.
func formatItinerary(elements []travelv1.ItineraryElement) string {
	sorted := append([]travelv1.ItineraryElement{}, elements...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := sorted[i].StartTime, sorted[j].StartTime
		if ti == nil {
			return tj != nil
		}
		if tj == nil {
			return false
		}
		return ti.Before(*tj)
	})

	var lines []string
	for _, e := range sorted {
		name := e.Name
		if name == "" {
			name = "Unnamed"
		}
		switch {
		case e.StartTime != nil && e.EndTime != nil:
			lines = append(lines, fmt.Sprintf("[%s] %s: %s - %s", e.Type, name,
				e.StartTime.Format("2006-01-02 15:04"), e.EndTime.Format("2006-01-02 15:04")))
		case e.StartTime != nil:
			lines = append(lines, fmt.Sprintf("[%s] %s: %s", e.Type, name, e.StartTime.Format("2006-01-02 15:04")))
		}
	}

	if len(lines) == 0 {
		return "No trip elements scheduled yet"
	}
	return strings.Join(lines, "\n")
}

func buildAnalysisPrompt(trip travelv1.Trip, itinerary string, base insightsv1.Report) string {
	dates := ""
	if trip.StartDate != nil && trip.EndDate != nil {
		dates = fmt.Sprintf("%s to %s", trip.StartDate.Format("2006-01-02"), trip.EndDate.Format("2006-01-02"))
	}

	return fmt.Sprintf(`Analyze this travel itinerary and provide HIGH-VALUE optimization recommendations.

TRIP DETAILS:
Destination: %s
Dates: %s
Travelers: %s

CURRENT ITINERARY:
%s

CRITICAL ISSUES ALREADY DETECTED: %d
(Don't duplicate - focus on optimizations and enhancements)

YOUR TASK:
Generate 2-5 actionable RECOMMENDATIONS for improving this trip. Focus on:

1. Missing elements - transportation gaps, meal planning, downtime activities
2. Timing optimizations - activities in wrong order, too rushed, better scheduling
3. Experience enhancements - hidden gems near existing bookings, better alternatives
4. Practical improvements - weather considerations, crowd strategies, booking windows

RULES:
- Be SPECIFIC (not "consider restaurant" but a concrete venue and time)
- Be BRIEF (1-2 sentences max per insight)
- HIGH VALUE ONLY (don't suggest obvious things)
- Include WHY it matters (save money/time, better experience, avoid problems)
- Return valid JSON only

OUTPUT FORMAT (JSON only):
{
  "recommendations": [
    {
      "id": "unique_id",
      "type": "recommendation",
      "severity": "info",
      "title": "Brief title (5-8 words)",
      "description": "Specific actionable recommendation with context (1-2 sentences)",
      "actions": [
        {"label": "Action button text", "action": "add_element|search|dismiss", "params": {}},
        {"label": "Dismiss", "action": "dismiss", "params": {}}
      ]
    }
  ],
  "good_to_know": [
    {
      "id": "unique_id",
      "type": "recommendation",
      "severity": "info",
      "title": "Brief title",
      "description": "Helpful context (only if EXTREME weather or major events)",
      "actions": []
    }
  ]
}

Return ONLY the JSON object.`,
		trip.Destination, dates, trip.Notes, itinerary, len(base.ActionRequired))
}
