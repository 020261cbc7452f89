package patterns

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgtype"
	log "github.com/sirupsen/logrus"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	travelv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/travel/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/db/models"
)

const (
	// Arrivals at or after this hour count as late for the late-arrival
	// pattern check.
	lateArrivalHour = 20

	// The tight-timing pattern only fires proactively when enough past
	// travelers acted on it.
	tightTimingMinAcceptance = 40

	commonSolutionLimit = 3
	solutionSampleLimit = 100
)

// Matcher queries learned patterns to warn about likely problems in a new,
// still-developing itinerary before the deterministic detector would catch
// them reactively. Absence of a qualifying pattern is never an error; a
// check that finds nothing contributes nothing.
type Matcher struct {
	store Store
}

func NewMatcher(store Store) *Matcher {
	return &Matcher{store: store}
}

// ProactiveInsights runs the situational pattern checks for a trip. Every
// returned insight carries full provenance: sample size, confidence and the
// observed acceptance rate are embedded, never hidden.
func (m *Matcher) ProactiveInsights(trip travelv1.Trip, elements []travelv1.ItineraryElement) []insightsv1.Insight {
	var proactive []insightsv1.Insight

	destination := strings.ToLower(trip.Destination)

	if in := m.checkLateArrival(elements, destination); in != nil {
		proactive = append(proactive, *in)
	}
	if in := m.checkTightTiming(destination); in != nil {
		proactive = append(proactive, *in)
	}
	if in := m.checkMissingTransportation(elements, destination); in != nil {
		proactive = append(proactive, *in)
	}

	return proactive
}

func (m *Matcher) checkLateArrival(elements []travelv1.ItineraryElement, destination string) *insightsv1.Insight {
	arrival := firstFlightArrival(elements)
	if arrival == nil || arrival.Hour() < lateArrivalHour {
		return nil
	}

	pattern := m.qualifyingPattern(insightsv1.CategoryAccommodationGap)
	if pattern == nil {
		return nil
	}

	description := fmt.Sprintf("Proactive alert (based on %d similar trips): your flight arrives at %s - %.0f%% of travelers in %s with late arrivals added an airport hotel for the first night.",
		pattern.SampleSize, arrival.Format("3:04 PM"), pattern.AcceptanceRate, destination)

	if solutions := m.commonSolutions(insightsv1.CategoryAccommodationGap); len(solutions) > 0 {
		description += fmt.Sprintf(" Most common: %s.", strings.Join(solutions, ", "))
	}

	return &insightsv1.Insight{
		ID:          fmt.Sprintf("proactive_late_arrival_%s", destination),
		Category:    insightsv1.CategoryLearnedPattern,
		Severity:    insightsv1.SeverityWarning,
		Title:       fmt.Sprintf("Late Arrival Pattern Detected (%s)", destination),
		Description: description,
		Actions: []insightsv1.Action{
			{Label: "Search Airport Hotels", Action: "search_hotels", Params: map[string]interface{}{"location": "airport"}},
			{Label: "View Similar Trips", Action: "view_patterns", Params: map[string]interface{}{"category": string(pattern.Category)}},
			{Label: "Dismiss", Action: "dismiss", Params: map[string]interface{}{}},
		},
		LearnedFrom: &insightsv1.LearnedFrom{
			SampleSize:  pattern.SampleSize,
			Confidence:  pattern.ConfidenceScore,
			SuccessRate: pattern.AcceptanceRate,
		},
	}
}

func (m *Matcher) checkTightTiming(destination string) *insightsv1.Insight {
	pattern := m.qualifyingPattern(insightsv1.CategoryTightTiming)
	if pattern == nil || pattern.AcceptanceRate < tightTimingMinAcceptance {
		return nil
	}

	description := fmt.Sprintf("Learned pattern: based on %d trips, %.0f%% of travelers with tight departure timing upgraded to early checkout or adjusted their flights. Consider planning extra buffer time.",
		pattern.SampleSize, pattern.AcceptanceRate)

	return &insightsv1.Insight{
		ID:          fmt.Sprintf("proactive_tight_timing_%s", destination),
		Category:    insightsv1.CategoryLearnedPattern,
		Severity:    insightsv1.SeverityInfo,
		Title:       "Timing Optimization Opportunity",
		Description: description,
		Actions: []insightsv1.Action{
			{Label: "View Recommendations", Action: "view_patterns", Params: map[string]interface{}{}},
			{Label: "Dismiss", Action: "dismiss", Params: map[string]interface{}{}},
		},
		LearnedFrom: &insightsv1.LearnedFrom{
			SampleSize: pattern.SampleSize,
			Confidence: pattern.ConfidenceScore,
		},
	}
}

func (m *Matcher) checkMissingTransportation(elements []travelv1.ItineraryElement, destination string) *insightsv1.Insight {
	hasFlight := false
	for _, e := range elements {
		switch e.Type {
		case travelv1.ElementTransportation:
			return nil
		case travelv1.ElementFlight:
			hasFlight = true
		}
	}
	if !hasFlight {
		return nil
	}

	pattern := m.qualifyingPattern(insightsv1.CategoryMissingTransportation)
	if pattern == nil {
		return nil
	}

	description := fmt.Sprintf("Common pattern: %.0f%% of travelers to %s add ground transportation after booking flights. Popular options: rideshare, rental car, hotel shuttle.",
		pattern.AcceptanceRate, destination)

	return &insightsv1.Insight{
		ID:          fmt.Sprintf("proactive_missing_transport_%s", destination),
		Category:    insightsv1.CategoryLearnedPattern,
		Severity:    insightsv1.SeverityInfo,
		Title:       "Transportation Suggestion",
		Description: description,
		Actions: []insightsv1.Action{
			{Label: "Add Transportation", Action: "add_element", Params: map[string]interface{}{"type": string(travelv1.ElementTransportation)}},
			{Label: "Dismiss", Action: "dismiss", Params: map[string]interface{}{}},
		},
		LearnedFrom: &insightsv1.LearnedFrom{
			SampleSize: pattern.SampleSize,
			Confidence: pattern.ConfidenceScore,
		},
	}
}

// qualifyingPattern returns the pattern for a category when it exists and
// clears the confidence floor.
func (m *Matcher) qualifyingPattern(category insightsv1.Category) *models.InsightPattern {
	pattern, err := m.store.GetPattern(category)
	if err != nil {
		log.WithError(err).WithField("category", category).Debug("no learned pattern available")
		return nil
	}
	if pattern == nil || pattern.ConfidenceScore < minActionableConfidence {
		return nil
	}
	return pattern
}

// commonSolutions extracts the most frequent structured solutions users
// reported when acting on insights of this category.
func (m *Matcher) commonSolutions(category insightsv1.Category) []string {
	rows, err := m.store.ActedFeedback(category, solutionSampleLimit)
	if err != nil {
		log.WithError(err).WithField("category", category).Debug("could not load acted feedback")
		return nil
	}

	counts := map[string]int{}
	for _, fb := range rows {
		if fb.ActionDetails.Status != pgtype.Present {
			continue
		}
		var details map[string]interface{}
		if err := json.Unmarshal(fb.ActionDetails.Bytes, &details); err != nil {
			continue
		}
		for _, key := range []string{"solution", "hotel_added", "action"} {
			if v, ok := details[key].(string); ok && v != "" {
				counts[v]++
				break
			}
		}
	}

	type solutionCount struct {
		solution string
		count    int
	}
	ranked := make([]solutionCount, 0, len(counts))
	for s, c := range counts {
		ranked = append(ranked, solutionCount{s, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].solution < ranked[j].solution
	})

	var top []string
	for i := 0; i < len(ranked) && i < commonSolutionLimit; i++ {
		top = append(top, ranked[i].solution)
	}
	return top
}

// DestinationStats aggregates how often each issue category fires for a
// destination and what users did about it.
type DestinationStats struct {
	Destination        string                      `json:"destination"`
	TotalTrips         int                         `json:"total_trips"`
	TotalInsights      int                         `json:"total_insights"`
	CommonIssues       map[insightsv1.Category]int `json:"common_issues"`
	ActionDistribution map[string]int              `json:"action_distribution"`
}

func (m *Matcher) DestinationStats(destination string) (*DestinationStats, error) {
	rows, err := m.store.FeedbackByDestination(destination, 0)
	if err != nil {
		return nil, fmt.Errorf("loading feedback for %s: %w", destination, err)
	}

	statsOut := &DestinationStats{
		Destination:        destination,
		TotalInsights:      len(rows),
		CommonIssues:       map[insightsv1.Category]int{},
		ActionDistribution: map[string]int{},
	}

	trips := map[string]bool{}
	for _, fb := range rows {
		trips[fb.TripID.String()] = true
		statsOut.CommonIssues[fb.Category]++
		statsOut.ActionDistribution[fb.ActionTaken]++
	}
	statsOut.TotalTrips = len(trips)

	return statsOut, nil
}

// firstFlightArrival finds the landing time of the earliest-ending flight.
func firstFlightArrival(elements []travelv1.ItineraryElement) *time.Time {
	var arrival *time.Time
	for _, e := range elements {
		if e.Type != travelv1.ElementFlight || e.EndTime == nil {
			continue
		}
		if arrival == nil || e.EndTime.Before(*arrival) {
			arrival = e.EndTime
		}
	}
	return arrival
}
