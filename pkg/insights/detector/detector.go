// Package detector analyzes a trip's itinerary elements and flags genuine
// issues and opportunities. High signal, low noise: only actionable insights
// are surfaced. Detection is pure and deterministic; the same itinerary
// always produces the same report.
package detector

import (
	"fmt"
	"time"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	travelv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/travel/v1"
)

const (
	// Arriving or departing more than this many hours outside lodging
	// coverage is a genuine gap, not a layover.
	accommodationGapHours = 6

	// A ground transfer starting within this many hours of landing counts
	// as airport transportation.
	transportWindowHours = 4

	// Checkout-to-flight gaps inside this open interval are feasible but
	// risky.
	tightTimingMinHours = 1
	tightTimingMaxHours = 3

	// Trips shorter than this get no meal-planning nudge.
	missingMealsMinDays = 2
)

type Detector struct {
	trip           travelv1.Trip
	accommodations []travelv1.ItineraryElement
	flights        []travelv1.ItineraryElement
	transportation []travelv1.ItineraryElement
	dining         []travelv1.ItineraryElement
	activities     []travelv1.ItineraryElement
}

func New(trip travelv1.Trip, elements []travelv1.ItineraryElement) *Detector {
	d := &Detector{trip: trip}
	for _, e := range elements {
		switch e.Type {
		case travelv1.ElementAccommodation:
			d.accommodations = append(d.accommodations, e)
		case travelv1.ElementFlight:
			d.flights = append(d.flights, e)
		case travelv1.ElementTransportation:
			d.transportation = append(d.transportation, e)
		case travelv1.ElementDining:
			d.dining = append(d.dining, e)
		case travelv1.ElementActivity:
			d.activities = append(d.activities, e)
		}
	}
	return d
}

// Analyze runs every detection rule and returns the categorized report.
// Rules never suppress each other; a trip can have an accommodation gap and
// conflicting bookings at the same time. A missing timestamp on either side
// of a comparison suppresses that rule only.
func (d *Detector) Analyze() insightsv1.Report {
	report := insightsv1.Report{
		ActionRequired:  []insightsv1.Insight{},
		Recommendations: []insightsv1.Insight{},
		GoodToKnow:      []insightsv1.Insight{},
	}

	// Critical issues only.
	report.ActionRequired = append(report.ActionRequired, d.detectAccommodationGaps()...)
	report.ActionRequired = append(report.ActionRequired, d.detectConflictingBookings()...)
	report.ActionRequired = append(report.ActionRequired, d.detectMissingAirportTransportation()...)
	report.ActionRequired = append(report.ActionRequired, d.detectImpossibleLogistics()...)

	// Optimization opportunities.
	report.Recommendations = append(report.Recommendations, d.detectTightTiming()...)
	report.Recommendations = append(report.Recommendations, d.detectMissingMeals()...)

	// good_to_know is populated by the AI enhancement pass, not rules.

	return report
}

// arrivalTime is when the traveler actually arrives: the earliest flight
// landing, or the trip start when no flight carries a landing time.
func (d *Detector) arrivalTime() *time.Time {
	if f := earliestBy(d.flights, func(e travelv1.ItineraryElement) *time.Time { return e.EndTime }); f != nil {
		return f.EndTime
	}
	return d.trip.StartDate
}

// departureTime is when the traveler actually leaves: the latest flight
// departure, or the trip end.
func (d *Detector) departureTime() *time.Time {
	if f := latestBy(d.flights, func(e travelv1.ItineraryElement) *time.Time { return e.StartTime }); f != nil {
		return f.StartTime
	}
	return d.trip.EndDate
}

func (d *Detector) detectAccommodationGaps() []insightsv1.Insight {
	var insights []insightsv1.Insight

	if len(d.accommodations) == 0 || d.trip.StartDate == nil || d.trip.EndDate == nil {
		return insights
	}

	arrival := d.arrivalTime()
	departure := d.departureTime()

	// Uncovered hours between arrival and the first check-in.
	firstHotel := earliestBy(d.accommodations, func(e travelv1.ItineraryElement) *time.Time { return e.StartTime })
	if firstHotel != nil && arrival != nil {
		gapHours := firstHotel.StartTime.Sub(*arrival).Hours()
		if gapHours > accommodationGapHours {
			insights = append(insights, insightsv1.Insight{
				ID:       "accommodation_gap_arrival",
				Category: insightsv1.CategoryAccommodationGap,
				Severity: insightsv1.SeverityCritical,
				Title:    fmt.Sprintf("Missing accommodation (%s)", arrival.Format("Jan 2")),
				Description: fmt.Sprintf("You arrive %s but hotel check-in is %s. Need lodging for %d hours.",
					arrival.Format("Jan 2 at 3:04 PM"), firstHotel.StartTime.Format("Jan 2 at 3:04 PM"), int(gapHours)),
				Actions: []insightsv1.Action{
					{Label: "Extend Current Hotel", Action: "extend_booking", Params: map[string]interface{}{"element_id": firstHotel.ID.String()}},
					{Label: "Add Hotel", Action: "search_hotels", Params: map[string]interface{}{}},
					dismissAction(),
				},
			})
		}
	}

	// Uncovered hours between the last checkout and departure.
	lastHotel := latestBy(d.accommodations, func(e travelv1.ItineraryElement) *time.Time { return e.EndTime })
	if lastHotel != nil && departure != nil {
		gapHours := departure.Sub(*lastHotel.EndTime).Hours()
		if gapHours > accommodationGapHours {
			insights = append(insights, insightsv1.Insight{
				ID:       "accommodation_gap_departure",
				Category: insightsv1.CategoryAccommodationGap,
				Severity: insightsv1.SeverityCritical,
				Title:    "Accommodation gap before departure",
				Description: fmt.Sprintf("Hotel checkout is %s but departure is %s. %d hour gap.",
					lastHotel.EndTime.Format("Jan 2 at 3:04 PM"), departure.Format("Jan 2 at 3:04 PM"), int(gapHours)),
				Actions: []insightsv1.Action{
					{Label: "Extend Current Hotel", Action: "extend_booking", Params: map[string]interface{}{"element_id": lastHotel.ID.String()}},
					{Label: "Add Day Room", Action: "search_hotels", Params: map[string]interface{}{}},
					dismissAction(),
				},
			})
		}
	}

	return insights
}

func (d *Detector) detectConflictingBookings() []insightsv1.Insight {
	var insights []insightsv1.Insight

	for i, hotel1 := range d.accommodations {
		for _, hotel2 := range d.accommodations[i+1:] {
			if bookingsConflict(hotel1, hotel2) {
				insights = append(insights, insightsv1.Insight{
					ID:          fmt.Sprintf("conflicting_hotels_%s_%s", hotel1.ID, hotel2.ID),
					Category:    insightsv1.CategoryConflictingBooking,
					Severity:    insightsv1.SeverityCritical,
					Title:       "Conflicting hotel bookings",
					Description: fmt.Sprintf("%s and %s overlap on the same dates.", nameOr(hotel1, "Hotel 1"), nameOr(hotel2, "Hotel 2")),
					Actions: []insightsv1.Action{
						{Label: "Review Bookings", Action: "review", Params: map[string]interface{}{}},
						dismissAction(),
					},
				})
			}
		}
	}

	for i, flight1 := range d.flights {
		for _, flight2 := range d.flights[i+1:] {
			if bookingsConflict(flight1, flight2) {
				insights = append(insights, insightsv1.Insight{
					ID:          fmt.Sprintf("conflicting_flights_%s_%s", flight1.ID, flight2.ID),
					Category:    insightsv1.CategoryConflictingBooking,
					Severity:    insightsv1.SeverityCritical,
					Title:       "Conflicting flight bookings",
					Description: "Two flights booked at overlapping times.",
					Actions: []insightsv1.Action{
						{Label: "Review Flights", Action: "review", Params: map[string]interface{}{}},
						dismissAction(),
					},
				})
			}
		}
	}

	return insights
}

func (d *Detector) detectMissingAirportTransportation() []insightsv1.Insight {
	var insights []insightsv1.Insight

	if len(d.flights) == 0 || len(d.accommodations) == 0 {
		return insights
	}

	firstFlight := earliestBy(d.flights, func(e travelv1.ItineraryElement) *time.Time { return e.EndTime })
	if firstFlight == nil {
		return insights
	}
	flightArrival := *firstFlight.EndTime

	firstHotel := earliestBy(d.accommodations, func(e travelv1.ItineraryElement) *time.Time { return e.StartTime })

	hasTransport := false
	for _, t := range d.transportation {
		if t.StartTime == nil {
			continue
		}
		offset := t.StartTime.Sub(flightArrival).Hours()
		if offset < 0 {
			offset = -offset
		}
		if offset < transportWindowHours {
			hasTransport = true
			break
		}
	}

	if !hasTransport && firstHotel != nil {
		insights = append(insights, insightsv1.Insight{
			ID:          "missing_airport_transport",
			Category:    insightsv1.CategoryMissingTransportation,
			Severity:    insightsv1.SeverityCritical,
			Title:       "No airport transportation scheduled",
			Description: fmt.Sprintf("Flight lands at %s but no ride, rental or shuttle is booked to the hotel.", flightArrival.Format("3:04 PM")),
			Actions: []insightsv1.Action{
				{Label: "Add Transportation", Action: "add_element", Params: map[string]interface{}{"type": string(travelv1.ElementTransportation)}},
				dismissAction(),
			},
		})
	}

	return insights
}

func (d *Detector) detectImpossibleLogistics() []insightsv1.Insight {
	var insights []insightsv1.Insight

	firstFlight := earliestBy(d.flights, func(e travelv1.ItineraryElement) *time.Time { return e.EndTime })
	if firstFlight == nil {
		return insights
	}
	arrival := *firstFlight.EndTime

	events := append(append([]travelv1.ItineraryElement{}, d.dining...), d.activities...)
	for _, element := range events {
		if element.StartTime == nil || !element.StartTime.Before(arrival) {
			continue
		}
		insights = append(insights, insightsv1.Insight{
			ID:       fmt.Sprintf("impossible_timing_%s", element.ID),
			Category: insightsv1.CategoryImpossibleLogistics,
			Severity: insightsv1.SeverityCritical,
			Title:    fmt.Sprintf("%s before arrival", nameOr(element, "Event")),
			Description: fmt.Sprintf("You have %s scheduled at %s but you don't arrive until %s.",
				element.Name, element.StartTime.Format("3:04 PM"), arrival.Format("3:04 PM")),
			Actions: []insightsv1.Action{
				{Label: "Reschedule", Action: "edit_element", Params: map[string]interface{}{"element_id": element.ID.String()}},
				{Label: "Delete", Action: "delete_element", Params: map[string]interface{}{"element_id": element.ID.String()}},
				dismissAction(),
			},
		})
	}

	return insights
}

func (d *Detector) detectTightTiming() []insightsv1.Insight {
	var insights []insightsv1.Insight

	if len(d.accommodations) == 0 || len(d.flights) == 0 {
		return insights
	}

	lastHotel := latestBy(d.accommodations, func(e travelv1.ItineraryElement) *time.Time { return e.EndTime })
	if lastHotel == nil {
		return insights
	}
	checkout := *lastHotel.EndTime

	// The next flight departing after checkout.
	var nextFlight *travelv1.ItineraryElement
	for i := range d.flights {
		f := d.flights[i]
		if f.StartTime == nil || !f.StartTime.After(checkout) {
			continue
		}
		if nextFlight == nil || f.StartTime.Before(*nextFlight.StartTime) {
			nextFlight = &d.flights[i]
		}
	}
	if nextFlight == nil {
		return insights
	}

	gapHours := nextFlight.StartTime.Sub(checkout).Hours()
	if gapHours > tightTimingMinHours && gapHours < tightTimingMaxHours {
		insights = append(insights, insightsv1.Insight{
			ID:       "tight_timing_checkout_flight",
			Category: insightsv1.CategoryTightTiming,
			Severity: insightsv1.SeverityWarning,
			Title:    "Tight timing on departure day",
			Description: fmt.Sprintf("Checkout at %s, flight at %s - only %.1f hours. Consider early checkout or a later flight.",
				checkout.Format("3:04 PM"), nextFlight.StartTime.Format("3:04 PM"), gapHours),
			Actions: []insightsv1.Action{
				{Label: "Adjust Checkout", Action: "edit_element", Params: map[string]interface{}{"element_id": lastHotel.ID.String()}},
				dismissAction(),
			},
		})
	}

	return insights
}

func (d *Detector) detectMissingMeals() []insightsv1.Insight {
	var insights []insightsv1.Insight

	tripDays := d.trip.Duration()
	if tripDays >= missingMealsMinDays && len(d.dining) == 0 {
		insights = append(insights, insightsv1.Insight{
			ID:          "missing_meals",
			Category:    insightsv1.CategoryMissingElement,
			Severity:    insightsv1.SeverityInfo,
			Title:       "No dining reservations",
			Description: fmt.Sprintf("%d-day trip with no restaurant reservations. Consider planning meals in advance.", tripDays),
			Actions: []insightsv1.Action{
				{Label: "Add Dining", Action: "add_element", Params: map[string]interface{}{"type": string(travelv1.ElementDining)}},
				dismissAction(),
			},
		})
	}

	return insights
}

// bookingsConflict reports whether two bookings overlap in time. Intervals
// are half-open; back-to-back bookings do not conflict. Missing timestamps
// on either booking fail open.
func bookingsConflict(b1, b2 travelv1.ItineraryElement) bool {
	if b1.StartTime == nil || b1.EndTime == nil || b2.StartTime == nil || b2.EndTime == nil {
		return false
	}
	return b1.StartTime.Before(*b2.EndTime) && b2.StartTime.Before(*b1.EndTime)
}

// earliestBy returns the element with the earliest non-nil timestamp per the
// given accessor, or nil when none carries one.
func earliestBy(elements []travelv1.ItineraryElement, ts func(travelv1.ItineraryElement) *time.Time) *travelv1.ItineraryElement {
	var best *travelv1.ItineraryElement
	for i := range elements {
		t := ts(elements[i])
		if t == nil {
			continue
		}
		if best == nil || t.Before(*ts(*best)) {
			best = &elements[i]
		}
	}
	return best
}

func latestBy(elements []travelv1.ItineraryElement, ts func(travelv1.ItineraryElement) *time.Time) *travelv1.ItineraryElement {
	var best *travelv1.ItineraryElement
	for i := range elements {
		t := ts(elements[i])
		if t == nil {
			continue
		}
		if best == nil || t.After(*ts(*best)) {
			best = &elements[i]
		}
	}
	return best
}

func nameOr(e travelv1.ItineraryElement, fallback string) string {
	if e.Name != "" {
		return e.Name
	}
	return fallback
}

func dismissAction() insightsv1.Action {
	return insightsv1.Action{Label: "Dismiss", Action: "dismiss", Params: map[string]interface{}{}}
}
