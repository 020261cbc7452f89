package v1

import (
	"time"

	"github.com/google/uuid"
)

// ElementType identifies what kind of booking an itinerary element is.
type ElementType string

const (
	ElementFlight         ElementType = "flight"
	ElementAccommodation  ElementType = "accommodation"
	ElementTransportation ElementType = "transportation"
	ElementDining         ElementType = "dining"
	ElementActivity       ElementType = "activity"
)

// Trip is the summary of a trip as the itinerary analyzer sees it. It is a
// read-only snapshot owned by the CRUD layer.
type Trip struct {
	ID          uuid.UUID  `json:"id"`
	Destination string     `json:"destination"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// ItineraryElement is one booked unit on a trip: a flight, a hotel stay, a
// ground transfer, a restaurant reservation or an activity. Start/end times
// are nullable because many bookings are imported before they're confirmed.
type ItineraryElement struct {
	ID        uuid.UUID   `json:"id"`
	Type      ElementType `json:"type"`
	Name      string      `json:"name"`
	Location  string      `json:"location,omitempty"`
	StartTime *time.Time  `json:"start_time,omitempty"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Amount    *float64    `json:"amount,omitempty"`
	Currency  string      `json:"currency,omitempty"`
}

// Duration returns the trip length in whole days, or 0 when either date is
// missing.
func (t *Trip) Duration() int {
	if t.StartDate == nil || t.EndDate == nil {
		return 0
	}
	return int(t.EndDate.Sub(*t.StartDate).Hours() / 24)
}
