package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	travelv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/travel/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/api"
	"github.com/wayfarer-travel/wayfarer/pkg/db/models"
	"github.com/wayfarer-travel/wayfarer/pkg/insights/detector"
)

// tripInsightsRequest carries the trip to analyze. Elements are optional:
// when omitted the trip's stored itinerary is loaded instead.
type tripInsightsRequest struct {
	Trip     travelv1.Trip               `json:"trip"`
	Elements []travelv1.ItineraryElement `json:"elements,omitempty"`
}

// tripInsightsResponse is the analyzeTrip envelope. Counts covers the three
// report buckets; proactive recommendations are listed separately and are
// not included in it.
type tripInsightsResponse struct {
	TripID uuid.UUID `json:"trip_id"`
	insightsv1.Report
	Counts    insightsv1.Counts    `json:"counts"`
	Proactive []insightsv1.Insight `json:"proactive_recommendations,omitempty"`
}

func (s *Server) jsonTripInsights(w http.ResponseWriter, req *http.Request) {
	tripID, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid trip id")
		return
	}

	var request tripInsightsRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	trip := request.Trip
	trip.ID = tripID

	elements := request.Elements
	if len(elements) == 0 {
		elements, err = s.loadTripElements(tripID)
		if err != nil {
			log.WithError(err).WithField("trip", tripID).Error("error loading trip elements")
			failureResponse(w, http.StatusInternalServerError, "Could not load trip itinerary")
			return
		}
	}

	report := detector.New(trip, elements).Analyze()
	if s.enhancer != nil {
		report = s.enhancer.Enhance(req.Context(), trip, elements, report)
	}

	response := tripInsightsResponse{
		TripID: tripID,
		Report: report,
		Counts: report.Counts(),
	}
	if s.matcher != nil {
		response.Proactive = s.matcher.ProactiveInsights(trip, elements)
	}

	recordInsightCounts(report, response.Proactive)

	api.RespondWithJSON(http.StatusOK, w, response)
}

func (s *Server) loadTripElements(tripID uuid.UUID) ([]travelv1.ItineraryElement, error) {
	var rows []models.TripElement
	if err := s.dbc.DB.Where("trip_id = ?", tripID).Order("start_time").Find(&rows).Error; err != nil {
		return nil, err
	}

	elements := make([]travelv1.ItineraryElement, 0, len(rows))
	for _, row := range rows {
		elements = append(elements, travelv1.ItineraryElement{
			ID:        row.ID,
			Type:      row.Type,
			Name:      row.Name,
			Location:  row.Location,
			StartTime: row.StartTime,
			EndTime:   row.EndTime,
			Amount:    row.Amount,
			Currency:  row.Currency,
		})
	}
	return elements, nil
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) jsonChat(w http.ResponseWriter, req *http.Request) {
	if s.agent == nil {
		failureResponse(w, http.StatusServiceUnavailable, "Chat agent is not configured")
		return
	}

	var request chatRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if request.Message == "" {
		failureResponse(w, http.StatusBadRequest, "Message is required")
		return
	}

	reply := s.agent.ProcessMessage(req.Context(), request.Message)
	api.RespondWithJSON(http.StatusOK, w, map[string]string{"reply": reply})
}
