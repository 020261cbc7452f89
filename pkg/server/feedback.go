package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/api"
	"github.com/wayfarer-travel/wayfarer/pkg/insights/feedback"
)

func (s *Server) jsonRecordFeedback(w http.ResponseWriter, req *http.Request) {
	var submission feedback.Submission
	if err := json.NewDecoder(req.Body).Decode(&submission); err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	result, err := s.recorder.Record(submission)
	if err != nil {
		failureResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	feedbackRecordedMetric.WithLabelValues(
		string(submission.Category), string(submission.ActionTaken)).Inc()

	api.RespondWithJSON(http.StatusCreated, w, map[string]interface{}{
		"feedback":     result.Feedback,
		"sample_size":  result.SampleSize,
		"analysis_run": result.AnalysisRun,
	})
}

func (s *Server) jsonListPatterns(w http.ResponseWriter, req *http.Request) {
	category := insightsv1.Category(req.URL.Query().Get("category"))

	patternRows, err := s.patternStore.ListPatterns(category)
	if err != nil {
		log.WithError(err).Error("error listing patterns")
		failureResponse(w, http.StatusInternalServerError, "Could not list patterns")
		return
	}

	api.RespondWithJSON(http.StatusOK, w, patternRows)
}

func (s *Server) jsonAnalyzePatterns(w http.ResponseWriter, req *http.Request) {
	category := insightsv1.Category(req.URL.Query().Get("category"))

	results, err := s.analyzer.Analyze(category)
	if err != nil {
		log.WithError(err).Error("error analyzing patterns")
		failureResponse(w, http.StatusInternalServerError, "Pattern analysis failed")
		return
	}

	patternAnalysesMetric.Inc()
	api.RespondWithJSON(http.StatusOK, w, results)
}

func (s *Server) jsonDestinationStats(w http.ResponseWriter, req *http.Request) {
	destination := mux.Vars(req)["destination"]

	stats, err := s.matcher.DestinationStats(destination)
	if err != nil {
		log.WithError(err).WithField("destination", destination).Error("error loading destination stats")
		failureResponse(w, http.StatusInternalServerError, "Could not load destination stats")
		return
	}

	api.RespondWithJSON(http.StatusOK, w, stats)
}
