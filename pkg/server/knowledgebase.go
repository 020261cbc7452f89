package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/api"
	"github.com/wayfarer-travel/wayfarer/pkg/knowledgebase"
)

func (s *Server) jsonListLearnings(w http.ResponseWriter, req *http.Request) {
	status := insightsv1.LearningStatus(req.URL.Query().Get("status"))

	learnings, err := s.learningStore.ListLearnings(status)
	if err != nil {
		log.WithError(err).Error("error listing learnings")
		failureResponse(w, http.StatusInternalServerError, "Could not list learnings")
		return
	}

	api.RespondWithJSON(http.StatusOK, w, learnings)
}

type reviewLearningRequest struct {
	Approved bool   `json:"approved"`
	Reviewer string `json:"reviewer"`
}

func (s *Server) jsonReviewLearning(w http.ResponseWriter, req *http.Request) {
	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid learning id")
		return
	}

	var request reviewLearningRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if request.Reviewer == "" {
		failureResponse(w, http.StatusBadRequest, "Reviewer is required")
		return
	}

	status := insightsv1.LearningApproved
	if !request.Approved {
		status = insightsv1.LearningRejected
	}

	learning, err := s.learningStore.Review(id, status, request.Reviewer)
	if err != nil {
		if errors.Is(err, knowledgebase.ErrLearningNotFound) {
			failureResponse(w, http.StatusNotFound, "Learning not found")
			return
		}
		failureResponse(w, http.StatusConflict, err.Error())
		return
	}

	api.RespondWithJSON(http.StatusOK, w, learning)
}

func (s *Server) jsonApplyKnowledgeBase(w http.ResponseWriter, req *http.Request) {
	dryRun := req.URL.Query().Get("dry_run") == "true"

	report, err := s.updater.Apply(req.Context(), dryRun)
	if err != nil {
		log.WithError(err).Error("error applying learnings to knowledge base")
		failureResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !dryRun {
		learningsAppliedMetric.Add(float64(report.Applied))
	}

	api.RespondWithJSON(http.StatusOK, w, report)
}

func (s *Server) textKnowledgeBaseReport(w http.ResponseWriter, _ *http.Request) {
	report, err := s.updater.SummaryReport()
	if err != nil {
		log.WithError(err).Error("error generating learning report")
		failureResponse(w, http.StatusInternalServerError, "Could not generate report")
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report))
}
