// Package server exposes the insight pipeline over HTTP.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	metricsprom "github.com/slok/go-http-metrics/metrics/prometheus"
	httpmetrics "github.com/slok/go-http-metrics/middleware"
	middlewarestd "github.com/slok/go-http-metrics/middleware/std"

	"github.com/wayfarer-travel/wayfarer/pkg/ai"
	"github.com/wayfarer-travel/wayfarer/pkg/api"
	"github.com/wayfarer-travel/wayfarer/pkg/currency"
	"github.com/wayfarer-travel/wayfarer/pkg/db"
	"github.com/wayfarer-travel/wayfarer/pkg/insights/feedback"
	"github.com/wayfarer-travel/wayfarer/pkg/insights/patterns"
	"github.com/wayfarer-travel/wayfarer/pkg/knowledgebase"
)

type Server struct {
	listenAddr  string
	metricsAddr string

	dbc *db.DB

	enhancer *ai.Enhancer
	agent    *ai.Agent

	recorder     *feedback.Recorder
	analyzer     *patterns.Analyzer
	matcher      *patterns.Matcher
	patternStore *patterns.DBStore

	learningStore *knowledgebase.DBStore
	updater       *knowledgebase.Updater

	currency *currency.Service

	httpServer *http.Server
}

func NewServer(
	listenAddr string,
	metricsAddr string,
	dbc *db.DB,
	enhancer *ai.Enhancer,
	agent *ai.Agent,
	recorder *feedback.Recorder,
	analyzer *patterns.Analyzer,
	matcher *patterns.Matcher,
	patternStore *patterns.DBStore,
	learningStore *knowledgebase.DBStore,
	updater *knowledgebase.Updater,
	currencySvc *currency.Service,
) *Server {
	return &Server{
		listenAddr:    listenAddr,
		metricsAddr:   metricsAddr,
		dbc:           dbc,
		enhancer:      enhancer,
		agent:         agent,
		recorder:      recorder,
		analyzer:      analyzer,
		matcher:       matcher,
		patternStore:  patternStore,
		learningStore: learningStore,
		updater:       updater,
		currency:      currencySvc,
	}
}

func (s *Server) router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/health", s.jsonHealth).Methods(http.MethodGet)

	router.HandleFunc("/api/trips/{id}/insights", s.jsonTripInsights).Methods(http.MethodPost)

	router.HandleFunc("/api/insights/feedback", s.jsonRecordFeedback).Methods(http.MethodPost)
	router.HandleFunc("/api/insights/patterns", s.jsonListPatterns).Methods(http.MethodGet)
	router.HandleFunc("/api/insights/patterns/analyze", s.jsonAnalyzePatterns).Methods(http.MethodPost)
	router.HandleFunc("/api/insights/learnings", s.jsonListLearnings).Methods(http.MethodGet)
	router.HandleFunc("/api/insights/learnings/{id}/approve", s.jsonReviewLearning).Methods(http.MethodPost)
	router.HandleFunc("/api/insights/destinations/{destination}/stats", s.jsonDestinationStats).Methods(http.MethodGet)

	router.HandleFunc("/api/knowledge-base/apply", s.jsonApplyKnowledgeBase).Methods(http.MethodPost)
	router.HandleFunc("/api/knowledge-base/report", s.textKnowledgeBaseReport).Methods(http.MethodGet)

	router.HandleFunc("/api/currency/convert", s.jsonConvertCurrency).Methods(http.MethodGet)
	router.HandleFunc("/api/currency/supported", s.jsonSupportedCurrencies).Methods(http.MethodGet)

	router.HandleFunc("/api/chat", s.jsonChat).Methods(http.MethodPost)

	return router
}

// Serve blocks, running the API listener and, when a metrics address is
// configured, a second listener exposing prometheus metrics.
func (s *Server) Serve() {
	handler := http.Handler(s.router())

	mdlw := httpmetrics.New(httpmetrics.Config{
		Recorder: metricsprom.NewRecorder(metricsprom.Config{}),
	})
	handler = middlewarestd.Handler("", mdlw, handler)

	if s.metricsAddr != "" {
		go func() {
			metricsMux := http.NewServeMux()
			metricsMux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(s.metricsAddr, metricsMux); err != http.ErrServerClosed {
				log.WithError(err).Error("metrics server exited")
			}
		}()
	}

	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: handler,
	}

	log.Infof("serving insights API on %s", s.listenAddr)

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("server exited")
	}
}

func (s *Server) GetHTTPServer() *http.Server {
	return s.httpServer
}

func (s *Server) jsonHealth(w http.ResponseWriter, _ *http.Request) {
	api.RespondWithJSON(http.StatusOK, w, map[string]string{"status": "ok"})
}

func failureResponse(w http.ResponseWriter, code int, message string) {
	api.RespondWithJSON(code, w, map[string]interface{}{
		"code":    code,
		"message": message,
	})
}
