package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
)

var (
	insightsGeneratedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfarer_insights_generated_total",
		Help: "Number of insights generated, by bucket.",
	}, []string{"bucket"})

	feedbackRecordedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfarer_feedback_recorded_total",
		Help: "Number of feedback submissions recorded, by category and action.",
	}, []string{"category", "action"})

	patternAnalysesMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wayfarer_pattern_analyses_total",
		Help: "Number of pattern analysis passes triggered over the API.",
	})

	learningsAppliedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wayfarer_learnings_applied_total",
		Help: "Number of learnings merged into the knowledge base.",
	})
)

func recordInsightCounts(report insightsv1.Report, proactive []insightsv1.Insight) {
	insightsGeneratedMetric.WithLabelValues(string(insightsv1.BucketActionRequired)).
		Add(float64(len(report.ActionRequired)))
	insightsGeneratedMetric.WithLabelValues(string(insightsv1.BucketRecommendations)).
		Add(float64(len(report.Recommendations) + len(proactive)))
	insightsGeneratedMetric.WithLabelValues(string(insightsv1.BucketGoodToKnow)).
		Add(float64(len(report.GoodToKnow)))
}
