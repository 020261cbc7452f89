// Package patterns implements the aggregation half of the insight
// self-learning loop: feedback rows are rolled up into per-category,
// confidence-scored patterns, strong patterns are distilled into reviewable
// learnings, and existing patterns are matched against new itineraries for
// proactive warnings.
package patterns

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"
	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/db/models"
)

const (
	// Patterns below this confidence never change system behavior.
	minActionableConfidence = 60

	// Learnings are only drafted from patterns at or above this confidence.
	learningConfidenceThreshold = 70

	// Acceptance thresholds for the recommendation policy.
	upgradeAcceptanceRate = 80
	disableAcceptanceRate = 20
	disableDismissalRate  = 70

	// Rating fallbacks when acceptance is inconclusive.
	upgradeRating   = 4.0
	downgradeRating = 2.0

	maxSampleComments = 5
)

// Store is the persistence surface the analyzer and matcher share. DBStore
// is the gorm-backed implementation.
type Store interface {
	// ListFeedback returns all feedback rows, filtered to one category
	// when category is non-empty.
	ListFeedback(category insightsv1.Category) ([]models.InsightFeedback, error)
	UpsertPattern(pattern *models.InsightPattern) error
	GetPattern(category insightsv1.Category) (*models.InsightPattern, error)
	PendingLearningExists(category insightsv1.Category) (bool, error)
	CreateLearning(learning *models.KnowledgeLearning) error
	// ActedFeedback returns up to limit rows where the user acted on an
	// insight of the given category.
	ActedFeedback(category insightsv1.Category, limit int) ([]models.InsightFeedback, error)
	// FeedbackByDestination returns up to limit rows whose trip
	// destination matches (case-insensitive substring).
	FeedbackByDestination(destination string, limit int) ([]models.InsightFeedback, error)
}

// Analyzer recomputes patterns from the full feedback sample. Every pattern
// row is derived state: recomputing from the same feedback always yields the
// same confidence and recommendation.
type Analyzer struct {
	store Store
}

func NewAnalyzer(store Store) *Analyzer {
	return &Analyzer{store: store}
}

// Analyze aggregates feedback into pattern rows, one per category, and
// drafts a learning for any pattern strong enough to justify a persistent
// behavior change. Passing an empty category analyzes everything.
func (a *Analyzer) Analyze(category insightsv1.Category) (map[insightsv1.Category]models.InsightPattern, error) {
	feedback, err := a.store.ListFeedback(category)
	if err != nil {
		return nil, fmt.Errorf("loading feedback: %w", err)
	}

	if len(feedback) == 0 {
		log.WithField("category", category).Info("no feedback data to analyze")
		return map[insightsv1.Category]models.InsightPattern{}, nil
	}

	byCategory := map[insightsv1.Category][]models.InsightFeedback{}
	for _, fb := range feedback {
		byCategory[fb.Category] = append(byCategory[fb.Category], fb)
	}

	results := make(map[insightsv1.Category]models.InsightPattern, len(byCategory))
	for cat, rows := range byCategory {
		pattern := ComputePattern(cat, rows)

		if err := a.store.UpsertPattern(&pattern); err != nil {
			return nil, fmt.Errorf("storing pattern for %s: %w", cat, err)
		}
		results[cat] = pattern

		if err := a.maybeDraftLearning(cat, pattern, rows); err != nil {
			return nil, err
		}
	}

	log.Infof("analyzed feedback patterns for %d categories", len(results))
	return results, nil
}

// maybeDraftLearning creates a pending learning when a pattern is confident
// enough and its recommendation is upgrade or disable. keep and downgrade
// never produce learnings: there is not enough signal to justify a persistent
// change. At most one pending learning exists per category at a time.
func (a *Analyzer) maybeDraftLearning(cat insightsv1.Category, pattern models.InsightPattern, rows []models.InsightFeedback) error {
	learning := DraftLearning(pattern, rows)
	if learning == nil {
		return nil
	}

	pending, err := a.store.PendingLearningExists(cat)
	if err != nil {
		return fmt.Errorf("checking pending learnings for %s: %w", cat, err)
	}
	if pending {
		log.WithField("category", cat).Debug("pending learning already exists, skipping draft")
		return nil
	}

	if err := a.store.CreateLearning(learning); err != nil {
		return fmt.Errorf("creating learning for %s: %w", cat, err)
	}
	log.WithFields(log.Fields{"category": cat, "title": learning.Title}).Info("drafted knowledge base learning")
	return nil
}

// ComputePattern derives the aggregate pattern for one category from its
// feedback rows. Pure: no clock input beyond the LastCalculatedAt stamp,
// which is metadata, not an input to any derived value.
func ComputePattern(category insightsv1.Category, feedback []models.InsightFeedback) models.InsightPattern {
	totalShown := len(feedback)
	totalDismissed := 0
	totalActed := 0
	totalRated := 0
	helpfulFlagged, helpfulTrue := 0, 0
	accurateFlagged, accurateTrue := 0, 0
	var ratings stats.Float64Data

	for _, fb := range feedback {
		switch insightsv1.FeedbackAction(fb.ActionTaken) {
		case insightsv1.FeedbackDismissed:
			totalDismissed++
		case insightsv1.FeedbackActed:
			totalActed++
		}
		if fb.Rating != nil {
			totalRated++
			ratings = append(ratings, float64(*fb.Rating))
		}
		if fb.Helpful != nil {
			helpfulFlagged++
			if *fb.Helpful {
				helpfulTrue++
			}
		}
		if fb.Accurate != nil {
			accurateFlagged++
			if *fb.Accurate {
				accurateTrue++
			}
		}
	}

	acceptanceRate := percentage(totalActed, totalShown)
	dismissalRate := percentage(totalDismissed, totalShown)

	// Helpful/accurate rates are computed over the records that carry the
	// flag, so sparse survey responses don't read as disapproval.
	var helpfulPct *float64
	if helpfulFlagged > 0 {
		v := percentage(helpfulTrue, helpfulFlagged)
		helpfulPct = &v
	}
	accuratePct := 0.0
	if accurateFlagged > 0 {
		accuratePct = percentage(accurateTrue, accurateFlagged)
	}

	var averageRating *float64
	if len(ratings) > 0 {
		mean, err := stats.Mean(ratings)
		if err == nil {
			averageRating = &mean
		}
	}

	confidence := ConfidenceScore(totalShown, acceptanceRate, averageRating, helpfulPct)
	recommendation := determineRecommendation(acceptanceRate, dismissalRate, averageRating, confidence)

	bucket := string(insightsv1.BucketRecommendations)
	if totalShown > 0 {
		bucket = feedback[0].Bucket
	}

	pattern := models.InsightPattern{
		Category:           category,
		Bucket:             bucket,
		TotalShown:         totalShown,
		TotalDismissed:     totalDismissed,
		TotalActed:         totalActed,
		TotalRated:         totalRated,
		AcceptanceRate:     round2(acceptanceRate),
		DismissalRate:      round2(dismissalRate),
		AccuratePercentage: round2(accuratePct),
		ConfidenceScore:    round2(confidence),
		Recommendation:     recommendation,
		AutoApply:          acceptanceRate > upgradeAcceptanceRate && confidence > 80,
		SampleSize:         totalShown,
		LastCalculatedAt:   time.Now().UTC(),
	}
	if helpfulPct != nil {
		pattern.HelpfulPercentage = round2(*helpfulPct)
	}
	if averageRating != nil {
		rounded := round2(*averageRating)
		pattern.AverageRating = &rounded
	}
	return pattern
}

// ConfidenceScore blends statistical trust in the sample size with how
// decisive the observed behavior is, on a 0-100 scale.
//
// The size term grows logarithmically and caps at 90: trust in a rate grows
// sub-linearly with more observations (10 samples ~ 50, 100 ~ 70, 1000 ~ 90).
// The performance term averages whichever clarity measures are available:
// acceptance decisiveness (a rate near 0 or 100 is a clear signal either
// way), the mean rating rescaled from 1-5 to 0-100, and the helpful rate
// when any record carries the flag.
// Final score = 0.6*size + 0.4*performance, clamped to [0,100].
//
// The constants are a fixed compatibility contract; recomputing over the
// same sample must always produce the same value.
func ConfidenceScore(sampleSize int, acceptanceRate float64, averageRating, helpfulPercentage *float64) float64 {
	sizeConfidence := math.Min(90, 30+20*math.Log10(float64(sampleSize)+1))

	clarity := math.Max(acceptanceRate, 100-acceptanceRate)
	performanceScores := stats.Float64Data{clarity}
	if averageRating != nil {
		performanceScores = append(performanceScores, (*averageRating-1)/4*100)
	}
	if helpfulPercentage != nil {
		performanceScores = append(performanceScores, *helpfulPercentage)
	}

	performanceConfidence, err := stats.Mean(performanceScores)
	if err != nil {
		performanceConfidence = 50
	}

	confidence := sizeConfidence*0.6 + performanceConfidence*0.4
	return math.Min(100, math.Max(0, confidence))
}

// determineRecommendation decides the policy for an insight category: below
// the confidence floor nothing changes; clear acceptance upgrades, clear
// rejection downgrades or disables, with ratings as the tie-breaker.
func determineRecommendation(acceptanceRate, dismissalRate float64, averageRating *float64, confidence float64) insightsv1.Recommendation {
	if confidence < minActionableConfidence {
		return insightsv1.RecommendationKeep
	}

	if acceptanceRate > upgradeAcceptanceRate {
		return insightsv1.RecommendationUpgrade
	}

	if acceptanceRate < disableAcceptanceRate {
		if dismissalRate > disableDismissalRate {
			return insightsv1.RecommendationDisable
		}
		return insightsv1.RecommendationDowngrade
	}

	if averageRating != nil {
		if *averageRating >= upgradeRating {
			return insightsv1.RecommendationUpgrade
		}
		if *averageRating < downgradeRating {
			return insightsv1.RecommendationDowngrade
		}
	}

	return insightsv1.RecommendationKeep
}

// DraftLearning distills a strong pattern into a pending learning, or
// returns nil when the pattern doesn't justify one.
func DraftLearning(pattern models.InsightPattern, feedback []models.InsightFeedback) *models.KnowledgeLearning {
	if pattern.ConfidenceScore < learningConfidenceThreshold {
		return nil
	}

	var title, description string
	switch pattern.Recommendation {
	case insightsv1.RecommendationUpgrade:
		title = fmt.Sprintf("Upgrade %s to higher priority", pattern.Category)
		description = fmt.Sprintf("Users accept this insight %.0f%% of the time%s. Consider making it more prominent.",
			pattern.AcceptanceRate, ratingClause(pattern.AverageRating))
	case insightsv1.RecommendationDisable:
		title = fmt.Sprintf("Disable or revise %s detection", pattern.Category)
		description = fmt.Sprintf("Users dismiss this insight %.0f%% of the time. Consider disabling or improving the detection logic.",
			pattern.DismissalRate)
	default:
		// keep/downgrade: no strong learning.
		return nil
	}

	learning := &models.KnowledgeLearning{
		LearningType:    "rule_adjustment",
		Category:        pattern.Category,
		Title:           title,
		Description:     description,
		RuleBlock:       generateRuleBlock(pattern),
		SampleComments:  pq.StringArray(sampleComments(feedback, maxSampleComments)),
		ConfidenceScore: pattern.ConfidenceScore,
		SampleSize:      pattern.SampleSize,
		Status:          insightsv1.LearningPending,
	}

	evidence := map[string]interface{}{
		"metrics":        pattern,
		"common_actions": actionDistribution(feedback),
	}
	if raw, err := json.Marshal(evidence); err == nil {
		if err := learning.Evidence.Set(raw); err != nil {
			log.WithError(err).Warn("could not attach evidence to learning")
		}
	}

	return learning
}

func ratingClause(averageRating *float64) string {
	if averageRating == nil {
		return ""
	}
	return fmt.Sprintf(" with a %.1f/5 rating", *averageRating)
}

// knowledgeRule is the machine-readable rule block attached to a learning
// when it's inserted into the knowledge document.
type knowledgeRule struct {
	Trigger     string `yaml:"trigger"`
	Condition   string `yaml:"condition"`
	Action      string `yaml:"action"`
	Priority    string `yaml:"priority"`
	AutoApply   bool   `yaml:"auto_apply"`
	LearnedFrom string `yaml:"learned_from"`
	LastUpdated string `yaml:"last_updated"`
}

func generateRuleBlock(pattern models.InsightPattern) string {
	priority := "medium"
	switch pattern.Recommendation {
	case insightsv1.RecommendationUpgrade:
		priority = "high"
	case insightsv1.RecommendationDowngrade:
		priority = "low"
	}

	condition := fmt.Sprintf("pattern_confidence > %.0f\nacceptance_rate = %.0f%%\n", pattern.ConfidenceScore, pattern.AcceptanceRate)
	if pattern.AverageRating != nil {
		condition += fmt.Sprintf("average_rating = %.1f/5\n", *pattern.AverageRating)
	}

	rule := knowledgeRule{
		Trigger:     "insights_analysis",
		Condition:   condition,
		Action:      string(pattern.Recommendation),
		Priority:    priority,
		AutoApply:   pattern.AutoApply,
		LearnedFrom: fmt.Sprintf("%d user interactions", pattern.SampleSize),
		LastUpdated: pattern.LastCalculatedAt.Format(time.RFC3339),
	}

	out, err := yaml.Marshal(rule)
	if err != nil {
		log.WithError(err).Warn("could not render rule block")
		return ""
	}

	return fmt.Sprintf("#### Rule: %s\n```yaml\n%s```", pattern.Category, string(out))
}

func sampleComments(feedback []models.InsightFeedback, limit int) []string {
	var comments []string
	for _, fb := range feedback {
		if fb.Comment == nil || *fb.Comment == "" {
			continue
		}
		comments = append(comments, *fb.Comment)
		if len(comments) == limit {
			break
		}
	}
	return comments
}

func actionDistribution(feedback []models.InsightFeedback) map[string]int {
	actions := map[string]int{}
	for _, fb := range feedback {
		actions[fb.ActionTaken]++
	}
	return actions
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
