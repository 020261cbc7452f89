package patterns

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/db/models"
)

type memStore struct {
	feedback  []models.InsightFeedback
	patterns  map[insightsv1.Category]models.InsightPattern
	learnings []*models.KnowledgeLearning
}

func newMemStore(feedback []models.InsightFeedback) *memStore {
	return &memStore{
		feedback: feedback,
		patterns: map[insightsv1.Category]models.InsightPattern{},
	}
}

func (m *memStore) ListFeedback(category insightsv1.Category) ([]models.InsightFeedback, error) {
	if category == "" {
		return m.feedback, nil
	}
	var out []models.InsightFeedback
	for _, fb := range m.feedback {
		if fb.Category == category {
			out = append(out, fb)
		}
	}
	return out, nil
}

func (m *memStore) UpsertPattern(pattern *models.InsightPattern) error {
	m.patterns[pattern.Category] = *pattern
	return nil
}

func (m *memStore) GetPattern(category insightsv1.Category) (*models.InsightPattern, error) {
	p, ok := m.patterns[category]
	if !ok {
		return nil, fmt.Errorf("no pattern for %s", category)
	}
	return &p, nil
}

func (m *memStore) PendingLearningExists(category insightsv1.Category) (bool, error) {
	for _, l := range m.learnings {
		if l.Category == category && l.Status == insightsv1.LearningPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateLearning(learning *models.KnowledgeLearning) error {
	m.learnings = append(m.learnings, learning)
	return nil
}

func (m *memStore) ActedFeedback(category insightsv1.Category, limit int) ([]models.InsightFeedback, error) {
	var out []models.InsightFeedback
	for _, fb := range m.feedback {
		if fb.Category == category && fb.ActionTaken == string(insightsv1.FeedbackActed) {
			out = append(out, fb)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) FeedbackByDestination(destination string, limit int) ([]models.InsightFeedback, error) {
	return m.feedback, nil
}

// feedbackSample builds n rows for one category: acted of them accepted,
// dismissed of them dismissed, the rest ignored. Ratings alternate around
// the given mean when rated > 0.
func feedbackSample(category insightsv1.Category, n, acted, dismissed, rated int, ratingMean float64, helpful *bool) []models.InsightFeedback {
	rows := make([]models.InsightFeedback, 0, n)
	for i := 0; i < n; i++ {
		fb := models.InsightFeedback{
			UserID:    uuid.New(),
			TripID:    uuid.New(),
			InsightID: fmt.Sprintf("insight_%d", i),
			Category:  category,
			Bucket:    string(insightsv1.BucketActionRequired),
		}
		switch {
		case i < acted:
			fb.ActionTaken = string(insightsv1.FeedbackActed)
		case i < acted+dismissed:
			fb.ActionTaken = string(insightsv1.FeedbackDismissed)
		default:
			fb.ActionTaken = string(insightsv1.FeedbackIgnored)
		}
		if i < rated {
			// Alternate one point either side of the mean.
			r := int(ratingMean)
			if i%2 == 0 {
				r = int(ratingMean + 0.5)
			}
			fb.Rating = &r
		}
		fb.Helpful = helpful
		rows = append(rows, fb)
	}
	return rows
}

func TestComputePatternRates(t *testing.T) {
	rows := feedbackSample(insightsv1.CategoryAccommodationGap, 10, 6, 2, 0, 0, nil)
	pattern := ComputePattern(insightsv1.CategoryAccommodationGap, rows)

	assert.Equal(t, 10, pattern.TotalShown)
	assert.Equal(t, 6, pattern.TotalActed)
	assert.Equal(t, 2, pattern.TotalDismissed)
	assert.Equal(t, 10, pattern.SampleSize)
	assert.InDelta(t, 60.0, pattern.AcceptanceRate, 0.001)
	assert.InDelta(t, 20.0, pattern.DismissalRate, 0.001)
	assert.Nil(t, pattern.AverageRating)
}

func TestComputePatternIsDeterministic(t *testing.T) {
	rows := feedbackSample(insightsv1.CategoryTightTiming, 50, 30, 10, 20, 4, nil)

	first := ComputePattern(insightsv1.CategoryTightTiming, rows)
	second := ComputePattern(insightsv1.CategoryTightTiming, rows)

	// LastCalculatedAt is metadata, not a derived value.
	second.LastCalculatedAt = first.LastCalculatedAt
	assert.Equal(t, first, second)
}

func TestConfidenceMonotonicInSampleSize(t *testing.T) {
	// Holding the rates fixed, more observations never reduce confidence.
	prev := 0.0
	for _, n := range []int{4, 10, 25, 50, 100, 250, 500, 1000, 5000} {
		acted := n * 3 / 4
		conf := ConfidenceScore(n, 75, nil, nil)
		assert.GreaterOrEqual(t, conf, prev, "confidence dropped at n=%d (acted=%d)", n, acted)
		prev = conf
	}

	// The sample-size term caps out rather than growing without bound.
	assert.LessOrEqual(t, ConfidenceScore(1000000, 75, nil, nil), 100.0)
}

func TestConfidenceIgnoresUnavailableMeasures(t *testing.T) {
	rating := 4.5
	helpful := 90.0

	base := ConfidenceScore(100, 85, nil, nil)
	withRating := ConfidenceScore(100, 85, &rating, nil)
	withBoth := ConfidenceScore(100, 85, &rating, &helpful)

	// Each available measure shifts the blend; none of them crashes or
	// zeroes the score when missing.
	assert.Greater(t, base, 0.0)
	assert.NotEqual(t, base, withRating)
	assert.NotEqual(t, withRating, withBoth)
}

func TestRecommendationPolicy(t *testing.T) {
	rating := func(v float64) *float64 { return &v }

	tests := []struct {
		name       string
		acceptance float64
		dismissal  float64
		rating     *float64
		confidence float64
		expected   insightsv1.Recommendation
	}{
		{"insufficient confidence", 90, 0, nil, 59, insightsv1.RecommendationKeep},
		{"high acceptance upgrades", 85, 5, nil, 75, insightsv1.RecommendationUpgrade},
		{"low acceptance high dismissal disables", 5, 80, nil, 75, insightsv1.RecommendationDisable},
		{"low acceptance moderate dismissal downgrades", 15, 40, nil, 75, insightsv1.RecommendationDowngrade},
		{"mid acceptance good rating upgrades", 50, 10, rating(4.2), 75, insightsv1.RecommendationUpgrade},
		{"mid acceptance bad rating downgrades", 50, 10, rating(1.5), 75, insightsv1.RecommendationDowngrade},
		{"mid acceptance mid rating keeps", 50, 10, rating(3.0), 75, insightsv1.RecommendationKeep},
		{"mid acceptance no rating keeps", 50, 10, nil, 75, insightsv1.RecommendationKeep},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := determineRecommendation(tc.acceptance, tc.dismissal, tc.rating, tc.confidence)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestPatternPromotion(t *testing.T) {
	// 100 interactions, 85% acted, rated 4.5 on average: a clear upgrade
	// signal with enough confidence to draft a learning.
	rows := feedbackSample(insightsv1.CategoryAccommodationGap, 100, 85, 5, 100, 4, nil)
	store := newMemStore(rows)

	results, err := NewAnalyzer(store).Analyze(insightsv1.CategoryAccommodationGap)
	require.NoError(t, err)

	pattern, ok := results[insightsv1.CategoryAccommodationGap]
	require.True(t, ok)
	assert.Equal(t, insightsv1.RecommendationUpgrade, pattern.Recommendation)
	assert.GreaterOrEqual(t, pattern.ConfidenceScore, float64(learningConfidenceThreshold))

	require.Len(t, store.learnings, 1)
	learning := store.learnings[0]
	assert.Equal(t, insightsv1.LearningPending, learning.Status)
	assert.Equal(t, "rule_adjustment", learning.LearningType)
	assert.Contains(t, learning.Title, "Upgrade")
	assert.Equal(t, 100, learning.SampleSize)
	assert.Contains(t, learning.RuleBlock, "```yaml")
}

func TestAutoApplyRequiresHighConfidenceAndAcceptance(t *testing.T) {
	helpful := true

	// A large decisive sample clears both bars.
	large := feedbackSample(insightsv1.CategoryAccommodationGap, 1000, 850, 50, 1000, 4, &helpful)
	pattern := ComputePattern(insightsv1.CategoryAccommodationGap, large)
	assert.Equal(t, insightsv1.RecommendationUpgrade, pattern.Recommendation)
	assert.Greater(t, pattern.ConfidenceScore, 80.0)
	assert.True(t, pattern.AutoApply)

	// The same rates on 100 samples upgrade but do not auto-apply: the
	// joint acceptance+confidence condition is stricter than either.
	small := feedbackSample(insightsv1.CategoryAccommodationGap, 100, 85, 5, 100, 4, &helpful)
	pattern = ComputePattern(insightsv1.CategoryAccommodationGap, small)
	assert.Equal(t, insightsv1.RecommendationUpgrade, pattern.Recommendation)
	assert.False(t, pattern.AutoApply)
}

func TestDisablePatternDraftsLearning(t *testing.T) {
	rows := feedbackSample(insightsv1.CategoryMissingElement, 100, 5, 80, 0, 0, nil)
	store := newMemStore(rows)

	results, err := NewAnalyzer(store).Analyze(insightsv1.CategoryMissingElement)
	require.NoError(t, err)

	pattern := results[insightsv1.CategoryMissingElement]
	assert.Equal(t, insightsv1.RecommendationDisable, pattern.Recommendation)

	require.Len(t, store.learnings, 1)
	assert.Contains(t, store.learnings[0].Title, "Disable or revise")
}

func TestWeakPatternsProduceNoLearning(t *testing.T) {
	// Three interactions is nowhere near enough evidence.
	rows := feedbackSample(insightsv1.CategoryTightTiming, 3, 2, 1, 0, 0, nil)
	store := newMemStore(rows)

	results, err := NewAnalyzer(store).Analyze("")
	require.NoError(t, err)

	pattern := results[insightsv1.CategoryTightTiming]
	assert.Equal(t, insightsv1.RecommendationKeep, pattern.Recommendation)
	assert.Empty(t, store.learnings)
}

func TestAnalyzeDoesNotStackPendingLearnings(t *testing.T) {
	rows := feedbackSample(insightsv1.CategoryAccommodationGap, 100, 85, 5, 100, 4, nil)
	store := newMemStore(rows)
	analyzer := NewAnalyzer(store)

	_, err := analyzer.Analyze(insightsv1.CategoryAccommodationGap)
	require.NoError(t, err)
	_, err = analyzer.Analyze(insightsv1.CategoryAccommodationGap)
	require.NoError(t, err)

	assert.Len(t, store.learnings, 1)
}

func TestAnalyzeEmptyFeedback(t *testing.T) {
	store := newMemStore(nil)
	results, err := NewAnalyzer(store).Analyze("")
	require.NoError(t, err)
	assert.Empty(t, results)
}
