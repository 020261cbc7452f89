package feedback

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/db/models"
)

type fakeStore struct {
	rows       map[string]*models.InsightFeedback
	upsertErr  error
	countCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*models.InsightFeedback{}}
}

func (f *fakeStore) key(fb *models.InsightFeedback) string {
	return fmt.Sprintf("%s/%s/%s", fb.UserID, fb.TripID, fb.InsightID)
}

func (f *fakeStore) UpsertFeedback(fb *models.InsightFeedback) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.rows[f.key(fb)] = fb
	return nil
}

func (f *fakeStore) CountFeedback(category insightsv1.Category) (int64, error) {
	f.countCalls++
	var count int64
	for _, fb := range f.rows {
		if fb.Category == category {
			count++
		}
	}
	return count, nil
}

type fakeAnalyzer struct {
	calls []insightsv1.Category
	err   error
}

func (f *fakeAnalyzer) Analyze(category insightsv1.Category) (map[insightsv1.Category]models.InsightPattern, error) {
	f.calls = append(f.calls, category)
	return map[insightsv1.Category]models.InsightPattern{}, f.err
}

func validSubmission() Submission {
	return Submission{
		UserID:      uuid.New(),
		TripID:      uuid.New(),
		InsightID:   "accommodation_gap_arrival",
		Category:    insightsv1.CategoryAccommodationGap,
		Bucket:      insightsv1.BucketActionRequired,
		ActionTaken: insightsv1.FeedbackActed,
	}
}

func TestRecordStoresFeedback(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{}
	rating := 5

	sub := validSubmission()
	sub.Rating = &rating
	sub.ActionDetails = map[string]interface{}{"hotel_added": "airport hotel"}

	result, err := NewRecorder(store, analyzer).Record(sub)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.SampleSize)
	assert.False(t, result.AnalysisRun)
	require.Len(t, store.rows, 1)

	stored := result.Feedback
	assert.Equal(t, sub.UserID, stored.UserID)
	assert.Equal(t, string(insightsv1.FeedbackActed), stored.ActionTaken)
	assert.Equal(t, 5, *stored.Rating)
	assert.Contains(t, string(stored.ActionDetails.Bytes), "airport hotel")
}

func TestRecordValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Submission)
	}{
		{"missing user", func(s *Submission) { s.UserID = uuid.Nil }},
		{"missing trip", func(s *Submission) { s.TripID = uuid.Nil }},
		{"missing insight id", func(s *Submission) { s.InsightID = "" }},
		{"missing category", func(s *Submission) { s.Category = "" }},
		{"unknown action", func(s *Submission) { s.ActionTaken = "clicked" }},
		{"rating too low", func(s *Submission) { r := 0; s.Rating = &r }},
		{"rating too high", func(s *Submission) { r := 6; s.Rating = &r }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			sub := validSubmission()
			tc.mutate(&sub)

			_, err := NewRecorder(store, &fakeAnalyzer{}).Record(sub)
			require.Error(t, err)
			// Invalid input must never reach the store.
			assert.Empty(t, store.rows)
		})
	}
}

func TestRecordIsIdempotentPerNaturalKey(t *testing.T) {
	store := newFakeStore()
	recorder := NewRecorder(store, &fakeAnalyzer{})

	sub := validSubmission()
	_, err := recorder.Record(sub)
	require.NoError(t, err)

	// The user changes their mind: same key, different reaction.
	sub.ActionTaken = insightsv1.FeedbackDismissed
	result, err := recorder.Record(sub)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.SampleSize)
	require.Len(t, store.rows, 1)
	for _, fb := range store.rows {
		assert.Equal(t, string(insightsv1.FeedbackDismissed), fb.ActionTaken)
	}
}

func TestRecordTriggersAnalysisAtMilestones(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{}
	recorder := NewRecorder(store, analyzer)

	for i := 0; i < 26; i++ {
		sub := validSubmission()
		sub.InsightID = fmt.Sprintf("insight_%d", i)
		result, err := recorder.Record(sub)
		require.NoError(t, err)

		switch result.SampleSize {
		case 10, 25:
			assert.True(t, result.AnalysisRun, "expected analysis at count %d", result.SampleSize)
			assert.Equal(t, int(result.SampleSize), result.MilestoneHit)
		default:
			assert.False(t, result.AnalysisRun, "unexpected analysis at count %d", result.SampleSize)
		}
	}

	require.Len(t, analyzer.calls, 2)
	assert.Equal(t, insightsv1.CategoryAccommodationGap, analyzer.calls[0])
}

func TestRecordAnalysisFailureDoesNotFailWrite(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{err: fmt.Errorf("analysis exploded")}
	recorder := NewRecorder(store, analyzer)

	var result *Result
	for i := 0; i < 10; i++ {
		sub := validSubmission()
		sub.InsightID = fmt.Sprintf("insight_%d", i)
		var err error
		result, err = recorder.Record(sub)
		require.NoError(t, err)
	}

	assert.Equal(t, 10, result.MilestoneHit)
	assert.False(t, result.AnalysisRun)
	assert.Len(t, store.rows, 10)
}

func TestMilestoneSet(t *testing.T) {
	for _, m := range Milestones {
		assert.True(t, milestone(int64(m)))
	}
	for _, n := range []int64{0, 1, 9, 11, 99, 101, 999, 1001} {
		assert.False(t, milestone(n))
	}
}
