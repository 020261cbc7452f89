// Package feedback records user reactions to surfaced insights and triggers
// pattern analysis when a category's sample crosses a milestone.
package feedback

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/db/models"
)

// Milestones are the per-category sample sizes at which a full pattern
// re-analysis runs. Log-spaced so early categories get analyzed quickly and
// mature ones aren't recomputed on every submission.
var Milestones = []int{10, 25, 50, 100, 250, 500, 1000}

// Store is the persistence surface the recorder needs.
type Store interface {
	// UpsertFeedback inserts the row, or updates it in place when a row
	// with the same (user, trip, insight) key already exists.
	UpsertFeedback(fb *models.InsightFeedback) error
	// CountFeedback returns how many feedback rows exist for a category.
	CountFeedback(category insightsv1.Category) (int64, error)
}

// Analyzer re-derives patterns for a category. Satisfied by
// patterns.Analyzer.
type Analyzer interface {
	Analyze(category insightsv1.Category) (map[insightsv1.Category]models.InsightPattern, error)
}

// Submission is one user reaction to an insight, as reported by the client.
type Submission struct {
	UserID    uuid.UUID           `json:"user_id"`
	TripID    uuid.UUID           `json:"trip_id"`
	InsightID string              `json:"insight_id"`
	Category  insightsv1.Category `json:"insight_type"`
	Bucket    insightsv1.Bucket   `json:"insight_bucket"`

	ActionTaken   insightsv1.FeedbackAction `json:"action_taken"`
	ActionDetails map[string]interface{}    `json:"action_details,omitempty"`

	Helpful  *bool   `json:"helpful,omitempty"`
	Accurate *bool   `json:"accurate,omitempty"`
	Rating   *int    `json:"rating,omitempty"`
	Comment  *string `json:"comment,omitempty"`

	TripDestination  string `json:"trip_destination,omitempty"`
	TripDurationDays int    `json:"trip_duration_days,omitempty"`
	UserTier         string `json:"user_tier,omitempty"`
}

// Result reports what Record did: the stored row, the category's sample size
// after the write, and whether the write landed on a milestone and triggered
// analysis.
type Result struct {
	Feedback     *models.InsightFeedback
	SampleSize   int64
	AnalysisRun  bool
	MilestoneHit int
}

type Recorder struct {
	store    Store
	analyzer Analyzer
}

func NewRecorder(store Store, analyzer Analyzer) *Recorder {
	return &Recorder{store: store, analyzer: analyzer}
}

// Record validates and persists one feedback submission. Resubmitting the
// same (user, trip, insight) key overwrites the earlier reaction instead of
// creating a second row. When the category's count lands exactly on a
// milestone, patterns for that category are recomputed before returning; an
// analysis failure is logged but never fails the write.
func (r *Recorder) Record(sub Submission) (*Result, error) {
	if err := validate(sub); err != nil {
		return nil, err
	}

	fb := &models.InsightFeedback{
		UserID:           sub.UserID,
		TripID:           sub.TripID,
		InsightID:        sub.InsightID,
		Category:         sub.Category,
		Bucket:           string(sub.Bucket),
		ActionTaken:      string(sub.ActionTaken),
		Helpful:          sub.Helpful,
		Accurate:         sub.Accurate,
		Rating:           sub.Rating,
		Comment:          sub.Comment,
		TripDestination:  sub.TripDestination,
		TripDurationDays: sub.TripDurationDays,
		UserTier:         sub.UserTier,
		ActionAt:         time.Now().UTC(),
	}
	if len(sub.ActionDetails) > 0 {
		raw, err := json.Marshal(sub.ActionDetails)
		if err != nil {
			return nil, errors.WithMessage(err, "encoding action details")
		}
		if err := fb.ActionDetails.Set(raw); err != nil {
			return nil, errors.WithMessage(err, "encoding action details")
		}
	} else if err := fb.ActionDetails.Set(nil); err != nil {
		return nil, errors.WithMessage(err, "encoding action details")
	}

	if err := r.store.UpsertFeedback(fb); err != nil {
		return nil, errors.WithMessage(err, "storing feedback")
	}

	count, err := r.store.CountFeedback(sub.Category)
	if err != nil {
		return nil, errors.WithMessage(err, "counting feedback")
	}

	result := &Result{Feedback: fb, SampleSize: count}
	if milestone(count) {
		result.MilestoneHit = int(count)
		log.WithFields(log.Fields{"category": sub.Category, "count": count}).Info("feedback milestone reached, analyzing patterns")
		if _, err := r.analyzer.Analyze(sub.Category); err != nil {
			log.WithError(err).WithField("category", sub.Category).Error("pattern analysis failed")
		} else {
			result.AnalysisRun = true
		}
	}

	return result, nil
}

func validate(sub Submission) error {
	if sub.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required")
	}
	if sub.TripID == uuid.Nil {
		return fmt.Errorf("trip_id is required")
	}
	if sub.InsightID == "" {
		return fmt.Errorf("insight_id is required")
	}
	if sub.Category == "" {
		return fmt.Errorf("insight_type is required")
	}
	switch sub.ActionTaken {
	case insightsv1.FeedbackDismissed, insightsv1.FeedbackActed, insightsv1.FeedbackRated, insightsv1.FeedbackIgnored:
	default:
		return fmt.Errorf("invalid action_taken %q", sub.ActionTaken)
	}
	if sub.Rating != nil && (*sub.Rating < 1 || *sub.Rating > 5) {
		return fmt.Errorf("rating must be between 1 and 5, got %d", *sub.Rating)
	}
	return nil
}

func milestone(count int64) bool {
	for _, m := range Milestones {
		if count == int64(m) {
			return true
		}
	}
	return false
}
