package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/lib/pq"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	travelv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/travel/v1"
)

// TripElement is one booked unit on a trip. Owned by the CRUD layer; the
// insight pipeline only ever reads these.
type TripElement struct {
	ID        uuid.UUID            `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	TripID    uuid.UUID            `json:"trip_id" gorm:"type:uuid;not null;index"`
	Type      travelv1.ElementType `json:"type" gorm:"not null;index"`
	Name      string               `json:"name" gorm:"not null"`
	Location  string               `json:"location"`
	StartTime *time.Time           `json:"start_time,omitempty"`
	EndTime   *time.Time           `json:"end_time,omitempty"`
	Amount    *float64             `json:"amount,omitempty"`
	Currency  string               `json:"currency"`
}

// InsightFeedback stores one durable row per user reaction to a surfaced
// insight. The (user, trip, insight) tuple is the natural key: repeated
// submissions upsert rather than duplicate, so client retries can never
// inflate sample counts.
type InsightFeedback struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_feedback_natural_key"`
	TripID    uuid.UUID `json:"trip_id" gorm:"type:uuid;not null;uniqueIndex:idx_feedback_natural_key"`
	InsightID string    `json:"insight_id" gorm:"not null;uniqueIndex:idx_feedback_natural_key"`

	Category Category `json:"category" gorm:"column:insight_category;not null;index"`
	Bucket   string   `json:"bucket" gorm:"column:insight_bucket;not null"`

	// ActionTaken is one of dismissed, acted, rated, ignored.
	ActionTaken string `json:"action_taken" gorm:"not null"`

	// ActionDetails holds which button was clicked and any structured
	// follow-up the client chose to report (e.g. which hotel was added).
	ActionDetails pgtype.JSONB `json:"action_details,omitempty" gorm:"type:jsonb"`

	Helpful  *bool   `json:"helpful,omitempty"`
	Accurate *bool   `json:"accurate,omitempty"`
	Rating   *int    `json:"rating,omitempty"`
	Comment  *string `json:"comment,omitempty" gorm:"column:user_comment"`

	// Trip context snapshot at the time the insight was shown.
	TripDestination  string `json:"trip_destination"`
	TripDurationDays int    `json:"trip_duration_days"`
	UserTier         string `json:"user_tier"`

	ActionAt time.Time `json:"action_at"`
}

// Category aliases the insight category enumeration so model columns and the
// API layer share one set of values.
type Category = insightsv1.Category

// InsightPattern is the aggregate, confidence-scored summary of all feedback
// for one insight category. One row per category, fully recomputed from the
// feedback set on every analysis pass.
type InsightPattern struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Category Category `json:"category" gorm:"column:insight_category;not null;uniqueIndex"`
	Bucket   string   `json:"bucket" gorm:"column:insight_bucket;not null"`

	TotalShown     int `json:"total_shown"`
	TotalDismissed int `json:"total_dismissed"`
	TotalActed     int `json:"total_acted"`
	TotalRated     int `json:"total_rated"`

	AcceptanceRate     float64  `json:"acceptance_rate"`
	DismissalRate      float64  `json:"dismissal_rate"`
	AverageRating      *float64 `json:"average_rating,omitempty"`
	HelpfulPercentage  float64  `json:"helpful_percentage"`
	AccuratePercentage float64  `json:"accurate_percentage"`

	ConfidenceScore float64                   `json:"confidence_score"`
	Recommendation  insightsv1.Recommendation `json:"recommendation"`
	AutoApply       bool                      `json:"auto_apply"`
	SampleSize      int                       `json:"sample_size"`

	LastCalculatedAt time.Time `json:"last_calculated_at"`
}

// KnowledgeLearning is a candidate change to system behavior distilled from a
// pattern, pending human review before it is merged into the knowledge
// document.
type KnowledgeLearning struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// LearningType is rule_adjustment or new_rule.
	LearningType string   `json:"learning_type" gorm:"not null"`
	Category     Category `json:"category" gorm:"not null;index"`
	Title        string   `json:"title" gorm:"not null"`
	Description  string   `json:"description" gorm:"not null"`

	// RuleBlock is the generated rule description inserted into the
	// knowledge document alongside the learning entry.
	RuleBlock string `json:"rule_block" gorm:"column:rule_block"`

	// Evidence snapshots the pattern metrics and action distribution that
	// justified this learning, frozen at draft time.
	Evidence       pgtype.JSONB   `json:"evidence" gorm:"type:jsonb"`
	SampleComments pq.StringArray `json:"sample_comments" gorm:"type:text[]"`

	ConfidenceScore float64 `json:"confidence_score"`
	SampleSize      int     `json:"sample_size"`

	Status     insightsv1.LearningStatus `json:"status" gorm:"not null;default:pending;index"`
	ReviewedBy string                    `json:"reviewed_by"`
	ReviewedAt *time.Time                `json:"reviewed_at,omitempty"`

	AppliedToKB     bool       `json:"applied_to_kb" gorm:"not null;default:false"`
	KBLastUpdatedAt *time.Time `json:"kb_last_updated_at,omitempty"`
}
