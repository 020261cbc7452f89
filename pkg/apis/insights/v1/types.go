package v1

// Severity is the urgency tier of a single insight.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Bucket is the output grouping an insight is surfaced under. Severity maps
// 1:1 onto buckets: critical insights land in action_required, warnings in
// recommendations, info in good_to_know.
type Bucket string

const (
	BucketActionRequired  Bucket = "action_required"
	BucketRecommendations Bucket = "recommendations"
	BucketGoodToKnow      Bucket = "good_to_know"
)

// Category tags an insight with the detection rule (or generative path) that
// produced it. Feedback and learned patterns key off these values, so they
// are part of the persisted contract.
type Category string

const (
	CategoryAccommodationGap      Category = "accommodation_gap"
	CategoryConflictingBooking    Category = "conflicting_booking"
	CategoryMissingTransportation Category = "missing_transportation"
	CategoryImpossibleLogistics   Category = "impossible_logistics"
	CategoryTightTiming           Category = "tight_timing"
	CategoryMissingElement        Category = "missing_element"
	CategoryLearnedPattern        Category = "learned_pattern"
	CategoryRecommendation        Category = "recommendation"
)

// Action is one button offered alongside an insight.
type Action struct {
	Label  string                 `json:"label"`
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

// LearnedFrom records the provenance of an insight that was synthesized from
// a learned pattern rather than a deterministic rule.
type LearnedFrom struct {
	SampleSize  int     `json:"sample_size"`
	Confidence  float64 `json:"confidence"`
	SuccessRate float64 `json:"success_rate,omitempty"`
}

// Insight is a single surfaced recommendation or warning about a trip.
// Insights are value objects: built fresh on every analysis call and never
// persisted, only user reactions to them are.
type Insight struct {
	ID          string       `json:"id"`
	Category    Category     `json:"type"`
	Severity    Severity     `json:"severity"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Actions     []Action     `json:"actions"`
	LearnedFrom *LearnedFrom `json:"learned_from,omitempty"`
}

// Report is the combined analysis result for one trip, keyed by bucket.
type Report struct {
	ActionRequired  []Insight `json:"action_required"`
	Recommendations []Insight `json:"recommendations"`
	GoodToKnow      []Insight `json:"good_to_know"`
}

// Counts summarizes a report for the API response envelope.
type Counts struct {
	ActionRequired  int `json:"action_required"`
	Recommendations int `json:"recommendations"`
	GoodToKnow      int `json:"good_to_know"`
	Total           int `json:"total"`
}

func (r *Report) Counts() Counts {
	c := Counts{
		ActionRequired:  len(r.ActionRequired),
		Recommendations: len(r.Recommendations),
		GoodToKnow:      len(r.GoodToKnow),
	}
	c.Total = c.ActionRequired + c.Recommendations + c.GoodToKnow
	return c
}

// FeedbackAction enumerates how a user reacted to a surfaced insight.
type FeedbackAction string

const (
	FeedbackDismissed FeedbackAction = "dismissed"
	FeedbackActed     FeedbackAction = "acted"
	FeedbackRated     FeedbackAction = "rated"
	FeedbackIgnored   FeedbackAction = "ignored"
)

// Recommendation is the policy decision produced by pattern analysis for an
// insight category.
type Recommendation string

const (
	RecommendationUpgrade   Recommendation = "upgrade"
	RecommendationKeep      Recommendation = "keep"
	RecommendationDowngrade Recommendation = "downgrade"
	RecommendationDisable   Recommendation = "disable"
)

// LearningStatus tracks a learning through its review lifecycle.
type LearningStatus string

const (
	LearningPending  LearningStatus = "pending"
	LearningApproved LearningStatus = "approved"
	LearningRejected LearningStatus = "rejected"
)
