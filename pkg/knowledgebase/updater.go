// Package knowledgebase merges approved learnings into the markdown knowledge
// document that steers itinerary analysis, with a backup taken before every
// write.
package knowledgebase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/db/models"
)

// SectionMarker is the heading new learnings are inserted directly below.
// A document without it is rejected rather than appended to blindly.
const SectionMarker = "## LEARNING & IMPROVEMENT"

// LearningStore is the persistence surface for learnings under review.
type LearningStore interface {
	// ApprovedUnapplied returns approved learnings not yet merged into the
	// document, highest confidence first.
	ApprovedUnapplied() ([]models.KnowledgeLearning, error)
	// Approved returns all approved learnings, highest confidence first.
	Approved() ([]models.KnowledgeLearning, error)
	// MarkApplied records that a learning has been merged.
	MarkApplied(id uuid.UUID, at time.Time) error
}

// DocumentStore abstracts where the knowledge document lives. FileStore keeps
// it on local disk; GCSStore keeps it in a cloud bucket.
type DocumentStore interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, content []byte) error
	// Backup copies the current document aside and returns the backup
	// location.
	Backup(ctx context.Context) (string, error)
}

// AppliedLearning identifies one learning merged by an Apply pass.
type AppliedLearning struct {
	ID       uuid.UUID           `json:"id"`
	Title    string              `json:"title"`
	Category insightsv1.Category `json:"category"`
}

// Report summarizes one Apply pass.
type Report struct {
	Applied    int               `json:"applied"`
	Learnings  []AppliedLearning `json:"learnings"`
	DryRun     bool              `json:"dry_run"`
	BackupPath string            `json:"backup_path,omitempty"`
}

type Updater struct {
	learnings LearningStore
	document  DocumentStore
}

func NewUpdater(learnings LearningStore, document DocumentStore) *Updater {
	return &Updater{learnings: learnings, document: document}
}

// Apply merges every approved, unapplied learning into the knowledge
// document. The sequence is strict: render everything in memory, back up the
// current document, write the new one, then mark learnings applied. A backup
// failure aborts before anything is written. With dryRun the document and the
// learnings are left untouched and only the report is produced.
func (u *Updater) Apply(ctx context.Context, dryRun bool) (*Report, error) {
	learnings, err := u.learnings.ApprovedUnapplied()
	if err != nil {
		return nil, errors.WithMessage(err, "loading approved learnings")
	}

	report := &Report{DryRun: dryRun, Learnings: []AppliedLearning{}}
	if len(learnings) == 0 {
		log.Info("no approved learnings to apply")
		return report, nil
	}

	content, err := u.document.Read(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "reading knowledge document")
	}

	doc := string(content)
	for _, learning := range learnings {
		updated, err := insertLearning(doc, learning)
		if err != nil {
			return nil, err
		}
		doc = updated
		report.Applied++
		report.Learnings = append(report.Learnings, AppliedLearning{
			ID:       learning.ID,
			Title:    learning.Title,
			Category: learning.Category,
		})
	}

	if dryRun {
		return report, nil
	}

	backupPath, err := u.document.Backup(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "backing up knowledge document")
	}
	report.BackupPath = backupPath

	if err := u.document.Write(ctx, []byte(doc)); err != nil {
		return nil, errors.WithMessage(err, "writing knowledge document")
	}

	now := time.Now().UTC()
	for _, learning := range learnings {
		if err := u.learnings.MarkApplied(learning.ID, now); err != nil {
			// The document write already happened. Surface the error so
			// the operator reconciles instead of silently re-applying
			// next pass.
			return report, errors.WithMessagef(err, "marking learning %s applied", learning.ID)
		}
	}

	log.Infof("applied %d learnings to knowledge document, backup at %s", report.Applied, backupPath)
	return report, nil
}

// insertLearning places a rendered learning entry directly below the learning
// section marker.
func insertLearning(doc string, learning models.KnowledgeLearning) (string, error) {
	idx := strings.Index(doc, SectionMarker)
	if idx < 0 {
		return "", fmt.Errorf("knowledge document has no %q section", SectionMarker)
	}
	insertAt := idx + len(SectionMarker)

	entry := formatLearningEntry(learning)
	return doc[:insertAt] + "\n\n" + entry + doc[insertAt:], nil
}

// evidenceMetrics recovers the pattern snapshot frozen into a learning when
// it was drafted.
func evidenceMetrics(learning models.KnowledgeLearning) models.InsightPattern {
	var evidence struct {
		Metrics models.InsightPattern `json:"metrics"`
	}
	if len(learning.Evidence.Bytes) > 0 {
		if err := json.Unmarshal(learning.Evidence.Bytes, &evidence); err != nil {
			log.WithError(err).WithField("learning", learning.ID).Warn("could not decode learning evidence")
		}
	}
	return evidence.Metrics
}

func formatLearningEntry(learning models.KnowledgeLearning) string {
	metrics := evidenceMetrics(learning)

	var b strings.Builder
	fmt.Fprintf(&b, "### LEARNED PATTERN: %s\n", learning.Title)
	fmt.Fprintf(&b, "**Category:** %s\n", learning.Category)
	fmt.Fprintf(&b, "**Confidence:** %.0f%%\n", learning.ConfidenceScore)
	fmt.Fprintf(&b, "**Sample Size:** %d user interactions\n", learning.SampleSize)
	fmt.Fprintf(&b, "**Learned:** %s\n\n", learning.CreatedAt.UTC().Format("2006-01-02"))

	fmt.Fprintf(&b, "**Description:**\n%s\n\n", learning.Description)

	b.WriteString("**Evidence:**\n")
	fmt.Fprintf(&b, "- Acceptance Rate: %.0f%%\n", metrics.AcceptanceRate)
	fmt.Fprintf(&b, "- Dismissal Rate: %.0f%%\n", metrics.DismissalRate)
	if metrics.AverageRating != nil {
		fmt.Fprintf(&b, "- Average Rating: %.1f/5\n", *metrics.AverageRating)
	}
	fmt.Fprintf(&b, "- Helpful: %.0f%%\n", metrics.HelpfulPercentage)
	fmt.Fprintf(&b, "- Accurate: %.0f%%\n\n", metrics.AccuratePercentage)

	fmt.Fprintf(&b, "**User Comments:**\n%s\n\n", formatComments(learning.SampleComments))

	recommendation := string(metrics.Recommendation)
	if recommendation == "" {
		recommendation = "n/a"
	}
	fmt.Fprintf(&b, "**Recommendation:** %s\n", recommendation)

	if learning.RuleBlock != "" {
		fmt.Fprintf(&b, "\n%s\n", learning.RuleBlock)
	}

	b.WriteString("\n---\n")
	return b.String()
}

func formatComments(comments []string) string {
	if len(comments) == 0 {
		return "_No comments provided_"
	}

	var lines []string
	for i, comment := range comments {
		if i == 3 {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %q", i+1, comment))
	}
	return strings.Join(lines, "\n")
}

// SummaryReport renders all approved learnings as markdown for human review
// before an Apply pass.
func (u *Updater) SummaryReport() (string, error) {
	learnings, err := u.learnings.Approved()
	if err != nil {
		return "", errors.WithMessage(err, "loading approved learnings")
	}

	if len(learnings) == 0 {
		return "# Insights Learning Report\n\nNo approved learnings to report.\n", nil
	}

	var b strings.Builder
	b.WriteString("# Insights Learning Report\n")
	fmt.Fprintf(&b, "**Generated:** %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "**Total Approved Learnings:** %d\n\n---\n\n", len(learnings))

	for _, learning := range learnings {
		metrics := evidenceMetrics(learning)

		status := "Pending Application"
		if learning.AppliedToKB {
			status = "Applied"
		}

		fmt.Fprintf(&b, "## %s\n\n", learning.Title)
		fmt.Fprintf(&b, "**Category:** %s\n", learning.Category)
		fmt.Fprintf(&b, "**Type:** %s\n", learning.LearningType)
		fmt.Fprintf(&b, "**Confidence:** %.0f%%\n", learning.ConfidenceScore)
		fmt.Fprintf(&b, "**Sample Size:** %d\n", learning.SampleSize)
		fmt.Fprintf(&b, "**Status:** %s\n\n", status)

		fmt.Fprintf(&b, "### Description\n%s\n\n", learning.Description)

		b.WriteString("### Performance Metrics\n")
		fmt.Fprintf(&b, "- Acceptance Rate: %.0f%%\n", metrics.AcceptanceRate)
		fmt.Fprintf(&b, "- Dismissal Rate: %.0f%%\n", metrics.DismissalRate)
		if metrics.AverageRating != nil {
			fmt.Fprintf(&b, "- Average Rating: %.1f/5\n", *metrics.AverageRating)
		}
		fmt.Fprintf(&b, "- Recommendation: **%s**\n\n", strings.ToUpper(string(metrics.Recommendation)))

		fmt.Fprintf(&b, "### User Feedback\n%s\n\n---\n\n", formatComments(learning.SampleComments))
	}

	return b.String(), nil
}
