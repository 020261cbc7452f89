package knowledgebase

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/db"
	"github.com/wayfarer-travel/wayfarer/pkg/db/models"
)

// DBStore is the gorm-backed LearningStore, plus the review operations the
// API layer uses.
type DBStore struct {
	dbc *db.DB
}

func NewDBStore(dbc *db.DB) *DBStore {
	return &DBStore{dbc: dbc}
}

func (s *DBStore) ApprovedUnapplied() ([]models.KnowledgeLearning, error) {
	var learnings []models.KnowledgeLearning
	err := s.dbc.DB.
		Where("status = ? AND applied_to_kb = ?", insightsv1.LearningApproved, false).
		Order("confidence_score DESC").
		Find(&learnings).Error
	return learnings, err
}

func (s *DBStore) Approved() ([]models.KnowledgeLearning, error) {
	var learnings []models.KnowledgeLearning
	err := s.dbc.DB.
		Where("status = ?", insightsv1.LearningApproved).
		Order("confidence_score DESC").
		Find(&learnings).Error
	return learnings, err
}

func (s *DBStore) MarkApplied(id uuid.UUID, at time.Time) error {
	return s.dbc.DB.Model(&models.KnowledgeLearning{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"applied_to_kb":      true,
			"kb_last_updated_at": at,
		}).Error
}

// ListLearnings returns learnings newest first, filtered to one status when
// status is non-empty.
func (s *DBStore) ListLearnings(status insightsv1.LearningStatus) ([]models.KnowledgeLearning, error) {
	var learnings []models.KnowledgeLearning
	q := s.dbc.DB.Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&learnings).Error
	return learnings, err
}

// Review moves a pending learning to approved or rejected and records who
// decided. Learnings that already left pending are immutable.
func (s *DBStore) Review(id uuid.UUID, status insightsv1.LearningStatus, reviewer string) (*models.KnowledgeLearning, error) {
	if status != insightsv1.LearningApproved && status != insightsv1.LearningRejected {
		return nil, fmt.Errorf("invalid review status %q", status)
	}

	var learning models.KnowledgeLearning
	if err := s.dbc.DB.First(&learning, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if learning.Status != insightsv1.LearningPending {
		return nil, fmt.Errorf("learning %s already reviewed as %s", id, learning.Status)
	}

	now := time.Now().UTC()
	learning.Status = status
	learning.ReviewedBy = reviewer
	learning.ReviewedAt = &now

	if err := s.dbc.DB.Save(&learning).Error; err != nil {
		return nil, err
	}
	return &learning, nil
}

var ErrLearningNotFound = gorm.ErrRecordNotFound
