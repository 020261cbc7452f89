package patterns

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"

	"github.com/wayfarer-travel/wayfarer/pkg/apis/cache"
	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/db"
	"github.com/wayfarer-travel/wayfarer/pkg/db/models"
)

// patternCacheTTL is deliberately short: patterns only change on analysis
// passes, but a stale read during one is harmless since every row is fully
// recomputed.
const patternCacheTTL = 5 * time.Minute

// DBStore is the gorm-backed Store. An optional cache fronts pattern reads,
// which the matcher issues on every trip analysis.
type DBStore struct {
	dbc   *db.DB
	cache cache.Cache
}

func NewDBStore(dbc *db.DB, cacheClient cache.Cache) *DBStore {
	return &DBStore{dbc: dbc, cache: cacheClient}
}

func (s *DBStore) ListFeedback(category insightsv1.Category) ([]models.InsightFeedback, error) {
	var rows []models.InsightFeedback
	q := s.dbc.DB
	if category != "" {
		q = q.Where("insight_category = ?", category)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *DBStore) UpsertPattern(pattern *models.InsightPattern) error {
	err := s.dbc.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "insight_category"}},
		UpdateAll: true,
	}).Create(pattern).Error
	if err != nil {
		return err
	}

	if s.cache != nil {
		if raw, merr := json.Marshal(pattern); merr == nil {
			if cerr := s.cache.Set(patternCacheKey(pattern.Category), raw, patternCacheTTL); cerr != nil {
				log.WithError(cerr).Warn("could not refresh pattern cache")
			}
		}
	}
	return nil
}

func (s *DBStore) GetPattern(category insightsv1.Category) (*models.InsightPattern, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(patternCacheKey(category)); err == nil && len(raw) > 0 {
			var cached models.InsightPattern
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	var pattern models.InsightPattern
	if err := s.dbc.DB.Where("insight_category = ?", category).First(&pattern).Error; err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(&pattern); err == nil {
			if cerr := s.cache.Set(patternCacheKey(category), raw, patternCacheTTL); cerr != nil {
				log.WithError(cerr).Warn("could not populate pattern cache")
			}
		}
	}
	return &pattern, nil
}

// ListPatterns returns all pattern rows, filtered to one category when
// non-empty. Used by the HTTP listing endpoint; always reads the database.
func (s *DBStore) ListPatterns(category insightsv1.Category) ([]models.InsightPattern, error) {
	var rows []models.InsightPattern
	q := s.dbc.DB.Order("insight_category")
	if category != "" {
		q = q.Where("insight_category = ?", category)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *DBStore) PendingLearningExists(category insightsv1.Category) (bool, error) {
	var count int64
	err := s.dbc.DB.Model(&models.KnowledgeLearning{}).
		Where("category = ? AND status = ?", category, insightsv1.LearningPending).
		Count(&count).Error
	return count > 0, err
}

func (s *DBStore) CreateLearning(learning *models.KnowledgeLearning) error {
	return s.dbc.DB.Create(learning).Error
}

func (s *DBStore) ActedFeedback(category insightsv1.Category, limit int) ([]models.InsightFeedback, error) {
	var rows []models.InsightFeedback
	q := s.dbc.DB.
		Where("insight_category = ? AND action_taken = ?", category, insightsv1.FeedbackActed)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *DBStore) FeedbackByDestination(destination string, limit int) ([]models.InsightFeedback, error) {
	var rows []models.InsightFeedback
	q := s.dbc.DB.Where("trip_destination ILIKE ?", "%"+destination+"%")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func patternCacheKey(category insightsv1.Category) string {
	return fmt.Sprintf("pattern/%s", category)
}
