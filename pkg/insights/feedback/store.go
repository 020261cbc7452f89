package feedback

import (
	"gorm.io/gorm/clause"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/db"
	"github.com/wayfarer-travel/wayfarer/pkg/db/models"
)

// DBStore is the gorm-backed Store.
type DBStore struct {
	dbc *db.DB
}

func NewDBStore(dbc *db.DB) *DBStore {
	return &DBStore{dbc: dbc}
}

func (s *DBStore) UpsertFeedback(fb *models.InsightFeedback) error {
	return s.dbc.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "trip_id"},
			{Name: "insight_id"},
		},
		UpdateAll: true,
	}).Create(fb).Error
}

func (s *DBStore) CountFeedback(category insightsv1.Category) (int64, error) {
	var count int64
	err := s.dbc.DB.Model(&models.InsightFeedback{}).
		Where("insight_category = ?", category).
		Count(&count).Error
	return count, err
}
