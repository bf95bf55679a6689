package repository

import (
	"time"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"gorm.io/gorm"
)

type ControlLogRepository struct {
	db *gorm.DB
}

func NewControlLogRepository(db *gorm.DB) *ControlLogRepository {
	return &ControlLogRepository{db: db}
}

// Create creates a new control log
func (r *ControlLogRepository) Create(log *models.ControlLog) error {
	return r.db.Create(log).Error
}

// GetByCampaign retrieves the logs of a campaign, newest first
func (r *ControlLogRepository) GetByCampaign(campaignID string, limit, offset int) ([]*models.ControlLog, error) {
	var logs []*models.ControlLog
	err := r.db.Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	return logs, err
}

// CountByCampaign counts the logs of a campaign
func (r *ControlLogRepository) CountByCampaign(campaignID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.ControlLog{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error
	return count, err
}

// DeleteOlderThan deletes logs older than the given number of days
func (r *ControlLogRepository) DeleteOlderThan(days int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -days)
	result := r.db.Where("created_at < ?", cutoffDate).Delete(&models.ControlLog{})
	return result.RowsAffected, result.Error
}
