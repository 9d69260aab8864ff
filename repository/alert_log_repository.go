package repository

import (
	"context"
	"errors"
	"time"

	"cart-recovery-service/models"

	"gorm.io/gorm"
)

const (
	defaultLogPageSize = 10
	maxLogPageSize     = 100
)

// AlertLogRepository keeps one row per alert dispatch attempt.
type AlertLogRepository interface {
	Record(ctx context.Context, entry *models.NotificationLog) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationLog, int64, error)
	Get(ctx context.Context, id int64) (*models.NotificationLog, error)
	// LatestForSession returns nil without error when the session has no attempts.
	LatestForSession(ctx context.Context, sessionID string) (*models.NotificationLog, error)
	StatusCounts(ctx context.Context, since time.Time) (map[string]int64, error)
}

type alertLogRepository struct {
	db *gorm.DB
}

func NewAlertLogRepository(db *gorm.DB) AlertLogRepository {
	return &alertLogRepository{db: db}
}

func (r *alertLogRepository) Record(ctx context.Context, entry *models.NotificationLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *alertLogRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationLog, int64, error) {
	if filter.PageSize < 1 {
		filter.PageSize = defaultLogPageSize
	}
	if filter.PageSize > maxLogPageSize {
		filter.PageSize = maxLogPageSize
	}
	if filter.Page < 1 {
		filter.Page = 1
	}

	query := matching(r.db.WithContext(ctx).Model(&models.NotificationLog{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.NotificationLog
	err := query.Scopes(newestFirst, page(filter.Page, filter.PageSize)).Find(&logs).Error
	return logs, total, err
}

func (r *alertLogRepository) Get(ctx context.Context, id int64) (*models.NotificationLog, error) {
	var entry models.NotificationLog
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *alertLogRepository) LatestForSession(ctx context.Context, sessionID string) (*models.NotificationLog, error) {
	var entry models.NotificationLog
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Scopes(newestFirst).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// StatusCounts counts attempts per status created at or after since. A zero
// since counts the whole log.
func (r *alertLogRepository) StatusCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	query := r.db.WithContext(ctx).Model(&models.NotificationLog{}).Select("status, count(*) AS count")
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func matching(db *gorm.DB, filter models.NotificationFilter) *gorm.DB {
	if filter.SessionID != "" {
		db = db.Where("session_id = ?", filter.SessionID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Channel != "" {
		db = db.Where("channel = ?", filter.Channel)
	}
	return db
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}

func page(number, size int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(size).Offset((number - 1) * size)
	}
}
