package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cart-recovery-service/models"
	"cart-recovery-service/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AlertSummary counts dispatch attempts since Since; a nil Since covers the
// whole log.
type AlertSummary struct {
	Since  *time.Time `json:"since,omitempty"`
	Sent   int64      `json:"sent"`
	Failed int64      `json:"failed"`
	Total  int64      `json:"total"`
}

// NotificationLogService exposes the alert audit trail to operators.
type NotificationLogService interface {
	GetLogs(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationLog, int64, *ServiceError)
	GetLog(ctx context.Context, id int64) (*models.NotificationLog, *ServiceError)
	LatestForSession(ctx context.Context, sessionID string) (*models.NotificationLog, *ServiceError)
	Summary(ctx context.Context, window time.Duration) (*AlertSummary, *ServiceError)
}

type notificationLogService struct {
	repo   repository.AlertLogRepository
	now    func() time.Time
	logger *zap.Logger
}

func NewNotificationLogService(repo repository.AlertLogRepository, logger *zap.Logger) NotificationLogService {
	return &notificationLogService{repo: repo, now: time.Now, logger: logger}
}

func (s *notificationLogService) GetLogs(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationLog, int64, *ServiceError) {
	if filter.Status != "" && filter.Status != models.StatusSent && filter.Status != models.StatusFailed {
		return nil, 0, &ServiceError{StatusCode: http.StatusBadRequest, Message: "status must be sent or failed"}
	}
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list notification logs", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "internal server error"}
	}
	return logs, total, nil
}

func (s *notificationLogService) GetLog(ctx context.Context, id int64) (*models.NotificationLog, *ServiceError) {
	log, err := s.repo.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "notification log not found"}
	}
	if err != nil {
		s.logger.Error("Failed to load notification log", zap.Int64("id", id), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "internal server error"}
	}
	return log, nil
}

func (s *notificationLogService) LatestForSession(ctx context.Context, sessionID string) (*models.NotificationLog, *ServiceError) {
	if sessionID == "" {
		return nil, &ServiceError{StatusCode: http.StatusBadRequest, Message: "session id is required"}
	}
	log, err := s.repo.LatestForSession(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to load latest alert attempt", zap.String("session_id", sessionID), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "internal server error"}
	}
	if log == nil {
		return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "no alert attempts for session"}
	}
	return log, nil
}

// Summary counts attempts in the trailing window; a zero window covers the
// whole log.
func (s *notificationLogService) Summary(ctx context.Context, window time.Duration) (*AlertSummary, *ServiceError) {
	if window < 0 {
		return nil, &ServiceError{StatusCode: http.StatusBadRequest, Message: "window must not be negative"}
	}
	out := &AlertSummary{}
	var since time.Time
	if window > 0 {
		since = s.now().Add(-window).UTC()
		out.Since = &since
	}
	counts, err := s.repo.StatusCounts(ctx, since)
	if err != nil {
		s.logger.Error("Failed to count alert attempts", zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "internal server error"}
	}
	out.Sent = counts[models.StatusSent]
	out.Failed = counts[models.StatusFailed]
	for _, n := range counts {
		out.Total += n
	}
	return out, nil
}
