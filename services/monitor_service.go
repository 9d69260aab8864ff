package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"cart-recovery-service/models"
	awspkg "cart-recovery-service/pkg/aws"
	"cart-recovery-service/repository"
	"cart-recovery-service/sender"

	"go.uber.org/zap"
)

const (
	DefaultTimeout      = 20 * time.Minute
	TestModeTimeout     = 10 * time.Second
	DefaultSummaryEvery = 10
)

type MonitorConfig struct {
	Timeout      time.Duration
	Debug        bool
	SummaryEvery int
	SNSTopicArn  string
}

// MonitorDeps are the collaborators of the monitor. Sender, Markers and Cache
// are required; the rest may be nil.
type MonitorDeps struct {
	Sender    sender.AlertSender
	Markers   repository.MarkerStore
	Cache     *NotifiedCache
	AuditLog  repository.AlertLogRepository
	Publisher awspkg.SNSPublisher
	Metrics   awspkg.MetricsRecorder
	Store     *SnapshotStore
	Clock     func() time.Time
}

// PassReport summarizes one snapshot evaluation.
type PassReport struct {
	Check           int       `json:"check"`
	At              time.Time `json:"at"`
	Total           int       `json:"total"`
	WithContact     int       `json:"with_contact"`
	Active          int       `json:"active"`
	Converted       int       `json:"converted"`
	Waiting         int       `json:"waiting"`
	AlreadyNotified int       `json:"already_notified"`
	NoTimestamp     int       `json:"no_timestamp"`
	Abandoned       int       `json:"abandoned"`
	Notified        int       `json:"notified"`
	Failed          int       `json:"failed"`
}

type Stats struct {
	StartedAt     time.Time   `json:"started_at"`
	Timeout       string      `json:"timeout"`
	Checks        int         `json:"checks"`
	NotifiedTotal int         `json:"notified_total"`
	SentThisRun   int         `json:"sent_this_run"`
	FailedThisRun int         `json:"failed_this_run"`
	LastPass      *PassReport `json:"last_pass,omitempty"`
}

type MonitorService interface {
	ProcessSnapshot(ctx context.Context, snapshot models.Snapshot) PassReport
	Stats() Stats
	LogSummary(final bool)
}

type monitorService struct {
	cfg    MonitorConfig
	deps   MonitorDeps
	now    func() time.Time
	logger *zap.Logger

	mu        sync.Mutex
	startedAt time.Time
	checks    int
	sent      int
	failed    int
	last      *PassReport
}

func NewMonitorService(cfg MonitorConfig, deps MonitorDeps, logger *zap.Logger) (MonitorService, error) {
	if deps.Sender == nil {
		return nil, errors.New("monitor requires an alert sender")
	}
	if deps.Markers == nil {
		return nil, errors.New("monitor requires a marker store")
	}
	if deps.Cache == nil {
		deps.Cache = NewNotifiedCache()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SummaryEvery <= 0 {
		cfg.SummaryEvery = DefaultSummaryEvery
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return &monitorService{
		cfg:       cfg,
		deps:      deps,
		now:       now,
		logger:    logger,
		startedAt: now(),
	}, nil
}

// ProcessSnapshot classifies every session, alerts the newly abandoned ones in
// snapshot order and returns the pass counts. It must not be called
// concurrently.
func (s *monitorService) ProcessSnapshot(ctx context.Context, snapshot models.Snapshot) PassReport {
	now := s.now()

	s.mu.Lock()
	s.checks++
	report := PassReport{Check: s.checks, At: now, Total: len(snapshot)}
	s.mu.Unlock()

	if s.deps.Store != nil {
		s.deps.Store.Set(snapshot, now)
	}
	if len(snapshot) == 0 {
		s.logger.Info("No sessions received", zap.Int("check", report.Check))
	}

	for i := range snapshot {
		if snapshot[i].AlreadyNotified() {
			at := snapshot[i].Notifications.AbandonedCart.SentAt.Time
			if at.IsZero() {
				at = now
			}
			s.deps.Cache.Add(snapshot[i].ID, at)
		}
	}

	var abandoned []*models.CheckoutSession
	for i := range snapshot {
		sess := &snapshot[i]
		if s.classify(sess, now, &report) {
			abandoned = append(abandoned, sess)
		}
	}
	report.Abandoned = len(abandoned)

	for _, sess := range abandoned {
		if ctx.Err() != nil {
			break
		}
		if s.sentEarlier(ctx, sess) {
			report.AlreadyNotified++
			continue
		}
		if s.dispatch(ctx, sess) {
			report.Notified++
		} else {
			report.Failed++
		}
	}

	s.mu.Lock()
	s.sent += report.Notified
	s.failed += report.Failed
	last := report
	s.last = &last
	s.mu.Unlock()

	recordPass(report)
	if s.cfg.Debug || report.Check%s.cfg.SummaryEvery == 0 {
		s.LogSummary(false)
	}
	return report
}

// classify updates the report counters and reports whether sess is newly
// abandoned.
func (s *monitorService) classify(sess *models.CheckoutSession, now time.Time, report *PassReport) bool {
	log := s.logger.With(zap.String("session_id", sess.ID))

	if !sess.HasContact() {
		if s.cfg.Debug {
			log.Debug("Session skipped: no customer contact")
		}
		return false
	}
	report.WithContact++

	if sess.Converted() {
		s.deps.Cache.MarkConverted(sess.ID)
	}

	if sess.Activity.IsActive {
		report.Active++
		if s.cfg.Debug {
			log.Debug("Session is active")
		}
		return false
	}

	if s.deps.Cache.IsConverted(sess.ID) {
		report.Converted++
		if s.cfg.Debug {
			log.Debug("Session skipped: converted", zap.String("step", sess.Step()), zap.Bool("has_order", sess.Order != nil))
		}
		return false
	}

	idle, err := sess.IdleFor(now)
	if err != nil {
		report.NoTimestamp++
		if s.cfg.Debug {
			log.Debug("Session skipped: no usable timestamp")
		}
		return false
	}

	if sess.AlreadyNotified() || s.deps.Cache.Has(sess.ID) {
		report.AlreadyNotified++
		return false
	}

	if idle < s.cfg.Timeout {
		report.Waiting++
		if s.cfg.Debug {
			log.Debug("Session waiting",
				zap.String("customer", sess.Contact.Name),
				zap.Duration("idle", idle.Truncate(time.Second)),
				zap.Duration("remaining", (s.cfg.Timeout-idle).Truncate(time.Second)),
			)
		}
		return false
	}

	last, _ := sess.LastActivityTime()
	log.Info("Abandoned cart detected",
		zap.Int("check", report.Check),
		zap.String("customer", sess.Contact.Name),
		zap.String("phone", sess.Contact.Phone),
		zap.Time("last_activity", last),
		zap.Duration("idle", idle.Truncate(time.Second)),
		zap.String("total", formatAmount(sess.Cart.Total)),
	)
	s.recordCount(awspkg.MetricAbandonedDetected)
	return true
}

// dispatch posts the alert and, only after the sink accepted it, records the
// session in the cache and writes the upstream marker.
func (s *monitorService) dispatch(ctx context.Context, sess *models.CheckoutSession) bool {
	log := s.logger.With(zap.String("session_id", sess.ID))
	total, _ := sess.Cart.Total.Value()

	entry := &models.NotificationLog{
		SessionID:    sess.ID,
		CustomerName: sess.Contact.Name,
		Phone:        sess.Contact.Phone,
		Channel:      models.ChannelSlack,
		CartTotal:    total,
	}

	start := s.now()
	result, err := s.deps.Sender.SendAlert(ctx, BuildAlert(sess))
	took := s.now().Sub(start)
	s.recordLatency(awspkg.MetricNotificationLatency, took)

	if err != nil {
		entry.Status = models.StatusFailed
		entry.Error = err.Error()
		log.Error("Failed to send abandoned-cart alert", zap.Error(err))
		recordNotification(models.StatusFailed, took)
		s.recordCount(awspkg.MetricNotificationsFailed)
		s.saveLog(ctx, entry)
		return false
	}

	sentAt := result.SentAt
	if sentAt.IsZero() {
		sentAt = s.now()
	}
	s.deps.Cache.Add(sess.ID, sentAt)

	entry.Status = models.StatusSent
	entry.MessageID = result.MessageID
	log.Info("Abandoned-cart alert sent", zap.String("message_id", result.MessageID), zap.Duration("took", took))
	recordNotification(models.StatusSent, took)
	s.recordCount(awspkg.MetricNotificationsSent)

	if err := s.deps.Markers.MarkAbandonedNotified(ctx, sess.ID, sentAt); err != nil {
		log.Error("Failed to write notification marker", zap.Error(err))
		recordMarkerFailure()
		s.recordCount(awspkg.MetricMarkerWriteFailed)
	}

	s.saveLog(ctx, entry)
	s.publishEvent(ctx, &models.EventPayload{
		EventType: models.TypeCartAbandoned,
		Recipient: sess.Contact.Phone,
		Data: map[string]interface{}{
			"session_id":   sess.ID,
			"name":         sess.Contact.Name,
			"phone":        sess.Contact.Phone,
			"email":        sess.Contact.Email,
			"total":        total,
			"recovery_url": sess.Cart.RecoveryURL,
			"sent_at":      sentAt.UTC().Format(time.RFC3339),
		},
	})
	return true
}

// sentEarlier reports whether the alert log already holds a sent attempt for
// sess, as after a restart that followed a failed marker write. When it does
// the cache entry is restored and the marker write retried.
func (s *monitorService) sentEarlier(ctx context.Context, sess *models.CheckoutSession) bool {
	if s.deps.AuditLog == nil {
		return false
	}
	log := s.logger.With(zap.String("session_id", sess.ID))
	latest, err := s.deps.AuditLog.LatestForSession(ctx, sess.ID)
	if err != nil {
		log.Warn("Alert history lookup failed", zap.Error(err))
		return false
	}
	if latest == nil || latest.Status != models.StatusSent {
		return false
	}

	sentAt := latest.CreatedAt
	if sentAt.IsZero() {
		sentAt = s.now()
	}
	s.deps.Cache.Add(sess.ID, sentAt)
	log.Info("Alert already sent in an earlier run", zap.Int64("log_id", latest.ID), zap.Time("sent_at", sentAt))

	if err := s.deps.Markers.MarkAbandonedNotified(ctx, sess.ID, sentAt); err != nil {
		log.Error("Failed to write notification marker", zap.Error(err))
		recordMarkerFailure()
		s.recordCount(awspkg.MetricMarkerWriteFailed)
	}
	return true
}

func (s *monitorService) saveLog(ctx context.Context, entry *models.NotificationLog) {
	if s.deps.AuditLog == nil {
		return
	}
	if err := s.deps.AuditLog.Record(ctx, entry); err != nil {
		s.logger.Error("Failed to save notification log", zap.String("session_id", entry.SessionID), zap.Error(err))
	}
}

// publishEvent marshals an event and publishes it to SNS (non-fatal on error).
func (s *monitorService) publishEvent(ctx context.Context, event interface{}) {
	if s.deps.Publisher == nil || s.cfg.SNSTopicArn == "" {
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal SNS event", zap.Error(err))
		return
	}
	if err := s.deps.Publisher.Publish(ctx, s.cfg.SNSTopicArn, b); err != nil {
		s.logger.Error("Failed to publish SNS event", zap.Error(err))
		return
	}
	s.logger.Debug("Published SNS event", zap.String("topic", s.cfg.SNSTopicArn))
}

var metricDimensions = map[string]string{"Service": "cart-recovery-service"}

func (s *monitorService) recordCount(metric string) {
	if s.deps.Metrics == nil || !s.deps.Metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.deps.Metrics.RecordCount(ctx, metric, metricDimensions)
	}()
}

func (s *monitorService) recordLatency(metric string, took time.Duration) {
	if s.deps.Metrics == nil || !s.deps.Metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.deps.Metrics.RecordLatency(ctx, metric, took, metricDimensions)
	}()
}

func (s *monitorService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		StartedAt:     s.startedAt,
		Timeout:       s.cfg.Timeout.String(),
		Checks:        s.checks,
		NotifiedTotal: s.deps.Cache.Len(),
		SentThisRun:   s.sent,
		FailedThisRun: s.failed,
	}
	if s.last != nil {
		last := *s.last
		st.LastPass = &last
	}
	return st
}

// LogSummary writes the periodic status block, or the shutdown totals when
// final is set.
func (s *monitorService) LogSummary(final bool) {
	st := s.Stats()
	if final {
		s.logger.Info("Monitor stopped",
			zap.Int("checks", st.Checks),
			zap.Int("notified_total", st.NotifiedTotal),
			zap.Int("sent_this_run", st.SentThisRun),
			zap.Duration("uptime", s.now().Sub(st.StartedAt).Truncate(time.Second)),
		)
		return
	}

	fields := []zap.Field{zap.Int("check", st.Checks), zap.Int("notified_total", st.NotifiedTotal)}
	if st.LastPass != nil {
		fields = append(fields,
			zap.Int("sessions", st.LastPass.Total),
			zap.Int("with_contact", st.LastPass.WithContact),
			zap.Int("active", st.LastPass.Active),
			zap.Int("abandoned", st.LastPass.Abandoned),
			zap.Int("waiting", st.LastPass.Waiting),
		)
	}
	s.logger.Info("Monitor status", fields...)
}
