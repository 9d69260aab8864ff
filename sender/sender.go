package sender

import (
	"context"
	"errors"
	"time"

	"cart-recovery-service/models"
)

var ErrNonSuccessStatus = errors.New("non-success status from alert sink")

type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// AlertSender delivers one abandoned-cart alert. A nil error means the sink
// answered with a 2xx status.
type AlertSender interface {
	SendAlert(ctx context.Context, msg *models.SlackMessage) (SendResult, error)
}
