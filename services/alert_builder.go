package services

import (
	"fmt"
	"strings"
	"time"

	"cart-recovery-service/models"
)

const (
	alertHeader   = "🛒 Carrinho Abandonado Detectado!"
	emptyCartText = "Nenhum item no carrinho"
)

// BuildAlert renders the Block Kit message posted for an abandoned session.
func BuildAlert(s *models.CheckoutSession) *models.SlackMessage {
	total := formatAmount(s.Cart.Total)

	blocks := []models.SlackBlock{
		{
			Type: "header",
			Text: &models.SlackText{Type: "plain_text", Text: alertHeader, Emoji: true},
		},
		{
			Type: "section",
			Fields: []models.SlackText{
				mrkdwn("*Cliente:*\n" + s.Contact.Name),
				mrkdwn("*Telefone:*\n" + s.Contact.Phone),
			},
		},
		{
			Type: "section",
			Text: ptr(mrkdwn("*Itens do Carrinho:*\n" + itemLines(s.Cart.Items))),
		},
		{
			Type: "section",
			Fields: []models.SlackText{
				mrkdwn("*Total:*\n" + total),
				mrkdwn("*Início da Sessão:*\n" + slackDate(s.StartTime.Time)),
			},
		},
	}

	if loc := locationText(s.Location); loc != "" {
		blocks = append(blocks, models.SlackBlock{
			Type: "section",
			Text: ptr(mrkdwn("*Localização:*\n" + loc)),
		})
	}

	actions := []models.SlackElement{{
		Type:  "button",
		Text:  &models.SlackText{Type: "plain_text", Text: "💬 Enviar WhatsApp", Emoji: true},
		URL:   WhatsAppURL(s.Contact.Phone),
		Style: "primary",
	}}
	if s.Cart.RecoveryURL != "" {
		actions = append(actions, models.SlackElement{
			Type:  "button",
			Text:  &models.SlackText{Type: "plain_text", Text: "🛒 Link do Carrinho", Emoji: true},
			URL:   s.Cart.RecoveryURL,
			Style: "primary",
		})
	}
	blocks = append(blocks, models.SlackBlock{Type: "actions", Elements: actions})

	return &models.SlackMessage{
		Text:   fmt.Sprintf("Carrinho abandonado: %s (%s)", s.Contact.Name, total),
		Blocks: blocks,
	}
}

// WhatsAppURL builds a wa.me link with the Brazilian country code.
func WhatsAppURL(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return "https://wa.me/55" + digits.String()
}

func itemLines(items []models.CartItem) string {
	if len(items) == 0 {
		return emptyCartText
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("• %dx %s (%s)", item.Quantity, item.Name, formatAmount(item.TotalPrice)))
	}
	return strings.Join(lines, "\n")
}

func formatAmount(a models.Amount) string {
	v, _ := a.Value()
	return models.FormatBRL(v)
}

// slackDate uses Slack's date token so each reader sees local time; the text
// after the pipe is the fallback.
func slackDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("<!date^%d^{date_pretty} às {time}|%s>", t.Unix(), t.UTC().Format("2006-01-02T15:04:05.000Z"))
}

func locationText(l models.Location) string {
	var parts []string
	if l.City != "" {
		parts = append(parts, l.City)
	}
	if l.Region != "" {
		parts = append(parts, l.Region)
	}
	return strings.Join(parts, ", ")
}

func mrkdwn(text string) models.SlackText {
	return models.SlackText{Type: "mrkdwn", Text: text}
}

func ptr[T any](v T) *T { return &v }
