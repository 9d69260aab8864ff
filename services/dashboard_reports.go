package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"cart-recovery-service/models"
)

const (
	liveWindow       = 30 * time.Minute
	maxHourlyPoints  = 24
	hourlySpanLimit  = 48 * time.Hour
	topResolutions   = 5
	defaultOrderPage = 20

	GranularityHour = "hour"
	GranularityDay  = "day"
)

var orderStatusLabels = map[string]string{
	"pending":              "Pendente",
	"processing":           "Processando",
	"completed":            "Concluído",
	models.OrderStatusPaid: "Pago",
	"cancelled":            "Cancelado",
}

var paymentLabels = map[string]string{
	"pix":         "PIX",
	"boleto":      "Boleto",
	"credit_card": "Cartão",
}

type OrderSummary struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"`
	StatusLabel   string    `json:"status_label"`
	PaymentMethod string    `json:"payment_method"`
	PaymentLabel  string    `json:"payment_label"`
	CustomerName  string    `json:"customer_name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
	ItemCount     int       `json:"item_count"`
	Total         float64   `json:"total"`
	TotalText     string    `json:"total_text"`
	WhatsAppURL   string    `json:"whatsapp_url,omitempty"`
}

type LiveMetrics struct {
	Period             Period  `json:"period"`
	ActiveSessions     int     `json:"active_sessions"`
	AbandonedCarts     int     `json:"abandoned_carts"`
	AbandonedValue     float64 `json:"abandoned_value"`
	AbandonedValueText string  `json:"abandoned_value_text"`
	Orders             int     `json:"orders"`
	AverageTicket      float64 `json:"average_ticket"`
	AverageTicketText  string  `json:"average_ticket_text"`
}

type SeriesPoint struct {
	Label   string    `json:"label"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Orders  int       `json:"orders"`
	Revenue float64   `json:"revenue"`
}

type Series struct {
	Period      Period        `json:"period"`
	Tab         string        `json:"tab"`
	Granularity string        `json:"granularity"`
	Points      []SeriesPoint `json:"points"`
}

type BrowserStat struct {
	Browser    string `json:"browser"`
	Sessions   int    `json:"sessions"`
	Percentage int    `json:"percentage"`
}

type DeviceStat struct {
	Device     string  `json:"device"`
	Sessions   int     `json:"sessions"`
	Percentage float64 `json:"percentage"`
}

type ResolutionStat struct {
	Resolution string  `json:"resolution"`
	Sessions   int     `json:"sessions"`
	Percentage float64 `json:"percentage"`
}

type DeviceBreakdown struct {
	Total       int              `json:"total"`
	Devices     []DeviceStat     `json:"devices"`
	Resolutions []ResolutionStat `json:"resolutions"`
}

// Orders lists sessions that reached an order, most recently updated first.
func (s *dashboardServiceImpl) Orders(ctx context.Context, page, pageSize int) ([]OrderSummary, int, *ServiceError) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultOrderPage
	}

	snapshot, _ := s.store.Get()
	ordered := make([]*models.CheckoutSession, 0, len(snapshot))
	for i := range snapshot {
		if snapshot[i].Order != nil && !snapshot[i].LastUpdate.IsZero() {
			ordered = append(ordered, &snapshot[i])
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].LastUpdate.After(ordered[j].LastUpdate.Time)
	})

	total := len(ordered)
	from := (page - 1) * pageSize
	if from >= total {
		return []OrderSummary{}, total, nil
	}
	to := from + pageSize
	if to > total {
		to = total
	}

	out := make([]OrderSummary, 0, to-from)
	for _, sess := range ordered[from:to] {
		out = append(out, summarizeOrder(sess))
	}
	return out, total, nil
}

func summarizeOrder(sess *models.CheckoutSession) OrderSummary {
	total, _ := sess.Cart.Total.Value()
	updated := sess.UpdatedAt.Time
	if updated.IsZero() {
		updated = sess.LastUpdate.Time
	}
	summary := OrderSummary{
		ID:            sess.ID,
		OrderID:       sess.Order.OrderID,
		Status:        sess.Order.OrderStatus,
		StatusLabel:   labelOr(orderStatusLabels, sess.Order.OrderStatus),
		PaymentMethod: sess.Order.PaymentMethod,
		PaymentLabel:  labelOr(paymentLabels, sess.Order.PaymentMethod),
		CustomerName:  sess.Contact.Name,
		Phone:         sess.Contact.Phone,
		Email:         sess.Contact.Email,
		UpdatedAt:     updated,
		ItemCount:     itemCount(sess.Cart),
		Total:         total,
		TotalText:     models.FormatBRL(total),
	}
	if strings.TrimSpace(sess.Contact.Phone) != "" {
		summary.WhatsAppURL = WhatsAppURL(sess.Contact.Phone)
	}
	return summary
}

func labelOr(labels map[string]string, key string) string {
	if label, ok := labels[key]; ok {
		return label
	}
	return key
}

// LiveMetrics summarizes sessions updated within the period: how many were
// updated in the last 30 minutes, unordered carts with items and the average
// order value.
func (s *dashboardServiceImpl) LiveMetrics(ctx context.Context, periodID string) (*LiveMetrics, *ServiceError) {
	period, svcErr := s.resolvePeriod(periodID)
	if svcErr != nil {
		return nil, svcErr
	}
	activeSince := s.now().Add(-liveWindow)

	snapshot, _ := s.store.Get()
	out := &LiveMetrics{Period: period}
	var ordersValue float64
	for i := range snapshot {
		sess := &snapshot[i]
		if sess.LastUpdate.IsZero() || !period.contains(sess.LastUpdate.Time) {
			continue
		}
		if sess.LastUpdate.After(activeSince) {
			out.ActiveSessions++
		}
		if sess.Order == nil && len(sess.Cart.Items) > 0 {
			out.AbandonedCarts++
			for _, item := range sess.Cart.Items {
				v, _ := item.TotalPrice.Value()
				out.AbandonedValue += v
			}
		}
		if sess.Order != nil {
			out.Orders++
			v, _ := sess.Cart.Total.Value()
			ordersValue += v
		}
	}

	out.AbandonedValue = round2(out.AbandonedValue)
	out.AbandonedValueText = models.FormatBRL(out.AbandonedValue)
	if out.Orders > 0 {
		out.AverageTicket = round2(ordersValue / float64(out.Orders))
	}
	out.AverageTicketText = models.FormatBRL(out.AverageTicket)
	return out, nil
}

// TimeSeries buckets order counts and revenue across the period: hourly for
// spans up to two days (at most 24 points), per calendar day otherwise.
func (s *dashboardServiceImpl) TimeSeries(ctx context.Context, periodID, tab string) (*Series, *ServiceError) {
	tab, svcErr := resolveTab(tab)
	if svcErr != nil {
		return nil, svcErr
	}
	period, svcErr := s.resolvePeriod(periodID)
	if svcErr != nil {
		return nil, svcErr
	}

	out := &Series{Period: period, Tab: tab, Points: bucketize(period, s.loc)}
	out.Granularity = GranularityDay
	if period.End.Sub(period.Start) <= hourlySpanLimit {
		out.Granularity = GranularityHour
	}

	snapshot, _ := s.store.Get()
	for i := range snapshot {
		sess := &snapshot[i]
		if sess.Order == nil || sess.LastUpdate.IsZero() {
			continue
		}
		if tab == TabPaid && !sess.Paid() {
			continue
		}
		at := sess.LastUpdate.Time
		idx := sort.Search(len(out.Points), func(i int) bool { return out.Points[i].End.After(at) })
		if idx == len(out.Points) || at.Before(out.Points[idx].Start) {
			continue
		}
		total, _ := sess.Cart.Total.Value()
		out.Points[idx].Orders++
		out.Points[idx].Revenue += total
	}
	for i := range out.Points {
		out.Points[i].Revenue = round2(out.Points[i].Revenue)
	}
	return out, nil
}

func bucketize(p Period, loc *time.Location) []SeriesPoint {
	span := p.End.Sub(p.Start)
	if span <= 0 {
		return []SeriesPoint{}
	}

	var points []SeriesPoint
	if span <= hourlySpanLimit {
		hours := int(math.Ceil(span.Hours()))
		step := time.Duration((hours+maxHourlyPoints-1)/maxHourlyPoints) * time.Hour
		for at := p.Start; at.Before(p.End); at = at.Add(step) {
			points = append(points, point(at, at.Add(step), p.End, at.In(loc).Format("15:04")))
		}
		return points
	}
	for at := p.Start; at.Before(p.End); at = at.AddDate(0, 0, 1) {
		points = append(points, point(at, at.AddDate(0, 0, 1), p.End, at.In(loc).Format("02/01")))
	}
	return points
}

func point(start, end, limit time.Time, label string) SeriesPoint {
	if end.After(limit) {
		end = limit
	}
	return SeriesPoint{Label: label, Start: start, End: end}
}

// Browsers shares sessions out by browser family across the whole snapshot.
func (s *dashboardServiceImpl) Browsers(ctx context.Context) ([]BrowserStat, *ServiceError) {
	snapshot, _ := s.store.Get()
	counts := map[string]int{}
	for i := range snapshot {
		counts[browserFamily(snapshot[i].UserAgent)]++
	}

	stats := make([]BrowserStat, 0, len(counts))
	for name, n := range counts {
		stats = append(stats, BrowserStat{
			Browser:    name,
			Sessions:   n,
			Percentage: int(math.Round(float64(n) / float64(len(snapshot)) * 100)),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Sessions != stats[j].Sessions {
			return stats[i].Sessions > stats[j].Sessions
		}
		return stats[i].Browser < stats[j].Browser
	})
	return stats, nil
}

// browserFamily checks the tokens that other engines embed (Edge and Opera
// also send Chrome and Safari) before the generic ones.
func browserFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox"), strings.Contains(ua, "fxios"):
		return "Firefox"
	case strings.Contains(ua, "chrome"), strings.Contains(ua, "crios"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	default:
		return "Other"
	}
}

// Devices splits sessions into desktop, mobile and tablet and lists the five
// most common screen resolutions.
func (s *dashboardServiceImpl) Devices(ctx context.Context) (*DeviceBreakdown, *ServiceError) {
	snapshot, _ := s.store.Get()
	devices := map[string]int{}
	resolutions := map[string]int{}
	for i := range snapshot {
		devices[deviceType(snapshot[i].UserAgent)]++
		if res := strings.TrimSpace(snapshot[i].ScreenResolution); res != "" {
			resolutions[res]++
		}
	}

	total := len(snapshot)
	share := func(n int) float64 {
		if total == 0 {
			return 0
		}
		return round1(float64(n) / float64(total) * 100)
	}

	out := &DeviceBreakdown{Total: total}
	for _, name := range []string{"Desktop", "Mobile", "Tablet"} {
		out.Devices = append(out.Devices, DeviceStat{Device: name, Sessions: devices[name], Percentage: share(devices[name])})
	}

	out.Resolutions = make([]ResolutionStat, 0, len(resolutions))
	for res, n := range resolutions {
		out.Resolutions = append(out.Resolutions, ResolutionStat{Resolution: res, Sessions: n, Percentage: share(n)})
	}
	sort.Slice(out.Resolutions, func(i, j int) bool {
		if out.Resolutions[i].Sessions != out.Resolutions[j].Sessions {
			return out.Resolutions[i].Sessions > out.Resolutions[j].Sessions
		}
		return out.Resolutions[i].Resolution < out.Resolutions[j].Resolution
	})
	if len(out.Resolutions) > topResolutions {
		out.Resolutions = out.Resolutions[:topResolutions]
	}
	return out, nil
}

func deviceType(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "tablet"), strings.Contains(ua, "ipad"):
		return "Tablet"
	case strings.Contains(ua, "mobile"):
		return "Mobile"
	default:
		return "Desktop"
	}
}
