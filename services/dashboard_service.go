package services

import (
	"context"
	"math"
	"net/http"
	"sort"
	"time"

	"cart-recovery-service/models"

	"go.uber.org/zap"
)

const (
	TabOrders = "orders"
	TabPaid   = "paid"

	PeriodToday        = "today"
	PeriodYesterday    = "yesterday"
	PeriodLast7Days    = "last7days"
	PeriodCurrentMonth = "currentMonth"
	PeriodLastMonth    = "lastMonth"

	defaultProductLimit = 8
	maxProductLimit     = 100
)

var periodLabels = map[string]string{
	PeriodToday:        "Hoje",
	PeriodYesterday:    "Ontem",
	PeriodLast7Days:    "Últimos 7 dias",
	PeriodCurrentMonth: "Mês atual",
	PeriodLastMonth:    "Mês passado",
}

// Period is a half-open interval [Start, End).
type Period struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ResolvePeriod computes the named period in loc as of now.
func ResolvePeriod(id string, now time.Time, loc *time.Location) (Period, bool) {
	now = now.In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	p := Period{ID: id, Label: periodLabels[id]}
	switch id {
	case PeriodToday:
		p.Start, p.End = midnight, now
	case PeriodYesterday:
		p.Start, p.End = midnight.AddDate(0, 0, -1), midnight
	case PeriodLast7Days:
		p.Start, p.End = midnight.AddDate(0, 0, -7), now
	case PeriodCurrentMonth:
		p.Start, p.End = monthStart, now
	case PeriodLastMonth:
		p.Start, p.End = monthStart.AddDate(0, -1, 0), monthStart
	default:
		return Period{}, false
	}
	return p, true
}

// Previous is the interval of equal length ending where p starts.
func (p Period) Previous() (time.Time, time.Time) {
	return p.Start.Add(-p.End.Sub(p.Start)), p.Start
}

func (p Period) contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

type Overview struct {
	Period          Period  `json:"period"`
	Tab             string  `json:"tab"`
	Orders          int     `json:"orders"`
	Revenue         float64 `json:"revenue"`
	RevenueText     string  `json:"revenue_text"`
	PreviousOrders  int     `json:"previous_orders"`
	PreviousRevenue float64 `json:"previous_revenue"`
	OrdersChange    float64 `json:"orders_change"`
	RevenueChange   float64 `json:"revenue_change"`
}

type AbandonedCart struct {
	ID            string    `json:"id"`
	CustomerName  string    `json:"customer_name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email,omitempty"`
	AbandonedStep string    `json:"abandoned_step"`
	IsAbandoned   bool      `json:"is_abandoned"`
	LastUpdate    time.Time `json:"last_update"`
	ItemCount     int       `json:"item_count"`
	Total         float64   `json:"total"`
	TotalText     string    `json:"total_text"`
	RecoveryURL   string    `json:"recovery_url,omitempty"`
	WhatsAppURL   string    `json:"whatsapp_url"`
	Notified      bool      `json:"notified"`
}

type ProductStat struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

type RegionStat struct {
	Region   string  `json:"region"`
	Sessions int     `json:"sessions"`
	Revenue  float64 `json:"revenue"`
}

// DashboardService derives the operator dashboard aggregates from the latest
// snapshot.
type DashboardService interface {
	Overview(ctx context.Context, periodID, tab string) (*Overview, *ServiceError)
	AbandonedCarts(ctx context.Context) ([]AbandonedCart, *ServiceError)
	TopProducts(ctx context.Context, limit int) ([]ProductStat, *ServiceError)
	Regions(ctx context.Context) ([]RegionStat, *ServiceError)
	Orders(ctx context.Context, page, pageSize int) ([]OrderSummary, int, *ServiceError)
	LiveMetrics(ctx context.Context, periodID string) (*LiveMetrics, *ServiceError)
	TimeSeries(ctx context.Context, periodID, tab string) (*Series, *ServiceError)
	Browsers(ctx context.Context) ([]BrowserStat, *ServiceError)
	Devices(ctx context.Context) (*DeviceBreakdown, *ServiceError)
}

type dashboardServiceImpl struct {
	store   *SnapshotStore
	timeout time.Duration
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger
}

func NewDashboardService(store *SnapshotStore, timeout time.Duration, loc *time.Location, clock func() time.Time, logger *zap.Logger) DashboardService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &dashboardServiceImpl{store: store, timeout: timeout, loc: loc, now: clock, logger: logger}
}

// Overview sums orders and revenue by lastUpdate for the period and the
// previous period of equal length.
func (s *dashboardServiceImpl) Overview(ctx context.Context, periodID, tab string) (*Overview, *ServiceError) {
	tab, svcErr := resolveTab(tab)
	if svcErr != nil {
		return nil, svcErr
	}
	period, svcErr := s.resolvePeriod(periodID)
	if svcErr != nil {
		return nil, svcErr
	}
	prevStart, prevEnd := period.Previous()
	previous := Period{Start: prevStart, End: prevEnd}

	snapshot, _ := s.store.Get()
	out := &Overview{Period: period, Tab: tab}
	for i := range snapshot {
		sess := &snapshot[i]
		if sess.Order == nil || sess.LastUpdate.IsZero() {
			continue
		}
		if tab == TabPaid && !sess.Paid() {
			continue
		}
		total, _ := sess.Cart.Total.Value()
		switch at := sess.LastUpdate.Time; {
		case period.contains(at):
			out.Orders++
			out.Revenue += total
		case previous.contains(at):
			out.PreviousOrders++
			out.PreviousRevenue += total
		}
	}

	out.Revenue = round2(out.Revenue)
	out.PreviousRevenue = round2(out.PreviousRevenue)
	out.RevenueText = models.FormatBRL(out.Revenue)
	out.RevenueChange = change(out.Revenue, out.PreviousRevenue)
	out.OrdersChange = change(float64(out.Orders), float64(out.PreviousOrders))
	return out, nil
}

// AbandonedCarts lists unconverted sessions with contact data, abandoned ones
// first, then most recently updated first.
func (s *dashboardServiceImpl) AbandonedCarts(ctx context.Context) ([]AbandonedCart, *ServiceError) {
	snapshot, _ := s.store.Get()
	cutoff := s.now().Add(-s.timeout)

	carts := make([]AbandonedCart, 0, len(snapshot))
	for i := range snapshot {
		sess := &snapshot[i]
		if !sess.HasContact() || sess.Converted() {
			continue
		}
		total, _ := sess.Cart.Total.Value()
		step := sess.Activity.CurrentStep
		if step == "" {
			step = "Desconhecido"
		}
		carts = append(carts, AbandonedCart{
			ID:            sess.ID,
			CustomerName:  sess.Contact.Name,
			Phone:         sess.Contact.Phone,
			Email:         sess.Contact.Email,
			AbandonedStep: step,
			IsAbandoned:   !sess.LastUpdate.IsZero() && sess.LastUpdate.Before(cutoff),
			LastUpdate:    sess.LastUpdate.Time,
			ItemCount:     itemCount(sess.Cart),
			Total:         total,
			TotalText:     models.FormatBRL(total),
			RecoveryURL:   sess.Cart.RecoveryURL,
			WhatsAppURL:   WhatsAppURL(sess.Contact.Phone),
			Notified:      sess.AlreadyNotified(),
		})
	}

	sort.SliceStable(carts, func(i, j int) bool {
		if carts[i].IsAbandoned != carts[j].IsAbandoned {
			return carts[i].IsAbandoned
		}
		return carts[i].LastUpdate.After(carts[j].LastUpdate)
	})
	return carts, nil
}

// TopProducts ranks cart items across all sessions by revenue.
func (s *dashboardServiceImpl) TopProducts(ctx context.Context, limit int) ([]ProductStat, *ServiceError) {
	if limit <= 0 {
		limit = defaultProductLimit
	}
	if limit > maxProductLimit {
		limit = maxProductLimit
	}

	snapshot, _ := s.store.Get()
	byKey := map[string]*ProductStat{}
	for i := range snapshot {
		for _, item := range snapshot[i].Cart.Items {
			key := item.ID
			if key == "" {
				key = item.Name
			}
			if key == "" {
				continue
			}
			stat, ok := byKey[key]
			if !ok {
				stat = &ProductStat{ID: item.ID, Name: item.Name}
				byKey[key] = stat
			}
			stat.Quantity += item.Quantity
			revenue, _ := item.TotalPrice.Value()
			stat.Revenue += revenue
		}
	}

	stats := make([]ProductStat, 0, len(byKey))
	for _, stat := range byKey {
		stat.Revenue = round2(stat.Revenue)
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Revenue != stats[j].Revenue {
			return stats[i].Revenue > stats[j].Revenue
		}
		return stats[i].Name < stats[j].Name
	})
	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// Regions groups sessions by delivery state, or geolocated region when the
// address has none.
func (s *dashboardServiceImpl) Regions(ctx context.Context) ([]RegionStat, *ServiceError) {
	snapshot, _ := s.store.Get()
	byRegion := map[string]*RegionStat{}
	for i := range snapshot {
		sess := &snapshot[i]
		region := sess.Address.State
		if region == "" {
			region = sess.Location.Region
		}
		if region == "" {
			continue
		}
		stat, ok := byRegion[region]
		if !ok {
			stat = &RegionStat{Region: region}
			byRegion[region] = stat
		}
		stat.Sessions++
		total, _ := sess.Cart.Total.Value()
		stat.Revenue += total
	}

	stats := make([]RegionStat, 0, len(byRegion))
	for _, stat := range byRegion {
		stat.Revenue = round2(stat.Revenue)
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Revenue != stats[j].Revenue {
			return stats[i].Revenue > stats[j].Revenue
		}
		if stats[i].Sessions != stats[j].Sessions {
			return stats[i].Sessions > stats[j].Sessions
		}
		return stats[i].Region < stats[j].Region
	})
	return stats, nil
}

func resolveTab(tab string) (string, *ServiceError) {
	switch tab {
	case "":
		return TabOrders, nil
	case TabOrders, TabPaid:
		return tab, nil
	}
	return "", &ServiceError{StatusCode: http.StatusBadRequest, Message: "tab must be orders or paid"}
}

func (s *dashboardServiceImpl) resolvePeriod(periodID string) (Period, *ServiceError) {
	if periodID == "" {
		periodID = PeriodToday
	}
	period, ok := ResolvePeriod(periodID, s.now(), s.loc)
	if !ok {
		return Period{}, &ServiceError{StatusCode: http.StatusBadRequest, Message: "unknown period: " + periodID}
	}
	return period, nil
}

// itemCount prefers the stored itemCount and otherwise sums item quantities.
func itemCount(cart models.Cart) int {
	if cart.ItemCount > 0 {
		return cart.ItemCount
	}
	n := 0
	for _, item := range cart.Items {
		n += item.Quantity
	}
	return n
}

func change(current, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return round2((current - previous) / previous * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
