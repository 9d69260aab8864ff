package services_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"cart-recovery-service/models"
	"cart-recovery-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var brt = time.FixedZone("BRT", -3*60*60)

// 2025-03-15 15:00 in São Paulo.
var dashNow = time.Date(2025, 3, 15, 15, 0, 0, 0, brt)

func newDashboard(snapshot models.Snapshot) services.DashboardService {
	store := services.NewSnapshotStore()
	store.Set(snapshot, dashNow)
	return services.NewDashboardService(store, 20*time.Minute, brt, func() time.Time { return dashNow }, zap.NewNop())
}

func order(id string, at time.Time, total models.Amount, status string) models.CheckoutSession {
	return models.CheckoutSession{
		ID:         id,
		LastUpdate: models.NewTimestamp(at),
		Cart:       models.Cart{Total: total},
		Order:      &models.Order{OrderID: "o-" + id, OrderStatus: status},
	}
}

func TestResolvePeriod(t *testing.T) {
	cases := []struct {
		id    string
		start time.Time
		end   time.Time
	}{
		{services.PeriodToday, time.Date(2025, 3, 15, 0, 0, 0, 0, brt), dashNow},
		{services.PeriodYesterday, time.Date(2025, 3, 14, 0, 0, 0, 0, brt), time.Date(2025, 3, 15, 0, 0, 0, 0, brt)},
		{services.PeriodLast7Days, time.Date(2025, 3, 8, 0, 0, 0, 0, brt), dashNow},
		{services.PeriodCurrentMonth, time.Date(2025, 3, 1, 0, 0, 0, 0, brt), dashNow},
		{services.PeriodLastMonth, time.Date(2025, 2, 1, 0, 0, 0, 0, brt), time.Date(2025, 3, 1, 0, 0, 0, 0, brt)},
	}
	for _, tc := range cases {
		p, ok := services.ResolvePeriod(tc.id, dashNow.UTC(), brt)
		require.True(t, ok, tc.id)
		assert.True(t, tc.start.Equal(p.Start), "%s start %v", tc.id, p.Start)
		assert.True(t, tc.end.Equal(p.End), "%s end %v", tc.id, p.End)
		assert.NotEmpty(t, p.Label)
	}

	_, ok := services.ResolvePeriod("lastYear", dashNow, brt)
	assert.False(t, ok)
}

func TestPeriod_Previous(t *testing.T) {
	p, _ := services.ResolvePeriod(services.PeriodYesterday, dashNow, brt)
	start, end := p.Previous()
	assert.True(t, time.Date(2025, 3, 13, 0, 0, 0, 0, brt).Equal(start))
	assert.True(t, p.Start.Equal(end))
}

func TestOverview_OrdersAndPaid(t *testing.T) {
	noOrder := order("d", dashNow.Add(-time.Hour), "999,00", "")
	noOrder.Order = nil

	svc := newDashboard(models.Snapshot{
		order("a", time.Date(2025, 3, 15, 10, 0, 0, 0, brt), "100,00", models.OrderStatusPaid),
		order("b", time.Date(2025, 3, 15, 12, 0, 0, 0, brt), "50,00", "pending"),
		order("c", time.Date(2025, 3, 14, 10, 0, 0, 0, brt), "80,00", "pending"),
		order("old", time.Date(2025, 3, 1, 10, 0, 0, 0, brt), "500,00", models.OrderStatusPaid),
		noOrder,
	})

	ov, svcErr := svc.Overview(context.Background(), services.PeriodToday, "")
	require.Nil(t, svcErr)
	assert.Equal(t, services.TabOrders, ov.Tab)
	assert.Equal(t, 2, ov.Orders)
	assert.InDelta(t, 150.0, ov.Revenue, 0.001)
	assert.Equal(t, "R$ 150,00", ov.RevenueText)
	assert.Equal(t, 1, ov.PreviousOrders)
	assert.InDelta(t, 80.0, ov.PreviousRevenue, 0.001)
	assert.InDelta(t, 87.5, ov.RevenueChange, 0.001)
	assert.InDelta(t, 100.0, ov.OrdersChange, 0.001)

	ov, svcErr = svc.Overview(context.Background(), services.PeriodToday, services.TabPaid)
	require.Nil(t, svcErr)
	assert.Equal(t, 1, ov.Orders)
	assert.InDelta(t, 100.0, ov.Revenue, 0.001)
	assert.Equal(t, 0, ov.PreviousOrders)
	assert.Equal(t, 0.0, ov.RevenueChange)

	ov, svcErr = svc.Overview(context.Background(), services.PeriodCurrentMonth, services.TabPaid)
	require.Nil(t, svcErr)
	assert.Equal(t, 2, ov.Orders)
	assert.InDelta(t, 600.0, ov.Revenue, 0.001)
}

func TestOverview_InvalidInput(t *testing.T) {
	svc := newDashboard(nil)

	_, svcErr := svc.Overview(context.Background(), "forever", services.TabOrders)
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)

	_, svcErr = svc.Overview(context.Background(), services.PeriodToday, "refunds")
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)
}

func TestAbandonedCarts_SortedAbandonedFirst(t *testing.T) {
	mk := func(id string, ago time.Duration) models.CheckoutSession {
		return models.CheckoutSession{
			ID:         id,
			LastUpdate: models.NewTimestamp(dashNow.Add(-ago)),
			Contact:    models.Contact{Name: "Cliente " + id, Phone: "11 90000-0000"},
			Activity:   models.Activity{CurrentStep: "payment"},
			Cart: models.Cart{
				Items: []models.CartItem{{Name: "Item", Quantity: 3, TotalPrice: "30,00"}},
				Total: "30,00",
			},
		}
	}
	converted := mk("w", time.Hour)
	converted.Order = &models.Order{OrderID: "o1"}
	anon := mk("v", time.Hour)
	anon.Contact = models.Contact{}

	svc := newDashboard(models.Snapshot{mk("y", 5*time.Minute), mk("z", time.Hour), converted, anon, mk("x", 30*time.Minute)})

	carts, svcErr := svc.AbandonedCarts(context.Background())
	require.Nil(t, svcErr)
	require.Len(t, carts, 3)
	assert.Equal(t, "x", carts[0].ID)
	assert.True(t, carts[0].IsAbandoned)
	assert.Equal(t, "z", carts[1].ID)
	assert.True(t, carts[1].IsAbandoned)
	assert.Equal(t, "y", carts[2].ID)
	assert.False(t, carts[2].IsAbandoned)

	assert.Equal(t, "payment", carts[0].AbandonedStep)
	assert.Equal(t, 3, carts[0].ItemCount)
	assert.Equal(t, "R$ 30,00", carts[0].TotalText)
	assert.Equal(t, "https://wa.me/5511900000000", carts[0].WhatsAppURL)
}

func TestTopProducts(t *testing.T) {
	svc := newDashboard(models.Snapshot{
		{Cart: models.Cart{Items: []models.CartItem{
			{ID: "1", Name: "Camiseta", Quantity: 2, TotalPrice: "100,00"},
			{ID: "2", Name: "Boné", Quantity: 1, TotalPrice: "40,00"},
		}}},
		{Cart: models.Cart{Items: []models.CartItem{
			{ID: "1", Name: "Camiseta", Quantity: 1, TotalPrice: "50,00"},
			{Name: "Meia", Quantity: 5, TotalPrice: "60,00"},
		}}},
	})

	top, svcErr := svc.TopProducts(context.Background(), 0)
	require.Nil(t, svcErr)
	require.Len(t, top, 3)
	assert.Equal(t, "Camiseta", top[0].Name)
	assert.Equal(t, 3, top[0].Quantity)
	assert.InDelta(t, 150.0, top[0].Revenue, 0.001)
	assert.Equal(t, "Meia", top[1].Name)
	assert.Equal(t, "Boné", top[2].Name)

	top, _ = svc.TopProducts(context.Background(), 1)
	assert.Len(t, top, 1)
}

func TestRegions_FallsBackToGeolocation(t *testing.T) {
	svc := newDashboard(models.Snapshot{
		{Address: models.Address{State: "SP"}, Cart: models.Cart{Total: "100,00"}},
		{Address: models.Address{State: "SP"}, Location: models.Location{Region: "RJ"}, Cart: models.Cart{Total: "20,00"}},
		{Location: models.Location{Region: "RJ"}, Cart: models.Cart{Total: "300,00"}},
		{Cart: models.Cart{Total: "1.000,00"}},
	})

	regions, svcErr := svc.Regions(context.Background())
	require.Nil(t, svcErr)
	require.Len(t, regions, 2)
	assert.Equal(t, services.RegionStat{Region: "RJ", Sessions: 1, Revenue: 300}, regions[0])
	assert.Equal(t, services.RegionStat{Region: "SP", Sessions: 2, Revenue: 120}, regions[1])
}

func TestDashboard_EmptyStore(t *testing.T) {
	svc := services.NewDashboardService(services.NewSnapshotStore(), 0, nil, nil, zap.NewNop())

	carts, svcErr := svc.AbandonedCarts(context.Background())
	require.Nil(t, svcErr)
	assert.Empty(t, carts)

	regions, _ := svc.Regions(context.Background())
	assert.Empty(t, regions)

	ov, svcErr := svc.Overview(context.Background(), "", "")
	require.Nil(t, svcErr)
	assert.Equal(t, services.PeriodToday, ov.Period.ID)
	assert.Equal(t, 0, ov.Orders)
}
