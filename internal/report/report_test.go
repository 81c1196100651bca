package report

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/volt-storefront/internal/order/domain"
)

func paidAt(id string, amount int64, at time.Time) domain.Order {
	return domain.NewOrder(id, decimal.NewFromInt(amount), "INR", nil, "pay_"+id, at)
}

func TestBuild_Empty(t *testing.T) {
	s := Build(nil, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), time.UTC)

	assert.True(t, s.Revenue.IsZero())
	assert.Equal(t, 0, s.OrderCount)
	assert.True(t, s.AverageOrderValue.IsZero())
	require.Len(t, s.Daily, 7)
	assert.Equal(t, "2025-03-04", s.Daily[0].Day)
	assert.Equal(t, "2025-03-10", s.Daily[6].Day)
	assert.NotNil(t, s.Recent)
	assert.Empty(t, s.Recent)
}

func TestBuild_TotalsAndAverage(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		paidAt("c", 500, now.Add(-time.Hour)),
		paidAt("b", 300, now.AddDate(0, 0, -1)),
		paidAt("a", 200, now.AddDate(0, 0, -30)),
	}

	s := Build(orders, now, time.UTC)

	assert.True(t, s.Revenue.Equal(decimal.NewFromInt(1000)), s.Revenue.String())
	assert.Equal(t, 3, s.OrderCount)
	// 1000 / 3 = 333.33
	assert.True(t, s.AverageOrderValue.Equal(decimal.NewFromInt(333)), s.AverageOrderValue.String())
	assert.True(t, s.Daily[6].Revenue.Equal(decimal.NewFromInt(500)))
	assert.True(t, s.Daily[5].Revenue.Equal(decimal.NewFromInt(300)))
	assert.True(t, s.Daily[0].Revenue.IsZero())
}

func TestBuild_GroupsByLocalDay(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, ist)
	// 20:00 UTC on the 9th is already the 10th in IST.
	late := time.Date(2025, 3, 9, 20, 0, 0, 0, time.UTC)

	s := Build([]domain.Order{paidAt("x", 997, late)}, now, ist)

	assert.Equal(t, "2025-03-10", s.Daily[6].Day)
	assert.True(t, s.Daily[6].Revenue.Equal(decimal.NewFromInt(997)))
	assert.True(t, s.Daily[5].Revenue.IsZero())
}

func TestBuild_RecentKeepsTenNewest(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	var orders []domain.Order
	for i := 0; i < 15; i++ {
		orders = append(orders, paidAt(fmt.Sprintf("o%02d", i), 100, now.Add(-time.Duration(i)*time.Minute)))
	}

	s := Build(orders, now, time.UTC)

	require.Len(t, s.Recent, 10)
	assert.Equal(t, "o00", s.Recent[0].ID)
	assert.Equal(t, "o09", s.Recent[9].ID)
	assert.Equal(t, 15, s.OrderCount)
}
