package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/volt-storefront/internal/order/domain"
)

const (
	seriesDays  = 7
	recentLimit = 10
	dayLayout   = "2006-01-02"
)

type DailyRevenue struct {
	Day     string          `json:"day"`
	Revenue decimal.Decimal `json:"revenue"`
}

type Summary struct {
	Revenue           decimal.Decimal `json:"revenue"`
	OrderCount        int             `json:"order_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	Daily             []DailyRevenue  `json:"daily"`
	Recent            []domain.Order  `json:"recent"`
}

// Build summarises the paid orders of a most-recent-first ledger. Days are
// calendar days in loc, ending with the day containing now.
func Build(orders []domain.Order, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}

	paid := make([]domain.Order, 0, len(orders))
	revenue := decimal.Zero
	for _, o := range orders {
		if !o.IsPaid() {
			continue
		}
		paid = append(paid, o)
		revenue = revenue.Add(o.Amount)
	}

	aov := decimal.Zero
	if len(paid) > 0 {
		aov = revenue.Div(decimal.NewFromInt(int64(len(paid)))).Round(0)
	}

	recent := paid
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}

	return Summary{
		Revenue:           revenue,
		OrderCount:        len(paid),
		AverageOrderValue: aov,
		Daily:             daily(paid, now, loc),
		Recent:            append([]domain.Order{}, recent...),
	}
}

func daily(paid []domain.Order, now time.Time, loc *time.Location) []DailyRevenue {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	series := make([]DailyRevenue, seriesDays)
	index := make(map[string]int, seriesDays)
	for i := 0; i < seriesDays; i++ {
		day := today.AddDate(0, 0, i-(seriesDays-1)).Format(dayLayout)
		series[i] = DailyRevenue{Day: day, Revenue: decimal.Zero}
		index[day] = i
	}

	for _, o := range paid {
		if i, ok := index[o.CreatedAt.In(loc).Format(dayLayout)]; ok {
			series[i].Revenue = series[i].Revenue.Add(o.Amount)
		}
	}
	return series
}
