package statistics

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/types"
)

// Statistic types exposed to the admin dashboard
type StatisticType string

const (
	// Daily ledger activity
	StatisticTypeDailyUsage       StatisticType = "daily_usage"
	StatisticTypeDailyGrants      StatisticType = "daily_grants"
	StatisticTypeDailyActiveUsers StatisticType = "daily_active_users"

	// Balance sheet
	StatisticTypeTotalOutstanding StatisticType = "total_outstanding"

	// Subscription related
	StatisticTypeDailyNewSubscriptions       StatisticType = "daily_new_subscriptions"
	StatisticTypeDailyAccumulatedSubscribers StatisticType = "daily_accumulated_subscribers"

	// Trial funnel
	StatisticTypeTrialConversionRate StatisticType = "trial_conversion_rate"
)

// Filter types supported by certain statistic types
type CreditStatisticFilterType string

const (
	CreditStatisticFilterTypeAppKey       CreditStatisticFilterType = "app_key"
	CreditStatisticFilterTypePool         CreditStatisticFilterType = "pool"
	CreditStatisticFilterTypeHasReference CreditStatisticFilterType = "has_reference"
)

var filterTypes = []CreditStatisticFilterType{
	CreditStatisticFilterTypeAppKey,
	CreditStatisticFilterTypePool,
	CreditStatisticFilterTypeHasReference,
}

var validFilters = map[CreditStatisticFilterType][]StatisticType{
	CreditStatisticFilterTypeAppKey:       {StatisticTypeDailyUsage, StatisticTypeDailyGrants, StatisticTypeDailyActiveUsers},
	CreditStatisticFilterTypePool:         {StatisticTypeDailyGrants},
	CreditStatisticFilterTypeHasReference: {StatisticTypeDailyUsage, StatisticTypeDailyGrants},
}

type CreditStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type CreditStatisticRequest struct {
	Filters   []*types.CommonFilter      `json:"filters"`
	DataItems []*CreditStatisticDataItem `json:"data_items"`
}

func (f *CreditStatisticRequest) GetFilters(statisticType StatisticType) *CreditStatisticRequest {
	if f == nil || len(f.Filters) == 0 {
		return f
	}
	var result CreditStatisticRequest
	for _, filter := range f.Filters {
		if statisticTypes, ok := validFilters[CreditStatisticFilterType(filter.Field)]; ok {
			if lo.Contains(statisticTypes, statisticType) {
				result.Filters = append(result.Filters, filter)
			}
		} else {
			result.Filters = append(result.Filters, filter)
		}
	}
	return &result
}

// Build composes a WHERE clause from the request filters, with custom
// handling for has_reference which is a predicate rather than a column.
func (f *CreditStatisticRequest) Build(builder clause.Builder) {
	if len(f.Filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, filter := range f.Filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		switch filter.Field {
		case string(CreditStatisticFilterTypeHasReference):
			if len(filter.Values) > 0 && fmt.Sprint(filter.Values[0]) == "true" {
				builder.WriteString("reference_id IS NOT NULL")
			} else {
				builder.WriteString("reference_id IS NULL")
			}
		default:
			filter.Build(builder)
		}
	}
}

type CreditStatisticResponseDataItem struct {
	Date   string `json:"date"`
	Label  string `json:"label,omitempty"`
	Value  int64  `json:"value"`
	Value2 int64  `json:"value2,omitempty"`
	Value3 int64  `json:"value3,omitempty"`
}

type CreditStatisticResponse struct {
	DataItems map[StatisticType][]CreditStatisticResponseDataItem `json:"data_items"`
}

// Service provides admin reporting over the ledger. It reads the tables
// directly; all writes stay behind the store.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

var Module = fx.Options(fx.Provide(New))

// Admin ledger scan request/response.
type ScanLedgerEntriesRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanLedgerEntriesResponse struct {
	Items []*models.CreditTransaction `json:"items"`
	Total int64                       `json:"total"`
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// ScanLedgerEntries implements paginated/admin listing with filters
func (s *Service) ScanLedgerEntries(ctx context.Context, req *ScanLedgerEntriesRequest) (*ScanLedgerEntriesResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.CreditTransaction{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	var rows []*models.CreditTransaction

	q := tx.Limit(req.Size)

	if req.From > 0 {
		q = q.Offset(req.From)
	}

	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	return &ScanLedgerEntriesResponse{Items: rows, Total: total}, nil
}

// Internal helpers for various stats
func (s *Service) getDailyUsage(ctx context.Context, request *CreditStatisticRequest) ([]CreditStatisticResponseDataItem, error) {
	var results []CreditStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.CreditTransaction{}).TableName()).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, -sum(amount) as value").
		Where("type = ?", types.TransactionTypeUsageDeduction).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeDailyUsage)}}).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyGrants(ctx context.Context, request *CreditStatisticRequest) ([]CreditStatisticResponseDataItem, error) {
	var results []CreditStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.CreditTransaction{}).TableName()).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, type AS label, sum(amount) as value").
		Where("amount > 0").
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeDailyGrants)}}).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Group("type").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyActiveUsers(ctx context.Context, request *CreditStatisticRequest) ([]CreditStatisticResponseDataItem, error) {
	var results []CreditStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.CreditTransaction{}).TableName()).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, count(distinct user_id) as value").
		Where("type = ?", types.TransactionTypeUsageDeduction).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeDailyActiveUsers)}}).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getTotalOutstanding(ctx context.Context, _ *CreditStatisticRequest) ([]CreditStatisticResponseDataItem, error) {
	var results []CreditStatisticResponseDataItem
	err := s.db.WithContext(ctx).Raw(`
SELECT label, SUM(value) as value FROM (
    SELECT 'subscription' as label, subscription_balance as value FROM credit_account
    UNION ALL
    SELECT 'topup' as label, topup_balance as value FROM credit_account
    UNION ALL
    SELECT 'trial' as label, trial_balance as value FROM credit_account
    WHERE trial_expires_at IS NOT NULL AND trial_expires_at > NOW()
) pools
GROUP BY label
ORDER BY label
`).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyNewSubscriptions(ctx context.Context, _ *CreditStatisticRequest) ([]CreditStatisticResponseDataItem, error) {
	var results []CreditStatisticResponseDataItem
	err := s.db.WithContext(ctx).Raw(`
WITH distinct_dates AS (
    SELECT DISTINCT DATE(created_at) as date FROM subscription_record ORDER BY date
),
user_id_date AS (
    SELECT user_id, DATE(created_at) as date FROM subscription_record
)
SELECT d.date, COUNT(DISTINCT s.user_id) as value
FROM distinct_dates d
JOIN user_id_date s ON s.date = d.date
GROUP BY d.date
ORDER BY d.date DESC
`).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyAccumulatedSubscribers(ctx context.Context, _ *CreditStatisticRequest) ([]CreditStatisticResponseDataItem, error) {
	var results []CreditStatisticResponseDataItem
	err := s.db.WithContext(ctx).Raw(`
WITH min_max_dates AS (
    SELECT MIN(DATE(created_at)) as min_date, MAX(DATE(created_at)) as max_date FROM subscription_record
),
distinct_dates AS (
    SELECT generate_series(min_date, max_date, '1 day'::interval) as date FROM min_max_dates
),
user_id_date AS (
    SELECT user_id, DATE(created_at) as date FROM subscription_record
)
SELECT TO_CHAR(d.date, 'YYYY-MM-DD') as date, COUNT(DISTINCT s.user_id) as value
FROM distinct_dates d
LEFT JOIN user_id_date s ON s.date <= d.date
GROUP BY d.date
ORDER BY d.date DESC
`).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getTrialConversionRate(ctx context.Context, _ *CreditStatisticRequest) ([]CreditStatisticResponseDataItem, error) {
	var results []CreditStatisticResponseDataItem
	sql := `
WITH trial_starts AS (
  SELECT user_id, MIN(DATE(created_at)) as start_date
  FROM credit_transaction
  WHERE type = 'trial_allocation'
  GROUP BY user_id
),
converted AS (
  SELECT DISTINCT t.user_id, t.start_date
  FROM trial_starts t
  JOIN credit_transaction c
    ON c.user_id = t.user_id
   AND c.type = 'subscription_allocation'
   AND DATE(c.created_at) >= t.start_date
),
totals AS (
  SELECT start_date, COUNT(*) as count2 FROM trial_starts GROUP BY start_date
),
conversions AS (
  SELECT start_date, COUNT(*) as count1 FROM converted GROUP BY start_date
)
SELECT
  TO_CHAR(t.start_date, 'YYYY-MM-DD') as date,
  CASE WHEN t.count2 = 0 THEN 0
       ELSE CAST(ROUND(LEAST(COALESCE(c.count1, 0) * 100.0 / t.count2, 100), 2) * 100 AS INTEGER)
  END as value,
  t.count2 as value2,
  COALESCE(c.count1, 0) as value3
FROM totals t
LEFT JOIN conversions c ON t.start_date = c.start_date
ORDER BY date DESC`
	if err := s.db.WithContext(ctx).Raw(sql).Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getCreditStatistic(ctx context.Context, request *CreditStatisticRequest, dataItem *CreditStatisticDataItem) ([]CreditStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeDailyUsage:
		return s.getDailyUsage(ctx, request)
	case StatisticTypeDailyGrants:
		return s.getDailyGrants(ctx, request)
	case StatisticTypeDailyActiveUsers:
		return s.getDailyActiveUsers(ctx, request)
	case StatisticTypeTotalOutstanding:
		return s.getTotalOutstanding(ctx, request)
	case StatisticTypeDailyNewSubscriptions:
		return s.getDailyNewSubscriptions(ctx, request)
	case StatisticTypeDailyAccumulatedSubscribers:
		return s.getDailyAccumulatedSubscribers(ctx, request)
	case StatisticTypeTrialConversionRate:
		return s.getTrialConversionRate(ctx, request)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

func (s *Service) GetCreditStatistic(ctx context.Context, request *CreditStatisticRequest) (*CreditStatisticResponse, error) {
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []CreditStatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *CreditStatisticDataItem) {
			defer wg.Done()
			// check filter applicability
			for _, filter := range request.Filters {
				ft := CreditStatisticFilterType(filter.Field)
				if lo.Contains(filterTypes, ft) && !lo.Contains(validFilters[ft], di.ID) {
					resChan <- &lo.Entry[StatisticType, []CreditStatisticResponseDataItem]{Key: di.ID, Value: nil}
					return
				}
			}
			res, err := s.getCreditStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []CreditStatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[StatisticType][]CreditStatisticResponseDataItem)
	for i := 0; i < len(request.DataItems); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return &CreditStatisticResponse{DataItems: results}, nil
}
