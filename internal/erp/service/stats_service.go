package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/forge/internal/erp/entity"
	"github.com/bitfantasy/forge/internal/erp/repository"
	"gorm.io/gorm"
)

// 统计时间窗口
const (
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"
	PeriodAll     = "all"
)

const statsTopN = 5

// StatsService 采购统计。纯读路径，不改动核心实体，可读穿旁路缓存
type StatsService struct {
	db        *gorm.DB
	orderRepo *repository.OrderRepository
	cache     Cache
}

func NewStatsService(db *gorm.DB, orderRepo *repository.OrderRepository, cache Cache) *StatsService {
	return &StatsService{db: db, orderRepo: orderRepo, cache: cache}
}

// StatusStat 单状态统计
type StatusStat struct {
	Count      int64   `json:"count"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// SupplierStat 供应商采购额排名
type SupplierStat struct {
	SupplierID string  `json:"supplier_id"`
	Name       string  `json:"name"`
	OrderCount int64   `json:"order_count"`
	TotalValue float64 `json:"total_value"`
}

// MaterialStat 物料采购排名
type MaterialStat struct {
	MaterialID string  `json:"material_id"`
	Name       string  `json:"name"`
	TotalValue float64 `json:"total_value"`
	TotalQty   float64 `json:"total_qty"`
}

// MonthStat 单月趋势点
type MonthStat struct {
	Month         string  `json:"month"` // YYYY-MM
	OrderCount    int64   `json:"order_count"`
	TotalValue    float64 `json:"total_value"`
	AvgOrderValue float64 `json:"avg_order_value"`
}

// Statistics 统计汇总
type Statistics struct {
	Period          string                `json:"period"`
	SupplierID      string                `json:"supplier_id,omitempty"`
	TotalOrders     int64                 `json:"total_orders"`
	TotalValue      float64               `json:"total_value"`
	ByStatus        map[string]StatusStat `json:"by_status"`
	TopSuppliers    []SupplierStat        `json:"top_suppliers"`
	TopMaterials    []MaterialStat        `json:"top_materials"`
	MonthlyTrend    []MonthStat           `json:"monthly_trend"`
	OverdueCount    int64                 `json:"overdue_count"`
	PendingApproval int64                 `json:"pending_approval"`
	GrowthRate      float64               `json:"growth_rate"`
}

// GetStatistics 按时间窗口与可选供应商过滤计算采购统计
func (s *StatsService) GetStatistics(ctx context.Context, period, supplierID string) (*Statistics, error) {
	switch period {
	case PeriodMonth, PeriodQuarter, PeriodYear, PeriodAll:
	default:
		return nil, validationErr("无效的统计周期: %s", period)
	}

	cacheKey := fmt.Sprintf("%s%s:%s", cacheKeyStats, period, supplierID)
	var cached Statistics
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	now := time.Now()
	stats := &Statistics{
		Period:     period,
		SupplierID: supplierID,
		ByStatus:   make(map[string]StatusStat, len(entity.OrderStatuses)),
	}

	base := s.windowQuery(ctx, period, supplierID, now)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, storageErr("统计订单总数失败", err)
	}
	if err := base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(total), 0)").Scan(&stats.TotalValue).Error; err != nil {
		return nil, storageErr("统计订单总额失败", err)
	}

	if err := s.fillStatusBreakdown(ctx, stats, period, supplierID, now); err != nil {
		return nil, err
	}
	if err := s.fillTopSuppliers(ctx, stats, period, supplierID, now); err != nil {
		return nil, err
	}
	if err := s.fillTopMaterials(ctx, stats, period, supplierID, now); err != nil {
		return nil, err
	}
	if err := s.fillMonthlyTrend(ctx, stats, supplierID, now); err != nil {
		return nil, err
	}

	overdue, err := s.orderRepo.CountOverdue(ctx, now, supplierID)
	if err != nil {
		return nil, storageErr("统计逾期订单失败", err)
	}
	stats.OverdueCount = overdue

	pending, err := s.orderRepo.CountByStatus(ctx, entity.OrderStatusPending, supplierID)
	if err != nil {
		return nil, storageErr("统计待审批订单失败", err)
	}
	stats.PendingApproval = pending

	growth, err := s.monthOverMonthGrowth(ctx, supplierID, now)
	if err != nil {
		return nil, err
	}
	stats.GrowthRate = growth

	s.cache.Set(ctx, cacheKey, stats)
	return stats, nil
}

// windowQuery 统计窗口的基础查询
func (s *StatsService) windowQuery(ctx context.Context, period, supplierID string, now time.Time) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&entity.PurchaseOrder{})
	if start := periodStart(period, now); !start.IsZero() {
		query = query.Where("order_date >= ?", start)
	}
	if supplierID != "" {
		query = query.Where("supplier_id = ?", supplierID)
	}
	return query
}

func periodStart(period string, now time.Time) time.Time {
	switch period {
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case PeriodQuarter:
		quarterMonth := time.Month((int(now.Month())-1)/3*3 + 1)
		return time.Date(now.Year(), quarterMonth, 1, 0, 0, 0, 0, now.Location())
	case PeriodYear:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	}
	return time.Time{}
}

func (s *StatsService) fillStatusBreakdown(ctx context.Context, stats *Statistics, period, supplierID string, now time.Time) error {
	var rows []struct {
		Status string
		Count  int64
		Value  float64
	}
	err := s.windowQuery(ctx, period, supplierID, now).
		Select("status, COUNT(*) as count, COALESCE(SUM(total), 0) as value").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return storageErr("按状态统计失败", err)
	}

	for _, status := range entity.OrderStatuses {
		stats.ByStatus[status] = StatusStat{}
	}
	for _, row := range rows {
		stat := StatusStat{Count: row.Count, Value: row.Value}
		if stats.TotalOrders > 0 {
			stat.Percentage = round2(float64(row.Count) / float64(stats.TotalOrders) * 100)
		}
		stats.ByStatus[row.Status] = stat
	}
	return nil
}

func (s *StatsService) fillTopSuppliers(ctx context.Context, stats *Statistics, period, supplierID string, now time.Time) error {
	query := s.db.WithContext(ctx).
		Table("erp_purchase_orders o").
		Joins("JOIN erp_suppliers s ON s.id = o.supplier_id").
		Select("o.supplier_id, s.name, COUNT(*) as order_count, COALESCE(SUM(o.total), 0) as total_value").
		Group("o.supplier_id, s.name").
		Order("total_value DESC").
		Limit(statsTopN)
	if start := periodStart(period, now); !start.IsZero() {
		query = query.Where("o.order_date >= ?", start)
	}
	if supplierID != "" {
		query = query.Where("o.supplier_id = ?", supplierID)
	}
	if err := query.Scan(&stats.TopSuppliers).Error; err != nil {
		return storageErr("供应商排名统计失败", err)
	}
	return nil
}

func (s *StatsService) fillTopMaterials(ctx context.Context, stats *Statistics, period, supplierID string, now time.Time) error {
	query := s.db.WithContext(ctx).
		Table("erp_purchase_order_items i").
		Joins("JOIN erp_purchase_orders o ON o.id = i.order_id").
		Joins("JOIN erp_raw_materials m ON m.id = i.material_id").
		Select("i.material_id, m.name, COALESCE(SUM(i.total_price), 0) as total_value, COALESCE(SUM(i.quantity), 0) as total_qty").
		Group("i.material_id, m.name").
		Order("total_value DESC").
		Limit(statsTopN)
	if start := periodStart(period, now); !start.IsZero() {
		query = query.Where("o.order_date >= ?", start)
	}
	if supplierID != "" {
		query = query.Where("o.supplier_id = ?", supplierID)
	}
	if err := query.Scan(&stats.TopMaterials).Error; err != nil {
		return storageErr("物料排名统计失败", err)
	}
	return nil
}

// fillMonthlyTrend 近12个月趋势，每个自然月独立查询
func (s *StatsService) fillMonthlyTrend(ctx context.Context, stats *Statistics, supplierID string, now time.Time) error {
	stats.MonthlyTrend = make([]MonthStat, 0, 12)
	for i := 11; i >= 0; i-- {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -i, 0)
		point, err := s.monthStat(ctx, supplierID, monthStart)
		if err != nil {
			return err
		}
		stats.MonthlyTrend = append(stats.MonthlyTrend, point)
	}
	return nil
}

func (s *StatsService) monthStat(ctx context.Context, supplierID string, monthStart time.Time) (MonthStat, error) {
	monthEnd := monthStart.AddDate(0, 1, 0)
	point := MonthStat{Month: monthStart.Format("2006-01")}

	query := s.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("order_date >= ? AND order_date < ?", monthStart, monthEnd)
	if supplierID != "" {
		query = query.Where("supplier_id = ?", supplierID)
	}

	var row struct {
		Count int64
		Value float64
	}
	err := query.Select("COUNT(*) as count, COALESCE(SUM(total), 0) as value").Scan(&row).Error
	if err != nil {
		return point, storageErr("月度趋势统计失败", err)
	}

	point.OrderCount = row.Count
	point.TotalValue = row.Value
	if row.Count > 0 {
		point.AvgOrderValue = round2(row.Value / float64(row.Count))
	}
	return point, nil
}

// monthOverMonthGrowth 环比增长率 (cur-prev)/prev，上月为0时定义为0
func (s *StatsService) monthOverMonthGrowth(ctx context.Context, supplierID string, now time.Time) (float64, error) {
	currentStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	current, err := s.monthStat(ctx, supplierID, currentStart)
	if err != nil {
		return 0, err
	}
	previous, err := s.monthStat(ctx, supplierID, currentStart.AddDate(0, -1, 0))
	if err != nil {
		return 0, err
	}
	return GrowthRate(current.TotalValue, previous.TotalValue), nil
}

// GrowthRate 环比增长率，除零定义为0
func GrowthRate(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous
}
