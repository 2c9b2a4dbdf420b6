package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/forge/internal/erp/entity"
	"github.com/bitfantasy/forge/internal/erp/repository"
	"github.com/bitfantasy/forge/internal/testutil"
	"go.uber.org/zap"
)

func TestGetStatistics(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	orders := NewOrderService(repos, db, NoopCache{}, zap.NewNop())
	stats := NewStatsService(db, repos.Order, NoopCache{})
	ctx := context.Background()

	testutil.SeedSupplier(t, db, "sup-1", "一号供应商")
	testutil.SeedSupplier(t, db, "sup-2", "二号供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 0, 0)

	newOrder := func(supplierID string, qty float64) *OrderView {
		o, err := orders.Create(ctx, testBuyer, &CreateOrderRequest{
			SupplierID: supplierID,
			Items:      []CreateOrderItem{{MaterialID: "mat-1", Quantity: qty, UnitPrice: 10}},
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		return o
	}

	// 一单留在草稿，一单待审批，一单执行，一单取消
	newOrder("sup-1", 10)

	pending := newOrder("sup-1", 20)
	orders.Submit(ctx, testBuyer, pending.ID)

	executed := newOrder("sup-2", 30)
	orders.Submit(ctx, testBuyer, executed.ID)
	orders.Approve(ctx, testApprover, executed.ID, "")
	actualDate := time.Now()
	if _, err := orders.Execute(ctx, testBuyer, executed.ID, &ExecuteOrderRequest{ActualDate: &actualDate}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	cancelled := newOrder("sup-1", 40)
	if _, err := orders.Cancel(ctx, testBuyer, cancelled.ID, "计划变更"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	result, err := stats.GetStatistics(ctx, PeriodMonth, "")
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}

	if result.TotalOrders != 4 {
		t.Errorf("total orders = %d, want 4", result.TotalOrders)
	}
	// 100 + 200 + 300 + 400
	if result.TotalValue != 1000 {
		t.Errorf("total value = %v, want 1000", result.TotalValue)
	}
	if result.PendingApproval != 1 {
		t.Errorf("pending approval = %d, want 1", result.PendingApproval)
	}

	// 每状态各占25%
	for _, status := range []string{
		entity.OrderStatusDraft, entity.OrderStatusPending,
		entity.OrderStatusExecuted, entity.OrderStatusCancelled,
	} {
		stat, ok := result.ByStatus[status]
		if !ok || stat.Count != 1 {
			t.Errorf("status %s count = %d, want 1", status, stat.Count)
		}
		if stat.Percentage != 25 {
			t.Errorf("status %s percentage = %v, want 25", status, stat.Percentage)
		}
	}
	// 没有出现的状态也在分布里，计数为零
	if stat := result.ByStatus[entity.OrderStatusApproved]; stat.Count != 0 {
		t.Errorf("approved count = %d, want 0", stat.Count)
	}

	if len(result.TopSuppliers) == 0 || result.TopSuppliers[0].SupplierID != "sup-1" {
		t.Errorf("top supplier should be sup-1 (700 total), got %+v", result.TopSuppliers)
	}
	if len(result.TopMaterials) == 0 || result.TopMaterials[0].MaterialID != "mat-1" {
		t.Errorf("top material should be mat-1, got %+v", result.TopMaterials)
	}
	if len(result.MonthlyTrend) != 12 {
		t.Errorf("monthly trend points = %d, want 12", len(result.MonthlyTrend))
	}
	last := result.MonthlyTrend[11]
	if last.Month != time.Now().Format("2006-01") || last.OrderCount != 4 {
		t.Errorf("current month point = %+v, want month %s count 4", last, time.Now().Format("2006-01"))
	}

	// 供应商过滤
	filtered, err := stats.GetStatistics(ctx, PeriodMonth, "sup-2")
	if err != nil {
		t.Fatalf("GetStatistics with supplier failed: %v", err)
	}
	if filtered.TotalOrders != 1 || filtered.TotalValue != 300 {
		t.Errorf("sup-2 stats = %d/%v, want 1/300", filtered.TotalOrders, filtered.TotalValue)
	}

	// 非法周期
	if _, err := stats.GetStatistics(ctx, "decade", ""); KindOf(err) != KindValidation {
		t.Errorf("invalid period: kind = %v, want %v", KindOf(err), KindValidation)
	}
}

func TestCountOverdue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	orders := NewOrderService(repos, db, NoopCache{}, zap.NewNop())
	stats := NewStatsService(db, repos.Order, NoopCache{})
	ctx := context.Background()

	testutil.SeedSupplier(t, db, "sup-1", "一号供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 0, 0)

	pastDate := time.Now().Add(-72 * time.Hour)
	order, err := orders.Create(ctx, testBuyer, &CreateOrderRequest{
		SupplierID:   "sup-1",
		ExpectedDate: &pastDate,
		Items:        []CreateOrderItem{{MaterialID: "mat-1", Quantity: 5, UnitPrice: 10}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	result, err := stats.GetStatistics(ctx, PeriodAll, "")
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if result.OverdueCount != 1 {
		t.Errorf("overdue count = %d, want 1", result.OverdueCount)
	}

	// 执行后不再逾期
	orders.Submit(ctx, testBuyer, order.ID)
	orders.Approve(ctx, testApprover, order.ID, "")
	actualDate := time.Now()
	if _, err := orders.Execute(ctx, testBuyer, order.ID, &ExecuteOrderRequest{ActualDate: &actualDate}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	result, err = stats.GetStatistics(ctx, PeriodAll, "")
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if result.OverdueCount != 0 {
		t.Errorf("overdue count after execute = %d, want 0", result.OverdueCount)
	}
}

func TestExportStatisticsGrowthCell(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	orders := NewOrderService(repos, db, NoopCache{}, zap.NewNop())
	stats := NewStatsService(db, repos.Order, NoopCache{})
	ctx := context.Background()

	testutil.SeedSupplier(t, db, "sup-1", "一号供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 0, 0)

	newOrder := func(qty float64) *OrderView {
		o, err := orders.Create(ctx, testBuyer, &CreateOrderRequest{
			SupplierID: "sup-1",
			Items:      []CreateOrderItem{{MaterialID: "mat-1", Quantity: qty, UnitPrice: 10}},
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		return o
	}

	// 本月300，上月200，环比 +50%
	newOrder(30)
	previous := newOrder(20)
	now := time.Now()
	prevMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
	if err := db.Model(&entity.PurchaseOrder{}).
		Where("id = ?", previous.ID).Update("order_date", prevMonth).Error; err != nil {
		t.Fatalf("backdate order failed: %v", err)
	}

	f, filename, err := stats.ExportStatistics(ctx, PeriodMonth, "")
	if err != nil {
		t.Fatalf("ExportStatistics failed: %v", err)
	}
	if !strings.HasPrefix(filename, "procurement_stats_month_") {
		t.Errorf("filename = %s, want procurement_stats_month_ prefix", filename)
	}

	// 增长率单元格按百分比展示
	cell, err := f.GetCellValue("采购统计", "B6")
	if err != nil {
		t.Fatalf("read growth cell failed: %v", err)
	}
	if cell != "50.00%" {
		t.Errorf("growth cell = %q, want %q", cell, "50.00%")
	}
}
