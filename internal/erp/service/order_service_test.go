package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/forge/internal/erp/entity"
	"github.com/bitfantasy/forge/internal/erp/repository"
	"github.com/bitfantasy/forge/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	testBuyer    = Actor{ID: "buyer-001", Capabilities: []string{"*"}}
	testApprover = Actor{ID: "approver-001", Capabilities: []string{"*"}}
)

func setupOrderService(t *testing.T) (*OrderService, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return NewOrderService(repos, db, NoopCache{}, zap.NewNop()), db
}

func createTestOrder(t *testing.T, svc *OrderService, supplierID, materialID string) *OrderView {
	t.Helper()
	order, err := svc.Create(context.Background(), testBuyer, &CreateOrderRequest{
		SupplierID: supplierID,
		TaxRate:    0.1,
		Items: []CreateOrderItem{
			{MaterialID: materialID, Quantity: 50, UnitPrice: 16.0},
		},
	})
	if err != nil {
		t.Fatalf("Create order failed: %v", err)
	}
	return order
}

func TestCreateOrder(t *testing.T) {
	svc, db := setupOrderService(t)
	testutil.SeedSupplier(t, db, "sup-1", "测试供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 100, 10.0)

	order := createTestOrder(t, svc, "sup-1", "mat-1")

	if order.Status != entity.OrderStatusDraft {
		t.Errorf("status = %s, want %s", order.Status, entity.OrderStatusDraft)
	}
	prefix := fmt.Sprintf("PO-%d-%02d-", time.Now().Year(), time.Now().Month())
	if !strings.HasPrefix(order.OrderNumber, prefix) {
		t.Errorf("order number = %s, want prefix %s", order.OrderNumber, prefix)
	}
	if order.Subtotal != 800 || order.Tax != 80 || order.Total != 880 {
		t.Errorf("totals = %v/%v/%v, want 800/80/880", order.Subtotal, order.Tax, order.Total)
	}
	if !order.CanEdit {
		t.Error("draft order should be editable")
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc, db := setupOrderService(t)
	supplier := testutil.SeedSupplier(t, db, "sup-1", "测试供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 0, 0)

	// 停用供应商
	db.Model(supplier).Update("status", entity.SupplierStatusSuspended)
	_, err := svc.Create(context.Background(), testBuyer, &CreateOrderRequest{
		SupplierID: "sup-1",
		Items:      []CreateOrderItem{{MaterialID: "mat-1", Quantity: 1, UnitPrice: 1}},
	})
	if KindOf(err) != KindInactiveSupplier {
		t.Errorf("inactive supplier: kind = %v, want %v", KindOf(err), KindInactiveSupplier)
	}
	db.Model(supplier).Update("status", entity.SupplierStatusActive)

	// 行项数量必须为正
	_, err = svc.Create(context.Background(), testBuyer, &CreateOrderRequest{
		SupplierID: "sup-1",
		Items:      []CreateOrderItem{{MaterialID: "mat-1", Quantity: 0, UnitPrice: 1}},
	})
	if KindOf(err) != KindValidation {
		t.Errorf("zero quantity: kind = %v, want %v", KindOf(err), KindValidation)
	}

	// 无行项
	_, err = svc.Create(context.Background(), testBuyer, &CreateOrderRequest{
		SupplierID: "sup-1",
		Items:      []CreateOrderItem{},
	})
	if KindOf(err) != KindValidation {
		t.Errorf("no items: kind = %v, want %v", KindOf(err), KindValidation)
	}
}

func TestApprovalFlow(t *testing.T) {
	svc, db := setupOrderService(t)
	testutil.SeedSupplier(t, db, "sup-1", "测试供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 100, 10.0)
	ctx := context.Background()

	order := createTestOrder(t, svc, "sup-1", "mat-1")

	// 创建人不得自审
	if _, err := svc.Approve(ctx, testBuyer, order.ID, ""); KindOf(err) != KindSelfApproval {
		t.Errorf("self approval: kind = %v, want %v", KindOf(err), KindSelfApproval)
	}

	submitted, err := svc.Submit(ctx, testBuyer, order.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if submitted.Status != entity.OrderStatusPending {
		t.Errorf("status = %s, want %s", submitted.Status, entity.OrderStatusPending)
	}

	// 重复提交失败
	if _, err := svc.Submit(ctx, testBuyer, order.ID); KindOf(err) != KindInvalidState {
		t.Errorf("double submit: kind = %v, want %v", KindOf(err), KindInvalidState)
	}

	approved, err := svc.Approve(ctx, testApprover, order.ID, "价格合理")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != entity.OrderStatusApproved {
		t.Errorf("status = %s, want %s", approved.Status, entity.OrderStatusApproved)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != testApprover.ID {
		t.Error("ApprovedBy not recorded")
	}
	if !strings.Contains(approved.Notes, "价格合理") {
		t.Error("approval note not appended")
	}

	// 重复审批失败
	if _, err := svc.Approve(ctx, testApprover, order.ID, ""); KindOf(err) != KindInvalidState {
		t.Errorf("double approve: kind = %v, want %v", KindOf(err), KindInvalidState)
	}
}

func TestRejectClearsApproval(t *testing.T) {
	svc, db := setupOrderService(t)
	testutil.SeedSupplier(t, db, "sup-1", "测试供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 100, 10.0)
	ctx := context.Background()

	order := createTestOrder(t, svc, "sup-1", "mat-1")
	svc.Submit(ctx, testBuyer, order.ID)
	svc.Approve(ctx, testApprover, order.ID, "")

	// 原因必填
	if _, err := svc.Reject(ctx, testApprover, order.ID, ""); KindOf(err) != KindValidation {
		t.Errorf("empty reason: kind = %v, want %v", KindOf(err), KindValidation)
	}

	rejected, err := svc.Reject(ctx, testApprover, order.ID, "预算超限")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != entity.OrderStatusDraft {
		t.Errorf("status = %s, want %s", rejected.Status, entity.OrderStatusDraft)
	}
	if rejected.ApprovedBy != nil || rejected.ApprovedAt != nil {
		t.Error("approval fields should be cleared on reject")
	}
	if !strings.Contains(rejected.Notes, "预算超限") {
		t.Error("reject reason not appended to notes")
	}
}

func TestExecuteOrder(t *testing.T) {
	svc, db := setupOrderService(t)
	testutil.SeedSupplier(t, db, "sup-1", "测试供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 100, 10.0)
	ctx := context.Background()

	order := createTestOrder(t, svc, "sup-1", "mat-1")
	svc.Submit(ctx, testBuyer, order.ID)
	svc.Approve(ctx, testApprover, order.ID, "")

	actualDate := time.Now()
	executed, err := svc.Execute(ctx, testBuyer, order.ID, &ExecuteOrderRequest{ActualDate: &actualDate})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if executed.Status != entity.OrderStatusExecuted {
		t.Errorf("status = %s, want %s", executed.Status, entity.OrderStatusExecuted)
	}

	// 加权平均成本: (100*10 + 50*16) / 150 = 12.0
	var material entity.RawMaterial
	db.First(&material, "id = ?", "mat-1")
	if material.Quantity != 150 {
		t.Errorf("material quantity = %v, want 150", material.Quantity)
	}
	if math.Abs(material.UnitCost-12.0) > 1e-9 {
		t.Errorf("material unit cost = %v, want 12.0", material.UnitCost)
	}

	// 入库流水
	var movements []entity.StockMovement
	db.Where("material_id = ?", "mat-1").Find(&movements)
	if len(movements) != 1 {
		t.Fatalf("movement count = %d, want 1", len(movements))
	}
	if movements[0].Direction != entity.MovementDirectionIn || movements[0].Quantity != 50 {
		t.Errorf("movement = %s/%v, want in/50", movements[0].Direction, movements[0].Quantity)
	}
	if movements[0].OrderID == nil || *movements[0].OrderID != order.ID {
		t.Error("movement should reference the order")
	}

	// 供应商结算：余额增加，累计采购额从订单表重算
	var supplier entity.Supplier
	db.First(&supplier, "id = ?", "sup-1")
	if supplier.Balance != 880 {
		t.Errorf("supplier balance = %v, want 880", supplier.Balance)
	}
	if supplier.TotalPurchases != 880 {
		t.Errorf("supplier total purchases = %v, want 880", supplier.TotalPurchases)
	}

	// 行项收货数量落库
	var item entity.PurchaseOrderItem
	db.First(&item, "order_id = ?", order.ID)
	if item.ReceivedQty == nil || *item.ReceivedQty != 50 {
		t.Error("item received quantity not recorded")
	}

	// 重复执行失败
	if _, err := svc.Execute(ctx, testBuyer, order.ID, &ExecuteOrderRequest{ActualDate: &actualDate}); KindOf(err) != KindInvalidState {
		t.Errorf("double execute: kind = %v, want %v", KindOf(err), KindInvalidState)
	}
}

func TestExecutePartialReceipt(t *testing.T) {
	svc, db := setupOrderService(t)
	testutil.SeedSupplier(t, db, "sup-1", "测试供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 100, 10.0)
	testutil.SeedMaterial(t, db, "mat-2", "包装纸箱", 20, 2.0)
	ctx := context.Background()

	order, err := svc.Create(ctx, testBuyer, &CreateOrderRequest{
		SupplierID: "sup-1",
		Items: []CreateOrderItem{
			{MaterialID: "mat-1", Quantity: 50, UnitPrice: 16.0},
			{MaterialID: "mat-2", Quantity: 10, UnitPrice: 3.0},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	svc.Submit(ctx, testBuyer, order.ID)
	svc.Approve(ctx, testApprover, order.ID, "")

	var firstItem, secondItem string
	for _, it := range order.Items {
		switch it.MaterialID {
		case "mat-1":
			firstItem = it.ID
		case "mat-2":
			secondItem = it.ID
		}
	}

	// mat-1 部分收货30，mat-2 显式零收货
	actualDate := time.Now()
	_, err = svc.Execute(ctx, testBuyer, order.ID, &ExecuteOrderRequest{
		ActualDate: &actualDate,
		ReceivedItems: []ReceivedItem{
			{ItemID: firstItem, Quantity: 30},
			{ItemID: secondItem, Quantity: 0},
		},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// (100*10 + 30*16) / 130 = 11.3846
	var material entity.RawMaterial
	db.First(&material, "id = ?", "mat-1")
	if material.Quantity != 130 {
		t.Errorf("material quantity = %v, want 130", material.Quantity)
	}
	if math.Abs(material.UnitCost-11.3846) > 1e-4 {
		t.Errorf("material unit cost = %v, want 11.3846", material.UnitCost)
	}

	// 零收货不产生流水，成本不变
	var untouched entity.RawMaterial
	db.First(&untouched, "id = ?", "mat-2")
	if untouched.Quantity != 20 || untouched.UnitCost != 2.0 {
		t.Errorf("zero receipt changed stock: qty=%v cost=%v", untouched.Quantity, untouched.UnitCost)
	}
	var count int64
	db.Model(&entity.StockMovement{}).Where("material_id = ?", "mat-2").Count(&count)
	if count != 0 {
		t.Errorf("zero receipt movement count = %d, want 0", count)
	}
}

func TestCancelAndRestore(t *testing.T) {
	svc, db := setupOrderService(t)
	testutil.SeedSupplier(t, db, "sup-1", "测试供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 100, 10.0)
	ctx := context.Background()

	order := createTestOrder(t, svc, "sup-1", "mat-1")
	svc.Submit(ctx, testBuyer, order.ID)
	svc.Approve(ctx, testApprover, order.ID, "")

	// 原因必填
	if _, err := svc.Cancel(ctx, testBuyer, order.ID, ""); KindOf(err) != KindValidation {
		t.Errorf("empty reason: kind = %v, want %v", KindOf(err), KindValidation)
	}

	cancelled, err := svc.Cancel(ctx, testBuyer, order.ID, "供应商交期不满足")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != entity.OrderStatusCancelled {
		t.Errorf("status = %s, want %s", cancelled.Status, entity.OrderStatusCancelled)
	}
	if cancelled.PreCancelStatus != entity.OrderStatusApproved {
		t.Errorf("pre-cancel status = %s, want %s", cancelled.PreCancelStatus, entity.OrderStatusApproved)
	}

	// 重复取消失败
	if _, err := svc.Cancel(ctx, testBuyer, order.ID, "again"); KindOf(err) != KindInvalidState {
		t.Errorf("double cancel: kind = %v, want %v", KindOf(err), KindInvalidState)
	}

	restored, err := svc.Restore(ctx, testBuyer, order.ID)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.Status != entity.OrderStatusApproved {
		t.Errorf("restored status = %s, want %s", restored.Status, entity.OrderStatusApproved)
	}
	if restored.CancelledBy != nil || restored.CancelledAt != nil || restored.CancelReason != "" {
		t.Error("cancel fields should be cleared on restore")
	}

	// 已执行订单不可取消
	actualDate := time.Now()
	if _, err := svc.Execute(ctx, testBuyer, order.ID, &ExecuteOrderRequest{ActualDate: &actualDate}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := svc.Cancel(ctx, testBuyer, order.ID, "too late"); KindOf(err) != KindInvalidState {
		t.Errorf("cancel executed: kind = %v, want %v", KindOf(err), KindInvalidState)
	}
}

func TestRestoreLegacyRowWithoutPreCancelStatus(t *testing.T) {
	svc, db := setupOrderService(t)
	testutil.SeedSupplier(t, db, "sup-1", "测试供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 100, 10.0)
	ctx := context.Background()

	order := createTestOrder(t, svc, "sup-1", "mat-1")
	svc.Submit(ctx, testBuyer, order.ID)
	svc.Approve(ctx, testApprover, order.ID, "")
	if _, err := svc.Cancel(ctx, testBuyer, order.ID, "历史数据模拟"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	// 模拟早期数据：没有取消前状态，只能靠审批时间推断
	db.Model(&entity.PurchaseOrder{}).Where("id = ?", order.ID).Update("pre_cancel_status", "")

	restored, err := svc.Restore(ctx, testBuyer, order.ID)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.Status != entity.OrderStatusApproved {
		t.Errorf("legacy restore status = %s, want %s", restored.Status, entity.OrderStatusApproved)
	}
}

func TestDuplicateOrder(t *testing.T) {
	svc, db := setupOrderService(t)
	testutil.SeedSupplier(t, db, "sup-1", "测试供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 100, 10.0)
	ctx := context.Background()

	source := createTestOrder(t, svc, "sup-1", "mat-1")

	copy, err := svc.Duplicate(ctx, testBuyer, source.ID, DuplicateOptions{IncludeItems: true})
	if err != nil {
		t.Fatalf("Duplicate failed: %v", err)
	}
	if copy.ID == source.ID || copy.OrderNumber == source.OrderNumber {
		t.Error("duplicate should get fresh id and order number")
	}
	if copy.Status != entity.OrderStatusDraft {
		t.Errorf("duplicate status = %s, want %s", copy.Status, entity.OrderStatusDraft)
	}
	if len(copy.Items) != 1 || copy.Items[0].ID == source.Items[0].ID {
		t.Error("duplicate items should be new rows")
	}
	if copy.Total != source.Total {
		t.Errorf("duplicate total = %v, want %v", copy.Total, source.Total)
	}
	if !strings.Contains(copy.Notes, source.OrderNumber) {
		t.Error("duplicate should reference source order number in notes")
	}

	// 复制独立性：修改副本不影响源单
	newQty := 99.0
	items := []CreateOrderItem{{MaterialID: "mat-1", Quantity: newQty, UnitPrice: 16.0}}
	if _, err := svc.Update(ctx, testBuyer, copy.ID, &UpdateOrderRequest{Items: &items}); err != nil {
		t.Fatalf("Update duplicate failed: %v", err)
	}
	var sourceItems []entity.PurchaseOrderItem
	db.Where("order_id = ?", source.ID).Find(&sourceItems)
	if len(sourceItems) != 1 || sourceItems[0].Quantity != 50 {
		t.Error("editing duplicate must not touch source items")
	}

	// 停用供应商后不可复制
	db.Model(&entity.Supplier{}).Where("id = ?", "sup-1").Update("status", entity.SupplierStatusSuspended)
	if _, err := svc.Duplicate(ctx, testBuyer, source.ID, DuplicateOptions{IncludeItems: true}); KindOf(err) != KindInactiveSupplier {
		t.Errorf("inactive supplier duplicate: kind = %v, want %v", KindOf(err), KindInactiveSupplier)
	}
}

func TestDeleteOrder(t *testing.T) {
	svc, db := setupOrderService(t)
	testutil.SeedSupplier(t, db, "sup-1", "测试供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 100, 10.0)
	ctx := context.Background()

	order := createTestOrder(t, svc, "sup-1", "mat-1")
	svc.Submit(ctx, testBuyer, order.ID)
	svc.Approve(ctx, testApprover, order.ID, "")

	// 已审批订单不可删除，删除失败后订单与行项完好
	if err := svc.Delete(ctx, testBuyer, order.ID); KindOf(err) != KindInvalidState {
		t.Errorf("delete approved: kind = %v, want %v", KindOf(err), KindInvalidState)
	}
	if _, err := svc.Get(ctx, order.ID); err != nil {
		t.Fatalf("order should survive rejected delete: %v", err)
	}
	var survived int64
	db.Model(&entity.PurchaseOrderItem{}).Where("order_id = ?", order.ID).Count(&survived)
	if survived != 1 {
		t.Errorf("item count after rejected delete = %d, want 1", survived)
	}

	if _, err := svc.Cancel(ctx, testBuyer, order.ID, "不再需要"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := svc.Delete(ctx, testBuyer, order.ID); err != nil {
		t.Fatalf("Delete cancelled order failed: %v", err)
	}

	if _, err := svc.Get(ctx, order.ID); KindOf(err) != KindNotFound {
		t.Errorf("get deleted: kind = %v, want %v", KindOf(err), KindNotFound)
	}
	var itemCount int64
	db.Model(&entity.PurchaseOrderItem{}).Where("order_id = ?", order.ID).Count(&itemCount)
	if itemCount != 0 {
		t.Errorf("orphan item count = %d, want 0", itemCount)
	}
}

func TestUpdateOrderTotalsStayConsistent(t *testing.T) {
	svc, db := setupOrderService(t)
	testutil.SeedSupplier(t, db, "sup-1", "测试供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 100, 10.0)
	testutil.SeedMaterial(t, db, "mat-2", "钢板", 50, 2.0)
	ctx := context.Background()

	order := createTestOrder(t, svc, "sup-1", "mat-1")

	// 替换行项后，订单头合计与库内行项同事务更新
	items := []CreateOrderItem{
		{MaterialID: "mat-1", Quantity: 10, UnitPrice: 10},
		{MaterialID: "mat-2", Quantity: 5, UnitPrice: 20},
	}
	updated, err := svc.Update(ctx, testBuyer, order.ID, &UpdateOrderRequest{Items: &items})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Subtotal != 200 || updated.Tax != 20 || updated.Total != 220 {
		t.Errorf("totals = %v/%v/%v, want 200/20/220", updated.Subtotal, updated.Tax, updated.Total)
	}

	var stored entity.PurchaseOrder
	if err := db.First(&stored, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	var rows []entity.PurchaseOrderItem
	db.Where("order_id = ?", order.ID).Find(&rows)
	if len(rows) != 2 {
		t.Fatalf("stored item count = %d, want 2", len(rows))
	}
	sum := 0.0
	for _, row := range rows {
		sum += row.Quantity * row.UnitPrice
	}
	if stored.Subtotal != sum {
		t.Errorf("stored subtotal = %v, want Σ(qty×price) = %v", stored.Subtotal, sum)
	}
	if stored.Total != stored.Subtotal+stored.Tax {
		t.Errorf("stored total = %v, want %v", stored.Total, stored.Subtotal+stored.Tax)
	}

	// 不存在的订单
	if _, err := svc.Update(ctx, testBuyer, "no-such-order", &UpdateOrderRequest{}); KindOf(err) != KindNotFound {
		t.Errorf("update missing: kind = %v, want %v", KindOf(err), KindNotFound)
	}

	// 已审批订单不可编辑，行项与合计保持不变
	svc.Submit(ctx, testBuyer, order.ID)
	svc.Approve(ctx, testApprover, order.ID, "")
	newItems := []CreateOrderItem{{MaterialID: "mat-1", Quantity: 1, UnitPrice: 1}}
	if _, err := svc.Update(ctx, testBuyer, order.ID, &UpdateOrderRequest{Items: &newItems}); KindOf(err) != KindInvalidState {
		t.Errorf("update approved: kind = %v, want %v", KindOf(err), KindInvalidState)
	}
	var after entity.PurchaseOrder
	db.First(&after, "id = ?", order.ID)
	var afterCount int64
	db.Model(&entity.PurchaseOrderItem{}).Where("order_id = ?", order.ID).Count(&afterCount)
	if afterCount != 2 || after.Subtotal != 200 || after.Total != 220 {
		t.Errorf("rejected update must not change items or totals: count=%d subtotal=%v total=%v",
			afterCount, after.Subtotal, after.Total)
	}
}

func TestGetOrderIsStable(t *testing.T) {
	svc, db := setupOrderService(t)
	testutil.SeedSupplier(t, db, "sup-1", "测试供应商")
	testutil.SeedMaterial(t, db, "mat-1", "铝型材", 100, 10.0)
	ctx := context.Background()

	order := createTestOrder(t, svc, "sup-1", "mat-1")

	first, err := svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("first Get failed: %v", err)
	}
	second, err := svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}

	// 重复读取除时钟派生字段外完全一致
	first.IsOverdue, second.IsOverdue = false, false
	first.DaysSinceCreated, second.DaysSinceCreated = 0, 0
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("repeated reads differ:\n%s\n%s", a, b)
	}
}
