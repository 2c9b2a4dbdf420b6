package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/forge/internal/erp/entity"
	"github.com/bitfantasy/forge/internal/erp/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderService 采购订单生命周期引擎。状态机迁移的前置校验在写库前完成，
// 跨实体的迁移（执行、取消、恢复）在单个事务内完成
type OrderService struct {
	orderRepo    *repository.OrderRepository
	materialRepo *repository.MaterialRepository
	supplierRepo *repository.SupplierRepository
	db           *gorm.DB
	cache        Cache
	logger       *zap.Logger
}

func NewOrderService(repos *repository.Repositories, db *gorm.DB, cache Cache, logger *zap.Logger) *OrderService {
	return &OrderService{
		orderRepo:    repos.Order,
		materialRepo: repos.Material,
		supplierRepo: repos.Supplier,
		db:           db,
		cache:        cache,
		logger:       logger,
	}
}

// OrderView 订单及派生标志，标志只由当前状态计算
type OrderView struct {
	entity.PurchaseOrder
	CanEdit          bool `json:"can_edit"`
	CanApprove       bool `json:"can_approve"`
	CanExecute       bool `json:"can_execute"`
	CanCancel        bool `json:"can_cancel"`
	IsOverdue        bool `json:"is_overdue"`
	DaysSinceCreated int  `json:"days_since_created"`
}

func newOrderView(order *entity.PurchaseOrder, now time.Time) *OrderView {
	view := &OrderView{PurchaseOrder: *order}
	view.CanEdit = order.Status == entity.OrderStatusDraft || order.Status == entity.OrderStatusPending
	view.CanApprove = view.CanEdit
	view.CanExecute = order.Status == entity.OrderStatusApproved
	view.CanCancel = view.CanEdit || view.CanExecute
	view.IsOverdue = order.ExpectedDate != nil && order.ExpectedDate.Before(now) &&
		!entity.IsTerminalStatus(order.Status)
	view.DaysSinceCreated = int(now.Sub(order.CreatedAt).Hours() / 24)
	return view
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	SupplierID      string            `json:"supplier_id" binding:"required"`
	Priority        string            `json:"priority"`
	PaymentTerms    string            `json:"payment_terms"`
	DeliveryAddress string            `json:"delivery_address"`
	ExpectedDate    *time.Time        `json:"expected_date"`
	TaxRate         float64           `json:"tax_rate"`
	Notes           string            `json:"notes"`
	Items           []CreateOrderItem `json:"items" binding:"required"`
}

type CreateOrderItem struct {
	MaterialID string  `json:"material_id" binding:"required"`
	Quantity   float64 `json:"quantity" binding:"required"`
	UnitPrice  float64 `json:"unit_price" binding:"required"`
}

// Create 创建订单，初始状态DRAFT，分配当月顺延订单号
func (s *OrderService) Create(ctx context.Context, actor Actor, req *CreateOrderRequest) (*OrderView, error) {
	if err := actor.require(CapManageOrders); err != nil {
		return nil, err
	}
	supplier, err := s.findActiveSupplier(ctx, req.SupplierID)
	if err != nil {
		return nil, err
	}
	if req.TaxRate < 0 {
		return nil, validationErr("税率不能为负")
	}

	now := time.Now()
	number, err := s.orderRepo.GenerateOrderNumber(ctx, now)
	if err != nil {
		return nil, storageErr("生成订单号失败", err)
	}

	order := &entity.PurchaseOrder{
		ID:              uuid.New().String()[:32],
		OrderNumber:     number,
		SupplierID:      supplier.ID,
		Status:          entity.OrderStatusDraft,
		Priority:        req.Priority,
		PaymentTerms:    req.PaymentTerms,
		DeliveryAddress: req.DeliveryAddress,
		OrderDate:       now,
		ExpectedDate:    req.ExpectedDate,
		Notes:           req.Notes,
		CreatedBy:       actor.ID,
	}
	if order.Priority == "" {
		order.Priority = entity.OrderPriorityNormal
	}

	items, subtotal, err := s.buildItems(ctx, order.ID, req.Items)
	if err != nil {
		return nil, err
	}
	order.Items = items
	order.Subtotal = subtotal
	order.Tax = round2(subtotal * req.TaxRate)
	order.Total = order.Subtotal + order.Tax

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, storageErr("创建订单失败", err)
	}

	s.cache.Invalidate(ctx, cacheKeyOrderList, cacheKeyStats)
	return newOrderView(order, now), nil
}

// buildItems 校验并构建行项，返回行项与小计
func (s *OrderService) buildItems(ctx context.Context, orderID string, reqItems []CreateOrderItem) ([]entity.PurchaseOrderItem, float64, error) {
	if len(reqItems) == 0 {
		return nil, 0, validationErr("订单至少需要一个行项")
	}

	var items []entity.PurchaseOrderItem
	var subtotal float64
	for i, item := range reqItems {
		if item.Quantity <= 0 {
			return nil, 0, validationErr("行项%d数量必须大于0", i+1)
		}
		if item.UnitPrice <= 0 {
			return nil, 0, validationErr("行项%d单价必须大于0", i+1)
		}
		if _, err := s.materialRepo.FindByID(ctx, item.MaterialID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, 0, notFoundErr("行项%d物料不存在: %s", i+1, item.MaterialID)
			}
			return nil, 0, storageErr("查询物料失败", err)
		}

		totalPrice := round2(item.Quantity * item.UnitPrice)
		subtotal += totalPrice
		items = append(items, entity.PurchaseOrderItem{
			ID:         uuid.New().String()[:32],
			OrderID:    orderID,
			MaterialID: item.MaterialID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: totalPrice,
			SortOrder:  i + 1,
		})
	}
	return items, round2(subtotal), nil
}

// Submit 提交审批 DRAFT -> PENDING
func (s *OrderService) Submit(ctx context.Context, actor Actor, id string) (*OrderView, error) {
	if err := actor.require(CapManageOrders); err != nil {
		return nil, err
	}
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusDraft {
		return nil, invalidStateErr("只有草稿订单可以提交审批，当前状态: %s", order.Status)
	}

	order.Status = entity.OrderStatusPending
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, storageErr("更新订单失败", err)
	}
	s.cache.Invalidate(ctx, cacheKeyOrderList, cacheKeyStats)
	return newOrderView(order, time.Now()), nil
}

// Approve 审批 DRAFT/PENDING -> APPROVED。创建人不得自审
func (s *OrderService) Approve(ctx context.Context, actor Actor, id, notes string) (*OrderView, error) {
	if err := actor.require(CapApproveOrders); err != nil {
		return nil, err
	}
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusDraft && order.Status != entity.OrderStatusPending {
		return nil, invalidStateErr("当前状态不允许审批: %s", order.Status)
	}
	if order.Supplier == nil || !order.Supplier.IsActive() {
		return nil, &DomainError{Kind: KindInactiveSupplier, Message: "供应商已停用，不能审批"}
	}
	if order.CreatedBy == actor.ID {
		return nil, &DomainError{Kind: KindSelfApproval, Message: "不能审批自己创建的订单"}
	}

	now := time.Now()
	order.Status = entity.OrderStatusApproved
	order.ApprovedBy = &actor.ID
	order.ApprovedAt = &now
	if notes != "" {
		order.Notes = appendNote(order.Notes, "[审批] "+notes)
	}

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, storageErr("更新订单失败", err)
	}
	s.cache.Invalidate(ctx, cacheKeyOrderList, cacheKeyStats)
	return newOrderView(order, now), nil
}

// Reject 驳回 PENDING/APPROVED -> DRAFT，清除审批信息并记录原因
func (s *OrderService) Reject(ctx context.Context, actor Actor, id, reason string) (*OrderView, error) {
	if err := actor.require(CapApproveOrders); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, validationErr("驳回原因不能为空")
	}
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusPending && order.Status != entity.OrderStatusApproved {
		return nil, invalidStateErr("当前状态不允许驳回: %s", order.Status)
	}

	order.Status = entity.OrderStatusDraft
	order.ApprovedBy = nil
	order.ApprovedAt = nil
	order.Notes = appendNote(order.Notes, "[驳回] "+reason)

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, storageErr("更新订单失败", err)
	}
	s.cache.Invalidate(ctx, cacheKeyOrderList, cacheKeyStats)
	return newOrderView(order, time.Now()), nil
}

// ExecuteOrderRequest 执行（收货）请求。ReceivedItems未覆盖的行项按订购数量收货
type ExecuteOrderRequest struct {
	ActualDate    *time.Time     `json:"actual_date" binding:"required"`
	ReceivedItems []ReceivedItem `json:"received_items"`
}

type ReceivedItem struct {
	ItemID   string  `json:"item_id" binding:"required"`
	Quantity float64 `json:"quantity"`
}

// Execute 执行 APPROVED -> EXECUTED。状态迁移、库存估值、流水、
// 供应商余额与累计采购额在同一事务内完成，任一步失败整体回滚
func (s *OrderService) Execute(ctx context.Context, actor Actor, id string, req *ExecuteOrderRequest) (*OrderView, error) {
	if err := actor.require(CapExecuteOrders); err != nil {
		return nil, err
	}
	if req.ActualDate == nil {
		return nil, validationErr("执行订单必须提供实际交付日期")
	}

	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusApproved {
		return nil, invalidStateErr("只有已审批订单可以执行，当前状态: %s", order.Status)
	}

	received, err := resolveReceivedQuantities(order, req.ReceivedItems)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var executed *entity.PurchaseOrder
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.orderRepo.FindByIDForUpdate(tx, id)
		if err != nil {
			return storageErr("读取订单失败", err)
		}
		// 事务内复核状态，并发迁移已改变状态则本次执行失败
		if locked.Status != entity.OrderStatusApproved {
			return conflictErr("订单状态已被并发修改: %s", locked.Status)
		}

		locked.Status = entity.OrderStatusExecuted
		locked.ActualDate = req.ActualDate
		locked.ExecutedBy = &actor.ID
		locked.ExecutedAt = &now
		if err := tx.Save(locked).Error; err != nil {
			return storageErr("更新订单失败", err)
		}

		if err := s.applyValuation(tx, locked, received, actor.ID, now); err != nil {
			return err
		}

		if err := s.settleSupplier(tx, locked.SupplierID, locked.Total); err != nil {
			return err
		}

		executed = locked
		return nil
	})
	if err != nil {
		if _, ok := err.(*DomainError); ok {
			return nil, err
		}
		return nil, storageErr("执行订单事务失败", err)
	}

	s.cache.Invalidate(ctx,
		cacheKeyOrderList, cacheKeySupplierList,
		cacheKeyMaterialList, cacheKeyLowStock, cacheKeyStats)
	return newOrderView(executed, now), nil
}

// resolveReceivedQuantities 解析每行项的实际收货数量。
// 显式负数收货失败，未列出的行项默认按订购数量收货
func resolveReceivedQuantities(order *entity.PurchaseOrder, received []ReceivedItem) (map[string]float64, error) {
	itemsByID := make(map[string]*entity.PurchaseOrderItem, len(order.Items))
	for i := range order.Items {
		itemsByID[order.Items[i].ID] = &order.Items[i]
	}

	quantities := make(map[string]float64, len(order.Items))
	for _, r := range received {
		if _, ok := itemsByID[r.ItemID]; !ok {
			return nil, validationErr("收货行项不属于该订单: %s", r.ItemID)
		}
		if r.Quantity < 0 {
			return nil, &DomainError{Kind: KindInvalidQuantity,
				Message: fmt.Sprintf("收货数量不能为负: %s", r.ItemID)}
		}
		quantities[r.ItemID] = r.Quantity
	}
	for id, item := range itemsByID {
		if _, ok := quantities[id]; !ok {
			quantities[id] = item.Quantity
		}
	}
	return quantities, nil
}

// settleSupplier 执行后增加供应商应付余额，并从订单表重算累计采购额。
// 累计值从不就地累加，避免并发写入下的漂移
func (s *OrderService) settleSupplier(tx *gorm.DB, supplierID string, orderTotal float64) error {
	var supplier entity.Supplier
	if err := tx.Where("id = ?", supplierID).First(&supplier).Error; err != nil {
		return storageErr("读取供应商失败", err)
	}

	supplier.Balance = round2(supplier.Balance + orderTotal)

	total, err := s.orderRepo.SumExecutedBySupplier(tx, supplierID)
	if err != nil {
		return storageErr("汇总已执行订单失败", err)
	}
	supplier.TotalPurchases = round2(total)

	if err := tx.Save(&supplier).Error; err != nil {
		return storageErr("更新供应商失败", err)
	}
	return nil
}

// recomputeSupplierTotals 重算累计采购额（取消/恢复后调用，余额不变）
func (s *OrderService) recomputeSupplierTotals(tx *gorm.DB, supplierID string) error {
	total, err := s.orderRepo.SumExecutedBySupplier(tx, supplierID)
	if err != nil {
		return storageErr("汇总已执行订单失败", err)
	}
	return tx.Model(&entity.Supplier{}).
		Where("id = ?", supplierID).
		Update("total_purchases", round2(total)).Error
}

// Cancel 取消 DRAFT/PENDING/APPROVED -> CANCELLED，记录取消前状态供恢复
func (s *OrderService) Cancel(ctx context.Context, actor Actor, id, reason string) (*OrderView, error) {
	if err := actor.require(CapCancelOrders); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, validationErr("取消原因不能为空")
	}
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity.IsTerminalStatus(order.Status) {
		return nil, invalidStateErr("当前状态不允许取消: %s", order.Status)
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.orderRepo.FindByIDForUpdate(tx, id)
		if err != nil {
			return storageErr("读取订单失败", err)
		}
		if entity.IsTerminalStatus(locked.Status) {
			return conflictErr("订单状态已被并发修改: %s", locked.Status)
		}

		locked.PreCancelStatus = locked.Status
		locked.Status = entity.OrderStatusCancelled
		locked.CancelledBy = &actor.ID
		locked.CancelledAt = &now
		locked.CancelReason = reason
		if err := tx.Save(locked).Error; err != nil {
			return storageErr("更新订单失败", err)
		}

		order = locked
		// 已执行订单不可取消，这里的重算不改变结果，保留以保证派生值一致
		return s.recomputeSupplierTotals(tx, locked.SupplierID)
	})
	if err != nil {
		if _, ok := err.(*DomainError); ok {
			return nil, err
		}
		return nil, storageErr("取消订单事务失败", err)
	}

	s.cache.Invalidate(ctx, cacheKeyOrderList, cacheKeySupplierList, cacheKeyStats)
	return newOrderView(order, now), nil
}

// Restore 恢复 CANCELLED -> 取消前状态。早期数据没有取消前状态字段时，
// 按是否存在审批时间回退到APPROVED或DRAFT
func (s *OrderService) Restore(ctx context.Context, actor Actor, id string) (*OrderView, error) {
	if err := actor.require(CapCancelOrders); err != nil {
		return nil, err
	}
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusCancelled {
		return nil, invalidStateErr("只有已取消订单可以恢复，当前状态: %s", order.Status)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.orderRepo.FindByIDForUpdate(tx, id)
		if err != nil {
			return storageErr("读取订单失败", err)
		}
		if locked.Status != entity.OrderStatusCancelled {
			return conflictErr("订单状态已被并发修改: %s", locked.Status)
		}

		target := locked.PreCancelStatus
		if target == "" {
			if locked.ApprovedAt != nil {
				target = entity.OrderStatusApproved
			} else {
				target = entity.OrderStatusDraft
			}
		}
		locked.Status = target
		locked.PreCancelStatus = ""
		locked.CancelledBy = nil
		locked.CancelledAt = nil
		locked.CancelReason = ""
		if err := tx.Save(locked).Error; err != nil {
			return storageErr("更新订单失败", err)
		}

		order = locked
		return s.recomputeSupplierTotals(tx, locked.SupplierID)
	})
	if err != nil {
		if _, ok := err.(*DomainError); ok {
			return nil, err
		}
		return nil, storageErr("恢复订单事务失败", err)
	}

	s.cache.Invalidate(ctx, cacheKeyOrderList, cacheKeySupplierList, cacheKeyStats)
	return newOrderView(order, time.Now()), nil
}

// DuplicateOptions 复制选项。SkipMissingMaterials为行项过滤策略：
// 物料已不存在的行项是跳过还是报错
type DuplicateOptions struct {
	IncludeItems         bool `json:"include_items"`
	SkipMissingMaterials bool `json:"skip_missing_materials"`
}

// Duplicate 以任意状态的订单为模板复制出新的DRAFT订单
func (s *OrderService) Duplicate(ctx context.Context, actor Actor, id string, opts DuplicateOptions) (*OrderView, error) {
	if err := actor.require(CapManageOrders); err != nil {
		return nil, err
	}
	source, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if source.Supplier == nil || !source.Supplier.IsActive() {
		return nil, &DomainError{Kind: KindInactiveSupplier, Message: "源订单供应商已停用"}
	}
	if opts.IncludeItems && len(source.Items) == 0 {
		return nil, &DomainError{Kind: KindEmptySource, Message: "源订单没有可复制的行项"}
	}

	now := time.Now()
	number, err := s.orderRepo.GenerateOrderNumber(ctx, now)
	if err != nil {
		return nil, storageErr("生成订单号失败", err)
	}

	order := &entity.PurchaseOrder{
		ID:              uuid.New().String()[:32],
		OrderNumber:     number,
		SupplierID:      source.SupplierID,
		Status:          entity.OrderStatusDraft,
		Priority:        source.Priority,
		PaymentTerms:    source.PaymentTerms,
		DeliveryAddress: source.DeliveryAddress,
		OrderDate:       now,
		Notes:           appendNote("", "复制自 "+source.OrderNumber),
		CreatedBy:       actor.ID,
	}

	if opts.IncludeItems {
		var subtotal float64
		for i, item := range source.Items {
			if _, err := s.materialRepo.FindByID(ctx, item.MaterialID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					if opts.SkipMissingMaterials {
						continue
					}
					return nil, notFoundErr("行项物料已不存在: %s", item.MaterialID)
				}
				return nil, storageErr("查询物料失败", err)
			}
			totalPrice := round2(item.Quantity * item.UnitPrice)
			subtotal += totalPrice
			order.Items = append(order.Items, entity.PurchaseOrderItem{
				ID:         uuid.New().String()[:32],
				OrderID:    order.ID,
				MaterialID: item.MaterialID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				TotalPrice: totalPrice,
				SortOrder:  i + 1,
			})
		}
		order.Subtotal = round2(subtotal)
		// 沿用源订单的实际税率
		if source.Subtotal > 0 {
			order.Tax = round2(order.Subtotal * (source.Tax / source.Subtotal))
		}
		order.Total = order.Subtotal + order.Tax
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, storageErr("创建订单失败", err)
	}

	s.cache.Invalidate(ctx, cacheKeyOrderList, cacheKeyStats)
	return newOrderView(order, now), nil
}

// UpdateOrderRequest 编辑请求。Items非nil时整单替换行项
type UpdateOrderRequest struct {
	Priority        *string            `json:"priority"`
	PaymentTerms    *string            `json:"payment_terms"`
	DeliveryAddress *string            `json:"delivery_address"`
	ExpectedDate    *time.Time         `json:"expected_date"`
	TaxRate         *float64           `json:"tax_rate"`
	Notes           *string            `json:"notes"`
	Items           *[]CreateOrderItem `json:"items"`
}

// Update 编辑 DRAFT/PENDING 订单，行项替换为先删全部再插全部
func (s *OrderService) Update(ctx context.Context, actor Actor, id string, req *UpdateOrderRequest) (*OrderView, error) {
	if err := actor.require(CapManageOrders); err != nil {
		return nil, err
	}
	if req.TaxRate != nil && *req.TaxRate < 0 {
		return nil, validationErr("税率不能为负")
	}

	var newItems []entity.PurchaseOrderItem
	var newSubtotal float64
	if req.Items != nil {
		items, subtotal, err := s.buildItems(ctx, id, *req.Items)
		if err != nil {
			return nil, err
		}
		newItems = items
		newSubtotal = subtotal
	}

	var updated *entity.PurchaseOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDForUpdate(tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundErr("订单不存在: %s", id)
			}
			return storageErr("读取订单失败", err)
		}
		if order.Status != entity.OrderStatusDraft && order.Status != entity.OrderStatusPending {
			return invalidStateErr("当前状态不允许编辑: %s", order.Status)
		}

		if req.Priority != nil {
			order.Priority = *req.Priority
		}
		if req.PaymentTerms != nil {
			order.PaymentTerms = *req.PaymentTerms
		}
		if req.DeliveryAddress != nil {
			order.DeliveryAddress = *req.DeliveryAddress
		}
		if req.ExpectedDate != nil {
			order.ExpectedDate = req.ExpectedDate
		}
		if req.Notes != nil {
			order.Notes = *req.Notes
		}

		taxRate := 0.0
		if order.Subtotal > 0 {
			taxRate = order.Tax / order.Subtotal
		}
		if req.TaxRate != nil {
			taxRate = *req.TaxRate
		}

		// 行项替换与订单头金额更新同一事务提交，避免半提交破坏合计
		if req.Items != nil {
			if err := s.orderRepo.ReplaceItems(tx, order.ID, newItems); err != nil {
				return storageErr("替换行项失败", err)
			}
			order.Items = newItems
			order.Subtotal = newSubtotal
		}
		order.Tax = round2(order.Subtotal * taxRate)
		order.Total = order.Subtotal + order.Tax

		if err := tx.Omit("Items").Save(order).Error; err != nil {
			return storageErr("更新订单失败", err)
		}
		updated = order
		return nil
	})
	if err != nil {
		if _, ok := err.(*DomainError); ok {
			return nil, err
		}
		return nil, storageErr("更新订单事务失败", err)
	}

	s.cache.Invalidate(ctx, cacheKeyOrderList, cacheKeyStats)
	return newOrderView(updated, time.Now()), nil
}

// Delete 删除 DRAFT/CANCELLED 订单，先删行项再删订单
func (s *OrderService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := actor.require(CapDeleteOrders); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDForUpdate(tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundErr("订单不存在: %s", id)
			}
			return storageErr("读取订单失败", err)
		}
		// 事务内复核状态，避免并发迁移后删掉不可删订单
		if order.Status != entity.OrderStatusDraft && order.Status != entity.OrderStatusCancelled {
			return invalidStateErr("当前状态不允许删除: %s", order.Status)
		}
		if err := s.orderRepo.Delete(tx, id); err != nil {
			return storageErr("删除订单失败", err)
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*DomainError); ok {
			return err
		}
		return storageErr("删除订单事务失败", err)
	}
	s.cache.Invalidate(ctx, cacheKeyOrderList, cacheKeyStats)
	return nil
}

// Get 订单详情（含派生标志）
func (s *OrderService) Get(ctx context.Context, id string) (*OrderView, error) {
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return newOrderView(order, time.Now()), nil
}

// OrderListResult 订单列表结果
type OrderListResult struct {
	Items      []OrderView `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// List 订单列表，读穿旁路缓存
func (s *OrderService) List(ctx context.Context, page, pageSize int, filters repository.OrderFilters) (*OrderListResult, error) {
	cacheKey := fmt.Sprintf("%s%d:%d:%s:%s:%s:%s",
		cacheKeyOrderList, page, pageSize,
		filters.SupplierID, filters.Status, filters.Priority, filters.Search)
	if filters.DateFrom == nil && filters.DateTo == nil {
		var cached OrderListResult
		if s.cache.Get(ctx, cacheKey, &cached) {
			return &cached, nil
		}
	}

	orders, total, err := s.orderRepo.FindAll(ctx, page, pageSize, filters)
	if err != nil {
		return nil, storageErr("查询订单列表失败", err)
	}

	now := time.Now()
	result := &OrderListResult{
		Items:    make([]OrderView, 0, len(orders)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for i := range orders {
		result.Items = append(result.Items, *newOrderView(&orders[i], now))
	}
	result.TotalPages = int(total) / pageSize
	if int(total)%pageSize > 0 {
		result.TotalPages++
	}

	if filters.DateFrom == nil && filters.DateTo == nil {
		s.cache.Set(ctx, cacheKey, result)
	}
	return result, nil
}

func (s *OrderService) findOrder(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr("订单不存在: %s", id)
		}
		return nil, storageErr("查询订单失败", err)
	}
	return order, nil
}

func (s *OrderService) findActiveSupplier(ctx context.Context, id string) (*entity.Supplier, error) {
	supplier, err := s.supplierRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr("供应商不存在: %s", id)
		}
		return nil, storageErr("查询供应商失败", err)
	}
	if !supplier.IsActive() {
		return nil, &DomainError{Kind: KindInactiveSupplier, Message: "供应商已停用: " + supplier.Name}
	}
	return supplier, nil
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
