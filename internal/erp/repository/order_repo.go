package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/forge/internal/erp/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 采购订单仓库
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// DB 返回底层连接，供服务层开启跨仓库事务
func (r *OrderRepository) DB() *gorm.DB {
	return r.db
}

// OrderFilters 列表过滤条件
type OrderFilters struct {
	SupplierID string
	Status     string
	Priority   string
	Search     string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// FindAll 查询订单列表
func (r *OrderRepository) FindAll(ctx context.Context, page, pageSize int, filters OrderFilters) ([]entity.PurchaseOrder, int64, error) {
	var orders []entity.PurchaseOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{})

	if filters.SupplierID != "" {
		query = query.Where("supplier_id = ?", filters.SupplierID)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Priority != "" {
		query = query.Where("priority = ?", filters.Priority)
	}
	if filters.Search != "" {
		query = query.Where("order_number ILIKE ?", "%"+filters.Search+"%")
	}
	if filters.DateFrom != nil {
		query = query.Where("order_date >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("order_date < ?", *filters.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Supplier").
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&orders).Error

	return orders, total, err
}

// FindByID 根据ID查找订单（含行项与供应商）
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	return findOrderByID(r.db.WithContext(ctx), id, false)
}

// FindByIDForUpdate 事务内加行锁读取订单，用于执行/取消等状态迁移
func (r *OrderRepository) FindByIDForUpdate(tx *gorm.DB, id string) (*entity.PurchaseOrder, error) {
	return findOrderByID(tx, id, true)
}

func findOrderByID(db *gorm.DB, id string, lock bool) (*entity.PurchaseOrder, error) {
	var order entity.PurchaseOrder
	query := db.
		Preload("Supplier").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		})
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Create 创建订单及行项
func (r *OrderRepository) Create(ctx context.Context, order *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// Update 更新订单
func (r *OrderRepository) Update(ctx context.Context, order *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

// ReplaceItems 事务内整单替换行项：先删后插，与订单头更新同一事务提交
func (r *OrderRepository) ReplaceItems(tx *gorm.DB, orderID string, items []entity.PurchaseOrderItem) error {
	if err := tx.Where("order_id = ?", orderID).Delete(&entity.PurchaseOrderItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return tx.Create(&items).Error
}

// Delete 事务内删除订单及行项
func (r *OrderRepository) Delete(tx *gorm.DB, id string) error {
	if err := tx.Where("order_id = ?", id).Delete(&entity.PurchaseOrderItem{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", id).Delete(&entity.PurchaseOrder{}).Error
}

// SumExecutedBySupplier 供应商已执行订单总额，totalPurchases 的唯一权威来源
func (r *OrderRepository) SumExecutedBySupplier(tx *gorm.DB, supplierID string) (float64, error) {
	var total float64
	err := tx.Model(&entity.PurchaseOrder{}).
		Select("COALESCE(SUM(total), 0)").
		Where("supplier_id = ? AND status = ?", supplierID, entity.OrderStatusExecuted).
		Scan(&total).Error
	return total, err
}

// CountOverdue 未到终态但已过预期交期的订单数
func (r *OrderRepository) CountOverdue(ctx context.Context, now time.Time, supplierID string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("expected_date IS NOT NULL AND expected_date < ?", now).
		Where("status NOT IN ?", []string{entity.OrderStatusExecuted, entity.OrderStatusCancelled})
	if supplierID != "" {
		query = query.Where("supplier_id = ?", supplierID)
	}
	err := query.Count(&count).Error
	return count, err
}

// CountByStatus 指定状态订单数
func (r *OrderRepository) CountByStatus(ctx context.Context, status, supplierID string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).Where("status = ?", status)
	if supplierID != "" {
		query = query.Where("supplier_id = ?", supplierID)
	}
	err := query.Count(&count).Error
	return count, err
}

// GenerateOrderNumber 生成订单号 PO-{year}-{month}-{4位序号}，序号按月重置，
// 由当月已创建订单数推导
func (r *OrderRepository) GenerateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	var count int64
	err := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("created_at >= ? AND created_at < ?", monthStart, monthEnd).
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PO-%d-%02d-%04d", now.Year(), int(now.Month()), count+1), nil
}
