package entity

import "time"

// PurchaseOrder 采购订单
type PurchaseOrder struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	OrderNumber string `json:"order_number" gorm:"size:32;uniqueIndex;not null"` // PO-{year}-{month}-{seq}，序号按月重置
	SupplierID  string `json:"supplier_id" gorm:"size:32;not null;index"`
	Status      string `json:"status" gorm:"size:20;not null;default:draft;index"`

	// 金额：total = subtotal + tax
	Subtotal float64 `json:"subtotal" gorm:"type:decimal(15,2);not null;default:0"`
	Tax      float64 `json:"tax" gorm:"type:decimal(15,2);not null;default:0"`
	Total    float64 `json:"total" gorm:"type:decimal(15,2);not null;default:0"`

	Priority        string `json:"priority" gorm:"size:20;default:normal"`
	PaymentTerms    string `json:"payment_terms" gorm:"size:100"`
	DeliveryAddress string `json:"delivery_address" gorm:"size:500"`

	// 交期
	OrderDate    time.Time  `json:"order_date"`
	ExpectedDate *time.Time `json:"expected_date"`
	ActualDate   *time.Time `json:"actual_date"`

	// 管理与审计
	CreatedBy       string     `json:"created_by" gorm:"size:32;not null"`
	ApprovedBy      *string    `json:"approved_by" gorm:"size:32"`
	ApprovedAt      *time.Time `json:"approved_at"`
	CancelledBy     *string    `json:"cancelled_by" gorm:"size:32"`
	CancelledAt     *time.Time `json:"cancelled_at"`
	CancelReason    string     `json:"cancel_reason" gorm:"size:500"`
	PreCancelStatus string     `json:"pre_cancel_status" gorm:"size:20"` // 取消前状态，用于恢复
	ExecutedBy      *string    `json:"executed_by" gorm:"size:32"`
	ExecutedAt      *time.Time `json:"executed_at"`
	Notes           string     `json:"notes" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// 关联
	Items    []PurchaseOrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	Supplier *Supplier           `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
}

func (PurchaseOrder) TableName() string {
	return "erp_purchase_orders"
}

// 订单状态
const (
	OrderStatusDraft     = "draft"
	OrderStatusPending   = "pending"
	OrderStatusApproved  = "approved"
	OrderStatusExecuted  = "executed"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
)

// OrderStatuses 全部订单状态（统计用）
var OrderStatuses = []string{
	OrderStatusDraft,
	OrderStatusPending,
	OrderStatusApproved,
	OrderStatusExecuted,
	OrderStatusCancelled,
	OrderStatusRejected,
}

// IsTerminalStatus 已执行/已取消为终态
func IsTerminalStatus(status string) bool {
	return status == OrderStatusExecuted || status == OrderStatusCancelled
}

// PurchaseOrderItem 采购订单行项
type PurchaseOrderItem struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	OrderID    string `json:"order_id" gorm:"size:32;not null;index"`
	MaterialID string `json:"material_id" gorm:"size:32;not null;index"`

	Quantity   float64 `json:"quantity" gorm:"type:decimal(12,4);not null"`
	UnitPrice  float64 `json:"unit_price" gorm:"type:decimal(12,4);not null"`
	TotalPrice float64 `json:"total_price" gorm:"type:decimal(15,2);not null"`

	// 收货数量，执行后填写；为空表示按订购数量收货
	ReceivedQty *float64 `json:"received_qty" gorm:"type:decimal(12,4)"`

	SortOrder int       `json:"sort_order" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Material *RawMaterial `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
}

func (PurchaseOrderItem) TableName() string {
	return "erp_purchase_order_items"
}

// 订单优先级
const (
	OrderPriorityLow    = "low"
	OrderPriorityNormal = "normal"
	OrderPriorityHigh   = "high"
	OrderPriorityUrgent = "urgent"
)
