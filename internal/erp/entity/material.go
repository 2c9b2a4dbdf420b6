package entity

import "time"

// RawMaterial 原材料（库存单位）
type RawMaterial struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	Name     string `json:"name" gorm:"size:200;uniqueIndex;not null"`
	Unit     string `json:"unit" gorm:"size:20;not null;default:pcs"`
	Category string `json:"category" gorm:"size:20;not null;default:production"` // production/packaging
	Location string `json:"location" gorm:"size:100"`

	// 库存数量与阈值，quantity >= 0
	Quantity     float64 `json:"quantity" gorm:"type:decimal(12,4);not null;default:0"`
	MinStock     float64 `json:"min_stock" gorm:"type:decimal(12,4);default:0"`
	MaxStock     float64 `json:"max_stock" gorm:"type:decimal(12,4);default:0"`
	ReorderLevel float64 `json:"reorder_level" gorm:"type:decimal(12,4);default:0"`

	// 移动加权平均成本，unit_cost >= 0
	UnitCost float64 `json:"unit_cost" gorm:"type:decimal(12,4);not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RawMaterial) TableName() string {
	return "erp_raw_materials"
}

// 物料分类
const (
	MaterialCategoryProduction = "production"
	MaterialCategoryPackaging  = "packaging"
)

// StockMovement 库存流水，只追加、不更新、不删除
type StockMovement struct {
	ID         string  `json:"id" gorm:"primaryKey;size:32"`
	MaterialID string  `json:"material_id" gorm:"size:32;not null;index"`
	Direction  string  `json:"direction" gorm:"size:10;not null"` // in/out
	Quantity   float64 `json:"quantity" gorm:"type:decimal(12,4);not null"`
	Reason     string  `json:"reason" gorm:"size:200;not null"`
	OrderID    *string `json:"order_id" gorm:"size:32;index"` // 关联采购订单（如有）

	CreatedBy string    `json:"created_by" gorm:"size:32;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (StockMovement) TableName() string {
	return "erp_stock_movements"
}

// 流水方向
const (
	MovementDirectionIn  = "in"
	MovementDirectionOut = "out"
)

// 流水原因
const (
	MovementReasonPurchaseOrder = "purchase order"
	MovementReasonAdjustment    = "manual adjustment"
)
