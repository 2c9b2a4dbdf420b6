package entity

import "time"

// Supplier 供应商
type Supplier struct {
	ID     string `json:"id" gorm:"primaryKey;size:32"`
	Code   string `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Name   string `json:"name" gorm:"size:200;not null"`
	Status string `json:"status" gorm:"size:20;not null;default:active"` // active/suspended

	// 联系方式
	ContactPerson string `json:"contact_person" gorm:"size:100"`
	Phone         string `json:"phone" gorm:"size:50"`
	Email         string `json:"email" gorm:"size:200"`
	Address       string `json:"address" gorm:"size:500"`
	PaymentTerms  string `json:"payment_terms" gorm:"size:100"`

	// 应付余额与信用额度
	Balance     float64 `json:"balance" gorm:"type:decimal(15,2);not null;default:0"`
	CreditLimit float64 `json:"credit_limit" gorm:"type:decimal(15,2);default:0"`

	// 已执行订单总额的派生缓存，始终可由订单表重算
	TotalPurchases float64 `json:"total_purchases" gorm:"type:decimal(15,2);not null;default:0"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`
}

func (Supplier) TableName() string {
	return "erp_suppliers"
}

// 供应商状态
const (
	SupplierStatusActive    = "active"
	SupplierStatusSuspended = "suspended"
)

// IsActive 是否可下单
func (s *Supplier) IsActive() bool {
	return s.Status == SupplierStatusActive
}
