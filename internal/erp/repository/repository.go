package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories ERP仓库集合
type Repositories struct {
	Order    *OrderRepository
	Material *MaterialRepository
	Supplier *SupplierRepository
}

// NewRepositories 创建ERP仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Order:    NewOrderRepository(db),
		Material: NewMaterialRepository(db),
		Supplier: NewSupplierRepository(db),
	}
}
