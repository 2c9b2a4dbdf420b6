package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/forge/internal/erp/entity"
	"gorm.io/gorm"
)

// SupplierRepository 供应商仓库
type SupplierRepository struct {
	db *gorm.DB
}

func NewSupplierRepository(db *gorm.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// FindAll 查询供应商列表
func (r *SupplierRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Supplier, int64, error) {
	var suppliers []entity.Supplier
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Supplier{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("name ILIKE ? OR code ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&suppliers).Error
	return suppliers, total, err
}

// FindByID 根据ID查找供应商
func (r *SupplierRepository) FindByID(ctx context.Context, id string) (*entity.Supplier, error) {
	var supplier entity.Supplier
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&supplier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &supplier, nil
}

// Create 创建供应商
func (r *SupplierRepository) Create(ctx context.Context, supplier *entity.Supplier) error {
	return r.db.WithContext(ctx).Create(supplier).Error
}

// Update 更新供应商
func (r *SupplierRepository) Update(ctx context.Context, supplier *entity.Supplier) error {
	return r.db.WithContext(ctx).Save(supplier).Error
}

// GenerateCode 生成供应商编码 SUP-{4位}
func (r *SupplierRepository) GenerateCode(ctx context.Context) (string, error) {
	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.Supplier{}).
		Select("COALESCE(MAX(code), '')").
		Where("code LIKE ?", "SUP-%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "SUP-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("SUP-%04d", seq), nil
}
