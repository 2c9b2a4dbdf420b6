package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/forge/internal/erp/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaterialRepository 原材料与库存流水仓库
type MaterialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// FindAll 查询物料列表
func (r *MaterialRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.RawMaterial, int64, error) {
	var materials []entity.RawMaterial
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.RawMaterial{})

	if category := filters["category"]; category != "" {
		query = query.Where("category = ?", category)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("name ASC").Offset(offset).Limit(pageSize).Find(&materials).Error
	return materials, total, err
}

// FindByID 根据ID查找物料
func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*entity.RawMaterial, error) {
	var material entity.RawMaterial
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&material).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &material, nil
}

// FindByIDForUpdate 事务内加行锁读取物料，估值计算以事务内读到的状态为准
func (r *MaterialRepository) FindByIDForUpdate(tx *gorm.DB, id string) (*entity.RawMaterial, error) {
	var material entity.RawMaterial
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&material).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &material, nil
}

// Create 创建物料
func (r *MaterialRepository) Create(ctx context.Context, material *entity.RawMaterial) error {
	return r.db.WithContext(ctx).Create(material).Error
}

// Update 更新物料
func (r *MaterialRepository) Update(ctx context.Context, material *entity.RawMaterial) error {
	return r.db.WithContext(ctx).Save(material).Error
}

// FindLowStock 低于再订货点的物料
func (r *MaterialRepository) FindLowStock(ctx context.Context) ([]entity.RawMaterial, error) {
	var materials []entity.RawMaterial
	err := r.db.WithContext(ctx).
		Where("quantity <= reorder_level").
		Order("quantity ASC").
		Find(&materials).Error
	return materials, err
}

// ListMovements 物料库存流水（按时间倒序）
func (r *MaterialRepository) ListMovements(ctx context.Context, materialID string, page, pageSize int) ([]entity.StockMovement, int64, error) {
	var movements []entity.StockMovement
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.StockMovement{})
	if materialID != "" {
		query = query.Where("material_id = ?", materialID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&movements).Error
	return movements, total, err
}
