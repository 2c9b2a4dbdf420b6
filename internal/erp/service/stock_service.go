package service

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/forge/internal/erp/entity"
	"github.com/bitfantasy/forge/internal/erp/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockService 与采购无关的直接库存调整。只改数量不改成本
// （人工调整没有价格信息），每次调整追加一条流水
type StockService struct {
	materialRepo *repository.MaterialRepository
	db           *gorm.DB
	cache        Cache
}

func NewStockService(repos *repository.Repositories, db *gorm.DB, cache Cache) *StockService {
	return &StockService{materialRepo: repos.Material, db: db, cache: cache}
}

// AdjustStockRequest 库存调整请求
type AdjustStockRequest struct {
	MaterialID string  `json:"material_id" binding:"required"`
	Direction  string  `json:"direction" binding:"required"` // in/out
	Quantity   float64 `json:"quantity" binding:"required"`
	Reason     string  `json:"reason"`
}

// Adjust 人工出入库。出库不允许把数量调成负数
func (s *StockService) Adjust(ctx context.Context, actor Actor, req *AdjustStockRequest) (*entity.RawMaterial, error) {
	if err := actor.require(CapAdjustStock); err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, validationErr("调整数量必须大于0")
	}
	if req.Direction != entity.MovementDirectionIn && req.Direction != entity.MovementDirectionOut {
		return nil, validationErr("无效的调整方向: %s", req.Direction)
	}

	reason := req.Reason
	if reason == "" {
		reason = entity.MovementReasonAdjustment
	}

	now := time.Now()
	var material *entity.RawMaterial
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.materialRepo.FindByIDForUpdate(tx, req.MaterialID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundErr("物料不存在: %s", req.MaterialID)
			}
			return storageErr("读取物料失败", err)
		}

		if req.Direction == entity.MovementDirectionIn {
			locked.Quantity += req.Quantity
		} else {
			if locked.Quantity < req.Quantity {
				return validationErr("库存不足: 现有%.4f, 申请出库%.4f", locked.Quantity, req.Quantity)
			}
			locked.Quantity -= req.Quantity
		}
		if err := tx.Save(locked).Error; err != nil {
			return storageErr("更新物料失败", err)
		}

		movement := &entity.StockMovement{
			ID:         uuid.New().String()[:32],
			MaterialID: locked.ID,
			Direction:  req.Direction,
			Quantity:   req.Quantity,
			Reason:     reason,
			CreatedBy:  actor.ID,
			CreatedAt:  now,
		}
		if err := tx.Create(movement).Error; err != nil {
			return storageErr("写入库存流水失败", err)
		}

		material = locked
		return nil
	})
	if err != nil {
		if _, ok := err.(*DomainError); ok {
			return nil, err
		}
		return nil, storageErr("库存调整事务失败", err)
	}

	s.cache.Invalidate(ctx, cacheKeyMaterialList, cacheKeyLowStock)
	return material, nil
}

// LowStock 低于再订货点的物料列表
func (s *StockService) LowStock(ctx context.Context) ([]entity.RawMaterial, error) {
	var cached []entity.RawMaterial
	if s.cache.Get(ctx, cacheKeyLowStock, &cached) {
		return cached, nil
	}

	materials, err := s.materialRepo.FindLowStock(ctx)
	if err != nil {
		return nil, storageErr("查询低库存物料失败", err)
	}
	s.cache.Set(ctx, cacheKeyLowStock, materials)
	return materials, nil
}

// Movements 物料库存流水
func (s *StockService) Movements(ctx context.Context, materialID string, page, pageSize int) ([]entity.StockMovement, int64, error) {
	movements, total, err := s.materialRepo.ListMovements(ctx, materialID, page, pageSize)
	if err != nil {
		return nil, 0, storageErr("查询库存流水失败", err)
	}
	return movements, total, nil
}
