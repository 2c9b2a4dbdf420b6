package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/forge/internal/erp/entity"
	"github.com/bitfantasy/forge/internal/erp/repository"
	"github.com/google/uuid"
)

// MaterialService 原材料主数据。数量与成本只由估值引擎和库存调整改动，
// 这里不提供直接修改入口
type MaterialService struct {
	repo  *repository.MaterialRepository
	cache Cache
}

func NewMaterialService(repo *repository.MaterialRepository, cache Cache) *MaterialService {
	return &MaterialService{repo: repo, cache: cache}
}

// CreateMaterialRequest 创建物料请求
type CreateMaterialRequest struct {
	Name         string  `json:"name" binding:"required"`
	Unit         string  `json:"unit"`
	Category     string  `json:"category"`
	Location     string  `json:"location"`
	MinStock     float64 `json:"min_stock"`
	MaxStock     float64 `json:"max_stock"`
	ReorderLevel float64 `json:"reorder_level"`
}

// UpdateMaterialRequest 更新物料请求（主数据字段）
type UpdateMaterialRequest struct {
	Name         *string  `json:"name"`
	Unit         *string  `json:"unit"`
	Category     *string  `json:"category"`
	Location     *string  `json:"location"`
	MinStock     *float64 `json:"min_stock"`
	MaxStock     *float64 `json:"max_stock"`
	ReorderLevel *float64 `json:"reorder_level"`
}

// List 物料列表
func (s *MaterialService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.RawMaterial, int64, error) {
	cacheKey := fmt.Sprintf("%s%d:%d:%s:%s",
		cacheKeyMaterialList, page, pageSize, filters["category"], filters["search"])
	var cached struct {
		Items []entity.RawMaterial
		Total int64
	}
	if s.cache.Get(ctx, cacheKey, &cached) {
		return cached.Items, cached.Total, nil
	}

	materials, total, err := s.repo.FindAll(ctx, page, pageSize, filters)
	if err != nil {
		return nil, 0, storageErr("查询物料列表失败", err)
	}

	cached.Items = materials
	cached.Total = total
	s.cache.Set(ctx, cacheKey, cached)
	return materials, total, nil
}

// Get 物料详情
func (s *MaterialService) Get(ctx context.Context, id string) (*entity.RawMaterial, error) {
	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr("物料不存在: %s", id)
		}
		return nil, storageErr("查询物料失败", err)
	}
	return material, nil
}

// Create 创建物料
func (s *MaterialService) Create(ctx context.Context, actor Actor, req *CreateMaterialRequest) (*entity.RawMaterial, error) {
	category := req.Category
	if category == "" {
		category = entity.MaterialCategoryProduction
	}
	if category != entity.MaterialCategoryProduction && category != entity.MaterialCategoryPackaging {
		return nil, validationErr("无效的物料分类: %s", category)
	}
	unit := req.Unit
	if unit == "" {
		unit = "pcs"
	}

	material := &entity.RawMaterial{
		ID:           uuid.New().String()[:32],
		Name:         req.Name,
		Unit:         unit,
		Category:     category,
		Location:     req.Location,
		MinStock:     req.MinStock,
		MaxStock:     req.MaxStock,
		ReorderLevel: req.ReorderLevel,
	}

	if err := s.repo.Create(ctx, material); err != nil {
		return nil, storageErr("创建物料失败", err)
	}

	s.cache.Invalidate(ctx, cacheKeyMaterialList, cacheKeyLowStock)
	return material, nil
}

// Update 更新物料主数据，不触碰数量与成本
func (s *MaterialService) Update(ctx context.Context, id string, req *UpdateMaterialRequest) (*entity.RawMaterial, error) {
	material, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		material.Name = *req.Name
	}
	if req.Unit != nil {
		material.Unit = *req.Unit
	}
	if req.Category != nil {
		if *req.Category != entity.MaterialCategoryProduction && *req.Category != entity.MaterialCategoryPackaging {
			return nil, validationErr("无效的物料分类: %s", *req.Category)
		}
		material.Category = *req.Category
	}
	if req.Location != nil {
		material.Location = *req.Location
	}
	if req.MinStock != nil {
		material.MinStock = *req.MinStock
	}
	if req.MaxStock != nil {
		material.MaxStock = *req.MaxStock
	}
	if req.ReorderLevel != nil {
		material.ReorderLevel = *req.ReorderLevel
	}

	if err := s.repo.Update(ctx, material); err != nil {
		return nil, storageErr("更新物料失败", err)
	}

	s.cache.Invalidate(ctx, cacheKeyMaterialList, cacheKeyLowStock)
	return material, nil
}
