package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/forge/internal/erp/entity"
	"github.com/bitfantasy/forge/internal/erp/repository"
	"github.com/google/uuid"
)

// SupplierService 供应商台账
type SupplierService struct {
	repo  *repository.SupplierRepository
	cache Cache
}

func NewSupplierService(repo *repository.SupplierRepository, cache Cache) *SupplierService {
	return &SupplierService{repo: repo, cache: cache}
}

// CreateSupplierRequest 创建供应商请求
type CreateSupplierRequest struct {
	Name          string  `json:"name" binding:"required"`
	ContactPerson string  `json:"contact_person"`
	Phone         string  `json:"phone"`
	Email         string  `json:"email"`
	Address       string  `json:"address"`
	PaymentTerms  string  `json:"payment_terms"`
	CreditLimit   float64 `json:"credit_limit"`
	Notes         string  `json:"notes"`
}

// UpdateSupplierRequest 更新供应商请求
type UpdateSupplierRequest struct {
	Name          *string  `json:"name"`
	Status        *string  `json:"status"`
	ContactPerson *string  `json:"contact_person"`
	Phone         *string  `json:"phone"`
	Email         *string  `json:"email"`
	Address       *string  `json:"address"`
	PaymentTerms  *string  `json:"payment_terms"`
	CreditLimit   *float64 `json:"credit_limit"`
	Notes         *string  `json:"notes"`
}

// List 供应商列表
func (s *SupplierService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Supplier, int64, error) {
	cacheKey := fmt.Sprintf("%s%d:%d:%s:%s",
		cacheKeySupplierList, page, pageSize, filters["status"], filters["search"])
	var cached struct {
		Items []entity.Supplier
		Total int64
	}
	if s.cache.Get(ctx, cacheKey, &cached) {
		return cached.Items, cached.Total, nil
	}

	suppliers, total, err := s.repo.FindAll(ctx, page, pageSize, filters)
	if err != nil {
		return nil, 0, storageErr("查询供应商列表失败", err)
	}

	cached.Items = suppliers
	cached.Total = total
	s.cache.Set(ctx, cacheKey, cached)
	return suppliers, total, nil
}

// Get 供应商详情
func (s *SupplierService) Get(ctx context.Context, id string) (*entity.Supplier, error) {
	supplier, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr("供应商不存在: %s", id)
		}
		return nil, storageErr("查询供应商失败", err)
	}
	return supplier, nil
}

// Create 创建供应商
func (s *SupplierService) Create(ctx context.Context, actor Actor, req *CreateSupplierRequest) (*entity.Supplier, error) {
	if req.CreditLimit < 0 {
		return nil, validationErr("信用额度不能为负")
	}

	code, err := s.repo.GenerateCode(ctx)
	if err != nil {
		return nil, storageErr("生成供应商编码失败", err)
	}

	supplier := &entity.Supplier{
		ID:            uuid.New().String()[:32],
		Code:          code,
		Name:          req.Name,
		Status:        entity.SupplierStatusActive,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		PaymentTerms:  req.PaymentTerms,
		CreditLimit:   req.CreditLimit,
		Notes:         req.Notes,
		CreatedBy:     actor.ID,
	}

	if err := s.repo.Create(ctx, supplier); err != nil {
		return nil, storageErr("创建供应商失败", err)
	}

	s.cache.Invalidate(ctx, cacheKeySupplierList)
	return supplier, nil
}

// Update 更新供应商
func (s *SupplierService) Update(ctx context.Context, id string, req *UpdateSupplierRequest) (*entity.Supplier, error) {
	supplier, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		supplier.Name = *req.Name
	}
	if req.Status != nil {
		if *req.Status != entity.SupplierStatusActive && *req.Status != entity.SupplierStatusSuspended {
			return nil, validationErr("无效的供应商状态: %s", *req.Status)
		}
		supplier.Status = *req.Status
	}
	if req.ContactPerson != nil {
		supplier.ContactPerson = *req.ContactPerson
	}
	if req.Phone != nil {
		supplier.Phone = *req.Phone
	}
	if req.Email != nil {
		supplier.Email = *req.Email
	}
	if req.Address != nil {
		supplier.Address = *req.Address
	}
	if req.PaymentTerms != nil {
		supplier.PaymentTerms = *req.PaymentTerms
	}
	if req.CreditLimit != nil {
		if *req.CreditLimit < 0 {
			return nil, validationErr("信用额度不能为负")
		}
		supplier.CreditLimit = *req.CreditLimit
	}
	if req.Notes != nil {
		supplier.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, supplier); err != nil {
		return nil, storageErr("更新供应商失败", err)
	}

	s.cache.Invalidate(ctx, cacheKeySupplierList)
	return supplier, nil
}
