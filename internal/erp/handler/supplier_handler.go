package handler

import (
	"github.com/bitfantasy/forge/internal/erp/service"
	"github.com/gin-gonic/gin"
)

// SupplierHandler 供应商处理器
type SupplierHandler struct {
	suppliers *service.SupplierService
}

func NewSupplierHandler(suppliers *service.SupplierService) *SupplierHandler {
	return &SupplierHandler{suppliers: suppliers}
}

// List 供应商列表
func (h *SupplierHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status": c.Query("status"),
		"search": c.Query("search"),
	}
	items, total, err := h.suppliers.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

// Create 创建供应商
func (h *SupplierHandler) Create(c *gin.Context) {
	var req service.CreateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	supplier, err := h.suppliers.Create(c.Request.Context(), GetActor(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, supplier)
}

// Get 供应商详情
func (h *SupplierHandler) Get(c *gin.Context) {
	supplier, err := h.suppliers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, supplier)
}

// Update 更新供应商
func (h *SupplierHandler) Update(c *gin.Context) {
	var req service.UpdateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	supplier, err := h.suppliers.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, supplier)
}
