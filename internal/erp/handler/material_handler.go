package handler

import (
	"github.com/bitfantasy/forge/internal/erp/service"
	"github.com/gin-gonic/gin"
)

// MaterialHandler 原材料与库存处理器
type MaterialHandler struct {
	materials *service.MaterialService
	stock     *service.StockService
}

func NewMaterialHandler(materials *service.MaterialService, stock *service.StockService) *MaterialHandler {
	return &MaterialHandler{materials: materials, stock: stock}
}

// List 物料列表
func (h *MaterialHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"category": c.Query("category"),
		"search":   c.Query("search"),
	}
	items, total, err := h.materials.List(c.Request.Context(), page, pageSize, filters)
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

// Create 创建物料
func (h *MaterialHandler) Create(c *gin.Context) {
	var req service.CreateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	material, err := h.materials.Create(c.Request.Context(), GetActor(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, material)
}

// Get 物料详情
func (h *MaterialHandler) Get(c *gin.Context) {
	material, err := h.materials.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, material)
}

// Update 更新物料主数据
func (h *MaterialHandler) Update(c *gin.Context) {
	var req service.UpdateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	material, err := h.materials.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, material)
}

// LowStock 低库存预警列表
func (h *MaterialHandler) LowStock(c *gin.Context) {
	items, err := h.stock.LowStock(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, items)
}

// Movements 物料库存流水
func (h *MaterialHandler) Movements(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.stock.Movements(c.Request.Context(), c.Param("id"), page, pageSize)
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

// AdjustStock 人工库存调整
func (h *MaterialHandler) AdjustStock(c *gin.Context) {
	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	material, err := h.stock.Adjust(c.Request.Context(), GetActor(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, material)
}
