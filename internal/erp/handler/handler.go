package handler

import (
	"net/http"
	"strconv"

	"github.com/bitfantasy/forge/internal/erp/service"
	"github.com/gin-gonic/gin"
)

// Handlers ERP处理器集合
type Handlers struct {
	Order    *OrderHandler
	Supplier *SupplierHandler
	Material *MaterialHandler
	Stats    *StatsHandler
}

// NewHandlers 创建ERP处理器集合
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Order:    NewOrderHandler(services.Order, services.Attachment),
		Supplier: NewSupplierHandler(services.Supplier),
		Material: NewMaterialHandler(services.Material, services.Stock),
		Stats:    NewStatsHandler(services.Stats),
	}
}

// RegisterRoutes 注册路由
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	orders := api.Group("/orders")
	{
		orders.GET("", h.Order.List)
		orders.POST("", h.Order.Create)
		orders.GET("/export", h.Order.ExportCSV)
		orders.GET("/:id", h.Order.Get)
		orders.PUT("/:id", h.Order.Update)
		orders.DELETE("/:id", h.Order.Delete)
		orders.POST("/:id/submit", h.Order.Submit)
		orders.POST("/:id/approve", h.Order.Approve)
		orders.POST("/:id/reject", h.Order.Reject)
		orders.POST("/:id/execute", h.Order.Execute)
		orders.POST("/:id/cancel", h.Order.Cancel)
		orders.POST("/:id/restore", h.Order.Restore)
		orders.POST("/:id/duplicate", h.Order.Duplicate)
		orders.GET("/:id/attachments", h.Order.ListAttachments)
		orders.POST("/:id/attachments", h.Order.UploadAttachment)
	}
	api.GET("/attachments/:id/download", h.Order.DownloadAttachment)

	suppliers := api.Group("/suppliers")
	{
		suppliers.GET("", h.Supplier.List)
		suppliers.POST("", h.Supplier.Create)
		suppliers.GET("/:id", h.Supplier.Get)
		suppliers.PUT("/:id", h.Supplier.Update)
	}

	materials := api.Group("/materials")
	{
		materials.GET("", h.Material.List)
		materials.POST("", h.Material.Create)
		materials.GET("/low-stock", h.Material.LowStock)
		materials.GET("/:id", h.Material.Get)
		materials.PUT("/:id", h.Material.Update)
		materials.GET("/:id/movements", h.Material.Movements)
	}
	api.POST("/stock/adjust", h.Material.AdjustStock)

	stats := api.Group("/statistics")
	{
		stats.GET("", h.Stats.Get)
		stats.GET("/export", h.Stats.Export)
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Code: 40000, Message: message})
}

// Fail 按业务错误分类映射HTTP状态码
func Fail(c *gin.Context, err error) {
	var status, code int
	switch service.KindOf(err) {
	case service.KindNotFound:
		status, code = http.StatusNotFound, 40400
	case service.KindForbidden:
		status, code = http.StatusForbidden, 40300
	case service.KindConflict:
		status, code = http.StatusConflict, 40900
	case service.KindStorage:
		status, code = http.StatusInternalServerError, 50000
	default:
		// 校验与状态机前置错误统一按400返回
		status, code = http.StatusBadRequest, 40000
	}
	c.JSON(status, Response{Code: code, Message: err.Error()})
}

// GetPagination 解析分页参数
func GetPagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// GetActor 从认证中间件注入的上下文取操作者身份与能力
func GetActor(c *gin.Context) service.Actor {
	actor := service.Actor{ID: c.GetString("user_id")}
	if caps, ok := c.Get("capabilities"); ok {
		if list, ok := caps.([]string); ok {
			actor.Capabilities = list
		}
	}
	return actor
}
