package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/bitfantasy/forge/internal/erp/repository"
	"github.com/bitfantasy/forge/internal/erp/service"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// OrderHandler 采购订单处理器
type OrderHandler struct {
	orders      *service.OrderService
	attachments *service.AttachmentService
}

func NewOrderHandler(orders *service.OrderService, attachments *service.AttachmentService) *OrderHandler {
	return &OrderHandler{orders: orders, attachments: attachments}
}

// List 订单列表
func (h *OrderHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := repository.OrderFilters{
		SupplierID: c.Query("supplier_id"),
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		Search:     c.Query("search"),
	}
	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filters.DateFrom = &t
		}
	}
	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filters.DateTo = &t
		}
	}

	result, err := h.orders.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{
		Items: result.Items,
		Pagination: &Pagination{
			Page:       result.Page,
			PageSize:   result.PageSize,
			Total:      int(result.Total),
			TotalPages: result.TotalPages,
		},
	})
}

// Create 创建订单
func (h *OrderHandler) Create(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	order, err := h.orders.Create(c.Request.Context(), GetActor(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, order)
}

// Get 订单详情
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// Update 编辑订单
func (h *OrderHandler) Update(c *gin.Context) {
	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	order, err := h.orders.Update(c.Request.Context(), GetActor(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// Delete 删除订单
func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.orders.Delete(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// Submit 提交审批
func (h *OrderHandler) Submit(c *gin.Context) {
	order, err := h.orders.Submit(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// Approve 审批通过
func (h *OrderHandler) Approve(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&req)
	order, err := h.orders.Approve(c.Request.Context(), GetActor(c), c.Param("id"), req.Notes)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// Reject 驳回
func (h *OrderHandler) Reject(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "必须提供驳回原因")
		return
	}
	order, err := h.orders.Reject(c.Request.Context(), GetActor(c), c.Param("id"), req.Reason)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// Execute 执行订单
func (h *OrderHandler) Execute(c *gin.Context) {
	var req service.ExecuteOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	order, err := h.orders.Execute(c.Request.Context(), GetActor(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// Cancel 取消订单
func (h *OrderHandler) Cancel(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "必须提供取消原因")
		return
	}
	order, err := h.orders.Cancel(c.Request.Context(), GetActor(c), c.Param("id"), req.Reason)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// Restore 恢复已取消订单
func (h *OrderHandler) Restore(c *gin.Context) {
	order, err := h.orders.Restore(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// Duplicate 复制订单
func (h *OrderHandler) Duplicate(c *gin.Context) {
	opts := service.DuplicateOptions{IncludeItems: true}
	_ = c.ShouldBindJSON(&opts)
	order, err := h.orders.Duplicate(c.Request.Context(), GetActor(c), c.Param("id"), opts)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, order)
}

// ExportCSV 导出订单列表为GBK编码的CSV，兼容Excel直接打开
func (h *OrderHandler) ExportCSV(c *gin.Context) {
	filters := repository.OrderFilters{
		SupplierID: c.Query("supplier_id"),
		Status:     c.Query("status"),
	}
	result, err := h.orders.List(c.Request.Context(), 1, 1000, filters)
	if err != nil {
		Fail(c, err)
		return
	}

	fileName := fmt.Sprintf("orders_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv; charset=gbk")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", fileName))

	w := csv.NewWriter(transform.NewWriter(c.Writer, simplifiedchinese.GBK.NewEncoder()))
	_ = w.Write([]string{"订单号", "供应商", "状态", "优先级", "下单日期", "预计交付", "小计", "税额", "总额"})
	for _, o := range result.Items {
		supplier := ""
		if o.Supplier != nil {
			supplier = o.Supplier.Name
		}
		expected := ""
		if o.ExpectedDate != nil {
			expected = o.ExpectedDate.Format("2006-01-02")
		}
		_ = w.Write([]string{
			o.OrderNumber,
			supplier,
			o.Status,
			o.Priority,
			o.OrderDate.Format("2006-01-02"),
			expected,
			fmt.Sprintf("%.2f", o.Subtotal),
			fmt.Sprintf("%.2f", o.Tax),
			fmt.Sprintf("%.2f", o.Total),
		})
	}
	w.Flush()
}

// ListAttachments 订单附件列表
func (h *OrderHandler) ListAttachments(c *gin.Context) {
	list, err := h.attachments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, list)
}

// UploadAttachment 上传订单附件
func (h *OrderHandler) UploadAttachment(c *gin.Context) {
	if !h.attachments.Enabled() {
		c.JSON(http.StatusServiceUnavailable, Response{Code: 50300, Message: "对象存储未配置"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "必须提供file字段")
		return
	}
	src, err := file.Open()
	if err != nil {
		BadRequest(c, "读取上传文件失败")
		return
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	attachment, err := h.attachments.Upload(c.Request.Context(), GetActor(c), c.Param("id"),
		src, filepath.Base(file.Filename), file.Size, contentType)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, attachment)
}

// DownloadAttachment 获取附件的预签名下载地址
func (h *OrderHandler) DownloadAttachment(c *gin.Context) {
	url, err := h.attachments.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"url": url})
}
