package handler

import (
	"fmt"
	"net/http"

	"github.com/bitfantasy/forge/internal/erp/service"
	"github.com/gin-gonic/gin"
)

// StatsHandler 采购统计处理器
type StatsHandler struct {
	stats *service.StatsService
}

func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Get 统计数据
func (h *StatsHandler) Get(c *gin.Context) {
	period := c.DefaultQuery("period", service.PeriodMonth)
	stats, err := h.stats.GetStatistics(c.Request.Context(), period, c.Query("supplier_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, stats)
}

// Export 导出统计报表Excel
func (h *StatsHandler) Export(c *gin.Context) {
	period := c.DefaultQuery("period", service.PeriodMonth)
	f, fileName, err := h.stats.ExportStatistics(c.Request.Context(), period, c.Query("supplier_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", fileName))
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
