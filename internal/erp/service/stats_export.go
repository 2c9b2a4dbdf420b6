package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportStatistics 导出统计报表为Excel
func (s *StatsService) ExportStatistics(ctx context.Context, period, supplierID string) (*excelize.File, string, error) {
	stats, err := s.GetStatistics(ctx, period, supplierID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "采购统计"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "#B0B0B0", Style: 1},
			{Type: "right", Color: "#B0B0B0", Style: 1},
			{Type: "top", Color: "#B0B0B0", Style: 1},
			{Type: "bottom", Color: "#B0B0B0", Style: 1},
		},
	})

	// 汇总区
	f.SetCellValue(sheet, "A1", "统计周期")
	f.SetCellValue(sheet, "B1", stats.Period)
	f.SetCellValue(sheet, "A2", "订单总数")
	f.SetCellValue(sheet, "B2", stats.TotalOrders)
	f.SetCellValue(sheet, "A3", "采购总额")
	f.SetCellValue(sheet, "B3", stats.TotalValue)
	f.SetCellValue(sheet, "A4", "逾期订单")
	f.SetCellValue(sheet, "B4", stats.OverdueCount)
	f.SetCellValue(sheet, "A5", "待审批订单")
	f.SetCellValue(sheet, "B5", stats.PendingApproval)
	f.SetCellValue(sheet, "A6", "环比增长率")
	// GrowthRate 是比例值，转百分比展示
	f.SetCellValue(sheet, "B6", fmt.Sprintf("%.2f%%", stats.GrowthRate*100))

	// 状态分布
	row := 8
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "状态")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", row), "数量")
	f.SetCellValue(sheet, fmt.Sprintf("C%d", row), "金额")
	f.SetCellValue(sheet, fmt.Sprintf("D%d", row), "占比")
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), headerStyle)
	for status, stat := range stats.ByStatus {
		row++
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), status)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), stat.Count)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), stat.Value)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), fmt.Sprintf("%.1f%%", stat.Percentage))
	}

	// 供应商排名
	row += 2
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "供应商")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", row), "订单数")
	f.SetCellValue(sheet, fmt.Sprintf("C%d", row), "采购额")
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("C%d", row), headerStyle)
	for _, stat := range stats.TopSuppliers {
		row++
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), stat.Name)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), stat.OrderCount)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), stat.TotalValue)
	}

	// 物料排名
	row += 2
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "物料")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", row), "采购数量")
	f.SetCellValue(sheet, fmt.Sprintf("C%d", row), "采购金额")
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("C%d", row), headerStyle)
	for _, stat := range stats.TopMaterials {
		row++
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), stat.Name)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), stat.TotalQty)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), stat.TotalValue)
	}

	// 月度趋势
	trendSheet := "月度趋势"
	f.NewSheet(trendSheet)
	f.SetCellValue(trendSheet, "A1", "月份")
	f.SetCellValue(trendSheet, "B1", "订单数")
	f.SetCellValue(trendSheet, "C1", "采购额")
	f.SetCellValue(trendSheet, "D1", "平均单值")
	f.SetCellStyle(trendSheet, "A1", "D1", headerStyle)
	for i, m := range stats.MonthlyTrend {
		f.SetCellValue(trendSheet, fmt.Sprintf("A%d", i+2), m.Month)
		f.SetCellValue(trendSheet, fmt.Sprintf("B%d", i+2), m.OrderCount)
		f.SetCellValue(trendSheet, fmt.Sprintf("C%d", i+2), m.TotalValue)
		f.SetCellValue(trendSheet, fmt.Sprintf("D%d", i+2), m.AvgOrderValue)
	}

	f.SetColWidth(sheet, "A", "A", 22)
	f.SetColWidth(sheet, "B", "D", 14)
	f.SetColWidth(trendSheet, "A", "D", 14)

	fileName := fmt.Sprintf("procurement_stats_%s_%s.xlsx", period, time.Now().Format("20060102"))
	return f, fileName, nil
}
