package service

import (
	"math"
	"time"

	"github.com/bitfantasy/forge/internal/erp/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// weightedAverageCost 移动加权平均成本。入库后单位成本为现有库存
// 与新入库存按数量加权的平均值；总量为0时直接取本次单价
func weightedAverageCost(currentQty, currentCost, receivedQty, unitPrice float64) float64 {
	totalQty := currentQty + receivedQty
	if totalQty <= 0 {
		return unitPrice
	}
	return (currentQty*currentCost + receivedQty*unitPrice) / totalQty
}

// applyValuation 执行订单时的库存估值。对每个实际收货数量大于0的行项：
// 重算物料加权平均成本、累加库存数量、追加一条入库流水。
// 必须在执行事务内调用，物料以事务内加锁读到的状态为准
func (s *OrderService) applyValuation(tx *gorm.DB, order *entity.PurchaseOrder, received map[string]float64, actorID string, now time.Time) error {
	for i := range order.Items {
		item := &order.Items[i]
		qty := received[item.ID]

		item.ReceivedQty = &qty
		if err := tx.Save(item).Error; err != nil {
			return storageErr("更新行项收货数量失败", err)
		}
		if qty <= 0 {
			// 零收货不动库存、不产生流水
			continue
		}

		material, err := s.materialRepo.FindByIDForUpdate(tx, item.MaterialID)
		if err != nil {
			return storageErr("读取物料失败", err)
		}

		material.UnitCost = round4(weightedAverageCost(material.Quantity, material.UnitCost, qty, item.UnitPrice))
		material.Quantity += qty
		if err := tx.Save(material).Error; err != nil {
			return storageErr("更新物料失败", err)
		}

		movement := &entity.StockMovement{
			ID:         uuid.New().String()[:32],
			MaterialID: material.ID,
			Direction:  entity.MovementDirectionIn,
			Quantity:   qty,
			Reason:     entity.MovementReasonPurchaseOrder,
			OrderID:    &order.ID,
			CreatedBy:  actorID,
			CreatedAt:  now,
		}
		if err := tx.Create(movement).Error; err != nil {
			return storageErr("写入库存流水失败", err)
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
