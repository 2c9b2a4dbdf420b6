package service

// Capability 操作能力
type Capability string

const (
	CapManageOrders  Capability = "orders:manage"  // 创建/编辑/复制
	CapApproveOrders Capability = "orders:approve" // 审批/驳回
	CapExecuteOrders Capability = "orders:execute" // 执行收货
	CapCancelOrders  Capability = "orders:cancel"  // 取消/恢复
	CapDeleteOrders  Capability = "orders:delete"
	CapAdjustStock   Capability = "stock:adjust"
)

// Actor 已认证的操作者身份与能力，由调用方（中间件）提供，
// 服务层只做前置校验，不解析令牌
type Actor struct {
	ID           string
	Capabilities []string
}

// Can 是否持有指定能力；"*" 为全量授权
func (a Actor) Can(cap Capability) bool {
	for _, c := range a.Capabilities {
		if c == "*" || c == string(cap) {
			return true
		}
	}
	return false
}

func (a Actor) require(cap Capability) error {
	if a.ID == "" {
		return forbiddenErr("操作者身份缺失")
	}
	if !a.Can(cap) {
		return forbiddenErr("缺少操作权限: %s", cap)
	}
	return nil
}
