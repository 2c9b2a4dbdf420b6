package entity

import "time"

// OrderAttachment 订单附件（报价单、签收单等），文件本体在对象存储
type OrderAttachment struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	OrderID     string    `json:"order_id" gorm:"size:32;not null;index"`
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	FilePath    string    `json:"file_path" gorm:"size:500;not null"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type" gorm:"size:100"`
	UploadedBy  string    `json:"uploaded_by" gorm:"size:32;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

func (OrderAttachment) TableName() string {
	return "erp_order_attachments"
}
