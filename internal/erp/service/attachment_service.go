package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"time"

	"github.com/bitfantasy/forge/internal/erp/entity"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"
)

// AttachmentService 订单附件，文件存MinIO。minioClient为nil时功能关闭
type AttachmentService struct {
	db          *gorm.DB
	minioClient *minio.Client
	bucketName  string
}

func NewAttachmentService(db *gorm.DB, minioClient *minio.Client, bucketName string) *AttachmentService {
	return &AttachmentService{db: db, minioClient: minioClient, bucketName: bucketName}
}

// Enabled 对象存储是否已配置
func (s *AttachmentService) Enabled() bool {
	return s.minioClient != nil
}

// Upload 上传订单附件
func (s *AttachmentService) Upload(ctx context.Context, actor Actor, orderID string, reader io.Reader, fileName string, fileSize int64, contentType string) (*entity.OrderAttachment, error) {
	if !s.Enabled() {
		return nil, validationErr("对象存储未配置，附件功能不可用")
	}

	var order entity.PurchaseOrder
	if err := s.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr("订单不存在: %s", orderID)
		}
		return nil, storageErr("查询订单失败", err)
	}

	objectName := fmt.Sprintf("orders/%s/%s%s", orderID, uuid.New().String()[:8], filepath.Ext(fileName))
	if _, err := s.minioClient.PutObject(ctx, s.bucketName, objectName, reader, fileSize, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return nil, storageErr("上传附件失败", err)
	}

	attachment := &entity.OrderAttachment{
		ID:          uuid.New().String()[:32],
		OrderID:     orderID,
		FileName:    fileName,
		FilePath:    objectName,
		FileSize:    fileSize,
		ContentType: contentType,
		UploadedBy:  actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(attachment).Error; err != nil {
		return nil, storageErr("保存附件记录失败", err)
	}
	return attachment, nil
}

// List 订单附件列表
func (s *AttachmentService) List(ctx context.Context, orderID string) ([]entity.OrderAttachment, error) {
	var attachments []entity.OrderAttachment
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&attachments).Error
	if err != nil {
		return nil, storageErr("查询附件列表失败", err)
	}
	return attachments, nil
}

// DownloadURL 生成附件的预签名下载链接
func (s *AttachmentService) DownloadURL(ctx context.Context, id string) (string, error) {
	if !s.Enabled() {
		return "", validationErr("对象存储未配置，附件功能不可用")
	}

	var attachment entity.OrderAttachment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&attachment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", notFoundErr("附件不存在: %s", id)
		}
		return "", storageErr("查询附件失败", err)
	}

	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf(`attachment; filename="%s"`, attachment.FileName))
	presigned, err := s.minioClient.PresignedGetObject(ctx, s.bucketName, attachment.FilePath, 15*time.Minute, reqParams)
	if err != nil {
		return "", storageErr("生成下载链接失败", err)
	}
	return presigned.String(), nil
}
