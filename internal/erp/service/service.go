package service

import (
	"github.com/bitfantasy/forge/internal/config"
	"github.com/bitfantasy/forge/internal/erp/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services ERP服务集合
type Services struct {
	Order      *OrderService
	Supplier   *SupplierService
	Material   *MaterialService
	Stock      *StockService
	Stats      *StatsService
	Attachment *AttachmentService
}

// NewServices 创建ERP服务集合。rdb为nil时缓存降级为空实现
func NewServices(repos *repository.Repositories, db *gorm.DB, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	var cache Cache = NoopCache{}
	if rdb != nil {
		cache = NewRedisCache(rdb, logger)
	}

	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO初始化失败，附件功能关闭", zap.Error(err))
			minioClient = nil
		}
	}

	return &Services{
		Order:      NewOrderService(repos, db, cache, logger),
		Supplier:   NewSupplierService(repos.Supplier, cache),
		Material:   NewMaterialService(repos.Material, cache),
		Stock:      NewStockService(repos, db, cache),
		Stats:      NewStatsService(db, repos.Order, cache),
		Attachment: NewAttachmentService(db, minioClient, cfg.MinIO.Bucket),
	}
}
