package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"SpotiTrace/config"
	"SpotiTrace/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	minioClient *minio.Client
	bucketName  string
)

// InitMinio 初始化 MinIO 客户端并确保归档桶存在
func InitMinio(cfg *config.Config) error {
	logger.Info("正在连接 MinIO 服务器...",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 检查存储桶是否存在，不存在则创建
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("成功创建存储桶", logger.String("bucket", cfg.MinioBucket))
	}

	minioClient = client
	bucketName = cfg.MinioBucket
	return nil
}

// Enabled 返回归档是否可用
func Enabled() bool {
	return minioClient != nil
}

// ArchiveRawPayload 将一次API调用的原始JSON响应归档，便于重放与排障。
// 对象路径按日期分区：raw/<source>/<YYYY-MM-DD>/<runID>.json
func ArchiveRawPayload(ctx context.Context, source, runID string, payload []byte) error {
	if minioClient == nil {
		return nil
	}

	objectName := fmt.Sprintf("raw/%s/%s/%s.json", source, time.Now().UTC().Format("2006-01-02"), runID)
	_, err := minioClient.PutObject(ctx, bucketName, objectName,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("归档原始响应失败: %w", err)
	}

	logger.Debug("原始响应已归档",
		logger.String("object", objectName),
		logger.Int("bytes", len(payload)))
	return nil
}
