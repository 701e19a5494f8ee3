package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"RezoFM/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	minioClient *minio.Client
	bucketName  string
)

// InitMinio 初始化 MinIO 客户端
func InitMinio(cfg *config.Config) error {
	log.Printf("正在连接 MinIO 服务器...")
	log.Printf("Endpoint: %s", cfg.MinioEndpoint)
	log.Printf("Bucket: %s", cfg.MinioBucket)

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

	// 检查存储桶是否存在，不存在时创建
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{
			Region: cfg.MinioRegion,
		})
		if err != nil {
			return fmt.Errorf("创建存储桶失败: %w", err)
		}
		log.Printf("✅ 成功创建存储桶: %s", cfg.MinioBucket)
	} else {
		log.Printf("✅ 存储桶已存在: %s", cfg.MinioBucket)
	}

	minioClient = client
	bucketName = cfg.MinioBucket
	log.Println("✅ MinIO 客户端初始化成功！")
	return nil
}

// GetMinioClient 获取 MinIO 客户端实例
func GetMinioClient() *minio.Client {
	return minioClient
}

// Upload 上传对象并返回对象键
func Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO 客户端未初始化")
	}

	_, err := minioClient.PutObject(ctx, bucketName, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("上传对象 %s 失败: %w", key, err)
	}
	return nil
}

// GetObject 读取对象内容，调用方负责 Close
func GetObject(ctx context.Context, key string) (*minio.Object, error) {
	if minioClient == nil {
		return nil, fmt.Errorf("MinIO 客户端未初始化")
	}

	obj, err := minioClient.GetObject(ctx, bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s 失败: %w", key, err)
	}
	return obj, nil
}

// ObjectExists 检查对象是否存在
func ObjectExists(ctx context.Context, key string) (bool, error) {
	if minioClient == nil {
		return false, fmt.Errorf("MinIO 客户端未初始化")
	}

	_, err := minioClient.StatObject(ctx, bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || strings.Contains(err.Error(), "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("检查对象 %s 失败: %w", key, err)
	}
	return true, nil
}

// PresignedGetURL 生成限时的签名下载链接
func PresignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if minioClient == nil {
		return "", fmt.Errorf("MinIO 客户端未初始化")
	}

	signed, err := minioClient.PresignedGetObject(ctx, bucketName, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("生成签名链接失败: %w", err)
	}
	return signed.String(), nil
}

// RemoveObject 删除对象
func RemoveObject(ctx context.Context, key string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO 客户端未初始化")
	}

	if err := minioClient.RemoveObject(ctx, bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", key, err)
	}
	return nil
}
