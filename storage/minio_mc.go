package storage

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// MinioClient 封装了用于运维检查的 MinIO 客户端
type MinioClient struct {
	client     *minio.Client
	bucketName string
}

// NewMinioClient 创建一个新的 MinIO 客户端
func NewMinioClient(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinioClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %v", err)
	}

	return &MinioClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// ListObjects 列出存储桶中指定前缀下的对象
func (m *MinioClient) ListObjects(prefix string) error {
	ctx := context.Background()

	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶是否存在失败: %v", err)
	}
	if !exists {
		return fmt.Errorf("存储桶 %s 不存在", m.bucketName)
	}

	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			log.Printf("列出对象时出错: %v", object.Err)
			continue
		}
		fmt.Printf("文件名: %s, 大小: %s, 最后修改时间: %s\n",
			object.Key,
			formatSize(object.Size),
			object.LastModified.Format(time.RFC3339))
	}

	return nil
}

// PrintBucketStats 打印存储桶统计信息，按顶层目录分组
// 音频资源按 songs/、variants/、ads/、covers/ 前缀组织
func (m *MinioClient) PrintBucketStats() error {
	ctx := context.Background()
	stats := &BucketStats{}
	byPrefix := make(map[string]int64)

	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return fmt.Errorf("列出对象时出错: %v", object.Err)
		}
		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}

		top := object.Key
		if idx := strings.Index(object.Key, "/"); idx >= 0 {
			top = object.Key[:idx+1]
		}
		byPrefix[top] += object.Size
	}

	fmt.Printf("📊 存储桶状态报告: %s\n", m.bucketName)
	fmt.Printf("📝 总文件数: %d\n", stats.TotalObjects)
	fmt.Printf("💾 总存储大小: %s\n", formatSize(stats.TotalSize))
	fmt.Printf("🕒 最后更新时间: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))

	prefixes := make([]string, 0, len(byPrefix))
	for p := range byPrefix {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	fmt.Println("\n按目录统计:")
	for _, p := range prefixes {
		fmt.Printf("  ├─ %s: %s\n", p, formatSize(byPrefix[p]))
	}

	return nil
}

// DeleteDirectory 删除指定前缀下的所有对象
func (m *MinioClient) DeleteDirectory(prefix string) error {
	ctx := context.Background()

	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var deleted int
	for object := range objectCh {
		if object.Err != nil {
			return fmt.Errorf("列出对象时出错: %v", object.Err)
		}
		if err := m.client.RemoveObject(ctx, m.bucketName, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("删除对象 %s 失败: %v", object.Key, err)
		}
		deleted++
	}

	fmt.Printf("已删除 %d 个对象 (前缀: %s)\n", deleted, prefix)
	return nil
}

// formatSize 格式化文件大小
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
