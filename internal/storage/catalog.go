package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"framecast/internal/logger"
	"framecast/pkg/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Recording 录制目录表
type Recording struct {
	ID          string `gorm:"primaryKey;size:36"`
	Identifier  string `gorm:"index;not null"`
	URL         string
	Device      string
	Network     string
	State       string `gorm:"size:16"`
	Frames      int
	AckFailures int
	VideoPath   string
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Catalog 基于 sqlite 的录制目录
type Catalog struct {
	db *gorm.DB
}

// OpenCatalog 打开数据库并迁移表结构
func OpenCatalog(dsn, prefix string, l logger.Logger) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.AutoMigrate(&Recording{}); err != nil {
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close 关闭底层连接
func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Begin 登记一次录制，返回记录ID
func (c *Catalog) Begin(ctx context.Context, req model.RecordingRequest) (string, error) {
	rec := Recording{
		ID:         uuid.NewString(),
		Identifier: req.Identifier,
		URL:        req.URL,
		Device:     req.Device,
		Network:    req.Network,
		State:      string(model.StateRecording),
	}
	if err := c.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Finish 写入录制结果；runErr 非空时记为失败
func (c *Catalog) Finish(ctx context.Context, id string, res *model.RecordingResult, runErr error) error {
	updates := map[string]any{"state": string(model.StateFailed)}
	if res != nil {
		updates["state"] = string(res.State)
		updates["frames"] = res.Frames
		updates["ack_failures"] = res.AckFailures
	}
	if runErr != nil {
		updates["state"] = string(model.StateFailed)
		updates["error"] = runErr.Error()
	}
	return c.db.WithContext(ctx).Model(&Recording{}).Where("id = ?", id).Updates(updates).Error
}

// AttachVideo 将视频路径写入该标识最近的一条记录，没有记录时新建一条
func (c *Catalog) AttachVideo(ctx context.Context, art *model.VideoArtifact) error {
	db := c.db.WithContext(ctx)
	var rec Recording
	err := db.Where("identifier = ?", art.Identifier).Order("created_at desc").First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = Recording{
			ID:         uuid.NewString(),
			Identifier: art.Identifier,
			State:      string(model.StateDone),
			Frames:     art.Frames,
			VideoPath:  art.Path,
		}
		return db.Create(&rec).Error
	case err != nil:
		return err
	}
	return db.Model(&rec).Update("video_path", art.Path).Error
}

// List 按创建时间倒序列出记录，identifier 为空时列出全部
func (c *Catalog) List(ctx context.Context, identifier string) ([]model.RecordingInfo, error) {
	q := c.db.WithContext(ctx).Order("created_at desc")
	if identifier != "" {
		q = q.Where("identifier = ?", identifier)
	}
	var recs []Recording
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]model.RecordingInfo, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.RecordingInfo{
			ID:          r.ID,
			Identifier:  r.Identifier,
			URL:         r.URL,
			Device:      r.Device,
			Network:     r.Network,
			State:       model.State(r.State),
			Frames:      r.Frames,
			AckFailures: r.AckFailures,
			VideoPath:   r.VideoPath,
			Error:       r.Error,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}
