package api

import (
	"context"

	"framecast/internal/config"
	"framecast/internal/logger"
	"framecast/internal/service"
	"framecast/pkg/model"
)

// Service 服务接口
type Service interface {
	// Record 录制页面加载过程并落盘帧文件
	Record(ctx context.Context, req model.RecordingRequest) (*model.RecordingResult, error)

	// Assemble 由帧文件合成视频
	Assemble(ctx context.Context, identifier string) (*model.VideoArtifact, error)

	// Recordings 列出录制目录
	Recordings(ctx context.Context, identifier string) ([]model.RecordingInfo, error)

	// Close 释放浏览器与数据库
	Close() error
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, l logger.Logger) (Service, error) {
	s, err := service.New(cfg, l)
	if err != nil {
		return nil, err
	}
	return s, nil
}
