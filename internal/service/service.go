package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"framecast/internal/browser"
	"framecast/internal/capture"
	"framecast/internal/cdp"
	"framecast/internal/config"
	"framecast/internal/logger"
	"framecast/internal/metrics"
	"framecast/internal/session"
	"framecast/internal/storage"
	"framecast/internal/video"
	"framecast/pkg/model"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// GeneratedIdentifier 命令行中表示自动生成标识的占位符
const GeneratedIdentifier = "-"

// Service 串起录制、合成与录制目录
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	runs      *session.Manager
	browser   *chromeBrowser
	collector *capture.Collector
	assembler *video.Assembler
	catalog   *storage.Catalog
	metrics   *metrics.Metrics
}

// New 按配置组装服务。sqlite.dsn 为空时不记录录制目录。
func New(cfg *config.Config, l logger.Logger) (*Service, error) {
	if l == nil {
		l = logger.NewNop()
	}
	fs := afero.NewOsFs()
	b := &chromeBrowser{m: cdp.New(browser.NewLauncher(), l), cfg: cfg.Chrome}
	store := storage.NewFrameStore(fs, cfg.General.ImagePath, cfg.General.ImageFormat)

	s := &Service{
		cfg:       cfg,
		log:       l,
		runs:      session.NewManager(l),
		browser:   b,
		collector: capture.NewCollector(cfg, b, store, l),
		assembler: video.NewAssembler(fs, cfg, video.NewFFmpeg(cfg.Video, l), l),
		metrics:   metrics.New(),
	}
	if cfg.Sqlite.Dsn != "" {
		c, err := storage.OpenCatalog(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
		if err != nil {
			return nil, err
		}
		s.catalog = c
	}
	return s, nil
}

// Record 录制一次页面加载。标识为空或为 "-" 时自动生成。
func (s *Service) Record(ctx context.Context, req model.RecordingRequest) (*model.RecordingResult, error) {
	if req.Identifier == "" || req.Identifier == GeneratedIdentifier {
		req.Identifier = uuid.NewString()
	}
	if err := model.ValidateIdentifier(req.Identifier); err != nil {
		return nil, err
	}
	if _, err := s.runs.Acquire(req.Identifier); err != nil {
		return nil, err
	}
	defer s.runs.Release(req.Identifier)

	ctx = logger.WithRecording(ctx, req.Identifier)

	var rowID string
	if s.catalog != nil {
		id, err := s.catalog.Begin(ctx, req)
		if err != nil {
			s.log.Warn("登记录制目录失败", "identifier", req.Identifier, "error", err)
		}
		rowID = id
	}

	res, err := s.collector.Run(ctx, req)
	s.metrics.ObserveRecording(res, err)

	if rowID != "" {
		if ferr := s.catalog.Finish(ctx, rowID, res, err); ferr != nil {
			s.log.Warn("更新录制目录失败", "identifier", req.Identifier, "error", ferr)
		}
	}
	return res, err
}

// Assemble 由已落盘的帧合成视频
func (s *Service) Assemble(ctx context.Context, identifier string) (*model.VideoArtifact, error) {
	ctx = logger.WithRecording(ctx, identifier)
	start := time.Now()
	art, err := s.assembler.Run(ctx, identifier)
	s.metrics.ObserveVideo(time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if s.catalog != nil {
		if err := s.catalog.AttachVideo(ctx, art); err != nil {
			s.log.Warn("写入视频路径失败", "identifier", identifier, "error", err)
		}
	}
	return art, nil
}

// Recordings 列出录制目录，identifier 为空时列出全部
func (s *Service) Recordings(ctx context.Context, identifier string) ([]model.RecordingInfo, error) {
	if s.catalog == nil {
		return nil, errors.New("recording catalog is disabled")
	}
	return s.catalog.List(ctx, identifier)
}

// Metrics 返回服务指标
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Close 停止浏览器，写出指标文件并关闭录制目录
func (s *Service) Close() error {
	s.browser.Stop()
	var errs []error
	if path := s.cfg.Metrics.Textfile; path != "" {
		if err := s.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if s.catalog != nil {
		errs = append(errs, s.catalog.Close())
	}
	return errors.Join(errs...)
}

// chromeBrowser 将会话管理器适配为录制编排所需的 Browser
type chromeBrowser struct {
	m   *cdp.Manager
	cfg config.ChromeConfig
}

func (b *chromeBrowser) Start(ctx context.Context) (capture.Session, error) {
	s, err := b.m.Start(ctx, b.cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *chromeBrowser) Stop() { b.m.Stop() }
