package video

import (
	"context"
	"fmt"
	"path/filepath"

	"framecast/internal/config"
	"framecast/internal/logger"
	"framecast/pkg/model"

	"github.com/spf13/afero"
	"github.com/tidwall/sjson"
)

// Assembler 读取帧目录、重建时间线并合成视频
type Assembler struct {
	fs       afero.Fs
	imageDir string
	videoDir string
	format   string
	enc      Encoder
	log      logger.Logger
}

// NewAssembler 创建视频合成器
func NewAssembler(fs afero.Fs, cfg *config.Config, enc Encoder, log logger.Logger) *Assembler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Assembler{
		fs:       fs,
		imageDir: cfg.General.ImagePath,
		videoDir: cfg.General.VideoPath,
		format:   cfg.Video.Format,
		enc:      enc,
		log:      log,
	}
}

// Output 视频输出路径：<视频目录>/<标识>.<格式>
func (a *Assembler) Output(identifier string) string {
	return filepath.Join(a.videoDir, identifier+"."+a.format)
}

// Run 为 identifier 合成视频，并在视频旁写入时间线清单
func (a *Assembler) Run(ctx context.Context, identifier string) (*model.VideoArtifact, error) {
	if err := model.ValidateIdentifier(identifier); err != nil {
		return nil, err
	}
	log := a.log.With("identifier", identifier)

	frames, err := Timeline(a.fs, a.imageDir, identifier, log)
	if err != nil {
		return nil, err
	}
	log.Info("时间线已重建", "frames", len(frames), "duration", Total(frames))

	out := a.Output(identifier)
	if err := a.enc.Encode(ctx, frames, out); err != nil {
		return nil, err
	}

	manifest := filepath.Join(a.videoDir, identifier+".json")
	if err := a.writeManifest(manifest, identifier, out, frames); err != nil {
		return nil, err
	}

	log.Info("视频合成完成", "output", out)
	return &model.VideoArtifact{
		Identifier: identifier,
		Path:       out,
		Manifest:   manifest,
		Frames:     len(frames),
		Duration:   Total(frames),
	}, nil
}

func (a *Assembler) writeManifest(path, identifier, video string, frames []model.TimedFrame) error {
	doc, err := Manifest(identifier, video, frames)
	if err != nil {
		return fmt.Errorf("%w: manifest: %w", model.ErrEncoding, err)
	}
	if err := a.fs.MkdirAll(a.videoDir, 0o755); err != nil {
		return fmt.Errorf("%w: manifest: %w", model.ErrEncoding, err)
	}
	if err := afero.WriteFile(a.fs, path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("%w: manifest: %w", model.ErrEncoding, err)
	}
	return nil
}

// Manifest 以 JSON 描述时间线：各帧路径与秒级时长
func Manifest(identifier, video string, frames []model.TimedFrame) (string, error) {
	doc := "{}"
	var err error
	set := func(path string, v any) {
		if err != nil {
			return
		}
		doc, err = sjson.Set(doc, path, v)
	}

	set("identifier", identifier)
	set("video", video)
	set("total", Total(frames).Seconds())
	set("frames", []any{})
	for i, f := range frames {
		set(fmt.Sprintf("frames.%d.path", i), f.Path)
		set(fmt.Sprintf("frames.%d.duration", i), f.Duration.Seconds())
	}
	return doc, err
}
