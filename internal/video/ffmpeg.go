package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"framecast/internal/config"
	"framecast/internal/logger"
	"framecast/pkg/model"
)

// stderrTail 编码失败时保留的 stderr 字节数
const stderrTail = 2048

// Encoder 将带时长的帧序列编码为视频文件
type Encoder interface {
	Encode(ctx context.Context, frames []model.TimedFrame, out string) error
}

// FFmpeg 调用 ffmpeg 可执行文件，使用 concat 分离器按帧时长拼接
type FFmpeg struct {
	cfg config.VideoConfig
	log logger.Logger
}

// NewFFmpeg 创建 ffmpeg 编码器
func NewFFmpeg(cfg config.VideoConfig, log logger.Logger) *FFmpeg {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	return &FFmpeg{cfg: cfg, log: log}
}

// Encode 先写入同目录下的临时文件，成功后再重命名为 out
func (e *FFmpeg) Encode(ctx context.Context, frames []model.TimedFrame, out string) error {
	if len(frames) == 0 {
		return model.ErrNoFramesFound
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("%w: create video dir: %w", model.ErrEncoding, err)
	}

	list, err := os.CreateTemp("", "framecast-*.ffconcat")
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrEncoding, err)
	}
	defer os.Remove(list.Name())
	if _, err := list.WriteString(ConcatList(frames)); err != nil {
		_ = list.Close()
		return fmt.Errorf("%w: write concat list: %w", model.ErrEncoding, err)
	}
	if err := list.Close(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrEncoding, err)
	}

	tmp := partialName(out)
	defer os.Remove(tmp)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.cfg.FFmpeg, e.args(list.Name(), tmp)...)
	cmd.Stderr = &stderr
	e.log.Info("开始编码视频", "frames", len(frames), "output", out)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %w: %s", model.ErrEncoding, e.cfg.FFmpeg, err, tail(stderr.String()))
	}

	if err := os.Rename(tmp, out); err != nil {
		return fmt.Errorf("%w: %w", model.ErrEncoding, err)
	}
	return nil
}

func (e *FFmpeg) args(list, out string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "concat", "-safe", "0", "-i", list}
	if e.cfg.FPS > 0 {
		args = append(args, "-vsync", "cfr", "-r", strconv.Itoa(e.cfg.FPS))
	} else {
		args = append(args, "-vsync", "vfr")
	}
	if e.cfg.Codec != "" {
		args = append(args, "-c:v", e.cfg.Codec)
	}
	if e.cfg.PixelFormat != "" {
		args = append(args, "-pix_fmt", e.cfg.PixelFormat)
	}
	if e.cfg.Size != "" {
		args = append(args, "-s", e.cfg.Size)
	}
	if e.cfg.VideoBitrate != "" {
		args = append(args, "-b:v", e.cfg.VideoBitrate)
	}
	return append(args, out)
}

// ConcatList 生成 ffconcat 列表。最后一个文件重复一次，否则 concat 会忽略它的 duration。
func ConcatList(frames []model.TimedFrame) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, f := range frames {
		fmt.Fprintf(&b, "file %s\n", quote(absPath(f.Path)))
		fmt.Fprintf(&b, "duration %s\n", strconv.FormatFloat(f.Duration.Seconds(), 'f', 6, 64))
	}
	if n := len(frames); n > 0 {
		fmt.Fprintf(&b, "file %s\n", quote(absPath(frames[n-1].Path)))
	}
	return b.String()
}

func quote(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// partialName videos/a.mp4 -> videos/.a.partial.mp4，保留扩展名以便 ffmpeg 推断封装格式
func partialName(out string) string {
	dir, base := filepath.Split(out)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		return s[len(s)-stderrTail:]
	}
	return s
}
