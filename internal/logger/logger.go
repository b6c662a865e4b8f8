package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 日志接口，参数以 key/value 成对传入
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	With(kv ...any) Logger
}

// FileOptions 日志文件滚动配置
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Options 日志配置
type Options struct {
	Level   string
	Writers []string // console | file
	File    FileOptions
	Console io.Writer
	NoColor bool
}

type zlog struct {
	z zerolog.Logger
}

// New 根据配置创建 zerolog 实现
func New(opts Options) Logger {
	var writers []io.Writer
	for _, w := range opts.Writers {
		switch strings.ToLower(w) {
		case "console":
			out := opts.Console
			if out == nil {
				out = os.Stderr
			}
			writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime, NoColor: opts.NoColor})
		case "file":
			if opts.File.Path == "" {
				continue
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   opts.File.Path,
				MaxSize:    opts.File.MaxSizeMB,
				MaxBackups: opts.File.MaxBackups,
				MaxAge:     opts.File.MaxAgeDays,
				Compress:   opts.File.Compress,
			})
		}
	}
	if len(writers) == 0 {
		return NewNop()
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	z := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	return &zlog{z: z}
}

// NewNop 创建丢弃所有输出的日志
func NewNop() Logger {
	return &zlog{z: zerolog.Nop()}
}

func (l *zlog) Debug(msg string, kv ...any) { l.z.Debug().Fields(kv).Msg(msg) }
func (l *zlog) Info(msg string, kv ...any)  { l.z.Info().Fields(kv).Msg(msg) }
func (l *zlog) Warn(msg string, kv ...any)  { l.z.Warn().Fields(kv).Msg(msg) }
func (l *zlog) Error(msg string, kv ...any) { l.z.Error().Fields(kv).Msg(msg) }

func (l *zlog) With(kv ...any) Logger {
	return &zlog{z: l.z.With().Fields(kv).Logger()}
}

type recordingKey struct{}

// WithRecording 在 context 中携带录制标识
func WithRecording(ctx context.Context, identifier string) context.Context {
	return context.WithValue(ctx, recordingKey{}, identifier)
}

// Recording 取出 context 中的录制标识
func Recording(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(recordingKey{}).(string)
	return id
}
