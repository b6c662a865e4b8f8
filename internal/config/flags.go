package config

import (
	"github.com/spf13/pflag"

	"framecast/internal/logger"
)

// RegisterFlags 注册可覆盖配置项的公共命令行参数
func RegisterFlags(fs *pflag.FlagSet) *string {
	path := fs.StringP("config", "c", "", "配置文件路径（json/yaml）")
	fs.String("log-level", "", "日志级别 debug|info|warn|error")
	fs.String("image-path", "", "帧文件目录")
	fs.String("video-path", "", "视频输出目录")
	fs.String("chrome-bin", "", "Chrome 可执行文件")
	fs.Int("chrome-port", 0, "远程调试端口")
	fs.String("ffmpeg", "", "ffmpeg 可执行文件")
	fs.String("db", "", "录制目录 sqlite 文件，空字符串关闭")
	fs.String("metrics", "", "Prometheus textfile 输出路径")
	return path
}

// LoggerOptions 由日志配置生成 logger.Options
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:   c.Log.Level,
		Writers: c.Log.Writer,
		File: logger.FileOptions{
			Path:       c.Log.File.Path,
			MaxSizeMB:  c.Log.File.MaxSizeMB,
			MaxBackups: c.Log.File.MaxBackups,
			MaxAgeDays: c.Log.File.MaxAgeDays,
			Compress:   c.Log.File.Compress,
		},
	}
}
