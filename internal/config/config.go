package config

import (
	"time"

	"framecast/pkg/model"
)

// Config 配置文件结构体
type Config struct {
	Version string `mapstructure:"version"`

	Sqlite SqliteConfig `mapstructure:"sqlite"`
	Log    LogConfig    `mapstructure:"log"`

	Chrome  ChromeConfig  `mapstructure:"chrome"`
	General GeneralConfig `mapstructure:"general"`
	Video   VideoConfig   `mapstructure:"video"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	Devices  map[string]model.DeviceProfile  `mapstructure:"devices"`
	Networks map[string]model.NetworkProfile `mapstructure:"networks"`
}

// SqliteConfig 录制目录数据库
type SqliteConfig struct {
	Dsn    string `mapstructure:"dsn"`
	Prefix string `mapstructure:"prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string   `mapstructure:"level"`
	Writer []string `mapstructure:"writer"`
	File   struct {
		Path       string `mapstructure:"path"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
		Compress   bool   `mapstructure:"compress"`
	} `mapstructure:"file"`
}

// Viewport 初始窗口尺寸
type Viewport struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// ChromeConfig 浏览器与协议会话配置
type ChromeConfig struct {
	Bin              string        `mapstructure:"bin"`
	Port             int           `mapstructure:"port"`
	LogLevel         string        `mapstructure:"log_level"`
	Flags            []string      `mapstructure:"flags"`
	Enable           []string      `mapstructure:"enable"`
	InitViewport     Viewport      `mapstructure:"init_viewport"`
	IgnoreCertErrors bool          `mapstructure:"ignore_cert_errors"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
}

// GeneralConfig 路径、格式与默认预设
type GeneralConfig struct {
	ImagePath      string `mapstructure:"image_path"`
	ImageFormat    string `mapstructure:"image_format"`
	ImageQuality   int    `mapstructure:"image_quality"`
	EveryNthFrame  int    `mapstructure:"every_nth_frame"`
	VideoPath      string `mapstructure:"video_path"`
	DefaultDevice  string `mapstructure:"default_device"`
	DefaultNetwork string `mapstructure:"default_network"`
}

// VideoConfig 编码参数
type VideoConfig struct {
	FFmpeg       string `mapstructure:"ffmpeg"`
	Format       string `mapstructure:"format"`
	FPS          int    `mapstructure:"fps"`
	Codec        string `mapstructure:"codec"`
	PixelFormat  string `mapstructure:"pixel_format"`
	Size         string `mapstructure:"size"`
	VideoBitrate string `mapstructure:"video_bitrate"`
}

// MetricsConfig 指标导出，Textfile 为空时不导出
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	cfg := &Config{
		Version: "1.0.0",
		Sqlite: SqliteConfig{
			Dsn:    "framecast.sqlite3",
			Prefix: "framecast_",
		},
		Log: LogConfig{
			Level:  "info",
			Writer: []string{"console"},
		},
		Chrome: ChromeConfig{
			Port:             9222,
			LogLevel:         "silent",
			Enable:           []string{"Page", "Security", "Network"},
			InitViewport:     Viewport{Width: 1920, Height: 1080},
			IgnoreCertErrors: true,
			ConnectTimeout:   10 * time.Second,
		},
		General: GeneralConfig{
			ImagePath:      "images",
			ImageFormat:    "png",
			EveryNthFrame:  1,
			VideoPath:      "videos",
			DefaultDevice:  "desktop",
			DefaultNetwork: "wifi",
		},
		Video: VideoConfig{
			FFmpeg:      "ffmpeg",
			Format:      "mp4",
			FPS:         25,
			Codec:       "libx264",
			PixelFormat: "yuv420p",
		},
		Devices:  DefaultDevices(),
		Networks: DefaultNetworks(),
	}
	cfg.Log.File.Path = "logs/framecast.log"
	cfg.Log.File.MaxSizeMB = 20
	cfg.Log.File.MaxBackups = 5
	cfg.Log.File.MaxAgeDays = 30
	return cfg
}

// ScreencastOptions 由通用配置生成录屏参数
func (c *Config) ScreencastOptions() model.ScreencastOptions {
	return model.ScreencastOptions{
		Format:        c.General.ImageFormat,
		Quality:       c.General.ImageQuality,
		EveryNthFrame: c.General.EveryNthFrame,
	}
}
