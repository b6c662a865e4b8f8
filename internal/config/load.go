package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"framecast/pkg/model"
)

// EnvPrefix 环境变量前缀，例如 FRAMECAST_GENERAL_IMAGE_PATH
const EnvPrefix = "FRAMECAST"

// flagKeys 命令行参数到配置项的映射
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"image-path":  "general.image_path",
	"video-path":  "general.video_path",
	"chrome-bin":  "chrome.bin",
	"chrome-port": "chrome.port",
	"ffmpeg":      "video.ffmpeg",
	"db":          "sqlite.dsn",
	"metrics":     "metrics.textfile",
}

// Load 读取配置文件。path 为空时在当前目录与 ./configs 下查找 config.{json,yaml}，
// 找不到则使用默认值。flags 可为 nil。
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)

	v.SetDefault("sqlite.dsn", d.Sqlite.Dsn)
	v.SetDefault("sqlite.prefix", d.Sqlite.Prefix)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.writer", d.Log.Writer)
	v.SetDefault("log.file.path", d.Log.File.Path)
	v.SetDefault("log.file.max_size_mb", d.Log.File.MaxSizeMB)
	v.SetDefault("log.file.max_backups", d.Log.File.MaxBackups)
	v.SetDefault("log.file.max_age_days", d.Log.File.MaxAgeDays)
	v.SetDefault("log.file.compress", d.Log.File.Compress)

	v.SetDefault("chrome.bin", d.Chrome.Bin)
	v.SetDefault("chrome.port", d.Chrome.Port)
	v.SetDefault("chrome.log_level", d.Chrome.LogLevel)
	v.SetDefault("chrome.flags", d.Chrome.Flags)
	v.SetDefault("chrome.enable", d.Chrome.Enable)
	v.SetDefault("chrome.init_viewport.width", d.Chrome.InitViewport.Width)
	v.SetDefault("chrome.init_viewport.height", d.Chrome.InitViewport.Height)
	v.SetDefault("chrome.ignore_cert_errors", d.Chrome.IgnoreCertErrors)
	v.SetDefault("chrome.connect_timeout", d.Chrome.ConnectTimeout)

	v.SetDefault("general.image_path", d.General.ImagePath)
	v.SetDefault("general.image_format", d.General.ImageFormat)
	v.SetDefault("general.image_quality", d.General.ImageQuality)
	v.SetDefault("general.every_nth_frame", d.General.EveryNthFrame)
	v.SetDefault("general.video_path", d.General.VideoPath)
	v.SetDefault("general.default_device", d.General.DefaultDevice)
	v.SetDefault("general.default_network", d.General.DefaultNetwork)

	v.SetDefault("video.ffmpeg", d.Video.FFmpeg)
	v.SetDefault("video.format", d.Video.Format)
	v.SetDefault("video.fps", d.Video.FPS)
	v.SetDefault("video.codec", d.Video.Codec)
	v.SetDefault("video.pixel_format", d.Video.PixelFormat)
	v.SetDefault("video.size", d.Video.Size)
	v.SetDefault("video.video_bitrate", d.Video.VideoBitrate)

	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

// normalize 预设名统一为小写，未声明预设时使用内置预设
func (c *Config) normalize() {
	if len(c.Devices) == 0 {
		c.Devices = DefaultDevices()
	}
	if len(c.Networks) == 0 {
		c.Networks = DefaultNetworks()
	}
	devices := make(map[string]model.DeviceProfile, len(c.Devices))
	for name, d := range c.Devices {
		devices[strings.ToLower(name)] = d
	}
	c.Devices = devices
	networks := make(map[string]model.NetworkProfile, len(c.Networks))
	for name, n := range c.Networks {
		networks[strings.ToLower(name)] = n
	}
	c.Networks = networks

	c.General.ImageFormat = strings.ToLower(c.General.ImageFormat)
	if c.General.ImageFormat == "jpg" {
		c.General.ImageFormat = "jpeg"
	}
}

// Validate 检查配置的基本合法性
func (c *Config) Validate() error {
	switch c.General.ImageFormat {
	case "png", "jpeg":
	default:
		return fmt.Errorf("config: unsupported image format %q", c.General.ImageFormat)
	}
	if c.General.ImagePath == "" {
		return errors.New("config: general.image_path is empty")
	}
	if c.General.VideoPath == "" {
		return errors.New("config: general.video_path is empty")
	}
	if c.Video.Format == "" {
		return errors.New("config: video.format is empty")
	}
	if c.Chrome.InitViewport.Width <= 0 || c.Chrome.InitViewport.Height <= 0 {
		return fmt.Errorf("config: invalid viewport %dx%d", c.Chrome.InitViewport.Width, c.Chrome.InitViewport.Height)
	}
	return nil
}

// Device 按名称（大小写不敏感）查找设备预设
func (c *Config) Device(name string) (model.DeviceProfile, bool) {
	d, ok := c.Devices[strings.ToLower(name)]
	return d, ok
}

// Network 按名称（大小写不敏感）查找网络预设
func (c *Config) Network(name string) (model.NetworkProfile, bool) {
	n, ok := c.Networks[strings.ToLower(name)]
	return n, ok
}
