package model

import (
	"strconv"
	"time"
)

// DeviceProfile 设备预设：UA 与设备尺寸参数
type DeviceProfile struct {
	UserAgent string         `json:"ua" mapstructure:"ua"`
	Metrics   map[string]any `json:"metrics" mapstructure:"metrics"`
}

// NetworkProfile 网络预设，吞吐单位为 bytes/s，延迟单位为毫秒
type NetworkProfile struct {
	Offline            bool    `json:"offline" mapstructure:"offline"`
	Latency            float64 `json:"latency" mapstructure:"latency"`
	DownloadThroughput float64 `json:"downloadThroughput" mapstructure:"download_throughput"`
	UploadThroughput   float64 `json:"uploadThroughput" mapstructure:"upload_throughput"`
	ConnectionType     string  `json:"connectionType" mapstructure:"connection_type"`
}

// RecordingRequest 一次录制的输入参数，创建后不可修改
type RecordingRequest struct {
	URL        string `json:"url"`
	Device     string `json:"device"`
	Network    string `json:"network"`
	Identifier string `json:"identifier"`
}

// ScreencastOptions 录屏参数
type ScreencastOptions struct {
	Format        string `json:"format"`
	Quality       int    `json:"quality"`
	EveryNthFrame int    `json:"everyNthFrame"`
}

// Frame 一帧录屏数据，Timestamp 为协议给出的秒级时间戳
type Frame struct {
	Data      []byte  `json:"-"`
	Timestamp float64 `json:"timestamp"`
	SessionID int     `json:"sessionId"`
}

// TimestampMS 返回毫秒时间戳
func (f Frame) TimestampMS() float64 {
	return f.Timestamp * 1000
}

// FrameName 帧文件名：<毫秒时间戳>_<标识>.<格式>
func FrameName(ts float64, identifier, format string) string {
	return strconv.FormatFloat(ts, 'f', 3, 64) + "_" + identifier + "." + format
}

// TimedFrame 视频合成用的帧：路径与展示时长
type TimedFrame struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration"`
}

// VideoArtifact 合成的视频
type VideoArtifact struct {
	Identifier string        `json:"identifier"`
	Path       string        `json:"path"`
	Manifest   string        `json:"manifest"`
	Frames     int           `json:"frames"`
	Duration   time.Duration `json:"duration"`
}

// State 录制状态机的状态
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateStarting   State = "starting"
	StateEmulating  State = "emulating"
	StateRecording  State = "recording"
	StateDraining   State = "draining"
	StatePersisted  State = "persisted"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// RecordingResult 一次录制的结果
type RecordingResult struct {
	Identifier  string   `json:"identifier"`
	State       State    `json:"state"`
	Frames      int      `json:"frames"`
	AckFailures int      `json:"ackFailures"`
	Files       []string `json:"files"`
}

// RecordingInfo 录制目录中的一条记录
type RecordingInfo struct {
	ID          string    `json:"id"`
	Identifier  string    `json:"identifier"`
	URL         string    `json:"url"`
	Device      string    `json:"device"`
	Network     string    `json:"network"`
	State       State     `json:"state"`
	Frames      int       `json:"frames"`
	AckFailures int       `json:"ackFailures"`
	VideoPath   string    `json:"videoPath"`
	Error       string    `json:"error"`
	CreatedAt   time.Time `json:"createdAt"`
}
