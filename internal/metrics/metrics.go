package metrics

import (
	"errors"
	"time"

	"framecast/pkg/model"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "framecast"

// Metrics 录制与合成指标。命令行进程生命周期短，指标以 textfile 形式导出。
type Metrics struct {
	registry        *prometheus.Registry
	RecordingsTotal *prometheus.CounterVec
	FramesTotal     prometheus.Counter
	AckFailures     prometheus.Counter
	VideosTotal     *prometheus.CounterVec
	EncodeSeconds   prometheus.Histogram
}

// New 创建并注册指标
func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		RecordingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_total",
			Help:      "Recording runs by terminal state and error kind",
		}, []string{"state", "error"}),
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Screencast frames captured",
		}),
		AckFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_ack_failures_total",
			Help:      "Screencast frame acknowledgements that failed",
		}),
		VideosTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "videos_total",
			Help:      "Video assembly runs by outcome",
		}, []string{"error"}),
		EncodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_seconds",
			Help:      "Wall time of video assembly",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
	}
	r.MustRegister(m.RecordingsTotal, m.FramesTotal, m.AckFailures, m.VideosTotal, m.EncodeSeconds)
	return m
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRecording 记录一次录制的结果
func (m *Metrics) ObserveRecording(res *model.RecordingResult, err error) {
	state := string(model.StateFailed)
	if res != nil {
		state = string(res.State)
		m.FramesTotal.Add(float64(res.Frames))
		m.AckFailures.Add(float64(res.AckFailures))
	}
	m.RecordingsTotal.WithLabelValues(state, Kind(err)).Inc()
}

// ObserveVideo 记录一次视频合成
func (m *Metrics) ObserveVideo(elapsed time.Duration, err error) {
	m.VideosTotal.WithLabelValues(Kind(err)).Inc()
	if err == nil {
		m.EncodeSeconds.Observe(elapsed.Seconds())
	}
}

// WriteTextfile 按 node_exporter textfile 格式写出全部指标
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

var kinds = []struct {
	err  error
	name string
}{
	{model.ErrLaunch, "launch"},
	{model.ErrConnection, "connection"},
	{model.ErrDomainEnable, "domain_enable"},
	{model.ErrEmulation, "emulation"},
	{model.ErrUnsupportedFeature, "unsupported_feature"},
	{model.ErrUnknownPreset, "unknown_preset"},
	{model.ErrPersist, "persist"},
	{model.ErrMissingIdentifier, "missing_identifier"},
	{model.ErrInvalidIdentifier, "invalid_identifier"},
	{model.ErrNoFramesFound, "no_frames"},
	{model.ErrEncoding, "encoding"},
	{model.ErrNavigate, "navigate"},
	{model.ErrSessionBusy, "session_busy"},
}

// Kind 将错误归入有限的标签值，nil 为空串
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}
