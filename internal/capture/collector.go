package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"framecast/internal/config"
	"framecast/internal/logger"
	"framecast/pkg/model"
)

// SettleDelay load 事件之后继续收帧的时间，用于捕获最后的绘制
const SettleDelay = 2 * time.Second

// Session 录制过程使用的协议会话能力
type Session interface {
	EmulateDevice(ctx context.Context, d model.DeviceProfile) error
	EmulateNetwork(ctx context.Context, n model.NetworkProfile) error
	Frames(ctx context.Context) (<-chan model.Frame, error)
	LoadEventFired(ctx context.Context) (<-chan struct{}, error)
	StartScreencast(ctx context.Context, o model.ScreencastOptions) error
	AckFrame(ctx context.Context, sessionID int) error
	Navigate(ctx context.Context, url string) error
	StopScreencast(ctx context.Context) error
}

// Browser 启动与停止协议会话
type Browser interface {
	Start(ctx context.Context) (Session, error)
	Stop()
}

// FrameWriter 帧持久化
type FrameWriter interface {
	Write(f model.Frame, identifier string) (string, error)
	Remove(path string) error
}

// Collector 录制编排：校验、启动、模拟、录屏、收尾、落盘
type Collector struct {
	cfg     *config.Config
	browser Browser
	writer  FrameWriter
	settle  time.Duration
	log     logger.Logger
}

// NewCollector 创建录制编排器
func NewCollector(cfg *config.Config, b Browser, w FrameWriter, log logger.Logger) *Collector {
	if log == nil {
		log = logger.NewNop()
	}
	return &Collector{cfg: cfg, browser: b, writer: w, settle: SettleDelay, log: log}
}

type run struct {
	res *model.RecordingResult
	log logger.Logger
}

func (r *run) enter(s model.State) {
	r.log.Debug("录制状态变更", "from", r.res.State, "to", s)
	r.res.State = s
}

func (r *run) fail(err error) (*model.RecordingResult, error) {
	r.log.Error("录制失败", "state", r.res.State, "error", err)
	r.res.State = model.StateFailed
	return r.res, err
}

// Run 执行一次录制。返回的结果总是携带终态；失败时 error 非空。
func (c *Collector) Run(ctx context.Context, req model.RecordingRequest) (*model.RecordingResult, error) {
	r := &run{
		res: &model.RecordingResult{Identifier: req.Identifier, State: model.StateIdle},
		log: c.log.With("identifier", req.Identifier),
	}

	r.enter(model.StateValidating)
	device, network, err := c.resolve(req)
	if err != nil {
		return r.fail(err)
	}

	r.enter(model.StateStarting)
	sess, err := c.browser.Start(ctx)
	if err != nil {
		return r.fail(err)
	}
	stopped := false
	stop := func() {
		if !stopped {
			stopped = true
			c.browser.Stop()
		}
	}
	defer stop()

	r.enter(model.StateEmulating)
	if err := sess.EmulateDevice(ctx, device); err != nil {
		return r.fail(err)
	}
	if err := sess.EmulateNetwork(ctx, network); err != nil {
		return r.fail(err)
	}

	r.enter(model.StateRecording)
	frames, err := sess.Frames(ctx)
	if err != nil {
		return r.fail(fmt.Errorf("%w: subscribe frames: %w", model.ErrConnection, err))
	}
	loaded, err := sess.LoadEventFired(ctx)
	if err != nil {
		return r.fail(fmt.Errorf("%w: subscribe load: %w", model.ErrConnection, err))
	}
	if err := sess.StartScreencast(ctx, c.cfg.ScreencastOptions()); err != nil {
		return r.fail(fmt.Errorf("%w: start screencast: %w", model.ErrConnection, err))
	}
	if err := sess.Navigate(ctx, req.URL); err != nil {
		return r.fail(err)
	}

	var buf []model.Frame
	receive := func(f model.Frame) {
		buf = append(buf, f)
		if err := sess.AckFrame(ctx, f.SessionID); err != nil {
			r.res.AckFailures++
			r.log.Warn("帧确认失败", "sessionId", f.SessionID, "error", err)
		}
	}

	for loaded != nil {
		select {
		case f, ok := <-frames:
			if !ok {
				return r.fail(fmt.Errorf("%w: frame stream closed before load", model.ErrConnection))
			}
			receive(f)
		case <-loaded:
			loaded = nil
		case <-ctx.Done():
			return r.fail(ctx.Err())
		}
	}
	r.log.Info("页面加载完成", "frames", len(buf))

	r.enter(model.StateDraining)
	timer := time.NewTimer(c.settle)
settle:
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			receive(f)
		case <-timer.C:
			break settle
		case <-ctx.Done():
			timer.Stop()
			return r.fail(ctx.Err())
		}
	}

	if err := sess.StopScreencast(ctx); err != nil {
		r.log.Warn("停止录屏失败", "error", err)
	}
	stop()
	buf = append(buf, drain(frames)...)

	r.res.Frames = len(buf)
	files := make([]string, 0, len(buf))
	for _, f := range buf {
		path, err := c.writer.Write(f, req.Identifier)
		if err != nil {
			c.discard(files, r.log)
			return r.fail(fmt.Errorf("%w: %w", model.ErrPersist, err))
		}
		files = append(files, path)
	}
	r.res.Files = files
	r.enter(model.StatePersisted)

	r.enter(model.StateDone)
	r.log.Info("录制完成", "frames", r.res.Frames, "ackFailures", r.res.AckFailures)
	return r.res, nil
}

// discard 落盘失败时删除本次已写入的帧，避免留下残缺的时间线
func (c *Collector) discard(files []string, log logger.Logger) {
	for _, path := range files {
		if err := c.writer.Remove(path); err != nil {
			log.Warn("删除残留帧失败", "file", path, "error", err)
		}
	}
}

// resolve 校验请求并查找预设，不触碰浏览器
func (c *Collector) resolve(req model.RecordingRequest) (model.DeviceProfile, model.NetworkProfile, error) {
	if err := model.ValidateIdentifier(req.Identifier); err != nil {
		return model.DeviceProfile{}, model.NetworkProfile{}, err
	}
	if strings.TrimSpace(req.URL) == "" {
		return model.DeviceProfile{}, model.NetworkProfile{}, errors.New("url is required")
	}

	deviceName := req.Device
	if deviceName == "" {
		deviceName = c.cfg.General.DefaultDevice
	}
	networkName := req.Network
	if networkName == "" {
		networkName = c.cfg.General.DefaultNetwork
	}

	device, ok := c.cfg.Device(deviceName)
	if !ok {
		return model.DeviceProfile{}, model.NetworkProfile{}, fmt.Errorf("%w: device %q", model.ErrUnknownPreset, deviceName)
	}
	network, ok := c.cfg.Network(networkName)
	if !ok {
		return model.DeviceProfile{}, model.NetworkProfile{}, fmt.Errorf("%w: network %q", model.ErrUnknownPreset, networkName)
	}
	return device, network, nil
}

// drain 非阻塞地取出通道中已排队的帧
func drain(frames <-chan model.Frame) []model.Frame {
	var out []model.Frame
	if frames == nil {
		return nil
	}
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return out
			}
			out = append(out, f)
		default:
			return out
		}
	}
}
