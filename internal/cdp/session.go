package cdp

import (
	"context"
	"fmt"
	"strings"

	adapter "framecast/internal/adapter/cdp"
	"framecast/internal/logger"
	"framecast/pkg/model"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/security"
)

// frameBuffer 帧通道容量，消费方处理确认时不阻塞事件接收
const frameBuffer = 64

// domainEnablers 支持启用的协议域，键为小写域名
var domainEnablers = map[string]func(context.Context, *cdp.Client) error{
	"page":      func(ctx context.Context, c *cdp.Client) error { return c.Page.Enable(ctx) },
	"network":   func(ctx context.Context, c *cdp.Client) error { return c.Network.Enable(ctx, nil) },
	"security":  func(ctx context.Context, c *cdp.Client) error { return c.Security.Enable(ctx) },
	"runtime":   func(ctx context.Context, c *cdp.Client) error { return c.Runtime.Enable(ctx) },
	"log":       func(ctx context.Context, c *cdp.Client) error { return c.Log.Enable(ctx) },
	"inspector": func(ctx context.Context, c *cdp.Client) error { return c.Inspector.Enable(ctx) },
}

// Session 一个浏览器进程上的协议会话
type Session struct {
	ctx     context.Context
	client  *cdp.Client
	domains []string
	log     logger.Logger
}

func newSession(ctx context.Context, client *cdp.Client, log logger.Logger) *Session {
	return &Session{ctx: ctx, client: client, log: log}
}

// Domains 已启用的协议域
func (s *Session) Domains() []string {
	return append([]string(nil), s.domains...)
}

func (s *Session) enabled(domain string) bool {
	for _, d := range s.domains {
		if d == domain {
			return true
		}
	}
	return false
}

// enable 依次启用域，任一失败即返回 ErrDomainEnable
func (s *Session) enable(ctx context.Context, domains []string) error {
	for _, name := range domains {
		key := strings.ToLower(name)
		fn, ok := domainEnablers[key]
		if !ok {
			return fmt.Errorf("%w: unsupported domain %q", model.ErrDomainEnable, name)
		}
		if s.enabled(key) {
			continue
		}
		if err := fn(ctx, s.client); err != nil {
			return fmt.Errorf("%w: %s: %w", model.ErrDomainEnable, name, err)
		}
		s.domains = append(s.domains, key)
	}
	return nil
}

// acceptInsecureCertificates 对所有证书错误一律放行。
// 这是为了抓取证书有问题的站点而做的信任取舍，不是安全特性。
func (s *Session) acceptInsecureCertificates(ctx context.Context) error {
	if !s.enabled("security") {
		return s.client.Security.SetIgnoreCertificateErrors(ctx, security.NewSetIgnoreCertificateErrorsArgs(true))
	}

	events, err := s.client.Security.CertificateError(s.ctx)
	if err != nil {
		return err
	}
	if err := s.client.Security.SetOverrideCertificateErrors(ctx, security.NewSetOverrideCertificateErrorsArgs(true)); err != nil {
		_ = events.Close()
		s.log.Debug("证书错误覆盖不可用，改为忽略证书错误", "error", err)
		return s.client.Security.SetIgnoreCertificateErrors(ctx, security.NewSetIgnoreCertificateErrorsArgs(true))
	}

	go func() {
		defer events.Close()
		for {
			ev, err := events.Recv()
			if err != nil {
				return
			}
			args := security.NewHandleCertificateErrorArgs(ev.EventID, security.CertificateErrorActionContinue)
			if err := s.client.Security.HandleCertificateError(s.ctx, args); err != nil {
				s.log.Debug("处理证书错误失败", "url", ev.RequestURL, "error", err)
			}
		}
	}()
	return nil
}

// EmulateDevice 覆盖 UA 与设备尺寸，任一失败返回 ErrEmulation，此时模拟状态不确定
func (s *Session) EmulateDevice(ctx context.Context, d model.DeviceProfile) error {
	metrics, err := adapter.ToDeviceMetricsArgs(d)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrEmulation, err)
	}
	if d.UserAgent != "" {
		if err := s.client.Emulation.SetUserAgentOverride(ctx, adapter.ToUserAgentArgs(d)); err != nil {
			return fmt.Errorf("%w: user agent: %w", model.ErrEmulation, err)
		}
	}
	if err := s.client.Emulation.SetDeviceMetricsOverride(ctx, metrics); err != nil {
		return fmt.Errorf("%w: device metrics: %w", model.ErrEmulation, err)
	}
	return nil
}

// EmulateNetwork 应用网络节流，浏览器不支持时返回 ErrUnsupportedFeature
func (s *Session) EmulateNetwork(ctx context.Context, n model.NetworkProfile) error {
	reply, err := s.client.Network.CanEmulateNetworkConditions(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrEmulation, err)
	}
	if !reply.Result {
		return fmt.Errorf("%w: network condition emulation", model.ErrUnsupportedFeature)
	}
	if err := s.client.Network.EmulateNetworkConditions(ctx, adapter.ToNetworkConditionsArgs(n)); err != nil {
		return fmt.Errorf("%w: network conditions: %w", model.ErrEmulation, err)
	}
	return nil
}

// Frames 订阅录屏帧事件，连接关闭或 ctx 结束时通道关闭
func (s *Session) Frames(ctx context.Context) (<-chan model.Frame, error) {
	stream, err := s.client.Page.ScreencastFrame(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan model.Frame, frameBuffer)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			ev, err := stream.Recv()
			if err != nil {
				return
			}
			select {
			case out <- adapter.ToFrame(ev):
			case <-ctx.Done():
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// LoadEventFired 订阅 load 事件，首次触发时关闭返回的通道
func (s *Session) LoadEventFired(ctx context.Context) (<-chan struct{}, error) {
	stream, err := s.client.Page.LoadEventFired(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan struct{})
	go func() {
		defer stream.Close()
		if _, err := stream.Recv(); err != nil {
			return
		}
		close(out)
	}()
	return out, nil
}

// StartScreencast 开始推送录屏帧
func (s *Session) StartScreencast(ctx context.Context, o model.ScreencastOptions) error {
	return s.client.Page.StartScreencast(ctx, adapter.ToScreencastArgs(o))
}

// AckFrame 确认一帧，浏览器收到确认后才会继续推送
func (s *Session) AckFrame(ctx context.Context, sessionID int) error {
	return s.client.Page.ScreencastFrameAck(ctx, page.NewScreencastFrameAckArgs(sessionID))
}

// Navigate 打开目标地址
func (s *Session) Navigate(ctx context.Context, url string) error {
	reply, err := s.client.Page.Navigate(ctx, page.NewNavigateArgs(url))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrNavigate, url, err)
	}
	if reply.ErrorText != nil && *reply.ErrorText != "" {
		return fmt.Errorf("%w: %s: %s", model.ErrNavigate, url, *reply.ErrorText)
	}
	return nil
}

// StopScreencast 停止推送录屏帧
func (s *Session) StopScreencast(ctx context.Context) error {
	return s.client.Page.StopScreencast(ctx)
}
