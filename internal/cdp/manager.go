package cdp

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"framecast/internal/browser"
	"framecast/internal/config"
	"framecast/internal/logger"
	"framecast/pkg/model"

	"github.com/cenkalti/backoff/v4"
	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/rpcc"
)

// StopTimeout 等待浏览器退出的上限
const StopTimeout = 3000 * time.Millisecond

// baselineFlags 固定的无头浏览器参数
var baselineFlags = []string{
	"--no-sandbox",
	"--headless",
	"--disable-web-security",
	"--disable-gpu",
	"--hide-scrollbars",
}

type dialFunc func(ctx context.Context, devtoolsURL string, timeout time.Duration) (*rpcc.Conn, error)

// Manager 持有浏览器进程与协议连接，同一时刻最多一个活动会话
type Manager struct {
	mu          sync.Mutex
	launcher    browser.Launcher
	dial        dialFunc
	proc        browser.Process
	conn        *rpcc.Conn
	session     *Session
	cancel      context.CancelFunc
	stopTimeout time.Duration
	log         logger.Logger
}

// New 创建会话管理器
func New(l browser.Launcher, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		launcher:    l,
		dial:        dialDevTools,
		stopTimeout: StopTimeout,
		log:         log,
	}
}

// LaunchOptions 由配置生成浏览器启动参数
func LaunchOptions(cfg config.ChromeConfig) browser.Options {
	flags := make([]string, 0, len(baselineFlags)+len(cfg.Flags)+1)
	flags = append(flags, baselineFlags...)
	flags = append(flags, "--window-size="+strconv.Itoa(cfg.InitViewport.Width)+","+strconv.Itoa(cfg.InitViewport.Height))
	flags = append(flags, cfg.Flags...)
	return browser.Options{
		Bin:      cfg.Bin,
		Port:     cfg.Port,
		LogLevel: cfg.LogLevel,
		Flags:    flags,
		Output:   os.Stderr,
	}
}

// Start 启动浏览器、建立协议连接并启用配置的域。
// 任一步骤失败都会回收已创建的连接与进程，不会留下半初始化的会话。
func (m *Manager) Start(ctx context.Context, cfg config.ChromeConfig) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil, model.ErrAlreadyStarted
	}

	proc, err := m.launcher.Launch(ctx, LaunchOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrLaunch, err)
	}
	m.log.Info("浏览器进程已启动", "pid", proc.PID(), "devtools", proc.DevToolsURL())

	conn, err := m.dial(ctx, proc.DevToolsURL(), cfg.ConnectTimeout)
	if err != nil {
		m.kill(proc)
		return nil, fmt.Errorf("%w: %w", model.ErrConnection, err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := newSession(sctx, cdp.NewClient(conn), m.log)

	abort := func(err error) (*Session, error) {
		cancel()
		_ = conn.Close()
		m.kill(proc)
		return nil, err
	}

	if err := s.enable(ctx, cfg.Enable); err != nil {
		return abort(err)
	}
	if cfg.IgnoreCertErrors {
		if err := s.acceptInsecureCertificates(ctx); err != nil {
			return abort(fmt.Errorf("%w: security: %w", model.ErrDomainEnable, err))
		}
	}

	m.proc = proc
	m.conn = conn
	m.session = s
	m.cancel = cancel
	go m.watch(sctx, proc)

	m.log.Info("协议会话已就绪", "domains", s.Domains())
	return s, nil
}

// Get 返回当前会话
func (m *Manager) Get() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, model.ErrNotStarted
	}
	return m.session, nil
}

// Stop 关闭连接并终止浏览器，最多等待 stopTimeout。可重复调用。
// 超时后视为进程泄漏，仍然正常返回。
func (m *Manager) Stop() {
	m.mu.Lock()
	proc, conn, cancel := m.proc, m.conn, m.cancel
	m.proc, m.conn, m.session, m.cancel = nil, nil, nil, nil
	m.mu.Unlock()

	if proc == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			m.log.Debug("关闭协议连接失败", "error", err)
		}
	}
	m.kill(proc)
}

func (m *Manager) kill(p browser.Process) {
	done := make(chan struct{})
	go func() {
		p.Kill()
		<-p.Done()
		close(done)
	}()

	timer := time.NewTimer(m.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		m.log.Info("浏览器进程已退出", "pid", p.PID())
	case <-timer.C:
		m.log.Warn("浏览器进程退出超时，放弃等待", "pid", p.PID(), "timeout", m.stopTimeout)
	}
}

// watch 进程意外退出时将管理器置为停止状态
func (m *Manager) watch(ctx context.Context, p browser.Process) {
	select {
	case <-ctx.Done():
		return
	case <-p.Done():
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proc != p {
		return
	}
	m.log.Warn("浏览器进程意外退出", "pid", p.PID())
	if m.cancel != nil {
		m.cancel()
	}
	if m.conn != nil {
		_ = m.conn.Close()
	}
	m.proc, m.conn, m.session, m.cancel = nil, nil, nil, nil
}

// dialDevTools 查找（或创建）页面目标并建立 websocket 连接。
// 进程启动后调试端口可能尚未就绪，按指数退避重试。
func dialDevTools(ctx context.Context, devtoolsURL string, timeout time.Duration) (*rpcc.Conn, error) {
	dt := devtool.New(devtoolsURL)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	if timeout > 0 {
		b.MaxElapsedTime = timeout
	}

	var target *devtool.Target
	err := backoff.Retry(func() error {
		t, err := dt.Get(ctx, devtool.Page)
		if err != nil {
			t, err = dt.Create(ctx)
		}
		if err != nil {
			return err
		}
		target = t
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, fmt.Errorf("find page target: %w", err)
	}

	return rpcc.DialContext(ctx, target.WebSocketDebuggerURL)
}
