// Package browser starts and kills the Chrome process that backs a
// protocol session.
package browser

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

// Options 启动参数
type Options struct {
	Bin      string
	Port     int
	LogLevel string   // silent 时丢弃浏览器输出
	Flags    []string // --name 或 --name=value
	Output   io.Writer
}

// Process 已启动的浏览器进程
type Process interface {
	// DevToolsURL 返回 http://host:port 形式的调试地址
	DevToolsURL() string
	PID() int
	// Kill 发送终止信号，不等待退出
	Kill()
	// Done 在进程退出后关闭
	Done() <-chan struct{}
}

// Launcher 启动浏览器进程
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Process, error)
}

// RodLauncher 基于 go-rod launcher 的实现
type RodLauncher struct{}

// NewLauncher 创建默认启动器
func NewLauncher() *RodLauncher {
	return &RodLauncher{}
}

// Launch 启动 Chrome 并等待调试端口就绪
func (RodLauncher) Launch(ctx context.Context, opts Options) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := launcher.New().Headless(true)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if opts.Port > 0 {
		l = l.RemoteDebuggingPort(opts.Port)
	}
	for _, f := range opts.Flags {
		name, values := ParseFlag(f)
		if name == "" || name == "headless" {
			continue
		}
		l = l.Set(flags.Flag(name), values...)
	}
	if opts.LogLevel != "" && opts.LogLevel != "silent" && opts.Output != nil {
		l = l.Logger(opts.Output)
	}

	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	httpURL, err := devToolsHTTP(wsURL)
	if err != nil {
		l.Kill()
		return nil, err
	}

	p := &rodProcess{l: l, url: httpURL, done: make(chan struct{})}
	go func() {
		// Cleanup 阻塞直到进程退出
		l.Cleanup()
		close(p.done)
	}()
	return p, nil
}

type rodProcess struct {
	l    *launcher.Launcher
	url  string
	done chan struct{}
}

func (p *rodProcess) DevToolsURL() string   { return p.url }
func (p *rodProcess) PID() int              { return p.l.PID() }
func (p *rodProcess) Kill()                 { p.l.Kill() }
func (p *rodProcess) Done() <-chan struct{} { return p.done }

// ParseFlag 拆分 --name=a,b 形式的命令行参数
func ParseFlag(f string) (string, []string) {
	f = strings.TrimLeft(strings.TrimSpace(f), "-")
	name, value, ok := strings.Cut(f, "=")
	if !ok || value == "" {
		return name, nil
	}
	return name, []string{value}
}

func devToolsHTTP(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("parse devtools url %q: %w", wsURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("devtools url %q has no host", wsURL)
	}
	return "http://" + u.Host, nil
}
