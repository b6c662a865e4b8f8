package session

import (
	"fmt"
	"sync"
	"time"

	"framecast/internal/logger"
	"framecast/pkg/model"
)

// Run 一次正在进行的录制
type Run struct {
	Identifier string
	StartedAt  time.Time
}

// Manager 录制登记表。浏览器会话是全局唯一的，同一时刻只允许一个录制。
type Manager struct {
	mu     sync.RWMutex
	active *Run
	log    logger.Logger
}

// NewManager 创建登记表
func NewManager(l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{log: l}
}

// Acquire 登记录制，已有录制进行中时返回 ErrSessionBusy
func (m *Manager) Acquire(identifier string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, fmt.Errorf("%w: %q is recording", model.ErrSessionBusy, m.active.Identifier)
	}
	m.active = &Run{Identifier: identifier, StartedAt: time.Now()}
	m.log.Info("登记录制", "identifier", identifier)
	return m.active, nil
}

// Release 注销录制，identifier 不匹配时忽略
func (m *Manager) Release(identifier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.Identifier != identifier {
		return
	}
	m.log.Info("注销录制", "identifier", identifier, "elapsed", time.Since(m.active.StartedAt))
	m.active = nil
}

// Active 返回当前录制
func (m *Manager) Active() (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return nil, false
	}
	r := *m.active
	return &r, true
}
