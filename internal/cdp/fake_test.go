package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"framecast/internal/browser"

	"github.com/gorilla/websocket"
)

type rpcCall struct {
	Method string
	Params json.RawMessage
}

// fakeDevTools 模拟 DevTools 的 HTTP 目标列表与 websocket 协议端点
type fakeDevTools struct {
	srv *httptest.Server

	mu      sync.Mutex
	ws      *websocket.Conn
	calls   []rpcCall
	errors  map[string]string
	results map[string]string
	ready   chan struct{}
	once    sync.Once

	wmu sync.Mutex
}

func newFakeDevTools(t *testing.T) *fakeDevTools {
	t.Helper()
	f := &fakeDevTools{
		errors: map[string]string{},
		results: map[string]string{
			"Network.canEmulateNetworkConditions": `{"result":true}`,
			"Page.navigate":                       `{"frameId":"F1","loaderId":"L1"}`,
		},
		ready: make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/json/list", f.list)
	mux.HandleFunc("/json", f.list)
	mux.HandleFunc("/devtools/page/1", f.serveWS)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		f.mu.Lock()
		if f.ws != nil {
			_ = f.ws.Close()
		}
		f.mu.Unlock()
		f.srv.Close()
	})
	return f
}

func (f *fakeDevTools) URL() string { return f.srv.URL }

func (f *fakeDevTools) list(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode([]map[string]string{{
		"id":                   "1",
		"type":                 "page",
		"title":                "",
		"url":                  "about:blank",
		"webSocketDebuggerUrl": "ws://" + r.Host + "/devtools/page/1",
	}})
}

func (f *fakeDevTools) serveWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.ws = ws
	f.mu.Unlock()
	f.once.Do(func() { close(f.ready) })

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		f.mu.Lock()
		f.calls = append(f.calls, rpcCall{Method: req.Method, Params: req.Params})
		msg, failed := f.errors[req.Method]
		result, ok := f.results[req.Method]
		f.mu.Unlock()
		if !ok {
			result = "{}"
		}

		resp := map[string]any{"id": req.ID}
		if failed {
			resp["error"] = map[string]any{"code": -32000, "message": msg}
		} else {
			resp["result"] = json.RawMessage(result)
		}
		f.write(resp)
	}
}

func (f *fakeDevTools) write(v any) {
	<-f.ready
	f.mu.Lock()
	ws := f.ws
	f.mu.Unlock()
	f.wmu.Lock()
	defer f.wmu.Unlock()
	_ = ws.WriteJSON(v)
}

// emit 推送一个协议事件
func (f *fakeDevTools) emit(method string, params any) {
	f.write(map[string]any{"method": method, "params": params})
}

func (f *fakeDevTools) fail(method, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[method] = msg
}

func (f *fakeDevTools) result(method, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[method] = raw
}

func (f *fakeDevTools) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

func (f *fakeDevTools) params(method string) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method {
			return f.calls[i].Params
		}
	}
	return nil
}

// fakeProcess 模拟浏览器进程；hang 为 true 时 Kill 后永不退出
type fakeProcess struct {
	url      string
	hang     bool
	killed   chan struct{}
	done     chan struct{}
	killOnce sync.Once
	doneOnce sync.Once
}

func newFakeProcess(url string, hang bool) *fakeProcess {
	return &fakeProcess{url: url, hang: hang, killed: make(chan struct{}), done: make(chan struct{})}
}

func (p *fakeProcess) DevToolsURL() string { return p.url }
func (p *fakeProcess) PID() int            { return 4242 }

func (p *fakeProcess) Kill() {
	p.killOnce.Do(func() { close(p.killed) })
	if !p.hang {
		p.exit()
	}
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) exit() { p.doneOnce.Do(func() { close(p.done) }) }

func (p *fakeProcess) wasKilled() bool {
	select {
	case <-p.killed:
		return true
	default:
		return false
	}
}

type fakeLauncher struct {
	proc *fakeProcess
	err  error
	opts browser.Options
}

func (l *fakeLauncher) Launch(_ context.Context, opts browser.Options) (browser.Process, error) {
	l.opts = opts
	if l.err != nil {
		return nil, l.err
	}
	return l.proc, nil
}

var errLaunch = errors.New("no chrome binary")
