package capture

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"framecast/internal/config"
	"framecast/internal/storage"
	"framecast/pkg/model"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu      sync.Mutex
	calls   []string
	frames  chan model.Frame
	loaded  chan struct{}
	acked   []int
	ackErr  error
	device  model.DeviceProfile
	network model.NetworkProfile
	opts    model.ScreencastOptions
	url     string
	errs    map[string]error
	onNav   func(s *fakeSession)
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		frames: make(chan model.Frame, 16),
		loaded: make(chan struct{}),
		errs:   map[string]error{},
	}
}

func (s *fakeSession) record(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	return s.errs[name]
}

func (s *fakeSession) EmulateDevice(_ context.Context, d model.DeviceProfile) error {
	s.device = d
	return s.record("device")
}

func (s *fakeSession) EmulateNetwork(_ context.Context, n model.NetworkProfile) error {
	s.network = n
	return s.record("network")
}

func (s *fakeSession) Frames(context.Context) (<-chan model.Frame, error) {
	return s.frames, s.record("frames")
}

func (s *fakeSession) LoadEventFired(context.Context) (<-chan struct{}, error) {
	return s.loaded, s.record("load")
}

func (s *fakeSession) StartScreencast(_ context.Context, o model.ScreencastOptions) error {
	s.opts = o
	return s.record("start")
}

func (s *fakeSession) AckFrame(_ context.Context, id int) error {
	s.mu.Lock()
	s.acked = append(s.acked, id)
	s.mu.Unlock()
	return s.ackErr
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.url = url
	if err := s.record("navigate"); err != nil {
		return err
	}
	if s.onNav != nil {
		go s.onNav(s)
	}
	return nil
}

func (s *fakeSession) StopScreencast(context.Context) error {
	return s.record("stop-screencast")
}

type fakeBrowser struct {
	sess   *fakeSession
	err    error
	starts int
	stops  int
}

func (b *fakeBrowser) Start(context.Context) (Session, error) {
	b.starts++
	if b.err != nil {
		return nil, b.err
	}
	return b.sess, nil
}

func (b *fakeBrowser) Stop() { b.stops++ }

type memWriter struct {
	written []model.Frame
	removed []string
	failAt  int
}

func (w *memWriter) Write(f model.Frame, identifier string) (string, error) {
	if w.failAt > 0 && len(w.written)+1 == w.failAt {
		return "", errors.New("disk full")
	}
	w.written = append(w.written, f)
	return model.FrameName(f.TimestampMS(), identifier, "png"), nil
}

func (w *memWriter) Remove(path string) error {
	w.removed = append(w.removed, path)
	return nil
}

// failingFs 第 failAt 次创建文件时返回错误
type failingFs struct {
	afero.Fs
	creates int
	failAt  int
}

func (f *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 {
		f.creates++
		if f.creates == f.failAt {
			return nil, errors.New("disk full")
		}
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func frame(i int) model.Frame {
	return model.Frame{Data: []byte{byte(i)}, Timestamp: 1700000000 + float64(i)/10, SessionID: i}
}

func newCollector(b Browser, w FrameWriter) *Collector {
	c := NewCollector(config.NewConfig(), b, w, nil)
	c.settle = 20 * time.Millisecond
	return c
}

var request = model.RecordingRequest{URL: "https://example.test", Device: "iPhone", Network: "WIFI", Identifier: "home"}

func TestRunLoadAfterFrames(t *testing.T) {
	sess := newFakeSession()
	sess.onNav = func(s *fakeSession) {
		for i := 1; i <= 3; i++ {
			s.frames <- frame(i)
		}
		time.Sleep(10 * time.Millisecond)
		close(s.loaded)
	}
	b := &fakeBrowser{sess: sess}
	w := &memWriter{}

	res, err := newCollector(b, w).Run(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, model.StateDone, res.State)
	assert.Equal(t, 3, res.Frames)
	assert.Len(t, res.Files, 3)
	assert.Equal(t, []int{1, 2, 3}, sess.acked)
	assert.Equal(t, []string{"device", "network", "frames", "load", "start", "navigate", "stop-screencast"}, sess.calls)
	assert.Equal(t, 1, b.stops)
	assert.Equal(t, "https://example.test", sess.url)
	assert.Equal(t, "png", sess.opts.Format)
	assert.NotEmpty(t, sess.device.UserAgent)
}

func TestRunFramesDuringSettle(t *testing.T) {
	sess := newFakeSession()
	sess.onNav = func(s *fakeSession) {
		close(s.loaded)
		s.frames <- frame(1)
		s.frames <- frame(2)
	}
	w := &memWriter{}

	res, err := newCollector(&fakeBrowser{sess: sess}, w).Run(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Frames)
	assert.Len(t, w.written, 2)
}

func TestRunAckFailuresAreNotFatal(t *testing.T) {
	sess := newFakeSession()
	sess.ackErr = errors.New("ack lost")
	sess.onNav = func(s *fakeSession) {
		s.frames <- frame(1)
		s.frames <- frame(2)
		time.Sleep(10 * time.Millisecond)
		close(s.loaded)
	}
	w := &memWriter{}

	res, err := newCollector(&fakeBrowser{sess: sess}, w).Run(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, 2, res.AckFailures)
	assert.Len(t, w.written, 2)
}

func TestRunUnknownPresetSkipsBrowser(t *testing.T) {
	b := &fakeBrowser{sess: newFakeSession()}
	req := request
	req.Network = "carrier-pigeon"

	res, err := newCollector(b, &memWriter{}).Run(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrUnknownPreset)
	assert.Equal(t, model.StateFailed, res.State)
	assert.Zero(t, b.starts)
	assert.Zero(t, b.stops)
}

func TestRunMissingIdentifier(t *testing.T) {
	b := &fakeBrowser{sess: newFakeSession()}
	req := request
	req.Identifier = ""

	_, err := newCollector(b, &memWriter{}).Run(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrMissingIdentifier)
	assert.Zero(t, b.starts)
}

func TestRunRejectsPathIdentifier(t *testing.T) {
	for _, id := range []string{"../escape", "a/b", `a\b`, ".."} {
		b := &fakeBrowser{sess: newFakeSession()}
		req := request
		req.Identifier = id

		_, err := newCollector(b, &memWriter{}).Run(context.Background(), req)
		assert.ErrorIs(t, err, model.ErrInvalidIdentifier, id)
		assert.Zero(t, b.starts, id)
	}
}

func TestRunDefaultsPresets(t *testing.T) {
	sess := newFakeSession()
	sess.onNav = func(s *fakeSession) { close(s.loaded) }
	cfg := config.NewConfig()
	c := newCollector(&fakeBrowser{sess: sess}, &memWriter{})

	_, err := c.Run(context.Background(), model.RecordingRequest{URL: "https://example.test", Identifier: "home"})
	require.NoError(t, err)
	assert.Equal(t, cfg.Networks[cfg.General.DefaultNetwork], sess.network)
}

func TestRunEmulationFailureStopsBrowser(t *testing.T) {
	sess := newFakeSession()
	sess.errs["device"] = model.ErrEmulation
	b := &fakeBrowser{sess: sess}

	res, err := newCollector(b, &memWriter{}).Run(context.Background(), request)
	assert.ErrorIs(t, err, model.ErrEmulation)
	assert.Equal(t, model.StateFailed, res.State)
	assert.Equal(t, 1, b.stops)
	assert.NotContains(t, sess.calls, "network")
}

func TestRunStartFailure(t *testing.T) {
	b := &fakeBrowser{err: model.ErrLaunch}

	res, err := newCollector(b, &memWriter{}).Run(context.Background(), request)
	assert.ErrorIs(t, err, model.ErrLaunch)
	assert.Equal(t, model.StateFailed, res.State)
	assert.Zero(t, b.stops)
}

func TestRunStopScreencastFailureStillStops(t *testing.T) {
	sess := newFakeSession()
	sess.errs["stop-screencast"] = errors.New("gone")
	sess.onNav = func(s *fakeSession) { close(s.loaded) }
	b := &fakeBrowser{sess: sess}

	res, err := newCollector(b, &memWriter{}).Run(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, model.StateDone, res.State)
	assert.Equal(t, 1, b.stops)
}

func TestRunPersistFailure(t *testing.T) {
	sess := newFakeSession()
	sess.onNav = func(s *fakeSession) {
		s.frames <- frame(1)
		s.frames <- frame(2)
		time.Sleep(10 * time.Millisecond)
		close(s.loaded)
	}
	w := &memWriter{failAt: 2}

	res, err := newCollector(&fakeBrowser{sess: sess}, w).Run(context.Background(), request)
	assert.ErrorIs(t, err, model.ErrPersist)
	assert.Equal(t, model.StateFailed, res.State)
	assert.Equal(t, []string{model.FrameName(frame(1).TimestampMS(), "home", "png")}, w.removed)
	assert.Empty(t, res.Files)
}

func TestRunPersistFailureCleansFrameDir(t *testing.T) {
	sess := newFakeSession()
	sess.onNav = func(s *fakeSession) {
		s.frames <- frame(1)
		s.frames <- frame(2)
		time.Sleep(10 * time.Millisecond)
		close(s.loaded)
	}
	fs := &failingFs{Fs: afero.NewMemMapFs(), failAt: 2}
	store := storage.NewFrameStore(fs, "images", "png")

	_, err := newCollector(&fakeBrowser{sess: sess}, store).Run(context.Background(), request)
	assert.ErrorIs(t, err, model.ErrPersist)

	exists, err := afero.Exists(fs, "images/"+model.FrameName(frame(1).TimestampMS(), "home", "png"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunSameTimestampFramesAllPersisted(t *testing.T) {
	sess := newFakeSession()
	sess.onNav = func(s *fakeSession) {
		for i, ts := range []float64{1.0, 1.0, 1.2} {
			s.frames <- model.Frame{Data: []byte{byte(i)}, Timestamp: ts, SessionID: i + 1}
		}
		time.Sleep(10 * time.Millisecond)
		close(s.loaded)
	}
	fs := afero.NewMemMapFs()
	store := storage.NewFrameStore(fs, "images", "png")

	res, err := newCollector(&fakeBrowser{sess: sess}, store).Run(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Frames)
	assert.Len(t, res.Files, 3)

	entries, err := afero.ReadDir(fs, "images")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRunStreamClosedBeforeLoad(t *testing.T) {
	sess := newFakeSession()
	sess.onNav = func(s *fakeSession) { close(s.frames) }
	b := &fakeBrowser{sess: sess}

	_, err := newCollector(b, &memWriter{}).Run(context.Background(), request)
	assert.ErrorIs(t, err, model.ErrConnection)
	assert.Equal(t, 1, b.stops)
}

func TestRunCanceled(t *testing.T) {
	sess := newFakeSession()
	ctx, cancel := context.WithCancel(context.Background())
	sess.onNav = func(*fakeSession) { cancel() }

	_, err := newCollector(&fakeBrowser{sess: sess}, &memWriter{}).Run(ctx, request)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDrain(t *testing.T) {
	ch := make(chan model.Frame, 3)
	ch <- frame(1)
	ch <- frame(2)
	assert.Len(t, drain(ch), 2)
	assert.Empty(t, drain(ch))
	assert.Nil(t, drain(nil))
}
