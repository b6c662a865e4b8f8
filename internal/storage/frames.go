package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"framecast/pkg/model"

	"github.com/spf13/afero"
)

// 同一时间戳的帧按 0.001ms 递增改名，前缀保持为数字
const (
	collisionStep     = 0.001
	maxNameCollisions = 1000
)

// FrameStore 帧文件存储，每帧一个文件：<毫秒时间戳>_<标识>.<格式>
type FrameStore struct {
	fs     afero.Fs
	dir    string
	format string
}

// NewFrameStore 创建帧存储
func NewFrameStore(fs afero.Fs, dir, format string) *FrameStore {
	return &FrameStore{fs: fs, dir: dir, format: format}
}

// Dir 帧目录
func (s *FrameStore) Dir() string { return s.dir }

// Write 写入一帧，返回文件路径。已存在的文件不会被覆盖。
func (s *FrameStore) Write(f model.Frame, identifier string) (string, error) {
	if err := model.ValidateIdentifier(identifier); err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create frame dir: %w", err)
	}

	ts := f.TimestampMS()
	for i := 0; i < maxNameCollisions; i++ {
		path := filepath.Join(s.dir, model.FrameName(ts+float64(i)*collisionStep, identifier, s.format))
		file, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("write frame %s: %w", path, err)
		}
		_, err = file.Write(f.Data)
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = s.fs.Remove(path)
			return "", fmt.Errorf("write frame %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("write frame at %.3f: %d names already taken", ts, maxNameCollisions)
}

// Remove 删除已写入的帧文件
func (s *FrameStore) Remove(path string) error {
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove frame %s: %w", path, err)
	}
	return nil
}
