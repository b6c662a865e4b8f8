package video

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"framecast/internal/logger"
	"framecast/pkg/model"

	"github.com/spf13/afero"
)

// LastFrameDuration 最后一帧的展示时长，固定为 0.1 秒（100ms）。
// 其余帧的时长取相邻时间戳之差（毫秒），两者单位来源不同，并非换算错误。
const LastFrameDuration = 100 * time.Millisecond

type stampedFile struct {
	path string
	ts   float64
}

// Timeline 扫描帧目录，按时间戳升序返回属于 identifier 的帧及其展示时长。
// 文件名前缀（第一个 "_" 之前）为毫秒时间戳，无法解析的文件跳过。
func Timeline(fs afero.Fs, dir, identifier string, log logger.Logger) ([]model.TimedFrame, error) {
	if err := model.ValidateIdentifier(identifier); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", model.ErrNoFramesFound, dir, err)
	}

	marker := "_" + identifier + "."
	files := make([]stampedFile, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.Contains(name, marker) {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		ts, err := strconv.ParseFloat(prefix, 64)
		if err != nil {
			log.Warn("帧文件名无法解析时间戳，已跳过", "file", name)
			continue
		}
		files = append(files, stampedFile{path: filepath.Join(dir, name), ts: ts})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: identifier %q in %s", model.ErrNoFramesFound, identifier, dir)
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].ts < files[j].ts })

	out := make([]model.TimedFrame, len(files))
	for i, f := range files {
		d := LastFrameDuration
		if i+1 < len(files) {
			d = msDuration(files[i+1].ts - f.ts)
		}
		out[i] = model.TimedFrame{Path: f.path, Duration: d}
	}
	return out, nil
}

// Total 时间线总时长
func Total(frames []model.TimedFrame) time.Duration {
	var total time.Duration
	for _, f := range frames {
		total += f.Duration
	}
	return total
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
