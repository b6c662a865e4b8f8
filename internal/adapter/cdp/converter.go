package cdp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"framecast/pkg/model"

	"github.com/mafredri/cdp/protocol/emulation"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/tidwall/gjson"
)

// ToFrame 将 CDP 录屏事件转换为中立的 Frame 模型
func ToFrame(ev *page.ScreencastFrameReply) model.Frame {
	f := model.Frame{
		Data:      ev.Data,
		SessionID: ev.SessionID,
	}
	if ev.Metadata.Timestamp != 0 {
		f.Timestamp = float64(ev.Metadata.Timestamp)
	} else {
		// 部分版本不带时间戳，退回到接收时间
		f.Timestamp = float64(time.Now().UnixNano()) / float64(time.Second)
	}
	return f
}

// ToDeviceMetricsArgs 将设备预设中的 metrics 转换为 setDeviceMetricsOverride 参数
// 键名大小写不敏感（配置加载会统一转为小写）
func ToDeviceMetricsArgs(d model.DeviceProfile) (*emulation.SetDeviceMetricsOverrideArgs, error) {
	raw, err := lowerKeys(d.Metrics)
	if err != nil {
		return nil, err
	}
	width := gjson.GetBytes(raw, "width")
	height := gjson.GetBytes(raw, "height")
	if !width.Exists() || !height.Exists() {
		return nil, fmt.Errorf("device metrics require width and height")
	}
	scale := gjson.GetBytes(raw, "devicescalefactor").Float()
	mobile := gjson.GetBytes(raw, "mobile").Bool()

	args := emulation.NewSetDeviceMetricsOverrideArgs(int(width.Int()), int(height.Int()), scale, mobile)
	if v := gjson.GetBytes(raw, "scale"); v.Exists() {
		args.SetScale(v.Float())
	}
	if v := gjson.GetBytes(raw, "screenwidth"); v.Exists() {
		args.SetScreenWidth(int(v.Int()))
	}
	if v := gjson.GetBytes(raw, "screenheight"); v.Exists() {
		args.SetScreenHeight(int(v.Int()))
	}
	if v := gjson.GetBytes(raw, "positionx"); v.Exists() {
		args.SetPositionX(int(v.Int()))
	}
	if v := gjson.GetBytes(raw, "positiony"); v.Exists() {
		args.SetPositionY(int(v.Int()))
	}
	if v := gjson.GetBytes(raw, "dontsetvisiblesize"); v.Exists() {
		args.SetDontSetVisibleSize(v.Bool())
	}
	return args, nil
}

// ToUserAgentArgs 生成 UA 覆盖参数
func ToUserAgentArgs(d model.DeviceProfile) *emulation.SetUserAgentOverrideArgs {
	return emulation.NewSetUserAgentOverrideArgs(d.UserAgent)
}

// ToNetworkConditionsArgs 生成网络节流参数
func ToNetworkConditionsArgs(n model.NetworkProfile) *network.EmulateNetworkConditionsArgs {
	args := network.NewEmulateNetworkConditionsArgs(n.Offline, n.Latency, n.DownloadThroughput, n.UploadThroughput)
	if n.ConnectionType != "" {
		args.SetConnectionType(network.ConnectionType(strings.ToLower(n.ConnectionType)))
	}
	return args
}

// ToScreencastArgs 生成 startScreencast 参数
func ToScreencastArgs(o model.ScreencastOptions) *page.StartScreencastArgs {
	args := page.NewStartScreencastArgs()
	if o.Format != "" {
		args.SetFormat(o.Format)
	}
	if o.Format == "jpeg" && o.Quality > 0 {
		args.SetQuality(o.Quality)
	}
	if o.EveryNthFrame > 0 {
		args.SetEveryNthFrame(o.EveryNthFrame)
	}
	return args
}

func lowerKeys(m map[string]any) ([]byte, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode device metrics: %w", err)
	}
	return b, nil
}
