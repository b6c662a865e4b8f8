package config

import "framecast/pkg/model"

const (
	desktopUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"
	ipadUA    = "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"
)

// DefaultDevices 内置设备预设
func DefaultDevices() map[string]model.DeviceProfile {
	return map[string]model.DeviceProfile{
		"desktop": {UserAgent: desktopUA, Metrics: map[string]any{
			"width": 1920, "height": 1080, "deviceScaleFactor": 1, "mobile": false,
		}},
		"laptop": {UserAgent: desktopUA, Metrics: map[string]any{
			"width": 1366, "height": 768, "deviceScaleFactor": 1, "mobile": false,
		}},
		"iphone": {UserAgent: iphoneUA, Metrics: map[string]any{
			"width": 390, "height": 844, "deviceScaleFactor": 3, "mobile": true,
		}},
		"ipad": {UserAgent: ipadUA, Metrics: map[string]any{
			"width": 820, "height": 1180, "deviceScaleFactor": 2, "mobile": true,
		}},
	}
}

// DefaultNetworks 内置网络预设，取值与 DevTools 节流档位一致
func DefaultNetworks() map[string]model.NetworkProfile {
	kbps := func(v float64) float64 { return v * 1024 / 8 }
	return map[string]model.NetworkProfile{
		"offline":   {Offline: true, DownloadThroughput: 0, UploadThroughput: 0, ConnectionType: "none"},
		"gprs":      {Latency: 500, DownloadThroughput: kbps(50), UploadThroughput: kbps(20), ConnectionType: "cellular2g"},
		"regular2g": {Latency: 300, DownloadThroughput: kbps(250), UploadThroughput: kbps(50), ConnectionType: "cellular2g"},
		"good2g":    {Latency: 150, DownloadThroughput: kbps(450), UploadThroughput: kbps(150), ConnectionType: "cellular2g"},
		"regular3g": {Latency: 100, DownloadThroughput: kbps(750), UploadThroughput: kbps(250), ConnectionType: "cellular3g"},
		"good3g":    {Latency: 40, DownloadThroughput: kbps(1500), UploadThroughput: kbps(750), ConnectionType: "cellular3g"},
		"regular4g": {Latency: 20, DownloadThroughput: kbps(4000), UploadThroughput: kbps(3000), ConnectionType: "cellular4g"},
		"dsl":       {Latency: 5, DownloadThroughput: kbps(2000), UploadThroughput: kbps(1000), ConnectionType: "ethernet"},
		"wifi":      {Latency: 2, DownloadThroughput: kbps(30000), UploadThroughput: kbps(15000), ConnectionType: "wifi"},
		"none":      {Latency: 0, DownloadThroughput: -1, UploadThroughput: -1},
	}
}
