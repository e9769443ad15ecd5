package tools

import "strings"

// 从 User-Agent 推导设备展示名与设备类型。
// 只做粗粒度识别：展示名用于"在别处登录"提示，设备类型用于
// 无法从请求头取到 platform 时的旧版 TTL 兜底表。

// DeriveDeviceName 生成 "Chrome on Windows" 这类展示名
func DeriveDeviceName(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return "Unknown Device"
	}
	browser := matchFirst(ua, []uaRule{
		{"Edg", "Edge"},
		{"OPR", "Opera"},
		{"Chrome", "Chrome"},
		{"CriOS", "Chrome"},
		{"Firefox", "Firefox"},
		{"FxiOS", "Firefox"},
		{"Safari", "Safari"},
	}, "Browser")
	os := matchFirst(ua, []uaRule{
		{"Windows", "Windows"},
		{"iPhone", "iPhone"},
		{"iPad", "iPad"},
		{"Android", "Android"},
		{"Mac OS X", "macOS"},
		{"Macintosh", "macOS"},
		{"Linux", "Linux"},
	}, "Unknown OS")
	return browser + " on " + os
}

// DeriveDeviceType mobile / tablet / desktop
func DeriveDeviceType(ua string) string {
	switch {
	case containsAny(ua, "iPad", "Tablet"):
		return "tablet"
	case containsAny(ua, "Mobile", "iPhone", "Android"):
		return "mobile"
	default:
		return "desktop"
	}
}

type uaRule struct {
	needle string
	name   string
}

func matchFirst(ua string, rules []uaRule, def string) string {
	for _, r := range rules {
		if strings.Contains(ua, r.needle) {
			return r.name
		}
	}
	return def
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
