package enrichment

import (
	ua "github.com/mileusna/useragent"
)

// UserAgentInfo holds what could be parsed out of a User-Agent header.
// Fields the parser could not resolve stay nil and are never stored.
type UserAgentInfo struct {
	Platform *string // OS name, e.g. "iOS"
	Browser  *string // browser name, e.g. "Safari"
	Device   *string // "mobile", "tablet", "desktop" or "bot"
	OS       *string // OS version, e.g. "17.4"
}

// ParseUserAgent extracts platform, browser, device and OS version from a
// raw User-Agent string.
func ParseUserAgent(uaString string) UserAgentInfo {
	if uaString == "" {
		return UserAgentInfo{}
	}

	parsed := ua.Parse(uaString)

	var info UserAgentInfo
	if parsed.OS != "" {
		info.Platform = &parsed.OS
	}
	if parsed.OSVersion != "" {
		info.OS = &parsed.OSVersion
	}
	if parsed.Name != "" {
		info.Browser = &parsed.Name
	}
	if device := deviceType(parsed); device != "" {
		info.Device = &device
	}
	return info
}

func deviceType(parsed ua.UserAgent) string {
	switch {
	case parsed.Bot:
		return "bot"
	case parsed.Tablet:
		return "tablet"
	case parsed.Mobile:
		return "mobile"
	case parsed.Desktop:
		return "desktop"
	}
	return ""
}
