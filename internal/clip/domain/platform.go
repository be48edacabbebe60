package domain

import (
	"net/url"
	"strings"
)

type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

var platformHosts = map[string]Platform{
	"youtube.com":       PlatformYouTube,
	"www.youtube.com":   PlatformYouTube,
	"m.youtube.com":     PlatformYouTube,
	"music.youtube.com": PlatformYouTube,
	"youtu.be":          PlatformYouTube,
	"tiktok.com":        PlatformTikTok,
	"www.tiktok.com":    PlatformTikTok,
	"m.tiktok.com":      PlatformTikTok,
	"vm.tiktok.com":     PlatformTikTok,
	"vt.tiktok.com":     PlatformTikTok,
	"instagram.com":     PlatformInstagram,
	"www.instagram.com": PlatformInstagram,
}

// SupportedPlatforms lists every platform the accrual engine can poll.
func SupportedPlatforms() []Platform {
	return []Platform{PlatformYouTube, PlatformTikTok, PlatformInstagram}
}

// ParsePlatform validates a platform name.
func ParsePlatform(value string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(value)))
	for _, supported := range SupportedPlatforms() {
		if p == supported {
			return p, true
		}
	}
	return "", false
}

// ClassifyPlatform maps a video link to its hosting platform.
func ClassifyPlatform(rawURL string) (Platform, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", ErrUnsupportedPlatform
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return "", ErrUnsupportedPlatform
	}
	host := strings.ToLower(parsed.Hostname())
	if platform, ok := platformHosts[host]; ok {
		return platform, nil
	}
	return "", ErrUnsupportedPlatform
}

// Share and tracking parameters the platforms append to copied links. They
// never change which video a link points to.
var trackingParams = map[string]bool{
	"si":             true,
	"feature":        true,
	"pp":             true,
	"igshid":         true,
	"igsh":           true,
	"is_from_webapp": true,
	"sender_device":  true,
	"share_app_id":   true,
	"share_item_id":  true,
	"_r":             true,
	"_t":             true,
	"fbclid":         true,
	"gclid":          true,
}

// NormalizeURL returns the form used for duplicate detection and caching.
func NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	parsed.RawQuery = stripTracking(parsed.Query()).Encode()
	parsed.ForceQuery = false
	return parsed.String()
}

func stripTracking(values url.Values) url.Values {
	for key := range values {
		lower := strings.ToLower(key)
		if trackingParams[lower] || strings.HasPrefix(lower, "utm_") {
			values.Del(key)
		}
	}
	return values
}
