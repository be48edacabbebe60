package domain

import (
	"errors"
	"testing"
)

func TestClassifyPlatform(t *testing.T) {
	cases := []struct {
		url  string
		want Platform
		err  error
	}{
		{url: "https://www.youtube.com/shorts/abc123", want: PlatformYouTube},
		{url: "https://youtu.be/abc123", want: PlatformYouTube},
		{url: "http://m.youtube.com/watch?v=abc", want: PlatformYouTube},
		{url: "https://www.tiktok.com/@creator/video/7234", want: PlatformTikTok},
		{url: "https://vm.tiktok.com/ZMabc/", want: PlatformTikTok},
		{url: "https://www.instagram.com/reel/Cxyz/", want: PlatformInstagram},
		{url: "HTTPS://WWW.YOUTUBE.COM/shorts/abc", want: PlatformYouTube},
		{url: "https://vimeo.com/123", err: ErrUnsupportedPlatform},
		{url: "ftp://youtube.com/abc", err: ErrUnsupportedPlatform},
		{url: "youtube.com/shorts/abc", err: ErrUnsupportedPlatform},
		{url: "https://notyoutube.com/abc", err: ErrUnsupportedPlatform},
		{url: "", err: ErrUnsupportedPlatform},
	}

	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			got, err := ClassifyPlatform(tc.url)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestParsePlatform(t *testing.T) {
	if p, ok := ParsePlatform(" TikTok "); !ok || p != PlatformTikTok {
		t.Fatalf("expected tiktok, got %q (%v)", p, ok)
	}
	if _, ok := ParsePlatform("vimeo"); ok {
		t.Fatalf("vimeo should not parse")
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: " https://WWW.TikTok.com/@a/video/1/#comments ", want: "https://www.tiktok.com/@a/video/1"},
		{in: "https://youtube.com/shorts/abc?si=XYZ123", want: "https://youtube.com/shorts/abc"},
		{in: "https://www.youtube.com/watch?v=abc&feature=share&utm_source=tg", want: "https://www.youtube.com/watch?v=abc"},
		{in: "https://www.instagram.com/reel/Cxyz/?igshid=MzRlODBiNWFlZA==", want: "https://www.instagram.com/reel/Cxyz"},
		{in: "https://www.tiktok.com/@a/video/1?is_from_webapp=1&sender_device=pc&_r=1", want: "https://www.tiktok.com/@a/video/1"},
		{in: "https://youtu.be/abc?t=42&SI=x", want: "https://youtu.be/abc?t=42"},
		{in: "https://youtu.be/abc?", want: "https://youtu.be/abc"},
	}
	for _, tc := range cases {
		if got := NormalizeURL(tc.in); got != tc.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
