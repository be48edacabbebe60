package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// YTDLP shells out to yt-dlp, which understands every supported platform.
type YTDLP struct {
	path string
}

func NewYTDLP(path string) *YTDLP {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "yt-dlp"
	}
	return &YTDLP{path: path}
}

func (y *YTDLP) Name() string { return "ytdlp" }

func (y *YTDLP) FetchVideoStats(ctx context.Context, url string) (*Stats, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, y.path, "--dump-single-json", "--skip-download", "--no-warnings", url)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: yt-dlp: %v: %s", ErrUnavailable, err, strings.TrimSpace(stderr.String()))
	}
	return decodeVideoInfo(stdout.Bytes())
}

func decodeVideoInfo(data []byte) (*Stats, error) {
	var info videoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: decode video info: %v", ErrUnavailable, err)
	}
	return info.toStats(), nil
}
