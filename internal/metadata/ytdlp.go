package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// YTDLP fetches metadata using the yt-dlp CLI tool.
type YTDLP struct {
	Binary  string
	Args    []string
	Run     CommandRunner
	Timeout time.Duration
}

// NewYTDLP constructs a Provider that shells out to yt-dlp.
func NewYTDLP(binary string, timeout time.Duration) *YTDLP {
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YTDLP{
		Binary:  binary,
		Args:    []string{"--dump-single-json", "--no-warnings", "--no-playlist", "--skip-download"},
		Run:     defaultCommandRunner,
		Timeout: timeout,
	}
}

type ytdlpThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type ytdlpPayload struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Thumbnail   string           `json:"thumbnail"`
	Thumbnails  []ytdlpThumbnail `json:"thumbnails"`
	Uploader    string           `json:"uploader"`
	Duration    float64          `json:"duration"`
}

// Lookup executes yt-dlp for the provided URL and parses the JSON response.
func (p *YTDLP) Lookup(ctx context.Context, url string) (Metadata, error) {
	if p == nil {
		return Metadata{}, ErrProviderUnavailable
	}
	if !IsHTTPURL(url) {
		return Metadata{}, ErrUnsupportedURL
	}
	if p.Run == nil {
		p.Run = defaultCommandRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	// "--" keeps yt-dlp from reading the URL as an option.
	args := append([]string{}, p.Args...)
	args = append(args, "--", strings.TrimSpace(url))

	out, err := p.Run(execCtx, p.Binary, args...)
	if err != nil {
		return Metadata{}, fmt.Errorf("yt-dlp lookup: %w", err)
	}

	var payload ytdlpPayload
	if err := json.Unmarshal(out, &payload); err != nil {
		return Metadata{}, fmt.Errorf("parse yt-dlp response: %w", err)
	}

	meta := Metadata{
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		Thumbnail:   payload.Thumbnail,
		Uploader:    payload.Uploader,
		Duration:    payload.Duration,
	}
	if meta.Thumbnail == "" {
		meta.Thumbnail = largestThumbnail(payload.Thumbnails)
	}

	if meta.Title == "" && meta.Description == "" && meta.Thumbnail == "" {
		return Metadata{}, ErrEmptyMetadata
	}
	return meta, nil
}

func largestThumbnail(thumbs []ytdlpThumbnail) string {
	best := ""
	area := -1
	for _, t := range thumbs {
		if t.URL == "" {
			continue
		}
		if a := t.Width * t.Height; a > area {
			best, area = t.URL, a
		}
	}
	return best
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.Output()
}
