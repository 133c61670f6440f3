// Package ytdlp downloads media by running the yt-dlp command line tool.
package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"multitool/internal/core"
	"multitool/internal/services"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"
	outputTemplate = "%(title)s.%(ext)s"
)

// runner executes a command and returns its stdout.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

type Downloader struct {
	binary  string
	cookies string
	http    *http.Client
	run     runner
}

var _ services.MediaDownloader = (*Downloader)(nil)

// New returns a downloader using the yt-dlp executable at binary (looked up
// on PATH when not absolute). cookies is an optional Netscape cookies file;
// it is passed only if it exists.
func New(binary, cookies string, client *http.Client) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{binary: binary, cookies: cookies, http: client, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}

// CheckReachable fetches url and fails on transport errors or an error
// status.
func (d *Downloader) CheckReachable(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// Download runs yt-dlp into dir and returns the final file path.
func (d *Downloader) Download(ctx context.Context, url string, format core.MediaFormat, dir string) (string, error) {
	out, err := d.run(ctx, d.binary, d.args(url, format, dir)...)
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	path := lastLine(out)
	if path == "" {
		return "", errors.New("yt-dlp: no output file reported")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("yt-dlp: output file: %w", err)
	}
	return path, nil
}

func (d *Downloader) args(url string, format core.MediaFormat, dir string) []string {
	args := []string{
		"--output", filepath.Join(dir, outputTemplate),
		"--no-playlist",
		"--retries", "10",
		"--fragment-retries", "10",
		"--concurrent-fragments", "4",
		"--no-warnings",
		"--force-ipv4",
		"--user-agent", userAgent,
		"--add-header", "Referer:https://www.youtube.com/",
		"--add-header", "Accept-Language:ja,en-US;q=0.9,en;q=0.8",
		"--sleep-interval", "1",
		"--max-sleep-interval", "2",
		"--throttled-rate", "1M",
		"--extractor-args", "youtube:player_client=default,-tv_html5,-tv_html5_leanback",
		"--no-simulate",
		"--print", "after_move:filepath",
	}
	if d.cookies != "" {
		if _, err := os.Stat(d.cookies); err == nil {
			args = append(args, "--cookies", d.cookies)
		}
	}

	switch format {
	case core.FormatMP3:
		args = append(args,
			"--format", "bestaudio/best",
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", "0")
	default:
		args = append(args,
			"--format", "bv*+ba/b",
			"--merge-output-format", "mp4")
	}
	return append(args, "--", url)
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
