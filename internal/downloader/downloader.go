// Package downloader is the in-process extractor for sites the Main
// Bot can reach itself. It shells out to yt-dlp with a hard size cap;
// the caller owns (and deletes) the resulting file.
package downloader

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxFileSize is the hard cap for direct downloads.
	MaxFileSize = 50 * 1024 * 1024

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Result describes one downloaded file.
type Result struct {
	Path  string
	Type  string // "video" or "document"
	Title string
}

// Downloader fetches single media files into a working directory.
type Downloader struct {
	dir string
}

// New creates a downloader writing into dir.
func New(dir string) *Downloader {
	return &Downloader{dir: dir}
}

// Fetch downloads the URL and returns the file, or nil when the site
// yields nothing usable. The call blocks; run it on a worker.
func (d *Downloader) Fetch(ctx context.Context, url string) (*Result, error) {
	outDir := filepath.Join(d.dir, uuid.NewString())
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--quiet",
		"--no-warnings",
		"--no-playlist",
		"--max-filesize", fmt.Sprintf("%d", MaxFileSize),
		"--user-agent", userAgent,
		"--output", filepath.Join(outDir, "%(title).80s.%(ext)s"),
		url,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		os.RemoveAll(outDir)
		log.Printf("yt-dlp failed for %s: %v: %s", url, err, strings.TrimSpace(string(out)))
		return nil, fmt.Errorf("download failed")
	}

	entries, err := os.ReadDir(outDir)
	if err != nil || len(entries) == 0 {
		os.RemoveAll(outDir)
		return nil, fmt.Errorf("download produced no file")
	}

	name := entries[0].Name()
	path := filepath.Join(outDir, name)
	if info, err := os.Stat(path); err != nil || info.Size() == 0 || info.Size() > MaxFileSize {
		os.RemoveAll(outDir)
		return nil, fmt.Errorf("download exceeded limits")
	}

	return &Result{
		Path:  path,
		Type:  mediaType(name),
		Title: strings.TrimSuffix(name, filepath.Ext(name)),
	}, nil
}

func mediaType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".mkv", ".webm", ".mov":
		return "video"
	default:
		return "document"
	}
}
