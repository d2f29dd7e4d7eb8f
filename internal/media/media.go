// Package media wraps the FFmpeg binary and the shared temp
// directory. Conversion is a blocking exec call; callers run it off
// the event path.
package media

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Workspace manages temp files under the directory both processes
// share by path convention. Files are keyed by the platform file id so
// concurrent downloads never collide.
type Workspace struct {
	dir string
}

// NewWorkspace prepares the temp directory.
func NewWorkspace(dir string) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Path returns a temp path for the given platform file id and
// extension. An empty id gets a random one.
func (w *Workspace) Path(fileID, ext string) string {
	if fileID == "" {
		fileID = uuid.NewString()
	}
	// File ids are long and occasionally carry path-hostile runes.
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, fileID)
	return filepath.Join(w.dir, safe+ext)
}

// Cleanup removes a temp file with best-effort retries: 3 attempts,
// 1 s apart, because the file may still be held by an in-flight
// upload.
func (w *Workspace) Cleanup(path string) {
	if path == "" {
		return
	}
	for attempt := 0; attempt < 3; attempt++ {
		err := os.Remove(path)
		if err == nil || os.IsNotExist(err) {
			return
		}
		log.Printf("media: failed to remove %s (attempt %d): %v", path, attempt+1, err)
		time.Sleep(time.Second)
	}
}

// ExtractAudio converts a voice/video file to a 16 kHz mono mp3 that
// every transcription endpoint accepts. A non-zero FFmpeg exit
// surfaces as "conversion failed"; the caller shows a short message.
func ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-b:a", "64k",
		outputPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		log.Printf("ffmpeg: %s", lastLines(string(out), 5))
		return fmt.Errorf("conversion failed: %w", err)
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
