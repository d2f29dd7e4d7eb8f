// The orchestrator supervises the two processes that make up the
// assistant: the Helper Client (user-session downloader) and the Main
// Bot. It starts the helper first, waits briefly so the session is
// connected before tasks can be claimed, then starts the bot, and
// restarts either one after a 3 s delay when it exits unexpectedly.
package main

import (
	"context"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/example/assistbot/internal/config"
)

const restartDelay = 3 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if _, err := os.Stat(cfg.SessionFile); err != nil {
		log.Printf("Helper session file %s is missing.", cfg.SessionFile)
		log.Printf("Authorize the helper account first: log in once with an interactive MTProto client")
		log.Printf("using the same API_ID/API_HASH and save the session to %s, then restart.", cfg.SessionFile)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)
		cancel()
	}()

	go supervise(ctx, "helper", binaryPath("HELPER_BIN", "helper"))
	time.Sleep(2 * time.Second)
	go supervise(ctx, "mainbot", binaryPath("MAINBOT_BIN", "mainbot"))

	<-ctx.Done()
	// Children receive the same signal through the process group;
	// give them a moment to close their database handles.
	time.Sleep(time.Second)
	log.Println("Orchestrator stopped")
}

// binaryPath resolves a child binary: an env override, or a sibling
// of the orchestrator executable.
func binaryPath(envVar, name string) string {
	if path := os.Getenv(envVar); path != "" {
		return path
	}
	self, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(self), name)
}

// supervise runs one child in a loop, restarting it after a delay on
// unexpected exit.
func supervise(ctx context.Context, name, path string) {
	for ctx.Err() == nil {
		log.Printf("Starting %s (%s)", name, path)
		cmd := exec.CommandContext(ctx, path)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		err := cmd.Run()
		if ctx.Err() != nil {
			return
		}
		log.Printf("%s exited: %v; restarting in %s", name, err, restartDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}
