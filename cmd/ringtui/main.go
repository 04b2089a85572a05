package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/ringcore/internal/lock"
	"github.com/matheus3301/ringcore/internal/session"
	"github.com/matheus3301/ringcore/internal/tui"
	"github.com/matheus3301/ringcore/internal/tui/client"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profile := session.Resolve(*profileFlag)
	if err := session.ValidateName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	socketPath := session.SocketPath(profile)

	// Probe the engine host; auto-start if needed. A host that holds the
	// profile lock but does not answer yet is still starting.
	if !probeHost(socketPath) {
		if h, err := lock.Inspect(session.Dir(profile)); err == nil {
			fmt.Fprintf(os.Stderr, "waiting for ringcored (PID %d)...\n", h.PID)
		} else {
			fmt.Fprintf(os.Stderr, "ringcored not running for profile %q, starting...\n", profile)
			if err := startHost(profile); err != nil {
				fmt.Fprintf(os.Stderr, "failed to start ringcored: %v\n", err)
				os.Exit(1)
			}
		}
		if !waitForHost(socketPath, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "ringcored did not become ready\n")
			os.Exit(1)
		}
	}

	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to ringcored: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	app := tui.NewApp(c, profile)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeHost checks that a host answers GetStatus on the socket.
func probeHost(socketPath string) bool {
	c, err := client.New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.Account(ctx, "GetStatus", nil)
	return err == nil
}

func startHost(profile string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	bin := filepath.Join(filepath.Dir(executable), "ringcored")
	if _, err := os.Stat(bin); err != nil {
		bin = "ringcored"
	}

	cmd := exec.Command(bin, "--profile", profile)
	// Inherit stderr so startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// waitForHost polls with a real RPC, not just a socket connect.
func waitForHost(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeHost(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
