// Package daemonctl inspects a daemon process from outside it.
package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"wmclean/internal/config"
	"wmclean/internal/daemon"
	"wmclean/internal/daemonrun"
)

// State describes whether a daemon holds the instance lock.
type State struct {
	Running  bool
	PID      int
	LockPath string
}

// Probe reports whether a daemon currently holds the lock for cfg. It never
// keeps the lock.
func Probe(cfg *config.Config) (State, error) {
	state := State{LockPath: cfg.LockPath()}
	if _, err := os.Stat(state.LockPath); errors.Is(err, os.ErrNotExist) {
		return state, nil
	}

	lock := flock.New(state.LockPath)
	acquired, err := lock.TryLock()
	if err != nil {
		return state, fmt.Errorf("probe daemon lock: %w", err)
	}
	if acquired {
		_ = lock.Unlock()
		return state, nil
	}

	state.Running = true
	state.PID = readPID(filepath.Join(cfg.Paths.StateDir, daemonrun.PIDFileName))
	return state, nil
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// StatusAddr returns the host:port a local client should dial to reach the
// daemon's HTTP endpoint, or "" when cfg disables it. Wildcard listen
// addresses are reached through loopback.
func StatusAddr(cfg *config.Config) string {
	bind := strings.TrimSpace(cfg.Daemon.MetricsBind)
	if bind == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil || port == "" || port == "0" {
		return ""
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

// FetchStatus reads the status snapshot a running daemon serves at addr.
func FetchStatus(ctx context.Context, client *http.Client, addr string) (*daemon.Status, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query daemon status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query daemon status: unexpected status %s", resp.Status)
	}
	var status daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode daemon status: %w", err)
	}
	return &status, nil
}
