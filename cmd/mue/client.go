package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"mue/internal/api"
	"mue/internal/config"
)

const (
	serverStartTimeout = 3 * time.Second
	serverStopTimeout  = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
	serverPingTimeout  = 500 * time.Millisecond
)

// withClient runs fn against the server at cfg.APIURL, starting a private
// server for the duration of fn when nothing answers there.
func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)

	local, err := ensureServer(context.Background(), client, cfg)
	if err != nil {
		return err
	}
	if local != nil {
		defer local.stop()
	}
	return fn(client)
}

// localServer is a `mue srv` child process owned by one CLI invocation.
type localServer struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func ensureServer(ctx context.Context, client *api.Client, cfg *config.Config) (*localServer, error) {
	pingCtx, cancel := context.WithTimeout(ctx, serverPingTimeout)
	err := client.Ping(pingCtx)
	cancel()
	if err == nil {
		return nil, nil
	}

	slog.Debug("starting local server", "api_url", cfg.APIURL, "db", cfg.DBPath)
	local, err := startLocalServer(cfg)
	if err != nil {
		return nil, fmt.Errorf("start local server: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, serverStartTimeout)
	defer cancel()
	if err := local.waitReady(waitCtx, client); err != nil {
		local.kill()
		return nil, err
	}
	return local, nil
}

func startLocalServer(cfg *config.Config) (*localServer, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(),
		"MUE_DB="+cfg.DBPath,
		"MUE_API_URL="+cfg.APIURL,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	local := &localServer{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(local.done)
	}()
	return local, nil
}

// waitReady polls until the server answers. A child that exits early, or an
// address held by something that is not refusing connections, fails fast.
func (l *localServer) waitReady(ctx context.Context, client *api.Client) error {
	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		err := client.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if !isConnRefused(err) {
			return err
		}

		select {
		case <-l.done:
			return errors.New("local server exited during startup")
		case <-ctx.Done():
			return errors.New("server did not start in time")
		case <-ticker.C:
		}
	}
}

// stop asks the server to drain and kills it if it does not exit in time.
func (l *localServer) stop() {
	_ = l.cmd.Process.Signal(os.Interrupt)
	select {
	case <-l.done:
	case <-time.After(serverStopTimeout):
		l.kill()
	}
}

func (l *localServer) kill() {
	_ = l.cmd.Process.Kill()
	<-l.done
}

func isConnRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
