// Package daemon runs the devcrew service: agents, the HTTP facade and the
// pid/lock bookkeeping that lets the CLI find and stop it.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"
)

var errNotRunning = errors.New("devcrew is not running")

// shutdownTimeout bounds the HTTP drain on exit. Agents are stopped after it.
const shutdownTimeout = 15 * time.Second

func StartForeground(ctx context.Context, opts StartOptions) error {
	if opts.Home == "" {
		return errors.New("home is required")
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Agent == "" {
		opts.Agent = os.Getenv("AGENT_NAME")
	}

	files := runFilesFor(opts.Home)
	if err := files.ensureDir(); err != nil {
		return err
	}

	lock, err := acquireLock(files.lock)
	if err != nil {
		return err
	}
	defer lock.release()

	stopPprof := startPprof(opts.PprofAddr)
	defer stopPprof()

	svc, err := Boot(ctx, opts)
	if err != nil {
		return err
	}
	// Close runs StopAll before the store goes away.
	defer func() {
		if err := svc.Close(); err != nil {
			svc.Log.Warn("shutdown close", "err", err)
		}
	}()

	addr := svc.App.Server.Addr
	if err := checkAddrAvailable(addr); err != nil {
		return err
	}

	if err := files.record(os.Getpid(), addr); err != nil {
		return err
	}
	defer files.clear()

	if err := svc.StartAgents(ctx, opts.Agent); err != nil {
		return err
	}

	svc.Log.Info("daemon starting", "addr", addr, "home", opts.Home, "agents", svc.Runner.RunningNames())
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.App.Server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		svc.Log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = svc.App.Server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func StartBackground(ctx context.Context, opts StartOptions) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}
	files := runFilesFor(opts.Home)
	if err := files.ensureDir(); err != nil {
		return 0, err
	}

	// Best-effort: refuse to start if already running.
	if st, _ := Status(ctx, opts.Home); st.Running {
		return 0, fmt.Errorf("devcrew already running (pid %d)", st.PID)
	}

	stderr, err := os.OpenFile(files.log, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	// Kept open for child lifetime; closing here may break writes on some platforms.

	args := []string{"daemon", "--home", opts.Home}
	if opts.Port != 0 {
		args = append(args, "--port", strconv.Itoa(opts.Port))
	}
	if opts.Addr != "" {
		args = append(args, "--addr", opts.Addr)
	}
	if opts.ConfigPath != "" {
		args = append(args, "--config", opts.ConfigPath)
	}
	if opts.Agent != "" {
		args = append(args, "--agent", opts.Agent)
	}
	if opts.Dev {
		args = append(args, "--dev")
	}
	if opts.EnableOtel {
		args = append(args, "--otel")
	}
	if opts.PprofAddr != "" {
		args = append(args, "--pprof", opts.PprofAddr)
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	setDaemonSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	// Wait briefly for pid file to appear or process to die.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := Status(ctx, opts.Home); st.Running {
			return st.PID, nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Fallback to started pid even if status isn't ready yet.
	return cmd.Process.Pid, nil
}

// Stop signals the daemon and waits for it to exit, killing it after the
// shutdown timeout. It reports whether a daemon was running.
func Stop(ctx context.Context, home string) (bool, error) {
	st, err := Status(ctx, home)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return false, nil
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return false, errNotRunning
	}
	if err := signalTerm(proc); err != nil {
		return false, err
	}

	deadline := time.Now().Add(shutdownTimeout)
	for time.Now().Before(deadline) {
		if st2, _ := Status(ctx, home); !st2.Running {
			return true, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	_ = proc.Kill()
	return true, nil
}

func Status(ctx context.Context, home string) (StatusInfo, error) {
	files := runFilesFor(home)
	pid := files.readPID()
	if pid == 0 {
		return StatusInfo{Running: false}, nil
	}
	if !processExists(pid) {
		files.clear()
		return StatusInfo{Running: false}, nil
	}

	addr := files.readAddr()
	if addr == "" {
		addr = "unknown"
	}
	return StatusInfo{Running: true, PID: pid, Addr: addr}, nil
}

// ClientURL turns a recorded listen address into a base URL a local client can dial.
func ClientURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func checkAddrAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use", addr)
	}
	_ = ln.Close()
	return nil
}
