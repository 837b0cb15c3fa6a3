package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
)

// Process is a handle to one spawned worker process.
type Process interface {
	PID() int
	Signal(sig os.Signal) error
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	// ExitCode is valid only after Done is closed.
	ExitCode() int
}

// Launcher spawns worker processes. The production implementation re-execs
// this binary's hidden worker subcommand; tests inject an in-process fake.
type Launcher interface {
	Launch(ctx context.Context, index int, runID string, restartCount int) (Process, error)
}

// ExecLauncher launches workers as child OS processes of the supervisor.
// Workers are told only their index and run id; they re-derive their
// assignment from the shared roster, so nothing is transmitted over IPC.
type ExecLauncher struct {
	// ConfigFile is forwarded to the worker so both sides load identical
	// configuration. Empty means the worker uses the default search paths.
	ConfigFile string
}

// Launch starts one worker process and reaps it in the background.
func (l *ExecLauncher) Launch(ctx context.Context, index int, runID string, restartCount int) (Process, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve own executable: %w", err)
	}
	args := []string{
		"worker",
		"--index", strconv.Itoa(index),
		"--run-id", runID,
		"--restarts", strconv.Itoa(restartCount),
	}
	if l.ConfigFile != "" {
		args = append(args, "--config", l.ConfigFile)
	}
	cmd := exec.CommandContext(ctx, self, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// The worker must outlive a supervisor SIGINT long enough to finish
	// its in-flight unit, so it gets its own process group and is stopped
	// explicitly via Signal.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %d: %w", index, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go p.reap()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu       sync.Mutex
	exitCode int
}

func (p *execProcess) reap() {
	err := p.cmd.Wait()
	code := 0
	if err != nil {
		code = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
	}
	p.mu.Lock()
	p.exitCode = code
	p.mu.Unlock()
	close(p.done)
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// pidAlive reports whether a process with the given pid exists. Signal 0
// probes existence without delivering anything.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
