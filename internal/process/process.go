package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/framescale/internal/logging"
)

// Exit codes reported when the process did not exit on its own.
const (
	ExitStartFailed = 1
	ExitKilled      = 137 // 128 + SIGKILL
)

// Default shutdown timeouts.
const (
	DefaultGracefulTimeout = 5 * time.Second
	DefaultKillTimeout     = 5 * time.Second
)

// ErrEmptyCommand is returned when Options.Args is empty.
var ErrEmptyCommand = errors.New("empty command")

// Options describes a subprocess to spawn.
type Options struct {
	Name string   // used in logs, e.g. "decoder"
	Args []string // argv, Args[0] is resolved through PATH
	Env  []string // appended to the parent environment

	Stdin  bool // expose a writable stdin pipe
	Stdout bool // expose a readable stdout pipe

	Logger       logging.Logger // lifecycle messages
	OutputLogger logging.Logger // stderr lines (nil = Logger)
	LogParser    LogParser      // leveling of stderr lines (nil = info)
	Output       OutputHandler  // optional tap on every stderr line
	Quiet        bool           // lifecycle messages at debug instead of info

	GracefulTimeout time.Duration // SIGINT to kill, 0 = DefaultGracefulTimeout
	KillTimeout     time.Duration // kill to giving up, 0 = DefaultKillTimeout
}

// Process is a started subprocess that owns its pipes and stderr relay.
type Process struct {
	name   string
	cmd    *exec.Cmd
	logger logging.Logger
	relay  *Relay
	quiet  bool

	stdin  io.WriteCloser
	stdout *os.File

	gracefulTimeout time.Duration
	killTimeout     time.Duration

	done    chan struct{}
	waitErr error

	stateMu sync.RWMutex
	state   State
}

// Start spawns the subprocess described by opts.
func Start(opts Options) (*Process, error) {
	if len(opts.Args) == 0 {
		return nil, ErrEmptyCommand
	}

	p := &Process{
		name:            opts.Name,
		logger:          opts.Logger,
		quiet:           opts.Quiet,
		gracefulTimeout: opts.GracefulTimeout,
		killTimeout:     opts.KillTimeout,
		done:            make(chan struct{}),
		state:           StateStarting,
	}
	if p.gracefulTimeout <= 0 {
		p.gracefulTimeout = DefaultGracefulTimeout
	}
	if p.killTimeout <= 0 {
		p.killTimeout = DefaultKillTimeout
	}

	p.cmd = exec.Command(opts.Args[0], opts.Args[1:]...)
	// Own process group so a terminal Ctrl-C reaches us, not the child
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if len(opts.Env) > 0 {
		p.cmd.Env = append(os.Environ(), opts.Env...)
	}

	if opts.Stdin {
		stdin, err := p.cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("%s stdin pipe: %w", opts.Name, err)
		}
		p.stdin = stdin
	}

	// The stdout pipe is created by hand so Wait never closes the read end
	// while buffered frames are still unread.
	var stdoutWriter *os.File
	if opts.Stdout {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("%s stdout pipe: %w", opts.Name, err)
		}
		p.stdout, stdoutWriter = r, w
		p.cmd.Stdout = w
	}

	outputLogger := opts.OutputLogger
	if outputLogger == nil {
		outputLogger = opts.Logger
	}
	p.relay = NewRelay("stderr", outputLogger, opts.LogParser, opts.Output)
	p.cmd.Stderr = p.relay.Writer()
	p.relay.Start()

	if err := p.cmd.Start(); err != nil {
		p.relay.Stop()
		p.relay.Join()
		if p.stdout != nil {
			p.stdout.Close()
			stdoutWriter.Close()
		}
		p.setState(StateError)
		return nil, fmt.Errorf("start %s: %w", opts.Name, err)
	}
	if stdoutWriter != nil {
		stdoutWriter.Close()
	}

	p.setState(StateRunning)
	p.lifecycle("Process started", "name", p.name, "pid", p.cmd.Process.Pid)

	go func() {
		p.waitErr = p.cmd.Wait()
		p.relay.Stop()
		p.relay.Join()
		p.setState(StateStopped)
		close(p.done)
	}()

	return p, nil
}

func (p *Process) lifecycle(msg string, args ...any) {
	if p.quiet {
		p.logger.Debug(msg, args...)
		return
	}
	p.logger.Info(msg, args...)
}

// Stdin returns the write end of the child's stdin, or nil.
func (p *Process) Stdin() io.WriteCloser {
	return p.stdin
}

// Stdout returns the read end of the child's stdout, or nil.
func (p *Process) Stdout() io.Reader {
	if p.stdout == nil {
		return nil
	}
	return p.stdout
}

// PID returns the child's process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

func (p *Process) setState(s State) {
	p.stateMu.Lock()
	p.state = s
	p.stateMu.Unlock()
}

// Done is closed once the child has exited and its stderr is drained.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the child has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// CloseInput closes the child's stdin, signalling end of input.
func (p *Process) CloseInput() error {
	if p.stdin == nil {
		return nil
	}
	return p.stdin.Close()
}

// CloseOutput closes our end of the child's stdout. A child still writing
// gets EPIPE.
func (p *Process) CloseOutput() error {
	if p.stdout == nil {
		return nil
	}
	return p.stdout.Close()
}

// Interrupt sends SIGINT without waiting.
func (p *Process) Interrupt() {
	if p.Exited() {
		return
	}
	p.setState(StateStopping)
	p.lifecycle("Sending SIGINT to process", "name", p.name, "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

// Wait blocks until the child exits on its own and returns its exit code.
func (p *Process) Wait() int {
	<-p.done
	return p.exitCode()
}

// Stop interrupts the child and waits for it, force-killing after the
// graceful timeout. Safe to call after the child has exited.
func (p *Process) Stop() int {
	if p.Exited() {
		return p.exitCode()
	}
	p.Interrupt()
	return p.waitForExit(p.gracefulTimeout)
}

// waitForExit waits for the process to exit with a timeout, force-killing if needed.
func (p *Process) waitForExit(timeout time.Duration) int {
	select {
	case <-p.done:
		return p.exitCode()
	case <-time.After(timeout):
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "name", p.name, "timeout", timeout)
		if err := p.cmd.Process.Kill(); err != nil {
			// "os: process already finished" is OK - process exited between timeout and kill
			if !errors.Is(err, os.ErrProcessDone) {
				p.logger.Error("Failed to kill process", "error", err)
			}
		}
		select {
		case <-p.done:
		case <-time.After(p.killTimeout):
			p.logger.Error("Process did not exit after kill signal", "name", p.name)
		}
		return ExitKilled
	}
}

func (p *Process) exitCode() int {
	code := exitCodeFromError(p.waitErr)
	if p.waitErr != nil && code == ExitStartFailed {
		var exitErr *exec.ExitError
		if !errors.As(p.waitErr, &exitErr) {
			p.logger.Error("Process exited with error", "name", p.name, "error", p.waitErr)
		}
	}
	return code
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
// A child terminated by a signal reports 128 + signal.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return ExitStartFailed
}
