package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/tracknode/internal/logging"
)

// ExitKilled is reported when the process had to be force-killed.
const ExitKilled = 137

// stdinGrace is how long a process may take to exit on its own after its
// input is closed, before it is signalled.
const stdinGrace = 100 * time.Millisecond

// LogParser maps an output line onto a log level and message.
type LogParser func(line string) (slog.Level, string)

// Option configures a Pipe before it starts.
type Option func(*Pipe)

// WithStdin connects a writable pipe to the process stdin.
func WithStdin() Option {
	return func(p *Pipe) { p.wantStdin = true }
}

// WithStdout connects a readable pipe to the process stdout. Without it
// stdout is logged like stderr.
func WithStdout() Option {
	return func(p *Pipe) { p.wantStdout = true }
}

// WithLogParser routes process output through logger using parser.
func WithLogParser(logger *slog.Logger, parser LogParser) Option {
	return func(p *Pipe) {
		p.processLogger = logger
		p.logParser = parser
	}
}

// WithTimeouts overrides the graceful and post-kill wait durations.
func WithTimeouts(graceful, kill time.Duration) Option {
	return func(p *Pipe) {
		p.gracefulTimeout = graceful
		p.killTimeout = kill
	}
}

// Pipe is a running subprocess.
type Pipe struct {
	id              string
	cmd             *exec.Cmd
	logger          *slog.Logger
	processLogger   *slog.Logger
	logParser       LogParser
	gracefulTimeout time.Duration
	killTimeout     time.Duration

	wantStdin  bool
	wantStdout bool
	stdin      io.WriteCloser
	stdout     *os.File

	done       chan struct{}
	waitErr    error
	outputDone sync.WaitGroup
	stopOnce   sync.Once
	exitCode   int
}

// Start launches args[0] with the remaining arguments.
func Start(id string, args []string, opts ...Option) (*Pipe, error) {
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}

	p := &Pipe{
		id:              id,
		logger:          logging.GetLogger("process").With("id", id),
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.cmd = exec.Command(args[0], args[1:]...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var err error
	if p.wantStdin {
		if p.stdin, err = p.cmd.StdinPipe(); err != nil {
			return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
		}
	}
	// Media output goes through an os.Pipe so Wait never closes the read
	// end under a consumer that is still draining it.
	var stdout, stdoutWriter *os.File
	var logStdout io.ReadCloser
	if p.wantStdout {
		if stdout, stdoutWriter, err = os.Pipe(); err != nil {
			return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
		}
		p.cmd.Stdout = stdoutWriter
	} else if logStdout, err = p.cmd.StdoutPipe(); err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		if stdout != nil {
			stdout.Close()
			stdoutWriter.Close()
		}
		return nil, fmt.Errorf("failed to start %s: %w", args[0], err)
	}
	p.logger.Info("Process started", "pid", p.cmd.Process.Pid, "command", strings.Join(args, " "))

	if p.wantStdout {
		stdoutWriter.Close()
		p.stdout = stdout
	} else {
		p.outputDone.Add(1)
		go func() {
			defer p.outputDone.Done()
			p.streamOutput(logStdout, "stdout")
		}()
	}
	p.outputDone.Add(1)
	go func() {
		defer p.outputDone.Done()
		p.streamOutput(stderr, "stderr")
	}()

	go func() {
		// Wait closes the pipes, so drain the log streams first.
		p.outputDone.Wait()
		p.waitErr = p.cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

// Stdin is the process input, nil without WithStdin.
func (p *Pipe) Stdin() io.WriteCloser { return p.stdin }

// Stdout is the process output, nil without WithStdout. It reaches EOF
// when the process exits and is closed by Stop.
func (p *Pipe) Stdout() io.Reader {
	if p.stdout == nil {
		return nil
	}
	return p.stdout
}

// Done is closed once the process has exited.
func (p *Pipe) Done() <-chan struct{} { return p.done }

// Pid returns the process id.
func (p *Pipe) Pid() int { return p.cmd.Process.Pid }

// ExitCode waits for the process and returns its exit status.
func (p *Pipe) ExitCode() int {
	<-p.done
	return exitCodeFromError(p.waitErr)
}

// Stop closes stdin, asks the process to exit with SIGINT and waits. It is
// safe to call more than once and returns the same exit code each time.
func (p *Pipe) Stop() int {
	p.stopOnce.Do(func() {
		var grace time.Duration
		if p.stdin != nil {
			p.stdin.Close()
			grace = stdinGrace
		}
		select {
		case <-p.done:
			p.exitCode = exitCodeFromError(p.waitErr)
			return
		case <-time.After(grace):
		}
		p.sendStopSignal()
		p.exitCode = p.waitForExit(p.gracefulTimeout)
	})
	if p.stdout != nil {
		p.stdout.Close()
	}
	return p.exitCode
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Pipe) sendStopSignal() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	p.logger.Debug("Sending SIGINT to process", "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

// waitForExit waits for the process to exit with a timeout, force-killing if needed.
func (p *Pipe) waitForExit(timeout time.Duration) int {
	select {
	case <-p.done:
		return exitCodeFromError(p.waitErr)
	case <-time.After(timeout):
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", timeout)
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Error("Failed to kill process", "error", err)
		}
		select {
		case <-p.done:
		case <-time.After(p.killTimeout):
			p.logger.Error("Process did not exit after kill signal")
		}
		return ExitKilled
	}
}

// streamOutput logs each output line at the level the parser recovers.
func (p *Pipe) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		level, msg := slog.LevelInfo, line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}
		logger.Log(context.Background(), level, msg, "source", source)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}

// ParseCommand splits a command line into arguments. It handles single and
// double quotes and backslash escapes.
func ParseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	runes := []rune(strings.TrimSpace(command))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}
	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}
	return args, nil
}
