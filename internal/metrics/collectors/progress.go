// Package collectors gathers encoder progress reports into metrics.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/tracknode/internal/logging"
	"github.com/smazurov/tracknode/internal/metrics"
)

// ProgressCollector listens on a Unix socket for the key=value blocks ffmpeg
// writes with -progress and turns each block into encoder metrics.
type ProgressCollector struct {
	logger     *slog.Logger
	socketPath string
	session    string
	listener   net.Listener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// NewProgressCollector creates a collector for session at socketPath.
func NewProgressCollector(socketPath, session string) *ProgressCollector {
	return &ProgressCollector{
		logger:     logging.GetLogger("encoder").With("session", session),
		socketPath: socketPath,
		session:    session,
	}
}

// URL is the value to pass to ffmpeg's -progress option.
func (p *ProgressCollector) URL() string {
	return "unix://" + p.socketPath
}

// Start binds the socket and begins accepting reports.
func (p *ProgressCollector) Start(ctx context.Context) error {
	if err := os.Remove(p.socketPath); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("Failed to clean up old socket file", "error", err)
	}

	listener, err := net.Listen("unix", p.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", p.socketPath, err)
	}
	p.listener = listener

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.accept(ctx)

	p.logger.Debug("Progress collector listening", "socket", p.socketPath)
	return nil
}

// Stop closes the socket, waits for readers and drops the session metrics.
func (p *ProgressCollector) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		if p.listener != nil {
			err = p.listener.Close()
		}
		p.wg.Wait()
		if rmErr := os.Remove(p.socketPath); rmErr != nil && !os.IsNotExist(rmErr) {
			err = errors.Join(err, rmErr)
		}
		metrics.DeleteEncoderMetrics(p.session)
	})
	return err
}

func (p *ProgressCollector) accept(ctx context.Context) {
	defer p.wg.Done()

	var conns sync.WaitGroup
	defer conns.Wait()

	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			p.logger.Warn("Error accepting progress connection", "error", err)
			continue
		}

		conns.Add(1)
		go func() {
			defer conns.Done()
			p.read(ctx, conn)
		}()
	}
}

func (p *ProgressCollector) read(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	block := make(map[string]string)

	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		block[key] = strings.TrimSpace(value)

		// "progress" terminates every block
		if key == "progress" {
			p.record(block)
			block = make(map[string]string)
		}
	}
}

func (p *ProgressCollector) record(data map[string]string) {
	if fps, err := strconv.ParseFloat(data["fps"], 64); err == nil {
		metrics.SetEncoderFPS(p.session, fps)
	}
	if dropped, err := strconv.ParseFloat(data["drop_frames"], 64); err == nil {
		metrics.SetEncoderDroppedFrames(p.session, dropped)
	}
	if dup, err := strconv.ParseFloat(data["dup_frames"], 64); err == nil {
		metrics.SetEncoderDuplicateFrames(p.session, dup)
	}
	speed := strings.TrimSpace(strings.TrimSuffix(data["speed"], "x"))
	if v, err := strconv.ParseFloat(speed, 64); err == nil {
		metrics.SetEncoderSpeed(p.session, v)
	}
}
