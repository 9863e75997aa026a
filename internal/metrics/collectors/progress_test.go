package collectors

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/smazurov/tracknode/internal/metrics"
)

func skipOnMacOS(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("Unix socket path too long on macOS")
	}
}

func dialCollector(t *testing.T, socketPath string) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("failed to connect to socket: %v", err)
	}
	return conn
}

func waitForStats(session string, ok func(*metrics.EncoderStats) bool) *metrics.EncoderStats {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if m := metrics.GetEncoderStats(session); m != nil && ok(m) {
			return m
		}
		time.Sleep(5 * time.Millisecond)
	}
	return metrics.GetEncoderStats(session)
}

func TestProgressCollectorParsesBlock(t *testing.T) {
	skipOnMacOS(t)
	socketPath := filepath.Join(t.TempDir(), "progress.sock")
	session := "test-progress"
	metrics.DeleteEncoderMetrics(session)

	collector := NewProgressCollector(socketPath, session)
	if err := collector.Start(t.Context()); err != nil {
		t.Fatalf("failed to start collector: %v", err)
	}
	defer collector.Stop()

	conn := dialCollector(t, socketPath)
	defer conn.Close()

	progress := "frame=120\nfps=29.97\ndrop_frames=3\ndup_frames=1\nspeed=1.25x\nprogress=continue\n"
	if _, err := conn.Write([]byte(progress)); err != nil {
		t.Fatal(err)
	}

	m := waitForStats(session, func(m *metrics.EncoderStats) bool { return m.Speed == 1.25 })
	if m == nil {
		t.Fatal("expected metrics to be set")
	}
	if m.FPS != 29.97 || m.DroppedFrames != 3 || m.DuplicateFrames != 1 || m.Speed != 1.25 {
		t.Errorf("stats = %+v", m)
	}
}

func TestProgressCollectorMultipleBlocks(t *testing.T) {
	skipOnMacOS(t)
	socketPath := filepath.Join(t.TempDir(), "progress2.sock")
	session := "test-progress-multi"
	metrics.DeleteEncoderMetrics(session)

	collector := NewProgressCollector(socketPath, session)
	if err := collector.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	defer collector.Stop()

	conn := dialCollector(t, socketPath)
	defer conn.Close()

	if _, err := conn.Write([]byte("fps=30\nprogress=continue\n")); err != nil {
		t.Fatal(err)
	}
	if m := waitForStats(session, func(m *metrics.EncoderStats) bool { return m.FPS == 30 }); m == nil || m.FPS != 30 {
		t.Errorf("first block: %+v", m)
	}

	if _, err := conn.Write([]byte("fps=60\nprogress=end\n")); err != nil {
		t.Fatal(err)
	}
	if m := waitForStats(session, func(m *metrics.EncoderStats) bool { return m.FPS == 60 }); m == nil || m.FPS != 60 {
		t.Errorf("second block: %+v", m)
	}
}

func TestProgressCollectorIncompleteBlockIgnored(t *testing.T) {
	skipOnMacOS(t)
	socketPath := filepath.Join(t.TempDir(), "progress3.sock")
	session := "test-progress-partial"
	metrics.DeleteEncoderMetrics(session)

	collector := NewProgressCollector(socketPath, session)
	if err := collector.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	defer collector.Stop()

	conn := dialCollector(t, socketPath)
	defer conn.Close()

	if _, err := conn.Write([]byte("fps=30\n")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if m := metrics.GetEncoderStats(session); m != nil {
		t.Errorf("block without progress= should not be recorded, got %+v", m)
	}
}

func TestProgressCollectorStopCleansUp(t *testing.T) {
	skipOnMacOS(t)
	socketPath := filepath.Join(t.TempDir(), "progress4.sock")
	session := "test-progress-stop"

	collector := NewProgressCollector(socketPath, session)
	if err := collector.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	metrics.SetEncoderFPS(session, 30)

	if err := collector.Stop(); err != nil {
		t.Errorf("Stop returned error: %v", err)
	}
	if m := metrics.GetEncoderStats(session); m != nil {
		t.Error("expected metrics to be deleted after stop")
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("expected socket file to be removed")
	}
	if err := collector.Stop(); err != nil {
		t.Errorf("second Stop returned error: %v", err)
	}
}

func TestProgressCollectorReplacesStaleSocket(t *testing.T) {
	skipOnMacOS(t)
	socketPath := filepath.Join(t.TempDir(), "progress5.sock")
	if err := os.WriteFile(socketPath, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	collector := NewProgressCollector(socketPath, "test-progress-stale")
	if err := collector.Start(t.Context()); err != nil {
		t.Fatalf("Start should replace stale socket: %v", err)
	}
	defer collector.Stop()

	if collector.URL() != "unix://"+socketPath {
		t.Errorf("URL = %q", collector.URL())
	}
}
