// Package collectors feeds the metrics package from ffmpeg progress reports
// and host resource usage.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/metrics"
)

// SocketPath returns the progress socket used for a stage of the run
// identified by runID.
func SocketPath(dir, runID, stage string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("framescale-%s-%s.sock", runID, stage))
}

// ProgressURL is the value passed to ffmpeg -progress for socketPath.
func ProgressURL(socketPath string) string {
	return "unix://" + socketPath
}

// FFmpegCollector collects FFmpeg progress data via Unix socket.
// ffmpeg connects to the socket when started with -progress unix://<path>.
type FFmpegCollector struct {
	logger     logging.Logger
	socketPath string
	stage      string
	listener   net.Listener
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
	mu         sync.Mutex
}

// NewFFmpegCollector creates a new FFmpeg collector for one pipeline stage.
func NewFFmpegCollector(socketPath, stage string) *FFmpegCollector {
	return &FFmpegCollector{
		logger:     logging.GetLogger("ffmpeg").With("component", "progress", "stage", stage),
		socketPath: socketPath,
		stage:      stage,
	}
}

// SocketPath returns the path the collector listens on.
func (f *FFmpegCollector) SocketPath() string {
	return f.socketPath
}

// Start begins collecting FFmpeg data. The socket exists when Start returns,
// so ffmpeg can be spawned immediately afterwards.
func (f *FFmpegCollector) Start(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)

	if err := os.Remove(f.socketPath); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("Failed to clean up old socket file", "error", err)
	}

	listener, err := net.Listen("unix", f.socketPath)
	if err != nil {
		f.cancel()
		return fmt.Errorf("listen on progress socket: %w", err)
	}
	f.mu.Lock()
	f.listener = listener
	f.mu.Unlock()

	go f.acceptLoop(listener)
	return nil
}

// Stop stops the FFmpeg collector.
func (f *FFmpegCollector) Stop() error {
	var stopErr error
	f.stopOnce.Do(func() {
		if f.cancel != nil {
			f.cancel()
		}
		f.mu.Lock()
		if f.listener != nil {
			f.listener.Close()
			f.listener = nil
		}
		f.mu.Unlock()
		if f.socketPath != "" {
			os.Remove(f.socketPath)
		}
	})
	return stopErr
}

func (f *FFmpegCollector) acceptLoop(listener net.Listener) {
	f.logger.Debug("Listening for progress", "socket", f.socketPath)

	defer func() {
		listener.Close()
		os.Remove(f.socketPath)
	}()

	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		if ul, ok := listener.(*net.UnixListener); ok {
			ul.SetDeadline(time.Now().Add(1 * time.Second))
		}

		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			var netErr net.Error
			if errors.As(acceptErr, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-f.ctx.Done():
				return
			default:
				if strings.Contains(acceptErr.Error(), "use of closed network connection") {
					return
				}
				f.logger.Warn("Error accepting connection", "error", acceptErr)
				continue
			}
		}

		go f.handleConnection(conn)
	}
}

func (f *FFmpegCollector) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	progressData := make(map[string]string)

	for scanner.Scan() {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				progressData[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
			}
		}

		if strings.Contains(line, "progress=") {
			f.sendProgressMetrics(progressData)
			progressData = make(map[string]string)
		}
	}
}

func (f *FFmpegCollector) sendProgressMetrics(data map[string]string) {
	if fps, err := strconv.ParseFloat(data["fps"], 64); err == nil {
		metrics.SetFFmpegFPS(f.stage, fps)
	}
	if frame, err := strconv.ParseFloat(data["frame"], 64); err == nil {
		metrics.SetFFmpegFrame(f.stage, frame)
	}
	if dropped, err := strconv.ParseFloat(data["drop_frames"], 64); err == nil {
		metrics.SetFFmpegDroppedFrames(f.stage, dropped)
	}
	if dup, err := strconv.ParseFloat(data["dup_frames"], 64); err == nil {
		metrics.SetFFmpegDuplicateFrames(f.stage, dup)
	}
	speedStr := strings.TrimSuffix(data["speed"], "x")
	if speed, err := strconv.ParseFloat(strings.TrimSpace(speedStr), 64); err == nil {
		metrics.SetFFmpegSpeed(f.stage, speed)
	}
}
