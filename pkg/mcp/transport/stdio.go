// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout is how long Close waits for the provider to exit
// after stdin is closed before killing it.
const DefaultShutdownTimeout = 5 * time.Second

// StdioConfig describes the provider process to launch.
type StdioConfig struct {
	Name            string            // provider name, used in logs
	Command         string            // executable
	Args            []string          // arguments
	Env             map[string]string // added on top of the parent environment
	Dir             string            // working directory
	ShutdownTimeout time.Duration     // default DefaultShutdownTimeout
	Logger          *zap.Logger
}

// StdioTransport speaks newline-delimited JSON to a subprocess over its
// stdin and stdout. stderr is forwarded to the logger.
type StdioTransport struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *zap.Logger

	// Read ends of the output pipes. They are owned here rather than by
	// exec.Cmd, so that reaping the process never waits on a descendant that
	// inherited the write ends.
	stdout *os.File
	stderr *os.File

	frames chan []byte
	done   chan struct{} // closed by Close
	exited chan struct{} // closed after the process is reaped

	waitMu  sync.Mutex
	waitErr error

	shutdownTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewStdioTransport launches the process and starts pumping its output.
func NewStdioTransport(config StdioConfig) (*StdioTransport, error) {
	if config.Command == "" {
		return nil, fmt.Errorf("command is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	// #nosec G204 -- launch specs come from operator configuration
	cmd := exec.Command(config.Command, config.Args...)
	cmd.Dir = config.Dir
	cmd.Env = os.Environ()
	for k, v := range config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdin, stdout, stdoutW)
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	// The child holds its own copies of the write ends.
	closeAll(stdoutW, stderrW)
	if err != nil {
		closeAll(stdin, stdout, stderr)
		return nil, fmt.Errorf("failed to start %s: %w", config.Command, err)
	}

	logger := config.Logger.With(zap.String("server", config.Name), zap.Int("pid", cmd.Process.Pid))
	t := &StdioTransport{
		name:            config.Name,
		cmd:             cmd,
		stdin:           stdin,
		stdout:          stdout,
		stderr:          stderr,
		logger:          logger,
		frames:          make(chan []byte, 16),
		done:            make(chan struct{}),
		exited:          make(chan struct{}),
		shutdownTimeout: config.ShutdownTimeout,
	}

	go t.readFrames(stdout)
	go t.forwardStderr(stderr)
	go func() {
		err := cmd.Wait()
		t.waitMu.Lock()
		t.waitErr = err
		t.waitMu.Unlock()
		close(t.exited)
	}()

	logger.Info("tool provider process started",
		zap.String("command", config.Command),
		zap.Strings("args", config.Args),
	)
	return t, nil
}

// readFrames splits stdout into frames. bufio.Reader is used instead of a
// Scanner because provider results have no size bound.
func (s *StdioTransport) readFrames(stdout io.Reader) {
	defer close(s.frames)
	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(line)) > 0 {
			select {
			case s.frames <- line:
			case <-s.done:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("stdout closed", zap.Error(err))
			}
			return
		}
	}
}

func (s *StdioTransport) forwardStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			s.logger.Debug("provider stderr", zap.String("line", line))
		}
	}
}

// Send implements Transport.
func (s *StdioTransport) Send(ctx context.Context, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	buf := make([]byte, 0, len(message)+1)
	buf = append(buf, message...)
	buf = append(buf, '\n')
	if _, err := s.stdin.Write(buf); err != nil {
		return fmt.Errorf("failed to write to %s: %w", s.name, err)
	}
	return nil
}

// Receive implements Transport.
func (s *StdioTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-s.frames:
		if !ok {
			return nil, s.exitError()
		}
		return frame, nil
	}
}

// Exited is closed once the provider process has terminated.
func (s *StdioTransport) Exited() <-chan struct{} {
	return s.exited
}

func (s *StdioTransport) exitError() error {
	select {
	case <-s.exited:
		s.waitMu.Lock()
		defer s.waitMu.Unlock()
		if s.waitErr != nil {
			return fmt.Errorf("%w: provider exited: %v", ErrClosed, s.waitErr)
		}
	default:
	}
	return ErrClosed
}

// Close closes stdin so the provider can exit on its own, then kills it if it
// has not gone away within the shutdown timeout.
func (s *StdioTransport) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	_ = s.stdin.Close()

	select {
	case <-s.exited:
		s.logger.Info("tool provider process exited")
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn("tool provider did not exit, killing process")
		if err := s.cmd.Process.Kill(); err != nil {
			s.logger.Error("failed to kill tool provider", zap.Error(err))
		}
		<-s.exited
	}

	// A descendant may still hold the write ends; closing the read ends
	// releases the reader goroutines regardless.
	closeAll(s.stdout, s.stderr)
	return nil
}

func closeAll(closers ...io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
