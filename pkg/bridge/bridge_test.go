package bridge

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lokutor-ai/voicebridge/pkg/codec"
)

type stubSink struct{}

func (stubSink) SendAudio([]byte) error { return nil }

func newTestBridge(t *testing.T) (*Bridge, net.Conn) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	serverConnCh := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			serverConnCh <- conn
		}
	}()

	cfg := DefaultConfig(sockPath)
	cfg.DialRetries = 1
	b := New(cfg, stubSink{}, nil)
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	var serverConn net.Conn
	select {
	case serverConn = <-serverConnCh:
	case <-time.After(time.Second):
		t.Fatal("server never accepted connection")
	}

	t.Cleanup(func() {
		b.Stop()
		ln.Close()
		serverConn.Close()
		os.Remove(sockPath)
	})

	return b, serverConn
}

func TestEnqueueProducesFullFrameQuickly(t *testing.T) {
	b, server := newTestBridge(t)

	chunk := make([]byte, codec.MulawFrameBytes)
	for i := range chunk {
		chunk[i] = 0xFF // silence
	}
	if err := b.Enqueue(chunk); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	server.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, codec.LinearFrameBytes)
	n, err := io.ReadFull(server, buf)
	if err != nil {
		t.Fatalf("expected %d bytes within 100ms, got %d bytes, err=%v", codec.LinearFrameBytes, n, err)
	}
}

func TestContinuousQueueHasNoDoubleFrameGaps(t *testing.T) {
	b, server := newTestBridge(t)

	const frames = 50 // 1s of audio at 20ms/frame
	go func() {
		blob := make([]byte, codec.MulawFrameBytes)
		for i := 0; i < frames; i++ {
			_ = b.Enqueue(blob)
			time.Sleep(20 * time.Millisecond)
		}
	}()

	server.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, codec.LinearFrameBytes)
	var last time.Time
	for i := 0; i < frames; i++ {
		if _, err := io.ReadFull(server, buf); err != nil {
			t.Fatalf("frame %d: read error: %v", i, err)
		}
		now := time.Now()
		if i > 0 {
			gap := now.Sub(last)
			if gap > 25*time.Millisecond && gap < 35*time.Millisecond {
				t.Errorf("frame %d: suspiciously close to a single-frame-dropped gap: %v", i, gap)
			}
			if gap >= 35*time.Millisecond {
				t.Errorf("frame %d: gap %v exceeds 20ms+/-15ms tolerance (looks like a 40ms stutter)", i, gap)
			}
		}
		last = now
	}
}

func TestStopJoinsWorkersAndClosesSocket(t *testing.T) {
	b, server := newTestBridge(t)

	done := make(chan struct{})
	go func() {
		b.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return within 2s")
	}

	server.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := server.Read(buf); err != io.EOF && err == nil {
		t.Fatalf("expected socket to be closed after Stop, got err=%v", err)
	}
}
