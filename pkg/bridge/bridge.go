// Package bridge implements the full-duplex audio bridge between the
// SIP-side local byte-stream socket and the voice backend (spec §4.2).
//
// Grounded on the teacher's concurrency idiom (context-cancellable
// goroutines, mutex-guarded counters, a Stop that joins workers) and on
// blitss-sip-tg-bridge's pcm package (FrameAssembler/PCMPlayoutBuffer) for
// the shape of a fixed-frame-size byte accumulator; go.uber.org/atomic
// replaces the plain int64 counters blitss uses for bytes in/out, since
// that library is already part of the pack's dependency surface for this
// exact kind of bridge counter.
package bridge

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/lokutor-ai/voicebridge/pkg/codec"
	"github.com/lokutor-ai/voicebridge/pkg/voicelog"
)

var (
	ErrNotConnected = errors.New("bridge: not connected")
	ErrStopped      = errors.New("bridge: stopped")
)

// AudioSink receives converted μ-law frames read off the socket and hands
// them to the voice backend. It is implemented by every VoiceBackend.
type AudioSink interface {
	SendAudio(ulaw []byte) error
}

// Config tunes retry, pacing, and queueing behavior.
type Config struct {
	SocketPath    string
	DialRetries   int
	DialBackoff   time.Duration
	WriteAhead    time.Duration
	QueueCapacity int
}

func DefaultConfig(socketPath string) Config {
	return Config{
		SocketPath:    socketPath,
		DialRetries:   5,
		DialBackoff:   500 * time.Millisecond,
		WriteAhead:    100 * time.Millisecond,
		QueueCapacity: 256,
	}
}

// Bridge owns the socket connection and the two pacing workers.
type Bridge struct {
	cfg    Config
	sink   AudioSink
	logger voicelog.Logger

	conn   net.Conn
	connMu sync.Mutex

	queue chan []byte

	bytesIn  atomic.Int64
	bytesOut atomic.Int64
	qLen     atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
	stopped  atomic.Bool
}

func New(cfg Config, sink AudioSink, logger voicelog.Logger) *Bridge {
	if logger == nil {
		logger = voicelog.NoOp{}
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		queue:  make(chan []byte, cfg.QueueCapacity),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start dials the socket (retrying per Config) and launches the read and
// write workers.
func (b *Bridge) Start() error {
	conn, err := b.dialWithRetry()
	if err != nil {
		return err
	}
	b.connMu.Lock()
	b.conn = conn
	b.connMu.Unlock()

	b.wg.Add(2)
	go b.readLoop()
	go b.writeLoop()
	return nil
}

func (b *Bridge) dialWithRetry() (net.Conn, error) {
	retries := b.cfg.DialRetries
	if retries <= 0 {
		retries = 1
	}
	backoff := b.cfg.DialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		conn, err := net.Dial("unix", b.cfg.SocketPath)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		b.logger.Warn("bridge: dial failed, retrying", "attempt", attempt+1, "error", err)
		select {
		case <-time.After(backoff):
		case <-b.ctx.Done():
			return nil, b.ctx.Err()
		}
	}
	return nil, lastErr
}

// Enqueue submits a μ-law blob (of any length) for paced delivery to the
// socket. Blocks while the queue is full; returns ErrStopped if the bridge
// has stopped.
func (b *Bridge) Enqueue(ulaw []byte) error {
	if b.stopped.Load() {
		return ErrStopped
	}
	select {
	case b.queue <- ulaw:
		b.qLen.Add(1)
		return nil
	case <-b.ctx.Done():
		return ErrStopped
	}
}

func (b *Bridge) readLoop() {
	defer b.wg.Done()
	frame := make([]byte, codec.LinearFrameBytes)
	for {
		b.connMu.Lock()
		conn := b.conn
		b.connMu.Unlock()
		if conn == nil {
			return
		}

		_, err := io.ReadFull(conn, frame)
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Warn("bridge: socket dropped, reconnecting", "error", err)
			newConn, dialErr := b.dialWithRetry()
			if dialErr != nil {
				b.logger.Error("bridge: reconnect failed, read worker terminating", "error", dialErr)
				return
			}
			b.connMu.Lock()
			if b.conn != nil {
				b.conn.Close()
			}
			b.conn = newConn
			b.connMu.Unlock()
			continue
		}

		b.bytesIn.Add(int64(len(frame)))
		ulaw := codec.EncodeSlice(frame)
		if err := b.sink.SendAudio(ulaw); err != nil {
			b.logger.Warn("bridge: backend rejected audio frame", "error", err)
		}
	}
}

// writeLoop implements the §4.2 write-ahead pacer. It must advance
// nextFrameAt by exactly one frame duration per written chunk: advancing
// by two in a single step writes one frame every 40ms, which the SIP side
// (reading every 20ms) perceives as a stutter.
func (b *Bridge) writeLoop() {
	defer b.wg.Done()

	var nextFrameAt time.Time
	started := false

	for {
		var blob []byte
		select {
		case v, ok := <-b.queue:
			if !ok {
				return
			}
			blob = v
			b.qLen.Add(-1)
		case <-b.ctx.Done():
			return
		}

		blobBytes := blob
		for len(blobBytes) > 0 {
			n := codec.MulawFrameBytes
			if n > len(blobBytes) {
				n = len(blobBytes)
			}
			chunk := blobBytes[:n]
			blobBytes = blobBytes[n:]

			now := time.Now()
			if !started {
				nextFrameAt = now
				started = true
			}
			if surplus := nextFrameAt.Sub(now); surplus > b.cfg.WriteAhead {
				time.Sleep(surplus - b.cfg.WriteAhead)
			}

			if err := b.writeChunk(chunk); err != nil {
				b.logger.Warn("bridge: write worker terminating", "error", err)
				return
			}
			b.bytesOut.Add(int64(len(chunk) * 2))

			nextFrameAt = nextFrameAt.Add(codec.FrameDuration)
			if now2 := time.Now(); nextFrameAt.Before(now2) {
				nextFrameAt = now2.Add(codec.FrameDuration)
			}
		}
	}
}

func (b *Bridge) writeChunk(ulawChunk []byte) error {
	linear := codec.DecodeSlice(ulawChunk)
	b.connMu.Lock()
	conn := b.conn
	b.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	_, err := conn.Write(linear)
	return err
}

// BytesIn returns cumulative linear-16 bytes read from the socket.
func (b *Bridge) BytesIn() int64 { return b.bytesIn.Load() }

// BytesOut returns cumulative linear-16 bytes written to the socket.
func (b *Bridge) BytesOut() int64 { return b.bytesOut.Load() }

// WriteQueueSize returns the number of blobs currently queued for pacing.
func (b *Bridge) WriteQueueSize() int64 { return b.qLen.Load() }

// Stop cancels the workers' context, closes the socket and joins both
// workers, waiting up to 2s before giving up. The queue channel itself is
// not closed; Enqueue returns ErrStopped from then on.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		b.cancel()

		b.connMu.Lock()
		if b.conn != nil {
			b.conn.Close()
		}
		b.connMu.Unlock()

		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			b.logger.Warn("bridge: stop timed out waiting for workers")
		}
	})
}
