package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Nakildias/sc0710/internal/format"
)

var (
	// ErrBufferTooSmall is returned when a queued buffer cannot hold
	// a frame of the client's negotiated format.
	ErrBufferTooSmall = errors.New("buffer smaller than negotiated frame size")
	// ErrCancelled marks buffers flushed back on stop or close.
	ErrCancelled = errors.New("buffer cancelled")
	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("client closed")
)

// Source tells a consumer where a completed frame came from.
type Source int

const (
	SourceCapture Source = iota
	SourcePlaceholder
)

func (s Source) String() string {
	if s == SourceCapture {
		return "capture"
	}
	return "placeholder"
}

// Buffer is a completed frame handed back to the consumer.
type Buffer struct {
	Data      []byte
	Sequence  uint64
	Source    Source
	Timestamp time.Time
	// Err is set when the buffer was flushed without a frame
	// (streaming stopped, client closed).
	Err error
}

// Client is one open consumer handle on a channel. Each client owns an
// independent buffer queue, so clients never contend with each other,
// only with their own completion path.
type Client struct {
	id  uint64
	chn int
	mux *Mux

	mu         sync.Mutex
	queue      [][]byte
	fmt        *format.Format
	streaming  bool
	closed     bool
	doneClosed bool

	done chan Buffer
}

// completedDepth bounds how many finished frames can wait for a slow
// consumer before delivery starts dropping.
const completedDepth = 8

// Format returns the client's negotiated format.
func (c *Client) Format() *format.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fmt
}

// SetFormat negotiates the client's frame size. Buffers queued from now
// on must fit it.
func (c *Client) SetFormat(f *format.Format) error {
	if f == nil {
		return errors.New("nil format")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.fmt = f
	return nil
}

// Queue submits an empty buffer for filling.
func (c *Client) Queue(buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if len(buf) < c.fmt.FrameSize {
		return ErrBufferTooSmall
	}
	c.queue = append(c.queue, buf)
	return nil
}

// Dequeue waits for the next completed buffer.
func (c *Client) Dequeue(ctx context.Context) (Buffer, error) {
	select {
	case b, ok := <-c.done:
		if !ok {
			return Buffer{}, ErrClosed
		}
		return b, nil
	case <-ctx.Done():
		return Buffer{}, ctx.Err()
	}
}

// Streaming reports whether StartStreaming has been called.
func (c *Client) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// StartStreaming marks the client live and counts it against the
// channel.
func (c *Client) StartStreaming() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.streaming {
		c.mu.Unlock()
		return nil
	}
	c.streaming = true
	c.mu.Unlock()

	c.mux.streamerStarted(c)
	return nil
}

// StopStreaming takes the client out of delivery and flushes its queued
// buffers back as cancelled.
func (c *Client) StopStreaming() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.streaming {
		c.mu.Unlock()
		return nil
	}
	c.streaming = false
	c.mu.Unlock()

	c.mux.streamerStopped(c)
	c.flush()
	return nil
}

// Close tears the client down. Queued buffers come back cancelled and
// the completion channel is closed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	wasStreaming := c.streaming
	c.streaming = false
	c.closed = true
	c.mu.Unlock()

	if wasStreaming {
		c.mux.streamerStopped(c)
	}
	c.flush()
	c.mux.removeClient(c)

	c.mu.Lock()
	c.doneClosed = true
	close(c.done)
	c.mu.Unlock()
	return nil
}

// popBuffer takes the oldest queued buffer, nil if none.
func (c *Client) popBuffer() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streaming {
		return nil
	}
	if len(c.queue) == 0 {
		return nil
	}
	buf := c.queue[0]
	c.queue = c.queue[1:]
	return buf
}

// complete hands a finished buffer to the consumer, dropping it if the
// completion channel is full or already closed.
func (c *Client) complete(b Buffer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doneClosed {
		return false
	}
	select {
	case c.done <- b:
		return true
	default:
		return false
	}
}

// flush error-completes everything still queued.
func (c *Client) flush() {
	c.mu.Lock()
	queued := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, buf := range queued {
		c.complete(Buffer{Data: buf, Err: ErrCancelled, Timestamp: time.Now()})
	}
}
