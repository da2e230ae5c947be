// Package link carries the host serial stream. A reader goroutine pushes
// received bytes, in arrival order, onto a bounded queue the refresh loop
// drains; the device can also transmit raw bytes.
package link

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const (
	DefaultBaud  = 230400
	DefaultQueue = 4096

	readTimeout = 100 * time.Millisecond
)

var ErrClosed = errors.New("link closed")

// Port is the subset of serial.Port the link uses.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// PortFactory opens a port; tests swap it for an in-memory one.
type PortFactory func(path string, mode *serial.Mode) (Port, error)

// DefaultPortFactory opens a real serial device.
func DefaultPortFactory(path string, mode *serial.Mode) (Port, error) {
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return p, nil
}

// Mode returns 8N1 at baud.
func Mode(baud int) *serial.Mode {
	if baud <= 0 {
		baud = DefaultBaud
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

type Link struct {
	port Port
	path string
	rx   chan byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Open opens path with factory and starts the reader.
func Open(factory PortFactory, path string, baud, queue int) (*Link, error) {
	if factory == nil {
		factory = DefaultPortFactory
	}
	port, err := factory(path, Mode(baud))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	l, err := New(port, path, queue)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return l, nil
}

// New wraps an already open port and starts the reader.
func New(port Port, path string, queue int) (*Link, error) {
	if queue <= 0 {
		queue = DefaultQueue
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		return nil, fmt.Errorf("failed to set read timeout on serial port: %w", err)
	}
	l := &Link{
		port: port,
		path: path,
		rx:   make(chan byte, queue),
		done: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.read()
	log.Info().Str("path", path).Int("queue", queue).Msg("serial link open")
	return l, nil
}

// Bytes is the ordered receive queue. It is closed when the reader stops.
func (l *Link) Bytes() <-chan byte { return l.rx }

func (l *Link) read() {
	defer l.wg.Done()
	defer close(l.rx)
	buf := make([]byte, 256)
	for {
		select {
		case <-l.done:
			return
		default:
		}
		n, err := l.port.Read(buf)
		for i := 0; i < n; i++ {
			select {
			case l.rx <- buf[i]:
			case <-l.done:
				return
			}
		}
		if err != nil {
			if l.isClosed() {
				return
			}
			if errors.Is(err, io.EOF) {
				log.Warn().Str("path", l.path).Msg("serial link reached EOF")
			} else {
				log.Error().Err(err).Str("path", l.path).Msg("failed to read from serial link")
			}
			return
		}
	}
}

func (l *Link) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Write transmits raw bytes to the host.
func (l *Link) Write(p []byte) (int, error) {
	if l.isClosed() {
		return 0, ErrClosed
	}
	n, err := l.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("serial write: %w", err)
	}
	return n, nil
}

// Close stops the reader and closes the port.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	l.mu.Unlock()

	err := l.port.Close()
	l.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}
