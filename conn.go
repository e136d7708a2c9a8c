package serialmon

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Defaults applied by Open when the corresponding Config field is zero.
const (
	DefaultDelimiter   = "\r\n"
	DefaultReadTimeout = 500 * time.Millisecond
)

// ErrClosed is returned by Conn methods after Close has been called.
var ErrClosed = errors.New("serial connection closed")

// ErrDisconnected is reported when the device hangs up or vanishes
// (e.g. a USB adapter is unplugged) while the connection is open.
var ErrDisconnected = errors.New("serial device disconnected")

// Config holds the parameters for opening a serial port.
type Config struct {
	Device      string
	BaudRate    int
	Delimiter   string        // line terminator, default "\r\n"
	ReadTimeout time.Duration // per-ReadLine deadline, default 500ms
}

// Conn is an open serial port session, exclusively owned by the process
// for its lifetime. Reads are driven from a single loop; Close is safe to
// call from any goroutine and unblocks an in-flight ReadLine.
type Conn struct {
	fd        int
	file      *os.File
	done      chan struct{}
	closeOnce sync.Once
	config    Config

	mu       sync.Mutex
	buffered []byte // received bytes not yet returned by ReadLine

	pipeR int // self-pipe read fd
	pipeW int // self-pipe write fd
}

// Open opens a serial port using the provided Config and returns a Conn.
// The port is configured for raw, low-latency, non-buffered operation.
// On any failure the device fd is released before returning.
func Open(cfg Config) (*Conn, error) {
	if cfg.Delimiter == "" {
		cfg.Delimiter = DefaultDelimiter
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	fd, err := syscall.Open(cfg.Device, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8

	// Baud rate
	baud := baudToUnix(cfg.BaudRate)
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud

	// Set VMIN=1, VTIME=0 for immediate, non-blocking reads
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("set termios: %w", err)
	}

	// Turn back into blocking mode now that config is done
	syscall.SetNonblock(fd, false)

	// Create self-pipe so Close can wake a ReadLine blocked in poll
	pipeFds := make([]int, 2)
	if err := unix.Pipe(pipeFds); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}

	file := os.NewFile(uintptr(fd), cfg.Device)
	return &Conn{
		fd:     fd,
		file:   file,
		done:   make(chan struct{}),
		config: cfg,
		pipeR:  pipeFds[0],
		pipeW:  pipeFds[1],
	}, nil
}

// Pending reports how many received bytes are available without blocking:
// bytes already buffered internally plus the kernel receive queue.
// A device hangup surfaces here as ErrDisconnected once the queue drains.
func (c *Conn) Pending() (int, error) {
	select {
	case <-c.done:
		return 0, ErrClosed
	default:
	}

	c.mu.Lock()
	buffered := len(c.buffered)
	c.mu.Unlock()
	if buffered > 0 {
		return buffered, nil
	}

	pfd := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
	if _, err := unix.Poll(pfd, 0); err != nil && err != unix.EINTR {
		return 0, fmt.Errorf("poll %s: %w", c.config.Device, err)
	}
	if pfd[0].Revents&unix.POLLIN != 0 {
		n, err := unix.IoctlGetInt(c.fd, unix.TIOCINQ)
		if err != nil {
			return 0, fmt.Errorf("query receive queue: %w", err)
		}
		if n == 0 {
			// POLLIN with an empty queue still means a read won't block.
			n = 1
		}
		return n, nil
	}
	if pfd[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		return 0, fmt.Errorf("%s: %w", c.config.Device, ErrDisconnected)
	}
	return 0, nil
}

// ReadLine returns the next delimiter-terminated segment with the delimiter
// stripped. It draws first on internally buffered bytes, then on whatever the
// device yields within the configured ReadTimeout; if the deadline expires
// before a delimiter arrives, the partial accumulation is returned as-is.
// Bytes past the first delimiter stay buffered for the next call.
func (c *Conn) ReadLine() ([]byte, error) {
	delim := []byte(c.config.Delimiter)
	if line, ok := c.takeLine(delim); ok {
		return line, nil
	}

	deadline := time.Now().Add(c.config.ReadTimeout)
	buf := make([]byte, 4096)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return c.takeAll(), nil
		}

		pfd := []unix.PollFd{
			{Fd: int32(c.fd), Events: unix.POLLIN},
			{Fd: int32(c.pipeR), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(pfd, int(remaining/time.Millisecond)+1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, fmt.Errorf("poll %s: %w", c.config.Device, err)
		}
		select {
		case <-c.done:
			return nil, ErrClosed
		default:
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			// Drain pipe
			var b [1]byte
			unix.Read(c.pipeR, b[:])
			return nil, ErrClosed
		}
		if pfd[0].Revents&unix.POLLIN != 0 {
			n, err := c.file.Read(buf)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", c.config.Device, err)
			}
			c.mu.Lock()
			c.buffered = append(c.buffered, buf[:n]...)
			c.mu.Unlock()
			if line, ok := c.takeLine(delim); ok {
				return line, nil
			}
			continue
		}
		if pfd[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			return nil, fmt.Errorf("%s: %w", c.config.Device, ErrDisconnected)
		}
	}
}

// takeLine pops the first complete line off the internal buffer.
func (c *Conn) takeLine(delim []byte) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := bytes.Index(c.buffered, delim)
	if idx < 0 {
		return nil, false
	}
	line := append([]byte(nil), c.buffered[:idx]...)
	c.buffered = append(c.buffered[:0], c.buffered[idx+len(delim):]...)
	return line, true
}

// takeAll pops everything buffered, delimiter or not.
func (c *Conn) takeAll() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := c.buffered
	c.buffered = nil
	return line
}

// Close closes the serial port and unblocks any in-flight ReadLine.
// Safe to call multiple times; subsequent calls are no-ops.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		// Wake up poll using self-pipe
		if c.pipeW > 0 {
			unix.Write(c.pipeW, []byte{1})
		}
		if c.file != nil {
			err = c.file.Close()
		}
		syscall.Close(c.fd)
		if c.pipeR > 0 {
			unix.Close(c.pipeR)
		}
		if c.pipeW > 0 {
			unix.Close(c.pipeW)
		}
	})
	return err
}

func baudToUnix(baud int) uint32 {
	switch baud {
	case 4800:
		return unix.B4800
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	case 460800:
		return unix.B460800
	default:
		return unix.B115200 // fallback
	}
}
