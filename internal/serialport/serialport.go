// Package serialport implements the line-framed serial transport used
// to talk to DP700-series instruments on Linux, built directly on
// termios via golang.org/x/sys/unix.
package serialport

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// maxLineBytes bounds how much pending input a single reply line may
// occupy before the read is abandoned.
const maxLineBytes = 512

// Port is a serial port carrying newline-terminated command lines.
type Port struct {
	mu      sync.Mutex
	fd      int
	config  Config
	closed  bool
	pending []byte
}

// getBaudRate converts an integer baud rate to the unix constant
func getBaudRate(rate int) (uint32, error) {
	switch rate {
	case 1200:
		return unix.B1200, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	default:
		return 0, ErrInvalidBaudRate
	}
}

// timeoutTenths converts a read timeout to the VTIME unit, clamped to
// the field's valid range.
func timeoutTenths(timeout time.Duration) uint8 {
	tenths := int(timeout / (100 * time.Millisecond))
	if tenths < 1 {
		tenths = 1
	}
	if tenths > 255 {
		tenths = 255
	}
	return uint8(tenths)
}

// Open opens a serial port with the given device path and options
func Open(device string, opts ...Option) (*Port, error) {
	// Apply default configuration
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}

	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		switch {
		case errors.Is(err, unix.ENOENT):
			return nil, fmt.Errorf("%s: %w", device, ErrDeviceNotFound)
		case errors.Is(err, unix.EACCES):
			return nil, fmt.Errorf("%s: %w", device, ErrPermissionDenied)
		case errors.Is(err, unix.EBUSY):
			return nil, fmt.Errorf("%s: %w", device, ErrDeviceInUse)
		}
		return nil, fmt.Errorf("failed to open %s: %v", device, err)
	}

	if err := configureTermios(fd, config); err != nil {
		unix.Close(fd)
		return nil, err
	}

	// Drop whatever was sitting in the input buffer before we opened;
	// stale bytes would be misread as the first reply.
	flushInput(fd)

	return &Port{
		fd:     fd,
		config: config,
		closed: false,
	}, nil
}

// configureTermios configures the serial port using clean unix package calls
func configureTermios(fd int, config Config) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %v", err)
	}

	// Configure for raw mode, 8N1 by default
	termios.Cflag = unix.CS8 | unix.CREAD | unix.CLOCAL
	termios.Iflag = 0 // No input processing
	termios.Oflag = 0 // No output processing
	termios.Lflag = 0 // No line processing (raw mode)

	// Timeout: VMIN=0, VTIME from config (deciseconds)
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = timeoutTenths(config.ReadTimeout)

	baudRate, err := getBaudRate(config.BaudRate)
	if err != nil {
		return err
	}

	// Set speed directly in termios structure
	termios.Cflag = (termios.Cflag &^ unix.CBAUD) | baudRate
	termios.Ispeed = baudRate
	termios.Ospeed = baudRate

	// Data bits
	if config.DataBits != 8 {
		termios.Cflag &^= unix.CSIZE
		switch config.DataBits {
		case 5:
			termios.Cflag |= unix.CS5
		case 6:
			termios.Cflag |= unix.CS6
		case 7:
			termios.Cflag |= unix.CS7
		}
	}

	// Stop bits
	if config.StopBits == 2 {
		termios.Cflag |= unix.CSTOPB
	}

	// Parity
	switch config.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %v", err)
	}

	return nil
}

// Close closes the serial port
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	err := unix.Close(p.fd)
	p.closed = true
	return err
}

// WriteLine writes one command line, appending the protocol terminator.
func (p *Port) WriteLine(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	data := append([]byte(line), '\n')
	for len(data) > 0 {
		n, err := unix.Write(p.fd, data)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		data = data[n:]
	}
	return nil
}

// ReadLine reads one reply line, blocking until a full line arrives or
// the configured timeout passes with no data. The terminator and any
// trailing carriage return are stripped.
func (p *Port) ReadLine() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", ErrPortClosed
	}

	for {
		if i := bytes.IndexByte(p.pending, '\n'); i >= 0 {
			line := string(p.pending[:i])
			p.pending = p.pending[i+1:]
			return strings.TrimRight(line, "\r"), nil
		}
		if len(p.pending) > maxLineBytes {
			p.pending = nil
			return "", ErrLineOverflow
		}

		buf := make([]byte, 64)
		n, err := unix.Read(p.fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return "", err
		}
		if n == 0 {
			// VTIME expired. A partial line left behind belongs to the
			// exchange that just died; drop it so the next reply
			// starts clean.
			p.pending = nil
			return "", ErrReadTimeout
		}
		p.pending = append(p.pending, buf[:n]...)
	}
}

// SetBaudRate reconfigures the port to a new rate after draining any
// bytes still queued at the old one.
func (p *Port) SetBaudRate(baud int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	if _, err := getBaudRate(baud); err != nil {
		return err
	}

	drain(p.fd)
	p.config.BaudRate = baud
	return configureTermios(p.fd, p.config)
}

// drain waits until all output written to the port has been transmitted
func drain(fd int) error {
	return unix.IoctlSetInt(fd, unix.TCSBRK, 1)
}

// flushInput discards any unread input data
func flushInput(fd int) error {
	return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH)
}
