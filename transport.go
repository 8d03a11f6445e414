package dp700

import (
	"errors"

	"github.com/allbin/go-dp700/internal/serialport"
)

// Transport moves single protocol lines to and from the instrument.
// WriteLine sends one command line, ReadLine blocks until a full reply
// line arrives or the configured timeout elapses. Implementations
// return ErrTimeout (or an error wrapping it) when no line arrives in
// time, so the session can tell a silent instrument from a broken one.
type Transport interface {
	WriteLine(line string) error
	ReadLine() (string, error)
	SetBaudRate(baud int) error
	Close() error
}

// serialTransport adapts the termios-backed serial port to the
// Transport contract.
type serialTransport struct {
	port *serialport.Port
}

// Ensure serialTransport implements Transport at compile time
var _ Transport = (*serialTransport)(nil)

func (t *serialTransport) WriteLine(line string) error {
	return t.port.WriteLine(line)
}

func (t *serialTransport) ReadLine() (string, error) {
	line, err := t.port.ReadLine()
	if err != nil {
		if errors.Is(err, serialport.ErrReadTimeout) {
			return "", ErrTimeout
		}
		return "", err
	}
	return line, nil
}

func (t *serialTransport) SetBaudRate(baud int) error {
	return t.port.SetBaudRate(baud)
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}
