package dp700

import (
	"fmt"
	"time"
)

// Range bounds a programmable quantity such as the voltage or current
// setpoint. Both ends are inclusive.
type Range struct {
	Min float64
	Max float64
}

func (r Range) contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// SlotRange bounds the memory preset indices the instrument accepts.
type SlotRange struct {
	Min int
	Max int
}

// Config holds the configuration for a session
type Config struct {
	BaudRate    int
	ReadTimeout time.Duration
	// Setpoint ranges. When nil they are resolved from the probed
	// instrument model; an unrecognized model leaves them nil and
	// disables setpoint validation.
	VoltageRange *Range
	CurrentRange *Range
	MemorySlots  SlotRange
}

// Option is a functional option for configuring a session
type Option func(*Config) error

// DefaultConfig returns a configuration with the instrument's
// power-on serial settings
func DefaultConfig() Config {
	return Config{
		BaudRate:    9600,
		ReadTimeout: 200 * time.Millisecond,
		MemorySlots: SlotRange{Min: 1, Max: 10},
	}
}

// supportedBaudRates lists the rates the DP700 RS232 interface accepts.
var supportedBaudRates = []int{4800, 9600, 19200, 38400, 57600, 115200}

func supportedBaud(rate int) bool {
	for _, r := range supportedBaudRates {
		if r == rate {
			return true
		}
	}
	return false
}

// WithBaudRate sets the serial baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if !supportedBaud(rate) {
			return ErrInvalidConfig
		}
		c.BaudRate = rate
		return nil
	}
}

// WithReadTimeout sets how long each command waits for its reply line
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.ReadTimeout = timeout
		return nil
	}
}

// WithVoltageRange overrides the voltage setpoint range resolved from
// the instrument model
func WithVoltageRange(min, max float64) Option {
	return func(c *Config) error {
		if min > max {
			return ErrInvalidConfig
		}
		c.VoltageRange = &Range{Min: min, Max: max}
		return nil
	}
}

// WithCurrentRange overrides the current setpoint range resolved from
// the instrument model
func WithCurrentRange(min, max float64) Option {
	return func(c *Config) error {
		if min > max {
			return ErrInvalidConfig
		}
		c.CurrentRange = &Range{Min: min, Max: max}
		return nil
	}
}

// WithMemorySlots sets the valid memory preset index range
func WithMemorySlots(min, max int) Option {
	return func(c *Config) error {
		if min < 1 || min > max {
			return ErrInvalidConfig
		}
		c.MemorySlots = SlotRange{Min: min, Max: max}
		return nil
	}
}
