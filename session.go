package dp700

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/allbin/go-dp700/internal/serialport"
)

// Identity holds the parsed fields of the instrument's *IDN? reply.
// Unparseable fields are left empty.
type Identity struct {
	Manufacturer string
	Model        string
	Serial       string
	Firmware     string
}

// parseIdentity splits a comma-separated identification reply. Short
// replies fill fields left to right.
func parseIdentity(reply string) Identity {
	parts := strings.Split(reply, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	var id Identity
	if len(parts) > 0 {
		id.Manufacturer = parts[0]
	}
	if len(parts) > 1 {
		id.Model = parts[1]
	}
	if len(parts) > 2 {
		id.Serial = parts[2]
	}
	if len(parts) > 3 {
		id.Firmware = parts[3]
	}
	return id
}

// modelLimits maps instrument models to their documented output limits.
var modelLimits = map[string]struct {
	voltage Range
	current Range
}{
	"DP711": {voltage: Range{Min: 0, Max: 30}, current: Range{Min: 0, Max: 5}},
	"DP712": {voltage: Range{Min: 0, Max: 50}, current: Range{Min: 0, Max: 3}},
}

// Session owns a serial connection to one instrument for the duration
// of a scoped session. The transport is held exclusively from Open to
// Close, and at most one command is in flight at a time: every
// operation writes its line, then reads the reply or times out before
// the next command may be sent.
type Session struct {
	mu     sync.Mutex
	tr     Transport
	config Config

	identity     Identity
	voltageRange *Range
	currentRange *Range

	closed bool
	// Last acknowledged output state. Stale until the next
	// OutputEnabled query or acknowledged EnableOutput.
	outputOn    bool
	outputKnown bool
}

// Open opens the serial port at the given device path with the
// instrument's protocol settings and probes it for its identity.
// The returned session must be released with Close; callers typically
// defer it immediately:
//
//	s, err := dp700.Open("/dev/ttyUSB0")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
func Open(device string, opts ...Option) (*Session, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}

	port, err := serialport.Open(device,
		serialport.WithBaudRate(config.BaudRate),
		serialport.WithReadTimeout(config.ReadTimeout),
	)
	if err != nil {
		return nil, &ConnectionError{Op: "open", Err: err}
	}

	return newSession(&serialTransport{port: port}, config)
}

// NewSession starts a session over a caller-supplied transport. The
// session takes ownership of the transport and closes it on Close or
// when the identity probe fails.
func NewSession(t Transport, opts ...Option) (*Session, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}
	return newSession(t, config)
}

// newSession probes the instrument and resolves setpoint limits from
// the reported model. A failed probe closes the transport so no
// half-open session leaks.
func newSession(t Transport, config Config) (*Session, error) {
	s := &Session{tr: t, config: config}

	reply, err := s.exchange("identify", command{kind: cmdIdentify})
	if err != nil {
		t.Close()
		var protoErr *ProtocolError
		if errors.As(err, &protoErr) {
			return nil, &ConnectionError{Op: "identify", Err: protoErr.Err}
		}
		return nil, err
	}

	s.identity = parseIdentity(reply)
	s.voltageRange = config.VoltageRange
	s.currentRange = config.CurrentRange
	if limits, ok := modelLimits[s.identity.Model]; ok {
		if s.voltageRange == nil {
			r := limits.voltage
			s.voltageRange = &r
		}
		if s.currentRange == nil {
			r := limits.current
			s.currentRange = &r
		}
	}

	return s, nil
}

// WithSession opens a session, runs fn, and guarantees the session is
// closed on every exit path, including a panic inside fn.
func WithSession(device string, fn func(*Session) error, opts ...Option) error {
	s, err := Open(device, opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// Close returns the instrument to front-panel control and releases the
// transport. Idempotent: a second call is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	// Best effort. The instrument stays locked in remote mode if this
	// is lost, but the port must be released regardless.
	s.exchangeLocked("close", command{kind: cmdLocalControl})

	s.closed = true
	if err := s.tr.Close(); err != nil {
		return &ConnectionError{Op: "close", Err: err}
	}
	return nil
}

// Identity returns the parsed open-time probe result without touching
// the device.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Identification queries the instrument and returns its self-reported
// identification string verbatim, trailing terminators trimmed.
func (s *Session) Identification() (string, error) {
	return s.exchange("identify", command{kind: cmdIdentify})
}

// OutputVoltage measures the live output voltage in volts.
func (s *Session) OutputVoltage() (float64, error) {
	return s.queryNumber("measure voltage", command{kind: cmdMeasureVoltage})
}

// OutputCurrent measures the live output current in amperes.
func (s *Session) OutputCurrent() (float64, error) {
	return s.queryNumber("measure current", command{kind: cmdMeasureCurrent})
}

// OutputPower measures the live output power in watts.
func (s *Session) OutputPower() (float64, error) {
	return s.queryNumber("measure power", command{kind: cmdMeasurePower})
}

// VoltageSetpoint returns the programmed voltage target, which may
// differ from the measured output.
func (s *Session) VoltageSetpoint() (float64, error) {
	return s.queryNumber("voltage setpoint", command{kind: cmdVoltageSetpoint})
}

// CurrentSetpoint returns the programmed current target.
func (s *Session) CurrentSetpoint() (float64, error) {
	return s.queryNumber("current setpoint", command{kind: cmdCurrentSetpoint})
}

// OutputEnabled queries whether the output is switched on. It always
// asks the device rather than trusting the cached flag, since the
// front panel can flip the state between calls.
func (s *Session) OutputEnabled() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := "query output state"
	reply, err := s.exchangeLocked(op, command{kind: cmdQueryOutput})
	if err != nil {
		return false, err
	}
	on, err := parseOnOff(reply)
	if err != nil {
		return false, &ProtocolError{Op: op, Reply: reply, Err: err}
	}

	s.outputOn = on
	s.outputKnown = true
	return on, nil
}

// SetOutputVoltage programs the voltage setpoint in volts. Values
// outside the resolved range fail before any bytes are sent.
func (s *Session) SetOutputVoltage(volts float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r := s.voltageRange; r != nil && !r.contains(volts) {
		return &ValidationError{Op: "set voltage", Value: volts, Allowed: "voltage range " + r.String()}
	}
	_, err := s.exchangeLocked("set voltage", command{kind: cmdSetVoltage, value: volts})
	return err
}

// SetOutputCurrent programs the current setpoint in amperes.
func (s *Session) SetOutputCurrent(amps float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r := s.currentRange; r != nil && !r.contains(amps) {
		return &ValidationError{Op: "set current", Value: amps, Allowed: "current range " + r.String()}
	}
	_, err := s.exchangeLocked("set current", command{kind: cmdSetCurrent, value: amps})
	return err
}

// EnableOutput switches the output on or off. The cached output flag
// is updated only after the instrument acknowledges; on failure it is
// left untouched.
func (s *Session) EnableOutput(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, kind := "enable output", cmdEnableOutput
	if !on {
		op, kind = "disable output", cmdDisableOutput
	}
	if _, err := s.exchangeLocked(op, command{kind: kind}); err != nil {
		return err
	}

	s.outputOn = on
	s.outputKnown = true
	return nil
}

// RecallFromMemory loads the setpoints stored in a front-panel memory
// slot. The device overwrites its live setpoints as a side effect, so
// callers needing the new values must re-query them.
func (s *Session) RecallFromMemory(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := "recall memory"
	if err := s.validateSlot(op, slot); err != nil {
		return err
	}
	_, err := s.exchangeLocked(op, command{kind: cmdRecallMemory, slot: slot})
	return err
}

// SaveToMemory stores the instrument's live setpoints into a
// front-panel memory slot.
func (s *Session) SaveToMemory(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := "save memory"
	if err := s.validateSlot(op, slot); err != nil {
		return err
	}
	_, err := s.exchangeLocked(op, command{kind: cmdSaveMemory, slot: slot})
	return err
}

// SetBaudRate switches the instrument's serial rate and reconfigures
// the local transport to match once the change is acknowledged.
func (s *Session) SetBaudRate(baud int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := "set baud rate"
	if !supportedBaud(baud) {
		return &ValidationError{
			Op:      op,
			Value:   float64(baud),
			Allowed: "supported baud rates " + baudRateList(),
		}
	}
	if _, err := s.exchangeLocked(op, command{kind: cmdSetBaud, baud: baud}); err != nil {
		return err
	}
	if err := s.tr.SetBaudRate(baud); err != nil {
		return &ConnectionError{Op: op, Err: err}
	}
	s.config.BaudRate = baud
	return nil
}

func (s *Session) validateSlot(op string, slot int) error {
	m := s.config.MemorySlots
	if slot < m.Min || slot > m.Max {
		return &ValidationError{
			Op:      op,
			Value:   float64(slot),
			Allowed: fmt.Sprintf("memory slots %d..%d", m.Min, m.Max),
		}
	}
	return nil
}

func baudRateList() string {
	parts := make([]string, len(supportedBaudRates))
	for i, r := range supportedBaudRates {
		parts[i] = fmt.Sprintf("%d", r)
	}
	return strings.Join(parts, ", ")
}

// queryNumber runs a numeric query and decodes its reply.
func (s *Session) queryNumber(op string, c command) (float64, error) {
	reply, err := s.exchange(op, c)
	if err != nil {
		return 0, err
	}
	v, err := parseNumber(reply)
	if err != nil {
		return 0, &ProtocolError{Op: op, Reply: reply, Err: err}
	}
	return v, nil
}

// exchange serializes one request/response cycle against the
// transport.
func (s *Session) exchange(op string, c command) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchangeLocked(op, c)
}

// exchangeLocked writes the encoded command and reads its reply line.
// The caller holds s.mu, which enforces the one-in-flight rule: the
// reply is read, or times out, before the lock is released for the
// next command.
func (s *Session) exchangeLocked(op string, c command) (string, error) {
	if s.closed {
		return "", &ConnectionError{Op: op, Err: ErrSessionClosed}
	}

	if err := s.tr.WriteLine(c.encode()); err != nil {
		return "", &ConnectionError{Op: op, Err: err}
	}

	reply, err := s.tr.ReadLine()
	if err != nil {
		// A lost acknowledgement cannot be told apart from a command
		// that never reached the device, so it surfaces as a protocol
		// failure rather than a transport one.
		if c.reply() == expectAck && errors.Is(err, ErrTimeout) {
			return "", &ProtocolError{Op: op, Err: ErrMissingAck}
		}
		return "", &ConnectionError{Op: op, Err: err}
	}
	if reply == "" {
		return "", &ProtocolError{Op: op, Err: ErrEmptyReply}
	}
	if c.reply() == expectAck && reply != ackToken {
		return "", &ProtocolError{Op: op, Reply: reply, Err: ErrUnexpectedReply}
	}
	return reply, nil
}
