// Package dp700 provides a clean, idiomatic Go driver for Rigol DP700
// series programmable power supplies over their RS232 interface.
//
// A Session speaks the instrument's line-oriented command protocol: each
// operation writes one command line and reads one reply line. Operations
// are serialized, so a Session is safe for concurrent use, but only one
// command is ever in flight per instrument.
//
// # Basic Usage
//
// Open a session with the instrument's power-on serial settings (9600 8N1):
//
//	sess, err := dp700.Open("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	// Program a setpoint and switch the output on
//	err = sess.SetOutputVoltage(5.0)
//	err = sess.EnableOutput(true)
//
//	// Live readbacks
//	volts, err := sess.OutputVoltage()
//	amps, err := sess.OutputCurrent()
//
// For one-shot work, WithSession scopes the session to a function and
// closes it on the way out:
//
//	err := dp700.WithSession("/dev/ttyUSB0", func(s *dp700.Session) error {
//	    if err := s.RecallFromMemory(3); err != nil {
//	        return err
//	    }
//	    return s.EnableOutput(true)
//	})
//
// # Configuration Options
//
// Use functional options for custom configuration:
//
//	sess, err := dp700.Open("/dev/ttyUSB0",
//	    dp700.WithBaudRate(19200),
//	    dp700.WithReadTimeout(500*time.Millisecond),
//	    dp700.WithVoltageRange(0, 12),
//	    dp700.WithCurrentRange(0, 2),
//	)
//
// Setpoint ranges default to the limits of the probed instrument model
// (DP711: 30 V / 5 A, DP712: 50 V / 3 A). Explicit ranges override the
// probed limits; an unrecognized model without explicit ranges disables
// setpoint validation.
//
// # Error Handling
//
// Failures carry the operation that caused them and divide into three
// kinds: ConnectionError (device unreachable, I/O failure, timeout waiting
// for a reply), ProtocolError (the device answered with something the
// driver cannot accept), and ValidationError (the request was rejected
// locally before touching the wire).
//
// Use errors.As() for the kind and errors.Is() for the root cause:
//
//	if err := sess.SetOutputVoltage(40); err != nil {
//	    var verr *dp700.ValidationError
//	    if errors.As(err, &verr) {
//	        fmt.Printf("rejected %g: allowed %s\n", verr.Value, verr.Allowed)
//	    }
//	    if errors.Is(err, dp700.ErrTimeout) {
//	        // instrument did not answer in time
//	    }
//	}
//
// # Default Configuration
//
//   - BaudRate: 9600
//   - ReadTimeout: 200ms
//   - VoltageRange: resolved from the instrument model
//   - CurrentRange: resolved from the instrument model
//   - MemorySlots: 1 to 10
package dp700
