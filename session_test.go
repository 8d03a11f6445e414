package dp700

import (
	"errors"
	"math"
	"testing"
)

func openSim(t *testing.T, opts ...Option) (*Session, *simInstrument) {
	t.Helper()
	sim := newSimInstrument()
	s, err := NewSession(sim, opts...)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s, sim
}

func TestIdentityProbeOnOpen(t *testing.T) {
	s, sim := openSim(t)
	defer s.Close()

	if len(sim.written) == 0 || sim.written[0] != "*IDN?" {
		t.Errorf("Expected *IDN? probe as first command, got %v", sim.written)
	}

	id := s.Identity()
	if id.Manufacturer != "RIGOL TECHNOLOGIES" {
		t.Errorf("Expected manufacturer RIGOL TECHNOLOGIES, got %q", id.Manufacturer)
	}
	if id.Model != "DP711" {
		t.Errorf("Expected model DP711, got %q", id.Model)
	}
	if id.Serial != "DP8A0000001" {
		t.Errorf("Expected serial DP8A0000001, got %q", id.Serial)
	}
	if id.Firmware != "00.01.03" {
		t.Errorf("Expected firmware 00.01.03, got %q", id.Firmware)
	}
}

func TestIdentificationVerbatim(t *testing.T) {
	sim := newSimInstrument()
	sim.identity = "DP700 v1.0"

	s, err := NewSession(sim)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer s.Close()

	got, err := s.Identification()
	if err != nil {
		t.Fatalf("Identification failed: %v", err)
	}
	if got != "DP700 v1.0" {
		t.Errorf("Expected identification \"DP700 v1.0\", got %q", got)
	}
}

func TestOpenProbeTimeoutClosesTransport(t *testing.T) {
	sim := newSimInstrument()
	sim.silent = true

	_, err := NewSession(sim)
	if err == nil {
		t.Fatal("Expected error when instrument does not answer the probe")
	}

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("Expected ConnectionError, got %T: %v", err, err)
	}
	if sim.closeCount != 1 {
		t.Errorf("Expected transport closed once after failed probe, got %d", sim.closeCount)
	}
}

func TestSetpointReadbackRoundTrip(t *testing.T) {
	s, _ := openSim(t)
	defer s.Close()

	voltages := []float64{0, 0.5, 5.0, 12.345, 30}
	for _, want := range voltages {
		if err := s.SetOutputVoltage(want); err != nil {
			t.Fatalf("SetOutputVoltage(%g) failed: %v", want, err)
		}
		got, err := s.OutputVoltage()
		if err != nil {
			t.Fatalf("OutputVoltage failed: %v", err)
		}
		if math.Abs(got-want) > 0.001 {
			t.Errorf("Expected voltage readback %g, got %g", want, got)
		}
	}

	currents := []float64{0, 0.1, 2.5, 5}
	for _, want := range currents {
		if err := s.SetOutputCurrent(want); err != nil {
			t.Fatalf("SetOutputCurrent(%g) failed: %v", want, err)
		}
		got, err := s.OutputCurrent()
		if err != nil {
			t.Fatalf("OutputCurrent failed: %v", err)
		}
		if math.Abs(got-want) > 0.001 {
			t.Errorf("Expected current readback %g, got %g", want, got)
		}
	}
}

func TestSetpointQueries(t *testing.T) {
	s, _ := openSim(t)
	defer s.Close()

	if err := s.SetOutputVoltage(12.5); err != nil {
		t.Fatalf("SetOutputVoltage failed: %v", err)
	}
	if err := s.SetOutputCurrent(1.25); err != nil {
		t.Fatalf("SetOutputCurrent failed: %v", err)
	}

	v, err := s.VoltageSetpoint()
	if err != nil {
		t.Fatalf("VoltageSetpoint failed: %v", err)
	}
	if math.Abs(v-12.5) > 0.001 {
		t.Errorf("Expected voltage setpoint 12.5, got %g", v)
	}

	a, err := s.CurrentSetpoint()
	if err != nil {
		t.Fatalf("CurrentSetpoint failed: %v", err)
	}
	if math.Abs(a-1.25) > 0.001 {
		t.Errorf("Expected current setpoint 1.25, got %g", a)
	}

	p, err := s.OutputPower()
	if err != nil {
		t.Fatalf("OutputPower failed: %v", err)
	}
	if math.Abs(p-12.5*1.25) > 0.001 {
		t.Errorf("Expected power %g, got %g", 12.5*1.25, p)
	}
}

func TestSetVoltageOutOfRange(t *testing.T) {
	s, sim := openSim(t)
	defer s.Close()

	// DP711 limits resolved from the probe: 0..30 V
	tests := []float64{-0.001, 30.001, 100}
	for _, v := range tests {
		before := len(sim.written)
		err := s.SetOutputVoltage(v)
		if err == nil {
			t.Fatalf("Expected error for voltage %g", v)
		}
		var valErr *ValidationError
		if !errors.As(err, &valErr) {
			t.Errorf("Expected ValidationError for voltage %g, got %T: %v", v, err, err)
		}
		if len(sim.written) != before {
			t.Errorf("Expected no bytes sent for rejected voltage %g", v)
		}
	}
}

func TestSetVoltageRejectedAfterAccepted(t *testing.T) {
	s, _ := openSim(t)
	defer s.Close()

	if err := s.SetOutputVoltage(5.0); err != nil {
		t.Fatalf("SetOutputVoltage(5.0) failed: %v", err)
	}

	err := s.SetOutputVoltage(-1.0)
	if err == nil {
		t.Fatal("Expected error for voltage -1.0")
	}
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("Expected ValidationError, got %T: %v", err, err)
	}

	got, err := s.OutputVoltage()
	if err != nil {
		t.Fatalf("OutputVoltage failed: %v", err)
	}
	if math.Abs(got-5.0) > 0.001 {
		t.Errorf("Expected device still at 5.0 V, got %g", got)
	}
}

func TestUnknownModelSkipsRangeValidation(t *testing.T) {
	sim := newSimInstrument()
	sim.identity = "ACME,PS9000,X000,1.0"

	s, err := NewSession(sim)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer s.Close()

	// No documented limits for this model, so the value goes through.
	if err := s.SetOutputVoltage(999); err != nil {
		t.Errorf("Expected unchecked setpoint to pass, got %v", err)
	}
}

func TestExplicitRangeOverridesUnknownModel(t *testing.T) {
	sim := newSimInstrument()
	sim.identity = "ACME,PS9000,X000,1.0"

	s, err := NewSession(sim, WithVoltageRange(0, 10))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer s.Close()

	err = s.SetOutputVoltage(999)
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("Expected ValidationError with explicit range, got %T: %v", err, err)
	}
}

func TestMemorySlotValidation(t *testing.T) {
	s, sim := openSim(t)
	defer s.Close()

	invalid := []int{0, -1, 11, 42}
	for _, slot := range invalid {
		before := len(sim.written)

		err := s.RecallFromMemory(slot)
		var valErr *ValidationError
		if !errors.As(err, &valErr) {
			t.Errorf("Expected ValidationError recalling slot %d, got %v", slot, err)
		}

		err = s.SaveToMemory(slot)
		if !errors.As(err, &valErr) {
			t.Errorf("Expected ValidationError saving slot %d, got %v", slot, err)
		}

		if len(sim.written) != before {
			t.Errorf("Expected no bytes sent for invalid slot %d", slot)
		}
	}
}

func TestMemorySaveRecallRoundTrip(t *testing.T) {
	s, _ := openSim(t)
	defer s.Close()

	if err := s.SetOutputVoltage(12.5); err != nil {
		t.Fatalf("SetOutputVoltage failed: %v", err)
	}
	if err := s.SetOutputCurrent(1.25); err != nil {
		t.Fatalf("SetOutputCurrent failed: %v", err)
	}
	if err := s.SaveToMemory(3); err != nil {
		t.Fatalf("SaveToMemory failed: %v", err)
	}

	// Clobber the live setpoints, then recall the slot.
	if err := s.SetOutputVoltage(1); err != nil {
		t.Fatalf("SetOutputVoltage failed: %v", err)
	}
	if err := s.SetOutputCurrent(0.1); err != nil {
		t.Fatalf("SetOutputCurrent failed: %v", err)
	}
	if err := s.RecallFromMemory(3); err != nil {
		t.Fatalf("RecallFromMemory failed: %v", err)
	}

	v, err := s.OutputVoltage()
	if err != nil {
		t.Fatalf("OutputVoltage failed: %v", err)
	}
	if math.Abs(v-12.5) > 0.001 {
		t.Errorf("Expected recalled voltage 12.5, got %g", v)
	}
	a, err := s.OutputCurrent()
	if err != nil {
		t.Fatalf("OutputCurrent failed: %v", err)
	}
	if math.Abs(a-1.25) > 0.001 {
		t.Errorf("Expected recalled current 1.25, got %g", a)
	}
}

func TestEnableOutputCoherence(t *testing.T) {
	s, _ := openSim(t)
	defer s.Close()

	// Exercise every transition from both prior states.
	states := []bool{true, true, false, false, true, false}
	for _, want := range states {
		if err := s.EnableOutput(want); err != nil {
			t.Fatalf("EnableOutput(%v) failed: %v", want, err)
		}
		got, err := s.OutputEnabled()
		if err != nil {
			t.Fatalf("OutputEnabled failed: %v", err)
		}
		if got != want {
			t.Errorf("Expected output enabled %v, got %v", want, got)
		}
	}
}

func TestEnableOutputFailureLeavesCacheUntouched(t *testing.T) {
	s, sim := openSim(t)
	defer s.Close()

	if err := s.EnableOutput(true); err != nil {
		t.Fatalf("EnableOutput failed: %v", err)
	}
	if !s.outputKnown || !s.outputOn {
		t.Fatal("Expected cached output state true after acknowledged enable")
	}

	sim.silent = true
	err := s.EnableOutput(false)
	if err == nil {
		t.Fatal("Expected error when acknowledgement is lost")
	}
	if !s.outputOn {
		t.Error("Expected cached output state unchanged after failed disable")
	}
}

func TestQueryTimeoutIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		call func(*Session) error
	}{
		{"Identification", func(s *Session) error { _, err := s.Identification(); return err }},
		{"OutputVoltage", func(s *Session) error { _, err := s.OutputVoltage(); return err }},
		{"OutputCurrent", func(s *Session) error { _, err := s.OutputCurrent(); return err }},
		{"OutputEnabled", func(s *Session) error { _, err := s.OutputEnabled(); return err }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, sim := openSim(t)
			defer s.Close()
			sim.silent = true

			err := test.call(s)
			if err == nil {
				t.Fatal("Expected error from silent instrument")
			}
			var connErr *ConnectionError
			if !errors.As(err, &connErr) {
				t.Errorf("Expected ConnectionError, got %T: %v", err, err)
			}
			var protoErr *ProtocolError
			if errors.As(err, &protoErr) {
				t.Errorf("Expected no ProtocolError for a timeout, got %v", err)
			}
			if !errors.Is(err, ErrTimeout) {
				t.Errorf("Expected error to wrap ErrTimeout, got %v", err)
			}
		})
	}
}

func TestMissingAckIsProtocolError(t *testing.T) {
	s, sim := openSim(t)
	defer s.Close()
	sim.silent = true

	err := s.SetOutputVoltage(5)
	if err == nil {
		t.Fatal("Expected error when acknowledgement is lost")
	}
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Errorf("Expected ProtocolError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrMissingAck) {
		t.Errorf("Expected error to wrap ErrMissingAck, got %v", err)
	}
}

func TestMalformedNumericReplyIsProtocolError(t *testing.T) {
	s, sim := openSim(t)
	defer s.Close()

	sim.replyWith[":MEAS:VOLT? CH1"] = "garbage"
	_, err := s.OutputVoltage()
	if err == nil {
		t.Fatal("Expected error for non-numeric reply")
	}
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("Expected ProtocolError, got %T: %v", err, err)
	}
	if protoErr.Reply != "garbage" {
		t.Errorf("Expected offending reply preserved, got %q", protoErr.Reply)
	}

	// The session stays usable for the next exchange.
	delete(sim.replyWith, ":MEAS:VOLT? CH1")
	if _, err := s.OutputVoltage(); err != nil {
		t.Errorf("Expected session usable after protocol error, got %v", err)
	}
}

func TestEmptyReplyIsProtocolError(t *testing.T) {
	s, sim := openSim(t)
	defer s.Close()

	sim.replyWith["*IDN?"] = ""
	_, err := s.Identification()
	if err == nil {
		t.Fatal("Expected error for empty reply")
	}
	if !errors.Is(err, ErrEmptyReply) {
		t.Errorf("Expected error to wrap ErrEmptyReply, got %v", err)
	}
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Errorf("Expected ProtocolError, got %T: %v", err, err)
	}
}

func TestRejectedAckReplyIsProtocolError(t *testing.T) {
	s, sim := openSim(t)
	defer s.Close()

	sim.replyWith[":VOLT 5.000"] = "ERR"
	err := s.SetOutputVoltage(5)
	if err == nil {
		t.Fatal("Expected error for rejected command")
	}
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("Expected ProtocolError, got %T: %v", err, err)
	}
	if protoErr.Reply != "ERR" {
		t.Errorf("Expected offending reply ERR, got %q", protoErr.Reply)
	}
	if !errors.Is(err, ErrUnexpectedReply) {
		t.Errorf("Expected error to wrap ErrUnexpectedReply, got %v", err)
	}
}

func TestOutputStateUnexpectedReply(t *testing.T) {
	s, sim := openSim(t)
	defer s.Close()

	sim.replyWith[":OUTP:STAT? CH1"] = "MAYBE"
	_, err := s.OutputEnabled()
	if !errors.Is(err, ErrUnexpectedReply) {
		t.Errorf("Expected error to wrap ErrUnexpectedReply, got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, sim := openSim(t)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if sim.closeCount != 1 {
		t.Errorf("Expected one transport close, got %d", sim.closeCount)
	}
	if last := sim.written[len(sim.written)-1]; last != ":SYST:LOC" {
		t.Errorf("Expected :SYST:LOC before close, got %q", last)
	}

	written := len(sim.written)
	if err := s.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
	if sim.closeCount != 1 {
		t.Errorf("Expected no duplicate transport close, got %d", sim.closeCount)
	}
	if len(sim.written) != written {
		t.Error("Expected no bytes sent by second Close")
	}
}

func TestOperationsAfterCloseFail(t *testing.T) {
	s, _ := openSim(t)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := s.OutputVoltage()
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Expected error to wrap ErrSessionClosed, got %v", err)
	}
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("Expected ConnectionError, got %T: %v", err, err)
	}
}

func TestSetBaudRate(t *testing.T) {
	s, sim := openSim(t)
	defer s.Close()

	if err := s.SetBaudRate(115200); err != nil {
		t.Fatalf("SetBaudRate failed: %v", err)
	}

	found := false
	for _, line := range sim.written {
		if line == ":SYST:COMM:RS232:BAUD 115200" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected baud command on the wire, got %v", sim.written)
	}
	if len(sim.baudChanges) != 1 || sim.baudChanges[0] != 115200 {
		t.Errorf("Expected transport reconfigured to 115200, got %v", sim.baudChanges)
	}
}

func TestSetBaudRateUnsupported(t *testing.T) {
	s, sim := openSim(t)
	defer s.Close()

	before := len(sim.written)
	err := s.SetBaudRate(12345)
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("Expected ValidationError, got %T: %v", err, err)
	}
	if len(sim.written) != before {
		t.Error("Expected no bytes sent for unsupported baud rate")
	}
	if len(sim.baudChanges) != 0 {
		t.Errorf("Expected no transport reconfiguration, got %v", sim.baudChanges)
	}
}

func TestOpenNonExistentDevice(t *testing.T) {
	_, err := Open("/dev/nonexistent")
	if err == nil {
		t.Fatal("Expected error when opening non-existent device")
	}
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("Expected ConnectionError, got %T: %v", err, err)
	}
}

func TestWithSessionOpenFailure(t *testing.T) {
	called := false
	err := WithSession("/dev/nonexistent", func(s *Session) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("Expected error when opening non-existent device")
	}
	if called {
		t.Error("Expected fn not to run when open fails")
	}
}
