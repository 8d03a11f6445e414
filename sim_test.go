package dp700

import (
	"strconv"
	"strings"
)

// simInstrument is a scripted DP700 standing in for real hardware in
// tests. Every accepted command line is recorded, and the reply the
// instrument would produce is queued for the next ReadLine.
type simInstrument struct {
	identity string
	voltage  float64
	current  float64
	output   bool
	memory   map[int][2]float64

	// Fault injection
	silent    bool              // swallow replies so reads time out
	replyWith map[string]string // per-command reply overrides
	writeErr  error

	written     []string
	replies     []string
	baudChanges []int
	closeCount  int
}

func newSimInstrument() *simInstrument {
	return &simInstrument{
		identity:  "RIGOL TECHNOLOGIES,DP711,DP8A0000001,00.01.03",
		memory:    make(map[int][2]float64),
		replyWith: make(map[string]string),
	}
}

func (m *simInstrument) WriteLine(line string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, line)
	if m.silent {
		return nil
	}
	if reply, ok := m.replyWith[line]; ok {
		m.replies = append(m.replies, reply)
		return nil
	}
	m.replies = append(m.replies, m.handle(line))
	return nil
}

func (m *simInstrument) ReadLine() (string, error) {
	if len(m.replies) == 0 {
		return "", ErrTimeout
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func (m *simInstrument) SetBaudRate(baud int) error {
	m.baudChanges = append(m.baudChanges, baud)
	return nil
}

func (m *simInstrument) Close() error {
	m.closeCount++
	return nil
}

// handle mirrors the instrument's reaction to one command line. The
// simulated measurements track the setpoints exactly.
func (m *simInstrument) handle(line string) string {
	switch {
	case line == "*IDN?":
		return m.identity
	case strings.HasPrefix(line, ":VOLT "):
		v, err := strconv.ParseFloat(strings.TrimPrefix(line, ":VOLT "), 64)
		if err != nil {
			return "ERR"
		}
		m.voltage = v
		return "OK"
	case line == ":VOLT?", line == ":MEAS:VOLT? CH1":
		return strconv.FormatFloat(m.voltage, 'f', 3, 64)
	case strings.HasPrefix(line, ":CURR "):
		a, err := strconv.ParseFloat(strings.TrimPrefix(line, ":CURR "), 64)
		if err != nil {
			return "ERR"
		}
		m.current = a
		return "OK"
	case line == ":CURR?", line == ":MEAS:CURR? CH1":
		return strconv.FormatFloat(m.current, 'f', 3, 64)
	case line == ":MEAS:POWE? CH1":
		return strconv.FormatFloat(m.voltage*m.current, 'f', 3, 64)
	case line == ":OUTP:STAT CH1, ON":
		m.output = true
		return "OK"
	case line == ":OUTP:STAT CH1, OFF":
		m.output = false
		return "OK"
	case line == ":OUTP:STAT? CH1":
		if m.output {
			return "ON"
		}
		return "OFF"
	case strings.HasPrefix(line, ":MEM:LOAD RSF,"):
		slot, err := strconv.Atoi(strings.TrimPrefix(line, ":MEM:LOAD RSF,"))
		if err != nil {
			return "ERR"
		}
		stored := m.memory[slot]
		m.voltage, m.current = stored[0], stored[1]
		return "OK"
	case strings.HasPrefix(line, ":MEM:STOR RSF,"):
		slot, err := strconv.Atoi(strings.TrimPrefix(line, ":MEM:STOR RSF,"))
		if err != nil {
			return "ERR"
		}
		m.memory[slot] = [2]float64{m.voltage, m.current}
		return "OK"
	case strings.HasPrefix(line, ":SYST:COMM:RS232:BAUD "):
		return "OK"
	case line == ":SYST:LOC":
		return "OK"
	}
	return "ERR"
}
