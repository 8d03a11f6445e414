package dp700

import (
	"strconv"
	"strings"
)

// commandKind identifies one instrument operation on the wire.
type commandKind int

const (
	cmdIdentify commandKind = iota
	cmdSetVoltage
	cmdMeasureVoltage
	cmdVoltageSetpoint
	cmdSetCurrent
	cmdMeasureCurrent
	cmdCurrentSetpoint
	cmdMeasurePower
	cmdEnableOutput
	cmdDisableOutput
	cmdQueryOutput
	cmdRecallMemory
	cmdSaveMemory
	cmdSetBaud
	cmdLocalControl
)

// replyShape is what a command expects back on the reply line.
type replyShape int

const (
	expectAck replyShape = iota
	expectText
	expectNumber
	expectOnOff
)

// ackToken is the acknowledgement line for commands that carry no data
// in their reply.
const ackToken = "OK"

// command is one outgoing request: an operation kind plus its optional
// argument. Value object, consumed by a single exchange.
type command struct {
	kind  commandKind
	value float64
	slot  int
	baud  int
}

// encode serializes the command into its wire mnemonic without the line
// terminator; the transport owns framing.
func (c command) encode() string {
	switch c.kind {
	case cmdIdentify:
		return "*IDN?"
	case cmdSetVoltage:
		return ":VOLT " + formatValue(c.value)
	case cmdMeasureVoltage:
		return ":MEAS:VOLT? CH1"
	case cmdVoltageSetpoint:
		return ":VOLT?"
	case cmdSetCurrent:
		return ":CURR " + formatValue(c.value)
	case cmdMeasureCurrent:
		return ":MEAS:CURR? CH1"
	case cmdCurrentSetpoint:
		return ":CURR?"
	case cmdMeasurePower:
		return ":MEAS:POWE? CH1"
	case cmdEnableOutput:
		return ":OUTP:STAT CH1, ON"
	case cmdDisableOutput:
		return ":OUTP:STAT CH1, OFF"
	case cmdQueryOutput:
		return ":OUTP:STAT? CH1"
	case cmdRecallMemory:
		return ":MEM:LOAD RSF," + strconv.Itoa(c.slot)
	case cmdSaveMemory:
		return ":MEM:STOR RSF," + strconv.Itoa(c.slot)
	case cmdSetBaud:
		return ":SYST:COMM:RS232:BAUD " + strconv.Itoa(c.baud)
	case cmdLocalControl:
		return ":SYST:LOC"
	}
	return ""
}

// reply returns the shape the command expects back.
func (c command) reply() replyShape {
	switch c.kind {
	case cmdIdentify:
		return expectText
	case cmdMeasureVoltage, cmdMeasureCurrent, cmdMeasurePower,
		cmdVoltageSetpoint, cmdCurrentSetpoint:
		return expectNumber
	case cmdQueryOutput:
		return expectOnOff
	}
	return expectAck
}

// formatValue renders a setpoint in the plain decimal form the
// instrument expects, at millivolt/milliamp resolution.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// parseNumber decodes a numeric reply line.
func parseNumber(reply string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(reply), 64)
}

// parseOnOff decodes an output-state reply line.
func parseOnOff(reply string) (bool, error) {
	switch strings.TrimSpace(reply) {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	}
	return false, ErrUnexpectedReply
}
