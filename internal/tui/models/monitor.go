package models

import (
	"context"
	"sync"
	"time"

	dp700 "github.com/allbin/go-dp700"
)

type ConnectionStatusMsg struct {
	Connected bool
	Identity  dp700.Identity
	Error     error
}

// ReadingMsg is one poll result delivered from the polling goroutine.
type ReadingMsg struct {
	Timestamp time.Time
	Voltage   float64
	Current   float64
	Power     float64
	OutputOn  bool
	Error     error
}

// ToggleResultMsg reports the outcome of an output toggle request.
type ToggleResultMsg struct {
	On    bool
	Error error
}

type MonitorModel struct {
	// Instrument session, owned by the polling goroutine
	session    *dp700.Session
	devicePath string

	// State
	connected bool
	identity  dp700.Identity
	err       error
	ready     bool
	paused    bool

	// Toggle requests from the UI to the polling goroutine
	toggleReq chan struct{}

	// Cancellation and synchronization
	cancel context.CancelFunc
	ctx    context.Context
	mu     sync.RWMutex
}

func NewMonitorModel(devicePath string) *MonitorModel {
	ctx, cancel := context.WithCancel(context.Background())

	return &MonitorModel{
		devicePath: devicePath,
		toggleReq:  make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (m *MonitorModel) GetSession() *dp700.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *MonitorModel) SetSession(session *dp700.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
}

func (m *MonitorModel) GetDevicePath() string {
	return m.devicePath
}

func (m *MonitorModel) IsConnected() bool {
	return m.connected
}

func (m *MonitorModel) SetConnected(connected bool) {
	m.connected = connected
}

func (m *MonitorModel) GetIdentity() dp700.Identity {
	return m.identity
}

func (m *MonitorModel) SetIdentity(identity dp700.Identity) {
	m.identity = identity
}

func (m *MonitorModel) GetError() error {
	return m.err
}

func (m *MonitorModel) SetError(err error) {
	m.err = err
}

func (m *MonitorModel) IsReady() bool {
	return m.ready
}

func (m *MonitorModel) SetReady(ready bool) {
	m.ready = ready
}

func (m *MonitorModel) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

func (m *MonitorModel) TogglePaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = !m.paused
	return m.paused
}

// RequestToggle asks the polling goroutine to flip the output state.
// A request is dropped when one is already pending.
func (m *MonitorModel) RequestToggle() {
	select {
	case m.toggleReq <- struct{}{}:
	default:
	}
}

func (m *MonitorModel) ToggleRequests() <-chan struct{} {
	return m.toggleReq
}

func (m *MonitorModel) GetContext() context.Context {
	return m.ctx
}

func (m *MonitorModel) Cancel() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *MonitorModel) Cleanup() {
	// Cancel context to stop goroutines
	if m.cancel != nil {
		m.cancel()
	}

	// Close the session safely; Close is idempotent so racing the
	// polling goroutine's own close is fine
	m.mu.Lock()
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
	m.mu.Unlock()
}
