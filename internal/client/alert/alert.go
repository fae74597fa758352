// Package alert defines the short-lived, toast-style messages the client
// surfaces to the user, and the Notifier that displays them.
package alert

import (
	"sync"
	"time"
)

// Level is the visual severity of an alert.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Position is where a toast is anchored on screen.
type Position string

const (
	TopRight    Position = "top-right"
	TopCenter   Position = "top-center"
	BottomRight Position = "bottom-right"
)

// DefaultDuration is how long a toast stays visible unless overridden.
const DefaultDuration = 3 * time.Second

// Alert is a transient user-facing message.
type Alert struct {
	Level    Level
	Message  string
	Position Position
	Duration time.Duration
}

// Notifier displays alerts. Implementations must not block for the
// lifetime of the toast.
type Notifier interface {
	Notify(a Alert)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(a Alert)

func (f NotifierFunc) Notify(a Alert) { f(a) }

// Info, Success, Warning and Error build alerts with the default placement.
func Info(msg string) Alert    { return Alert{Level: LevelInfo, Message: msg, Position: TopRight, Duration: DefaultDuration} }
func Success(msg string) Alert { return Alert{Level: LevelSuccess, Message: msg, Position: TopRight, Duration: DefaultDuration} }
func Warning(msg string) Alert { return Alert{Level: LevelWarning, Message: msg, Position: TopRight, Duration: DefaultDuration} }
func Error(msg string) Alert   { return Alert{Level: LevelError, Message: msg, Position: TopRight, Duration: DefaultDuration} }

// Recorder is a Notifier that keeps every alert it receives.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *Recorder) Notify(a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

// Alerts returns a copy of the recorded alerts.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}

// Len returns the number of recorded alerts.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

// Reset drops all recorded alerts.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = nil
}
