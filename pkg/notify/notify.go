// Package notify is used internally by pubsubhttp to send/log operational
// events: token signer warnings, token refresh failures and exhausted
// token refresh retries. A Notifier delivers each event to the channel
// and the logger given to New, skipping whichever is nil. NewProducer and
// NewSubscriber create their notifiers with neither, and Config has no
// field for supplying a channel, so their events are not delivered.
package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/teltech/logger"
)

// Event is sent to the channel given to New, if one was supplied.
type Event struct {
	// Level is the notification level, e.g. "INFO", "WARN", "ERROR".
	Level string

	// Timestamp on the format "2006-01-02T15:04:05.000000Z".
	Timestamp string

	// Sender identifies the component emitting the event, e.g.
	// "pubsubhttp.producer", "pubsubhttp.subscriber".
	Sender string

	// Instance is a per-component instance identifier, useful when
	// several producers/subscribers run in the same process.
	Instance string

	Message string

	// Func is always provided. File and Line are added for WARN and
	// above. StackTrace is added for ERROR.
	Func       string
	File       string
	Line       int
	StackTrace string
}

// Chan is the channel type accepted by New.
type Chan chan Event

const (
	LevelInvalid = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelName = map[int]string{
	LevelInvalid: "INVALID",
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarn:    "WARN",
	LevelError:   "ERROR",
}

// LevelName returns the string name of a notification level, or "INVALID"
// if the level is unrecognized.
func LevelName(level int) string {
	name, ok := levelName[level]
	if !ok {
		name = "INVALID"
	}
	return name
}

// Notifier sends notification/log events to both an externally accessible
// channel and the log framework. Either may be nil, in which case that
// sink is skipped.
type Notifier struct {
	ch             Chan
	minNotifyLevel int
	log            *logger.Log
	callerLevel    int
	sender         string
	instance       string
}

// New creates a new Notifier. For proper values on the caller func name,
// set callerLevel to:
//
//	1 - if the notifying func is immediately above the call to Notify()
//	2 - if the notifying func is two levels above
//	... etc
//
// The minimum log level is taken from the OS env variable "LOG_LEVEL".
// If not found or invalid it defaults to "INFO". It can be overridden
// with SetNotifyLevel().
func New(ch Chan, log *logger.Log, callerLevel int, sender, instance string) *Notifier {
	return &Notifier{
		ch:             ch,
		minNotifyLevel: levelFromEnv(),
		log:            log,
		callerLevel:    callerLevel,
		sender:         sender,
		instance:       instance,
	}
}

func levelFromEnv() int {
	switch os.Getenv("LOG_LEVEL") {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (n *Notifier) SetNotifyLevel(level int) {
	n.minNotifyLevel = level
}

// Notify sends the provided message to the notification channel (if any)
// and the log framework (if any), together with additional data depending
// on notification level:
//
//	DEBUG and INFO: name of calling func
//	WARN: as INFO plus file and line number
//	ERROR: as WARN plus the full stack trace.
func (n *Notifier) Notify(level int, message string, args ...any) {
	if level < n.minNotifyLevel {
		return
	}

	msg := fmt.Sprintf(message, args...)
	event := Event{
		Sender:   n.sender,
		Instance: n.instance,
		Message:  msg,
	}
	n.sendEvent(level, event)

	if n.log == nil {
		return
	}

	const fmtstr = "[%s:%s] %s"
	switch level {
	case LevelDebug:
		n.log.Debugf(fmtstr, n.sender, n.instance, msg)
	case LevelInfo:
		n.log.Infof(fmtstr, n.sender, n.instance, msg)
	case LevelWarn:
		n.log.Warnf(fmtstr, n.sender, n.instance, msg)
	case LevelError:
		n.log.Errorf(fmtstr, n.sender, n.instance, msg)
	}
}

// sendEvent enriches the event with func/file/line/stack info and
// delivers it to the notify channel, non-blocking.
func (n *Notifier) sendEvent(level int, event Event) {
	var (
		pc             uintptr
		line           int
		file, funcName string
	)

	pc, file, line, _ = runtime.Caller(n.callerLevel + 1)
	funcName = "unknown"
	if f := runtime.FuncForPC(pc); f != nil {
		_, funcName = filepath.Split(f.Name())
	}

	event.Level = LevelName(level)
	event.Func = funcName
	event.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")

	if level >= LevelWarn {
		event.File = file
		event.Line = line
	}

	if level == LevelError {
		stackTrace := make([]byte, 1024)
		stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]
		event.StackTrace = string(stackTrace)
	}

	if n.ch == nil {
		return
	}

	select {
	case n.ch <- event:
	default:
	}
}
