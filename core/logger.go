package core

import "log"

// Logger is any leveled logging service.
// Implementations may inspect args for well-known types (error, user identity)
// and forward them to an error-reporting backend.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// StdLogger is a plain stdlib-backed Logger for CLIs and tests.
type StdLogger struct {
	std *log.Logger
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger) *StdLogger {
	return &StdLogger{std: std}
}

func (l StdLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l StdLogger) Enable(bool) {}

func (l StdLogger) Debug(msg string, args ...interface{}) { l.print(msg, args) }

func (l StdLogger) Info(msg string, args ...interface{}) { l.print(msg, args) }

func (l StdLogger) Warn(msg string, args ...interface{}) { l.print(msg, args) }

func (l StdLogger) Error(msg string, args ...interface{}) { l.print(msg, args) }
func (l StdLogger) Fatal(msg string, args ...interface{}) {
	l.print(msg, args)
	l.std.Fatal(msg)
}
