package form

import (
	"github.com/rs/zerolog"
)

// Status is the tone of a notification
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Notification is a transient message for the operator
type Notification struct {
	Title       string
	Description string
	Status      Status
}

// Notifier presents notifications to the operator
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(n Notification)

// Notify calls f(n)
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// LogNotifier writes notifications to a logger, for headless runs
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify logs n at info for success and error otherwise
func (l LogNotifier) Notify(n Notification) {
	event := l.Logger.Info()
	if n.Status == StatusError {
		event = l.Logger.Error()
	}
	event.Str("description", n.Description).Msg(n.Title)
}
