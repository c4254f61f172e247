// internal/bugsink/bugsink.go
package bugsink

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

var enabled bool

// Init configures Sentry error tracking. An empty DSN disables reporting
// without failing, so local development needs no setup.
func Init(dsn, environment, component string) error {
	if dsn == "" {
		enabled = false
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Tags == nil {
				event.Tags = make(map[string]string)
			}
			event.Tags["service"] = "automation-service"
			event.Tags["component"] = component
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	enabled = true
	return nil
}

// CaptureError reports an error with optional context tags.
func CaptureError(err error, tags map[string]string) {
	if !enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush drains buffered events before shutdown.
func Flush() {
	if enabled {
		sentry.Flush(2 * time.Second)
	}
}
