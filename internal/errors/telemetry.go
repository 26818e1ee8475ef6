// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	telemetryMu             sync.RWMutex
	globalTelemetryReporter TelemetryReporter
)

// SetTelemetryReporter installs the global telemetry reporter. Passing nil disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()
	globalTelemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	telemetryMu.RLock()
	defer telemetryMu.RUnlock()
	return globalTelemetryReporter
}

func reportToTelemetry(ee *EnhancedError) {
	reporter := GetTelemetryReporter()
	if reporter == nil || !reporter.IsEnabled() {
		return
	}
	// Bad client input is answered, not alerted on
	switch ee.Category {
	case CategoryValidation, CategoryNotFound:
		return
	}
	reporter.ReportError(ee)
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// InitSentry configures the Sentry SDK and returns a reporter bound to it.
func InitSentry(dsn, environment, release string) (*SentryReporter, error) {
	if dsn == "" {
		return &SentryReporter{enabled: false}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: false,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			event.Message = ScrubMessage(event.Message)
			for i := range event.Exception {
				event.Exception[i].Value = ScrubMessage(event.Exception[i].Value)
			}
			return event
		},
	})
	if err != nil {
		return nil, New(fmt.Errorf("sentry init: %w", err)).
			Category(CategoryConfiguration).
			Component("telemetry").
			Build()
	}
	return &SentryReporter{enabled: true}, nil
}

// NewSentryReporter creates a reporter without initialising the SDK.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr != nil && sr.enabled
}

// ReportError reports an enhanced error to Sentry with privacy protection
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.IsEnabled() || ee.IsReported() {
		return
	}

	message := ScrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.GetMessage()))

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.Category))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = ScrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetLevel(levelFor(ee.Category))
		scope.SetFingerprint([]string{ee.GetComponent(), string(ee.Category)})
		sentry.CaptureMessage(message)
	})

	ee.MarkReported()
}

// Flush waits for buffered events to be delivered.
func (sr *SentryReporter) Flush(timeout time.Duration) bool {
	if !sr.IsEnabled() {
		return true
	}
	return sentry.Flush(timeout)
}

func levelFor(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryEmbeddingTransport, CategoryTimeout, CategoryEmbeddingQuota, CategoryBothMethodsFailed:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var scrubPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(https?://[^?\s]+)\?\S*`), "$1?[REDACTED]"},
	{regexp.MustCompile(`(?i)bearer\s+\S+`), "Bearer [REDACTED]"},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|auth)[=:]\S+`), "[API_KEY_REDACTED]"},
	{regexp.MustCompile(`sk-[A-Za-z0-9_\-]{8,}`), "[API_KEY_REDACTED]"},
}

// ScrubMessage removes API keys, bearer tokens and query strings from a message.
func ScrubMessage(message string) string {
	for _, p := range scrubPatterns {
		message = p.re.ReplaceAllString(message, p.repl)
	}
	return message
}
