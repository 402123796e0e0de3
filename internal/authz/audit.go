package authz

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/authgate/authgate/internal/logging"
)

// AuditEvent records a single forward-auth decision.
type AuditEvent struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	RouteHost string        `json:"route_host"`
	RoutePath string        `json:"route_path"`
	Decision  string        `json:"decision"` // allow, deny, upstream_error
	Reason    string        `json:"reason,omitempty"`
	Duration  time.Duration `json:"duration"`
	CacheHit  bool          `json:"cache_hit"`
	ClientIP  string        `json:"client_ip,omitempty"`
}

// AuditLoggerConfig configures an AuditLogger.
type AuditLoggerConfig struct {
	Enabled       bool
	LogAllowed    bool
	LogDenied     bool
	BufferSize    int
	FlushInterval time.Duration
}

// DefaultAuditLoggerConfig returns sensible defaults: log everything and
// buffer modestly. FlushInterval is not read; the writer goroutine writes
// each event as it arrives.
func DefaultAuditLoggerConfig() AuditLoggerConfig {
	return AuditLoggerConfig{
		Enabled:       true,
		LogAllowed:    true,
		LogDenied:     true,
		BufferSize:    1024,
		FlushInterval: time.Second,
	}
}

// AuditLogger buffers decision events and writes them asynchronously so
// that the forward-auth hot path never blocks on logging I/O.
type AuditLogger struct {
	cfg    AuditLoggerConfig
	events chan *AuditEvent
	done   chan struct{}
	once   sync.Once
}

// NewAuditLogger starts an AuditLogger's background writer goroutine.
func NewAuditLogger(cfg AuditLoggerConfig) *AuditLogger {
	a := &AuditLogger{
		cfg:    cfg,
		events: make(chan *AuditEvent, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	if cfg.Enabled {
		go a.processEvents()
	}
	return a
}

// LogDecision records a decision. Non-blocking: if the buffer is full the
// event is dropped and a warning is logged instead of stalling the
// request path.
func (a *AuditLogger) LogDecision(ctx context.Context, ev *AuditEvent) {
	if !a.cfg.Enabled {
		return
	}
	if ev.Decision == "allow" && !a.cfg.LogAllowed {
		return
	}
	if ev.Decision == "deny" && !a.cfg.LogDenied {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.RequestID == "" {
		ev.RequestID = logging.RequestIDFromContext(ctx)
	}

	select {
	case a.events <- ev:
	default:
		logging.Warn().Str("event_id", ev.ID).Msg("audit log buffer full, dropping event")
	}
}

func (a *AuditLogger) processEvents() {
	for {
		select {
		case ev := <-a.events:
			a.writeEvent(ev)
		case <-a.done:
			a.drainEvents()
			return
		}
	}
}

func (a *AuditLogger) drainEvents() {
	for {
		select {
		case ev := <-a.events:
			a.writeEvent(ev)
		default:
			return
		}
	}
}

func (a *AuditLogger) writeEvent(ev *AuditEvent) {
	logging.Info().
		Str("event_id", ev.ID).
		Str("request_id", ev.RequestID).
		Str("user_id", ev.UserID).
		Str("route_host", ev.RouteHost).
		Str("route_path", ev.RoutePath).
		Str("decision", ev.Decision).
		Str("reason", ev.Reason).
		Dur("duration", ev.Duration).
		Bool("cache_hit", ev.CacheHit).
		Str("client_ip", ev.ClientIP).
		Msg("forward-auth decision")
}

// Close stops the background writer after draining buffered events. Safe
// to call multiple times.
func (a *AuditLogger) Close() {
	a.once.Do(func() {
		close(a.done)
	})
}
