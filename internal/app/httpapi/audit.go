package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/R3E-Network/storefront/internal/middleware"
)

// AuditEntry records one admin action.
type AuditEntry struct {
	Time       time.Time `json:"time"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Action     string    `json:"action"`
	Target     string    `json:"target,omitempty"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	Status     int       `json:"status"`
	TraceID    string    `json:"trace_id,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
}

// AuditLog keeps the most recent admin actions and optionally appends them to a sink.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	max     int
	sink    auditSink
}

type auditSink interface {
	Write(entry AuditEntry) error
}

// NewAuditLog keeps up to max entries in memory. sink may be nil.
func NewAuditLog(max int, sink auditSink) *AuditLog {
	if max <= 0 {
		max = 200
	}
	return &AuditLog{max: max, sink: sink}
}

// add keeps entry in the ring and returns the sink's write error, if any.
func (l *AuditLog) add(entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	if l.sink == nil {
		return nil
	}
	return l.sink.Write(entry)
}

func (l *AuditLog) list() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Recent returns up to limit entries, newest first.
func (l *AuditLog) Recent(limit int) []AuditEntry {
	if limit <= 0 || limit > l.max {
		limit = l.max
	}
	all := l.list()
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all
}

// audited records the outcome of an admin action.
func (h *handler) audited(action string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		actor, _ := currentUser(r.Context())
		entry := AuditEntry{
			Time:       time.Now().UTC(),
			UserID:     actor.ID,
			Username:   actor.Username,
			Action:     action,
			Target:     targetLabel(r),
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     rec.status,
			TraceID:    middleware.GetTraceID(r.Context()),
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		}
		if err := h.audit.add(entry); err != nil {
			h.log.WithError(err).WithField("action", action).Warn("audit sink write failed")
		}
		h.log.WithFields(map[string]interface{}{
			"action":  action,
			"target":  entry.Target,
			"user_id": actor.ID,
			"status":  rec.status,
		}).Info("admin action")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// FileAuditSink appends audit entries as JSONL.
type FileAuditSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileAuditSink opens path for appending. An empty path yields a nil sink.
func NewFileAuditSink(path string) (*FileAuditSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &FileAuditSink{file: f}, nil
}

func (s *FileAuditSink) Write(entry AuditEntry) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}

// Close closes the underlying file.
func (s *FileAuditSink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}
