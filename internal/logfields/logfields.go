package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyDailySteps   = "daily_steps"
	KeyTotalSteps   = "total_steps"
	KeyInitialCount = "initial_count"
	KeyLastDate     = "last_date"
	KeyRaw          = "raw"
	KeyCause        = "cause"
	KeyBackend      = "backend"
	KeySource       = "source"
	KeySessionID    = "session_id"
	KeyJob          = "job"
	KeyDurationMS   = "duration_ms"
	KeyError        = "error"
	KeyMethod       = "method"
	KeyPath         = "path"
	KeyStatus       = "status"
	KeyRemoteAddr   = "remote_addr"
	KeyUserAgent    = "user_agent"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func DailySteps(n uint64) slog.Attr   { return slog.Uint64(KeyDailySteps, n) }
func TotalSteps(n uint64) slog.Attr   { return slog.Uint64(KeyTotalSteps, n) }
func InitialCount(n uint64) slog.Attr { return slog.Uint64(KeyInitialCount, n) }
func LastDate(d string) slog.Attr     { return slog.String(KeyLastDate, d) }
func Raw(n uint64) slog.Attr          { return slog.Uint64(KeyRaw, n) }
func Cause(c string) slog.Attr        { return slog.String(KeyCause, c) }
func Backend(b string) slog.Attr      { return slog.String(KeyBackend, b) }
func Source(s string) slog.Attr       { return slog.String(KeySource, s) }
func SessionID(id string) slog.Attr   { return slog.String(KeySessionID, id) }
func Job(name string) slog.Attr       { return slog.String(KeyJob, name) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func UserAgent(ua string) slog.Attr   { return slog.String(KeyUserAgent, ua) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
