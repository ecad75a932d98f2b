package logging

import (
	"log/slog"
	"time"
)

// Field names shared by every log line the service emits.
const (
	FieldService    = "service"
	FieldRequestID  = "request_id"
	FieldIP         = "ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldObjectKind = "object_kind"
	FieldIssueID    = "issue_id"
	FieldPageID     = "page_id"
	FieldAction     = "action"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func RequestID(id string) slog.Attr {
	return slog.String(FieldRequestID, id)
}

func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration reports d in whole milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns an error attribute. A nil error renders as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

func ObjectKind(kind string) slog.Attr {
	return slog.String(FieldObjectKind, kind)
}

func IssueID(id string) slog.Attr {
	return slog.String(FieldIssueID, id)
}

func PageID(id string) slog.Attr {
	return slog.String(FieldPageID, id)
}

func Action(action string) slog.Attr {
	return slog.String(FieldAction, action)
}
