package logging

import (
	"log/slog"
)

type LogCode string

const (
	// SYSTEM EVENTS (SYSTEM*)
	SYSTEM LogCode = "SYSTEM"

	// ENTITY OPERATIONS (ENTITY*)
	ENTITY_CREATE LogCode = "ENTITY_CREATE"
	ENTITY_UPDATE LogCode = "ENTITY_UPDATE"
	ENTITY_DELETE LogCode = "ENTITY_DELETE"

	// TREE OPERATIONS
	TREE_QUERY LogCode = "TREE_QUERY"

	// SEED OPERATIONS
	SEED_INSERT LogCode = "SEED_INSERT"
	SEED_REMOVE LogCode = "SEED_REMOVE"

	// ISSUE LINKING
	ISSUE_LINK   LogCode = "ISSUE_LINK"
	ISSUE_UNLINK LogCode = "ISSUE_UNLINK"
)

// VictoriaLogs has fixed field name for time (_time) and message(_msg). This function maps fields msg -> _msg and time -> _time.
func convertKeysToVictoriaLogs(keys []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{Key: "_time", Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05"))}
	}
	if a.Key == slog.MessageKey {
		return slog.Attr{Key: "_msg", Value: a.Value}
	}
	return a
}

func GetVictoriaLogsOptions(addSource bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: convertKeysToVictoriaLogs,
		AddSource:   addSource,
	}
}
