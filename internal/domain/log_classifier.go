package domain

import "strings"

// LogSeverity es la severidad inferida de una línea de log del motor.
type LogSeverity string

const (
	SeverityInfo    LogSeverity = "info"
	SeverityWarning LogSeverity = "warning"
	SeverityError   LogSeverity = "error"
)

// ClassifyLogLine clasifica una línea por heurística de subcadenas.
// El formato típico del motor es "LogCategory: Warning: mensaje".
func ClassifyLogLine(line string) LogSeverity {
	low := strings.ToLower(line)
	if strings.Contains(low, ": error:") || strings.Contains(low, " error: ") || strings.HasPrefix(low, "error:") {
		return SeverityError
	}
	if strings.Contains(low, ": warning:") || strings.Contains(low, " warning: ") || strings.HasPrefix(low, "warning:") {
		return SeverityWarning
	}
	return SeverityInfo
}
