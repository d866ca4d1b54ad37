// Package logging provides the structured logger shared by minfy packages and
// helpers that keep build-time secrets out of log output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

var (
	// Default logger instance
	logger *slog.Logger

	// Patterns for detecting sensitive data
	sensitivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(password|secret|token|key|auth)[\s]*[:=][\s]*[^\s]+`),
		regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
		regexp.MustCompile(`(?i)Basic\s+[A-Za-z0-9+/]+=*`),
		regexp.MustCompile(`AKIA[0-9A-Z]{16}`), // AWS Access Key
	}

	// AWS secret keys are exactly 40 characters; longer runs such as file
	// paths are left alone. Groups 1 and 2 hold the surrounding characters.
	secretKeyPattern = regexp.MustCompile(`(^|[^0-9a-zA-Z/+=])[0-9a-zA-Z/+=]{40}($|[^0-9a-zA-Z/+=])`)

	// Key fragments that mark a value as sensitive
	sensitiveKeyParts = []string{
		"password",
		"passwd",
		"secret",
		"token",
		"key",
		"auth",
		"credential",
	}
)

// Options controls how the default logger is built.
type Options struct {
	// Debug enables debug-level output
	Debug bool

	// JSON selects the JSON handler instead of the text handler
	JSON bool

	// Writer receives log records; defaults to os.Stderr
	Writer io.Writer
}

func init() {
	Setup(Options{
		Debug: os.Getenv("MINFY_DEBUG") == "true",
		JSON:  os.Getenv("MINFY_LOG_FORMAT") == "json",
	})
}

// Setup replaces the default logger according to opts.
// Stdout is left to user-facing command output.
func Setup(opts Options) {
	handlerOpts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if opts.Debug {
		handlerOpts.Level = slog.LevelDebug
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	if opts.JSON {
		logger = slog.New(slog.NewJSONHandler(w, handlerOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(w, handlerOpts))
	}
}

// SanitizeString removes or masks sensitive data from strings
func SanitizeString(s string) string {
	sanitized := s
	for _, pattern := range sensitivePatterns {
		sanitized = pattern.ReplaceAllStringFunc(sanitized, func(match string) string {
			// Keep the key, drop the value
			parts := strings.SplitN(match, ":", 2)
			if len(parts) == 2 {
				return parts[0] + ": [REDACTED]"
			}
			parts = strings.SplitN(match, "=", 2)
			if len(parts) == 2 {
				return parts[0] + "=[REDACTED]"
			}
			return "[REDACTED]"
		})
	}
	return secretKeyPattern.ReplaceAllString(sanitized, "${1}[REDACTED]${2}")
}

// IsSensitiveKey reports whether a variable or field name looks like it holds a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// SanitizeVars returns a copy of vars safe to log: values of sensitive
// names are redacted and the rest pass through SanitizeString.
func SanitizeVars(vars map[string]string) map[string]string {
	sanitized := make(map[string]string, len(vars))
	for k, v := range vars {
		if IsSensitiveKey(k) {
			sanitized[k] = "[REDACTED]"
		} else {
			sanitized[k] = SanitizeString(v)
		}
	}
	return sanitized
}

// Info logs an informational message
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}
