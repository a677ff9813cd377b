// Package logging configures the process-wide logrus logger and provides
// the checkpoint/communication helpers used throughout the three
// services, mirroring the original implementation's log_checkpoint and
// log_communication functions (common.cpp) but backed by a real
// structured-logging library instead of hand-rolled timestamp formatting.
package logging

import (
	"os"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup configures the default logrus logger the way the teacher's
// main.go configures its own: full timestamps, text formatter, level
// selectable via an environment variable so operators don't need a
// rebuild to get debug output.
func Setup(module string) *log.Entry {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	log.SetOutput(os.Stderr)

	level := log.InfoLevel
	if raw := os.Getenv("ARCADE_LOG_LEVEL"); raw != "" {
		if parsed, err := log.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	log.SetLevel(level)

	return log.WithField("module", module)
}

// Checkpoint logs a single lifecycle event with optional structured
// detail fields, the Go analogue of log_checkpoint(module, checkpoint,
// details).
func Checkpoint(logger *log.Entry, checkpoint string, fields log.Fields) {
	entry := logger.WithField("checkpoint", checkpoint)
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Info("checkpoint")
}

// sensitiveKeys lists the key=value fields that get masked before a
// communication log line is emitted, mirroring sanitize_payload's
// mask_key calls.
var sensitiveKeys = []string{"pass", "password", "token", "auth", "secret"}

var kvPattern = regexp.MustCompile(`(?i)\b(pass|password|token|auth|secret)=\S+`)

// Sanitize masks sensitive key=value pairs in a protocol frame body before
// it is logged, and truncates very long bodies, matching sanitize_payload
// in the original common.cpp.
func Sanitize(body string) string {
	sanitized := kvPattern.ReplaceAllStringFunc(body, func(match string) string {
		for _, key := range sensitiveKeys {
			prefix := key + "="
			if strings.HasPrefix(strings.ToLower(match), prefix) {
				return match[:len(prefix)] + "***"
			}
		}
		return match
	})

	sanitized = maskPositional(sanitized, "REGISTER")
	sanitized = maskPositional(sanitized, "LOGIN")

	const limit = 240
	if len(sanitized) > limit {
		head := limit - 20
		sanitized = sanitized[:head] + "...<truncated>"
	}
	return sanitized
}

// maskPositional redacts the trailing password argument of space-separated
// commands like "LOGIN alice pw1" -> "LOGIN alice ***", for protocols that
// pass credentials positionally rather than as key=value pairs.
func maskPositional(body, command string) string {
	if !strings.HasPrefix(body, command+" ") {
		return body
	}
	fields := strings.Fields(body)
	if len(fields) < 2 {
		return body
	}
	if len(fields) >= 3 {
		return fields[0] + " " + fields[1] + " ***"
	}
	return body
}

// Communication logs one direction of wire traffic with its payload
// sanitized, the Go analogue of log_communication(module, direction,
// peer, payload).
func Communication(logger *log.Entry, direction, peer, payload string) {
	logger.WithFields(log.Fields{
		"direction": direction,
		"peer":      peer,
	}).Debugf("comm body=%s", Sanitize(payload))
}
