// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package record

import (
	"fmt"
	"strings"
)

// Level is the record level. Higher values are more severe.
type Level int

// Record levels.
const (
	LevelDebug    Level = 10
	LevelInfo     Level = 20
	LevelWarning  Level = 30
	LevelError    Level = 40
	LevelCritical Level = 50
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// Severity returns the syslog (RFC 5424) severity number: 2 for CRITICAL
// through 7 for DEBUG.
func (l Level) Severity() int {
	switch {
	case l >= LevelCritical:
		return 2
	case l >= LevelError:
		return 3
	case l >= LevelWarning:
		return 4
	case l >= LevelInfo:
		return 6
	default:
		return 7
	}
}

// ParseLevel parses a level name case-insensitively. "warn" and "fatal" are
// accepted as aliases.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARNING", "WARN":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "CRITICAL", "FATAL":
		return LevelCritical, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// Channel names one of the four output streams.
type Channel string

// Output channels.
const (
	ChannelApplication Channel = "application"
	ChannelAudit       Channel = "audit"
	ChannelSecurity    Channel = "security"
	ChannelPerformance Channel = "performance"
)

// Channels lists every channel in a stable order.
func Channels() []Channel {
	return []Channel{ChannelApplication, ChannelAudit, ChannelSecurity, ChannelPerformance}
}

// ParseChannel parses a channel name case-insensitively.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ChannelApplication, ChannelAudit, ChannelSecurity, ChannelPerformance:
		return c, nil
	case "":
		return ChannelApplication, nil
	default:
		return "", fmt.Errorf("unknown channel %q", s)
	}
}

// Compliance reports whether the channel carries compliance records that
// bypass level filtering and sampling.
func (c Channel) Compliance() bool {
	return c == ChannelAudit || c == ChannelSecurity
}
