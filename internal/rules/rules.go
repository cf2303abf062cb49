// Package rules decides whether a sending account may dispatch a message.
package rules

import (
	"time"

	"github.com/matheus3301/outreach/internal/state"
)

// Quiet hours span 22:00 to 08:00 local time.
const (
	QuietStartHour = 22
	QuietEndHour   = 8
)

// Reason names the first rule an account failed. The zero value means eligible.
type Reason string

const (
	Eligible     Reason = ""
	NotConnected Reason = "not_connected"
	DailyLimit   Reason = "daily_limit"
	QuietHours   Reason = "quiet_hours"
	Delay        Reason = "delay"
)

// IsWithinQuietHours reports whether now falls in the quiet window. Always
// false when the account does not respect quiet hours.
func IsWithinQuietHours(respect bool, now time.Time) bool {
	if !respect {
		return false
	}
	h := now.Hour()
	return h >= QuietStartHour || h < QuietEndHour
}

// Check evaluates the rules in order and returns the first that fails.
func Check(acc state.Account, now time.Time) Reason {
	if acc.Status != state.AccountConnected {
		return NotConnected
	}
	if acc.SentToday >= acc.DailyLimit {
		return DailyLimit
	}
	if IsWithinQuietHours(acc.Settings.RespectQuietHours, now) {
		return QuietHours
	}
	if last := acc.Settings.LastSentAt; last != nil {
		if now.Sub(*last) < time.Duration(acc.Settings.DelaySeconds)*time.Second {
			return Delay
		}
	}
	return Eligible
}

// CanSend reports whether acc may send at now.
func CanSend(acc state.Account, now time.Time) bool {
	return Check(acc, now) == Eligible
}
