package rules

import (
	"testing"
	"time"

	"github.com/matheus3301/outreach/internal/state"
)

func makeAccount(mut func(*state.Account)) state.Account {
	acc := state.Account{
		ID:          "acc-test",
		Handle:      "tester",
		DisplayName: "Tester",
		Status:      state.AccountConnected,
		DailyLimit:  10,
		Settings: state.AccountSettings{
			DelaySeconds:      60,
			RespectQuietHours: true,
		},
	}
	if mut != nil {
		mut(&acc)
	}
	return acc
}

func at(hour, min, sec int) time.Time {
	return time.Date(2025, 1, 1, hour, min, sec, 0, time.Local)
}

func TestStatusMustBeConnected(t *testing.T) {
	noon := at(12, 0, 0)
	for _, st := range []state.AccountStatus{state.AccountDisconnected, state.AccountRateLimited} {
		t.Run(string(st), func(t *testing.T) {
			acc := makeAccount(func(a *state.Account) { a.Status = st })
			if CanSend(acc, noon) {
				t.Errorf("CanSend(status=%s) = true, want false", st)
			}
			if r := Check(acc, noon); r != NotConnected {
				t.Errorf("Check = %q, want %q", r, NotConnected)
			}
		})
	}
	if !CanSend(makeAccount(nil), noon) {
		t.Error("CanSend(connected) = false, want true")
	}
}

func TestDailyLimitIsStrict(t *testing.T) {
	noon := at(12, 0, 0)
	atCap := makeAccount(func(a *state.Account) { a.SentToday = 10 })
	if CanSend(atCap, noon) {
		t.Error("CanSend at sentToday == dailyLimit = true, want false")
	}
	below := makeAccount(func(a *state.Account) { a.SentToday = 9 })
	if !CanSend(below, noon) {
		t.Error("CanSend at sentToday == dailyLimit-1 = false, want true")
	}
}

func TestQuietHours(t *testing.T) {
	tests := []struct {
		name    string
		respect bool
		now     time.Time
		want    bool
	}{
		{"23:00 respected", true, at(23, 0, 0), false},
		{"23:00 ignored", false, at(23, 0, 0), true},
		{"08:00:00 boundary", true, at(8, 0, 0), true},
		{"07:59:59", true, at(7, 59, 59), false},
		{"21:59:59", true, at(21, 59, 59), true},
		{"22:00:00 boundary", true, at(22, 0, 0), false},
		{"midnight", true, at(0, 0, 0), false},
		{"noon", true, at(12, 0, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := makeAccount(func(a *state.Account) { a.Settings.RespectQuietHours = tt.respect })
			if got := CanSend(acc, tt.now); got != tt.want {
				t.Errorf("CanSend = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsWithinQuietHoursNotRespected(t *testing.T) {
	if IsWithinQuietHours(false, at(23, 0, 0)) {
		t.Error("IsWithinQuietHours(false, 23:00) = true, want false")
	}
	if !IsWithinQuietHours(true, at(23, 0, 0)) {
		t.Error("IsWithinQuietHours(true, 23:00) = false, want true")
	}
}

func TestDelaySinceLastSend(t *testing.T) {
	last := at(12, 0, 0)
	acc := makeAccount(func(a *state.Account) {
		a.Settings.DelaySeconds = 60
		a.Settings.LastSentAt = &last
	})

	if CanSend(acc, last.Add(59*time.Second)) {
		t.Error("CanSend at T+59s = true, want false")
	}
	if r := Check(acc, last.Add(59*time.Second)); r != Delay {
		t.Errorf("Check at T+59s = %q, want %q", r, Delay)
	}
	if !CanSend(acc, last.Add(60*time.Second)) {
		t.Error("CanSend at T+60s = false, want true")
	}
	if !CanSend(acc, last.Add(61*time.Second)) {
		t.Error("CanSend at T+61s = false, want true")
	}
}

func TestNoLastSentAlwaysPassesDelay(t *testing.T) {
	acc := makeAccount(func(a *state.Account) { a.Settings.DelaySeconds = 86400 })
	if !CanSend(acc, at(12, 0, 0)) {
		t.Error("first-ever send should pass the delay rule")
	}
}

// TestRuleOrder verifies the first failing rule is reported when several fail.
func TestRuleOrder(t *testing.T) {
	last := at(23, 0, 0)
	acc := makeAccount(func(a *state.Account) {
		a.Status = state.AccountRateLimited
		a.SentToday = 10
		a.Settings.LastSentAt = &last
	})
	now := at(23, 0, 1)
	if r := Check(acc, now); r != NotConnected {
		t.Errorf("Check = %q, want %q", r, NotConnected)
	}
	acc.Status = state.AccountConnected
	if r := Check(acc, now); r != DailyLimit {
		t.Errorf("Check = %q, want %q", r, DailyLimit)
	}
	acc.SentToday = 0
	if r := Check(acc, now); r != QuietHours {
		t.Errorf("Check = %q, want %q", r, QuietHours)
	}
	acc.Settings.RespectQuietHours = false
	if r := Check(acc, now); r != Delay {
		t.Errorf("Check = %q, want %q", r, Delay)
	}
}
