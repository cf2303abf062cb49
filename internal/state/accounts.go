package state

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/matheus3301/outreach/internal/bus"
)

// AccountPatch lists the fields UpdateAccount may change. Nil fields are kept.
type AccountPatch struct {
	Handle            *string        `json:"handle,omitempty"`
	DisplayName       *string        `json:"displayName,omitempty"`
	PhoneNumber       *string        `json:"phoneNumber,omitempty"`
	Status            *AccountStatus `json:"status,omitempty"`
	DailyLimit        *int           `json:"dailyLimit,omitempty"`
	DelaySeconds      *int           `json:"delaySeconds,omitempty"`
	RespectQuietHours *bool          `json:"respectQuietHours,omitempty"`
	ActiveTemplateID  *string        `json:"activeTemplateId,omitempty"`
	ActivePromptID    *string        `json:"activePromptId,omitempty"`
}

func validateAccount(a Account) error {
	if strings.TrimSpace(a.Handle) == "" {
		return fmt.Errorf("%w: handle is required", ErrInvalidInput)
	}
	if a.DailyLimit <= 0 {
		return fmt.Errorf("%w: daily limit must be positive", ErrInvalidInput)
	}
	if a.SentToday < 0 || a.SentToday > a.DailyLimit {
		return fmt.Errorf("%w: sent today must be within [0, daily limit]", ErrInvalidInput)
	}
	if a.Settings.DelaySeconds < 0 {
		return fmt.Errorf("%w: delay must not be negative", ErrInvalidInput)
	}
	switch a.Status {
	case AccountConnected, AccountRateLimited, AccountDisconnected:
	default:
		return fmt.Errorf("%w: unknown account status %q", ErrInvalidInput, a.Status)
	}
	return nil
}

// AddAccount registers a new account. An empty status defaults to connected.
func (s *Store) AddAccount(a Account) (Account, error) {
	a.Handle = strings.TrimPrefix(strings.TrimSpace(a.Handle), "@")
	if a.Status == "" {
		a.Status = AccountConnected
	}
	if err := validateAccount(a); err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	if indexOf(cur.Accounts, func(x Account) bool { return x.Handle == a.Handle }) >= 0 {
		return Account{}, fmt.Errorf("%w: @%s", ErrDuplicateHandle, a.Handle)
	}
	if a.ID == "" {
		a.ID = newID("acc")
	}
	a.Settings.LastSentAt = cloneTime(a.Settings.LastSentAt)

	next := *cur
	next.Accounts = append(slices.Clone(cur.Accounts), a)
	s.commit(&next, "account.added")
	return a, nil
}

// UpdateAccount applies p to the account with the given id.
func (s *Store) UpdateAccount(id string, p AccountPatch) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Accounts, func(x Account) bool { return x.ID == id })
	if i < 0 {
		return Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}

	a := cur.Accounts[i]
	if p.Handle != nil {
		a.Handle = strings.TrimPrefix(strings.TrimSpace(*p.Handle), "@")
		if indexOf(cur.Accounts, func(x Account) bool { return x.ID != id && x.Handle == a.Handle }) >= 0 {
			return Account{}, fmt.Errorf("%w: @%s", ErrDuplicateHandle, a.Handle)
		}
	}
	if p.DisplayName != nil {
		a.DisplayName = *p.DisplayName
	}
	if p.PhoneNumber != nil {
		a.PhoneNumber = *p.PhoneNumber
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.DailyLimit != nil {
		a.DailyLimit = *p.DailyLimit
		a.SentToday = min(a.SentToday, a.DailyLimit)
	}
	if p.DelaySeconds != nil {
		a.Settings.DelaySeconds = *p.DelaySeconds
	}
	if p.RespectQuietHours != nil {
		a.Settings.RespectQuietHours = *p.RespectQuietHours
	}
	if p.ActiveTemplateID != nil {
		a.Settings.ActiveTemplateID = *p.ActiveTemplateID
	}
	if p.ActivePromptID != nil {
		a.Settings.ActivePromptID = *p.ActivePromptID
	}
	if err := validateAccount(a); err != nil {
		return Account{}, err
	}

	next := *cur
	next.Accounts = slices.Clone(cur.Accounts)
	next.Accounts[i] = a
	s.commit(&next, "account.updated")
	return a, nil
}

// DeleteAccount removes an account. Campaigns keep referencing its id; the
// scheduler skips ids it cannot resolve.
func (s *Store) DeleteAccount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Accounts, func(x Account) bool { return x.ID == id })
	if i < 0 {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	next := *cur
	next.Accounts = slices.Delete(slices.Clone(cur.Accounts), i, i+1)
	s.commit(&next, "account.deleted")
	return nil
}

// IncrementSentToday records a successful send for the account:
// sentToday = min(dailyLimit, sentToday+1) and lastSentAt = now.
// Unknown ids are ignored.
func (s *Store) IncrementSentToday(id string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	next := *cur
	if !incrementSentToday(&next, id, now) {
		return
	}
	s.commit(&next, "account.sent_today")
}

func incrementSentToday(next *Snapshot, id string, now time.Time) bool {
	i := indexOf(next.Accounts, func(x Account) bool { return x.ID == id })
	if i < 0 {
		return false
	}
	accounts := slices.Clone(next.Accounts)
	a := accounts[i]
	a.SentToday = min(a.DailyLimit, a.SentToday+1)
	at := now
	a.Settings.LastSentAt = &at
	accounts[i] = a
	next.Accounts = accounts
	return true
}

// ResetSentToday zeroes every account's daily counter and returns how many
// accounts had a non-zero count.
func (s *Store) ResetSentToday() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	accounts := slices.Clone(cur.Accounts)
	reset := 0
	for i := range accounts {
		if accounts[i].SentToday != 0 {
			accounts[i].SentToday = 0
			reset++
		}
	}
	next := *cur
	next.Accounts = accounts
	s.commit(&next, "account.daily_reset", bus.Event{Kind: bus.KindAccountsReset, Payload: reset})
	return reset
}
