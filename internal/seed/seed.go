// Package seed builds the initial workspace state from a TOML file.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/outreach/internal/config"
	"github.com/matheus3301/outreach/internal/state"
)

//go:embed seed.toml
var builtin []byte

const (
	messageSpacing = 5 * time.Minute
	sentSpacing    = time.Minute
	failedReason   = "Rate limit exceeded"
)

// File is the on-disk seed format.
type File struct {
	Accounts       []Account  `toml:"accounts"`
	Templates      []Template `toml:"templates"`
	Prompts        []Prompt   `toml:"prompts"`
	Campaigns      []Campaign `toml:"campaigns"`
	MessageBatches []Batch    `toml:"message_batches"`
}

type Account struct {
	ID                string          `toml:"id"`
	Handle            string          `toml:"handle"`
	DisplayName       string          `toml:"display_name"`
	PhoneNumber       string          `toml:"phone_number"`
	Status            string          `toml:"status"`
	DailyLimit        int             `toml:"daily_limit"`
	SentToday         int             `toml:"sent_today"`
	DelaySeconds      int             `toml:"delay_seconds"`
	ActiveTemplateID  string          `toml:"active_template_id"`
	ActivePromptID    string          `toml:"active_prompt_id"`
	RespectQuietHours bool            `toml:"respect_quiet_hours"`
	LastSentAgo       config.Duration `toml:"last_sent_ago"` // zero = never sent
}

type Template struct {
	ID        string    `toml:"id"`
	Title     string    `toml:"title"`
	Body      string    `toml:"body"`
	IsActive  bool      `toml:"is_active"`
	IsDefault bool      `toml:"is_default"`
	CreatedAt time.Time `toml:"created_at"`
}

type Prompt struct {
	ID           string    `toml:"id"`
	Title        string    `toml:"title"`
	SystemPrompt string    `toml:"system_prompt"`
	IsActive     bool      `toml:"is_active"`
	IsDefault    bool      `toml:"is_default"`
	CreatedAt    time.Time `toml:"created_at"`
}

type Campaign struct {
	ID          string     `toml:"id"`
	Name        string     `toml:"name"`
	Status      string     `toml:"status"`
	AccountIDs  []string   `toml:"account_ids"`
	TemplateID  string     `toml:"template_id"`
	PromptID    string     `toml:"prompt_id"`
	TargetCount int        `toml:"target_count"`
	SentCount   int        `toml:"sent_count"`
	FailedCount int        `toml:"failed_count"`
	QueuedCount int        `toml:"queued_count"`
	CreatedAt   time.Time  `toml:"created_at"`
	StartedAt   *time.Time `toml:"started_at"`
	EndedAt     *time.Time `toml:"ended_at"`
}

// Batch generates Count messages numbered from First.
type Batch struct {
	CampaignID string   `toml:"campaign_id"`
	First      int      `toml:"first"`
	Count      int      `toml:"count"`
	Statuses   []string `toml:"statuses"`
}

// Load reads the seed at path, or the built-in demo data when path is empty,
// and resolves it into a snapshot relative to now.
func Load(path string, now time.Time) (state.Snapshot, error) {
	data := builtin
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return state.Snapshot{}, fmt.Errorf("read seed: %w", err)
		}
	}
	return Parse(data, now)
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(data []byte, now time.Time) (state.Snapshot, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("decode seed: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return state.Snapshot{}, fmt.Errorf("seed: unknown keys %s", strings.Join(keys, ", "))
	}
	return f.Snapshot(now)
}

// Snapshot converts f into state, checking cross references.
func (f *File) Snapshot(now time.Time) (state.Snapshot, error) {
	var snap state.Snapshot

	handles := make(map[string]bool)
	for _, a := range f.Accounts {
		if a.ID == "" || a.Handle == "" {
			return snap, fmt.Errorf("seed: account needs id and handle")
		}
		if handles[a.Handle] {
			return snap, fmt.Errorf("seed: %w: @%s", state.ErrDuplicateHandle, a.Handle)
		}
		handles[a.Handle] = true
		acc := state.Account{
			ID:          a.ID,
			Handle:      a.Handle,
			DisplayName: a.DisplayName,
			PhoneNumber: a.PhoneNumber,
			Status:      state.AccountStatus(a.Status),
			DailyLimit:  a.DailyLimit,
			SentToday:   min(a.SentToday, a.DailyLimit),
			Settings: state.AccountSettings{
				DelaySeconds:      a.DelaySeconds,
				ActiveTemplateID:  a.ActiveTemplateID,
				ActivePromptID:    a.ActivePromptID,
				RespectQuietHours: a.RespectQuietHours,
			},
		}
		if acc.Status == "" {
			acc.Status = state.AccountConnected
		}
		if a.LastSentAgo.Duration > 0 {
			t := now.Add(-a.LastSentAgo.Duration)
			acc.Settings.LastSentAt = &t
		}
		snap.Accounts = append(snap.Accounts, acc)
	}

	for _, t := range f.Templates {
		snap.Templates = append(snap.Templates, state.Template{
			ID: t.ID, Title: t.Title, Body: t.Body,
			IsActive: t.IsActive, IsDefault: t.IsDefault, CreatedAt: t.CreatedAt,
		})
	}
	for _, p := range f.Prompts {
		snap.Prompts = append(snap.Prompts, state.Prompt{
			ID: p.ID, Title: p.Title, SystemPrompt: p.SystemPrompt,
			IsActive: p.IsActive, IsDefault: p.IsDefault, CreatedAt: p.CreatedAt,
		})
	}

	for _, c := range f.Campaigns {
		for _, id := range c.AccountIDs {
			if _, ok := snap.Account(id); !ok {
				return snap, fmt.Errorf("seed: campaign %s: account %s: %w", c.ID, id, state.ErrNotFound)
			}
		}
		status := state.CampaignStatus(c.Status)
		if status == "" {
			status = state.CampaignDraft
		}
		snap.Campaigns = append(snap.Campaigns, state.Campaign{
			ID: c.ID, Name: c.Name, Status: status,
			TemplateID: c.TemplateID, PromptID: c.PromptID, AccountIDs: c.AccountIDs,
			TargetCount: c.TargetCount, SentCount: c.SentCount,
			QueuedCount: c.QueuedCount, FailedCount: c.FailedCount,
			CreatedAt: c.CreatedAt, StartedAt: c.StartedAt, EndedAt: c.EndedAt,
		})
	}

	for _, b := range f.MessageBatches {
		msgs, err := b.expand(&snap, now)
		if err != nil {
			return snap, err
		}
		snap.Messages = append(snap.Messages, msgs...)
	}
	return snap, nil
}

func (b Batch) expand(snap *state.Snapshot, now time.Time) ([]state.Message, error) {
	c, ok := snap.Campaign(b.CampaignID)
	if !ok {
		return nil, fmt.Errorf("seed: batch campaign %s: %w", b.CampaignID, state.ErrNotFound)
	}
	if len(c.AccountIDs) == 0 {
		return nil, fmt.Errorf("seed: batch campaign %s has no accounts", c.ID)
	}
	statuses := b.Statuses
	if len(statuses) == 0 {
		statuses = []string{string(state.MessageQueued)}
	}

	out := make([]state.Message, 0, b.Count)
	for i := range b.Count {
		n := b.First + i
		status := state.MessageStatus(statuses[i%len(statuses)])
		m := state.Message{
			ID:               fmt.Sprintf("msg-%d", n),
			CampaignID:       c.ID,
			AccountID:        c.AccountIDs[i%len(c.AccountIDs)],
			RecipientName:    fmt.Sprintf("Contact %d", n),
			RecipientCompany: fmt.Sprintf("Company %d", n),
			Status:           status,
			ScheduledFor:     now.Add(time.Duration(n-1) * messageSpacing),
		}
		switch status {
		case state.MessageSent:
			t := now.Add(-time.Duration(n-1) * sentSpacing)
			m.SentAt = &t
		case state.MessageFailed:
			m.ErrorMessage = failedReason
		case state.MessageQueued:
		default:
			return nil, fmt.Errorf("seed: batch campaign %s: status %q cannot be seeded", c.ID, status)
		}
		out = append(out, m)
	}
	return out, nil
}
