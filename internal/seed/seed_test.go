package seed

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/outreach/internal/state"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestBuiltin(t *testing.T) {
	snap, err := Load("", now)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Accounts) != 3 || len(snap.Templates) != 3 || len(snap.Prompts) != 2 ||
		len(snap.Campaigns) != 2 || len(snap.Messages) != 50 {
		t.Fatalf("counts = %d/%d/%d/%d/%d", len(snap.Accounts), len(snap.Templates),
			len(snap.Prompts), len(snap.Campaigns), len(snap.Messages))
	}

	john, _ := snap.Account("acc-1")
	if john.SentToday != 23 || john.Settings.LastSentAt == nil ||
		!john.Settings.LastSentAt.Equal(now.Add(-time.Hour)) {
		t.Errorf("acc-1 = %+v", john)
	}
	mike, _ := snap.Account("acc-3")
	if mike.Status != state.AccountRateLimited || mike.Settings.RespectQuietHours {
		t.Errorf("acc-3 = %+v", mike)
	}

	cmp, _ := snap.Campaign("cmp-1")
	if cmp.Status != state.CampaignRunning || cmp.QueuedCount != 110 || cmp.StartedAt == nil {
		t.Errorf("cmp-1 = %+v", cmp)
	}

	tpl := snap.Templates[0]
	if !strings.HasPrefix(tpl.Body, "Hi {{firstName}},") {
		t.Errorf("template body = %q", tpl.Body)
	}
}

func TestBatchMessagesUseCampaignAccounts(t *testing.T) {
	snap, err := Load("", now)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range snap.Messages {
		c, ok := snap.Campaign(m.CampaignID)
		if !ok {
			t.Fatalf("message %s references unknown campaign", m.ID)
		}
		found := false
		for _, id := range c.AccountIDs {
			found = found || id == m.AccountID
		}
		if !found {
			t.Errorf("message %s uses account %s outside campaign %s", m.ID, m.AccountID, c.ID)
		}
		if m.Status == state.MessageSending {
			t.Errorf("message %s seeded as sending", m.ID)
		}
		if (m.Status == state.MessageSent) != (m.SentAt != nil) {
			t.Errorf("message %s status %s sentAt %v", m.ID, m.Status, m.SentAt)
		}
	}

	first := snap.Messages[0]
	if first.ID != "msg-1" || first.RecipientName != "Contact 1" || first.Status != state.MessageSent {
		t.Errorf("first message = %+v", first)
	}
	if fourth := snap.Messages[3]; fourth.ErrorMessage != "Rate limit exceeded" {
		t.Errorf("fourth message = %+v", fourth)
	}
	if m := snap.Messages[30]; m.ID != "msg-31" || m.CampaignID != "cmp-2" {
		t.Errorf("message 31 = %+v", m)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.toml")
	content := `
[[accounts]]
id = "a"
handle = "solo"
display_name = "Solo"
daily_limit = 5

[[campaigns]]
id = "c"
name = "Only"
account_ids = ["a"]
target_count = 2

[[message_batches]]
campaign_id = "c"
first = 1
count = 2
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	snap, err := Load(path, now)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.Accounts[0].Status != state.AccountConnected {
		t.Errorf("status = %q, want connected", snap.Accounts[0].Status)
	}
	if snap.Campaigns[0].Status != state.CampaignDraft {
		t.Errorf("campaign status = %q, want draft", snap.Campaigns[0].Status)
	}
	if len(snap.Messages) != 2 || snap.Messages[1].Status != state.MessageQueued {
		t.Errorf("messages = %+v", snap.Messages)
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"unknown key": "[[accounts]]\nid = \"a\"\nhandle = \"x\"\ncolour = \"red\"\n",
		"missing account": "[[campaigns]]\nid = \"c\"\nname = \"C\"\naccount_ids = [\"nope\"]\n",
		"missing campaign": "[[message_batches]]\ncampaign_id = \"nope\"\ncount = 1\n",
		"sending status": "[[accounts]]\nid = \"a\"\nhandle = \"x\"\ndaily_limit = 1\n" +
			"[[campaigns]]\nid = \"c\"\nname = \"C\"\naccount_ids = [\"a\"]\n" +
			"[[message_batches]]\ncampaign_id = \"c\"\ncount = 1\nstatuses = [\"sending\"]\n",
		"duplicate handle": "[[accounts]]\nid = \"a\"\nhandle = \"x\"\n[[accounts]]\nid = \"b\"\nhandle = \"x\"\n",
		"bad toml": "[[accounts]\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(content), now); err == nil {
				t.Error("Parse() expected error")
			}
		})
	}

	_, err := Parse([]byte("[[campaigns]]\nid = \"c\"\nname = \"C\"\naccount_ids = [\"nope\"]\n"), now)
	if !errors.Is(err, state.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml"), now); err == nil {
		t.Error("Load() expected error for missing file")
	}
}
