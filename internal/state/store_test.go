package state

import (
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/outreach/internal/bus"
	"github.com/matheus3301/outreach/internal/clock"
)

var noon = time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)

func alwaysEligible(Account, time.Time) bool { return true }
func neverEligible(Account, time.Time) bool  { return false }

// fixture builds a store with one connected account, one running campaign
// targeting it and the given number of queued messages.
func fixture(t *testing.T, queued int) (*Store, Account, Campaign) {
	t.Helper()
	s := New(Snapshot{}, nil, clock.NewFake(noon))
	acc, err := s.AddAccount(Account{Handle: "john_outreach", DisplayName: "John", DailyLimit: 10})
	if err != nil {
		t.Fatal(err)
	}
	c, err := s.AddCampaign(Campaign{Name: "Q1", TemplateID: "tpl-1", AccountIDs: []string{acc.ID}, TargetCount: queued})
	if err != nil {
		t.Fatal(err)
	}
	recipients := make([]Recipient, queued)
	for i := range recipients {
		recipients[i] = Recipient{Name: "Contact", Company: "Co"}
	}
	if _, err := s.EnqueueMessages(c.ID, recipients); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Start(c.ID); !ok {
		t.Fatal("Start() was not applied")
	}
	snap := s.Snapshot()
	c, _ = snap.Campaign(c.ID)
	return s, acc, c
}

func TestAddAccountValidation(t *testing.T) {
	s := New(Snapshot{}, nil, nil)
	tests := []struct {
		name string
		acc  Account
		want error
	}{
		{"missing handle", Account{DailyLimit: 10}, ErrInvalidInput},
		{"zero limit", Account{Handle: "a"}, ErrInvalidInput},
		{"sent above limit", Account{Handle: "a", DailyLimit: 1, SentToday: 2}, ErrInvalidInput},
		{"bad status", Account{Handle: "a", DailyLimit: 1, Status: "asleep"}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.AddAccount(tt.acc); !errors.Is(err, tt.want) {
				t.Errorf("AddAccount() error = %v, want %v", err, tt.want)
			}
		})
	}

	a, err := s.AddAccount(Account{Handle: "@sarah", DailyLimit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if a.Handle != "sarah" || a.Status != AccountConnected || a.ID == "" {
		t.Errorf("account = %+v, want handle sarah, connected, id set", a)
	}
	if _, err := s.AddAccount(Account{Handle: "sarah", DailyLimit: 5}); !errors.Is(err, ErrDuplicateHandle) {
		t.Errorf("duplicate handle error = %v, want ErrDuplicateHandle", err)
	}
}

func TestIncrementSentTodayClampsAndStamps(t *testing.T) {
	s := New(Snapshot{}, nil, nil)
	a, err := s.AddAccount(Account{Handle: "a", DailyLimit: 2})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		s.IncrementSentToday(a.ID, noon.Add(time.Duration(i)*time.Minute))
	}
	snap := s.Snapshot()
	got, _ := snap.Account(a.ID)
	if got.SentToday != 2 {
		t.Errorf("sentToday = %d, want 2 (clamped)", got.SentToday)
	}
	if got.Settings.LastSentAt == nil || !got.Settings.LastSentAt.Equal(noon.Add(4*time.Minute)) {
		t.Errorf("lastSentAt = %v, want %v", got.Settings.LastSentAt, noon.Add(4*time.Minute))
	}
}

func TestCounterFloor(t *testing.T) {
	s, _, c := fixture(t, 2)
	for i := 0; i < 3; i++ {
		s.IncrementSentCount(c.ID)
	}
	for i := 0; i < 3; i++ {
		s.IncrementFailedCount(c.ID)
	}
	snap := s.Snapshot()
	got, _ := snap.Campaign(c.ID)
	if got.QueuedCount != 0 {
		t.Errorf("queuedCount = %d, want 0", got.QueuedCount)
	}
	if got.SentCount != 3 || got.FailedCount != 3 {
		t.Errorf("sent/failed = %d/%d, want 3/3", got.SentCount, got.FailedCount)
	}
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("", 16)
	defer unsub()
	s := New(Snapshot{}, b, nil)
	before := s.Snapshot()

	s.IncrementSentToday("missing", noon)
	s.IncrementSentCount("missing")
	s.IncrementFailedCount("missing")
	if _, ok := s.Start("missing"); ok {
		t.Error("Start(missing) applied")
	}
	if s.CompleteSend("missing", noon) || s.FailSend("missing", "x", noon) {
		t.Error("resolution of a missing message applied")
	}

	after := s.Snapshot()
	if len(after.Accounts) != len(before.Accounts) || len(after.Campaigns) != len(before.Campaigns) {
		t.Error("snapshot changed")
	}
	if len(ch) != 0 {
		t.Errorf("published %d events, want 0", len(ch))
	}
}

func TestCampaignLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		actions []Action
		want    CampaignStatus
		applied []bool
	}{
		{"start", []Action{ActionStart}, CampaignRunning, []bool{true}},
		{"pause resume", []Action{ActionStart, ActionPause, ActionResume}, CampaignRunning, []bool{true, true, true}},
		{"cancel running", []Action{ActionStart, ActionCancel}, CampaignCompleted, []bool{true, true}},
		{"cancel paused", []Action{ActionStart, ActionPause, ActionCancel}, CampaignCompleted, []bool{true, true, true}},
		{"cancel draft ignored", []Action{ActionCancel}, CampaignDraft, []bool{false}},
		{"pause draft ignored", []Action{ActionPause}, CampaignDraft, []bool{false}},
		{"resume running ignored", []Action{ActionStart, ActionResume}, CampaignRunning, []bool{true, false}},
		{"start twice ignored", []Action{ActionStart, ActionStart}, CampaignRunning, []bool{true, false}},
		{"terminal stays", []Action{ActionStart, ActionCancel, ActionResume, ActionStart}, CampaignCompleted, []bool{true, true, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Snapshot{}, nil, clock.NewFake(noon))
			c, err := s.AddCampaign(Campaign{Name: "c"})
			if err != nil {
				t.Fatal(err)
			}
			for i, a := range tt.actions {
				if _, ok := s.TransitionCampaign(c.ID, a); ok != tt.applied[i] {
					t.Errorf("action %d (%s) applied = %v, want %v", i, a, ok, tt.applied[i])
				}
			}
			snap := s.Snapshot()
			got, _ := snap.Campaign(c.ID)
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
		})
	}
}

func TestCampaignTimestamps(t *testing.T) {
	clk := clock.NewFake(noon)
	s := New(Snapshot{}, nil, clk)
	c, _ := s.AddCampaign(Campaign{Name: "c", TargetCount: 5})
	if c.QueuedCount != 5 || c.Status != CampaignDraft {
		t.Errorf("new campaign = %+v, want draft with queuedCount 5", c)
	}
	started, _ := s.Start(c.ID)
	if started.StartedAt == nil || !started.StartedAt.Equal(noon) {
		t.Errorf("startedAt = %v, want %v", started.StartedAt, noon)
	}
	clk.Advance(time.Hour)
	ended, _ := s.Cancel(c.ID)
	if ended.EndedAt == nil || !ended.EndedAt.Equal(noon.Add(time.Hour)) {
		t.Errorf("endedAt = %v, want %v", ended.EndedAt, noon.Add(time.Hour))
	}
}

func TestParseAction(t *testing.T) {
	if a, err := ParseAction(" Pause "); err != nil || a != ActionPause {
		t.Errorf("ParseAction(Pause) = %q, %v", a, err)
	}
	if _, err := ParseAction("explode"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ParseAction(explode) error = %v, want ErrInvalidInput", err)
	}
}

func TestEnqueueRoundRobin(t *testing.T) {
	s := New(Snapshot{}, nil, nil)
	a1, _ := s.AddAccount(Account{Handle: "a1", DailyLimit: 5})
	a2, _ := s.AddAccount(Account{Handle: "a2", DailyLimit: 5})
	c, _ := s.AddCampaign(Campaign{Name: "c", AccountIDs: []string{a1.ID, a2.ID}, TargetCount: 3})

	msgs, err := s.EnqueueMessages(c.ID, []Recipient{{Name: "x"}, {Name: "y"}, {Name: "z"}})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{a1.ID, a2.ID, a1.ID}
	for i, m := range msgs {
		if m.AccountID != want[i] || m.Status != MessageQueued {
			t.Errorf("msg %d = %s/%s, want %s/queued", i, m.AccountID, m.Status, want[i])
		}
	}
	snap := s.Snapshot()
	if got, _ := snap.Campaign(c.ID); got.QueuedCount != 3 {
		t.Errorf("queuedCount after enqueue = %d, want 3 (seeded from target)", got.QueuedCount)
	}

	if _, err := s.EnqueueMessages(c.ID, []Recipient{{Name: "w", AccountID: "stranger"}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("enqueue for unassigned account error = %v, want ErrInvalidInput", err)
	}
	if _, err := s.EnqueueMessages("missing", []Recipient{{Name: "w"}}); !errors.Is(err, ErrNotFound) {
		t.Errorf("enqueue for missing campaign error = %v, want ErrNotFound", err)
	}
}

// TestReservePicksOldestOnce verifies a queued message is reserved at most
// once and that a pair with a message in flight is not reserved again.
func TestReservePicksOldestOnce(t *testing.T) {
	s, acc, c := fixture(t, 2)
	snap := s.Snapshot()
	oldest := snap.Messages[0]

	m, ok := s.Reserve(c.ID, acc.ID, noon, alwaysEligible)
	if !ok {
		t.Fatal("Reserve() = false, want true")
	}
	if m.ID != oldest.ID || m.Status != MessageSending {
		t.Errorf("reserved %s/%s, want %s/sending", m.ID, m.Status, oldest.ID)
	}

	if _, ok := s.Reserve(c.ID, acc.ID, noon, alwaysEligible); ok {
		t.Error("second Reserve() for the same pair succeeded while first is in flight")
	}

	snap = s.Snapshot()
	if snap.Messages[1].Status != MessageQueued {
		t.Errorf("second message status = %s, want queued", snap.Messages[1].Status)
	}
	got, _ := snap.Campaign(c.ID)
	if got.QueuedCount != 2 || got.SentCount != 0 {
		t.Errorf("counters changed on reservation: %+v", got)
	}
}

func TestReserveRespectsGating(t *testing.T) {
	s, acc, c := fixture(t, 1)

	if _, ok := s.Reserve(c.ID, acc.ID, noon, neverEligible); ok {
		t.Error("Reserve() with ineligible account succeeded")
	}

	s.Pause(c.ID)
	if _, ok := s.Reserve(c.ID, acc.ID, noon, alwaysEligible); ok {
		t.Error("Reserve() on paused campaign succeeded")
	}

	draft, _ := s.AddCampaign(Campaign{Name: "draft", AccountIDs: []string{acc.ID}, TargetCount: 1})
	if _, err := s.EnqueueMessages(draft.ID, []Recipient{{Name: "d"}}); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Reserve(draft.ID, acc.ID, noon, alwaysEligible); ok {
		t.Error("Reserve() on draft campaign succeeded")
	}
}

func TestCompleteSendCommitsCounters(t *testing.T) {
	s, acc, c := fixture(t, 1)
	m, _ := s.Reserve(c.ID, acc.ID, noon, alwaysEligible)

	at := noon.Add(time.Second)
	if !s.CompleteSend(m.ID, at) {
		t.Fatal("CompleteSend() = false")
	}
	if s.CompleteSend(m.ID, at) || s.FailSend(m.ID, "late", at) {
		t.Error("terminal message resolved twice")
	}

	snap := s.Snapshot()
	gotMsg, _ := snap.Message(m.ID)
	if gotMsg.Status != MessageSent || gotMsg.SentAt == nil || !gotMsg.SentAt.Equal(at) {
		t.Errorf("message = %+v, want sent at %v", gotMsg, at)
	}
	gotAcc, _ := snap.Account(acc.ID)
	if gotAcc.SentToday != 1 || gotAcc.Settings.LastSentAt == nil {
		t.Errorf("account = %+v, want sentToday 1 and lastSentAt set", gotAcc)
	}
	gotC, _ := snap.Campaign(c.ID)
	if gotC.SentCount != 1 || gotC.QueuedCount != 0 {
		t.Errorf("campaign sent/queued = %d/%d, want 1/0", gotC.SentCount, gotC.QueuedCount)
	}
}

func TestFailSendLeavesAccountAlone(t *testing.T) {
	s, acc, c := fixture(t, 1)
	m, _ := s.Reserve(c.ID, acc.ID, noon, alwaysEligible)

	if !s.FailSend(m.ID, "Rate limit exceeded", noon) {
		t.Fatal("FailSend() = false")
	}
	snap := s.Snapshot()
	gotMsg, _ := snap.Message(m.ID)
	if gotMsg.Status != MessageFailed || gotMsg.ErrorMessage != "Rate limit exceeded" || gotMsg.SentAt != nil {
		t.Errorf("message = %+v", gotMsg)
	}
	gotAcc, _ := snap.Account(acc.ID)
	if gotAcc.SentToday != 0 || gotAcc.Settings.LastSentAt != nil {
		t.Errorf("account touched on failure: %+v", gotAcc)
	}
	gotC, _ := snap.Campaign(c.ID)
	if gotC.FailedCount != 1 || gotC.QueuedCount != 0 {
		t.Errorf("campaign failed/queued = %d/%d, want 1/0", gotC.FailedCount, gotC.QueuedCount)
	}
}

func TestResolveAfterCampaignDeleted(t *testing.T) {
	s, acc, c := fixture(t, 1)
	m, _ := s.Reserve(c.ID, acc.ID, noon, alwaysEligible)
	if err := s.DeleteCampaign(c.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteAccount(acc.ID); err != nil {
		t.Fatal(err)
	}
	if !s.CompleteSend(m.ID, noon) {
		t.Fatal("CompleteSend() = false")
	}
	snap := s.Snapshot()
	if got, _ := snap.Message(m.ID); got.Status != MessageSent {
		t.Errorf("status = %s, want sent", got.Status)
	}
}

func TestReserveNew(t *testing.T) {
	s, acc, c := fixture(t, 1)

	m, err := s.ReserveNew(c.ID, Recipient{Name: "Manual Recipient"}, noon, alwaysEligible)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != MessageSending || m.AccountID != acc.ID {
		t.Errorf("message = %+v, want sending via %s", m, acc.ID)
	}
	if _, err := s.ReserveNew(c.ID, Recipient{}, noon, alwaysEligible); !errors.Is(err, ErrNoEligibleAccount) {
		t.Errorf("second ReserveNew() error = %v, want ErrNoEligibleAccount", err)
	}

	s.CompleteSend(m.ID, noon)
	snap := s.Snapshot()
	if got, _ := snap.Campaign(c.ID); got.SentCount != 1 || got.QueuedCount != 1 {
		t.Errorf("campaign sent/queued = %d/%d, want 1/1", got.SentCount, got.QueuedCount)
	}
	if _, err := s.ReserveNew(c.ID, Recipient{}, noon, alwaysEligible); !errors.Is(err, ErrTargetReached) {
		t.Errorf("ReserveNew() past target error = %v, want ErrTargetReached", err)
	}
}

func TestReserveNewFailureKeepsQueuedCount(t *testing.T) {
	s, _, c := fixture(t, 2)
	m, err := s.ReserveNew(c.ID, Recipient{Name: "Manual Recipient"}, noon, alwaysEligible)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Manual {
		t.Error("manual send not marked manual")
	}
	s.FailSend(m.ID, "Rate limit exceeded", noon)
	snap := s.Snapshot()
	if got, _ := snap.Campaign(c.ID); got.FailedCount != 1 || got.QueuedCount != 2 {
		t.Errorf("campaign failed/queued = %d/%d, want 1/2", got.FailedCount, got.QueuedCount)
	}
}

func TestReserveNewRequiresRunningCampaign(t *testing.T) {
	tests := []struct {
		name    string
		actions []Action
		want    error
	}{
		{"draft", nil, ErrCampaignNotRunning},
		{"paused", []Action{ActionStart, ActionPause}, ErrCampaignNotRunning},
		{"completed", []Action{ActionStart, ActionCancel}, ErrCampaignClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Snapshot{}, nil, clock.NewFake(noon))
			acc, err := s.AddAccount(Account{Handle: "john_outreach", DisplayName: "John", DailyLimit: 10})
			if err != nil {
				t.Fatal(err)
			}
			c, err := s.AddCampaign(Campaign{Name: "Q1", AccountIDs: []string{acc.ID}, TargetCount: 5})
			if err != nil {
				t.Fatal(err)
			}
			for _, a := range tt.actions {
				s.TransitionCampaign(c.ID, a)
			}
			if _, err := s.ReserveNew(c.ID, Recipient{Name: "Manual Recipient"}, noon, alwaysEligible); !errors.Is(err, tt.want) {
				t.Errorf("ReserveNew() error = %v, want %v", err, tt.want)
			}
			snap := s.Snapshot()
			if len(snap.Messages) != 0 {
				t.Errorf("messages = %d, want 0", len(snap.Messages))
			}
		})
	}
}

func TestRequeue(t *testing.T) {
	s, acc, c := fixture(t, 1)
	m, _ := s.Reserve(c.ID, acc.ID, noon, alwaysEligible)

	if _, err := s.Requeue(m.ID); !errors.Is(err, ErrNotRequeueable) {
		t.Errorf("Requeue(sending) error = %v, want ErrNotRequeueable", err)
	}
	s.FailSend(m.ID, "boom", noon)

	fresh, err := s.Requeue(m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID == m.ID || fresh.Status != MessageQueued || fresh.RecipientName != m.RecipientName {
		t.Errorf("requeued = %+v", fresh)
	}
	snap := s.Snapshot()
	if old, _ := snap.Message(m.ID); old.Status != MessageFailed {
		t.Errorf("original status = %s, want failed", old.Status)
	}
	if got, _ := snap.Campaign(c.ID); got.QueuedCount != 1 {
		t.Errorf("queuedCount = %d, want 1", got.QueuedCount)
	}
}

func TestSnapshotsAreImmutable(t *testing.T) {
	s, acc, c := fixture(t, 1)
	before := s.Snapshot()
	m, _ := s.Reserve(c.ID, acc.ID, noon, alwaysEligible)
	s.CompleteSend(m.ID, noon)

	if before.Messages[0].Status != MessageQueued {
		t.Errorf("old snapshot message = %s, want queued", before.Messages[0].Status)
	}
	if a, _ := before.Account(acc.ID); a.SentToday != 0 {
		t.Errorf("old snapshot sentToday = %d, want 0", a.SentToday)
	}
}

func TestEventsPublished(t *testing.T) {
	b := bus.New()
	s := New(Snapshot{}, b, clock.NewFake(noon))
	acc, _ := s.AddAccount(Account{Handle: "a", DailyLimit: 5})
	c, _ := s.AddCampaign(Campaign{Name: "c", AccountIDs: []string{acc.ID}, TargetCount: 1})
	s.EnqueueMessages(c.ID, []Recipient{{Name: "r"}})

	ch, unsub := b.Subscribe("", 16)
	defer unsub()
	s.Start(c.ID)
	s.Reserve(c.ID, acc.ID, noon, alwaysEligible)

	var kinds []string
	for len(ch) > 0 {
		kinds = append(kinds, (<-ch).Kind)
	}
	want := []string{
		bus.KindCampaignStatusChanged, bus.KindStateChanged,
		bus.KindMessageStatusChanged, bus.KindStateChanged,
	}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestResetSentToday(t *testing.T) {
	s := New(Snapshot{}, nil, nil)
	a, _ := s.AddAccount(Account{Handle: "a", DailyLimit: 5, SentToday: 3})
	s.AddAccount(Account{Handle: "b", DailyLimit: 5})
	if n := s.ResetSentToday(); n != 1 {
		t.Errorf("reset = %d, want 1", n)
	}
	snap := s.Snapshot()
	if got, _ := snap.Account(a.ID); got.SentToday != 0 {
		t.Errorf("sentToday = %d, want 0", got.SentToday)
	}
}

func TestUpdateAccountClampsSentToday(t *testing.T) {
	s := New(Snapshot{}, nil, nil)
	a, _ := s.AddAccount(Account{Handle: "a", DailyLimit: 10, SentToday: 8})
	limit := 5
	got, err := s.UpdateAccount(a.ID, AccountPatch{DailyLimit: &limit})
	if err != nil {
		t.Fatal(err)
	}
	if got.SentToday != 5 {
		t.Errorf("sentToday = %d, want 5", got.SentToday)
	}
	if _, err := s.UpdateAccount("missing", AccountPatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateAccount(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDuplicateTemplate(t *testing.T) {
	s := New(Snapshot{}, nil, nil)
	tpl, _ := s.AddTemplate(Template{Title: "SaaS Outreach", Body: "Hi {{firstName}}", IsDefault: true})
	dup, err := s.DuplicateTemplate(tpl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if dup.ID == tpl.ID || dup.Title != "SaaS Outreach (Copy)" || dup.IsDefault || dup.Body != tpl.Body {
		t.Errorf("duplicate = %+v", dup)
	}
	if len(s.Snapshot().Templates) != 2 {
		t.Errorf("templates = %d, want 2", len(s.Snapshot().Templates))
	}

	p, _ := s.AddPrompt(Prompt{Title: "Friendly", SystemPrompt: "be nice", IsDefault: true})
	dp, err := s.DuplicatePrompt(p.ID)
	if err != nil || dp.Title != "Friendly (Copy)" || dp.IsDefault {
		t.Errorf("DuplicatePrompt() = %+v, %v", dp, err)
	}
}

func TestComputeStats(t *testing.T) {
	s, acc, c := fixture(t, 3)
	s.AddAccount(Account{Handle: "off", DailyLimit: 5, Status: AccountDisconnected})
	m, _ := s.Reserve(c.ID, acc.ID, noon, alwaysEligible)
	s.CompleteSend(m.ID, noon)

	st := ComputeStats(s.Snapshot())
	if st.ActiveAccounts != 1 || st.ActiveCampaigns != 1 {
		t.Errorf("active accounts/campaigns = %d/%d, want 1/1", st.ActiveAccounts, st.ActiveCampaigns)
	}
	if st.QueuedMessages != 2 || st.SentToday != 1 {
		t.Errorf("queued/sentToday = %d/%d, want 2/1", st.QueuedMessages, st.SentToday)
	}
	if st.ByStatus[MessageSent] != 1 || st.ByStatus[MessageQueued] != 2 {
		t.Errorf("byStatus = %v", st.ByStatus)
	}
	if len(st.Accounts) != 2 {
		t.Errorf("accounts = %d, want 2", len(st.Accounts))
	}
}
