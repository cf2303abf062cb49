package state

import (
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/outreach/internal/bus"
)

// MessageStatusChange is the payload of message.status_changed events.
type MessageStatusChange struct {
	MessageID  string        `json:"messageId"`
	CampaignID string        `json:"campaignId"`
	AccountID  string        `json:"accountId"`
	From       MessageStatus `json:"from"`
	To         MessageStatus `json:"to"`
}

func statusEvent(m Message, from MessageStatus) bus.Event {
	return bus.Event{
		Kind: bus.KindMessageStatusChanged,
		Payload: MessageStatusChange{
			MessageID:  m.ID,
			CampaignID: m.CampaignID,
			AccountID:  m.AccountID,
			From:       from,
			To:         m.Status,
		},
	}
}

// EnqueueMessages appends one queued message per recipient to the campaign.
// Recipients without an account are assigned round-robin over the
// campaign's accounts. The campaign's queued count is not changed: it was
// seeded from the target count when the campaign was created.
func (s *Store) EnqueueMessages(campaignID string, recipients []Recipient) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	c, ok := cur.Campaign(campaignID)
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrNotFound)
	}
	if c.Status.Terminal() {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrCampaignClosed)
	}

	now := s.clock.Now()
	added := make([]Message, 0, len(recipients))
	rr := 0
	for _, r := range recipients {
		accountID := r.AccountID
		if accountID == "" {
			if len(c.AccountIDs) == 0 {
				return nil, fmt.Errorf("%w: campaign %s has no accounts", ErrInvalidInput, campaignID)
			}
			accountID = c.AccountIDs[rr%len(c.AccountIDs)]
			rr++
		} else if !slices.Contains(c.AccountIDs, accountID) {
			return nil, fmt.Errorf("%w: account %s is not assigned to campaign %s", ErrInvalidInput, accountID, campaignID)
		}
		added = append(added, Message{
			ID:               newID("msg"),
			CampaignID:       campaignID,
			AccountID:        accountID,
			RecipientName:    r.Name,
			RecipientCompany: r.Company,
			Status:           MessageQueued,
			ScheduledFor:     now,
		})
	}
	if len(added) == 0 {
		return added, nil
	}

	next := *cur
	next.Messages = append(slices.Clone(cur.Messages), added...)
	s.commit(&next, "message.enqueued")
	return added, nil
}

// DeleteMessage removes a message. Counters are left as they are.
func (s *Store) DeleteMessage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Messages, func(x Message) bool { return x.ID == id })
	if i < 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	next := *cur
	next.Messages = slices.Delete(slices.Clone(cur.Messages), i, i+1)
	s.commit(&next, "message.deleted")
	return nil
}

func hasSending(msgs []Message, campaignID, accountID string) bool {
	return indexOf(msgs, func(m Message) bool {
		return m.Status == MessageSending && m.CampaignID == campaignID && m.AccountID == accountID
	}) >= 0
}

// Reserve is the scheduler's critical section. For a running campaign and
// an eligible account with no message already in flight for the pair, it
// moves the oldest queued message of the pair to sending and returns it.
// Counters are not touched; they change only when the send resolves.
func (s *Store) Reserve(campaignID, accountID string, now time.Time, eligible EligibilityFunc) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()

	c, ok := cur.Campaign(campaignID)
	if !ok || c.Status != CampaignRunning {
		return Message{}, false
	}
	acc, ok := cur.Account(accountID)
	if !ok || !eligible(acc, now) {
		return Message{}, false
	}
	if hasSending(cur.Messages, campaignID, accountID) {
		return Message{}, false
	}
	i := indexOf(cur.Messages, func(m Message) bool {
		return m.Status == MessageQueued && m.CampaignID == campaignID && m.AccountID == accountID
	})
	if i < 0 {
		return Message{}, false
	}

	next := *cur
	next.Messages = slices.Clone(cur.Messages)
	m := next.Messages[i]
	m.Status = MessageSending
	next.Messages[i] = m
	s.commit(&next, "message.reserved", statusEvent(m, MessageQueued))
	return m, true
}

// ReserveNew creates a message for the campaign's first account that is
// eligible and not already sending for it, already in the sending state.
// It backs the manual "send now" path and shares Reserve's commit rules.
// Only running campaigns accept it.
func (s *Store) ReserveNew(campaignID string, r Recipient, now time.Time, eligible EligibilityFunc) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()

	c, ok := cur.Campaign(campaignID)
	if !ok {
		return Message{}, fmt.Errorf("campaign %s: %w", campaignID, ErrNotFound)
	}
	if c.Status.Terminal() {
		return Message{}, fmt.Errorf("campaign %s: %w", campaignID, ErrCampaignClosed)
	}
	if c.Status != CampaignRunning {
		return Message{}, fmt.Errorf("campaign %s is %s: %w", campaignID, c.Status, ErrCampaignNotRunning)
	}
	if c.SentCount >= c.TargetCount {
		return Message{}, fmt.Errorf("campaign %s: %w", campaignID, ErrTargetReached)
	}

	accountID := ""
	for _, id := range c.AccountIDs {
		if r.AccountID != "" && id != r.AccountID {
			continue
		}
		acc, ok := cur.Account(id)
		if !ok || !eligible(acc, now) || hasSending(cur.Messages, campaignID, id) {
			continue
		}
		accountID = id
		break
	}
	if accountID == "" {
		return Message{}, fmt.Errorf("campaign %s: %w", campaignID, ErrNoEligibleAccount)
	}

	m := Message{
		ID:               newID("msg"),
		CampaignID:       campaignID,
		AccountID:        accountID,
		RecipientName:    r.Name,
		RecipientCompany: r.Company,
		Status:           MessageSending,
		ScheduledFor:     now,
		Manual:           true,
	}
	next := *cur
	next.Messages = append(slices.Clone(cur.Messages), m)
	s.commit(&next, "message.reserved", statusEvent(m, ""))
	return m, nil
}

// CompleteSend resolves a sending message as sent and, in the same swap,
// bumps the campaign's sent count and the account's daily counter. It
// returns false when the message is missing or not sending.
func (s *Store) CompleteSend(id string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Messages, func(x Message) bool { return x.ID == id })
	if i < 0 || cur.Messages[i].Status != MessageSending {
		return false
	}

	next := *cur
	next.Messages = slices.Clone(cur.Messages)
	m := next.Messages[i]
	m.Status = MessageSent
	sentAt := at
	m.SentAt = &sentAt
	m.ErrorMessage = ""
	next.Messages[i] = m
	resolveCounts(&next, m)
	incrementSentToday(&next, m.AccountID, at)
	s.commit(&next, "message.sent", statusEvent(m, MessageSending))
	return true
}

// FailSend resolves a sending message as failed with reason and bumps the
// campaign's failed count. The account's counters are left alone.
func (s *Store) FailSend(id, reason string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Messages, func(x Message) bool { return x.ID == id })
	if i < 0 || cur.Messages[i].Status != MessageSending {
		return false
	}
	if reason == "" {
		reason = "send failed"
	}

	next := *cur
	next.Messages = slices.Clone(cur.Messages)
	m := next.Messages[i]
	m.Status = MessageFailed
	m.ErrorMessage = reason
	next.Messages[i] = m
	resolveCounts(&next, m)
	s.commit(&next, "message.failed", statusEvent(m, MessageSending))
	return true
}

// Requeue creates a new queued message for the recipient of a failed one.
// The failed message stays failed.
func (s *Store) Requeue(id string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	old, ok := cur.Message(id)
	if !ok {
		return Message{}, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if old.Status != MessageFailed {
		return Message{}, fmt.Errorf("message %s is %s: %w", id, old.Status, ErrNotRequeueable)
	}
	c, ok := cur.Campaign(old.CampaignID)
	if !ok {
		return Message{}, fmt.Errorf("campaign %s: %w", old.CampaignID, ErrNotFound)
	}
	if c.Status.Terminal() {
		return Message{}, fmt.Errorf("campaign %s: %w", c.ID, ErrCampaignClosed)
	}

	m := Message{
		ID:               newID("msg"),
		CampaignID:       old.CampaignID,
		AccountID:        old.AccountID,
		RecipientName:    old.RecipientName,
		RecipientCompany: old.RecipientCompany,
		Status:           MessageQueued,
		ScheduledFor:     s.clock.Now(),
	}
	next := *cur
	next.Messages = append(slices.Clone(cur.Messages), m)
	updateCampaign(&next, c.ID, func(c *Campaign) { c.QueuedCount++ })
	s.commit(&next, "message.requeued", statusEvent(m, ""))
	return m, nil
}

// InFlight returns every message currently sending.
func (s *Snapshot) InFlight() []Message {
	var out []Message
	for _, m := range s.Messages {
		if m.Status == MessageSending {
			out = append(out, m)
		}
	}
	return out
}
