package state

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matheus3301/outreach/internal/bus"
)

// Action is a user-requested campaign lifecycle command.
type Action string

const (
	ActionStart  Action = "start"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionCancel Action = "cancel"
)

// campaignTransitions maps an action to the statuses it may leave and the
// status it leads to. Anything absent is ignored.
var campaignTransitions = map[Action]map[CampaignStatus]CampaignStatus{
	ActionStart:  {CampaignDraft: CampaignRunning},
	ActionPause:  {CampaignRunning: CampaignPaused},
	ActionResume: {CampaignPaused: CampaignRunning},
	ActionCancel: {
		CampaignRunning: CampaignCompleted,
		CampaignPaused:  CampaignCompleted,
	},
}

// ParseAction validates a textual action.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := campaignTransitions[a]; !ok {
		return "", fmt.Errorf("%w: unknown campaign action %q", ErrInvalidInput, s)
	}
	return a, nil
}

// Terminal reports whether no lifecycle action applies to s.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignCompleted || s == CampaignCancelled
}

// CampaignStatusChange is the payload of campaign.status_changed events.
type CampaignStatusChange struct {
	CampaignID string         `json:"campaignId"`
	From       CampaignStatus `json:"from"`
	To         CampaignStatus `json:"to"`
}

// CampaignPatch lists the fields UpdateCampaign may change.
type CampaignPatch struct {
	Name        *string  `json:"name,omitempty"`
	TemplateID  *string  `json:"templateId,omitempty"`
	PromptID    *string  `json:"promptId,omitempty"`
	AccountIDs  []string `json:"accountIds,omitempty"` // nil = keep
	TargetCount *int     `json:"targetCount,omitempty"`
}

func validateCampaign(c Campaign) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: campaign name is required", ErrInvalidInput)
	}
	if c.TargetCount < 0 {
		return fmt.Errorf("%w: target count must not be negative", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(c.AccountIDs))
	for _, id := range c.AccountIDs {
		if seen[id] {
			return fmt.Errorf("%w: account %s assigned twice", ErrInvalidInput, id)
		}
		seen[id] = true
	}
	return nil
}

// AddCampaign creates a draft campaign. Its queued count starts at the
// target count; sent and failed counts start at zero.
func (s *Store) AddCampaign(c Campaign) (Campaign, error) {
	if err := validateCampaign(c); err != nil {
		return Campaign{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	for _, id := range c.AccountIDs {
		if _, ok := cur.Account(id); !ok {
			return Campaign{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
	}
	if c.ID == "" {
		c.ID = newID("cmp")
	}
	c.Status = CampaignDraft
	c.AccountIDs = slices.Clone(c.AccountIDs)
	c.SentCount, c.FailedCount = 0, 0
	c.QueuedCount = c.TargetCount
	c.CreatedAt = s.clock.Now()
	c.StartedAt, c.EndedAt = nil, nil

	next := *cur
	next.Campaigns = append(slices.Clone(cur.Campaigns), c)
	s.commit(&next, "campaign.added")
	return c, nil
}

// UpdateCampaign applies p to the campaign with the given id.
func (s *Store) UpdateCampaign(id string, p CampaignPatch) (Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Campaigns, func(x Campaign) bool { return x.ID == id })
	if i < 0 {
		return Campaign{}, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	c := cur.Campaigns[i]
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.TemplateID != nil {
		c.TemplateID = *p.TemplateID
	}
	if p.PromptID != nil {
		c.PromptID = *p.PromptID
	}
	if p.AccountIDs != nil {
		for _, aid := range p.AccountIDs {
			if _, ok := cur.Account(aid); !ok {
				return Campaign{}, fmt.Errorf("account %s: %w", aid, ErrNotFound)
			}
		}
		c.AccountIDs = slices.Clone(p.AccountIDs)
	}
	if p.TargetCount != nil {
		c.TargetCount = *p.TargetCount
	}
	if err := validateCampaign(c); err != nil {
		return Campaign{}, err
	}

	next := *cur
	next.Campaigns = slices.Clone(cur.Campaigns)
	next.Campaigns[i] = c
	s.commit(&next, "campaign.updated")
	return c, nil
}

// DeleteCampaign removes a campaign. Its messages stay behind so pending
// resolutions land on a message that still exists; campaign counters are
// simply skipped for them.
func (s *Store) DeleteCampaign(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Campaigns, func(x Campaign) bool { return x.ID == id })
	if i < 0 {
		return fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	next := *cur
	next.Campaigns = slices.Delete(slices.Clone(cur.Campaigns), i, i+1)
	s.commit(&next, "campaign.deleted")
	return nil
}

// TransitionCampaign applies a lifecycle action. It returns the resulting
// campaign and whether the status changed; actions the current status does
// not permit, and unknown ids, leave state untouched.
func (s *Store) TransitionCampaign(id string, action Action) (Campaign, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Campaigns, func(x Campaign) bool { return x.ID == id })
	if i < 0 {
		return Campaign{}, false
	}
	c := cur.Campaigns[i]
	to, ok := campaignTransitions[action][c.Status]
	if !ok {
		return c, false
	}

	from := c.Status
	now := s.clock.Now()
	c.Status = to
	switch {
	case action == ActionStart:
		c.StartedAt = &now
	case to.Terminal():
		c.EndedAt = &now
	}

	next := *cur
	next.Campaigns = slices.Clone(cur.Campaigns)
	next.Campaigns[i] = c
	s.commit(&next, "campaign."+string(action), bus.Event{
		Kind:    bus.KindCampaignStatusChanged,
		Payload: CampaignStatusChange{CampaignID: id, From: from, To: to},
	})
	return c, true
}

// Start moves a draft campaign to running.
func (s *Store) Start(id string) (Campaign, bool) { return s.TransitionCampaign(id, ActionStart) }

// Pause moves a running campaign to paused.
func (s *Store) Pause(id string) (Campaign, bool) { return s.TransitionCampaign(id, ActionPause) }

// Resume moves a paused campaign back to running.
func (s *Store) Resume(id string) (Campaign, bool) { return s.TransitionCampaign(id, ActionResume) }

// Cancel moves a running or paused campaign to completed.
func (s *Store) Cancel(id string) (Campaign, bool) { return s.TransitionCampaign(id, ActionCancel) }

// IncrementSentCount records a sent message: sentCount+1, queuedCount-1
// floored at zero. Unknown ids are ignored.
func (s *Store) IncrementSentCount(id string) {
	s.bumpCampaign(id, "campaign.sent", incrementSentCount)
}

// IncrementFailedCount records a failed message: failedCount+1, queuedCount-1
// floored at zero. Unknown ids are ignored.
func (s *Store) IncrementFailedCount(id string) {
	s.bumpCampaign(id, "campaign.failed", incrementFailedCount)
}

func (s *Store) bumpCampaign(id, reason string, bump func(*Snapshot, string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.current()
	if !bump(&next, id) {
		return
	}
	s.commit(&next, reason)
}

func incrementSentCount(next *Snapshot, id string) bool {
	return updateCampaign(next, id, func(c *Campaign) {
		c.SentCount++
		c.QueuedCount = max(0, c.QueuedCount-1)
	})
}

func incrementFailedCount(next *Snapshot, id string) bool {
	return updateCampaign(next, id, func(c *Campaign) {
		c.FailedCount++
		c.QueuedCount = max(0, c.QueuedCount-1)
	})
}

// Manual sends never entered the queue, so they leave queuedCount alone.
func resolveCounts(next *Snapshot, m Message) {
	updateCampaign(next, m.CampaignID, func(c *Campaign) {
		switch m.Status {
		case MessageSent:
			c.SentCount++
		case MessageFailed:
			c.FailedCount++
		}
		if !m.Manual {
			c.QueuedCount = max(0, c.QueuedCount-1)
		}
	})
}

func updateCampaign(next *Snapshot, id string, fn func(*Campaign)) bool {
	i := indexOf(next.Campaigns, func(x Campaign) bool { return x.ID == id })
	if i < 0 {
		return false
	}
	campaigns := slices.Clone(next.Campaigns)
	fn(&campaigns[i])
	next.Campaigns = campaigns
	return true
}
