package state

import "time"

// AccountStatus is the connection state of a sending account.
type AccountStatus string

const (
	AccountConnected    AccountStatus = "connected"
	AccountRateLimited  AccountStatus = "rate-limited"
	AccountDisconnected AccountStatus = "disconnected"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// MessageStatus is the send-lifecycle state of an outreach message.
type MessageStatus string

const (
	MessageQueued  MessageStatus = "queued"
	MessageSending MessageStatus = "sending"
	MessageSent    MessageStatus = "sent"
	MessageFailed  MessageStatus = "failed"
)

// Terminal reports whether no further transition is defined for s.
func (s MessageStatus) Terminal() bool {
	return s == MessageSent || s == MessageFailed
}

// AccountSettings holds per-account pacing and content preferences.
type AccountSettings struct {
	DelaySeconds      int        `json:"delaySeconds"`
	ActiveTemplateID  string     `json:"activeTemplateId,omitempty"`
	ActivePromptID    string     `json:"activePromptId,omitempty"`
	RespectQuietHours bool       `json:"respectQuietHours"`
	LastSentAt        *time.Time `json:"lastSentAt,omitempty"`
}

// Account is a sending identity with its own daily quota.
type Account struct {
	ID          string          `json:"id"`
	Handle      string          `json:"handle"`
	DisplayName string          `json:"displayName"`
	PhoneNumber string          `json:"phoneNumber,omitempty"`
	Status      AccountStatus   `json:"status"`
	DailyLimit  int             `json:"dailyLimit"`
	SentToday   int             `json:"sentToday"`
	Settings    AccountSettings `json:"settings"`
}

// Template is a message copy template.
type Template struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	IsActive  bool      `json:"isActive"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
}

// Prompt is a system prompt used to personalize templates.
type Prompt struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SystemPrompt string    `json:"systemPrompt"`
	IsActive     bool      `json:"isActive"`
	IsDefault    bool      `json:"isDefault"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Campaign is a batch outreach job bound to a set of accounts.
type Campaign struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Status      CampaignStatus `json:"status"`
	TemplateID  string         `json:"templateId"`
	PromptID    string         `json:"promptId,omitempty"`
	AccountIDs  []string       `json:"accountIds"`
	TargetCount int            `json:"targetCount"`
	SentCount   int            `json:"sentCount"`
	QueuedCount int            `json:"queuedCount"`
	FailedCount int            `json:"failedCount"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	EndedAt     *time.Time     `json:"endedAt,omitempty"`
}

// Message is a single outreach message owned by a campaign.
type Message struct {
	ID               string        `json:"id"`
	CampaignID       string        `json:"campaignId"`
	AccountID        string        `json:"accountId"`
	RecipientName    string        `json:"recipientName"`
	RecipientCompany string        `json:"recipientCompany"`
	Status           MessageStatus `json:"status"`
	ScheduledFor     time.Time     `json:"scheduledFor"`
	SentAt           *time.Time    `json:"sentAt,omitempty"`
	ErrorMessage     string        `json:"errorMessage,omitempty"`
	Manual           bool          `json:"manual,omitempty"` // created by a manual send, outside the queue
}

// Snapshot is an immutable view of every collection. Slices are never
// modified after the snapshot is published; mutations build new slices.
type Snapshot struct {
	Accounts  []Account  `json:"accounts"`
	Templates []Template `json:"templates"`
	Prompts   []Prompt   `json:"prompts"`
	Campaigns []Campaign `json:"campaigns"`
	Messages  []Message  `json:"messages"` // insertion order
}

// Account returns the account with the given id.
func (s *Snapshot) Account(id string) (Account, bool) {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// Campaign returns the campaign with the given id.
func (s *Snapshot) Campaign(id string) (Campaign, bool) {
	for _, c := range s.Campaigns {
		if c.ID == id {
			return c, true
		}
	}
	return Campaign{}, false
}

// Message returns the message with the given id.
func (s *Snapshot) Message(id string) (Message, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// RunningCampaigns returns running campaigns in stored order.
func (s *Snapshot) RunningCampaigns() []Campaign {
	var out []Campaign
	for _, c := range s.Campaigns {
		if c.Status == CampaignRunning {
			out = append(out, c)
		}
	}
	return out
}

// Recipient describes the target of a message to be enqueued.
type Recipient struct {
	Name      string `json:"name"`
	Company   string `json:"company"`
	AccountID string `json:"accountId,omitempty"` // empty = round-robin over the campaign's accounts
}
