package api

import (
	"time"

	"github.com/matheus3301/outreach/internal/state"
)

// Empty is used for calls without parameters.
type Empty struct{}

// IDRequest addresses a single record.
type IDRequest struct {
	ID string `json:"id"`
}

type StatusResponse struct {
	Workspace     string    `json:"workspace"`
	Phase         string    `json:"phase"`
	PhaseSince    time.Time `json:"phaseSince"`
	StartedAt     time.Time `json:"startedAt"`
	UptimeMs      int64     `json:"uptimeMs"`
	InFlight      int       `json:"inFlight"`
	EventsDropped uint64    `json:"eventsDropped"`
}

type ListAccountsResponse struct {
	Items []state.Account `json:"items"`
}

type ListTemplatesResponse struct {
	Items []state.Template `json:"items"`
}

type ListPromptsResponse struct {
	Items []state.Prompt `json:"items"`
}

type ListCampaignsResponse struct {
	Items []state.Campaign `json:"items"`
}

// ListMessagesRequest filters messages. Zero fields match everything; Limit
// keeps the most recent matches.
type ListMessagesRequest struct {
	CampaignID string              `json:"campaignId,omitempty"`
	AccountID  string              `json:"accountId,omitempty"`
	Status     state.MessageStatus `json:"status,omitempty"`
	Limit      int                 `json:"limit,omitempty"`
}

type ListMessagesResponse struct {
	Items []state.Message `json:"items"`
	Total int             `json:"total"`
}

type UpdateAccountRequest struct {
	ID    string             `json:"id"`
	Patch state.AccountPatch `json:"patch"`
}

type UpdateTemplateRequest struct {
	ID    string              `json:"id"`
	Patch state.TemplatePatch `json:"patch"`
}

type UpdatePromptRequest struct {
	ID    string            `json:"id"`
	Patch state.PromptPatch `json:"patch"`
}

type UpdateCampaignRequest struct {
	ID    string              `json:"id"`
	Patch state.CampaignPatch `json:"patch"`
}

type TransitionRequest struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

type TransitionResponse struct {
	Applied  bool           `json:"applied"`
	Campaign state.Campaign `json:"campaign"`
}

type EnqueueRequest struct {
	CampaignID string            `json:"campaignId"`
	Recipients []state.Recipient `json:"recipients"`
}

type EnqueueResponse struct {
	Items []state.Message `json:"items"`
}

type SendNowRequest struct {
	CampaignID string          `json:"campaignId"`
	Recipient  state.Recipient `json:"recipient"`
}

type ResetResponse struct {
	Reset int `json:"reset"`
}

// WatchRequest selects events whose kind starts with Prefix.
type WatchRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

// Event is one bus notification as seen by clients.
type Event struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}
