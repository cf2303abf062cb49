package state

import "errors"

var (
	// ErrNotFound is returned by CRUD operations addressing a missing record.
	// Counter and lifecycle mutations never return it; they no-op instead.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a record fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateHandle is returned when an account handle is already taken.
	ErrDuplicateHandle = errors.New("handle already in use")
	// ErrCampaignClosed is returned when a completed or cancelled campaign is asked to send.
	ErrCampaignClosed = errors.New("campaign is closed")
	// ErrCampaignNotRunning is returned by a manual send on a draft or paused campaign.
	ErrCampaignNotRunning = errors.New("campaign is not running")
	// ErrTargetReached is returned by a manual send once sentCount reaches targetCount.
	ErrTargetReached = errors.New("campaign has already reached its target count")
	// ErrNoEligibleAccount is returned by a manual send when every account is
	// ineligible or already sending for the campaign.
	ErrNoEligibleAccount = errors.New("no eligible account")
	// ErrNotRequeueable is returned when requeueing a message that has not failed.
	ErrNotRequeueable = errors.New("only failed messages can be requeued")
)
