package bus

import "time"

// Event kinds published by the state container.
const (
	KindStateChanged          = "state.changed"
	KindMessageStatusChanged  = "message.status_changed"
	KindCampaignStatusChanged = "campaign.status_changed"
	KindAccountsReset         = "account.daily_reset"
)

// KindDaemonStatusChanged is published by the daemon's run-phase machine.
const KindDaemonStatusChanged = "daemon.status_changed"

// Event is a notification published on the bus. Payload is a value owned
// by the publisher and must be treated as read-only by subscribers.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
