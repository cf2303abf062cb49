package state

// AccountPerformance is one bar of the per-account chart.
type AccountPerformance struct {
	AccountID  string `json:"accountId"`
	Handle     string `json:"handle"`
	SentToday  int    `json:"sentToday"`
	DailyLimit int    `json:"dailyLimit"`
}

// Stats summarizes a snapshot for the dashboard.
type Stats struct {
	ActiveAccounts  int                   `json:"activeAccounts"`
	ActiveCampaigns int                   `json:"activeCampaigns"`
	QueuedMessages  int                   `json:"queuedMessages"`
	SentToday       int                   `json:"sentToday"`
	ByStatus        map[MessageStatus]int `json:"byStatus"`
	Accounts        []AccountPerformance  `json:"accounts"`
}

// ComputeStats derives dashboard figures. QueuedMessages sums the campaign
// counters rather than counting queued messages.
func ComputeStats(s Snapshot) Stats {
	st := Stats{
		ByStatus: map[MessageStatus]int{
			MessageQueued:  0,
			MessageSending: 0,
			MessageSent:    0,
			MessageFailed:  0,
		},
		Accounts: make([]AccountPerformance, 0, len(s.Accounts)),
	}
	for _, a := range s.Accounts {
		if a.Status == AccountConnected {
			st.ActiveAccounts++
		}
		st.SentToday += a.SentToday
		st.Accounts = append(st.Accounts, AccountPerformance{
			AccountID:  a.ID,
			Handle:     a.Handle,
			SentToday:  a.SentToday,
			DailyLimit: a.DailyLimit,
		})
	}
	for _, c := range s.Campaigns {
		if c.Status == CampaignRunning {
			st.ActiveCampaigns++
		}
		st.QueuedMessages += c.QueuedCount
	}
	for _, m := range s.Messages {
		st.ByStatus[m.Status]++
	}
	return st
}
