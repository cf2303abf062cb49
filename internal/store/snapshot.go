package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/outreach/internal/state"
)

// Timestamps are stored as unix milliseconds; nullable columns hold optional times.

func millis(t time.Time) int64 { return t.UnixMilli() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms) }

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

// IsEmpty reports whether no accounts, campaigns, templates or prompts have
// been saved yet.
func (db *DB) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM accounts) + (SELECT COUNT(*) FROM campaigns)
		     + (SELECT COUNT(*) FROM templates) + (SELECT COUNT(*) FROM prompts)`).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// SaveSnapshot replaces the stored state with snap in a single transaction.
func (db *DB) SaveSnapshot(ctx context.Context, snap state.Snapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"messages", "campaign_accounts", "campaigns", "prompts", "templates", "accounts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, a := range snap.Accounts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (position, id, handle, display_name, phone_number, status, daily_limit,
				sent_today, delay_seconds, active_template_id, active_prompt_id, respect_quiet_hours, last_sent_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i, a.ID, a.Handle, a.DisplayName, a.PhoneNumber, string(a.Status), a.DailyLimit,
			a.SentToday, a.Settings.DelaySeconds, a.Settings.ActiveTemplateID, a.Settings.ActivePromptID,
			a.Settings.RespectQuietHours, nullMillis(a.Settings.LastSentAt))
		if err != nil {
			return fmt.Errorf("insert account %s: %w", a.ID, err)
		}
	}

	for i, t := range snap.Templates {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO templates (position, id, title, body, is_active, is_default, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i, t.ID, t.Title, t.Body, t.IsActive, t.IsDefault, millis(t.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert template %s: %w", t.ID, err)
		}
	}

	for i, p := range snap.Prompts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO prompts (position, id, title, system_prompt, is_active, is_default, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i, p.ID, p.Title, p.SystemPrompt, p.IsActive, p.IsDefault, millis(p.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert prompt %s: %w", p.ID, err)
		}
	}

	for i, c := range snap.Campaigns {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO campaigns (position, id, name, status, template_id, prompt_id, target_count,
				sent_count, queued_count, failed_count, created_at, started_at, ended_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i, c.ID, c.Name, string(c.Status), c.TemplateID, c.PromptID, c.TargetCount,
			c.SentCount, c.QueuedCount, c.FailedCount, millis(c.CreatedAt),
			nullMillis(c.StartedAt), nullMillis(c.EndedAt))
		if err != nil {
			return fmt.Errorf("insert campaign %s: %w", c.ID, err)
		}
		for j, accID := range c.AccountIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO campaign_accounts (campaign_id, position, account_id) VALUES (?, ?, ?)`,
				c.ID, j, accID); err != nil {
				return fmt.Errorf("insert campaign account %s/%s: %w", c.ID, accID, err)
			}
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (position, id, campaign_id, account_id, recipient_name, recipient_company,
			status, scheduled_for, sent_at, error_message, manual)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare messages: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for i, m := range snap.Messages {
		if _, err := stmt.ExecContext(ctx, i, m.ID, m.CampaignID, m.AccountID, m.RecipientName,
			m.RecipientCompany, string(m.Status), millis(m.ScheduledFor), nullMillis(m.SentAt),
			m.ErrorMessage, m.Manual); err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot reads the stored state, preserving insertion order.
func (db *DB) LoadSnapshot(ctx context.Context) (state.Snapshot, error) {
	var snap state.Snapshot
	var err error
	if snap.Accounts, err = db.loadAccounts(ctx); err != nil {
		return snap, fmt.Errorf("load accounts: %w", err)
	}
	if snap.Templates, err = db.loadTemplates(ctx); err != nil {
		return snap, fmt.Errorf("load templates: %w", err)
	}
	if snap.Prompts, err = db.loadPrompts(ctx); err != nil {
		return snap, fmt.Errorf("load prompts: %w", err)
	}
	if snap.Campaigns, err = db.loadCampaigns(ctx); err != nil {
		return snap, fmt.Errorf("load campaigns: %w", err)
	}
	if snap.Messages, err = db.loadMessages(ctx); err != nil {
		return snap, fmt.Errorf("load messages: %w", err)
	}
	return snap, nil
}

func (db *DB) loadAccounts(ctx context.Context) ([]state.Account, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, handle, display_name, phone_number, status, daily_limit, sent_today, delay_seconds,
			active_template_id, active_prompt_id, respect_quiet_hours, last_sent_at
		FROM accounts ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []state.Account
	for rows.Next() {
		var a state.Account
		var status string
		var last sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Handle, &a.DisplayName, &a.PhoneNumber, &status, &a.DailyLimit,
			&a.SentToday, &a.Settings.DelaySeconds, &a.Settings.ActiveTemplateID, &a.Settings.ActivePromptID,
			&a.Settings.RespectQuietHours, &last); err != nil {
			return nil, err
		}
		a.Status = state.AccountStatus(status)
		a.Settings.LastSentAt = fromNullMillis(last)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (db *DB) loadTemplates(ctx context.Context) ([]state.Template, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, body, is_active, is_default, created_at FROM templates ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []state.Template
	for rows.Next() {
		var t state.Template
		var created int64
		if err := rows.Scan(&t.ID, &t.Title, &t.Body, &t.IsActive, &t.IsDefault, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = fromMillis(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (db *DB) loadPrompts(ctx context.Context) ([]state.Prompt, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, system_prompt, is_active, is_default, created_at FROM prompts ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []state.Prompt
	for rows.Next() {
		var p state.Prompt
		var created int64
		if err := rows.Scan(&p.ID, &p.Title, &p.SystemPrompt, &p.IsActive, &p.IsDefault, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = fromMillis(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) loadCampaigns(ctx context.Context) ([]state.Campaign, error) {
	members := make(map[string][]string)
	rows, err := db.QueryContext(ctx, `
		SELECT campaign_id, account_id FROM campaign_accounts ORDER BY campaign_id, position`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var cid, aid string
		if err := rows.Scan(&cid, &aid); err != nil {
			_ = rows.Close()
			return nil, err
		}
		members[cid] = append(members[cid], aid)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	rows, err = db.QueryContext(ctx, `
		SELECT id, name, status, template_id, prompt_id, target_count, sent_count, queued_count,
			failed_count, created_at, started_at, ended_at
		FROM campaigns ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []state.Campaign
	for rows.Next() {
		var c state.Campaign
		var status string
		var created int64
		var started, ended sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &status, &c.TemplateID, &c.PromptID, &c.TargetCount,
			&c.SentCount, &c.QueuedCount, &c.FailedCount, &created, &started, &ended); err != nil {
			return nil, err
		}
		c.Status = state.CampaignStatus(status)
		c.AccountIDs = members[c.ID]
		c.CreatedAt = fromMillis(created)
		c.StartedAt = fromNullMillis(started)
		c.EndedAt = fromNullMillis(ended)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) loadMessages(ctx context.Context) ([]state.Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, campaign_id, account_id, recipient_name, recipient_company, status,
			scheduled_for, sent_at, error_message, manual
		FROM messages ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []state.Message
	for rows.Next() {
		var m state.Message
		var status string
		var scheduled int64
		var sent sql.NullInt64
		if err := rows.Scan(&m.ID, &m.CampaignID, &m.AccountID, &m.RecipientName, &m.RecipientCompany,
			&status, &scheduled, &sent, &m.ErrorMessage, &m.Manual); err != nil {
			return nil, err
		}
		m.Status = state.MessageStatus(status)
		m.ScheduledFor = fromMillis(scheduled)
		m.SentAt = fromNullMillis(sent)
		out = append(out, m)
	}
	return out, rows.Err()
}
