package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// remindAtFormat is second-precision RFC3339 in UTC so that the stored
// strings order lexicographically and the due query can compare in SQL.
const remindAtFormat = time.RFC3339

type sqliteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the SQLite database at cfg.Path and
// applies the schema.
func Open(cfg Config, log zerolog.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) CreateCampaign(ctx context.Context, c Campaign) (int64, error) {
	if c.Status == "" {
		c.Status = StatusActive
	}
	if !ValidStatus(c.Status) {
		return 0, ErrInvalidStatus
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns(title, channel_id, message_id, emoji, remind_at, created_at, status)
		 VALUES(?,?,?,?,?,?,?)`,
		nullStr(c.Title), c.ChannelID, c.MessageID, c.Emoji,
		c.RemindAt.UTC().Format(remindAtFormat),
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(c.Status),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.log.Debug().Int64("campaign_id", id).Str("message_id", c.MessageID).Msg("campaign created")
	return id, nil
}

const campaignCols = `id, COALESCE(title,''), channel_id, message_id, emoji, remind_at, created_at, status`

func (s *sqliteStore) GetCampaign(ctx context.Context, id int64) (Campaign, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+campaignCols+` FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	return c, err
}

// ListCampaigns returns campaigns ordered by remind_at ascending.
// An empty status returns every campaign.
func (s *sqliteStore) ListCampaigns(ctx context.Context, status Status) ([]Campaign, error) {
	q := `SELECT ` + campaignCols + ` FROM campaigns`
	args := []any{}
	if status != "" {
		if !ValidStatus(status) {
			return nil, ErrInvalidStatus
		}
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY remind_at ASC`
	return s.queryCampaigns(ctx, q, args...)
}

func (s *sqliteStore) DueCampaigns(ctx context.Context, now time.Time) ([]Campaign, error) {
	return s.queryCampaigns(ctx,
		`SELECT `+campaignCols+` FROM campaigns
		 WHERE status = ? AND remind_at <= ?
		 ORDER BY remind_at ASC`,
		string(StatusActive), now.UTC().Format(remindAtFormat))
}

func (s *sqliteStore) queryCampaigns(ctx context.Context, q string, args ...any) ([]Campaign, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UpdateCampaignStatus(ctx context.Context, id int64, status Status) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertOptIn inserts an opt-in, or refreshes username/tallied_at when the
// (campaign_id, user_id) pair already exists. Never appends a duplicate.
func (s *sqliteStore) UpsertOptIn(ctx context.Context, o OptIn) error {
	if o.TalliedAt.IsZero() {
		o.TalliedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO optins(campaign_id, user_id, username, tallied_at)
		 VALUES(?,?,?,?)
		 ON CONFLICT(campaign_id, user_id)
		 DO UPDATE SET username=excluded.username, tallied_at=excluded.tallied_at`,
		o.CampaignID, o.UserID, nullStr(o.Username),
		o.TalliedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) OptInUserIDs(ctx context.Context, campaignID int64) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM optins WHERE campaign_id = ?`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ListOptIns pages opt-ins by user_id ascending; afterUserID is the cursor
// (exclusive). An empty cursor starts from the beginning.
func (s *sqliteStore) ListOptIns(ctx context.Context, campaignID int64, limit int, afterUserID string) ([]OptIn, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, user_id, COALESCE(username,''), tallied_at
		 FROM optins
		 WHERE campaign_id = ? AND user_id > ?
		 ORDER BY user_id ASC
		 LIMIT ?`,
		campaignID, afterUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OptIn
	for rows.Next() {
		var o OptIn
		var talliedAt string
		if err := rows.Scan(&o.ID, &o.CampaignID, &o.UserID, &o.Username, &talliedAt); err != nil {
			return nil, err
		}
		o.TalliedAt = parseTime(talliedAt)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *sqliteStore) ClearOptIns(ctx context.Context, campaignID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM optins WHERE campaign_id = ?`, campaignID)
	return err
}

func (s *sqliteStore) AppendReminderLog(ctx context.Context, l ReminderLog) error {
	if l.SentAt.IsZero() {
		l.SentAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders_log(campaign_id, sent_at, recipient_count, message_chunks, success, error_message)
		 VALUES(?,?,?,?,?,?)`,
		l.CampaignID, l.SentAt.UTC().Format(time.RFC3339Nano),
		l.RecipientCount, l.MessageChunks, l.Success, nullStr(l.ErrorMessage),
	)
	return err
}

func (s *sqliteStore) ReminderLogs(ctx context.Context, campaignID int64) ([]ReminderLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, sent_at, recipient_count, message_chunks, success, COALESCE(error_message,'')
		 FROM reminders_log WHERE campaign_id = ? ORDER BY id ASC`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReminderLog
	for rows.Next() {
		var l ReminderLog
		var sentAt string
		if err := rows.Scan(&l.ID, &l.CampaignID, &sentAt, &l.RecipientCount, &l.MessageChunks, &l.Success, &l.ErrorMessage); err != nil {
			return nil, err
		}
		l.SentAt = parseTime(sentAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (Campaign, error) {
	var c Campaign
	var remindAt, createdAt, status string
	err := row.Scan(&c.ID, &c.Title, &c.ChannelID, &c.MessageID, &c.Emoji, &remindAt, &createdAt, &status)
	if err != nil {
		return Campaign{}, err
	}
	c.RemindAt = parseTime(remindAt)
	c.CreatedAt = parseTime(createdAt)
	c.Status = Status(status)
	return c, nil
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
