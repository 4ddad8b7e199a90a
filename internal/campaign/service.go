package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"optinbot/internal/platform"
	"optinbot/internal/storage"
)

// Service drives campaigns through tally, build, and send against an
// injected store and platform client.
type Service struct {
	store  storage.Store
	client platform.Client
	log    zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	lockMu    sync.Mutex
	sendLocks map[int64]*sync.Mutex
}

func New(cfg Config, store storage.Store, client platform.Client, log zerolog.Logger) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		store:     store,
		client:    client,
		log:       log,
		now:       time.Now,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Every(cfg.SendGap), 1),
		sendLocks: map[int64]*sync.Mutex{},
	}
}

// Apply swaps in new tuning at runtime.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Every(cfg.SendGap), 1)
}

// SetClock overrides the time source. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) pacer() *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limiter
}

// sendLock returns the advisory lock for one campaign's send path.
func (s *Service) sendLock(id int64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	m, ok := s.sendLocks[id]
	if !ok {
		m = &sync.Mutex{}
		s.sendLocks[id] = m
	}
	return m
}

// CreateCampaign validates and persists a new campaign in active status.
func (s *Service) CreateCampaign(ctx context.Context, title, channelID, messageID, emoji string, remindAt time.Time) (storage.Campaign, error) {
	switch {
	case strings.TrimSpace(channelID) == "":
		return storage.Campaign{}, fmt.Errorf("%w: channel id is required", ErrValidation)
	case strings.TrimSpace(messageID) == "":
		return storage.Campaign{}, fmt.Errorf("%w: message id is required", ErrValidation)
	case strings.TrimSpace(emoji) == "":
		return storage.Campaign{}, fmt.Errorf("%w: emoji is required", ErrValidation)
	case remindAt.IsZero():
		return storage.Campaign{}, fmt.Errorf("%w: remind_at is required", ErrValidation)
	}
	if title == "" {
		title = "Campaign for message " + messageID
	}
	c := storage.Campaign{
		Title:     title,
		ChannelID: channelID,
		MessageID: messageID,
		Emoji:     emoji,
		RemindAt:  remindAt,
		CreatedAt: s.now(),
		Status:    storage.StatusActive,
	}
	id, err := s.store.CreateCampaign(ctx, c)
	if err != nil {
		return storage.Campaign{}, err
	}
	c.ID = id
	s.log.Info().Int64("campaign_id", id).Str("message_id", messageID).Str("emoji", emoji).
		Time("remind_at", remindAt).Msg("campaign created")
	return c, nil
}

func (s *Service) GetCampaign(ctx context.Context, id int64) (storage.Campaign, error) {
	return s.store.GetCampaign(ctx, id)
}

// ListCampaigns returns campaigns, optionally filtered by status.
func (s *Service) ListCampaigns(ctx context.Context, status storage.Status) ([]storage.Campaign, error) {
	if status != "" && !storage.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.store.ListCampaigns(ctx, status)
}

// UpdateCampaignStatus applies an operator status change. Terminal states
// (completed, cancelled, deleted) cannot be left.
func (s *Service) UpdateCampaignStatus(ctx context.Context, id int64, status storage.Status) error {
	if !storage.ValidStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	cur, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if cur.Status.Terminal() && cur.Status != status {
		return fmt.Errorf("%w: campaign %d is %s and cannot change to %s", ErrValidation, id, cur.Status, status)
	}
	if err := s.store.UpdateCampaignStatus(ctx, id, status); err != nil {
		return err
	}
	s.log.Info().Int64("campaign_id", id).Str("status", string(status)).Msg("campaign status updated")
	return nil
}

// DeleteCampaign clears the campaign's opt-ins and marks it deleted.
func (s *Service) DeleteCampaign(ctx context.Context, id int64) error {
	if _, err := s.store.GetCampaign(ctx, id); err != nil {
		return err
	}
	if err := s.store.ClearOptIns(ctx, id); err != nil {
		return err
	}
	if err := s.store.UpdateCampaignStatus(ctx, id, storage.StatusDeleted); err != nil {
		return err
	}
	s.log.Info().Int64("campaign_id", id).Msg("campaign deleted")
	return nil
}

// ListOptIns returns one page of opt-ins, cursor-paginated by user id.
func (s *Service) ListOptIns(ctx context.Context, campaignID int64, limit int, afterUserID string) ([]storage.OptIn, error) {
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.store.ListOptIns(ctx, campaignID, limit, afterUserID)
}

// ClearOptIns drops every stored opt-in so the next tally starts from
// scratch. The only removal path; a plain tally never deletes.
func (s *Service) ClearOptIns(ctx context.Context, campaignID int64) error {
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		return err
	}
	return s.store.ClearOptIns(ctx, campaignID)
}

// ReminderHistory returns the append-only send log for a campaign.
func (s *Service) ReminderHistory(ctx context.Context, campaignID int64) ([]storage.ReminderLog, error) {
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.store.ReminderLogs(ctx, campaignID)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}

// IsNotFound folds the two not-found sources seen at the engine boundary.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, platform.ErrNotFound)
}
