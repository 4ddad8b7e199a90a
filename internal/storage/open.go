package storage

import (
	"context"
	"time"
)

// Store is the persistence API used by the campaign engine.
//
// "Not found" is reported as ErrNotFound; every other failure is the
// underlying driver error, never an empty result.
type Store interface {
	CreateCampaign(ctx context.Context, c Campaign) (int64, error)
	GetCampaign(ctx context.Context, id int64) (Campaign, error)
	ListCampaigns(ctx context.Context, status Status) ([]Campaign, error)
	DueCampaigns(ctx context.Context, now time.Time) ([]Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id int64, status Status) error

	UpsertOptIn(ctx context.Context, o OptIn) error
	OptInUserIDs(ctx context.Context, campaignID int64) (map[string]struct{}, error)
	ListOptIns(ctx context.Context, campaignID int64, limit int, afterUserID string) ([]OptIn, error)
	ClearOptIns(ctx context.Context, campaignID int64) error

	AppendReminderLog(ctx context.Context, l ReminderLog) error
	ReminderLogs(ctx context.Context, campaignID int64) ([]ReminderLog, error)

	Close() error
}
