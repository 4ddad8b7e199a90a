package campaign

import (
	"context"
	"fmt"

	"optinbot/internal/storage"
)

// TallyOptIns reconciles the live reaction state for a campaign into the
// opt-in table.
//
// The operation is idempotent: re-running it with unchanged reactions adds
// nothing. It is also additive-only; reactions the platform no longer
// reports keep their stored opt-in until ClearOptIns is called explicitly.
func (s *Service) TallyOptIns(ctx context.Context, campaignID int64) (TallyResult, error) {
	res := TallyResult{CampaignID: campaignID}

	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return res, err
	}

	reactors, err := s.client.ReactingUsers(ctx, c.ChannelID, c.MessageID, c.Emoji)
	if err != nil {
		return res, fmt.Errorf("fetch reactions for campaign %d: %w", campaignID, err)
	}

	existing, err := s.store.OptInUserIDs(ctx, campaignID)
	if err != nil {
		return res, err
	}

	for _, r := range reactors {
		// Automated accounts never count, including our own reaction
		// placed when seeding the tracked emoji.
		if r.IsBot {
			continue
		}
		if _, ok := existing[r.UserID]; ok {
			continue
		}
		o := storage.OptIn{
			CampaignID: campaignID,
			UserID:     r.UserID,
			Username:   r.Username,
			TalliedAt:  s.now(),
		}
		if err := s.store.UpsertOptIn(ctx, o); err != nil {
			// Each insert is independent; report what landed so far.
			return res, fmt.Errorf("store opt-in %s: %w", r.UserID, err)
		}
		existing[r.UserID] = struct{}{}
		res.New++
	}

	res.Total = len(existing)
	res.Existing = res.Total - res.New

	s.log.Info().Int64("campaign_id", campaignID).
		Int("total", res.Total).Int("new", res.New).Int("existing", res.Existing).
		Msg("opt-ins tallied")
	return res, nil
}
