package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"optinbot/internal/platform"
	"optinbot/internal/storage"
)

// SendReminder builds and dispatches the reminder for a campaign.
//
// With live=false (the default posture) nothing is sent: the chunks are
// built and returned for inspection, no log row is written and no state
// changes. A live send additionally requires DryRun to be off in the
// engine config.
//
// The live path is best-effort per chunk. Every chunk is attempted, paced
// one send per SendGap, with an extra RateLimitWait after a throttled
// send. One ReminderLog row is appended per invocation; the campaign moves
// to completed only when every chunk went out without error.
func (s *Service) SendReminder(ctx context.Context, campaignID int64, live bool) (SendResult, error) {
	cfg := s.config()
	res := SendResult{CampaignID: campaignID, Live: live && !cfg.DryRun}

	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return res, err
	}

	rem, err := s.BuildReminder(ctx, campaignID, "")
	if err != nil {
		return res, err
	}
	res.Recipients = rem.Recipients
	res.Chunks = len(rem.Chunks)

	if len(rem.Chunks) == 0 {
		s.log.Info().Int64("campaign_id", campaignID).Msg("no recipients, nothing to send")
		return res, nil
	}
	if !res.Live {
		s.log.Info().Int64("campaign_id", campaignID).
			Int("chunks", res.Chunks).Int("recipients", res.Recipients).
			Msg("preview only, not sending")
		return res, nil
	}

	// Advisory lock: two concurrent live sends for one campaign would
	// duplicate the broadcast.
	lock := s.sendLock(campaignID)
	if !lock.TryLock() {
		return res, fmt.Errorf("send already in progress for campaign %d", campaignID)
	}
	defer lock.Unlock()

	pacer := s.pacer()
	for i, chunk := range rem.Chunks {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("chunk %d: %v", i+1, ctx.Err()))
			break
		}
		if err := pacer.Wait(ctx); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("chunk %d: %v", i+1, err))
			break
		}

		_, err := s.client.SendMessage(ctx, c.ChannelID, chunk)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("chunk %d: %v", i+1, err))
			s.log.Warn().Int64("campaign_id", campaignID).Int("chunk", i+1).Err(err).Msg("chunk send failed")
			if errors.Is(err, platform.ErrRateLimited) {
				res.RateLimited = true
				// One extra backoff, then keep going with the next chunk.
				if serr := sleep(ctx, cfg.RateLimitWait); serr != nil {
					break
				}
			}
			continue
		}
		res.Sent++
		s.log.Info().Int64("campaign_id", campaignID).
			Int("chunk", i+1).Int("of", res.Chunks).Msg("reminder chunk sent")
	}

	// The log row and the status transition must land even when the
	// caller's context was cancelled mid-run.
	logCtx := context.WithoutCancel(ctx)
	entry := storage.ReminderLog{
		CampaignID:     campaignID,
		SentAt:         s.now(),
		RecipientCount: res.Recipients,
		MessageChunks:  res.Chunks,
		Success:        res.Success(),
		ErrorMessage:   strings.Join(res.Errors, "; "),
	}
	if err := s.store.AppendReminderLog(logCtx, entry); err != nil {
		s.log.Error().Int64("campaign_id", campaignID).Err(err).Msg("failed to append reminder log")
	}

	if res.Success() {
		if err := s.store.UpdateCampaignStatus(logCtx, campaignID, storage.StatusCompleted); err != nil {
			s.log.Error().Int64("campaign_id", campaignID).Err(err).Msg("failed to mark campaign completed")
		}
	}

	s.log.Info().Int64("campaign_id", campaignID).
		Int("sent", res.Sent).Int("chunks", res.Chunks).
		Int("errors", len(res.Errors)).Bool("rate_limited", res.RateLimited).
		Msg("reminder send finished")
	return res, nil
}
