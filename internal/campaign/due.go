package campaign

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// RunDueReminders sends the reminder for every active campaign whose
// remind_at has passed, strictly sequentially, pacing CampaignGap between
// campaigns. A zero now uses the engine clock.
//
// One failing campaign never stops the rest; the result carries the
// per-campaign error strings.
func (s *Service) RunDueReminders(ctx context.Context, now time.Time) (DueRunResult, error) {
	if now.IsZero() {
		now = s.now()
	}
	cfg := s.config()
	res := DueRunResult{Now: now}

	due, err := s.store.DueCampaigns(ctx, now)
	if err != nil {
		return res, err
	}
	res.Due = len(due)
	if len(due) == 0 {
		s.log.Debug().Time("now", now).Msg("no campaigns due")
		return res, nil
	}

	s.log.Info().Time("now", now).Int("due", res.Due).Msg("processing due campaigns")

	for i, c := range due {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("campaign %d: %v", c.ID, ctx.Err()))
			break
		}
		if i > 0 {
			if err := sleep(ctx, cfg.CampaignGap); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("campaign %d: %v", c.ID, err))
				break
			}
		}

		res.Processed++
		send, err := s.sendOneDue(ctx, c.ID)
		switch {
		case err != nil:
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("campaign %d: %v", c.ID, err))
			s.log.Warn().Int64("campaign_id", c.ID).Err(err).Msg("due campaign failed")
		case !send.Live:
			// Dry-run engine: the preview is all we were allowed to do.
			res.Successful++
		case !send.Success():
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("campaign %d: sent %d/%d chunks: %s",
				c.ID, send.Sent, send.Chunks, joinOrNone(send.Errors)))
			s.log.Warn().Int64("campaign_id", c.ID).
				Int("sent", send.Sent).Int("chunks", send.Chunks).
				Msg("due campaign partially failed")
		default:
			res.Successful++
		}
	}

	s.log.Info().Int("due", res.Due).Int("processed", res.Processed).
		Int("successful", res.Successful).Int("failed", res.Failed).
		Msg("due campaign run finished")
	return res, nil
}

// sendOneDue isolates one campaign so a panic in its send path is counted
// as that campaign's failure instead of killing the whole run.
func (s *Service) sendOneDue(ctx context.Context, id int64) (res SendResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error().Int64("campaign_id", id).Interface("panic", r).
				Str("stack", string(debug.Stack())).Msg("panic while sending due reminder")
		}
	}()
	return s.SendReminder(ctx, id, true)
}

func joinOrNone(errs []string) string {
	if len(errs) == 0 {
		return "no chunk errors"
	}
	out := errs[0]
	for _, e := range errs[1:] {
		out += "; " + e
	}
	return out
}
