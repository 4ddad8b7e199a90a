package campaign

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"optinbot/internal/storage"
)

// BuildReminder renders the reminder for a campaign as one or more chunks,
// each holding as many mentions as fit under the size budget.
//
// An empty template selects DefaultTemplate. A custom template must carry
// the {mentions} placeholder; {title} is optional.
func (s *Service) BuildReminder(ctx context.Context, campaignID int64, template string) (Reminder, error) {
	rem := Reminder{CampaignID: campaignID}
	cfg := s.config()

	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return rem, err
	}

	if template == "" {
		template = DefaultTemplate
	}
	if !strings.Contains(template, "{mentions}") {
		return rem, fmt.Errorf("%w: template must contain {mentions}", ErrValidation)
	}

	optins, err := s.allOptIns(ctx, campaignID, cfg.OptInPageSize)
	if err != nil {
		return rem, err
	}
	rem.Recipients = len(optins)
	if len(optins) == 0 {
		return rem, nil
	}

	title := c.Title
	if title == "" {
		title = "Campaign " + strconv.FormatInt(campaignID, 10)
	}
	base := strings.ReplaceAll(template, "{title}", title)
	skeleton := strings.TrimSpace(strings.ReplaceAll(base, "{mentions}", ""))
	// markerReserve keeps a later continuation marker from pushing a packed
	// chunk past the hard limit.
	available := cfg.MaxChunkLen - len(skeleton) - cfg.SafetyMargin - markerReserve

	var chunks []string
	var current []string
	currentLen := 0
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.ReplaceAll(base, "{mentions}", strings.Join(current, " ")))
		current = current[:0]
		currentLen = 0
	}

	for _, o := range optins {
		mention := mentionToken(o.UserID)
		need := len(mention) + 1 // trailing separator space
		// A single pathological mention still gets its own chunk; it is
		// never dropped even when that chunk busts the nominal budget.
		if currentLen+need > available && len(current) > 0 {
			flush()
		}
		current = append(current, mention)
		currentLen += need
	}
	flush()

	if len(chunks) > 1 {
		for i := 1; i < len(chunks); i++ {
			chunks[i] = markContinued(chunks[i], i+1, len(chunks))
		}
	}

	rem.Chunks = chunks
	s.log.Debug().Int64("campaign_id", campaignID).
		Int("recipients", rem.Recipients).Int("chunks", len(chunks)).
		Msg("reminder built")
	return rem, nil
}

// allOptIns pages through the full opt-in set in user-id order.
func (s *Service) allOptIns(ctx context.Context, campaignID int64, pageSize int) ([]storage.OptIn, error) {
	var all []storage.OptIn
	after := ""
	for {
		page, err := s.store.ListOptIns(ctx, campaignID, pageSize, after)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		after = page[len(page)-1].UserID
	}
}

func mentionToken(userID string) string {
	return "<@" + userID + ">"
}

// markerReserve is the widest continuation marker the packer budgets for,
// len(" (continued 999/999)").
const markerReserve = 20

// markContinued appends " (continued i/n)" to the first line of a chunk so
// recipients can tell the pieces of a split reminder apart.
func markContinued(chunk string, i, n int) string {
	marker := fmt.Sprintf(" (continued %d/%d)", i, n)
	if idx := strings.IndexByte(chunk, '\n'); idx >= 0 {
		return chunk[:idx] + marker + chunk[idx:]
	}
	return chunk + marker
}
