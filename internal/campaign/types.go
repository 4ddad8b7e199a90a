package campaign

import (
	"errors"
	"time"
)

// ErrValidation marks caller mistakes (empty ids, bad template, bad status).
var ErrValidation = errors.New("validation error")

// DefaultTemplate is used when the caller supplies none. The {title} and
// {mentions} placeholders are substituted per chunk.
const DefaultTemplate = "🔔 Reminder: {title}\n\n{mentions}"

// Config tunes the engine. Zero values fall back to the defaults below.
type Config struct {
	// MaxChunkLen is the platform's hard per-message size limit.
	MaxChunkLen int
	// SafetyMargin is subtracted from the budget to absorb rendering
	// differences between the computed and the delivered message.
	SafetyMargin int
	// SendGap paces consecutive chunk sends.
	SendGap time.Duration
	// RateLimitWait is the extra backoff after a throttled send.
	RateLimitWait time.Duration
	// CampaignGap paces consecutive campaigns in a due run.
	CampaignGap time.Duration
	// OptInPageSize bounds one page of the opt-in pagination.
	OptInPageSize int
	// DryRun forces every send into preview mode regardless of the
	// caller's live flag.
	DryRun bool
}

const (
	defaultMaxChunkLen   = 2000
	defaultSafetyMargin  = 10
	defaultSendGap       = time.Second
	defaultRateLimitWait = 5 * time.Second
	defaultCampaignGap   = 2 * time.Second
	defaultOptInPageSize = 1000
)

func (c Config) withDefaults() Config {
	if c.MaxChunkLen <= 0 {
		c.MaxChunkLen = defaultMaxChunkLen
	}
	if c.SafetyMargin <= 0 {
		c.SafetyMargin = defaultSafetyMargin
	}
	if c.SendGap <= 0 {
		c.SendGap = defaultSendGap
	}
	if c.RateLimitWait <= 0 {
		c.RateLimitWait = defaultRateLimitWait
	}
	if c.CampaignGap <= 0 {
		c.CampaignGap = defaultCampaignGap
	}
	if c.OptInPageSize <= 0 {
		c.OptInPageSize = defaultOptInPageSize
	}
	return c
}

// TallyResult reports one reconciliation of platform reaction state into
// stored opt-ins.
type TallyResult struct {
	CampaignID int64
	Total      int
	New        int
	Existing   int
}

// Reminder is the built, not yet sent, reminder for a campaign.
type Reminder struct {
	CampaignID int64
	Recipients int
	Chunks     []string
}

// SendResult reports one sender invocation.
type SendResult struct {
	CampaignID  int64
	Live        bool
	Chunks      int
	Sent        int
	Recipients  int
	RateLimited bool
	Errors      []string
}

// Success reports whether every chunk of the run was delivered.
func (r SendResult) Success() bool {
	return r.Sent == r.Chunks && len(r.Errors) == 0
}

// DueRunResult reports one pass over due campaigns.
type DueRunResult struct {
	Now        time.Time
	Due        int
	Processed  int
	Successful int
	Failed     int
	Errors     []string
}

// Success is true when at least one campaign went through, or when there
// was nothing to do.
func (r DueRunResult) Success() bool {
	return r.Successful > 0 || r.Due == 0
}
