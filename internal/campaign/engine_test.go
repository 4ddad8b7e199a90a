package campaign

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"optinbot/internal/platform"
	"optinbot/internal/storage"
)

// fakeClient scripts the platform collaborator: a fixed reactor set and
// per-call send outcomes.
type fakeClient struct {
	mu        sync.Mutex
	reactors  []platform.Reactor
	reactErr  error
	sendErrs  []error // indexed by send call; nil and out-of-range mean success
	sent      []string
	callCount int
}

func (f *fakeClient) ReactingUsers(ctx context.Context, channelID, messageID, emoji string) ([]platform.Reactor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactErr != nil {
		return nil, f.reactErr
	}
	return append([]platform.Reactor(nil), f.reactors...), nil
}

func (f *fakeClient) SendMessage(ctx context.Context, channelID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.callCount
	f.callCount++
	if idx < len(f.sendErrs) && f.sendErrs[idx] != nil {
		return "", f.sendErrs[idx]
	}
	f.sent = append(f.sent, text)
	return fmt.Sprintf("msg-%d", idx), nil
}

func (f *fakeClient) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestService(t *testing.T, fc *fakeClient, cfg Config) (*Service, storage.Store) {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "optinbot.db")}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if cfg.SendGap == 0 {
		cfg.SendGap = time.Millisecond
	}
	if cfg.RateLimitWait == 0 {
		cfg.RateLimitWait = time.Millisecond
	}
	if cfg.CampaignGap == 0 {
		cfg.CampaignGap = time.Millisecond
	}
	return New(cfg, st, fc, zerolog.Nop()), st
}

func mustCreateCampaign(t *testing.T, svc *Service, title string, remindAt time.Time) storage.Campaign {
	t.Helper()
	c, err := svc.CreateCampaign(context.Background(), title, "chan-1", "msg-"+title, "👍", remindAt)
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	return c
}

func mustAddOptIns(t *testing.T, st storage.Store, campaignID int64, userIDs ...string) {
	t.Helper()
	for _, u := range userIDs {
		if err := st.UpsertOptIn(context.Background(), storage.OptIn{CampaignID: campaignID, UserID: u}); err != nil {
			t.Fatalf("UpsertOptIn(%s): %v", u, err)
		}
	}
}

// extractMentions pulls every <@...> token out of the rendered chunks.
func extractMentions(chunks []string) []string {
	var out []string
	for _, chunk := range chunks {
		rest := chunk
		for {
			i := strings.Index(rest, "<@")
			if i < 0 {
				break
			}
			j := strings.Index(rest[i:], ">")
			if j < 0 {
				break
			}
			out = append(out, rest[i:i+j+1])
			rest = rest[i+j+1:]
		}
	}
	return out
}
