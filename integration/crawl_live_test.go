//go:build integration

package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"grantwatch/internal/config"
	"grantwatch/internal/crawler"
	"grantwatch/internal/store"
	"grantwatch/internal/tracker"
)

// Live pass over the HTTP sources of the embedded catalogue. Sites change
// and block crawlers, so only the recording side is asserted.
func TestLiveHTTPSources(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	var sources []config.Source
	for _, s := range cfg.Sources {
		if s.Fetch == config.FetchHTTP {
			sources = append(sources, s)
		}
	}

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "grants.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	client := crawler.NewHTTPClient(25*time.Second, 5*time.Second, 5*1024*1024, crawler.NewUserAgents(cfg.HTTP.UserAgents))
	tr, err := tracker.New(sources, map[string]tracker.Fetcher{config.FetchHTTP: client}, st, nil)
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	reachable := 0
	for _, r := range tr.RunOnce(ctx) {
		if r.Error != "" {
			t.Logf("%s: %s", r.Source, r.Error)
			continue
		}
		reachable++
		t.Logf("%s: %s", r.Source, r.Status)
	}
	if reachable == 0 {
		t.Skip("skipping: no source reachable (network/robots/captcha)")
	}

	grants, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(grants) != len(sources) {
		t.Errorf("expected %d records, got %d", len(sources), len(grants))
	}
}
