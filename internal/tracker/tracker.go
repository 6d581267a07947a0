// Package tracker runs the fetch, classify and record cycle over all sources.
package tracker

import (
	"context"
	"fmt"
	"time"

	"grantwatch/internal/classifier"
	"grantwatch/internal/config"
	"grantwatch/internal/models"
	"grantwatch/pkg/logger"
)

// Fetcher turns a URL into page text or a failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) models.FetchResult
}

// Recorder is the slice of the store the tracker writes to.
type Recorder interface {
	Upsert(ctx context.Context, url string, status models.Status, now time.Time) (models.Outcome, error)
}

type source struct {
	name       string
	url        string
	fetcher    Fetcher
	classifier *classifier.Classifier
}

type Tracker struct {
	sources     []source
	store       Recorder
	log         logger.Logger
	concurrency int
	now         func() time.Time
}

type Option func(*Tracker)

// WithClock replaces the UTC wall clock used for verdicts and timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithConcurrency(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// New binds each configured source to the fetcher for its fetch mode.
func New(sources []config.Source, fetchers map[string]Fetcher, store Recorder, log logger.Logger, opts ...Option) (*Tracker, error) {
	if log == nil {
		log = logger.NewNop()
	}
	t := &Tracker{
		store:       store,
		log:         log,
		concurrency: 4,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(t)
	}
	for _, s := range sources {
		f, ok := fetchers[s.Fetch]
		if !ok || f == nil {
			return nil, fmt.Errorf("source %q: no fetcher for mode %q", s.Name, s.Fetch)
		}
		t.sources = append(t.sources, source{
			name:       s.Name,
			url:        s.URL,
			fetcher:    f,
			classifier: classifier.New(s.Keywords),
		})
	}
	return t, nil
}

// RunOnce tracks every source and returns one report per source, in
// configuration order. A failing source does not stop the others.
func (t *Tracker) RunOnce(ctx context.Context) []models.Report {
	reports := make([]models.Report, len(t.sources))

	// bounded concurrency
	sem := make(chan struct{}, t.concurrency)
	done := make(chan int, len(t.sources))

	for i, s := range t.sources {
		i, s := i, s
		sem <- struct{}{} // acquire
		go func() {
			defer func() { <-sem; done <- i }()
			reports[i] = t.track(ctx, s)
		}()
	}
	for range t.sources {
		<-done
	}

	t.log.Info("tracking pass finished", logger.Int("sources", len(reports)))
	return reports
}

func (t *Tracker) track(ctx context.Context, s source) models.Report {
	log := t.log.With(logger.String("source", s.name), logger.String("url", s.url))
	rep := models.Report{Source: s.name, URL: s.url}

	res := s.fetcher.Fetch(ctx, s.url)
	rep.FetchMs = res.Duration.Milliseconds()
	now := t.now()

	if res.OK() {
		rep.Status = s.classifier.Classify(res.Text, now)
	} else {
		rep.Status = models.StatusError
		rep.Error = res.Reason
		log.Warn("fetch failed", logger.String("reason", res.Reason))
	}

	outcome, err := t.store.Upsert(ctx, s.url, rep.Status, now)
	rep.Outcome = outcome
	if err != nil {
		log.Error("recording status failed", logger.Error(err))
		if rep.Error == "" {
			rep.Error = err.Error()
		}
		return rep
	}
	log.Debug("source tracked", logger.String("status", string(rep.Status)), logger.String("outcome", string(outcome)))
	return rep
}
