// Package htmlsource implements listing.Source for selector-driven
// HTML listing pages using gocolly.
package htmlsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/citypulse/eventcache/internal/hash/sha256"
	"github.com/citypulse/eventcache/internal/listing"
)

const defaultUserAgent = "eventcache-bot/0.1"

// Selectors are the CSS selectors used to extract one listing per row.
type Selectors struct {
	Row          string
	Name         string
	Venue        string
	Neighborhood string
	Date         string
	StartTime    string
	EndTime      string
	Link         string
}

// Config controls the adapter.
type Config struct {
	Name      string
	URL       string
	UserAgent string
	Selectors Selectors
}

// Source scrapes one listing page per Fetch.
type Source struct {
	cfg           Config
	baseCollector *colly.Collector
	hasher        *sha256.Hasher
	logger        *zap.Logger
}

// New builds a Source. The row and name selectors are required.
func New(cfg Config, logger *zap.Logger) (*Source, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("htmlsource %q: url is required", cfg.Name)
	}
	if cfg.Selectors.Row == "" || cfg.Selectors.Name == "" {
		return nil, fmt.Errorf("htmlsource %q: row and name selectors are required", cfg.Name)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.UserAgent = cfg.UserAgent
	return &Source{
		cfg:           cfg,
		baseCollector: c,
		hasher:        sha256.New(),
		logger:        logger,
	}, nil
}

// Name returns the configured source label.
func (s *Source) Name() string {
	return s.cfg.Name
}

// Fetch scrapes the listing page and extracts one event per row.
func (s *Source) Fetch(ctx context.Context) ([]listing.Event, error) {
	collector := s.baseCollector.Clone()
	collector.UserAgent = s.cfg.UserAgent
	if deadline, ok := ctx.Deadline(); ok {
		collector.SetRequestTimeout(time.Until(deadline))
	}

	var (
		events   []listing.Event
		fetchErr error
	)
	collector.OnHTML(s.cfg.Selectors.Row, func(e *colly.HTMLElement) {
		ev, ok := s.extractRow(e)
		if !ok {
			return
		}
		events = append(events, ev)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(s.cfg.URL)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s canceled: %w", s.cfg.URL, ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", s.cfg.URL, err)
		}
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.cfg.URL, fetchErr)
	}
	s.logger.Debug("html source fetched",
		zap.String("source", s.cfg.Name),
		zap.Int("events", len(events)),
	)
	return events, nil
}

func (s *Source) extractRow(e *colly.HTMLElement) (listing.Event, bool) {
	sel := s.cfg.Selectors
	name := clean(e.ChildText(sel.Name))
	if name == "" {
		return listing.Event{}, false
	}
	ev := listing.Event{
		Name:         name,
		Venue:        clean(childText(e, sel.Venue)),
		Neighborhood: clean(childText(e, sel.Neighborhood)),
		Date:         clean(childText(e, sel.Date)),
		StartTime:    clean(childText(e, sel.StartTime)),
		EndTime:      clean(childText(e, sel.EndTime)),
	}
	if sel.Link != "" {
		if href := firstAttr(e.DOM.Find(sel.Link), "href"); href != "" {
			ev.URL = e.Request.AbsoluteURL(href)
		}
	}
	ev.ID = s.identity(ev)
	return ev, true
}

// identity derives a stable dedup key from name, venue, and date, so
// the same listing found on two pages collapses to one event.
func (s *Source) identity(ev listing.Event) string {
	key := strings.ToLower(ev.Name + "|" + ev.Venue + "|" + ev.Date)
	digest, err := s.hasher.Hash([]byte(key))
	if err != nil {
		return key
	}
	return digest[:16]
}

func firstAttr(sel *goquery.Selection, attr string) string {
	if sel.Length() == 0 {
		return ""
	}
	return sel.First().AttrOr(attr, "")
}

func childText(e *colly.HTMLElement, selector string) string {
	if selector == "" {
		return ""
	}
	return e.ChildText(selector)
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
