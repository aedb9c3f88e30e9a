// Package rss provides feed fetching and parsing.
package rss

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/bryan-buckman/readdeck/internal/database"
	"github.com/bryan-buckman/readdeck/internal/model"
)

// Concurrency settings
const (
	// MaxConcurrencyPostgres is the number of parallel fetches for PostgreSQL
	MaxConcurrencyPostgres = 10
	// MaxConcurrencySQLite is the number of parallel fetches for SQLite (limited due to locking)
	MaxConcurrencySQLite = 1
	// MaxConcurrencyPerDomain limits parallel requests to any single domain
	MaxConcurrencyPerDomain = 2
	// DelayBetweenDomainRequests is the minimum delay between requests to the same domain
	DelayBetweenDomainRequests = 500 * time.Millisecond
)

// maxErrorLen bounds the fetch error stored for display.
const maxErrorLen = 200

// domainLimiter controls rate limiting per domain to avoid overwhelming hosts.
type domainLimiter struct {
	mu          sync.Mutex
	semaphores  map[string]chan struct{}
	lastRequest map[string]time.Time
	delay       time.Duration
}

func newDomainLimiter(delay time.Duration) *domainLimiter {
	return &domainLimiter{
		semaphores:  make(map[string]chan struct{}),
		lastRequest: make(map[string]time.Time),
		delay:       delay,
	}
}

// acquire gets a slot for the domain, blocking if necessary.
// It also enforces the minimum delay between requests to the same domain.
func (dl *domainLimiter) acquire(ctx context.Context, domain string) error {
	dl.mu.Lock()
	sem, ok := dl.semaphores[domain]
	if !ok {
		sem = make(chan struct{}, MaxConcurrencyPerDomain)
		dl.semaphores[domain] = sem
	}
	dl.mu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	dl.mu.Lock()
	lastReq := dl.lastRequest[domain]
	dl.mu.Unlock()

	if !lastReq.IsZero() {
		if elapsed := time.Since(lastReq); elapsed < dl.delay {
			select {
			case <-time.After(dl.delay - elapsed):
			case <-ctx.Done():
				<-sem
				return ctx.Err()
			}
		}
	}
	return nil
}

// release returns a slot for the domain and records the request time.
func (dl *domainLimiter) release(domain string) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.lastRequest[domain] = time.Now()
	if sem, ok := dl.semaphores[domain]; ok {
		<-sem
	}
}

// extractDomain gets the host from a URL.
func extractDomain(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL // fallback to full URL
	}
	return u.Host
}

// Fetcher handles RSS feed fetching.
type Fetcher struct {
	db            database.Store
	parser        *gofeed.Parser
	concurrency   int
	domainLimiter *domainLimiter
}

// NewFetcher creates a new fetcher with concurrency based on database type.
func NewFetcher(db database.Store) *Fetcher {
	concurrency := MaxConcurrencySQLite
	if db.SupportsHighConcurrency() {
		concurrency = MaxConcurrencyPostgres
	}
	parser := gofeed.NewParser()
	parser.UserAgent = "readdeck/1.0"
	return &Fetcher{
		db:            db,
		parser:        parser,
		concurrency:   concurrency,
		domainLimiter: newDomainLimiter(DelayBetweenDomainRequests),
	}
}

// FetchFeed fetches and parses a single feed, storing new articles.
// Returns the number of new articles added.
func (f *Fetcher) FetchFeed(ctx context.Context, feed model.Feed) (int, error) {
	domain := extractDomain(feed.URL)
	if err := f.domainLimiter.acquire(ctx, domain); err != nil {
		return 0, fmt.Errorf("rate limit cancelled for %s: %w", feed.URL, err)
	}
	defer f.domainLimiter.release(domain)

	parsed, err := f.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		errMsg := err.Error()
		if len(errMsg) > maxErrorLen {
			errMsg = errMsg[:maxErrorLen]
		}
		if uerr := f.db.UpdateFeedError(ctx, feed.ID, errMsg); uerr != nil {
			log.Printf("rss: record error for feed %d: %v", feed.ID, uerr)
		}
		return 0, fmt.Errorf("parse feed %s: %w", feed.URL, err)
	}

	// Replace placeholder titles (the URL itself) with the feed's own title.
	if parsed.Title != "" && parsed.Title != feed.Title && feed.Title == feed.URL {
		if err := f.db.UpdateFeedTitle(ctx, feed.ID, parsed.Title); err != nil {
			log.Printf("rss: update title for feed %d: %v", feed.ID, err)
		} else {
			log.Printf("rss: updated feed title: %s -> %s", feed.URL, parsed.Title)
		}
	}

	now := time.Now()
	newCount := 0
	for _, item := range parsed.Items {
		a, ok := articleFromItem(feed.ID, item, now)
		if !ok {
			continue
		}
		_, isNew, err := f.db.AddArticle(ctx, &a)
		if err != nil {
			log.Printf("rss: add article %s: %v", a.GUID, err)
			continue
		}
		if isNew {
			newCount++
		}
	}

	if err := f.db.UpdateFeedLastFetched(ctx, feed.ID, now); err != nil {
		log.Printf("rss: update last_fetched for feed %d: %v", feed.ID, err)
	}
	return newCount, nil
}

// articleFromItem converts a parsed item. Items without GUID or link are skipped.
func articleFromItem(feedID int64, item *gofeed.Item, now time.Time) (model.Article, bool) {
	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}
	if guid == "" {
		return model.Article{}, false
	}
	pubDate := now
	if item.PublishedParsed != nil {
		pubDate = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		pubDate = *item.UpdatedParsed
	}
	a := model.Article{
		FeedID:      feedID,
		GUID:        guid,
		Title:       item.Title,
		Content:     item.Content,
		Link:        item.Link,
		PublishedAt: pubDate,
		FetchedAt:   now,
	}
	if a.Content == "" {
		a.Content = item.Description
	}
	if a.Title == "" {
		a.Title = a.Link
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		a.Author = item.Authors[0].Name
	}
	if item.Image != nil {
		a.ImageURL = item.Image.URL
	} else {
		for _, enc := range item.Enclosures {
			if enc != nil && strings.HasPrefix(enc.Type, "image/") {
				a.ImageURL = enc.URL
				break
			}
		}
	}
	return a, true
}

// FetchResult holds the result of fetching a single feed.
type FetchResult struct {
	FeedID   int64
	NewItems int
	Error    error
}

// FetchAll fetches all feeds with configurable concurrency.
// Uses parallel workers for PostgreSQL, sequential for SQLite.
// Returns a map of feed ID -> new article count.
func (f *Fetcher) FetchAll(ctx context.Context) (map[int64]int, error) {
	feeds, err := f.db.GetAllFeeds(ctx)
	if err != nil {
		return nil, err
	}
	if len(feeds) == 0 {
		return make(map[int64]int), nil
	}

	log.Printf("rss: fetching %d feeds with concurrency=%d", len(feeds), f.concurrency)
	if f.concurrency <= 1 {
		return f.fetchSequential(ctx, feeds)
	}
	return f.fetchParallel(ctx, feeds)
}

// fetchSequential fetches feeds one at a time (for SQLite).
func (f *Fetcher) fetchSequential(ctx context.Context, feeds []model.Feed) (map[int64]int, error) {
	results := make(map[int64]int)

	for i, feed := range feeds {
		select {
		case <-ctx.Done():
			log.Printf("rss: fetch cancelled after %d/%d feeds", i, len(feeds))
			return results, ctx.Err()
		default:
		}

		count, err := f.FetchFeed(ctx, feed)
		if err != nil {
			log.Printf("rss: fetch %s: %v", feed.URL, err)
			continue
		}
		results[feed.ID] = count

		if (i+1)%50 == 0 {
			log.Printf("rss: progress %d/%d feeds fetched", i+1, len(feeds))
		}
	}
	return results, nil
}

// fetchParallel fetches feeds using a worker pool (for PostgreSQL).
func (f *Fetcher) fetchParallel(ctx context.Context, feeds []model.Feed) (map[int64]int, error) {
	var wg sync.WaitGroup

	feedChan := make(chan model.Feed)
	resultChan := make(chan FetchResult, len(feeds))

	for i := 0; i < f.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for feed := range feedChan {
				count, err := f.FetchFeed(ctx, feed)
				resultChan <- FetchResult{FeedID: feed.ID, NewItems: count, Error: err}
			}
		}()
	}

	go func() {
		defer close(feedChan)
		for _, feed := range feeds {
			select {
			case <-ctx.Done():
				return
			case feedChan <- feed:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make(map[int64]int)
	for result := range resultChan {
		if result.Error != nil {
			log.Printf("rss: fetch feed %d: %v", result.FeedID, result.Error)
			continue
		}
		results[result.FeedID] = result.NewItems
		if len(results)%50 == 0 {
			log.Printf("rss: progress %d/%d feeds fetched", len(results), len(feeds))
		}
	}
	return results, ctx.Err()
}
