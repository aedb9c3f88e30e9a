package rss

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/bryan-buckman/readdeck/internal/database"
)

// ErrRefreshRunning is returned when a refresh is requested while one is in flight.
var ErrRefreshRunning = errors.New("refresh already running")

// refreshTimeout bounds a single refresh of every feed.
const refreshTimeout = 10 * time.Minute

// TaskRecorder records background work for display.
type TaskRecorder interface {
	Start(name string) string
	Finish(id string, err error)
}

// Summary totals one refresh run.
type Summary struct {
	Feeds    int `json:"feeds"`
	NewItems int `json:"new_items"`
}

// Poller runs continuous polling.
type Poller struct {
	fetcher *Fetcher
	db      database.Store
	tasks   TaskRecorder

	// AfterRun, when set, is called after every successful refresh.
	AfterRun func(ctx context.Context, s Summary)

	running sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPoller creates a background poller that records each run in tasks.
func NewPoller(db database.Store, fetcher *Fetcher, tasks TaskRecorder) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		fetcher: fetcher,
		db:      db,
		tasks:   tasks,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// RunOnce refreshes every feed once.
func (p *Poller) RunOnce(ctx context.Context) (Summary, error) {
	if !p.running.TryLock() {
		return Summary{}, ErrRefreshRunning
	}
	defer p.running.Unlock()

	id := p.tasks.Start("refresh feeds")
	start := time.Now()
	results, err := p.fetcher.FetchAll(ctx)
	p.tasks.Finish(id, err)
	if err != nil {
		log.Printf("poller: refresh failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return Summary{}, err
	}

	s := Summary{Feeds: len(results)}
	for _, c := range results {
		s.NewItems += c
	}
	log.Printf("poller: fetched %d new articles from %d feeds (took=%s)", s.NewItems, s.Feeds, time.Since(start).Round(time.Millisecond))
	if p.AfterRun != nil {
		p.AfterRun(ctx, s)
	}
	return s, nil
}

// Start begins the polling loop. Each run is cancelled by Stop.
func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			if p.ctx.Err() != nil {
				return
			}
			ctx, cancel := context.WithTimeout(p.ctx, refreshTimeout)
			if _, err := p.RunOnce(ctx); err != nil && !errors.Is(err, ErrRefreshRunning) {
				log.Printf("poller: %v", err)
			}
			interval, _ := p.db.GetPollingInterval(ctx)
			cancel()
			if interval < database.MinPollingIntervalMinutes {
				interval = database.MinPollingIntervalMinutes
			}
			log.Printf("poller: next refresh in %dm", interval)

			select {
			case <-p.ctx.Done():
				return
			case <-time.After(time.Duration(interval) * time.Minute):
			}
		}
	}()
}

// Stop cancels any refresh in flight and waits for the loop to exit.
// It is safe to call more than once.
func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()
}
