package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryan-buckman/readdeck/internal/database"
	"github.com/bryan-buckman/readdeck/internal/model"
)

// FeedsStore keeps the sidebar snapshot of folders and feeds.
type FeedsStore struct {
	notifier
	db database.Store

	mu      sync.RWMutex
	folders []model.FolderWithFeeds
	unfiled []model.Feed
}

// NewFeedsStore creates an empty feeds store. Call Reload to populate it.
func NewFeedsStore(db database.Store) *FeedsStore {
	return &FeedsStore{db: db}
}

// Reload refreshes folders, feeds and their counts from the database.
func (s *FeedsStore) Reload(ctx context.Context) error {
	folders, err := s.db.GetFoldersWithFeeds(ctx)
	if err != nil {
		return fmt.Errorf("load folders: %w", err)
	}
	unfiled, err := s.db.GetUnfiledFeeds(ctx)
	if err != nil {
		return fmt.Errorf("load unfiled feeds: %w", err)
	}
	s.mu.Lock()
	s.folders = folders
	s.unfiled = unfiled
	s.mu.Unlock()
	s.notify()
	return nil
}

// FoldersWithFeeds returns the folders captured by the last Reload.
func (s *FeedsStore) FoldersWithFeeds() []model.FolderWithFeeds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.FolderWithFeeds(nil), s.folders...)
}

// UnfiledFeeds returns the feeds outside any folder captured by the last Reload.
func (s *FeedsStore) UnfiledFeeds() []model.Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Feed(nil), s.unfiled...)
}

// Feed looks up a feed from the snapshot.
func (s *FeedsStore) Feed(feedID int64) (model.Feed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.unfiled {
		if f.ID == feedID {
			return f, true
		}
	}
	for _, folder := range s.folders {
		for _, f := range folder.Feeds {
			if f.ID == feedID {
				return f, true
			}
		}
	}
	return model.Feed{}, false
}

// UnreadCount sums unread articles across every feed in the snapshot.
func (s *FeedsStore) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, f := range s.unfiled {
		n += f.UnreadCount
	}
	for _, folder := range s.folders {
		for _, f := range folder.Feeds {
			n += f.UnreadCount
		}
	}
	return n
}
