package store

import (
	"context"

	"github.com/bryan-buckman/readdeck/internal/database"
)

// Set is the application's single instance of each store.
type Set struct {
	Feeds  *FeedsStore
	List   *ListStore
	Search *SearchStore
	Reader *ReaderStore
	Tasks  *TasksStore
	Sprite *SpriteStore
}

// NewSet creates every store and loads the feed list.
func NewSet(ctx context.Context, db database.Store) (*Set, error) {
	s := &Set{
		Feeds:  NewFeedsStore(db),
		List:   NewListStore(db),
		Search: NewSearchStore(db),
		Reader: NewReaderStore(ctx, db),
		Tasks:  NewTasksStore(),
		Sprite: NewSpriteStore(),
	}
	if err := s.Feeds.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
