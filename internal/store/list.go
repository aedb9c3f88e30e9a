package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryan-buckman/readdeck/internal/database"
	"github.com/bryan-buckman/readdeck/internal/model"
)

// DefaultListLimit caps how many articles one listing loads.
const DefaultListLimit = 500

// ListStore holds the article list currently on screen.
type ListStore struct {
	notifier
	db database.Store

	mu       sync.RWMutex
	query    database.ArticleQuery
	articles []model.Article
}

// NewListStore creates an empty list store.
func NewListStore(db database.Store) *ListStore {
	return &ListStore{db: db}
}

// Load replaces the list with the articles matching q.
func (s *ListStore) Load(ctx context.Context, q database.ArticleQuery) error {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	articles, err := s.db.QueryArticles(ctx, q)
	if err != nil {
		return fmt.Errorf("load articles: %w", err)
	}
	s.mu.Lock()
	s.query = q
	s.articles = articles
	s.mu.Unlock()
	s.notify()
	return nil
}

// Replace swaps the list contents, e.g. with search results.
func (s *ListStore) Replace(articles []model.Article) {
	s.mu.Lock()
	s.articles = append([]model.Article(nil), articles...)
	s.mu.Unlock()
	s.notify()
}

// Articles returns a copy of the current list in display order.
func (s *ListStore) Articles() []model.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Article(nil), s.articles...)
}

// Query returns the query behind the last Load.
func (s *ListStore) Query() database.ArticleQuery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// Article finds an article in the current list.
func (s *ListStore) Article(articleID int64) (model.Article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.articles {
		if a.ID == articleID {
			return a, true
		}
	}
	return model.Article{}, false
}

// MarkAsRead persists the read flag and updates the list. It is idempotent:
// repeated or concurrent calls for the same id all succeed.
func (s *ListStore) MarkAsRead(ctx context.Context, articleID int64) error {
	if err := s.db.MarkArticleRead(ctx, articleID); err != nil {
		return fmt.Errorf("mark article %d read: %w", articleID, err)
	}
	s.update(articleID, func(a *model.Article) { a.IsRead = true })
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *ListStore) ToggleFavorite(ctx context.Context, articleID int64) (bool, error) {
	a, err := s.db.GetArticle(ctx, articleID)
	if err != nil {
		return false, fmt.Errorf("get article %d: %w", articleID, err)
	}
	favorite := !a.IsFavorite
	if err := s.db.SetArticleFavorite(ctx, articleID, favorite); err != nil {
		return false, fmt.Errorf("set favorite %d: %w", articleID, err)
	}
	s.update(articleID, func(a *model.Article) { a.IsFavorite = favorite })
	return favorite, nil
}

func (s *ListStore) update(articleID int64, fn func(*model.Article)) {
	s.mu.Lock()
	changed := false
	for i := range s.articles {
		if s.articles[i].ID == articleID {
			fn(&s.articles[i])
			changed = true
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}
