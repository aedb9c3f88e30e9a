package store

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"sync"

	"github.com/bryan-buckman/readdeck/internal/database"
	"github.com/bryan-buckman/readdeck/internal/model"
	"github.com/bryan-buckman/readdeck/internal/readmode"
)

// ReaderStore resolves articles for the reader and remembers the read mode.
type ReaderStore struct {
	notifier
	db database.Store

	mu   sync.RWMutex
	mode model.ArticleReadMode
}

// NewReaderStore loads the persisted read mode, falling back to optimized.
func NewReaderStore(ctx context.Context, db database.Store) *ReaderStore {
	s := &ReaderStore{db: db, mode: model.ReadModeOptimized}
	val, err := db.GetSetting(ctx, model.SettingReadMode)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			log.Printf("reader: load read mode: %v", err)
		}
		return s
	}
	if mode, err := model.ParseArticleReadMode(val); err == nil {
		s.mode = mode
	} else {
		log.Printf("reader: ignoring stored read mode: %v", err)
	}
	return s
}

// Article resolves an article by id.
func (s *ReaderStore) Article(ctx context.Context, articleID int64) (*model.Article, error) {
	a, err := s.db.GetArticle(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("get article %d: %w", articleID, err)
	}
	return a, nil
}

// Mode returns the current read mode.
func (s *ReaderStore) Mode() model.ArticleReadMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode validates and persists the read mode.
func (s *ReaderStore) SetMode(ctx context.Context, mode model.ArticleReadMode) error {
	if !mode.Valid() {
		return fmt.Errorf("set read mode: %w: %q", model.ErrInvalidReadMode, mode)
	}
	if err := s.db.SetSetting(ctx, model.SettingReadMode, string(mode)); err != nil {
		return fmt.Errorf("save read mode: %w", err)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	s.notify()
	return nil
}

// Render returns the article body rendered in the current read mode.
func (s *ReaderStore) Render(ctx context.Context, articleID int64) (template.HTML, error) {
	a, err := s.Article(ctx, articleID)
	if err != nil {
		return "", err
	}
	return readmode.Render(s.Mode(), *a)
}
