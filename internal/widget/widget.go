// Package widget declares the contracts between UI surfaces and the stores
// they render from.
//
// Each props type lists the complete set of inputs a widget may depend on:
// store references it does not own, and callbacks owned by the composing
// page. Stores are declared here as the narrow interfaces a widget reads
// through, so a test can satisfy a contract with a small fake instead of the
// whole application.
package widget

import (
	"context"
	"errors"
	"fmt"
	"html/template"

	"github.com/bryan-buckman/readdeck/internal/model"
)

// Article is the article shape widgets reference.
type Article = model.Article

// ArticleReadMode is the closed set of reader rendering strategies.
type ArticleReadMode = model.ArticleReadMode

// ErrUnresolvedArticle is returned when a reader's article id is unknown to its store.
var ErrUnresolvedArticle = errors.New("article not resolvable")

// FieldError reports a contract field that was left unset.
type FieldError struct {
	Widget string
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s is required", e.Widget, e.Field)
	}
	return fmt.Sprintf("%s: %s %s", e.Widget, e.Field, e.Reason)
}

// Props is implemented by every contract.
type Props interface {
	WidgetName() string
	Validate() error
}

// Subscriber delivers a signal after every store change.
type Subscriber interface {
	Subscribe() (<-chan struct{}, func())
}

// FeedsStore is the feed list's view of the feeds state.
type FeedsStore interface {
	Subscriber
	FoldersWithFeeds() []model.FolderWithFeeds
	UnfiledFeeds() []model.Feed
	UnreadCount() int
}

// SearchStore is the search bar's view of the search state.
type SearchStore interface {
	Subscriber
	Query() string
	Results() []Article
	Search(ctx context.Context, query string) ([]Article, error)
}

// ListStore is the article list state. The search bar writes into it.
type ListStore interface {
	Subscriber
	Articles() []Article
	Replace(articles []Article)
	MarkAsRead(ctx context.Context, articleID int64) error
}

// ReaderStore resolves and renders the article being read.
type ReaderStore interface {
	Subscriber
	Article(ctx context.Context, articleID int64) (*Article, error)
	Mode() ArticleReadMode
	Render(ctx context.Context, articleID int64) (template.HTML, error)
}

// TasksStore exposes background work for the footer.
type TasksStore interface {
	Subscriber
	Snapshot() []model.Task
	Running() int
}

// SpriteStore exposes the assistant sprite.
type SpriteStore interface {
	Subscriber
	Sprite() model.Sprite
}
