package widget

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryan-buckman/readdeck/internal/model"
)

// Widget names.
const (
	FeedsList     = "feeds_list"
	SearchBar     = "search_bar"
	ArticleReader = "article_reader"
	ArticlesList  = "articles_list"
	Footer        = "footer"
	AISprite      = "ai_sprite"
)

// FeedsListProps binds the sidebar. The active filter is a single value, so
// at most one of the Is*Selected queries can be true.
type FeedsListProps struct {
	Store          FeedsStore
	SelectedFeedID *int64 // nil when no feed is selected
	OnFeedPressed  func(feedID int64)
	Filter         model.Filter
	OnSelectFilter func(model.Filter)
}

func (p FeedsListProps) WidgetName() string { return FeedsList }

func (p FeedsListProps) Validate() error {
	switch {
	case p.Store == nil:
		return &FieldError{Widget: FeedsList, Field: "Store"}
	case p.OnFeedPressed == nil:
		return &FieldError{Widget: FeedsList, Field: "OnFeedPressed"}
	case p.OnSelectFilter == nil:
		return &FieldError{Widget: FeedsList, Field: "OnSelectFilter"}
	case p.Filter < model.FilterNone || p.Filter > model.FilterUnread:
		return &FieldError{Widget: FeedsList, Field: "Filter", Reason: fmt.Sprintf("has unknown value %d", int(p.Filter))}
	}
	return nil
}

func (p FeedsListProps) OnSelectToday()    { p.OnSelectFilter(model.FilterToday) }
func (p FeedsListProps) OnSelectWeekend()  { p.OnSelectFilter(model.FilterWeekend) }
func (p FeedsListProps) OnSelectFavorite() { p.OnSelectFilter(model.FilterFavorite) }
func (p FeedsListProps) OnSelectUnread()   { p.OnSelectFilter(model.FilterUnread) }

func (p FeedsListProps) IsTodaySelected() bool    { return p.Filter == model.FilterToday }
func (p FeedsListProps) IsWeekendSelected() bool  { return p.Filter == model.FilterWeekend }
func (p FeedsListProps) IsFavoriteSelected() bool { return p.Filter == model.FilterFavorite }
func (p FeedsListProps) IsUnreadSelected() bool   { return p.Filter == model.FilterUnread }

// IsFeedSelected reports whether feedID is the selected feed.
func (p FeedsListProps) IsFeedSelected(feedID int64) bool {
	return p.SelectedFeedID != nil && *p.SelectedFeedID == feedID
}

// SearchBarProps binds the search bar. Results feed into ArticlesStore.
type SearchBarProps struct {
	Store         SearchStore
	ArticlesStore ListStore
}

func (p SearchBarProps) WidgetName() string { return SearchBar }

func (p SearchBarProps) Validate() error {
	switch {
	case p.Store == nil:
		return &FieldError{Widget: SearchBar, Field: "Store"}
	case p.ArticlesStore == nil:
		return &FieldError{Widget: SearchBar, Field: "ArticlesStore"}
	}
	return nil
}

// Submit runs the search and replaces the article list with the results.
// On error the list is left untouched.
func (p SearchBarProps) Submit(ctx context.Context, query string) error {
	results, err := p.Store.Search(ctx, query)
	if err != nil {
		return err
	}
	p.ArticlesStore.Replace(results)
	return nil
}

// ArticleReaderProps binds the reader to one article.
type ArticleReaderProps struct {
	ArticleID int64
	Store     ReaderStore
}

func (p ArticleReaderProps) WidgetName() string { return ArticleReader }

func (p ArticleReaderProps) Validate() error {
	switch {
	case p.Store == nil:
		return &FieldError{Widget: ArticleReader, Field: "Store"}
	case p.ArticleID <= 0:
		return &FieldError{Widget: ArticleReader, Field: "ArticleID", Reason: "must be positive"}
	}
	return nil
}

// Resolve checks that ArticleID names an article the store can load.
func (p ArticleReaderProps) Resolve(ctx context.Context) (*Article, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	a, err := p.Store.Article(ctx, p.ArticleID)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%w: %d", ErrUnresolvedArticle, p.ArticleID), err)
	}
	return a, nil
}

// ArticlesListProps binds the article list.
type ArticlesListProps struct {
	Store            ListStore
	MarkAsRead       func(ctx context.Context, articleID int64) error
	IsFilterActive   bool
	IsFeedSpecified  bool
	SelectedArticle  *Article // nil when nothing is selected
	OnArticlePressed func(Article)
}

func (p ArticlesListProps) WidgetName() string { return ArticlesList }

func (p ArticlesListProps) Validate() error {
	switch {
	case p.Store == nil:
		return &FieldError{Widget: ArticlesList, Field: "Store"}
	case p.MarkAsRead == nil:
		return &FieldError{Widget: ArticlesList, Field: "MarkAsRead"}
	case p.OnArticlePressed == nil:
		return &FieldError{Widget: ArticlesList, Field: "OnArticlePressed"}
	}
	return nil
}

// IsSelected reports whether a is the selected article.
func (p ArticlesListProps) IsSelected(a Article) bool {
	return p.SelectedArticle != nil && p.SelectedArticle.ID == a.ID
}

// FooterProps binds the footer.
type FooterProps struct {
	TasksStore TasksStore
}

func (p FooterProps) WidgetName() string { return Footer }

func (p FooterProps) Validate() error {
	if p.TasksStore == nil {
		return &FieldError{Widget: Footer, Field: "TasksStore"}
	}
	return nil
}

// AISpriteProps binds the assistant sprite.
type AISpriteProps struct {
	Store SpriteStore
}

func (p AISpriteProps) WidgetName() string { return AISprite }

func (p AISpriteProps) Validate() error {
	if p.Store == nil {
		return &FieldError{Widget: AISprite, Field: "Store"}
	}
	return nil
}
