// Package database provides storage backends for the feed reader.
package database

import (
	"context"
	"errors"
	"time"

	"github.com/bryan-buckman/readdeck/internal/model"
)

// ErrNotFound is returned when a folder, feed or article does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// SupportsHighConcurrency returns true if the database can handle
	// many concurrent write operations (e.g., PostgreSQL).
	// SQLite returns false due to write locking limitations.
	SupportsHighConcurrency() bool

	// Folder operations
	GetFolders(ctx context.Context) ([]model.Folder, error)
	CreateFolder(ctx context.Context, name string, parentID *int64) (int64, error)
	GetOrCreateFolder(ctx context.Context, name string, parentID *int64) (int64, error)
	GetFolderByID(ctx context.Context, folderID int64) (*model.Folder, error)
	DeleteFolder(ctx context.Context, folderID int64) error

	// Feed operations
	GetFeeds(ctx context.Context, folderID *int64) ([]model.Feed, error)
	GetAllFeeds(ctx context.Context) ([]model.Feed, error)
	GetUnfiledFeeds(ctx context.Context) ([]model.Feed, error)
	GetFoldersWithFeeds(ctx context.Context) ([]model.FolderWithFeeds, error)
	CreateFeed(ctx context.Context, folderID *int64, title, url string) (int64, error)
	GetOrCreateFeed(ctx context.Context, folderID *int64, title, url string) (int64, bool, error)
	UpdateFeedLastFetched(ctx context.Context, feedID int64, t time.Time) error
	UpdateFeedTitle(ctx context.Context, feedID int64, title string) error
	UpdateFeedError(ctx context.Context, feedID int64, errMsg string) error
	GetFeedByID(ctx context.Context, feedID int64) (*model.Feed, error)
	DeleteFeed(ctx context.Context, feedID int64) error
	MoveFeedToFolder(ctx context.Context, feedID int64, folderID *int64) error

	// Article operations
	AddArticle(ctx context.Context, a *model.Article) (int64, bool, error)
	GetArticle(ctx context.Context, articleID int64) (*model.Article, error)
	QueryArticles(ctx context.Context, q ArticleQuery) ([]model.Article, error)
	MarkArticleRead(ctx context.Context, articleID int64) error
	MarkArticlesRead(ctx context.Context, articleIDs []int64) error
	SetArticleFavorite(ctx context.Context, articleID int64, favorite bool) error
	CleanupReadArticles(ctx context.Context) (int64, error)

	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetPollingInterval(ctx context.Context) (int, error)
}

// ArticleQuery scopes an article listing. Zero values mean "no restriction".
type ArticleQuery struct {
	FeedID   *int64
	FolderID *int64
	Filter   model.Filter
	Search   string
	Limit    int
	// Now anchors the today/weekend windows; zero means time.Now().
	Now time.Time
}

// Open selects a backend by driver name ("sqlite" or "postgres").
func Open(driver, path, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		db, err := New(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, errors.New("unknown database driver: " + driver)
}
