package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bryan-buckman/readdeck/internal/model"
)

// MinPollingIntervalMinutes is the smallest polling interval honoured.
const MinPollingIntervalMinutes = 15

// dialect holds the few differences between the SQLite and PostgreSQL SQL.
type dialect struct {
	numbered bool   // $1, $2 placeholders instead of ?
	like     string // case-insensitive LIKE operator
}

var (
	sqliteDialect   = dialect{like: "LIKE"}
	postgresDialect = dialect{numbered: true, like: "ILIKE"}
)

// likeEscaper makes LIKE wildcards in user text match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// rebind rewrites ? placeholders for dialects with numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlStore implements the Store operations shared by both backends.
type sqlStore struct {
	conn *sql.DB
	d    dialect
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *sqlStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *sqlStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.conn.QueryRowContext(ctx, s.d.rebind(query), args...)
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	return s.conn.Close()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- Folder Methods ---

// GetFolders returns all folders ordered by name.
func (s *sqlStore) GetFolders(ctx context.Context) ([]model.Folder, error) {
	rows, err := s.query(ctx, "SELECT id, name, parent_id FROM folders ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var folders []model.Folder
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.ParentID); err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// CreateFolder creates a new folder. Returns the ID.
func (s *sqlStore) CreateFolder(ctx context.Context, name string, parentID *int64) (int64, error) {
	var id int64
	err := s.queryRow(ctx, "INSERT INTO folders (name, parent_id) VALUES (?, ?) RETURNING id", name, parentID).Scan(&id)
	return id, err
}

// GetOrCreateFolder finds a folder by name and parent, or creates it.
func (s *sqlStore) GetOrCreateFolder(ctx context.Context, name string, parentID *int64) (int64, error) {
	var id int64
	var row *sql.Row
	if parentID == nil {
		row = s.queryRow(ctx, "SELECT id FROM folders WHERE name = ? AND parent_id IS NULL", name)
	} else {
		row = s.queryRow(ctx, "SELECT id FROM folders WHERE name = ? AND parent_id = ?", name, *parentID)
	}
	err := row.Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return s.CreateFolder(ctx, name, parentID)
	}
	return id, err
}

// GetFolderByID returns a single folder.
func (s *sqlStore) GetFolderByID(ctx context.Context, folderID int64) (*model.Folder, error) {
	var f model.Folder
	err := s.queryRow(ctx, "SELECT id, name, parent_id FROM folders WHERE id = ?", folderID).
		Scan(&f.ID, &f.Name, &f.ParentID)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// DeleteFolder removes a folder and the feeds filed under it.
func (s *sqlStore) DeleteFolder(ctx context.Context, folderID int64) error {
	// Articles cascade via FK.
	if _, err := s.exec(ctx, "DELETE FROM feeds WHERE folder_id = ?", folderID); err != nil {
		return err
	}
	_, err := s.exec(ctx, "DELETE FROM folders WHERE id = ?", folderID)
	return err
}

// --- Feed Methods ---

const feedColumns = `f.id, f.folder_id, f.title, f.url, f.icon_url, f.last_fetched, f.last_error,
	(SELECT COUNT(*) FROM articles WHERE feed_id = f.id) AS item_count,
	(SELECT COUNT(*) FROM articles WHERE feed_id = f.id AND is_read = FALSE) AS unread_count`

// GetFeeds returns feeds with article counts, optionally filtered by folder.
func (s *sqlStore) GetFeeds(ctx context.Context, folderID *int64) ([]model.Feed, error) {
	var rows *sql.Rows
	var err error
	if folderID == nil {
		rows, err = s.query(ctx, "SELECT "+feedColumns+" FROM feeds f ORDER BY f.title")
	} else {
		rows, err = s.query(ctx, "SELECT "+feedColumns+" FROM feeds f WHERE f.folder_id = ? ORDER BY f.title", *folderID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFeeds(rows)
}

// GetAllFeeds returns all feeds regardless of folder.
func (s *sqlStore) GetAllFeeds(ctx context.Context) ([]model.Feed, error) {
	return s.GetFeeds(ctx, nil)
}

// GetUnfiledFeeds returns feeds that are not in any folder.
func (s *sqlStore) GetUnfiledFeeds(ctx context.Context) ([]model.Feed, error) {
	rows, err := s.query(ctx, "SELECT "+feedColumns+" FROM feeds f WHERE f.folder_id IS NULL ORDER BY f.title")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFeeds(rows)
}

// GetFoldersWithFeeds returns every folder with its feeds for the sidebar.
func (s *sqlStore) GetFoldersWithFeeds(ctx context.Context) ([]model.FolderWithFeeds, error) {
	folders, err := s.GetFolders(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]model.FolderWithFeeds, 0, len(folders))
	for _, folder := range folders {
		id := folder.ID
		feeds, err := s.GetFeeds(ctx, &id)
		if err != nil {
			return nil, err
		}
		result = append(result, model.FolderWithFeeds{Folder: folder, Feeds: feeds})
	}
	return result, nil
}

// CreateFeed adds a new feed. Returns the ID.
func (s *sqlStore) CreateFeed(ctx context.Context, folderID *int64, title, url string) (int64, error) {
	var id int64
	err := s.queryRow(ctx, "INSERT INTO feeds (folder_id, title, url) VALUES (?, ?, ?) RETURNING id", folderID, title, url).Scan(&id)
	return id, err
}

// GetOrCreateFeed finds a feed by URL, or creates it.
func (s *sqlStore) GetOrCreateFeed(ctx context.Context, folderID *int64, title, url string) (int64, bool, error) {
	var id int64
	err := s.queryRow(ctx, "SELECT id FROM feeds WHERE url = ?", url).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		id, err := s.CreateFeed(ctx, folderID, title, url)
		return id, err == nil, err
	}
	return id, false, err
}

// UpdateFeedLastFetched updates the last_fetched timestamp and clears any error.
func (s *sqlStore) UpdateFeedLastFetched(ctx context.Context, feedID int64, t time.Time) error {
	_, err := s.exec(ctx, "UPDATE feeds SET last_fetched = ?, last_error = '' WHERE id = ?", t.UTC(), feedID)
	return err
}

// UpdateFeedTitle renames a feed.
func (s *sqlStore) UpdateFeedTitle(ctx context.Context, feedID int64, title string) error {
	_, err := s.exec(ctx, "UPDATE feeds SET title = ? WHERE id = ?", title, feedID)
	return err
}

// UpdateFeedError records the last fetch error for display.
func (s *sqlStore) UpdateFeedError(ctx context.Context, feedID int64, errMsg string) error {
	_, err := s.exec(ctx, "UPDATE feeds SET last_error = ? WHERE id = ?", errMsg, feedID)
	return err
}

// GetFeedByID returns a single feed with its counts.
func (s *sqlStore) GetFeedByID(ctx context.Context, feedID int64) (*model.Feed, error) {
	rows, err := s.query(ctx, "SELECT "+feedColumns+" FROM feeds f WHERE f.id = ?", feedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	feeds, err := scanFeeds(rows)
	if err != nil {
		return nil, err
	}
	if len(feeds) == 0 {
		return nil, ErrNotFound
	}
	return &feeds[0], nil
}

// DeleteFeed removes a feed and its articles.
func (s *sqlStore) DeleteFeed(ctx context.Context, feedID int64) error {
	_, err := s.exec(ctx, "DELETE FROM feeds WHERE id = ?", feedID)
	return err
}

// MoveFeedToFolder files a feed under another folder (nil for unfiled).
func (s *sqlStore) MoveFeedToFolder(ctx context.Context, feedID int64, folderID *int64) error {
	_, err := s.exec(ctx, "UPDATE feeds SET folder_id = ? WHERE id = ?", folderID, feedID)
	return err
}

func scanFeeds(rows *sql.Rows) ([]model.Feed, error) {
	var feeds []model.Feed
	for rows.Next() {
		var f model.Feed
		var lastFetched sql.NullTime
		var lastError, iconURL sql.NullString
		if err := rows.Scan(&f.ID, &f.FolderID, &f.Title, &f.URL, &iconURL, &lastFetched, &lastError, &f.ItemCount, &f.UnreadCount); err != nil {
			return nil, err
		}
		if lastFetched.Valid {
			f.LastFetched = lastFetched.Time
		}
		f.IconURL = iconURL.String
		f.LastError = lastError.String
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// --- Article Methods ---

const articleColumns = `a.id, a.feed_id, f.title, a.guid, a.title, a.author, a.content, a.link,
	a.image_url, a.published_at, a.fetched_at, a.is_read, a.is_favorite`

// AddArticle inserts a new article if its GUID doesn't exist for that feed.
// Returns the ID and whether it was new.
func (s *sqlStore) AddArticle(ctx context.Context, a *model.Article) (int64, bool, error) {
	var id int64
	err := s.queryRow(ctx, `
		INSERT INTO articles (feed_id, guid, title, author, content, link, image_url, published_at, fetched_at, is_read, is_favorite)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, FALSE)
		ON CONFLICT(feed_id, guid) DO NOTHING
		RETURNING id`,
		a.FeedID, a.GUID, a.Title, a.Author, a.Content, a.Link, a.ImageURL, a.PublishedAt.UTC(), a.FetchedAt.UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict occurred, article already exists.
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// GetArticle returns a single article.
func (s *sqlStore) GetArticle(ctx context.Context, articleID int64) (*model.Article, error) {
	rows, err := s.query(ctx, "SELECT "+articleColumns+" FROM articles a JOIN feeds f ON a.feed_id = f.id WHERE a.id = ?", articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	articles, err := scanArticles(rows)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, ErrNotFound
	}
	return &articles[0], nil
}

// QueryArticles lists articles newest first within the query's scope.
func (s *sqlStore) QueryArticles(ctx context.Context, q ArticleQuery) ([]model.Article, error) {
	query, args := buildArticleQuery(q, s.d)
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func buildArticleQuery(q ArticleQuery, d dialect) (string, []any) {
	var where []string
	var args []any
	if q.FeedID != nil {
		where = append(where, "a.feed_id = ?")
		args = append(args, *q.FeedID)
	}
	if q.FolderID != nil {
		where = append(where, "f.folder_id = ?")
		args = append(args, *q.FolderID)
	}
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	switch q.Filter {
	case model.FilterToday, model.FilterWeekend:
		start, end, _ := q.Filter.Window(now)
		where = append(where, "a.published_at >= ? AND a.published_at < ?")
		args = append(args, start.UTC(), end.UTC())
	case model.FilterFavorite:
		where = append(where, "a.is_favorite = TRUE")
	case model.FilterUnread:
		where = append(where, "a.is_read = FALSE")
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		where = append(where, "(a.title "+d.like+" ? ESCAPE '\\' OR a.content "+d.like+" ? ESCAPE '\\')")
		pattern := "%" + likeEscaper.Replace(term) + "%"
		args = append(args, pattern, pattern)
	}

	query := "SELECT " + articleColumns + " FROM articles a JOIN feeds f ON a.feed_id = f.id"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.published_at DESC, a.id DESC"
	if q.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(q.Limit)
	}
	return query, args
}

func scanArticles(rows *sql.Rows) ([]model.Article, error) {
	var articles []model.Article
	for rows.Next() {
		var a model.Article
		var author, content, link, imageURL sql.NullString
		var publishedAt, fetchedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.FeedID, &a.FeedTitle, &a.GUID, &a.Title, &author, &content, &link,
			&imageURL, &publishedAt, &fetchedAt, &a.IsRead, &a.IsFavorite); err != nil {
			return nil, err
		}
		a.Author = author.String
		a.Content = content.String
		a.Link = link.String
		a.ImageURL = imageURL.String
		if publishedAt.Valid {
			a.PublishedAt = publishedAt.Time
		}
		if fetchedAt.Valid {
			a.FetchedAt = fetchedAt.Time
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// MarkArticleRead marks an article as read. Marking an already read
// article succeeds; an unknown id returns ErrNotFound.
func (s *sqlStore) MarkArticleRead(ctx context.Context, articleID int64) error {
	res, err := s.exec(ctx, "UPDATE articles SET is_read = TRUE WHERE id = ?", articleID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkArticlesRead marks multiple articles as read in one transaction.
func (s *sqlStore) MarkArticlesRead(ctx context.Context, articleIDs []int64) error {
	if len(articleIDs) == 0 {
		return nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, s.d.rebind("UPDATE articles SET is_read = TRUE WHERE id = ?"))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, id := range articleIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SetArticleFavorite stars or unstars an article.
func (s *sqlStore) SetArticleFavorite(ctx context.Context, articleID int64, favorite bool) error {
	res, err := s.exec(ctx, "UPDATE articles SET is_favorite = ? WHERE id = ?", favorite, articleID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CleanupReadArticles deletes read articles that are not favorites.
func (s *sqlStore) CleanupReadArticles(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, "DELETE FROM articles WHERE is_read = TRUE AND is_favorite = FALSE")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Settings Methods ---

// GetSetting retrieves a setting value.
func (s *sqlStore) GetSetting(ctx context.Context, key string) (string, error) {
	var val string
	err := s.queryRow(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	return val, notFound(err)
}

// SetSetting saves a setting.
func (s *sqlStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.exec(ctx, "INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value)
	return err
}

// GetPollingInterval returns the polling interval in minutes, with a minimum of 15.
func (s *sqlStore) GetPollingInterval(ctx context.Context) (int, error) {
	val, err := s.GetSetting(ctx, model.SettingPollingInterval)
	if err != nil {
		return MinPollingIntervalMinutes, nil // default
	}
	mins, err := strconv.Atoi(val)
	if err != nil || mins < MinPollingIntervalMinutes {
		mins = MinPollingIntervalMinutes
	}
	return mins, nil
}
