package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/readdeck/internal/database"
	"github.com/bryan-buckman/readdeck/internal/model"
	"github.com/bryan-buckman/readdeck/internal/store"
)

var testNow = time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)

type env struct {
	db     *database.DB
	stores *store.Set
	srv    *Server
	feedID int64
	ids    []int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	folder, err := db.CreateFolder(ctx, "Tech", nil)
	require.NoError(t, err)
	feedID, err := db.CreateFeed(ctx, &folder, "Go Blog", "https://go.dev/blog/feed.atom")
	require.NoError(t, err)

	e := &env{db: db, feedID: feedID}
	for i, title := range []string{"Range over func", "Generic aliases", "Swiss tables"} {
		id, _, err := db.AddArticle(ctx, &model.Article{
			FeedID:      feedID,
			GUID:        title,
			Title:       title,
			Content:     "<p>" + title + " explained.</p>",
			Link:        "https://go.dev/blog/" + strings.ReplaceAll(title, " ", "-"),
			PublishedAt: testNow.Add(-time.Duration(i*20) * time.Hour),
			FetchedAt:   testNow,
		})
		require.NoError(t, err)
		e.ids = append(e.ids, id)
	}

	e.stores, err = store.NewSet(ctx, db)
	require.NoError(t, err)
	e.srv, err = New(db, e.stores, nil, Options{MaxBodyBytes: 1 << 16, Now: func() time.Time { return testNow }})
	require.NoError(t, err)
	return e
}

func (e *env) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func TestHomeRendersEveryWidget(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, want := range []string{`id="feeds_list"`, `id="search_bar"`, `id="articles_list"`, `id="footer"`, `id="ai_sprite"`, "Go Blog", "Range over func", "Today", "Yesterday"} {
		require.Contains(t, body, want)
	}
	require.Contains(t, body, `href="/feed/`)
	require.Contains(t, body, `href="/?filter=today"`)
}

func TestFeedPageWithArticleMarksRead(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	target := "/feed/" + itoa(e.feedID) + "?article=" + itoa(e.ids[0])
	rec := e.do(t, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Range over func explained.")
	require.Contains(t, rec.Body.String(), `class="article read selected"`)

	a, err := e.db.GetArticle(ctx, e.ids[0])
	require.NoError(t, err)
	require.True(t, a.IsRead)
	require.Equal(t, 2, e.stores.Feeds.UnreadCount())
}

func TestPageErrors(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	require.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/feed/999", nil).Code)
	require.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/?article=999", nil).Code)
	require.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/?filter=yesterday", nil).Code)
	require.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/widgets/sidebar", nil).Code)
}

func TestFilterAndSearchPages(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/?filter=today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Range over func")
	require.NotContains(t, rec.Body.String(), "Swiss tables")
	require.Contains(t, rec.Body.String(), `class="active"`)

	rec = e.do(t, http.MethodGet, "/?q=swiss", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Swiss tables")
	require.NotContains(t, rec.Body.String(), "Generic aliases")

	rec = e.do(t, http.MethodGet, "/?filter=favorite", nil)
	require.Contains(t, rec.Body.String(), "No articles match this filter.")
}

func TestArticlePageAndReaderMode(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/reader-mode", map[string]string{"mode": "melted"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, model.ReadModeMelted, e.stores.Reader.Mode())

	rec = e.do(t, http.MethodPost, "/api/reader-mode", map[string]string{"mode": "sepia"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, model.ReadModeMelted, e.stores.Reader.Mode())

	rec = e.do(t, http.MethodGet, "/article/"+itoa(e.ids[1]), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Generic aliases explained.")
	require.Contains(t, rec.Body.String(), `data-mode="melted" class="active"`)

	require.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/article/999", nil).Code)
}

func TestMarkReadAndFavoriteAPI(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	rec := e.do(t, http.MethodPost, "/api/mark-read", map[string][]int64{"article_ids": {e.ids[0], e.ids[0], e.ids[1]}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, e.stores.Feeds.UnreadCount())

	rec = e.do(t, http.MethodPost, "/api/mark-read", map[string][]int64{"article_ids": {e.ids[2], 999}})
	require.Equal(t, http.StatusNotFound, rec.Code)
	a, err := e.db.GetArticle(ctx, e.ids[2])
	require.NoError(t, err)
	require.False(t, a.IsRead)
	require.Equal(t, 1, e.stores.Feeds.UnreadCount())

	rec = e.do(t, http.MethodPost, "/api/articles/"+itoa(e.ids[2])+"/favorite", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fav struct{ Favorite bool }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fav))
	require.True(t, fav.Favorite)
	a, err = e.db.GetArticle(ctx, e.ids[2])
	require.NoError(t, err)
	require.True(t, a.IsFavorite)
}

func TestSettingsAPI(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/settings", map[string]any{"polling_interval": 5, "read_mode": "original"})
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		PollingInterval int    `json:"polling_interval"`
		ReadMode        string `json:"read_mode"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, database.MinPollingIntervalMinutes, got.PollingInterval)
	require.Equal(t, "original", got.ReadMode)
}

func TestOPMLRoundTripAPI(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("opml", "subs.opml")
	require.NoError(t, err)
	_, err = fw.Write([]byte(`<opml version="2.0"><body><outline text="News"><outline text="LWN" xmlUrl="https://lwn.net/headlines/rss"/></outline></body></opml>`))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import-opml", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"imported":1`)
	require.Len(t, e.stores.Feeds.FoldersWithFeeds(), 2)

	rec = e.do(t, http.MethodGet, "/api/export-opml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `xmlUrl="https://lwn.net/headlines/rss"`)
	require.Contains(t, rec.Body.String(), `text="News"`)
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	big := map[string]string{"mode": strings.Repeat("x", 1<<17)}
	rec := e.do(t, http.MethodPost, "/api/reader-mode", big)
	require.NotEqual(t, http.StatusOK, rec.Code)
}

func TestRefreshWithoutPoller(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	require.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodPost, "/api/refresh", nil).Code)
}

func TestCleanupRecordsTask(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	e.do(t, http.MethodPost, "/api/mark-read", map[string][]int64{"article_ids": {e.ids[0]}})
	rec := e.do(t, http.MethodPost, "/api/cleanup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"deleted":1`)

	tasks := e.stores.Tasks.Snapshot()
	require.NotEmpty(t, tasks)
	require.Equal(t, "cleanup", tasks[0].Name)
	require.Equal(t, model.TaskDone, tasks[0].State)
}

func TestWidgetsAPIListsContracts(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/widgets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []struct {
		Name   string   `json:"name"`
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 6)
	require.Equal(t, "feeds_list", got[0].Name)
	require.Contains(t, got[0].Fields, "OnSelectFilter")
}

func TestWidgetFragment(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/widgets/footer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Idle")

	rec = e.do(t, http.MethodGet, "/widgets/article_reader", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestEventsStreamStoreChanges(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	ts := httptest.NewServer(e.srv)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	sc := bufio.NewScanner(res.Body)
	require.True(t, sc.Scan())
	require.Equal(t, ": connected", sc.Text())

	e.stores.Sprite.Set(model.SpriteHappy, "done")
	for sc.Scan() {
		if sc.Text() == "event: ai_sprite" {
			return
		}
	}
	t.Fatalf("no ai_sprite event: %v", sc.Err())
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
