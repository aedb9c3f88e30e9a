package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/readdeck/internal/database"
	"github.com/bryan-buckman/readdeck/internal/model"
)

type fixture struct {
	db     *database.DB
	feedID int64
	ids    map[string]int64
}

func newFixture(t *testing.T, titles ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.New(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	folder, err := db.CreateFolder(ctx, "Tech", nil)
	require.NoError(t, err)
	feedID, err := db.CreateFeed(ctx, &folder, "Blog", "https://blog.example.com/rss")
	require.NoError(t, err)

	f := &fixture{db: db, feedID: feedID, ids: make(map[string]int64)}
	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	for i, title := range titles {
		id, _, err := db.AddArticle(ctx, &model.Article{
			FeedID:      feedID,
			GUID:        title,
			Title:       title,
			Content:     "<p>" + title + " body</p>",
			Link:        "https://blog.example.com/" + title,
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
			FetchedAt:   base,
		})
		require.NoError(t, err)
		f.ids[title] = id
	}
	return f
}

func TestNotifierCoalescesAndCancels(t *testing.T) {
	t.Parallel()

	var n notifier
	ch, cancel := n.Subscribe()
	n.notify()
	n.notify()
	n.notify()
	<-ch
	select {
	case <-ch:
		t.Fatal("expected signals to coalesce")
	default:
	}
	cancel()
	cancel()
	_, ok := <-ch
	require.False(t, ok)
	n.notify() // no subscribers left
}

func TestFeedsStoreReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "one", "two")

	s := NewFeedsStore(f.db)
	require.Empty(t, s.FoldersWithFeeds())

	ch, cancel := s.Subscribe()
	defer cancel()
	require.NoError(t, s.Reload(ctx))
	<-ch

	folders := s.FoldersWithFeeds()
	require.Len(t, folders, 1)
	require.Equal(t, "Tech", folders[0].Name)
	require.Equal(t, 2, s.UnreadCount())

	feed, ok := s.Feed(f.feedID)
	require.True(t, ok)
	require.Equal(t, "Blog", feed.Title)
	_, ok = s.Feed(999)
	require.False(t, ok)
	require.Empty(t, s.UnfiledFeeds())
}

func TestListStoreMarkAsReadIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "alpha", "beta")

	s := NewListStore(f.db)
	require.NoError(t, s.Load(ctx, database.ArticleQuery{Filter: model.FilterUnread}))
	require.Len(t, s.Articles(), 2)
	require.Equal(t, DefaultListLimit, s.Query().Limit)

	id := f.ids["alpha"]
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.MarkAsRead(ctx, id)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	a, ok := s.Article(id)
	require.True(t, ok)
	require.True(t, a.IsRead)

	err := s.MarkAsRead(ctx, 31337)
	require.True(t, errors.Is(err, database.ErrNotFound))

	require.NoError(t, s.Load(ctx, database.ArticleQuery{Filter: model.FilterUnread}))
	require.Len(t, s.Articles(), 1)
}

func TestListStoreToggleFavoriteAndReplace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "alpha")

	s := NewListStore(f.db)
	require.NoError(t, s.Load(ctx, database.ArticleQuery{}))

	fav, err := s.ToggleFavorite(ctx, f.ids["alpha"])
	require.NoError(t, err)
	require.True(t, fav)
	a, _ := s.Article(f.ids["alpha"])
	require.True(t, a.IsFavorite)

	fav, err = s.ToggleFavorite(ctx, f.ids["alpha"])
	require.NoError(t, err)
	require.False(t, fav)

	s.Replace([]model.Article{{ID: 7, Title: "x"}, {ID: 8, Title: "y"}})
	got := s.Articles()
	require.Equal(t, int64(7), got[0].ID)
	require.Equal(t, int64(8), got[1].ID)
}

func TestSearchStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "Kubernetes operators", "Release notes", "Writing kubernetes controllers")

	s := NewSearchStore(f.db)
	results, err := s.Search(ctx, "  kubernetes ")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "kubernetes", s.Query())
	// newest first among title matches
	require.Equal(t, "Writing kubernetes controllers", results[0].Title)

	results, err = s.Search(ctx, "relase")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Release notes", results[0].Title)

	results, err = s.Search(ctx, "zzz")
	require.NoError(t, err)
	require.Empty(t, results)

	results, err = s.Search(ctx, "")
	require.NoError(t, err)
	require.Empty(t, results)
	require.Empty(t, s.Results())
}

func TestRankPutsTitleMatchesFirst(t *testing.T) {
	t.Parallel()

	in := []model.Article{
		{ID: 1, Title: "Other", Content: "mentions golang"},
		{ID: 2, Title: "Golang tips"},
		{ID: 3, Title: "Nothing"},
		{ID: 4, Title: "More golang"},
	}
	out := rank("golang", in)
	require.Equal(t, []int64{2, 4, 1, 3}, []int64{out[0].ID, out[1].ID, out[2].ID, out[3].ID})
}

func TestReaderStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, "story")

	s := NewReaderStore(ctx, f.db)
	require.Equal(t, model.ReadModeOptimized, s.Mode())

	a, err := s.Article(ctx, f.ids["story"])
	require.NoError(t, err)
	require.Equal(t, "story", a.Title)

	_, err = s.Article(ctx, 999)
	require.True(t, errors.Is(err, database.ErrNotFound))

	require.NoError(t, s.SetMode(ctx, model.ReadModeMelted))
	out, err := s.Render(ctx, f.ids["story"])
	require.NoError(t, err)
	require.Equal(t, "<p>story body</p>", string(out))

	err = s.SetMode(ctx, "fancy")
	require.True(t, errors.Is(err, model.ErrInvalidReadMode))
	require.Equal(t, model.ReadModeMelted, s.Mode())

	// persisted across instances
	require.Equal(t, model.ReadModeMelted, NewReaderStore(ctx, f.db).Mode())
}

func TestTasksStore(t *testing.T) {
	t.Parallel()

	s := NewTasksStore()
	first := s.Start("refresh")
	second := s.Start("import")
	require.NotEqual(t, first, second)
	require.Equal(t, 2, s.Running())

	s.Finish(first, nil)
	s.Finish(second, errors.New("bad opml"))
	s.Finish("unknown", nil)
	require.Equal(t, 0, s.Running())

	third := s.Start("cleanup")
	snap := s.Snapshot()
	require.Equal(t, third, snap[0].ID)
	require.Equal(t, model.TaskRunning, snap[0].State)
	require.Equal(t, model.TaskFailed, snap[1].State)
	require.Equal(t, "bad opml", snap[1].Error)

	for i := 0; i < taskHistory+5; i++ {
		s.Finish(s.Start("bulk"), nil)
	}
	snap = s.Snapshot()
	require.Len(t, snap, taskHistory+1)
	require.Equal(t, third, snap[0].ID)
}

func TestSpriteFor(t *testing.T) {
	t.Parallel()

	state, _ := spriteFor(nil)
	require.Equal(t, model.SpriteIdle, state)

	state, msg := spriteFor([]model.Task{{Name: "refresh", State: model.TaskRunning}})
	require.Equal(t, model.SpriteWorking, state)
	require.Contains(t, msg, "refresh")

	state, msg = spriteFor([]model.Task{{Name: "refresh", State: model.TaskFailed, Error: "timeout"}})
	require.Equal(t, model.SpriteError, state)
	require.Contains(t, msg, "timeout")

	state, _ = spriteFor([]model.Task{{Name: "refresh", State: model.TaskDone}})
	require.Equal(t, model.SpriteHappy, state)
}

func TestSpriteFollowsTasks(t *testing.T) {
	t.Parallel()

	tasks := NewTasksStore()
	sprite := NewSpriteStore()
	ch, cancel := sprite.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sprite.Follow(ctx, tasks)
		close(done)
	}()

	id := tasks.Start("refresh")
	require.Eventually(t, func() bool {
		return sprite.Sprite().State == model.SpriteWorking
	}, 2*time.Second, 5*time.Millisecond)

	tasks.Finish(id, nil)
	require.Eventually(t, func() bool {
		return sprite.Sprite().State == model.SpriteHappy
	}, 2*time.Second, 5*time.Millisecond)
	<-ch

	stop()
	<-done
}

func TestNewSetLoadsFeeds(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "a", "b")

	set, err := NewSet(context.Background(), f.db)
	require.NoError(t, err)
	require.Len(t, set.Feeds.FoldersWithFeeds(), 1)
	require.Equal(t, 2, set.Feeds.UnreadCount())
	require.Equal(t, model.ReadModeOptimized, set.Reader.Mode())
	require.Zero(t, set.Tasks.Running())
	require.Equal(t, model.SpriteIdle, set.Sprite.Sprite().State)
}
