package opml

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/readdeck/internal/database"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Subs</title></head>
  <body>
    <outline text="Tech">
      <outline text="Go">
        <outline text="Go Blog" xmlUrl="https://go.dev/blog/feed.atom" type="rss"/>
      </outline>
      <outline title="Lobsters" xmlUrl="https://lobste.rs/rss" type="rss"/>
    </outline>
    <outline text="Loose" xmlUrl="https://loose.example.com/feed"/>
    <outline xmlUrl="https://untitled.example.com/feed"/>
  </body>
</opml>`

func TestParseFlattensFolders(t *testing.T) {
	t.Parallel()

	entries, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Equal(t, []FeedEntry{
		{FolderPath: []string{"Tech", "Go"}, Title: "Go Blog", URL: "https://go.dev/blog/feed.atom"},
		{FolderPath: []string{"Tech"}, Title: "Lobsters", URL: "https://lobste.rs/rss"},
		{FolderPath: []string{}, Title: "Loose", URL: "https://loose.example.com/feed"},
		{FolderPath: []string{}, Title: "https://untitled.example.com/feed", URL: "https://untitled.example.com/feed"},
	}, entries)

	_, err = Parse(strings.NewReader("<opml"))
	require.Error(t, err)
}

func TestExportIsNestedAndDeterministic(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	entries := []FeedEntry{
		{FolderPath: []string{"Tech", "Go"}, Title: "Go Blog", URL: "https://go.dev/blog/feed.atom"},
		{Title: "Zed", URL: "https://z.example.com"},
		{FolderPath: []string{"Tech"}, Title: "Lobsters", URL: "https://lobste.rs/rss"},
		{Title: "Alpha", URL: "https://a.example.com"},
	}
	first, err := Export("Readdeck", entries, created)
	require.NoError(t, err)

	reversed := []FeedEntry{entries[3], entries[2], entries[1], entries[0]}
	second, err := Export("Readdeck", reversed, created)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))

	parsed, err := Parse(bytes.NewReader(first))
	require.NoError(t, err)
	require.Len(t, parsed, 4)
	require.Equal(t, []string{"Tech", "Go"}, parsed[0].FolderPath)
	require.Equal(t, []string{"Tech"}, parsed[1].FolderPath)
	require.Equal(t, "Alpha", parsed[2].Title)
	require.Equal(t, "Zed", parsed[3].Title)
}

func TestImportThenExportRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := database.New(filepath.Join(t.TempDir(), "opml.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	res, err := Import(ctx, db, strings.NewReader(sample))
	require.NoError(t, err)
	require.Equal(t, ImportResult{Imported: 4, Total: 4}, res)

	res, err = Import(ctx, db, strings.NewReader(sample))
	require.NoError(t, err)
	require.Equal(t, ImportResult{Imported: 0, Total: 4}, res)

	out, err := ExportSubscriptions(ctx, db, "Readdeck", time.Now())
	require.NoError(t, err)
	entries, err := Parse(bytes.NewReader(out))
	require.NoError(t, err)
	require.Len(t, entries, 4)
	require.Equal(t, []string{"Tech", "Go"}, entries[0].FolderPath)
	require.Equal(t, "https://go.dev/blog/feed.atom", entries[0].URL)
}
