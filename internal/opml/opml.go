// Package opml handles importing and exporting OPML files.
package opml

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/bryan-buckman/readdeck/internal/model"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a single outline element (folder or feed).
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// FeedEntry represents a flattened feed with its folder path.
type FeedEntry struct {
	FolderPath []string // e.g., ["Tech", "Google"]
	Title      string
	URL        string
}

// Parse reads an OPML document and returns a flat list of FeedEntry.
func Parse(r io.Reader) ([]FeedEntry, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}
	var entries []FeedEntry
	var walk func(outlines []Outline, path []string)
	walk = func(outlines []Outline, path []string) {
		for _, o := range outlines {
			switch {
			case o.XMLURL != "":
				title := o.Title
				if title == "" {
					title = o.Text
				}
				if title == "" {
					title = o.XMLURL
				}
				entries = append(entries, FeedEntry{
					FolderPath: append([]string{}, path...),
					Title:      title,
					URL:        o.XMLURL,
				})
			case len(o.Outlines) > 0:
				name := o.Text
				if name == "" {
					name = o.Title
				}
				walk(o.Outlines, append(path[:len(path):len(path)], name))
			}
		}
	}
	walk(doc.Body.Outlines, nil)
	return entries, nil
}

// folderNode is an intermediate tree used while exporting.
type folderNode struct {
	name     string
	children map[string]*folderNode
	feeds    []Outline
}

func newFolderNode(name string) *folderNode {
	return &folderNode{name: name, children: make(map[string]*folderNode)}
}

// outlines returns sub-folders first, then feeds, each sorted by name.
func (n *folderNode) outlines() []Outline {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Outline, 0, len(names)+len(n.feeds))
	for _, name := range names {
		out = append(out, Outline{
			Text:     name,
			Title:    name,
			Outlines: n.children[name].outlines(),
		})
	}
	feeds := append([]Outline(nil), n.feeds...)
	sort.SliceStable(feeds, func(i, j int) bool {
		if feeds[i].Title != feeds[j].Title {
			return feeds[i].Title < feeds[j].Title
		}
		return feeds[i].XMLURL < feeds[j].XMLURL
	})
	return append(out, feeds...)
}

// Export generates an OPML document with one nested outline per folder path.
// Output order is deterministic for a given set of entries.
func Export(title string, entries []FeedEntry, created time.Time) ([]byte, error) {
	root := newFolderNode("")
	for _, e := range entries {
		node := root
		for _, name := range e.FolderPath {
			child, ok := node.children[name]
			if !ok {
				child = newFolderNode(name)
				node.children[name] = child
			}
			node = child
		}
		node.feeds = append(node.feeds, Outline{
			Text:   e.Title,
			Title:  e.Title,
			Type:   "rss",
			XMLURL: e.URL,
		})
	}

	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: created.Format(time.RFC1123Z),
		},
		Body: Body{Outlines: root.outlines()},
	}
	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}

// Subscriptions is the storage an import or export works against.
type Subscriptions interface {
	GetFolders(ctx context.Context) ([]model.Folder, error)
	GetAllFeeds(ctx context.Context) ([]model.Feed, error)
	GetOrCreateFolder(ctx context.Context, name string, parentID *int64) (int64, error)
	GetOrCreateFeed(ctx context.Context, folderID *int64, title, url string) (int64, bool, error)
}

// ImportResult reports how many feeds an import added.
type ImportResult struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
}

// Import parses an OPML document and subscribes to every feed in it,
// recreating its folder hierarchy. Feeds already subscribed are skipped.
func Import(ctx context.Context, subs Subscriptions, r io.Reader) (ImportResult, error) {
	entries, err := Parse(r)
	if err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{Total: len(entries)}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var folderID *int64
		failed := false
		for _, name := range entry.FolderPath {
			id, err := subs.GetOrCreateFolder(ctx, name, folderID)
			if err != nil {
				log.Printf("opml: create folder %s: %v", name, err)
				failed = true
				break
			}
			folderID = &id
		}
		if failed {
			continue
		}

		_, isNew, err := subs.GetOrCreateFeed(ctx, folderID, entry.Title, entry.URL)
		if err != nil {
			log.Printf("opml: create feed %s: %v", entry.URL, err)
			continue
		}
		if isNew {
			res.Imported++
		}
	}
	return res, nil
}

// ExportSubscriptions writes every subscribed feed as OPML, nested by folder.
func ExportSubscriptions(ctx context.Context, subs Subscriptions, title string, now time.Time) ([]byte, error) {
	folders, err := subs.GetFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("get folders: %w", err)
	}
	feeds, err := subs.GetAllFeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("get feeds: %w", err)
	}

	byID := make(map[int64]model.Folder, len(folders))
	for _, f := range folders {
		byID[f.ID] = f
	}

	entries := make([]FeedEntry, 0, len(feeds))
	for _, feed := range feeds {
		entries = append(entries, FeedEntry{
			FolderPath: folderPath(byID, feed.FolderID),
			Title:      feed.Title,
			URL:        feed.URL,
		})
	}
	return Export(title, entries, now)
}

// folderPath walks parent links up to the root. Cycles are cut at the first repeat.
func folderPath(byID map[int64]model.Folder, id *int64) []string {
	var path []string
	seen := make(map[int64]bool)
	for id != nil && !seen[*id] {
		seen[*id] = true
		f, ok := byID[*id]
		if !ok {
			break
		}
		path = append([]string{f.Name}, path...)
		id = f.ParentID
	}
	return path
}
