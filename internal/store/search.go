package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/bryan-buckman/readdeck/internal/database"
	"github.com/bryan-buckman/readdeck/internal/model"
)

const (
	searchLimit = 200
	// fuzzyPool is how many recent articles a typo-tolerant search scans
	// when the substring search finds nothing.
	fuzzyPool = 1000
)

// SearchStore holds the search bar query and its results.
type SearchStore struct {
	notifier
	db database.Store

	mu      sync.RWMutex
	query   string
	results []model.Article
}

// NewSearchStore creates an empty search store.
func NewSearchStore(db database.Store) *SearchStore {
	return &SearchStore{db: db}
}

// Query returns the last submitted query.
func (s *SearchStore) Query() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// Results returns the results of the last search.
func (s *SearchStore) Results() []model.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Article(nil), s.results...)
}

// Search finds articles by title or content. Titles containing the query
// rank first; if nothing contains it, titles within a small edit distance of
// the query words are returned instead. An empty query clears the results.
func (s *SearchStore) Search(ctx context.Context, query string) ([]model.Article, error) {
	query = strings.TrimSpace(query)
	var results []model.Article
	if query != "" {
		found, err := s.db.QueryArticles(ctx, database.ArticleQuery{Search: query, Limit: searchLimit})
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
		if len(found) == 0 {
			pool, err := s.db.QueryArticles(ctx, database.ArticleQuery{Limit: fuzzyPool})
			if err != nil {
				return nil, fmt.Errorf("search %q: %w", query, err)
			}
			found = fuzzyMatches(query, pool)
		}
		results = rank(query, found)
	}

	s.mu.Lock()
	s.query = query
	s.results = results
	s.mu.Unlock()
	s.notify()
	return append([]model.Article(nil), results...), nil
}

// rank orders title matches before content-only matches, keeping recency
// order within each tier.
func rank(query string, articles []model.Article) []model.Article {
	q := strings.ToLower(query)
	out := append([]model.Article(nil), articles...)
	sort.SliceStable(out, func(i, j int) bool {
		return titleScore(q, out[i].Title) < titleScore(q, out[j].Title)
	})
	return out
}

func titleScore(q, title string) int {
	if strings.Contains(strings.ToLower(title), q) {
		return 0
	}
	return 1
}

// fuzzyMatches keeps articles whose titles contain a word close to every
// query word.
func fuzzyMatches(query string, pool []model.Article) []model.Article {
	words := strings.Fields(strings.ToLower(query))
	var out []model.Article
	for _, a := range pool {
		titleWords := strings.Fields(strings.ToLower(a.Title))
		if matchesAll(words, titleWords) {
			out = append(out, a)
		}
	}
	return out
}

func matchesAll(words, titleWords []string) bool {
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		ok := false
		for _, tw := range titleWords {
			tw = strings.Trim(tw, ".,:;!?\"'()[]")
			if levenshtein.ComputeDistance(w, tw) <= maxTypos(w) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func maxTypos(word string) int {
	switch n := len([]rune(word)); {
	case n <= 3:
		return 0
	case n <= 6:
		return 1
	default:
		return 2
	}
}
