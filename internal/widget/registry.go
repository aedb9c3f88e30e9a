package widget

import (
	"time"
)

// Registry maps each widget to the complete, ordered list of its contract fields.
var Registry = map[string][]string{
	FeedsList:     {"Store", "SelectedFeedID", "OnFeedPressed", "Filter", "OnSelectFilter"},
	SearchBar:     {"Store", "ArticlesStore"},
	ArticleReader: {"ArticleID", "Store"},
	ArticlesList:  {"Store", "MarkAsRead", "IsFilterActive", "IsFeedSpecified", "SelectedArticle", "OnArticlePressed"},
	Footer:        {"TasksStore"},
	AISprite:      {"Store"},
}

// Names lists the widgets in page order.
func Names() []string {
	return []string{FeedsList, SearchBar, ArticlesList, ArticleReader, Footer, AISprite}
}

// Contract returns the fields of a widget's contract.
func Contract(name string) ([]string, bool) {
	fields, ok := Registry[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), fields...), true
}

// ArticlesGroup is a titled section of the article list.
type ArticlesGroup struct {
	Name     string
	Articles []Article
}

// GroupByDay splits articles into day sections named "Today", "Yesterday"
// or the date. Sections appear in order of their first article and each
// keeps the input order of its articles.
func GroupByDay(articles []Article, now time.Time) []ArticlesGroup {
	var groups []ArticlesGroup
	index := make(map[string]int)
	for _, a := range articles {
		name := dayLabel(a.PublishedAt, now)
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, ArticlesGroup{Name: name})
		}
		groups[i].Articles = append(groups[i].Articles, a)
	}
	return groups
}

func dayLabel(t, now time.Time) string {
	t = t.In(now.Location())
	y, m, d := t.Date()
	ny, nm, nd := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, now.Location())
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case y == ny:
		return day.Format("Monday, January 2")
	default:
		return day.Format("January 2, 2006")
	}
}
