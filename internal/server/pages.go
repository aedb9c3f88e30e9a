package server

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bryan-buckman/readdeck/internal/database"
	"github.com/bryan-buckman/readdeck/internal/model"
	"github.com/bryan-buckman/readdeck/internal/widget"
)

// selection is what the page shows. It round-trips through the URL.
type selection struct {
	FeedID    *int64
	Filter    model.Filter
	ArticleID int64
	Query     string
}

func parseSelection(r *http.Request) (selection, error) {
	var sel selection
	raw := chi.URLParam(r, "feedID")
	if raw == "" {
		raw = r.URL.Query().Get("feed")
	}
	if raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return sel, fmt.Errorf("%w: feed %q", database.ErrNotFound, raw)
		}
		sel.FeedID = &id
	}

	q := r.URL.Query()
	f, err := model.ParseFilter(q.Get("filter"))
	if err != nil {
		return sel, err
	}
	sel.Filter = f
	if raw := q.Get("article"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return sel, fmt.Errorf("%w: article %q", database.ErrNotFound, raw)
		}
		sel.ArticleID = id
	}
	sel.Query = q.Get("q")
	return sel, nil
}

// URL returns the page address for the selection.
func (sel selection) URL() string {
	path := "/"
	if sel.FeedID != nil {
		path = "/feed/" + strconv.FormatInt(*sel.FeedID, 10)
	}
	q := url.Values{}
	if sel.Filter != model.FilterNone {
		q.Set("filter", sel.Filter.String())
	}
	if sel.ArticleID > 0 {
		q.Set("article", strconv.FormatInt(sel.ArticleID, 10))
	}
	if sel.Query != "" {
		q.Set("q", sel.Query)
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (sel *selection) pressFeed(feedID int64) {
	sel.FeedID = &feedID
	sel.ArticleID = 0
	sel.Query = ""
}

// selectFilter makes f the only active filter. Selecting the active filter clears it.
func (sel *selection) selectFilter(f model.Filter) {
	if sel.Filter == f {
		f = model.FilterNone
	}
	sel.Filter = f
	sel.ArticleID = 0
}

func (sel *selection) pressArticle(a widget.Article) {
	sel.ArticleID = a.ID
}

func feedsProps(feeds widget.FeedsStore, sel *selection) widget.FeedsListProps {
	return widget.FeedsListProps{
		Store:          feeds,
		SelectedFeedID: sel.FeedID,
		OnFeedPressed:  sel.pressFeed,
		Filter:         sel.Filter,
		OnSelectFilter: sel.selectFilter,
	}
}

// readerView is the article reader's template data.
type readerView struct {
	Props   widget.ArticleReaderProps
	Article *widget.Article
	Body    template.HTML
	Modes   []model.ArticleReadMode
}

// pageView is the template data shared by every widget on a page.
type pageView struct {
	sel    selection
	Feeds  widget.FeedsListProps
	Search widget.SearchBarProps
	List   widget.ArticlesListProps
	Groups []widget.ArticlesGroup
	Reader *readerView
	Footer widget.FooterProps
	Sprite widget.AISpriteProps

	Widgets map[string]template.HTML
}

// Query is the active search text.
func (v *pageView) Query() string { return v.sel.Query }

// FeedParam is the selected feed id, or empty.
func (v *pageView) FeedParam() string {
	if v.sel.FeedID == nil {
		return ""
	}
	return strconv.FormatInt(*v.sel.FeedID, 10)
}

// feedItem is the template data for one sidebar row.
type feedItem struct {
	Page *pageView
	Feed model.Feed
}

// FeedItem pairs a feed with the page for the feed_item template.
func (v *pageView) FeedItem(f model.Feed) feedItem { return feedItem{Page: v, Feed: f} }

// FeedHref is where pressing a feed leads.
func (v *pageView) FeedHref(feedID int64) string {
	next := v.sel
	feedsProps(v.Feeds.Store, &next).OnFeedPressed(feedID)
	return next.URL()
}

// FilterHref is where pressing a filter button leads.
func (v *pageView) FilterHref(name string) string {
	next := v.sel
	p := feedsProps(v.Feeds.Store, &next)
	switch name {
	case "today":
		p.OnSelectToday()
	case "weekend":
		p.OnSelectWeekend()
	case "favorite":
		p.OnSelectFavorite()
	case "unread":
		p.OnSelectUnread()
	}
	return next.URL()
}

// ArticleHref is where pressing an article leads.
func (v *pageView) ArticleHref(a widget.Article) string {
	next := v.sel
	p := v.List
	p.OnArticlePressed = next.pressArticle
	p.OnArticlePressed(a)
	return next.URL()
}

func (s *Server) markAsRead(ctx context.Context, articleID int64) error {
	if err := s.stores.List.MarkAsRead(ctx, articleID); err != nil {
		return err
	}
	return s.stores.Feeds.Reload(ctx)
}

// buildPage loads the stores for sel and binds every widget's props.
// The caller must hold pageMu.
func (s *Server) buildPage(ctx context.Context, sel selection) (*pageView, error) {
	if sel.FeedID != nil {
		if _, ok := s.stores.Feeds.Feed(*sel.FeedID); !ok {
			return nil, fmt.Errorf("%w: feed %d", database.ErrNotFound, *sel.FeedID)
		}
	}

	scratch := sel
	v := &pageView{
		sel:    sel,
		Feeds:  feedsProps(s.stores.Feeds, &scratch),
		Search: widget.SearchBarProps{Store: s.stores.Search, ArticlesStore: s.stores.List},
		Footer: widget.FooterProps{TasksStore: s.stores.Tasks},
		Sprite: widget.AISpriteProps{Store: s.stores.Sprite},
	}

	now := s.opts.Now()
	if sel.Query != "" {
		if err := v.Search.Submit(ctx, sel.Query); err != nil {
			return nil, err
		}
	} else if err := s.stores.List.Load(ctx, database.ArticleQuery{
		FeedID: sel.FeedID,
		Filter: sel.Filter,
		Now:    now,
	}); err != nil {
		return nil, err
	}

	v.List = widget.ArticlesListProps{
		Store:            s.stores.List,
		MarkAsRead:       s.markAsRead,
		IsFilterActive:   sel.Filter != model.FilterNone,
		IsFeedSpecified:  sel.FeedID != nil,
		OnArticlePressed: scratch.pressArticle,
	}

	if sel.ArticleID > 0 {
		rv, err := s.buildReader(ctx, sel.ArticleID)
		if err != nil {
			return nil, err
		}
		if !rv.Article.IsRead {
			if err := v.List.MarkAsRead(ctx, rv.Article.ID); err != nil {
				return nil, err
			}
			rv.Article.IsRead = true
		}
		v.Reader = rv
		v.List.SelectedArticle = rv.Article
	}
	v.Groups = widget.GroupByDay(v.List.Store.Articles(), now)
	return v, nil
}

func (s *Server) buildReader(ctx context.Context, articleID int64) (*readerView, error) {
	props := widget.ArticleReaderProps{ArticleID: articleID, Store: s.stores.Reader}
	a, err := props.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	body, err := props.Store.Render(ctx, articleID)
	if err != nil {
		return nil, err
	}
	return &readerView{Props: props, Article: a, Body: body, Modes: model.ReadModes()}, nil
}

// props lists the bound contracts in page order.
func (v *pageView) props() []widget.Props {
	out := []widget.Props{v.Feeds, v.Search, v.List}
	if v.Reader != nil {
		out = append(out, v.Reader.Props)
	}
	return append(out, v.Footer, v.Sprite)
}

// renderWidget validates p and executes the template named after its widget.
func (s *Server) renderWidget(p widget.Props, data any) (template.HTML, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, p.WidgetName(), data); err != nil {
		return "", fmt.Errorf("render %s: %w", p.WidgetName(), err)
	}
	return template.HTML(buf.String()), nil
}

func (s *Server) renderWidgets(v *pageView) error {
	v.Widgets = make(map[string]template.HTML)
	for _, p := range v.props() {
		html, err := s.renderWidget(p, v)
		if err != nil {
			return err
		}
		v.Widgets[p.WidgetName()] = html
	}
	return nil
}

// --- Page Handlers ---

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.servePage(w, r)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	s.servePage(w, r)
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		s.pageError(w, err)
		return
	}

	s.pageMu.Lock()
	defer s.pageMu.Unlock()
	v, err := s.buildPage(r.Context(), sel)
	if err == nil {
		err = s.renderWidgets(v)
	}
	if err != nil {
		s.pageError(w, err)
		return
	}
	s.render(w, "layout", v)
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "articleID"), 10, 64)
	if err != nil || id <= 0 {
		s.pageError(w, database.ErrNotFound)
		return
	}
	rv, err := s.buildReader(r.Context(), id)
	if err != nil {
		s.pageError(w, err)
		return
	}
	v := &pageView{sel: selection{ArticleID: id}, Reader: rv}
	html, err := s.renderWidget(rv.Props, v)
	if err != nil {
		s.pageError(w, err)
		return
	}
	v.Widgets = map[string]template.HTML{widget.ArticleReader: html}
	s.render(w, "reader_page", v)
}

// handleWidget renders a single widget fragment for live updates.
func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := widget.Contract(name); !ok {
		http.NotFound(w, r)
		return
	}
	sel, err := parseSelection(r)
	if err != nil {
		s.pageError(w, err)
		return
	}

	s.pageMu.Lock()
	defer s.pageMu.Unlock()
	v, err := s.buildPage(r.Context(), sel)
	if err != nil {
		s.pageError(w, err)
		return
	}
	for _, p := range v.props() {
		if p.WidgetName() != name {
			continue
		}
		html, err := s.renderWidget(p, v)
		if err != nil {
			s.pageError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pageError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("server: render page: %v", err)
	}
	http.Error(w, http.StatusText(status), status)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("server: template %s: %v", name, err)
		http.Error(w, "Render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
