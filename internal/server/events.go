package server

import (
	"fmt"
	"net/http"

	"github.com/bryan-buckman/readdeck/internal/widget"
)

// sources maps each widget to the store whose changes should redraw it.
func (s *Server) sources() map[string]widget.Subscriber {
	return map[string]widget.Subscriber{
		widget.FeedsList:     s.stores.Feeds,
		widget.SearchBar:     s.stores.Search,
		widget.ArticlesList:  s.stores.List,
		widget.ArticleReader: s.stores.Reader,
		widget.Footer:        s.stores.Tasks,
		widget.AISprite:      s.stores.Sprite,
	}
}

// handleEvents streams one server-sent event per store change, named after
// the widget to redraw. Bursts of changes to one store coalesce.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondErr(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	ctx := r.Context()

	sources := s.sources()
	events := make(chan string, len(sources))
	for name, src := range sources {
		name, src := name, src
		ch, cancel := src.Subscribe()
		defer cancel()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-ch:
					if !ok {
						return
					}
					select {
					case events <- name:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case name := <-events:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: {}\n\n", name); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
