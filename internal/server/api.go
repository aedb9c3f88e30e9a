package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bryan-buckman/readdeck/internal/database"
	"github.com/bryan-buckman/readdeck/internal/model"
	"github.com/bryan-buckman/readdeck/internal/opml"
	"github.com/bryan-buckman/readdeck/internal/widget"
)

// refreshTimeout bounds a refresh started from the API.
const refreshTimeout = 5 * time.Minute

// --- API Handlers ---

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ArticleIDs []int64 `json:"article_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request")
		return
	}
	ctx := r.Context()
	for _, id := range req.ArticleIDs {
		if _, err := s.db.GetArticle(ctx, id); err != nil {
			s.fail(w, r, fmt.Errorf("article %d: %w", id, err))
			return
		}
	}
	var markErr error
	for _, id := range req.ArticleIDs {
		if markErr = s.stores.List.MarkAsRead(ctx, id); markErr != nil {
			break
		}
	}
	// Counts must follow whatever was marked, even when the batch stopped early.
	if err := s.stores.Feeds.Reload(ctx); err != nil {
		markErr = errors.Join(markErr, err)
	}
	if markErr != nil {
		s.fail(w, r, markErr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "marked": len(req.ArticleIDs)})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "articleID"), 10, 64)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid article id")
		return
	}
	favorite, err := s.stores.List.ToggleFavorite(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "favorite": favorite})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := s.stores.Search.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if results == nil {
		results = []model.Article{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"query": s.stores.Search.Query(), "results": results})
}

func (s *Server) handleReaderMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request")
		return
	}
	mode, err := model.ParseArticleReadMode(req.Mode)
	if err == nil {
		err = s.stores.Reader.SetMode(r.Context(), mode)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "mode": mode})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"running": s.stores.Tasks.Running(),
		"tasks":   s.stores.Tasks.Snapshot(),
	})
}

func (s *Server) handleSprite(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.stores.Sprite.Sprite())
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PollingInterval *int    `json:"polling_interval"`
		ReadMode        *string `json:"read_mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request")
		return
	}
	ctx := r.Context()
	if req.ReadMode != nil {
		mode, err := model.ParseArticleReadMode(*req.ReadMode)
		if err == nil {
			err = s.stores.Reader.SetMode(ctx, mode)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if req.PollingInterval != nil {
		interval := *req.PollingInterval
		// Enforce minimum.
		if interval < database.MinPollingIntervalMinutes {
			interval = database.MinPollingIntervalMinutes
		}
		if err := s.db.SetSetting(ctx, model.SettingPollingInterval, strconv.Itoa(interval)); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.handleGetSettings(w, r)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	interval, err := s.db.GetPollingInterval(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"polling_interval": interval,
		"read_mode":        s.stores.Reader.Mode(),
		"read_modes":       model.ReadModes(),
		"database":         s.db.DatabaseType(),
	})
}

func (s *Server) handleImportOPML(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("opml")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.fail(w, r, err)
			return
		}
		respondErr(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	id := s.stores.Tasks.Start("import opml")
	res, err := opml.Import(r.Context(), s.db, file)
	s.stores.Tasks.Finish(id, err)
	if err != nil {
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.stores.Feeds.Reload(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "imported": res.Imported, "total": res.Total})
}

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	data, err := opml.ExportSubscriptions(r.Context(), s.db, "Readdeck Feeds", s.opts.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", "attachment; filename=readdeck-feeds.opml")
	_, _ = w.Write(data)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		respondErr(w, http.StatusServiceUnavailable, "polling disabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	sum, err := s.poller.RunOnce(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "new_items": sum.NewItems, "feeds": sum.Feeds})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	id := s.stores.Tasks.Start("cleanup")
	deleted, err := s.db.CleanupReadArticles(r.Context())
	s.stores.Tasks.Finish(id, err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.stores.Feeds.Reload(r.Context()); err != nil {
		log.Printf("server: reload feeds after cleanup: %v", err)
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "deleted": deleted})
}

func (s *Server) handleSidebar(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"folders": s.stores.Feeds.FoldersWithFeeds(),
		"unfiled": s.stores.Feeds.UnfiledFeeds(),
		"unread":  s.stores.Feeds.UnreadCount(),
	})
}

func (s *Server) handleWidgets(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]any, 0, len(widget.Registry))
	for _, name := range widget.Names() {
		fields, _ := widget.Contract(name)
		out = append(out, map[string]any{"name": name, "fields": fields})
	}
	respondJSON(w, http.StatusOK, out)
}
