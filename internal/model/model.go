// Package model defines shared data structures.
package model

import "time"

// Folder represents a hierarchical folder for organizing feeds.
type Folder struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"` // nullable for root folders
}

// Feed represents an RSS/Atom feed subscription.
type Feed struct {
	ID          int64     `json:"id"`
	FolderID    *int64    `json:"folder_id,omitempty"` // nullable if not in a folder
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	IconURL     string    `json:"icon_url"`
	LastFetched time.Time `json:"last_fetched"`
	LastError   string    `json:"last_error,omitempty"`
	ItemCount   int       `json:"item_count"`
	UnreadCount int       `json:"unread_count"`
}

// Article represents a single entry from a feed.
type Article struct {
	ID          int64     `json:"id"`
	FeedID      int64     `json:"feed_id"`
	FeedTitle   string    `json:"feed_title,omitempty"`
	GUID        string    `json:"guid"` // unique identifier from feed
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	Content     string    `json:"content,omitempty"`
	Link        string    `json:"link"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
	IsRead      bool      `json:"is_read"`
	IsFavorite  bool      `json:"is_favorite"`
}

// FolderWithFeeds represents a folder containing its feeds for UI rendering.
type FolderWithFeeds struct {
	Folder
	Feeds []Feed `json:"feeds"`
}

// Settings key constants.
const (
	SettingPollingInterval = "polling_interval_minutes"
	SettingReadMode        = "read_mode"
)
