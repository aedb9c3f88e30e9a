package model

import (
	"errors"
	"fmt"
)

// ArticleReadMode selects how article content is transformed for reading.
type ArticleReadMode string

const (
	ReadModeOptimized ArticleReadMode = "optimized"
	ReadModeMelted    ArticleReadMode = "melted"
	ReadModeOriginal  ArticleReadMode = "original"
)

// ErrInvalidReadMode is returned for any value outside the three read modes.
var ErrInvalidReadMode = errors.New("invalid read mode")

// ReadModes lists every valid read mode in display order.
func ReadModes() []ArticleReadMode {
	return []ArticleReadMode{ReadModeOptimized, ReadModeMelted, ReadModeOriginal}
}

// Valid reports whether m is one of the three read modes.
func (m ArticleReadMode) Valid() bool {
	switch m {
	case ReadModeOptimized, ReadModeMelted, ReadModeOriginal:
		return true
	}
	return false
}

// ParseArticleReadMode accepts exactly "optimized", "melted" or "original".
func ParseArticleReadMode(s string) (ArticleReadMode, error) {
	m := ArticleReadMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidReadMode, s)
	}
	return m, nil
}
