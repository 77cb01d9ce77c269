// Package render turns generated Markdown notes into standalone HTML pages
// and PDF documents.
package render

import (
	"errors"
	"fmt"

	"github.com/kiranshivaraju/chapternotes/internal/config"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var ErrRenderFailure = errors.New("render failure")

// Style controls PDF layout. Sizes are in points, margins in millimetres.
type Style struct {
	PageSize   string
	FontFamily string
	FontSize   float64
	Margin     float64
}

// DefaultStyle is an A4 page with 11pt Helvetica and 18mm margins.
var DefaultStyle = Style{
	PageSize:   "A4",
	FontFamily: "Helvetica",
	FontSize:   11,
	Margin:     18,
}

var (
	pageSizes = map[string]bool{"A4": true, "A5": true, "Letter": true, "Legal": true}
	// core PDF fonts, no embedding needed
	fontFamilies = map[string]bool{"Helvetica": true, "Arial": true, "Times": true, "Courier": true}
)

func (s Style) validate() error {
	if !pageSizes[s.PageSize] {
		return fmt.Errorf("%w: unsupported page size %q", ErrRenderFailure, s.PageSize)
	}
	if !fontFamilies[s.FontFamily] {
		return fmt.Errorf("%w: unsupported font %q", ErrRenderFailure, s.FontFamily)
	}
	if s.FontSize < 6 || s.FontSize > 32 {
		return fmt.Errorf("%w: font size %v out of range", ErrRenderFailure, s.FontSize)
	}
	if s.Margin < 5 || s.Margin > 50 {
		return fmt.Errorf("%w: margin %v out of range", ErrRenderFailure, s.Margin)
	}
	return nil
}

// Renderer converts Markdown with GitHub Flavored Markdown extensions.
// It is safe for concurrent use.
type Renderer struct {
	md    goldmark.Markdown
	style Style
}

// New validates style and returns a Renderer.
func New(style Style) (*Renderer, error) {
	if err := style.validate(); err != nil {
		return nil, err
	}
	return &Renderer{
		md:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
		style: style,
	}, nil
}

// StyleFromConfig overlays the configured values on DefaultStyle.
func StyleFromConfig(cfg config.RenderConfig) Style {
	style := DefaultStyle
	if cfg.PageSize != "" {
		style.PageSize = cfg.PageSize
	}
	if cfg.FontFamily != "" {
		style.FontFamily = cfg.FontFamily
	}
	if cfg.FontSize > 0 {
		style.FontSize = cfg.FontSize
	}
	return style
}

// Style returns the layout the renderer was built with.
func (r *Renderer) Style() Style { return r.style }
