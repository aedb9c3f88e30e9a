// Package readmode renders article content for each read mode.
//
// The three modes are independent strategies over the feed-supplied HTML:
// original keeps the markup and only scrubs active content, optimized keeps
// the densest content block with absolute links, and melted flattens the
// article to headings and paragraphs of plain text.
package readmode

import (
	"fmt"
	"html"
	"html/template"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/bryan-buckman/readdeck/internal/model"
)

const (
	activeElements = "script, style, iframe, frame, object, embed, applet, noscript, link, meta, base, form, button, input, select, textarea"
	chromeElements = "nav, aside, footer, header"
	blockElements  = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre"
)

// urlAttrs are the attributes whose values a browser loads or navigates to.
var urlAttrs = map[string]bool{
	"href":       true,
	"src":        true,
	"srcset":     true,
	"action":     true,
	"formaction": true,
	"poster":     true,
	"data":       true,
	"cite":       true,
	"background": true,
	"longdesc":   true,
	"lowsrc":     true,
	"dynsrc":     true,
	"codebase":   true,
	"manifest":   true,
	"ping":       true,
}

// policy is the final allowlist every rendered body passes through.
var policy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("nav", "header", "footer", "main")
	return p
}()

// Render transforms the article's content according to mode.
func Render(mode model.ArticleReadMode, a model.Article) (template.HTML, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(a.Content))
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}
	body := doc.Find("body")
	scrub(body)

	var out template.HTML
	switch mode {
	case model.ReadModeOriginal:
		out, err = original(body)
	case model.ReadModeOptimized:
		out, err = optimized(body, a.Link)
	case model.ReadModeMelted:
		out = melted(body)
	default:
		return "", fmt.Errorf("render: %w: %q", model.ErrInvalidReadMode, mode)
	}
	if err != nil {
		return "", err
	}
	return template.HTML(strings.TrimSpace(policy.Sanitize(string(out)))), nil
}

func original(body *goquery.Selection) (template.HTML, error) {
	out, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("render original: %w", err)
	}
	return template.HTML(strings.TrimSpace(out)), nil
}

func optimized(body *goquery.Selection, link string) (template.HTML, error) {
	body.Find(chromeElements).Remove()

	best := densest(body)
	base, _ := url.Parse(link)
	best.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		absolutize(s, "href", base)
	})
	best.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		absolutize(s, "src", base)
		s.RemoveAttr("width")
		s.RemoveAttr("height")
	})
	best.Find("*").AddSelection(best).Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("style")
		s.RemoveAttr("class")
		s.RemoveAttr("id")
	})

	var out string
	var err error
	if best.Is("body") {
		out, err = best.Html()
	} else {
		out, err = goquery.OuterHtml(best)
	}
	if err != nil {
		return "", fmt.Errorf("render optimized: %w", err)
	}
	return template.HTML(strings.TrimSpace(out)), nil
}

// densest returns the container holding the most paragraph text, or body
// when no container beats the paragraphs lying directly in it.
func densest(body *goquery.Selection) *goquery.Selection {
	best := body
	bestScore := paragraphText(body.ChildrenFiltered("p"))
	body.Find("article, main, section, div").Each(func(_ int, s *goquery.Selection) {
		if score := paragraphText(s.Find("p")); score > bestScore {
			best, bestScore = s, score
		}
	})
	return best
}

func paragraphText(s *goquery.Selection) int {
	n := 0
	s.Each(func(_ int, p *goquery.Selection) {
		n += len(strings.TrimSpace(p.Text()))
	})
	return n
}

func melted(body *goquery.Selection) template.HTML {
	var b strings.Builder
	body.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(blockElements).Length() > 0 {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		tag := "p"
		if s.Is("h1, h2, h3, h4, h5, h6") {
			tag = "h2"
		}
		fmt.Fprintf(&b, "<%s>%s</%s>\n", tag, html.EscapeString(text), tag)
	})
	if b.Len() == 0 {
		if text := strings.Join(strings.Fields(body.Text()), " "); text != "" {
			fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(text))
		}
	}
	return template.HTML(strings.TrimSpace(b.String()))
}

// scrub removes scriptable elements and event handlers, and drops every URL
// attribute that does not pass safeURL.
func scrub(s *goquery.Selection) {
	s.Find(activeElements).Remove()
	s.Find("*").Each(func(_ int, el *goquery.Selection) {
		for _, node := range el.Nodes {
			kept := node.Attr[:0]
			for _, attr := range node.Attr {
				key := strings.ToLower(attr.Key)
				if strings.HasPrefix(key, "on") {
					continue
				}
				if key == "srcset" && !safeSrcset(attr.Val) {
					continue
				}
				if urlAttrs[key] && key != "srcset" && !safeURL(attr.Val) {
					continue
				}
				kept = append(kept, attr)
			}
			node.Attr = kept
		}
	})
}

// safeURL reports whether raw is relative or uses http, https or mailto.
// Browsers ignore ASCII tab and newlines anywhere in a URL, so those are
// removed before the scheme is read.
func safeURL(raw string) bool {
	raw = strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return true
	}
	return false
}

func safeSrcset(raw string) bool {
	for _, candidate := range strings.Split(raw, ",") {
		fields := strings.Fields(candidate)
		if len(fields) > 0 && !safeURL(fields[0]) {
			return false
		}
	}
	return true
}

func absolutize(s *goquery.Selection, attr string, base *url.URL) {
	if base == nil {
		return
	}
	val, ok := s.Attr(attr)
	if !ok {
		return
	}
	ref, err := url.Parse(strings.TrimSpace(val))
	if err != nil {
		return
	}
	s.SetAttr(attr, base.ResolveReference(ref).String())
}
