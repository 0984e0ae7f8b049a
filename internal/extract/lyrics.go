package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"lyrics_spider/internal/config"
)

// LineSeparator joins the text nodes of one container.
const LineSeparator = "\n"

type Options struct {
	Selector string
	// ContainerSeparator joins consecutive containers. Empty concatenates them
	// directly, so the last line of one container runs into the next.
	ContainerSeparator string
	// ReadabilityFallback extracts the page's main text when no container matches.
	ReadabilityFallback bool
	// PageURL resolves relative links for the readability pass.
	PageURL *url.URL
}

type Extractor struct {
	opts Options
}

func New(opts Options) *Extractor {
	if opts.Selector == "" {
		opts.Selector = config.DefaultContainerSelector
	}
	if opts.PageURL == nil {
		opts.PageURL = &url.URL{Scheme: "https", Host: "genius.com", Path: "/"}
	}
	return &Extractor{opts: opts}
}

// Extract returns the cleaned lyric text of every container in rawHTML.
// Markup with no containers yields an empty string.
func (e *Extractor) Extract(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	containers := doc.Find(e.opts.Selector)
	if containers.Length() == 0 && e.opts.ReadabilityFallback {
		return CleanText(e.readable(rawHTML)), nil
	}

	parts := make([]string, 0, containers.Length())
	containers.Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			parts = append(parts, nodeText(n, LineSeparator))
		}
	})

	return CleanText(strings.Join(parts, e.opts.ContainerSeparator)), nil
}

func (e *Extractor) readable(rawHTML string) string {
	article, err := readability.FromReader(strings.NewReader(rawHTML), e.opts.PageURL)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return ""
	}
	doc.Find("script, style, figure, aside").Remove()
	return strings.TrimSpace(doc.Text())
}

// CleanText is the post-processing hook applied to every extraction. It
// currently returns its input unchanged.
func CleanText(text string) string {
	return text
}

// nodeText joins every descendant text node of n with sep. Whitespace-only
// nodes are kept; script and style contents and comments are not.
func nodeText(n *html.Node, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			parts = append(parts, n.Data)
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || n.Data == "template" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, sep)
}
