package resolve

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/formwatch/formwatch/pkg/fetch"
)

// ParentURL derives the listing page for a document URL by taking the
// immediate parent path segment. Used when a source has no explicit listing
// URL configured.
func ParentURL(docURL string) (string, error) {
	parsed, err := url.Parse(docURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("cannot derive parent of %q", docURL)
	}
	path := parsed.Path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		path = path[:idx+1]
	} else {
		path = "/"
	}
	return parsed.Scheme + "://" + parsed.Host + path, nil
}

// listPDFLinks fetches a listing page and returns the absolute URLs of every
// PDF it links to, in document order with duplicates removed.
func listPDFLinks(ctx context.Context, fetcher fetch.Fetcher, listingURL string) ([]string, error) {
	resp, err := fetcher.Fetch(ctx, listingURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing URL %q: %w", listingURL, err)
	}

	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "a" {
			for _, attr := range node.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if !isPDFLink(href) {
					continue
				}
				ref, err := url.Parse(href)
				if err != nil {
					continue
				}
				absolute := base.ResolveReference(ref).String()
				if !seen[absolute] {
					seen[absolute] = true
					links = append(links, absolute)
				}
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links, nil
}

func isPDFLink(href string) bool {
	if href == "" {
		return false
	}
	// Ignore query and fragment when checking the extension.
	if idx := strings.IndexAny(href, "?#"); idx >= 0 {
		href = href[:idx]
	}
	return strings.HasSuffix(strings.ToLower(href), ".pdf")
}

// filename returns the last path segment of a URL without its extension,
// lowercased with separators stripped, for fuzzy filename comparison.
func filename(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	path := rawURL
	if err == nil {
		path = parsed.Path
	}
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		path = path[idx+1:]
	}
	path = strings.TrimSuffix(strings.ToLower(path), ".pdf")
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return r
	}, path)
}
