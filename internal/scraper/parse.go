package scraper

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"stockwatch-telegram-bot/internal/types"
)

// cardClasses are the listing-card hooks seen across site revisions.
// The markup shifts regularly, so every known variant is tried.
var cardClasses = []string{
	"S-product-item",
	"c-product-list__item",
	"product-card",
	"j-expose__product-item",
}

var nameClasses = []string{"product-name", "goods-name", "name"}
var priceClasses = []string{"price", "current-price", "goods-price"}

func parseListing(page string, cat types.Category) ([]types.ProductSnapshot, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, &ParseError{URL: cat.URL, Reason: "invalid HTML: " + err.Error()}
	}

	var cards []*html.Node
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if attr(n, "data-product-id") != "" || attr(n, "data-goods-id") != "" || hasAnyClass(n, cardClasses) {
			cards = append(cards, n)
		}
	})

	if len(cards) == 0 {
		return nil, &ParseError{URL: cat.URL, Reason: "no product cards matched known selectors"}
	}

	observed := time.Now().UTC()
	var products []types.ProductSnapshot
	for _, card := range cards {
		snap, ok := extractCard(card, cat)
		if !ok {
			continue
		}
		snap.ObservedAt = observed
		products = append(products, snap)
	}

	return products, nil
}

func extractCard(card *html.Node, cat types.Category) (types.ProductSnapshot, bool) {
	snap := types.ProductSnapshot{Category: cat.Name}

	snap.ID = attr(card, "data-product-id")
	if snap.ID == "" {
		snap.ID = attr(card, "data-goods-id")
	}
	// Cards without a stable ID cannot be tracked across cycles.
	if snap.ID == "" {
		return snap, false
	}

	walk(card, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch {
		case snap.Name == "" && hasAnyClass(n, nameClasses):
			snap.Name = strings.TrimSpace(textContent(n))
		case snap.Price == "" && hasAnyClass(n, priceClasses):
			snap.Price = strings.TrimSpace(textContent(n))
		case snap.ImageURL == "" && n.Data == "img":
			src := attr(n, "src")
			if src == "" {
				src = attr(n, "data-src")
			}
			snap.ImageURL = absoluteURL(src, cat.URL)
		case snap.ProductURL == "" && n.Data == "a":
			snap.ProductURL = absoluteURL(attr(n, "href"), cat.URL)
		}
	})

	if snap.Name == "" {
		snap.Name = "Unknown Product"
	}
	if len(snap.Name) > 200 {
		snap.Name = snap.Name[:200]
	}

	snap.Sizes = collectSizes(card)
	return snap, true
}

// parseSizes reads the size availability from a product detail page.
func parseSizes(page string) map[string]int {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}
	return collectSizes(doc)
}

func collectSizes(root *html.Node) map[string]int {
	sizes := make(map[string]int)
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if attr(n, "data-size") == "" && !hasAnyClass(n, []string{"size-option", "sku-item"}) {
			return
		}

		label := attr(n, "data-size")
		if label == "" {
			label = strings.TrimSpace(textContent(n))
		}
		if label == "" || len(label) >= 10 {
			return
		}

		if hasAnyClass(n, []string{"disabled", "sold-out", "out-of-stock"}) {
			sizes[label] = 0
			return
		}

		qty := 1
		if raw := firstNonEmpty(attr(n, "data-stock"), attr(n, "data-quantity")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			// Negative counts are malformed markup, not stock levels.
			if err != nil || parsed < 0 {
				return
			}
			qty = parsed
		}
		sizes[label] = qty
	})

	if len(sizes) == 0 {
		return nil
	}
	return sizes
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAnyClass(n *html.Node, classes []string) bool {
	fields := strings.Fields(attr(n, "class"))
	for _, field := range fields {
		for _, class := range classes {
			if field == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}

func absoluteURL(ref, base string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
