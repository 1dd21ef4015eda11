// Package extract pulls best-effort product metadata out of arbitrary HTML
// pages via an ordered list of selector fallbacks. It is the last-resort path
// for vendors with no structured API.
package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageData holds whatever could be extracted. Missing fields stay zero;
// absence is never an error.
type PageData struct {
	Title       string
	Description string
	Image       string
	PriceText   string
	Currency    string
}

type candidate struct {
	selector string
	attr     string // empty means text content
}

// Candidate lists are ordered: Open Graph first, then Twitter Card, then
// generic meta/microdata, then CSS-class heuristics.
var (
	titleCandidates = []candidate{
		{`meta[property="og:title"]`, "content"},
		{`meta[name="twitter:title"]`, "content"},
		{`meta[itemprop="name"]`, "content"},
		{`h1.product-title`, ""},
		{`h1`, ""},
		{`title`, ""},
	}

	descriptionCandidates = []candidate{
		{`meta[property="og:description"]`, "content"},
		{`meta[name="twitter:description"]`, "content"},
		{`meta[name="description"]`, "content"},
		{`meta[itemprop="description"]`, "content"},
	}

	imageCandidates = []candidate{
		{`meta[property="og:image"]`, "content"},
		{`meta[name="twitter:image"]`, "content"},
		{`meta[itemprop="image"]`, "content"},
		{`img.product-image`, "src"},
	}

	priceCandidates = []candidate{
		{`meta[property="og:price:amount"]`, "content"},
		{`meta[property="product:price:amount"]`, "content"},
		{`meta[itemprop="price"]`, "content"},
		{`[itemprop="price"]`, "content"},
		{`[itemprop="price"]`, ""},
		{`.price`, ""},
		{`.product-price`, ""},
	}

	currencyCandidates = []candidate{
		{`meta[property="og:price:currency"]`, "content"},
		{`meta[property="product:price:currency"]`, "content"},
		{`meta[itemprop="priceCurrency"]`, "content"},
		{`[itemprop="priceCurrency"]`, "content"},
	}
)

// Extract walks the candidate lists and returns the first non-empty match per
// field.
func Extract(doc *goquery.Document) PageData {
	return PageData{
		Title:       firstMatch(doc, titleCandidates),
		Description: firstMatch(doc, descriptionCandidates),
		Image:       firstMatch(doc, imageCandidates),
		PriceText:   firstMatch(doc, priceCandidates),
		Currency:    firstMatch(doc, currencyCandidates),
	}
}

func firstMatch(doc *goquery.Document, candidates []candidate) string {
	for _, c := range candidates {
		sel := doc.Find(c.selector).First()
		if sel.Length() == 0 {
			continue
		}
		var v string
		if c.attr == "" {
			v = sel.Text()
		} else {
			v, _ = sel.Attr(c.attr)
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// ParsePrice turns loosely formatted price text into a float. Everything but
// digits, "." and "," is stripped; a lone comma is treated as a decimal
// separator (European style), otherwise commas are thousands separators.
// Returns false when no numeric value remains.
func ParsePrice(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	if !hasComma && !hasDot {
		// bare digit runs are too ambiguous to trust as a price
		return 0, false
	}

	switch {
	case hasComma && !hasDot:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case hasComma && hasDot:
		// "1.234,56" puts the comma last: dot is the thousands separator
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
