package source

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxDescription caps stored descriptions; listing blurbs past this point
// are boilerplate and only churn the fingerprint.
const maxDescription = 500

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// absoluteURL resolves a scraped href against the site's origin.
func absoluteURL(origin, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return strings.TrimSuffix(origin, "/") + href
}

// imageURL pulls the best available image attribute from a card's <img>.
func imageURL(card *goquery.Selection) string {
	img := card.Find("img").First()
	if img.Length() == 0 {
		return ""
	}
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// cardLink returns the card's outbound href, checking the element itself
// before searching descendants.
func cardLink(card *goquery.Selection) string {
	if href, ok := card.Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	href, _ := card.Find("a[href]").First().Attr("href")
	return strings.TrimSpace(href)
}

// cardTitle returns the first plausible heading text within a card.
func cardTitle(card *goquery.Selection) string {
	for _, sel := range []string{"h1", "h2", "h3", "h4"} {
		if h := card.Find(sel).First(); h.Length() > 0 {
			if t := cleanText(h.Text()); t != "" {
				return t
			}
		}
	}
	return ""
}
