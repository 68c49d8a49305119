package harvest

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// stripSelector matches non-content markup removed before extraction.
const stripSelector = "script, style, noscript, iframe, svg, canvas, picture, source, template, " +
	"nav, footer, aside, form, [class*='advert'], [class*='sponsor'], [id*='advert']"

// blockSelector matches the elements treated as candidate text sections.
const blockSelector = "article, main, section, p, h1, h2, h3, h4, h5, h6, li, blockquote"

// minSectionChars filters out trivial fragments (lone punctuation,
// single-word buttons and the like).
const minSectionChars = 10

func normalizeText(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// extractHTMLSections walks the page's content blocks and returns
// deduplicated sections with their embedded links and images resolved to
// absolute URLs.
func extractHTMLSections(body []byte, base *url.URL) ([]Section, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc.Find(stripSelector).Remove()

	seen := make(map[string]bool)
	var sections []Section

	doc.Find(blockSelector).Each(func(_ int, el *goquery.Selection) {
		text := normalizeText(el.Text())
		if len(text) < minSectionChars || seen[text] {
			return
		}
		seen[text] = true

		section := Section{Text: text}

		el.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			abs := absoluteURL(base, href)
			linkText := normalizeText(a.Text())
			if abs == "" || linkText == "" {
				return
			}
			section.Links = append(section.Links, Link{Text: linkText, URL: abs})
		})

		el.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
			src, _ := img.Attr("src")
			abs := absoluteURL(base, src)
			if abs == "" {
				return
			}
			alt, _ := img.Attr("alt")
			section.Images = append(section.Images, Image{URL: abs, Alt: normalizeText(alt)})
		})

		sections = append(sections, section)
	})

	return sections, nil
}

// absoluteURL resolves ref against base and keeps only http(s) results.
func absoluteURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}

// extractFeedSections turns an RSS/Atom document into one section per
// entry so feed URLs flow through the same pipeline as article pages.
func extractFeedSections(body []byte) ([]Section, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var sections []Section
	for _, item := range feed.Items {
		text := normalizeText(item.Title + " " + item.Description)
		if len(text) < minSectionChars {
			continue
		}

		section := Section{Text: text}
		if item.Link != "" {
			section.Links = append(section.Links, Link{Text: normalizeText(item.Title), URL: item.Link})
		}
		if item.Image != nil && item.Image.URL != "" {
			section.Images = append(section.Images, Image{URL: item.Image.URL, Alt: normalizeText(item.Image.Title)})
		}
		sections = append(sections, section)
	}

	return sections, nil
}
