package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Meta is the article metadata advertised in a page's <head>.
type Meta struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Image         string `json:"image"`
	Favicon       string `json:"favicon"`
	PublishedTime string `json:"published_time"`
}

// ExtractMeta reads OpenGraph, article and link metadata. Relative image and
// icon references are resolved against base, which may be nil.
func ExtractMeta(htmlContent string, base *url.URL) (Meta, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return Meta{}, fmt.Errorf("parse html: %w", err)
	}

	m := Meta{
		Title: firstNonEmpty(
			metaContent(doc, "meta[property='og:title']"),
			strings.TrimSpace(doc.Find("head title").First().Text()),
			strings.TrimSpace(doc.Find("h1").First().Text()),
		),
		Description: firstNonEmpty(
			metaContent(doc, "meta[property='og:description']"),
			metaContent(doc, "meta[name='description']"),
		),
		PublishedTime: firstNonEmpty(
			metaContent(doc, "meta[property='article:published_time']"),
			metaContent(doc, "meta[itemprop='datePublished']"),
			attr(doc, "time[datetime]", "datetime"),
		),
	}

	m.Image = resolve(base, firstNonEmpty(
		metaContent(doc, "meta[property='og:image']"),
		metaContent(doc, "meta[name='twitter:image']"),
	))

	icon := firstNonEmpty(
		attr(doc, "link[rel='icon']", "href"),
		attr(doc, "link[rel='shortcut icon']", "href"),
		attr(doc, "link[rel='apple-touch-icon']", "href"),
	)
	if icon == "" && base != nil {
		icon = "/favicon.ico"
	}
	m.Favicon = resolve(base, icon)

	return m, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	return attr(doc, selector, "content")
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return ""
	}
	return u.String()
}
