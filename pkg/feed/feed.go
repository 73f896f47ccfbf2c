// Package feed turns a canonical channel into a podcast RSS document.
package feed

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/podgate/podgate/pkg/model"
)

// Synthesizer builds RSS documents with download URLs rooted at the
// configured public base URL.
type Synthesizer struct {
	baseURL   string
	generator string
}

// NewSynthesizer creates a synthesizer. version ends up in the feed's
// generator element.
func NewSynthesizer(baseURL, version string) *Synthesizer {
	return &Synthesizer{
		baseURL:   strings.TrimRight(baseURL, "/"),
		generator: fmt.Sprintf("podgate %s", version),
	}
}

// Build renders the channel as an RSS 2.0 document with iTunes
// extensions. It is a pure mapping: identical input yields identical
// output.
func (s *Synthesizer) Build(backendID string, ch *model.Channel) ([]byte, error) {
	// Epoch sentinel when the channel has no items.
	lastBuild := time.Unix(0, 0).UTC()
	for _, item := range ch.Items {
		if item.UpdatedAt.After(lastBuild) {
			lastBuild = item.UpdatedAt
		}
	}

	mainCategory := ""
	if len(ch.Categories) > 0 {
		mainCategory = ch.Categories[0]
	}

	itunesCategories := make([]itunesCategory, 0, len(ch.Categories))
	for _, cat := range ch.Categories {
		itunesCategories = append(itunesCategories, itunesCategory{Text: cat})
	}

	channel := &rssChannel{
		Title:         ch.Title,
		Link:          ch.Link,
		Description:   ch.Description,
		Category:      mainCategory,
		LastBuildDate: lastBuild.UTC().Format(time.RFC1123Z),
		Generator:     s.generator,
		Author:        ch.Author,
		Categories:    itunesCategories,
		Explicit:      "no",
		Summary:       ch.Description,
	}

	if ch.Image != "" {
		channel.Image = &rssImage{URL: ch.Image, Link: ch.Image}
		channel.ItunesImage = &itunesImage{Href: ch.Image}
	}

	for _, item := range ch.Items {
		channel.Items = append(channel.Items, s.buildItem(backendID, item))
	}

	doc := rssDoc{
		Version:  "2.0",
		ItunesNS: "http://www.itunes.com/dtds/podcast-1.0.dtd",
		Channel:  channel,
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal feed")
	}

	return append([]byte(xml.Header), out...), nil
}

func (s *Synthesizer) buildItem(backendID string, item model.Item) rssItem {
	// Sorted for deterministic output; the canonical category map is
	// unordered.
	names := make([]string, 0, len(item.Categories))
	for name := range item.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	categories := make([]rssCategory, 0, len(names))
	for _, name := range names {
		categories = append(categories, rssCategory{Domain: item.Categories[name], Name: name})
	}

	out := rssItem{
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Categories:  categories,
		Enclosure: rssEnclosure{
			URL:    fmt.Sprintf("%s/download/%s/%s", s.baseURL, backendID, item.Enclosure.File),
			Length: strconv.FormatInt(item.Enclosure.Length, 10),
			Type:   item.Enclosure.MIMEType,
		},
		GUID:     rssGUID{IsPermaLink: "false", Value: item.GUID},
		PubDate:  item.UpdatedAt.UTC().Format(time.RFC1123Z),
		Subtitle: item.Description,
		Keywords: strings.Join(item.Keywords, ", "),
	}

	if item.Image != "" {
		out.Image = &itunesImage{Href: item.Image}
	}

	if item.Duration > 0 {
		out.Duration = strconv.FormatInt(item.Duration, 10)
	}

	return out
}
