package feed

import (
	"encoding/xml"
)

type rssDoc struct {
	XMLName  xml.Name    `xml:"rss"`
	Version  string      `xml:"version,attr"`
	ItunesNS string      `xml:"xmlns:itunes,attr"`
	Channel  *rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string           `xml:"title"`
	Link          string           `xml:"link"`
	Description   string           `xml:"description"`
	Category      string           `xml:"category"`
	LastBuildDate string           `xml:"lastBuildDate"`
	Generator     string           `xml:"generator"`
	Image         *rssImage        `xml:"image,omitempty"`
	Author        string           `xml:"itunes:author,omitempty"`
	Categories    []itunesCategory `xml:"itunes:category"`
	ItunesImage   *itunesImage     `xml:"itunes:image,omitempty"`
	Explicit      string           `xml:"itunes:explicit"`
	Summary       string           `xml:"itunes:summary"`
	Items         []rssItem        `xml:"item"`
}

type rssImage struct {
	URL  string `xml:"url"`
	Link string `xml:"link"`
}

type itunesCategory struct {
	Text string `xml:"text,attr"`
}

type itunesImage struct {
	Href string `xml:"href,attr"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	Description string        `xml:"description,omitempty"`
	Categories  []rssCategory `xml:"category"`
	Enclosure   rssEnclosure  `xml:"enclosure"`
	GUID        rssGUID       `xml:"guid"`
	PubDate     string        `xml:"pubDate"`
	Image       *itunesImage  `xml:"itunes:image,omitempty"`
	Duration    string        `xml:"itunes:duration,omitempty"`
	Subtitle    string        `xml:"itunes:subtitle,omitempty"`
	Keywords    string        `xml:"itunes:keywords,omitempty"`
}

type rssCategory struct {
	Domain string `xml:"domain,attr,omitempty"`
	Name   string `xml:",chardata"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length string `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}
