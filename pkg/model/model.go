// Package model contains the canonical, provider-agnostic types all
// backends map their API responses into.
package model

import (
	"time"
)

// Channel is the metadata of a collection of content items.
type Channel struct {
	// Title of the channel, with the provider name appended,
	// e.g. "Some DJ (via Mixcloud)".
	Title string

	// Link is the canonical URL of the channel on its provider.
	Link string

	// Description of the channel.
	Description string

	// Author is the creator of the channel, if known.
	Author string

	// Categories associated with the channel. The first one is considered
	// to be the main category. The order is fixed at construction time.
	Categories []string

	// Image is the URL of the channel image/logo/avatar, if any.
	Image string

	// Items contained in the channel, in provider-reported order.
	Items []Item
}

// Item is a single content item belonging to a channel.
type Item struct {
	// Title of the item.
	Title string

	// Link is the direct URL of the item on its provider.
	Link string

	// Description of the item, if any.
	Description string

	// Categories of the item mapped to their domain URLs.
	Categories map[string]string

	// Enclosure describes the downloadable media of the item.
	Enclosure Enclosure

	// Duration of the media in seconds, 0 when unknown.
	Duration int64

	// GUID is the stable provider-assigned ID of the item.
	// It is not necessarily a permalink.
	GUID string

	// Keywords associated with the item, in provider order.
	Keywords []string

	// Image is the URL of the item image, if any.
	Image string

	// PublishedAt is the timestamp the item was published.
	PublishedAt time.Time

	// UpdatedAt is the timestamp the item was last updated. Providers
	// without a separate update time report PublishedAt here as well.
	UpdatedAt time.Time
}

// Enclosure describes the enclosed media content of an item.
//
// File carries no content itself. It is a relative path that uniquely
// identifies the download within its backend and is passed back to
// Backend.RedirectURL when a client requests the media.
type Enclosure struct {
	File     string
	MIMEType string

	// Length of the media in bytes, exact or estimated.
	Length int64
}
