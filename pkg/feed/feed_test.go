package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podgate/podgate/pkg/model"
)

func testChannel() *model.Channel {
	return &model.Channel{
		Title:       "Test User (via Mixcloud)",
		Link:        "https://www.mixcloud.com/testuser/",
		Description: "A test user.",
		Author:      "Test User",
		Categories:  []string{"Music"},
		Image:       "https://images.example.com/testuser.jpg",
		Items: []model.Item{
			{
				Title:       "Cast 1",
				Link:        "https://www.mixcloud.com/testuser/cast-1/",
				Description: "Taken from Mixcloud: https://www.mixcloud.com/testuser/cast-1/",
				Categories:  map[string]string{"Jazz": "https://www.mixcloud.com/tag/jazz/"},
				Enclosure: model.Enclosure{
					File:     "testuser/cast-1.m4a",
					MIMEType: "audio/mpeg",
					Length:   29491200,
				},
				Duration:    3600,
				GUID:        "cast-1",
				Keywords:    []string{"Jazz", "Chill"},
				Image:       "https://images.example.com/cast-1.jpg",
				PublishedAt: time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC),
				UpdatedAt:   time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC),
			},
			{
				Title: "Cast 2",
				Link:  "https://www.mixcloud.com/testuser/cast-2/",
				Enclosure: model.Enclosure{
					File:     "testuser/cast-2.m4a",
					MIMEType: "audio/mpeg",
					Length:   1024,
				},
				GUID:        "cast-2",
				PublishedAt: time.Date(2023, 6, 2, 9, 30, 0, 0, time.UTC),
				UpdatedAt:   time.Date(2023, 6, 2, 9, 30, 0, 0, time.UTC),
			},
		},
	}
}

func build(t *testing.T, ch *model.Channel) string {
	t.Helper()

	s := NewSynthesizer("https://pods.example.org/", "1.2.3")
	out, err := s.Build("mixcloud", ch)
	require.NoError(t, err)

	return string(out)
}

func TestBuild_ChannelFields(t *testing.T) {
	out := build(t, testChannel())

	assert.Contains(t, out, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, out, `<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">`)
	assert.Contains(t, out, "<title>Test User (via Mixcloud)</title>")
	assert.Contains(t, out, "<link>https://www.mixcloud.com/testuser/</link>")
	assert.Contains(t, out, "<category>Music</category>")
	assert.Contains(t, out, "<generator>podgate 1.2.3</generator>")
	assert.Contains(t, out, "<itunes:author>Test User</itunes:author>")
	assert.Contains(t, out, `<itunes:category text="Music"></itunes:category>`)
	assert.Contains(t, out, "<itunes:explicit>no</itunes:explicit>")
	assert.Contains(t, out, "<itunes:summary>A test user.</itunes:summary>")
	assert.Contains(t, out, "<url>https://images.example.com/testuser.jpg</url>")
}

func TestBuild_LastBuildDateIsMaxUpdatedAt(t *testing.T) {
	out := build(t, testChannel())

	assert.Contains(t, out, "<lastBuildDate>Fri, 02 Jun 2023 09:30:00 +0000</lastBuildDate>")
}

func TestBuild_EmptyChannelUsesEpochSentinel(t *testing.T) {
	ch := testChannel()
	ch.Items = nil

	out := build(t, ch)

	assert.Contains(t, out, "<lastBuildDate>Thu, 01 Jan 1970 00:00:00 +0000</lastBuildDate>")
}

func TestBuild_ItemFields(t *testing.T) {
	out := build(t, testChannel())

	assert.Contains(t, out, "<title>Cast 1</title>")
	assert.Contains(t, out, `<category domain="https://www.mixcloud.com/tag/jazz/">Jazz</category>`)
	assert.Contains(t, out,
		`<enclosure url="https://pods.example.org/download/mixcloud/testuser/cast-1.m4a" length="29491200" type="audio/mpeg"></enclosure>`)
	assert.Contains(t, out, `<guid isPermaLink="false">cast-1</guid>`)
	assert.Contains(t, out, "<pubDate>Mon, 01 May 2023 12:00:00 +0000</pubDate>")
	assert.Contains(t, out, `<itunes:image href="https://images.example.com/cast-1.jpg"></itunes:image>`)
	assert.Contains(t, out, "<itunes:duration>3600</itunes:duration>")
	assert.Contains(t, out, "<itunes:keywords>Jazz, Chill</itunes:keywords>")
}

func TestBuild_OptionalFieldsOmitted(t *testing.T) {
	ch := testChannel()
	ch.Image = ""
	ch.Categories = nil

	out := build(t, ch)

	assert.NotContains(t, out, "<image>")
	assert.NotContains(t, out, "itunes:image href=\"\"")
	assert.Contains(t, out, "<category></category>", "main category is empty when the channel has none")

	// Cast 2 has no duration, keywords or image.
	assert.NotContains(t, out, "<itunes:duration></itunes:duration>")
}

func TestBuild_Deterministic(t *testing.T) {
	ch := testChannel()
	ch.Items[0].Categories = map[string]string{
		"Soul": "https://www.mixcloud.com/tag/soul/",
		"Funk": "https://www.mixcloud.com/tag/funk/",
		"Jazz": "https://www.mixcloud.com/tag/jazz/",
	}

	first := build(t, ch)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build(t, ch))
	}
}
