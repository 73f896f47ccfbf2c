package backend

import (
	"context"
	"fmt"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"

	ytstream "github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"

	"github.com/podgate/podgate/pkg/cache"
	"github.com/podgate/podgate/pkg/model"
)

const (
	youtubeChannelBaseURL  = "https://www.youtube.com/channel"
	youtubePlaylistBaseURL = "https://www.youtube.com/playlist"
	youtubeVideoBaseURL    = "https://www.youtube.com/watch"
	youtubeHashtagBaseURL  = "https://www.youtube.com/hashtag"

	// youtubePageSize is the Data API maximum for playlistItems pages.
	youtubePageSize = 50

	// youtubeDefaultLimit applies when no item limit was requested.
	youtubeDefaultLimit = 50

	// preferredAudioMIME is the container preferred during stream
	// selection; it has the widest podcast client support.
	preferredAudioMIME = "audio/mp4"
)

// playlistIDPrefixes classify a channel ID as a playlist ID by shape.
// Applied before any network call.
var playlistIDPrefixes = []string{"PL", "OLAK", "RDCLAK"}

// audioExtensions maps a parameter-free audio MIME type to the file
// extension used in enclosure paths.
var audioExtensions = map[string]string{
	"audio/mp4":  "m4a",
	"audio/webm": "webm",
	"audio/mpeg": "mp3",
	"audio/ogg":  "ogg",
}

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// metadataAPI is the subset of the YouTube Data API used for channel,
// playlist and listing lookups.
type metadataAPI interface {
	channel(ctx context.Context, id string) (*youtube.Channel, error)
	playlist(ctx context.Context, id string) (*youtube.Playlist, error)
	playlistItems(ctx context.Context, playlistID, pageToken string, maxResults int64) ([]*youtube.PlaylistItem, string, error)
}

// streamSource probes per-video stream lists and resolves stream URLs.
type streamSource interface {
	video(ctx context.Context, videoID string) (*ytstream.Video, error)
	streamURL(ctx context.Context, video *ytstream.Video, format *ytstream.Format) (string, error)
}

// YouTube is the YouTube adapter. A channel ID is either a YouTube
// channel ID or, when its shape says so, a playlist ID.
type YouTube struct {
	api     metadataAPI
	streams streamSource

	channels  *cache.Cache[*model.Channel]
	redirects *cache.Cache[string]
}

// NewYouTube creates a YouTube backend talking to the Data API with the
// given key.
func NewYouTube(ctx context.Context, apiKey string, ttl time.Duration) (*YouTube, error) {
	service, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create youtube client")
	}

	return &YouTube{
		api:       &dataAPI{service: service},
		streams:   &streamClient{client: &ytstream.Client{}},
		channels:  cache.New[*model.Channel](ttl),
		redirects: cache.New[string](ttl),
	}, nil
}

func (y *YouTube) Name() string {
	return "YouTube"
}

func (y *YouTube) Channel(ctx context.Context, channelID string, itemLimit int) (*model.Channel, error) {
	if itemLimit <= 0 {
		itemLimit = youtubeDefaultLimit
	}

	key := fmt.Sprintf("%s?limit=%d", channelID, itemLimit)

	return y.channels.GetOrCompute(key, func() (*model.Channel, error) {
		return y.fetchChannel(ctx, channelID, itemLimit)
	})
}

func (y *YouTube) fetchChannel(ctx context.Context, channelID string, itemLimit int) (*model.Channel, error) {
	var (
		ch         *model.Channel
		playlistID string
	)

	if isPlaylistID(channelID) {
		playlist, err := y.api.playlist(ctx, channelID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch playlist %q", channelID)
		}

		if playlist.Snippet == nil {
			return nil, errors.Wrapf(model.ErrBadResponse, "playlist %q has no snippet", channelID)
		}

		ch = mapYouTubePlaylist(playlist)
		playlistID = playlist.Id
	} else {
		channel, err := y.api.channel(ctx, channelID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch channel %q", channelID)
		}

		if channel.Snippet == nil || channel.ContentDetails == nil || channel.ContentDetails.RelatedPlaylists == nil {
			return nil, errors.Wrapf(model.ErrBadResponse, "channel %q has no uploads playlist", channelID)
		}

		ch = mapYouTubeChannel(channel)
		playlistID = channel.ContentDetails.RelatedPlaylists.Uploads
	}

	items, err := y.fetchItems(ctx, playlistID, itemLimit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch videos of %q", channelID)
	}

	ch.Items = items
	return ch, nil
}

// fetchItems walks the playlist pages in provider order and probes each
// video's streams. A video without a usable audio stream is dropped and
// still consumes its slot of the limit window, so the feed may come back
// short but the provider is never queried past the window.
func (y *YouTube) fetchItems(ctx context.Context, playlistID string, itemLimit int) ([]model.Item, error) {
	var (
		items     []model.Item
		token     string
		remaining = itemLimit
	)

	for remaining > 0 {
		page, next, err := y.api.playlistItems(ctx, playlistID, token, int64(min(remaining, youtubePageSize)))
		if err != nil {
			return nil, err
		}

		if len(page) == 0 {
			break
		}

		for _, entry := range page {
			if remaining == 0 {
				break
			}
			remaining--

			if entry.Snippet == nil || entry.Snippet.ResourceId == nil {
				return nil, errors.Wrap(model.ErrBadResponse, "playlist entry has no video reference")
			}

			item, ok := y.itemWithStream(ctx, entry)
			if !ok {
				continue
			}

			items = append(items, item)
		}

		if remaining == 0 || next == "" {
			break
		}
		token = next
	}

	return items, nil
}

// itemWithStream maps one playlist entry into a canonical item. It
// reports false when the video has no usable audio stream; the caller
// drops such videos without failing the channel fetch.
func (y *YouTube) itemWithStream(ctx context.Context, entry *youtube.PlaylistItem) (model.Item, bool) {
	videoID := entry.Snippet.ResourceId.VideoId

	video, err := y.streams.video(ctx, videoID)
	if err != nil {
		log.WithError(err).Debugf("dropping video %q: stream metadata unavailable", videoID)
		return model.Item{}, false
	}

	format, ok := selectAudioFormat(video.Formats)
	if !ok {
		log.Debugf("dropping video %q: no audio stream", videoID)
		return model.Item{}, false
	}

	link := fmt.Sprintf("%s?v=%s", youtubeVideoBaseURL, videoID)
	uploaded := parseUploadDate(entry.Snippet.PublishedAt)
	categories, keywords := hashtags(video.Description)

	return model.Item{
		Title:       entry.Snippet.Title,
		Link:        link,
		Description: fmt.Sprintf("Taken from YouTube: %s", link),
		Categories:  categories,
		Enclosure: model.Enclosure{
			File:     enclosureFile(videoID, format.MimeType),
			MIMEType: format.MimeType,
			Length:   format.ContentLength,
		},
		Duration:    int64(video.Duration / time.Second),
		GUID:        videoID,
		Keywords:    keywords,
		Image:       largestThumbnail(entry.Snippet.Thumbnails),
		PublishedAt: uploaded,
		UpdatedAt:   uploaded,
	}, true
}

func (y *YouTube) RedirectURL(ctx context.Context, file string) (string, error) {
	videoID := strings.TrimSuffix(file, path.Ext(file))

	return y.redirects.GetOrCompute(videoID, func() (string, error) {
		video, err := y.streams.video(ctx, videoID)
		if err != nil {
			return "", errors.Wrapf(err, "failed to fetch video %q", videoID)
		}

		format, ok := selectAudioFormat(video.Formats)
		if !ok {
			// Unlike a channel fetch there is nothing to fall back
			// to for an explicitly requested download.
			return "", errors.Wrap(model.ErrNoRedirectFound, videoID)
		}

		return y.streams.streamURL(ctx, video, format)
	})
}

// Evict drops expired cache entries.
func (y *YouTube) Evict() int {
	return y.channels.Evict() + y.redirects.Evict()
}

func isPlaylistID(channelID string) bool {
	for _, prefix := range playlistIDPrefixes {
		if strings.HasPrefix(channelID, prefix) {
			return true
		}
	}

	return false
}

// selectAudioFormat applies the stream selection policy: audio-only
// streams, preferring the audio/mp4 container, then the single highest
// bitrate among what is left.
func selectAudioFormat(formats []ytstream.Format) (*ytstream.Format, bool) {
	var candidates []*ytstream.Format
	preferred := false
	for i := range formats {
		f := &formats[i]
		mediaType, _, err := mime.ParseMediaType(f.MimeType)
		if err != nil || !strings.HasPrefix(mediaType, "audio/") {
			continue
		}

		if mediaType == preferredAudioMIME && !preferred {
			preferred = true
			candidates = candidates[:0]
		}
		if preferred && mediaType != preferredAudioMIME {
			continue
		}

		candidates = append(candidates, f)
	}

	if len(candidates) == 0 {
		return nil, false
	}

	best := candidates[0]
	for _, f := range candidates[1:] {
		if f.Bitrate > best.Bitrate {
			best = f
		}
	}

	return best, true
}

// enclosureFile derives the per-item download path from the video ID and
// the selected stream's MIME type, ignoring MIME parameters.
func enclosureFile(videoID, mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return videoID
	}

	ext, ok := audioExtensions[mediaType]
	if !ok {
		return videoID
	}

	return videoID + "." + ext
}

// parseUploadDate parses the best available upload timestamp. When the
// provider only reports a date, noon UTC is used as the time of day.
func parseUploadDate(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Add(12 * time.Hour)
	}

	return time.Time{}
}

// hashtags extracts hashtags from a video description. It returns them
// both as a category map (tag name to hashtag page URL) and as an
// ordered keyword list, first occurrence first.
func hashtags(description string) (map[string]string, []string) {
	matches := hashtagPattern.FindAllStringSubmatch(description, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	categories := make(map[string]string, len(matches))
	keywords := make([]string, 0, len(matches))
	for _, match := range matches {
		tag := match[1]
		if _, seen := categories[tag]; seen {
			continue
		}
		categories[tag] = fmt.Sprintf("%s/%s", youtubeHashtagBaseURL, strings.ToLower(tag))
		keywords = append(keywords, tag)
	}

	return categories, keywords
}

// largestThumbnail picks the thumbnail variant with the largest pixel
// area.
func largestThumbnail(details *youtube.ThumbnailDetails) string {
	if details == nil {
		return ""
	}

	var (
		best string
		area int64
	)
	for _, tn := range []*youtube.Thumbnail{
		details.Default, details.Medium, details.High, details.Standard, details.Maxres,
	} {
		if tn == nil {
			continue
		}
		if a := tn.Width * tn.Height; a >= area {
			best = tn.Url
			area = a
		}
	}

	return best
}

func mapYouTubeChannel(channel *youtube.Channel) *model.Channel {
	return &model.Channel{
		Title:       fmt.Sprintf("%s (via YouTube)", channel.Snippet.Title),
		Link:        fmt.Sprintf("%s/%s", youtubeChannelBaseURL, channel.Id),
		Description: channel.Snippet.Description,
		Author:      channel.Snippet.Title,
		// Like Mixcloud's "Music", a placeholder: the API reports no
		// channel-level category.
		Categories: []string{"Video"},
		Image:      largestThumbnail(channel.Snippet.Thumbnails),
	}
}

func mapYouTubePlaylist(playlist *youtube.Playlist) *model.Channel {
	return &model.Channel{
		Title:       fmt.Sprintf("%s (via YouTube)", playlist.Snippet.Title),
		Link:        fmt.Sprintf("%s?list=%s", youtubePlaylistBaseURL, playlist.Id),
		Description: playlist.Snippet.Description,
		Author:      playlist.Snippet.ChannelTitle,
		Categories:  []string{"Video"},
		Image:       largestThumbnail(playlist.Snippet.Thumbnails),
	}
}

// dataAPI implements metadataAPI on top of the official Data API client.
type dataAPI struct {
	service *youtube.Service
}

// Cost: 5 units (call: 1, snippet: 2, contentDetails: 2)
func (a *dataAPI) channel(ctx context.Context, id string) (*youtube.Channel, error) {
	resp, err := a.service.Channels.List([]string{"id", "snippet", "contentDetails"}).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrap(err, "failed to query channel")
	}

	if len(resp.Items) == 0 {
		return nil, errors.Errorf("channel %q not found", id)
	}

	return resp.Items[0], nil
}

// Cost: 3 units (call: 1, snippet: 2)
func (a *dataAPI) playlist(ctx context.Context, id string) (*youtube.Playlist, error) {
	resp, err := a.service.Playlists.List([]string{"id", "snippet"}).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrap(err, "failed to query playlist")
	}

	if len(resp.Items) == 0 {
		return nil, errors.Errorf("playlist %q not found", id)
	}

	return resp.Items[0], nil
}

// Cost: 3 units (call: 1, snippet: 2)
func (a *dataAPI) playlistItems(ctx context.Context, playlistID, pageToken string, maxResults int64) ([]*youtube.PlaylistItem, string, error) {
	req := a.service.PlaylistItems.List([]string{"id", "snippet"}).PlaylistId(playlistID).MaxResults(maxResults)
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}

	resp, err := req.Context(ctx).Do()
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to query playlist items")
	}

	return resp.Items, resp.NextPageToken, nil
}

// streamClient implements streamSource with the player API client.
type streamClient struct {
	client *ytstream.Client
}

func (s *streamClient) video(ctx context.Context, videoID string) (*ytstream.Video, error) {
	return s.client.GetVideoContext(ctx, videoID)
}

func (s *streamClient) streamURL(ctx context.Context, video *ytstream.Video, format *ytstream.Format) (string, error) {
	return s.client.GetStreamURLContext(ctx, video, format)
}
