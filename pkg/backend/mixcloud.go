package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/podgate/podgate/pkg/cache"
	"github.com/podgate/podgate/pkg/model"
)

const (
	mixcloudAPIBaseURL   = "https://api.mixcloud.com"
	mixcloudFilesBaseURL = "https://www.mixcloud.com"

	// Mixcloud does not report file sizes, so enclosure lengths are
	// estimated from the duration at the bitrate Mixcloud streams at.
	mixcloudBytesPerSecond = 64 * 1024 / 8

	// Mixcloud serves AAC, but reports are mapped to the type podcast
	// clients expect for audio enclosures.
	mixcloudFileType = "audio/mpeg"

	mixcloudFileExtension = ".m4a"

	// mixcloudPageSize caps the per-request limit of the cloudcasts
	// listing; Mixcloud ignores larger values.
	mixcloudPageSize = 50
)

// Mixcloud is the Mixcloud adapter. A channel ID is a Mixcloud username,
// its items are the user's cloudcasts.
//
// See https://www.mixcloud.com/developers/
type Mixcloud struct {
	apiURL   string
	filesURL string
	client   *http.Client
	resolver Resolver

	users     *cache.Cache[*mixcloudUser]
	pages     *cache.Cache[*cloudcastsResponse]
	redirects *cache.Cache[string]
}

// NewMixcloud creates a Mixcloud backend using the given resolver for
// redirect resolution.
func NewMixcloud(resolver Resolver, ttl time.Duration) *Mixcloud {
	return &Mixcloud{
		apiURL:    mixcloudAPIBaseURL,
		filesURL:  mixcloudFilesBaseURL,
		client:    &http.Client{},
		resolver:  resolver,
		users:     cache.New[*mixcloudUser](ttl),
		pages:     cache.New[*cloudcastsResponse](ttl),
		redirects: cache.New[string](ttl),
	}
}

func (m *Mixcloud) Name() string {
	return "Mixcloud"
}

func (m *Mixcloud) Channel(ctx context.Context, channelID string, itemLimit int) (*model.Channel, error) {
	userURL := fmt.Sprintf("%s/%s/", m.apiURL, url.PathEscape(channelID))

	log.Debugf("retrieving mixcloud user %q from %s", channelID, userURL)

	user, err := m.users.GetOrCompute(userURL, func() (*mixcloudUser, error) {
		var u mixcloudUser
		if err := m.getJSON(ctx, userURL, &u); err != nil {
			return nil, err
		}
		return &u, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch mixcloud user %q", channelID)
	}

	casts, err := m.fetchCloudcasts(ctx, channelID, itemLimit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch cloudcasts of %q", channelID)
	}

	return mapMixcloudChannel(user, casts), nil
}

// fetchCloudcasts pages through the cloudcasts listing. Each page carries
// limit (capped at the page size) and offset; the loop stops as soon as
// either the requested total is reached or the provider reports no next
// page. Both conditions are checked every iteration so a short page
// without a next cursor cannot loop forever.
func (m *Mixcloud) fetchCloudcasts(ctx context.Context, channelID string, itemLimit int) ([]cloudcast, error) {
	remaining := itemLimit
	if remaining <= 0 {
		remaining = mixcloudPageSize
	}
	want := remaining

	pageURL, err := pagedURL(fmt.Sprintf("%s/%s/cloudcasts/", m.apiURL, url.PathEscape(channelID)), remaining, 0)
	if err != nil {
		return nil, err
	}

	var (
		casts  []cloudcast
		offset int
	)
	for {
		log.Debugf("retrieving cloudcasts page %s", pageURL)

		resp, err := m.pages.GetOrCompute(pageURL, func() (*cloudcastsResponse, error) {
			var r cloudcastsResponse
			if err := m.getJSON(ctx, pageURL, &r); err != nil {
				return nil, err
			}
			return &r, nil
		})
		if err != nil {
			return nil, err
		}

		count := len(resp.Data)
		if count == 0 {
			break
		}

		casts = append(casts, resp.Data...)
		remaining -= min(remaining, count)
		offset += count

		if remaining == 0 || resp.Paging.Next == "" {
			break
		}

		pageURL, err = pagedURL(resp.Paging.Next, remaining, offset)
		if err != nil {
			return nil, err
		}
	}

	// A provider page may carry more items than asked for; never hand
	// back more than the requested total.
	if len(casts) > want {
		casts = casts[:want]
	}

	return casts, nil
}

func (m *Mixcloud) RedirectURL(ctx context.Context, file string) (string, error) {
	key := "/" + strings.TrimSuffix(file, path.Ext(file)) + "/"

	return m.redirects.GetOrCompute(key, func() (string, error) {
		pageURL := m.filesURL + key

		log.Debugf("determining direct URL for %s", key)

		return m.resolver.Resolve(ctx, pageURL)
	})
}

// Evict drops expired cache entries.
func (m *Mixcloud) Evict() int {
	return m.users.Evict() + m.pages.Evict() + m.redirects.Evict()
}

func (m *Mixcloud) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "mixcloud request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("mixcloud responded with %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(model.ErrBadResponse, err.Error())
	}

	return nil
}

// pagedURL replaces the query of rawURL with limit and offset pairs,
// capping limit at the page size. Mixcloud hands back a prebuilt next
// URL, but its pairs are rewritten so the remaining total is respected.
func pagedURL(rawURL string, remaining, offset int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrapf(err, "bad paging URL %q", rawURL)
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(min(remaining, mixcloudPageSize)))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// mixcloudUser is the Mixcloud user lookup response.
type mixcloudUser struct {
	Name     string           `json:"name"`
	Biog     string           `json:"biog"`
	Pictures mixcloudPictures `json:"pictures"`
	URL      string           `json:"url"`
}

type mixcloudPictures struct {
	Large string `json:"large"`
}

// cloudcastsResponse is one page of the cloudcasts listing.
type cloudcastsResponse struct {
	Data   []cloudcast    `json:"data"`
	Paging cloudcastsPage `json:"paging"`
}

type cloudcastsPage struct {
	Next string `json:"next"`
}

type cloudcast struct {
	Key         string           `json:"key"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	Pictures    mixcloudPictures `json:"pictures"`
	Tags        []cloudcastTag   `json:"tags"`
	UpdatedTime time.Time        `json:"updated_time"`
	URL         string           `json:"url"`
	AudioLength int64            `json:"audio_length"`
}

type cloudcastTag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func mapMixcloudChannel(user *mixcloudUser, casts []cloudcast) *model.Channel {
	items := make([]model.Item, 0, len(casts))
	for _, cc := range casts {
		items = append(items, mapCloudcast(cc))
	}

	return &model.Channel{
		Title:       fmt.Sprintf("%s (via Mixcloud)", user.Name),
		Link:        user.URL,
		Description: user.Biog,
		Author:      user.Name,
		// The Mixcloud API exposes no channel-level category; "Music"
		// is a documented placeholder.
		Categories: []string{"Music"},
		Image:      user.Pictures.Large,
		Items:      items,
	}
}

func mapCloudcast(cc cloudcast) model.Item {
	categories := make(map[string]string, len(cc.Tags))
	keywords := make([]string, 0, len(cc.Tags))
	for _, tag := range cc.Tags {
		categories[tag.Name] = tag.URL
		keywords = append(keywords, tag.Name)
	}

	return model.Item{
		Title:       cc.Name,
		Link:        cc.URL,
		Description: fmt.Sprintf("Taken from Mixcloud: %s", cc.URL),
		Categories:  categories,
		Enclosure: model.Enclosure{
			File:     strings.Trim(cc.Key, "/") + mixcloudFileExtension,
			MIMEType: mixcloudFileType,
			Length:   mixcloudBytesPerSecond * cc.AudioLength,
		},
		Duration:    cc.AudioLength,
		GUID:        cc.Slug,
		Keywords:    keywords,
		Image:       cc.Pictures.Large,
		PublishedAt: cc.UpdatedTime,
		UpdatedAt:   cc.UpdatedTime,
	}
}
