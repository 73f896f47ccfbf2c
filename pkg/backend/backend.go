// Package backend implements the per-provider source adapters and the
// registry that dispatches backend IDs to them.
package backend

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/podgate/podgate/pkg/model"
)

// Known backend IDs. The set is closed: there is no dynamic registration.
const (
	IDMixcloud = "mixcloud"
	IDYouTube  = "youtube"
)

// Backend is the capability set every provider adapter implements.
type Backend interface {
	// Name returns the static identity of the backend, used in logs.
	Name() string

	// Channel fetches the channel metadata and up to itemLimit items,
	// mapped into the canonical model. itemLimit <= 0 selects the
	// provider default. The fetch is all or nothing: any metadata or
	// pagination failure aborts the whole request.
	Channel(ctx context.Context, channelID string, itemLimit int) (*model.Channel, error)

	// RedirectURL resolves the enclosure file of a previously returned
	// item into the currently valid direct media URL.
	RedirectURL(ctx context.Context, file string) (string, error)
}

// Resolver turns a public media page URL into a direct stream URL.
// Implemented by pkg/ytdl.
type Resolver interface {
	Resolve(ctx context.Context, pageURL string) (string, error)
}

// Opts carries the collaborators and settings shared by all backends.
type Opts struct {
	// YouTubeKey is the YouTube Data API key.
	YouTubeKey string

	// Resolver resolves Mixcloud page URLs to stream URLs.
	Resolver Resolver

	// TTL is the lifetime of cached provider responses.
	TTL time.Duration
}

// Registry holds one instance of every known backend.
type Registry struct {
	mixcloud *Mixcloud
	youtube  *YouTube
}

// NewRegistry constructs all backends up front.
func NewRegistry(ctx context.Context, opts Opts) (*Registry, error) {
	yt, err := NewYouTube(ctx, opts.YouTubeKey, opts.TTL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create youtube backend")
	}

	return &Registry{
		mixcloud: NewMixcloud(opts.Resolver, opts.TTL),
		youtube:  yt,
	}, nil
}

// Get returns the backend for the given ID, or ErrUnsupportedBackend for
// anything outside the known set.
func (r *Registry) Get(backendID string) (Backend, error) {
	switch backendID {
	case IDMixcloud:
		return r.mixcloud, nil
	case IDYouTube:
		return r.youtube, nil
	default:
		return nil, errors.Wrap(model.ErrUnsupportedBackend, backendID)
	}
}

type evictor interface {
	Evict() int
}

// Evict drops expired cache entries of every backend and reports the
// total removed.
func (r *Registry) Evict() int {
	total := 0
	for _, b := range []Backend{r.mixcloud, r.youtube} {
		if e, ok := b.(evictor); ok {
			total += e.Evict()
		}
	}

	return total
}
