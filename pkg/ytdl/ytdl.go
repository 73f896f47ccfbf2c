// Package ytdl wraps the youtube-dl binary, used to resolve a public
// media page URL into a direct stream URL.
package ytdl

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/podgate/podgate/pkg/model"
)

// ResolveTimeout bounds a single youtube-dl invocation.
const ResolveTimeout = 2 * time.Minute

// ErrNoStreamURL is returned when youtube-dl produced no usable URL for
// the requested page.
var ErrNoStreamURL = errors.Wrap(model.ErrNoRedirectFound, "youtube-dl returned no stream URL")

// YoutubeDl resolves page URLs to direct media URLs by shelling out to
// the youtube-dl binary.
type YoutubeDl struct {
	path string
}

// New locates the youtube-dl binary and verifies it runs.
func New(ctx context.Context) (*YoutubeDl, error) {
	path, err := exec.LookPath("youtube-dl")
	if err != nil {
		return nil, errors.Wrap(err, "youtube-dl binary not found")
	}

	log.Debugf("found youtube-dl binary at %q", path)

	ytdl := &YoutubeDl{path: path}

	version, err := ytdl.exec(ctx, "--version")
	if err != nil {
		return nil, errors.Wrap(err, "could not run youtube-dl")
	}

	log.Infof("using youtube-dl %s", strings.TrimSpace(version))

	return ytdl, nil
}

// Resolve returns the direct URL of the best audio stream behind the
// given media page URL.
func (dl *YoutubeDl) Resolve(ctx context.Context, pageURL string) (string, error) {
	output, err := dl.exec(ctx, "--get-url", "--format", "bestaudio/best", pageURL)
	if err != nil {
		log.WithError(err).Errorf("youtube-dl failed for %q", pageURL)
		return "", errors.Wrap(err, "failed to resolve stream URL")
	}

	// youtube-dl prints one URL per requested format; the first line is
	// the selected one.
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}

	return "", ErrNoStreamURL
}

// exec runs youtube-dl and returns its stdout. Stderr is kept separate:
// youtube-dl prints warnings there even on successful runs, and those
// must never be mistaken for output.
func (dl *YoutubeDl) exec(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ResolveTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, dl.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), errors.Wrapf(err, "failed to execute youtube-dl: %s", strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
