package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/podgate/podgate/pkg/backend"
	"github.com/podgate/podgate/pkg/config"
	"github.com/podgate/podgate/pkg/feed"
	"github.com/podgate/podgate/pkg/server"
	"github.com/podgate/podgate/pkg/ytdl"
)

type Opts struct {
	ConfigPath string `long:"config" short:"c" default:"config.toml" env:"PODGATE_CONFIG_PATH"`
	Debug      bool   `long:"debug"`
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)

	opts := Opts{}
	if _, err := flags.Parse(&opts); err != nil {
		log.WithError(err).Fatal("failed to parse command line arguments")
	}

	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}

	log.WithFields(log.Fields{
		"version": version,
		"commit":  commit,
		"date":    date,
	}).Info("running podgate")

	log.Debugf("loading configuration %q", opts.ConfigPath)
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration file")
	}

	resolver, err := ytdl.New(ctx)
	if err != nil {
		log.WithError(err).Fatal("youtube-dl error")
	}

	registry, err := backend.NewRegistry(ctx, backend.Opts{
		YouTubeKey: cfg.Tokens.YouTube,
		Resolver:   resolver,
		TTL:        cfg.Cache.TTL.Duration,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to create backends")
	}

	// Expired cache entries are dropped lazily on read; the sweep only
	// keeps memory bounded between requests.
	c := cron.New()
	if _, err := c.AddFunc("@hourly", func() {
		if evicted := registry.Evict(); evicted > 0 {
			log.Debugf("evicted %d expired cache entries", evicted)
		}
	}); err != nil {
		log.WithError(err).Fatal("failed to schedule cache sweep")
	}
	c.Start()
	defer c.Stop()

	srv := server.New(server.Opts{
		Backends:  registry,
		Feeds:     feed.NewSynthesizer(cfg.Server.PublicURL, version),
		PublicURL: cfg.Server.PublicURL,
		Version:   version,
		Addr:      server.Addr(cfg.Server.BindAddress, cfg.Server.Port),
	})

	group.Go(func() error {
		return srv.Run(ctx)
	})

	group.Go(func() error {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		log.WithError(err).Error("shutting down")
		os.Exit(1)
	}

	log.Info("gracefully stopped")
}
