package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/satindergrewal/needledrop/internal/capture"
	"github.com/satindergrewal/needledrop/internal/catalog"
	"github.com/satindergrewal/needledrop/internal/config"
	"github.com/satindergrewal/needledrop/internal/detector"
	"github.com/satindergrewal/needledrop/internal/history"
	"github.com/satindergrewal/needledrop/internal/input"
	"github.com/satindergrewal/needledrop/internal/log"
	"github.com/satindergrewal/needledrop/internal/metrics"
	"github.com/satindergrewal/needledrop/internal/monitor"
	"github.com/satindergrewal/needledrop/internal/session"
	"github.com/satindergrewal/needledrop/internal/stream"
)

func main() {
	fs := pflag.NewFlagSet("needledrop", pflag.ExitOnError)
	config.Flags(fs)
	fs.Parse(os.Args[1:])

	configPath, _ := fs.GetString("config")
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "needledrop: %v\n", err)
		os.Exit(2)
	}
	log.Init(cfg.Log.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, fs); err != nil {
		log.Error().Err(err).Msg("needledrop stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, fs *pflag.FlagSet) error {
	metrics.Register(prometheus.DefaultRegisterer)

	var store *history.Store
	if cfg.History.Path != "" {
		s, err := history.Open(cfg.History.Path)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.History.Path).Msg("listening history disabled")
		} else {
			store = s
			defer store.Close()
		}
	}

	src, err := capture.NewSource(capture.Config{
		Backend:    capture.Backend(cfg.Audio.Backend),
		Device:     cfg.Audio.Device,
		File:       cfg.Audio.File,
		SampleRate: cfg.Audio.SampleRate,
		FrameSize:  cfg.Audio.FrameSize,
		Realtime:   cfg.Audio.Realtime,
	}, log.With("capture"))
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("start %s capture: %w", src.Name(), err)
	}
	defer src.Close()

	albums := catalog.NewLoader(cfg.Catalog.Dir)
	broadcaster := stream.NewBroadcaster()
	feed := stream.NewFeed(broadcaster, src.Config().SampleRate)

	opts := []monitor.Option{monitor.WithTap(feed.Push)}
	if store != nil {
		opts = append(opts, monitor.WithRecorder(store))
	}
	mon := monitor.New(monitor.Config{
		Detector: detector.Config{
			StartAmplitude: cfg.Detector.StartAmplitude,
			StopAmplitude:  cfg.Detector.StopAmplitude,
			StartWidth:     cfg.Detector.StartWidth,
			ConfirmStart:   cfg.Detector.ConfirmStart,
			ConfirmStop:    cfg.Detector.ConfirmStop,
		},
		DetectionDelay: cfg.Session.DetectionDelay,
		SampleRate:     src.Config().SampleRate,
		StatusInterval: cfg.Status.Interval,
		FlushOnExit:    cfg.Session.FlushOnExit,
	}, albums, session.NewFileOffset(cfg.Session.DebugFile), log.With("monitor"), opts...)

	if id, _ := fs.GetInt("album"); id > 0 {
		if err := mon.LoadAlbum(strconv.Itoa(id)); err != nil {
			log.Warn().Err(err).Int("album", id).Msg("preload failed")
		}
	}

	keys := input.NewReader(os.Stdin, 16)
	go func() {
		if err := keys.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("keyboard input stopped")
		}
	}()

	hub := stream.NewHub(log.With("status"))
	if cfg.Server.Port > 0 {
		var serverOpts []stream.ServerOption
		if store != nil {
			serverOpts = append(serverOpts, stream.WithHistory(store))
		}
		srv := stream.NewServer(hub, broadcaster, keys.Events(), log.With("http"), serverOpts...)
		server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: srv.Handler()}
		go func() {
			<-ctx.Done()
			srv.Close()
			server.Close()
		}()
		go func() {
			log.Info().Str("addr", server.Addr).Msg("http server listening")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server")
			}
		}()
	}

	printBanner(cfg, src, albums)
	printer := &statusPrinter{w: os.Stdout}
	publish := func(s monitor.Snapshot) {
		hub.Publish(s)
		printer.print(s)
	}

	runErr := mon.Run(ctx, src, keys.Events(), publish)

	sum := mon.Shutdown(mon.Now())
	printSummary(sum, store, mon.Album())
	return runErr
}

func printBanner(cfg config.Config, src capture.Source, albums *catalog.Loader) {
	c := src.Config()
	fmt.Println("Vinyl Playback Monitor")
	fmt.Println(rule)
	fmt.Printf("Source: %s\n", src.Name())
	fmt.Printf("Sample Rate: %d Hz\n", c.SampleRate)
	fmt.Printf("Frame Size: %d\n", c.FrameSize)
	fmt.Printf("RMS Start Threshold: %g\n", cfg.Detector.StartAmplitude)
	fmt.Printf("RMS Stop Threshold: %g\n", cfg.Detector.StopAmplitude)
	fmt.Printf("Width Threshold: %g Hz\n", cfg.Detector.StartWidth)
	fmt.Printf("Start Confirm: %s\n", cfg.Detector.ConfirmStart)
	fmt.Printf("Stop Confirm: %s\n", cfg.Detector.ConfirmStop)
	fmt.Printf("Albums: %s\n", albums.Dir())
	if cfg.Server.Port > 0 {
		fmt.Printf("Status API: http://localhost:%d/api/status\n", cfg.Server.Port)
	}
	fmt.Println(rule)
	fmt.Println("Controls: [a] prev side  [d] next side  [0-9+Enter] load album")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println(rule)
	fmt.Println()
}

const rule = "=================================================="

func printSummary(sum monitor.Summary, store *history.Store, album *catalog.Album) {
	fmt.Println()
	fmt.Println(rule)
	fmt.Println("Session Summary")
	fmt.Println(rule)
	fmt.Printf("Total playback time: %s\n", session.FormatClock(sum.Total))
	fmt.Printf("Total hours: %.2fh\n", sum.Hours())
	fmt.Printf("Sessions: %d\n", sum.Sessions)
	if sum.Discarded > 0 {
		fmt.Printf("Unfinished session not counted: %s\n", session.FormatClock(sum.Discarded))
	}
	if store != nil {
		if life, err := store.Lifetime(); err != nil {
			log.Warn().Err(err).Msg("read listening history")
		} else {
			fmt.Printf("Lifetime: %s over %d sessions (%.2fh)\n",
				session.FormatClock(life.Duration()), life.Sessions, life.Duration().Hours())
		}
		if album != nil {
			if t, err := store.Album(album.ID); err != nil {
				log.Warn().Err(err).Int("album", album.ID).Msg("read album history")
			} else {
				fmt.Printf("Album %d: %s over %d sessions\n",
					album.ID, session.FormatClock(t.Duration()), t.Sessions)
			}
		}
	}
	fmt.Println(rule)
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
