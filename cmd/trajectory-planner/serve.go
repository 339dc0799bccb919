package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"trajectory_planner/internal/api"
	"trajectory_planner/internal/events"
	"trajectory_planner/internal/log"
	"trajectory_planner/internal/planner"
	"trajectory_planner/internal/storage"
	"trajectory_planner/internal/trajectory"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", envOrDefaultInt("PORT", 8080), "HTTP port for API server")
	authEnabled := fs.Bool("auth", envOrDefaultBool("API_AUTH", false), "Enable API key authentication")
	apiKeys := fs.String("api-keys", os.Getenv("API_KEYS"), "Comma-separated list of valid API keys (when auth enabled)")
	accessLog := fs.Bool("access-log", false, "Log every HTTP request")
	noStore := fs.Bool("no-store", false, "Disable mission storage")
	natsURL := fs.String("nats", os.Getenv("NATS_URL"), "NATS server URL for change events (empty disables)")
	natsPrefix := fs.String("nats-prefix", envOrDefault("NATS_PREFIX", events.DefaultPrefix), "Subject prefix for change events")
	autosave := fs.String("autosave", "", "Snapshot file restored at start and rewritten after changes")
	logDir := fs.String("log-dir", os.Getenv("LOG_DIR"), "Directory for the rotated log file")
	logLevel := fs.String("log-level", envOrDefault("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	storeCfg := storeFlags(fs)
	_ = fs.Parse(args)

	lg := log.New(log.Config{Dir: *logDir, Level: *logLevel, Stderr: true})
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := planner.New(lg)

	if *autosave != "" {
		snap, err := trajectory.ReadFile(*autosave)
		switch {
		case errors.Is(err, os.ErrNotExist):
			lg.Info("no autosave yet", "path", *autosave)
		case err != nil:
			fatalf("Error reading autosave: %v", err)
		default:
			if err := p.Import(snap, planner.ImportOptions{}); err != nil {
				fatalf("Error restoring autosave: %v", err)
			}
			lg.Info("autosave restored", "path", *autosave, "waypoints", len(snap.Waypoints))
		}
	}

	var missions storage.MissionStore
	if !*noStore {
		var err error
		missions, err = storage.OpenMissions(ctx, *storeCfg)
		if err != nil {
			fatalf("Error opening mission store: %v", err)
		}
		defer missions.Close()
	}

	pub, err := events.Connect(events.NATSConfig{URL: *natsURL, Prefix: *natsPrefix})
	if err != nil {
		fatalf("Error connecting to NATS: %v", err)
	}
	defer pub.Close()
	forwardChanges(p, pub, lg)

	var keys []string
	if *apiKeys != "" {
		keys = strings.Split(*apiKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	server, err := api.NewServer(p, missions, api.Config{
		Port:        *port,
		AuthEnabled: *authEnabled,
		APIKeys:     keys,
		AccessLog:   *accessLog,
	}, lg)
	if err != nil {
		fatalf("Error creating server: %v", err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return server.Run(ctx)
	})
	if *autosave != "" {
		dirty := make(chan struct{}, 1)
		p.OnChange(func(planner.Change) {
			select {
			case dirty <- struct{}{}:
			default:
			}
		})
		eg.Go(func() error {
			return autosaveLoop(ctx, p, *autosave, dirty, lg)
		})
	}

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fatalf("Server error: %v", err)
	}
}

// forwardChanges publishes every planner change as an event.
func forwardChanges(p *planner.Planner, pub events.Publisher, lg *log.Logger) {
	p.OnChange(func(ch planner.Change) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := pub.Publish(ctx, events.Event{
			Kind:       string(ch.Kind),
			DroneID:    ch.DroneID,
			WaypointID: ch.WaypointID,
			Revision:   ch.Revision,
			At:         ch.At,
		})
		if err != nil {
			lg.Warn("publish change failed", "kind", ch.Kind, "error", err)
		}
	})
}

// autosaveLoop rewrites path at most once a second while changes arrive,
// and once more on shutdown.
func autosaveLoop(ctx context.Context, p *planner.Planner, path string, dirty <-chan struct{}, lg *log.Logger) error {
	save := func() {
		if err := trajectory.WriteFile(path, p.Snapshot("")); err != nil {
			lg.Error("autosave failed", "path", path, "error", err)
			return
		}
		lg.Debug("autosaved", "path", path, "revision", p.Revision())
	}

	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			if pending {
				save()
			}
			return nil
		case <-dirty:
			pending = true
		case <-tick.C:
			if pending {
				save()
				pending = false
			}
		}
	}
}
