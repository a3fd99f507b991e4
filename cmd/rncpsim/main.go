package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/campusdash/rncpsim/internal/application"
	"github.com/campusdash/rncpsim/internal/catalog"
	httpapi "github.com/campusdash/rncpsim/internal/interfaces/http"
	"github.com/campusdash/rncpsim/internal/intranet"
	"github.com/campusdash/rncpsim/internal/progression"
)

const (
	appName = "rncpsim"
	version = "v1.2.0"
)

var configPath string

// addConfigFlag registers the shared --config flag on a command flag set.
func addConfigFlag(fs *pflag.FlagSet) {
	fs.StringVarP(&configPath, "config", "c", "config/rncpsim.yaml", "path to configuration file")
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "RNCP certification progression simulator",
		Version: version,
		Long: `rncpsim tracks a student's progress toward RNCP certification titles.

It reconciles the intranet profile into a local progression store, lets the
student simulate additional projects, experiences and coalition bonuses, and
serves the derived XP, level and per-title completion over HTTP.`,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulator API server",
		RunE:  runServe,
	}
	addConfigFlag(serveCmd.Flags())

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the derived progression state from the persisted snapshot",
		RunE:  runStatus,
	}
	addConfigFlag(statusCmd.Flags())

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate the catalog files and print a summary",
		RunE:  runCatalog,
	}
	addConfigFlag(catalogCmd.Flags())

	rootCmd.AddCommand(serveCmd, statusCmd, catalogCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := application.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		return err
	}
	snapshots, err := application.OpenSnapshotStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	store := progression.NewStore(cat, snapshots, cfg.Login, log.Logger)
	store.Rehydrate(cmd.Context())

	var fetcher httpapi.ProfileFetcher
	if cfg.Intranet.BaseURL != "" {
		fetcher = intranet.NewClient(cfg.Intranet, log.Logger)
	}

	hub := httpapi.NewHub(log.Logger)
	metrics := httpapi.NewMetricsRegistry()
	handlers := httpapi.NewHandlers(store, cat, fetcher, hub, metrics, cfg.Login, log.Logger)
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout(),
		WriteTimeout: cfg.HTTP.WriteTimeout(),
		IdleTimeout:  cfg.HTTP.IdleTimeout(),
	}, handlers, hub, metrics, log.Logger)

	log.Info().
		Str("login", cfg.Login).
		Str("backend", cfg.Storage.Backend).
		Int("projects", len(cat.Roots())).
		Int("titles", len(cat.Titles)).
		Msg("simulator starting")

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := application.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		return err
	}
	snapshots, err := application.OpenSnapshotStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	store := progression.NewStore(cat, snapshots, cfg.Login, log.Logger)
	store.Rehydrate(cmd.Context())

	xp := store.SelectedXP()
	out := map[string]interface{}{
		"login":       cfg.Login,
		"xp":          xp,
		"level":       store.DisplayLevel(xp),
		"levelFloor":  store.Level(xp),
		"events":      store.Events(),
		"experiences": store.ExperienceCount(),
	}
	titles := make(map[string]bool, len(cat.Titles))
	for i := range cat.Titles {
		t := &cat.Titles[i]
		titles[t.ID] = store.TitleComplete(t)
	}
	out["titles"] = titles

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := application.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		return err
	}

	projects := 0
	for _, root := range cat.Roots() {
		cat.Walk(root, func(*catalog.Project) { projects++ })
	}
	fmt.Printf("catalog ok: %d curve steps, %d projects (%d roots), %d titles, %d experience kinds\n",
		len(cat.Curve), projects, len(cat.Roots()), len(cat.Titles), len(cat.Experiences))
	return nil
}
