// Package cli implements the healthsync CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"healthsync/internal/adapter/healthapi"
	"healthsync/internal/adapter/healthfile"
	"healthsync/internal/adapter/sqlitekv"
	"healthsync/internal/app"
	"healthsync/internal/config"
	"healthsync/internal/domain"
	"healthsync/internal/logging"
)

var configPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "healthsync",
	Short: "Local health tracking with two-way external-store sync",
	Long: "Tracks weight, hydration and sleep entries locally and reconciles\n" +
		"them against an external health-data store with duplicate detection,\n" +
		"deletion propagation and streak statistics.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "healthsync.yaml", "Config file path")
}

// appContext is everything a command needs after assembly.
type appContext struct {
	conf     *config.Config
	kv       *sqlitekv.Store
	trackers map[domain.Kind]*app.Tracker
}

func (a *appContext) close() {
	for _, t := range a.trackers {
		t.Sync.Shutdown()
	}
	_ = a.kv.Close()
}

func buildApp() (*appContext, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logging.New(conf.Logger)

	kv, err := sqlitekv.Open(conf.Storage.Path, conf.Storage.MaxBlobBytes, conf.Storage.Compress)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var remote domain.HealthStore
	switch conf.Remote.Mode {
	case "api":
		remote = healthapi.New(conf.Remote.BaseURL, conf.Remote.TokenURL,
			conf.Remote.ClientID, conf.Remote.ClientSecret, log)
	default:
		remote = healthfile.New(conf.Remote.Dir, log)
	}

	trackers, err := app.BuildTrackers(conf, kv, remote, log)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return &appContext{conf: conf, kv: kv, trackers: trackers}, nil
}

func trackerByName(a *appContext, name string) (*app.Tracker, error) {
	t, ok := a.trackers[domain.Kind(name)]
	if !ok {
		return nil, fmt.Errorf("unknown tracker %q (want weight, hydration or sleep)", name)
	}
	return t, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
