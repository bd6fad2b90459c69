package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"adoptsim/internal/fixtures"
	"adoptsim/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the simulation engine over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	provider, err := buildProvider()
	if err != nil {
		return err
	}

	s, err := buildStore()
	if err != nil {
		return err
	}
	defer s.Close()

	set := loadFixtures()

	if cfg.Fixtures.Watch {
		watcher, err := fixtures.Watch(cfg.Fixtures.Dir, func(collection string) {
			logger.Info("fixture collection dirty, reindex recommended", zap.String("collection", collection))
		})
		if err != nil {
			logger.Warn("fixture watcher unavailable", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := server.New(server.Options{
		Provider:     provider,
		Store:        s,
		Fixtures:     set,
		DefaultTurns: cfg.Simulation.Turns,
		Temperature:  cfg.Simulation.Temperature,
		Seed:         cfg.Simulation.Seed,
		Logger:       logger,
	})
	return srv.Run(addr)
}
