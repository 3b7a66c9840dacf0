package main

import (
	"fmt"
	"os"

	"github.com/bcdannyboy/cnpricer/config"
	"github.com/bcdannyboy/cnpricer/jobs"
	"github.com/bcdannyboy/cnpricer/logger"
	"github.com/urfave/cli/v2"
)

var configPath string

func main() {
	app := cli.NewApp()
	app.Name = "cnpricer"
	app.Usage = "Crank-Nicolson fair values for European and American options"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to a yaml, toml or json config file",
			EnvVars:     []string{"PRICER_CONFIG"},
			Destination: &configPath,
		},
	}
	app.Commands = []*cli.Command{
		priceCommand,
		serveCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if _, err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func newProcessor(cfg *config.Config, workers int) *jobs.Processor {
	if workers <= 0 {
		workers = cfg.Workers
	}
	return jobs.NewProcessor(
		jobs.WithWorkers(workers),
		jobs.WithLookup(cfg.LookupMode()),
		jobs.WithMaxGridNodes(cfg.MaxGridNodes),
		jobs.WithLogger(logger.Get()),
	)
}
