package main

import (
	"github.com/urfave/cli"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/log"
)

var logger = log.New("oxyd")

// setup applies the verbosity flags and loads the configuration. The flags override the
// configured log level.
func setup(ctx *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := ctx.GlobalString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	switch {
	case ctx.GlobalBool("vv"):
		cfg.Log.Level = "debug"
	case ctx.GlobalBool("v"):
		cfg.Log.Level = "info"
	}
	level, ok := log.ParseLevel(cfg.Log.Level)
	if !ok {
		logger.Warningf("unknown log level %q", cfg.Log.Level)
	}
	log.SetLevel(level)
	return cfg, nil
}
