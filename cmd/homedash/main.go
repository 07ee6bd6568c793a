package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"homedash/internal/config"
	appLog "homedash/internal/log"
)

const version = "0.3.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	renderOnly bool
	dump       bool
	auditICS   string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv(os.LookupEnv)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Setup(appLog.Options{
		Level:   appLog.ParseLevel(conf.Log.Level),
		File:    conf.Log.File,
		Console: conf.Log.Console,
	})
	appLog.Info("homedash starting", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.auditICS != "" {
		if err := runAudit(ctx, conf, flags.auditICS); err != nil {
			appLog.Error("ics audit failed", err, "source", flags.auditICS)
			os.Exit(1)
		}
		return
	}

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"wifi_backend", conf.WiFi.Backend,
		"display", conf.Display.Model,
		"battery", conf.Battery.Enabled,
		"todos", conf.Todo.Enabled(),
		"refresh", conf.Refresh,
		"once", flags.once,
		"render_only", flags.renderOnly,
		"dump", flags.dump,
	)

	a, err := newApp(conf, flags.renderOnly)
	if err != nil {
		appLog.Error("failed to initialise", err)
		os.Exit(1)
	}

	if flags.once {
		err = a.runOnce(ctx, flags.dump)
	} else {
		err = a.run(ctx)
	}
	if err != nil && ctx.Err() == nil {
		appLog.Error("homedash stopped", err)
		os.Exit(1)
	}
	appLog.Info("homedash exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/homedash/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh cycle and exit")
	flag.BoolVar(&cfg.renderOnly, "render-only", false, "Render only; do not touch display hardware")
	flag.BoolVar(&cfg.dump, "dump", false, "With -once: write frame.png and plane.bin to the preview dir")
	flag.StringVar(&cfg.auditICS, "audit-ics", "", "Compare the bounded calendar parser with a full parser on a file or URL and exit")

	flag.Parse()

	return cfg
}
