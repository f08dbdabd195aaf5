package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"remindbot/internal/clock"
	"remindbot/internal/config"
	"remindbot/internal/contest"
	"remindbot/internal/discord"
	appLog "remindbot/internal/log"
	"remindbot/internal/message"
	"remindbot/internal/scheduler"
	"remindbot/internal/store"
	"remindbot/internal/web"
)

// jobTimeout bounds a single scheduler tick or ingestion run.
const jobTimeout = 50 * time.Second

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
	tickOnce   bool
}

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	flags := parseFlags()
	appLog.SetDebug(flags.debug)
	appLog.Info("remindbot starting", "version", "0.2.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"guild_id", conf.GuildID,
		"channel_id", conf.ChannelID,
		"notify_cron", conf.NotifyCron,
		"lead_times", conf.LeadTimes,
		"contest_enabled", conf.Contest.Enabled,
	)

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	token := os.Getenv("DISCORD_BOT_TOKEN")
	if token == "" {
		appLog.Error("DISCORD_BOT_TOKEN is not set", nil)
		os.Exit(1)
	}

	db, err := conf.MySQL.Connect()
	if err != nil {
		appLog.Error("failed to connect to database", err)
		os.Exit(1)
	}
	defer db.Close()

	codec := clock.NewCodec(loc)
	composer := message.NewComposer(codec)
	st := store.New(db, codec)

	bot, err := discord.New(token, st, codec, composer, conf.GuildID, conf.ChannelID)
	if err != nil {
		appLog.Error("failed to build discord bot", err)
		os.Exit(1)
	}
	if err := bot.Open(); err != nil {
		appLog.Error("failed to open discord session", err)
		os.Exit(1)
	}
	defer bot.Close()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// Refresh the guild snapshot before anything resolves mentions.
	if err := bot.SyncGuild(ctx); err != nil {
		appLog.Error("guild snapshot sync failed", err)
	} else if err := bot.ValidateChannel(ctx); err != nil {
		appLog.Error("notify channel validation failed", err)
	}

	sched := scheduler.New(st, bot, composer, codec, conf.LeadTimes, conf.OnceWindowMinutes)
	ingester := contest.New(nil, st, conf.Contest.URL, conf.ChannelID, conf.Contest.MentionRoleID)

	if flags.tickOnce {
		runCtx, done := context.WithTimeout(ctx, jobTimeout)
		sched.Tick(runCtx, time.Now())
		done()
		appLog.Info("single tick completed, exiting")
		return
	}

	// Two independent triggers: the per-minute reminder scan and the
	// hourly contest ingestion. SkipIfStillRunning keeps at most one
	// run of each in flight.
	runner := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err = runner.AddFunc(conf.NotifyCron, func() {
		runCtx, done := context.WithTimeout(ctx, jobTimeout)
		defer done()
		sched.Tick(runCtx, time.Now())
	})
	if err != nil {
		appLog.Error("invalid notify cron expression", err, "cron", conf.NotifyCron)
		os.Exit(1)
	}

	if conf.Contest.Enabled {
		_, err = runner.AddFunc(conf.Contest.Cron, func() {
			runCtx, done := context.WithTimeout(ctx, jobTimeout)
			defer done()
			if runErr := ingester.Run(runCtx, time.Now()); runErr != nil {
				appLog.Error("contest ingestion run failed", runErr)
			}
		})
		if err != nil {
			appLog.Error("invalid contest cron expression", err, "cron", conf.Contest.Cron)
			os.Exit(1)
		}
	}

	runner.Start()
	defer runner.Stop()

	go func() {
		if serveErr := web.StartServer(ctx, conf, st, codec); serveErr != nil {
			appLog.Error("HTTP server stopped", serveErr)
			cancel()
		}
	}()

	<-ctx.Done()

	// Let in-flight cron jobs and the session close settle.
	time.Sleep(100 * time.Millisecond)
	appLog.Info("remindbot exiting")
	appLog.Sync()
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/remindbot/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&cfg.tickOnce, "tick-once", false, "Run one reminder scan and exit")

	flag.Parse()

	return cfg
}
