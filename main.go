package main

import (
	"Solvextra/ai/responder"
	"Solvextra/bot"
	"Solvextra/impl/core"
	"Solvextra/internal/config"
	"Solvextra/internal/database"
	"Solvextra/internal/http-server/api"
	"Solvextra/internal/lib/logger"
	"Solvextra/internal/lib/sl"
	"Solvextra/internal/service/auth"
	"Solvextra/internal/service/relay"
	"Solvextra/internal/service/routing"
	"Solvextra/internal/service/watchdog"
	"Solvextra/internal/ws"
	"context"
	"flag"
	"log/slog"
	"time"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	// Initialize Telegram bot if enabled
	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, conf.Telegram.AdminId, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", slog.String("error", err.Error()))
			tgBot = nil
		} else {
			// Set up Telegram handler for the logger
			lg = logger.SetupTelegramHandler(lg, tgBot, slog.LevelWarn)
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
			).Info("telegram bot initialized")
		}
	}

	lg.Info("starting solvextra", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	handler := core.New(lg)

	authService := auth.NewAuthService(conf.Listen.ApiKey, lg)

	db, err := repository.NewMongoClient(conf, lg)
	if err != nil {
		lg.With(
			sl.Err(err),
		).Error("mongo client")
		return
	}
	if db == nil {
		lg.Error("mongo is required, enable it in the config")
		return
	}
	authService.SetRepository(db)
	handler.SetRepository(db)
	handler.SetAuthService(authService)
	lg.With(
		slog.String("host", conf.Mongo.Host),
		slog.String("port", conf.Mongo.Port),
		slog.String("user", conf.Mongo.User),
		slog.String("database", conf.Mongo.Database),
	).Info("mongo client initialized")

	hub := ws.NewHub(lg)
	go hub.Run()

	if conf.Relay.Enabled {
		eventRelay, err := relay.New(conf.Relay.URL, conf.Relay.Exchange, lg)
		if err != nil {
			lg.With(
				sl.Err(err),
			).Error("event relay")
		} else {
			hub.SetRelay(eventRelay)
			defer eventRelay.Close()
			lg.With(
				slog.String("exchange", conf.Relay.Exchange),
			).Info("event relay initialized")
		}
	}

	engine := routing.New(db, hub, lg, routing.Options{
		AcceptWindow:   time.Duration(conf.Routing.AcceptWindowSec) * time.Second,
		TicketTATHours: conf.Routing.TicketTATHours,
		HistoryLimit:   conf.OpenAI.HistoryLimit,
	})

	rsp := responder.New(conf, lg)
	if rsp != nil {
		engine.SetResponder(rsp)
		lg.With(
			sl.Secret("openai_key", conf.OpenAI.ApiKey),
			slog.String("model", conf.OpenAI.Model),
		).Info("responder initialized")
	}

	if tgBot != nil {
		tgBot.SetEngine(engine)
		engine.RegisterChannel(bot.ChannelName, tgBot)

		// Start the bot in a goroutine
		go func() {
			if err := tgBot.Start(); err != nil {
				lg.Error("telegram bot error", slog.String("error", err.Error()))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.RestoreWindows(ctx); err != nil {
		lg.With(
			sl.Err(err),
		).Error("restoring acceptance windows")
	}

	wd := watchdog.New(db, engine, hub, lg, watchdog.Options{
		Period:    time.Duration(conf.Watchdog.PeriodSec) * time.Second,
		Silence:   time.Duration(conf.Watchdog.SilenceMinutes) * time.Minute,
		FollowUp:  time.Duration(conf.Watchdog.FollowUpSec) * time.Second,
		MaxChecks: conf.Watchdog.MaxChecks,
	})
	go wd.Run(ctx)

	handler.SetEngine(engine)

	// *** blocking start with http server ***
	err = api.New(conf, lg, handler, hub)
	if err != nil {
		lg.Error("server start", sl.Err(err))
		return
	}
	lg.Error("service stopped")
}
