package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"InboxGate/bot"
	"InboxGate/impl/core"
	"InboxGate/internal/config"
	"InboxGate/internal/credential"
	"InboxGate/internal/database"
	"InboxGate/internal/http-server/api"
	"InboxGate/internal/lib/logger"
	"InboxGate/internal/lib/signature"
	"InboxGate/internal/lib/sl"
	"InboxGate/internal/lib/vault"
	"InboxGate/internal/service/graph"
	"InboxGate/internal/service/refresh"
	"InboxGate/internal/service/responder"
	"InboxGate/internal/ws"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	logDir := *logPath
	if conf.LogDir != "" {
		logDir = conf.LogDir
	}
	lg := logger.SetupLogger(conf.Env, logDir)

	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", sl.Err(err))
		} else {
			lg = logger.SetupTelegramHandler(lg, tgBot, slog.LevelWarn)
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
			).Info("telegram bot initialized")

			go func() {
				if err := tgBot.Start(); err != nil {
					lg.Error("telegram bot error", sl.Err(err))
				}
			}()
		}
	}

	lg.Info("starting inboxgate", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	handler := core.New(lg)
	handler.SetAuthKey(conf.Listen.ApiKey)
	handler.SetVerifyToken(conf.Meta.VerifyToken)

	verifier := signature.NewVerifier(conf.Meta.AppSecret)
	if !verifier.Enabled() {
		lg.Warn("meta app secret not set, webhook signatures are not verified")
	}
	handler.SetSignatureVerifier(verifier)

	tokenVault, err := vault.FromConfig(conf.Vault.EncryptionKey, conf.Vault.FallbackSecret)
	if err != nil {
		lg.Error("token vault", sl.Err(err))
		os.Exit(1)
	}
	if tokenVault.Degraded() {
		lg.Warn("token encryption key not set, using key derived from fallback secret")
	}
	handler.SetCipher(tokenVault)

	hub := ws.NewHub(lg)
	hub.SetHandler(handler)
	go hub.Run()
	handler.SetBroadcaster(hub)

	graphClient := graph.NewClient(conf, lg)
	handler.SetMessageSender(graphClient)

	db, err := repository.NewMongoClient(conf, lg)
	if err != nil {
		lg.Error("mongo client", sl.Err(err))
	}

	var worker *refresh.Worker
	if db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err = db.EnsureIndexes(ctx); err != nil {
			lg.Error("ensure indexes", sl.Err(err))
		}
		cancel()

		handler.SetRepository(db)
		lg.With(
			slog.String("host", conf.Mongo.Host),
			slog.String("port", conf.Mongo.Port),
			slog.String("user", conf.Mongo.User),
			slog.String("database", conf.Mongo.Database),
		).Info("mongo client initialized")

		legacyWorkspace := conf.Legacy.WorkspaceID
		inbound := credential.NewResolver(lg,
			credential.NewConnectionStrategy(lg, db, tokenVault),
			credential.NewLegacyStrategy(lg, db, legacyWorkspace),
		)
		outboundStrategies := []credential.Strategy{credential.NewConnectionStrategy(lg, db, tokenVault)}
		if conf.Legacy.OutboundFallback {
			outboundStrategies = append(outboundStrategies, credential.NewLegacyStrategy(lg, db, legacyWorkspace))
		}
		handler.SetResolvers(inbound, credential.NewResolver(lg, outboundStrategies...))

		worker = refresh.NewWorker(conf, lg, db, graphClient, tokenVault)
		worker.SetBroadcaster(hub)
		if tgBot != nil {
			worker.SetNotifier(tgBot)
		}
		handler.SetRefreshRunner(worker)
		if conf.Refresh.Enabled {
			if err = worker.Start(); err != nil {
				lg.Error("token refresh worker", sl.Err(err))
			}
		}
	}

	var queue *responder.Queue
	var amqpTrigger *responder.AMQPTrigger
	if conf.Responder.Enabled {
		var trigger responder.Trigger
		switch conf.Responder.Mode {
		case "amqp":
			amqpTrigger, err = responder.NewAMQPTrigger(conf.Responder.AmqpURL, conf.Responder.Queue)
			if err != nil {
				lg.Error("auto-responder amqp", sl.Err(err))
			} else {
				trigger = amqpTrigger
			}
		default:
			trigger = responder.NewHTTPTrigger(conf.Responder.URL, conf.Responder.ApiKey)
		}
		if trigger != nil {
			queue = responder.NewQueue(lg, trigger, conf.Responder.Workers, conf.Responder.QueueSize, conf.Responder.Timeout)
			queue.Start()
			handler.SetResponder(queue)
			lg.With(slog.String("mode", conf.Responder.Mode)).Info("auto-responder enabled")
		}
	}

	server := api.New(conf, lg, handler, ws.ServeWs(hub, lg))
	go func() {
		if err := server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server stopped", sl.Err(err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	lg.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err = server.Shutdown(ctx); err != nil {
		lg.Error("server shutdown", sl.Err(err))
	}
	if worker != nil {
		worker.Stop()
	}
	if queue != nil {
		queue.Stop()
	}
	if amqpTrigger != nil {
		_ = amqpTrigger.Close()
	}
	hub.Stop()
	if tgBot != nil {
		tgBot.Stop()
	}
	if db != nil {
		if err = db.Close(ctx); err != nil {
			lg.Error("mongo disconnect", sl.Err(err))
		}
	}
}
