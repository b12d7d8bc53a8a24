package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gatepass/impl/auth"
	"gatepass/impl/core"
	"gatepass/internal/config"
	"gatepass/internal/database"
	"gatepass/internal/http-server/api"
	"gatepass/internal/notify"
	"gatepass/internal/uploads"
	"gatepass/lib/logger"
	"gatepass/lib/sl"
)

const logFileName = "gatepass.log"

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	log := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	log.Info("starting gatepass", slog.String("config", *configPath), slog.String("env", conf.Env))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.NewMongoClient(ctx, conf)
	if err != nil {
		log.Error("database connect", sl.Err(err))
		os.Exit(1)
	}
	if err = db.EnsureIndexes(ctx); err != nil {
		log.Error("database indexes", sl.Err(err))
		os.Exit(1)
	}

	proofs, err := uploads.New(conf.Uploads.Dir)
	if err != nil {
		log.Error("uploads store", sl.Err(err))
		os.Exit(1)
	}

	handler := core.New(db, proofs, log)
	if conf.Telegram.Enabled {
		tg, err := notify.NewTelegram(conf.Telegram.ApiKey, conf.Telegram.ChatId, log)
		if err != nil {
			log.Error("telegram notifier", sl.Err(err))
			os.Exit(1)
		}
		handler.SetNotifier(tg)
	}

	gate := auth.New(conf.Admin.Secret)

	if err = api.New(conf, log, handler, gate, proofs); err != nil {
		log.Error("api server", sl.Err(err))
		os.Exit(1)
	}
}
