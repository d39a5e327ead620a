package main

import (
	"context"
	"healthmate/app/client/llm"
	"healthmate/app/client/sqlite"
	"healthmate/app/config"
	"healthmate/app/service/api"
	"healthmate/app/service/conversation"
	"healthmate/app/service/history"
	"healthmate/app/service/knowledge"
	"healthmate/app/service/patient"
	"healthmate/app/service/reference"
	"healthmate/app/service/session"
	"healthmate/app/util/mylog"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, sqlite.New)
	do.Provide(di, llm.New)
	do.Provide(di, knowledge.New)
	do.Provide(di, reference.New)
	do.Provide(di, patient.New)
	do.Provide(di, session.New)
	do.Provide(di, history.New)
	do.Provide(di, conversation.New)
	do.Provide(di, api.New)

	apiSvc, err := do.Invoke[*api.Service](di)
	if err != nil {
		log.Fatalf("service init failed: %v", err)
	}

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go func() {
		if err := apiSvc.Run(appCtx); err != nil {
			slog.Error("HTTP server failed", "error", err)
		}
		cancel()
	}()

	<-appCtx.Done()
}
