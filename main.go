package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hpackCodec/internal/logging"
	"hpackCodec/internal/server"
)

func main() {
	var configFile = flag.String("config", "", "config file (.yaml or .toml)")

	flag.Parse()

	if *configFile == "" {
		panic("Config file arg is required!")
	}

	conf, err := server.LoadConfig(*configFile)
	if err != nil {
		panic(err)
	}

	level, _ := logging.ParseLogLevel(conf.Logger.Level)
	logger, err := logging.NewDefaultLogger(level, conf.Logger.File)
	if err != nil {
		panic(fmt.Errorf("failed to create logger: %v", err))
	}
	defer func() { _ = logger.Sync() }()
	logger.Log(logging.LogLevelInfo, "Loaded %s, logging at %s", *configFile, logger.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(conf, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Log(logging.LogLevelError, "failed to run server: %v", err)
		fmt.Printf("failed to run server: %v\n", err)
		return
	}
}
