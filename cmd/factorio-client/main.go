package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"factorio-headless-client/client"
	"factorio-headless-client/internal/config"
	"factorio-headless-client/internal/logx"
)

const version = "0.1.0"

func main() {
	remote := flag.String("remote", "127.0.0.1:34197", "host:port of the Factorio server")
	username := flag.String("username", "headless", "account username")
	token := flag.String("token", "", "account token")
	configPath := flag.String("config", "", "optional YAML file of connect options")
	flag.Parse()

	log := logx.Named("main")
	log.Info("factorio-headless-client starting", logx.Fields{"version": version})

	var opts []client.Option
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", err, logx.Fields{"path": *configPath})
			os.Exit(1)
		}
		opts = append(opts, client.FromConfig(loaded))
		log.Success("config loaded", logx.Fields{"path": *configPath})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds := client.Credentials{Username: *username, Token: *token}
	session, err := client.Connect(ctx, *remote, creds, opts...)
	if err != nil {
		log.Error("connect failed", err, logx.Fields{"remote": *remote})
		os.Exit(1)
	}
	log.Info("session opened", logx.Fields{"remote": *remote})

	events := session.Events()
	for {
		select {
		case <-ctx.Done():
			log.Warn("shutting down", nil)
			session.Disconnect()
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			logEvent(log, ev)
		}
	}
}

func logEvent(log *logx.Logger, ev client.Event) {
	switch e := ev.(type) {
	case client.Connecting:
		log.Info("connecting", logx.Fields{"phase": e.Phase})
	case client.Connected:
		log.Success("connected", logx.Fields{"player_id": e.PlayerID})
	case client.MapProgress:
		log.Info("map transfer progress", logx.Fields{"received": e.Received, "total": e.Total})
	case client.WorldReady:
		log.Success("world ready", nil)
	case client.TickConfirmed:
		log.Debug("tick confirmed", logx.Fields{"tick": e.Tick, "checksum": e.Checksum})
	case client.DesyncSuspected:
		log.Warn("desync suspected", logx.Fields{"tick": e.Tick, "expected": e.Expected, "got": e.Got})
	case client.Disconnected:
		log.Warn("disconnected", logx.Fields{"reason": string(e.Reason), "context": e.Context})
	case client.ProtocolErrorEvent:
		log.Warn("protocol error", logx.Fields{"kind": string(e.Kind), "context": e.Context})
	}
}
