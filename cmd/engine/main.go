package main

import (
	"context"
	"flag"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/journal"
	"main/internal/ops"
	"main/internal/session"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the engine config file")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Fatalf("load config %s, err: %+v", *configPath, err)
	}

	if cfg.Profiler.ServerAddress != "" {
		name := cfg.Profiler.ApplicationName
		if name == "" {
			name = "option-engine"
		}
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: name,
			ServerAddress:   cfg.Profiler.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Fatalf("start profiler, err: %+v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	jrnl, err := journal.New(cfg.Journal.DSN)
	if err != nil {
		logs.Fatalf("open journal, err: %+v", err)
	}
	defer func() {
		if err := jrnl.Close(); err != nil {
			logs.Warnf("close journal, err: %+v", err)
		}
	}()

	sess, err := session.New(session.Config{
		URL:                cfg.Venue.URL,
		Origin:             cfg.Venue.Origin,
		UserAgent:          cfg.Venue.UserAgent,
		Token:              cfg.Venue.Token,
		Demo:               cfg.Venue.Demo,
		Heartbeat:          cfg.Venue.Heartbeat,
		Handshake:          cfg.Venue.Handshake,
		DialRetries:        cfg.Venue.DialRetries,
		InsecureSkipVerify: cfg.Venue.InsecureSkipVerify,
		BacklogCapacity:    cfg.Backlog.Capacity,
		BacklogTrimTo:      cfg.Backlog.TrimTo,
		ConfirmTimeout:     cfg.Resolver.ConfirmTimeout,
		ResultTimeout:      cfg.Resolver.ResultTimeout,
		Symbols:            cfg.Symbols,
		Journal:            jrnl,
	})
	if err != nil {
		logs.Fatalf("build session, err: %+v", err)
	}

	ctx := context.Background()
	if err := sess.Connect(ctx); err != nil {
		logs.Fatalf("connect venue, err: %+v", err)
	}
	defer func() {
		if err := sess.Disconnect(); err != nil {
			logs.Warnf("disconnect, err: %+v", err)
		}
	}()

	if balance, err := sess.Balance(ctx); err == nil {
		logs.Infof("session ready, balance: %.2f", balance)
	} else {
		logs.Warnf("session ready, balance unavailable, err: %+v", err)
	}

	<-sys.Shutdown()
	logs.Info("shutting down")
}
