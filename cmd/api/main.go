package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"asistencia.org/internal/auth"
	"asistencia.org/internal/config"
	"asistencia.org/internal/hr"
	"asistencia.org/internal/httpapi"
	"asistencia.org/internal/migrate"
	"asistencia.org/internal/obs"
	"asistencia.org/internal/ownership"
	"asistencia.org/internal/store/memory"
	"asistencia.org/internal/store/pg"
	"asistencia.org/migrations"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// backend is the subset both stores share that main needs.
type backend interface {
	auth.Store
	hr.Store
}

func main() {
	var (
		configPath = flag.String("config", os.Getenv("ASISTENCIA_CONFIG"), "Path to YAML config")
		logLevel   = flag.String("log-level", "info", "Minimum log level")
	)
	flag.Parse()

	obs.Init()
	obs.SetBuildInfo(version, commit)
	log := obs.Logger()
	if err := obs.SetLevel(*logLevel); err != nil {
		log.Fatal().Err(err).Str("level", *logLevel).Msg("invalid log level")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.Auth.DevSecret {
		log.Warn().Msg("auth.secret not set, using the development signing secret")
	}

	var (
		db       *sql.DB
		store    backend
		resolver ownership.Resolver
	)
	if cfg.Database.DSN != "" {
		pgStore, err := pg.Open(cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("open db")
		}
		db = pgStore.DB()
		if cfg.Database.MigrateOnStart {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			applied, err := migrate.NewManager(db, migrations.FS).Up(ctx)
			cancel()
			if err != nil {
				log.Fatal().Err(err).Msg("apply migrations")
			}
			log.Info().Strs("applied", applied).Msg("migrations up to date")
		}
		store, resolver = pgStore, pgStore.Resolver()
	} else {
		log.Warn().Msg("no database DSN configured, using the in-memory store")
		mem := memory.New()
		store, resolver = mem, mem.Resolver()
	}

	codec, err := auth.NewCodec(auth.TokenConfig{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer})
	if err != nil {
		log.Fatal().Err(err).Msg("token codec")
	}
	authSvc, err := auth.NewService(store, codec, auth.TTLConfig{
		Owner:         cfg.Auth.OwnerTTL,
		OwnerRemember: cfg.Auth.OwnerRememberTTL,
		Employee:      cfg.Auth.EmployeeTTL,
	}, auth.WithBcryptCost(cfg.Auth.BcryptCost))
	if err != nil {
		log.Fatal().Err(err).Msg("auth service")
	}
	hrSvc, err := hr.NewService(store, resolver, hr.WithBcryptCost(cfg.Auth.BcryptCost))
	if err != nil {
		log.Fatal().Err(err).Msg("hr service")
	}

	probe := httpapi.ReadyProbe{DB: db}
	api, err := httpapi.New(httpapi.Deps{
		Config:  cfg,
		Auth:    authSvc,
		HR:      hrSvc,
		Ready:   probe,
		Version: version,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("http api")
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Str("env", cfg.Env).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http listen")
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.GRPC.Addr).Msg("grpc listen")
		}
		grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcServer, httpapi.NewHealthServer(probe))
		go func() {
			log.Info().Str("addr", cfg.GRPC.Addr).Msg("grpc listening")
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.Error().Err(err).Msg("grpc serve")
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	authSvc.Sessions().Wait()
	if db != nil {
		_ = db.Close()
	}
	log.Info().Msg("stopped")
}
