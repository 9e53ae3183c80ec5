package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"asistencia.org/internal/auth"
	"asistencia.org/internal/config"
	"asistencia.org/internal/migrate"
	"asistencia.org/internal/obs"
	"asistencia.org/internal/store/pg"
	"asistencia.org/migrations"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("ASISTENCIA_CONFIG"), "Path to YAML config")
		dsn        = flag.String("dsn", "", "PostgreSQL DSN (overrides config and ASISTENCIA_PG_DSN)")
		seedsDir   = flag.String("seeds", "", "Directory with extra SQL seed files")
		demoEmail  = flag.String("demo-email", "demo@asistencia.local", "Owner email created by seed")
		demoPass   = flag.String("demo-password", "demo1234", "Owner password created by seed")
	)
	flag.Parse()
	log := obs.Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}
	if cfg.Database.DSN == "" {
		log.Fatal().Msg("missing DSN: provide via -dsn, config or ASISTENCIA_PG_DSN")
	}
	if flag.NArg() == 0 {
		log.Fatal().Msg("usage: migrate [up|down|status|seed]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, err := pg.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer store.Close()

	var opts []migrate.Option
	if *seedsDir != "" {
		opts = append(opts, migrate.WithSeeds(os.DirFS(*seedsDir)))
	}
	mgr := migrate.NewManager(store.DB(), migrations.FS, opts...)

	switch flag.Arg(0) {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		for _, name := range applied {
			fmt.Println("applied", name)
		}
	case "down":
		var reverted string
		reverted, err = mgr.Down(ctx)
		if errors.Is(err, migrate.ErrNothingApplied) {
			fmt.Println("nothing to revert")
			err = nil
		}
		if err == nil && reverted != "" {
			fmt.Println("reverted", reverted)
		}
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		for _, name := range history {
			fmt.Println(name)
		}
	case "seed":
		if err = mgr.Seed(ctx); err == nil {
			err = seedDemo(ctx, cfg, store, *demoEmail, *demoPass)
		}
	default:
		log.Fatal().Str("command", flag.Arg(0)).Msg("unknown command")
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("migrate failed")
	}
}

// seedDemo registers a demo owner through the regular registration path so the
// default company and employee exist too. An existing account is left alone.
func seedDemo(ctx context.Context, cfg config.Config, store *pg.Store, email, password string) error {
	codec, err := auth.NewCodec(auth.TokenConfig{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer})
	if err != nil {
		return err
	}
	svc, err := auth.NewService(store, codec, auth.TTLConfig{
		Owner:         cfg.Auth.OwnerTTL,
		OwnerRemember: cfg.Auth.OwnerRememberTTL,
		Employee:      cfg.Auth.EmployeeTTL,
	}, auth.WithBcryptCost(cfg.Auth.BcryptCost))
	if err != nil {
		return err
	}
	defer svc.Sessions().Wait()

	reg, _, err := svc.Register(ctx, auth.RegisterInput{Name: "Demo", Email: email, Password: password}, auth.ClientMeta{UserAgent: "migrate-seed"})
	var conflict *auth.ConflictError
	if errors.As(err, &conflict) {
		fmt.Println("demo owner already exists:", email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed demo owner: %w", err)
	}
	fmt.Printf("demo owner %s (company %s, employee code %s)\n", reg.Owner.Email, reg.Company.Name, reg.Employee.Code)
	return nil
}
