// Package main provides the game server binary that resolves duels and
// encounters and serves combat logs over gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/idlebattle/internal/config"
	"github.com/cory-johannsen/idlebattle/internal/game/arena"
	"github.com/cory-johannsen/idlebattle/internal/game/combat"
	"github.com/cory-johannsen/idlebattle/internal/game/combatlog"
	"github.com/cory-johannsen/idlebattle/internal/game/dice"
	"github.com/cory-johannsen/idlebattle/internal/game/encounter"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
	"github.com/cory-johannsen/idlebattle/internal/gameserver"
	"github.com/cory-johannsen/idlebattle/internal/observability"
	"github.com/cory-johannsen/idlebattle/internal/scripting"
	"github.com/cory-johannsen/idlebattle/internal/server"
	"github.com/cory-johannsen/idlebattle/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "gameserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	diceRoller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)

	logger.Info("starting game server",
		zap.String("grpc_addr", cfg.GameServer.Addr()),
	)

	store := combatlog.NewStorage(
		combatlog.WithMaxSessions(cfg.CombatLog.MaxSessions),
		combatlog.WithMaxEntries(cfg.CombatLog.MaxEntries),
	)

	// Load content.
	contentStart := time.Now()
	weapons, err := inventory.LoadRegistry(cfg.Content.WeaponsDir)
	if err != nil {
		logger.Fatal("loading weapon definitions", zap.Error(err))
	}
	templates, err := encounter.LoadTemplates(cfg.Content.EncountersDir)
	if err != nil {
		logger.Fatal("loading encounter templates", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("weapons", len(weapons.WeaponIDs())),
		zap.Int("encounters", len(templates)),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	rules := cfg.Combat.Rules()
	encounterOpts := []encounter.Option{
		encounter.WithLogger(logger),
		encounter.WithEngineOptions(combat.WithRules(rules)),
	}

	if cfg.Content.ScriptsDir != "" {
		scriptMgr := scripting.NewManager(diceRoller, logger, scripting.DefaultInstructionLimit)
		if err := scriptMgr.LoadGlobal(cfg.Content.ScriptsDir); err != nil {
			logger.Fatal("loading scripts", zap.String("dir", cfg.Content.ScriptsDir), zap.Error(err))
		}
		defer scriptMgr.Close()
		encounterOpts = append(encounterOpts, encounter.WithScripts(scriptMgr))
		logger.Info("scripting engine initialized",
			zap.String("dir", cfg.Content.ScriptsDir),
			zap.Bool("adjust_gold", scriptMgr.HasHook(encounter.AdjustGoldHook)),
		)
	}

	encounters, err := encounter.NewService(templates, weapons, store, diceRoller, encounterOpts...)
	if err != nil {
		logger.Fatal("creating encounter service", zap.Error(err))
	}
	duels := arena.NewService(store, arena.WithRules(rules), arena.WithLogger(logger))

	// Services stop in reverse order: tickers, then gRPC, then the archive
	// pool with its final flush.
	lifecycle := server.NewLifecycle(logger)

	var archiver *combatlog.Archiver
	if cfg.CombatLog.ArchiveEnabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)

		archiver = combatlog.NewArchiver(store, postgres.NewCombatSessionRepository(pool.DB()), logger)
		if err := archiver.Warm(ctx, cfg.CombatLog.MaxAgeDays); err != nil {
			logger.Fatal("warming combat log store", zap.Error(err))
		}

		// The pool outlives the tickers and gRPC; its stop runs the final flush.
		poolDone := make(chan struct{})
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				<-poolDone
				return nil
			},
			StopFn: func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if _, err := archiver.Flush(flushCtx); err != nil {
					logger.Warn("final combat log flush failed", zap.Error(err))
				}
				pool.Close()
				close(poolDone)
			},
		})
		lifecycle.Add("postgres-health", &server.TickerService{
			Name:     "postgres-health",
			Interval: 30 * time.Second,
			Logger:   logger,
			Job:      pool.HealthJob(postgres.DefaultHealthTimeout),
		})
	}

	var serviceOpts []gameserver.Option
	if archiver != nil {
		serviceOpts = append(serviceOpts, gameserver.WithClearer(archiver))
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(gameserver.LoggingInterceptor(logger)))
	gameserver.RegisterCombatServiceServer(grpcServer, gameserver.NewCombatService(duels, encounters, store, logger, serviceOpts...))

	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.GameServer.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.GameServer.Addr(), err)
			}
			logger.Info("gRPC server listening",
				zap.String("addr", lis.Addr().String()),
			)
			return grpcServer.Serve(lis)
		},
		StopFn: func() {
			grpcServer.GracefulStop()
		},
	})

	lifecycle.Add("combatlog-cleanup", &server.TickerService{
		Name:     "combatlog-cleanup",
		Interval: cfg.CombatLog.CleanupInterval,
		Logger:   logger,
		Job: func(context.Context) error {
			if n := store.CleanupOldLogs(cfg.CombatLog.MaxAgeDays); n > 0 {
				logger.Info("expired combat sessions removed", zap.Int("sessions", n))
			}
			return nil
		},
	})

	if archiver != nil {
		lifecycle.Add("combatlog-archive", &server.TickerService{
			Name:     "combatlog-archive",
			Interval: cfg.CombatLog.ArchiveInterval,
			Logger:   logger,
			Job: func(ctx context.Context) error {
				_, err := archiver.Flush(ctx)
				return err
			},
		})
		lifecycle.Add("combatlog-prune", &server.TickerService{
			Name:     "combatlog-prune",
			Interval: cfg.CombatLog.CleanupInterval,
			Logger:   logger,
			Job: func(ctx context.Context) error {
				return archiver.Prune(ctx, cfg.CombatLog.MaxAgeDays)
			},
		})
	}

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("grpc_addr", cfg.GameServer.Addr()),
		zap.Strings("encounters", encounters.TemplateIDs()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
