package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/realign/internal/consequence"
	"github.com/ppiankov/realign/internal/evidence"
	"github.com/ppiankov/realign/internal/extract"
	"github.com/ppiankov/realign/internal/ledger"
	"github.com/ppiankov/realign/internal/llm"
	"github.com/ppiankov/realign/internal/model"
	"github.com/ppiankov/realign/internal/pipeline"
	"github.com/ppiankov/realign/internal/reward"
	"github.com/ppiankov/realign/internal/score"
	"github.com/ppiankov/realign/internal/verify"
	"github.com/ppiankov/realign/internal/worker"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app holds the wired components for one command invocation
type app struct {
	config  *model.Config
	monitor *pipeline.Monitor
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// loadConfig merges defaults, the config file and REALIGN_* variables
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Ledger.Path = expandHome(cfg.Ledger.Path)
	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)
	return cfg, nil
}

func openLedger(cfg model.LedgerConfig, logger *zap.Logger) (ledger.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return ledger.NewFileStore(cfg.Path, logger)
	case "badger":
		return ledger.OpenBadger(cfg.Path, false, logger)
	default:
		return nil, fmt.Errorf("unknown ledger backend: %s (supported: file, badger)", cfg.Backend)
	}
}

// buildApp wires ledger, evidence, judges and engines from configuration
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger
	if log == nil {
		log = zap.NewNop()
	}

	a := &app{config: cfg}

	store, err := openLedger(cfg.Ledger, log)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	manager := ledger.NewManager(store, log)

	var analyzer score.Analyzer
	if cfg.Judge.Enabled {
		index, err := evidence.Open(ctx, cfg, os.LookupEnv, log)
		if err != nil {
			// Pattern scoring still runs; reports carry "verification disabled"
			log.Warn("evidence index unavailable, verification disabled",
				zap.String("backend", cfg.Evidence.Backend),
				zap.Error(err))
			index = evidence.Unconfigured{}
		}
		a.closers = append(a.closers, index.Close)

		chain, err := llm.BuildChain(cfg.Judge, cfg.Proxy, os.LookupEnv, log)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("build judge chain: %w", err)
		}

		analyzer = verify.New(
			extract.NewClaimExtractor(),
			index,
			chain,
			manager,
			worker.NewLimiter(0, 1),
			verify.ConfigFrom(cfg.Judge),
			log,
		)
	}

	var bonus llm.Provider
	if cfg.Reward.BonusModel != "" {
		p, err := llm.NewProvider(llm.ConfigFromBackend(
			model.JudgeBackend{Provider: "openai", Model: cfg.Reward.BonusModel},
			cfg.Judge, cfg.Proxy, os.LookupEnv))
		if err != nil {
			log.Debug("bonus model unavailable", zap.Error(err))
		} else {
			bonus = p
		}
	}

	var forwarder pipeline.Forwarder
	fwdConfig := llm.ConfigFromBackend(
		model.JudgeBackend{Provider: "openai", BaseURL: cfg.Forward.BaseURL},
		cfg.Judge, cfg.Proxy, os.LookupEnv)
	fwdConfig.Timeout = cfg.Forward.Timeout
	if f, err := llm.NewForwarder(fwdConfig); err != nil {
		log.Debug("request forwarding unavailable", zap.Error(err))
	} else {
		forwarder = f
	}

	a.monitor = pipeline.NewMonitor(pipeline.Options{
		Manager:      manager,
		Engine:       score.NewEngine(cfg.Scoring, analyzer, log),
		Consequences: consequence.NewEngine(cfg.Consequence, log),
		Rewards:      reward.NewChecker(manager, cfg.Reward, bonus, log),
		Forwarder:    forwarder,
		DailyBudget:  cfg.Judge.DailyBudget,
		Logger:       log,
	})
	return a, nil
}

// withApp builds the app, runs fn and closes it
func withApp(ctx context.Context, fn func(*app) error) (err error) {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close: %w", closeErr)
		}
	}()
	return fn(a)
}
