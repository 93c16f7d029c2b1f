package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/vaultfunk/vaultfunk/internal/advisor"
	"github.com/vaultfunk/vaultfunk/internal/agent"
	"github.com/vaultfunk/vaultfunk/internal/api"
	"github.com/vaultfunk/vaultfunk/internal/chain"
	"github.com/vaultfunk/vaultfunk/internal/config"
	"github.com/vaultfunk/vaultfunk/internal/events"
	"github.com/vaultfunk/vaultfunk/internal/market"
	"github.com/vaultfunk/vaultfunk/internal/metrics"
	"github.com/vaultfunk/vaultfunk/internal/notify"
	"github.com/vaultfunk/vaultfunk/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("agent exited with error")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Str("chain_mode", cfg.Chain.Mode).
		Msg("starting vaultfunk agent")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agentCfg, err := buildAgentConfig(cfg)
	if err != nil {
		return err
	}

	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ag, err := agent.New(agentCfg, deps)
	if err != nil {
		return fmt.Errorf("failed to build agent: %w", err)
	}

	if cfg.Monitoring.EnableMetrics {
		metricsServer := metrics.NewServer(cfg.Monitoring.PrometheusPort, config.NewLogger("metrics"))
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("metrics server shutdown failed")
			}
		}()
	}

	apiServer := api.NewServer(api.Config{
		Host:  cfg.API.Host,
		Port:  cfg.API.Port,
		Agent: ag,
	})
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error().Err(err).Msg("API server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("API server shutdown failed")
		}
	}()

	if err := ag.Start(ctx); err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")
	ag.Stop()

	return nil
}

// buildAgentConfig translates the file configuration into the
// supervisor's config, parsing mints and identifiers up front.
func buildAgentConfig(cfg *config.Config) (agent.Config, error) {
	var out agent.Config

	portfolioID, err := uuid.Parse(cfg.Agent.PortfolioID)
	if err != nil {
		return out, fmt.Errorf("invalid agent.portfolio_id %q: %w", cfg.Agent.PortfolioID, err)
	}

	var bucket solana.PublicKey
	if cfg.Agent.BucketAddress != "" {
		bucket, err = solana.PublicKeyFromBase58(cfg.Agent.BucketAddress)
		if err != nil {
			return out, fmt.Errorf("invalid agent.bucket_address %q: %w", cfg.Agent.BucketAddress, err)
		}
	}

	pairs := make([]market.Pair, 0, len(cfg.Quotes.Pairs))
	for i, pc := range cfg.Quotes.Pairs {
		in, err := solana.PublicKeyFromBase58(pc.InputMint)
		if err != nil {
			return out, fmt.Errorf("quotes.pairs[%d]: invalid input mint: %w", i, err)
		}
		outMint, err := solana.PublicKeyFromBase58(pc.OutputMint)
		if err != nil {
			return out, fmt.Errorf("quotes.pairs[%d]: invalid output mint: %w", i, err)
		}
		pairs = append(pairs, market.Pair{
			InputMint:  in,
			OutputMint: outMint,
			Amount:     pc.Amount,
		})
	}

	strategies, err := config.LoadStrategies(cfg.Agent.StrategiesFile)
	if err != nil {
		return out, fmt.Errorf("failed to load strategies: %w", err)
	}

	return agent.Config{
		PortfolioID:             portfolioID,
		Bucket:                  bucket,
		Pairs:                   pairs,
		FetchInterval:           cfg.Quotes.FetchInterval(),
		EvaluationInterval:      cfg.Agent.EvaluationInterval(),
		MonitoringInterval:      cfg.Agent.MonitoringInterval(),
		MaxConcurrentExecutions: cfg.Agent.MaxConcurrentExecutions,
		LearningEnabled:         cfg.Agent.LearningEnabled,
		SubmitTimeout:           cfg.Chain.GetTimeout(),
		Strategies:              strategies,
	}, nil
}

// buildDeps wires the optional external collaborators. Everything but
// the quote client and chain client degrades to nil when disabled.
func buildDeps(ctx context.Context, cfg *config.Config) (agent.Deps, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable, price mirror disabled")
			redisClient = nil
		} else {
			c := redisClient
			cleanups = append(cleanups, func() { _ = c.Close() })
		}
	}

	deps := agent.Deps{
		QuoteSource: market.NewClient(market.ClientConfig{
			QuoteBaseURL: cfg.Quotes.BaseURL,
			PriceBaseURL: cfg.Quotes.PriceURL,
			Timeout:      cfg.Quotes.GetRequestTimeout(),
			SlippageBps:  cfg.Quotes.SlippageBps,
		}, config.NewLogger("market")),
		Cache: market.NewCache(redisClient, config.NewLogger("cache")),
		Log:   config.NewLogger("pipeline"),
	}

	switch cfg.Chain.Mode {
	case "live":
		deps.Chain = chain.NewEngineClient(cfg.Chain.EngineURL, cfg.Chain.GetTimeout(), config.NewLogger("chain"))
	default:
		log.Info().Msg("paper trading mode: using mock chain client")
		deps.Chain = chain.NewMock()
	}

	if cfg.Advisor.Enabled {
		deps.Advisor = advisor.NewClient(advisor.ClientConfig{
			Endpoint:          cfg.Advisor.Endpoint,
			APIKey:            cfg.Advisor.APIKey,
			Model:             cfg.Advisor.Model,
			Temperature:       cfg.Advisor.Temperature,
			MaxTokens:         cfg.Advisor.MaxTokens,
			Timeout:           cfg.Advisor.GetTimeout(),
			RequestsPerMinute: cfg.Advisor.RequestsPerMinute,
		}, config.NewLogger("advisor"))
	}

	if cfg.Database.Enabled {
		st, err := store.New(ctx, cfg.Database.GetDSN())
		if err != nil {
			cleanup()
			return agent.Deps{}, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		cleanups = append(cleanups, st.Close)
		deps.Store = st
	}

	if cfg.NATS.Enabled {
		pub, err := events.Connect(cfg.NATS.URL, config.NewLogger("events"))
		if err != nil {
			log.Warn().Err(err).Msg("NATS unreachable, event publishing disabled")
		} else {
			cleanups = append(cleanups, pub.Close)
			deps.Events = pub
		}
	}

	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, config.NewLogger("notify"))
		if err != nil {
			log.Warn().Err(err).Msg("Telegram unavailable, notifications disabled")
		} else {
			deps.Notifier = tg
		}
	}

	return deps, cleanup, nil
}

func init() {
	// Keep usage terse when flags are wrong.
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-config path]\n", os.Args[0])
		flag.PrintDefaults()
	}
}
