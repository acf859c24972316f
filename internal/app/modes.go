package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"

	"github.com/optimizeforall/polymarket-bot/internal/crypto"
	"github.com/optimizeforall/polymarket-bot/internal/domain"
	"github.com/optimizeforall/polymarket-bot/internal/executor"
	"github.com/optimizeforall/polymarket-bot/internal/feed"
	"github.com/optimizeforall/polymarket-bot/internal/indicator"
	"github.com/optimizeforall/polymarket-bot/internal/oracle"
	"github.com/optimizeforall/polymarket-bot/internal/pipeline"
	"github.com/optimizeforall/polymarket-bot/internal/platform/chain"
	"github.com/optimizeforall/polymarket-bot/internal/platform/polymarket"
	"github.com/optimizeforall/polymarket-bot/internal/server"
	"github.com/optimizeforall/polymarket-bot/internal/server/handler"
	"github.com/optimizeforall/polymarket-bot/internal/server/ws"
	"github.com/optimizeforall/polymarket-bot/internal/service"
	"github.com/optimizeforall/polymarket-bot/internal/strategy"
)

const (
	// CLOB order submission budget, shared by every instance on the wallet.
	orderRateLimit  = 5
	orderRateWindow = time.Second

	chainlinkMaxAge = time.Hour
	settleAttempts  = 3
	backfillTimeout = 2 * time.Minute
)

// session is what a mode contributes to the shared run: the order sink and
// balance source, and the identity used for the lock and the risk snapshot.
type session struct {
	sink    domain.OrderSink
	balance domain.BalanceSource
	wallet  string
}

// PaperMode trades against a simulated balance seeded from the restored
// risk capital, less the stake of restored positions.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode")
	return a.run(ctx, deps, "paper", func(_ context.Context, risk *service.RiskManager, positions *service.PositionService, _ *ethclient.Client) (session, error) {
		// Restored positions already paid their stake.
		sink := service.NewPaperSink(risk.State().CurrentCapital-positions.Committed(), a.logger)
		return session{sink: sink, balance: sink, wallet: "paper"}, nil
	})
}

// LiveMode signs and submits real orders from the configured wallet.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting live mode")
	return a.run(ctx, deps, "live", func(ctx context.Context, _ *service.RiskManager, _ *service.PositionService, eth *ethclient.Client) (session, error) {
		return a.liveSession(ctx, deps, eth)
	})
}

// SignalMode generates and journals signals without placing orders.
func (a *App) SignalMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting signal mode")
	return a.run(ctx, deps, "signal", func(context.Context, *service.RiskManager, *service.PositionService, *ethclient.Client) (session, error) {
		return session{wallet: "signal"}, nil
	})
}

type sessionFunc func(ctx context.Context, risk *service.RiskManager, positions *service.PositionService, eth *ethclient.Client) (session, error)

// run builds the price, market, risk and journal services, lets the mode
// pick its sink, and runs the loop alongside the sampler, the API server and
// the archive job until the loop returns or ctx is cancelled.
func (a *App) run(ctx context.Context, deps *Dependencies, mode string, open sessionFunc) error {
	cfg := a.cfg
	lookback := time.Duration(cfg.Signal.LookbackMinutes) * time.Minute

	var eth *ethclient.Client
	if mode == "live" || strings.Contains(strings.Join(cfg.Feed.Sources, ","), "chainlink") {
		c, err := chain.Dial(ctx, cfg.Chain.RPCURL)
		switch {
		case err == nil:
			eth = c
			defer eth.Close()
		case mode == "live":
			return fmt.Errorf("app: dial chain: %w", err)
		default:
			a.logger.WarnContext(ctx, "chain rpc unavailable, chainlink source disabled",
				slog.String("error", err.Error()))
		}
	}

	binance := feed.NewBinance(cfg.Feed.Symbol)
	prices := a.buildPrices(deps, a.priceSources(binance, eth), lookback)
	a.warmPrices(ctx, prices, binance, lookback)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("app: timezone: %w", err)
	}
	risk := service.NewRiskManager(service.RiskConfig{
		InitialCapital:         cfg.Risk.InitialCapital,
		MaxPositionPct:         cfg.Risk.MaxPositionPct,
		MaxConcurrentPositions: cfg.Risk.MaxConcurrentPositions,
		MaxDailyDrawdownPct:    cfg.Risk.MaxDailyDrawdownPct,
		DrawdownCooldown:       cfg.Risk.DrawdownCooldown.Duration,
		ConsecutiveLossHalt:    cfg.Risk.ConsecutiveLossHalt,
		LossStreakCooldown:     cfg.Risk.LossStreakCooldown.Duration,
		DailyTradeLimit:        cfg.Risk.DailyTradeLimit,
		MinOrderUSD:            cfg.Risk.MinOrderUSD,
		Location:               loc,
	}, a.logger)

	positions := service.NewPositionService(settleAttempts, deps.SignalBus, a.logger)

	// The wallet is only known once the session is open, so live mode
	// restores after opening; paper mode needs the restored capital first.
	if mode != "live" {
		a.restoreSession(ctx, deps, risk, positions, mode)
	}
	sess, err := open(ctx, risk, positions, eth)
	if err != nil {
		return err
	}
	if mode == "live" {
		a.restoreSession(ctx, deps, risk, positions, sess.wallet)
		bal, err := sess.balance.Balance(ctx)
		if err != nil {
			return fmt.Errorf("app: initial balance: %w", err)
		}
		risk.SetCapital(bal)
	}

	if deps.LockManager != nil {
		unlock, err := deps.LockManager.Acquire(ctx, sess.wallet, executor.DefaultConfig().LockTTL)
		if err != nil {
			return fmt.Errorf("app: single-instance lock: %w", err)
		}
		defer unlock()
	}

	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	quoter := polymarket.NewClobClient(cfg.Polymarket.ClobHost, nil, crypto.APICreds{})
	markets := service.NewMarketService(service.MarketServiceConfig{
		SeriesID:        cfg.Polymarket.SeriesID,
		IntervalMinutes: cfg.Signal.IntervalMinutes,
		MinMinutesLeft:  cfg.Polymarket.MinMinutesLeft,
		MaxMinutesLeft:  cfg.Polymarket.MaxMinutesLeft,
	}, gamma, quoter, deps.MarketCache, a.logger)

	trades := service.NewTradeService(deps.FileJournal, deps.SignalStore, deps.TradeStore, deps.SignalBus, deps.Metrics, a.logger)
	minEntry, maxEntry := cfg.EntryWindow()
	engine := strategy.NewSignalEngine(strategy.EngineConfig{
		IntervalMinutes:      cfg.Signal.IntervalMinutes,
		VWAPThresholdPct:     cfg.Signal.VWAPThresholdPct,
		MomentumThresholdPct: cfg.Signal.MomentumThresholdPct,
		BasePositionPct:      cfg.Signal.BasePositionPct,
		MaxPositionPct:       cfg.Risk.MaxPositionPct,
		MinSamples15m:        cfg.Signal.MinSamples15m,
		MinSamples30m:        cfg.Signal.MinSamples30m,
	}, a.logger)

	ecfg := executor.DefaultConfig()
	ecfg.Mode = mode
	ecfg.IntervalMinutes = cfg.Signal.IntervalMinutes
	ecfg.PollInterval = cfg.Loop.PollInterval.Duration
	ecfg.SummaryInterval = cfg.Loop.SummaryInterval.Duration
	ecfg.RunFor = cfg.Loop.RunFor.Duration
	ecfg.Lookback = lookback
	ecfg.OrderTimeout = cfg.Loop.OrderTimeout.Duration
	ecfg.FetchTimeout = cfg.Loop.FetchTimeout.Duration
	ecfg.HintTimeout = cfg.Oracle.Timeout.Duration
	ecfg.EntryPrice = cfg.Loop.EntryPrice
	ecfg.Wallet = sess.wallet
	ecfg.LockKey = sess.wallet
	ecfg.RiskStateKey = sess.wallet

	d := executor.Deps{
		Prices:    prices,
		Markets:   markets,
		Engine:    engine,
		Window:    strategy.EntryWindow{IntervalMinutes: cfg.Signal.IntervalMinutes, MinEntryMinute: minEntry, MaxEntryMinute: maxEntry},
		Risk:      risk,
		Positions: positions,
		Sink:      sess.sink,
		Balance:   sess.balance,
		Journal:   trades,
		Notifier:  deps.Notifier,
		Audit:     deps.AuditStore,
		RiskCache: deps.RiskCache,
		Locks:     deps.LockManager,
		Metrics:   deps.Metrics,
		Hints:     strategy.NoHint{},
	}
	if cfg.Oracle.Enabled && cfg.Signal.UseHint {
		ecfg.Brain = "rules+ai"
		d.Hints = oracle.NewAgent(oracle.Config{
			BaseURL:        cfg.Oracle.BaseURL,
			APIKey:         cfg.Oracle.APIKey,
			PrefilterModel: cfg.Oracle.PrefilterModel,
			DecisionModel:  cfg.Oracle.DecisionModel,
			Timeout:        cfg.Oracle.Timeout.Duration,
		}, binance, a.logger)
	}

	// The hub is created before the status handler that feeds its initial
	// frame; the closure is only called once clients connect.
	var status *handler.StatusHandler
	hub := ws.NewHub(deps.SignalBus, func() any { return status.Snapshot() }, a.logger)
	d.Events = hub
	loop := executor.NewLoop(ecfg, d, a.logger)
	status = handler.NewStatusHandler(loop, risk)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Feed.BinanceWS {
		stream := feed.NewBinanceStream("", cfg.Feed.Symbol, cfg.Signal.SampleInterval.Duration, prices, a.logger)
		g.Go(background(func() error { return stream.Run(gctx) }))
	} else {
		sampler := feed.NewSampler(cfg.Signal.SampleInterval.Duration, prices.Sample, a.logger)
		g.Go(background(func() error { return sampler.Run(gctx) }))
	}
	g.Go(background(func() error { return hub.Run(gctx) }))

	if cfg.Server.Enabled {
		handlers := server.Handlers{
			Health:  handler.NewHealthHandler(deps.Checks, a.logger),
			Status:  status,
			Journal: handler.NewJournalHandler(trades, a.logger),
		}
		if cfg.Metrics.Enabled {
			handlers.Metrics = deps.Metrics.Handler()
		}
		srv := server.NewServer(server.Config{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
			APIKey:      cfg.Server.APIKey,
			RateLimit:   cfg.Server.RateLimit,
			RateWindow:  cfg.Server.RateWindow.Duration,
		}, handlers, hub, deps.RateLimiter, a.logger)
		g.Go(background(func() error { return srv.Run(gctx) }))
	}

	if deps.Archiver != nil {
		job := pipeline.NewArchiveJob(deps.Archiver, deps.FileJournal, a.logger)
		g.Go(background(func() error { return job.RunCron(gctx, cfg.S3.ArchiveCron) }))
	}

	g.Go(func() error {
		defer cancel()
		return loop.Run(gctx)
	})

	return g.Wait()
}

// background adapts a long-running component so its cancellation on
// shutdown is not reported as a failure.
func background(run func() error) func() error {
	return func() error {
		if err := run(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// priceSources builds the configured sources in fallback order. Unknown
// names are rejected by config validation.
func (a *App) priceSources(binance *feed.Binance, eth *ethclient.Client) []domain.PriceSource {
	client := &http.Client{Timeout: a.cfg.Loop.FetchTimeout.Duration}
	var sources []domain.PriceSource
	for _, name := range a.cfg.Feed.Sources {
		switch strings.ToLower(name) {
		case "cryptocompare":
			sources = append(sources, feed.NewCryptoCompare("", client))
		case "coincap":
			sources = append(sources, feed.NewCoinCap("", client))
		case "coingecko":
			sources = append(sources, feed.NewCoinGecko("", client))
		case "binance":
			sources = append(sources, binance)
		case "chainlink":
			if eth != nil {
				sources = append(sources, chain.NewChainlink(eth, a.cfg.Chain.ChainlinkBTCUSD, chainlinkMaxAge))
			}
		}
	}
	return sources
}

func (a *App) buildPrices(deps *Dependencies, sources []domain.PriceSource, lookback time.Duration) *service.PriceService {
	s := a.cfg.Signal
	sampleEvery := s.SampleInterval.Duration
	if sampleEvery <= 0 {
		sampleEvery = 5 * time.Second
	}
	// Keep two lookbacks so the previous interval's close is still around
	// when its positions settle.
	retention := 2 * lookback
	tracker := strategy.NewPriceTracker(int(retention/sampleEvery)+64, retention)

	pcfg := service.DefaultPriceServiceConfig()
	pcfg.Retries = a.cfg.Feed.Retries
	pcfg.RetryDelay = a.cfg.Feed.RetryDelay.Duration
	pcfg.FetchTimeout = a.cfg.Loop.FetchTimeout.Duration
	pcfg.Indicators = indicator.Config{
		RSIPeriod:        s.RSIPeriod,
		MomentumLookback: s.MomentumLookback.Duration,
		SampleInterval:   sampleEvery,
		MomentumMode:     indicator.MomentumMode(strings.ToLower(s.MomentumMode)),
		TrendShort:       s.TrendShort,
		TrendLong:        s.TrendLong,
		TrendBandPct:     s.TrendBandPct,
		EMAPeriod:        indicator.DefaultConfig().EMAPeriod,
	}
	return service.NewPriceService(pcfg, sources, tracker, deps.PriceCache, deps.SignalBus, deps.Metrics, a.logger)
}

// warmPrices seeds the history from the redis mirror and then from Binance
// 1s klines, so the first tick does not wait out a full lookback.
func (a *App) warmPrices(ctx context.Context, prices *service.PriceService, binance *feed.Binance, lookback time.Duration) {
	if _, err := prices.WarmFromCache(ctx, lookback); err != nil {
		a.logger.WarnContext(ctx, "price cache warmup failed", slog.String("error", err.Error()))
	}
	if !a.cfg.Feed.Backfill {
		return
	}
	bctx, cancel := context.WithTimeout(ctx, backfillTimeout)
	defer cancel()
	points, err := binance.Backfill(bctx, lookback, a.cfg.Signal.SampleInterval.Duration)
	if err != nil {
		a.logger.WarnContext(ctx, "price backfill failed, starting cold", slog.String("error", err.Error()))
		return
	}
	a.logger.InfoContext(ctx, "price history backfilled",
		slog.Int("fetched", len(points)),
		slog.Int("accepted", prices.Seed(points)),
	)
}

// restoreSession loads the snapshot saved under key. Unsettled positions
// always come back so they settle or get written off; the risk counters
// only when they belong to the current trading day. Either way the open
// position count ends up equal to the positions actually held.
func (a *App) restoreSession(ctx context.Context, deps *Dependencies, risk *service.RiskManager, positions *service.PositionService, key string) {
	if deps.RiskCache == nil {
		return
	}
	saved, err := deps.RiskCache.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			a.logger.WarnContext(ctx, "session snapshot load failed, starting fresh", slog.String("error", err.Error()))
		}
		return
	}
	if saved.Risk.Day == risk.Day() {
		risk.Restore(saved.Risk)
	} else {
		a.logger.InfoContext(ctx, "saved risk state is from another day, ignoring",
			slog.String("saved_day", saved.Risk.Day),
			slog.String("today", risk.Day()),
		)
	}
	positions.Restore(ctx, saved.Positions)
	risk.SyncOpenPositions(len(positions.OpenPositions()))
}

// liveSession loads the wallet key, derives CLOB credentials and builds the
// signing order sink with an on-chain USDC balance.
func (a *App) liveSession(ctx context.Context, deps *Dependencies, eth *ethclient.Client) (session, error) {
	cfg := a.cfg
	key, err := crypto.LoadKey(crypto.KeySource{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return session{}, fmt.Errorf("app: load wallet key: %w", err)
	}
	signer, err := crypto.NewSigner(key, cfg.Polymarket.ChainID)
	if err != nil {
		return session{}, fmt.Errorf("app: create signer: %w", err)
	}

	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer, crypto.APICreds{})
	creds, err := clob.DeriveAPIKey(ctx)
	if err != nil {
		return session{}, fmt.Errorf("app: derive clob credentials: %w", err)
	}
	a.logger.InfoContext(ctx, "clob credentials derived", slog.String("creds", creds.String()))

	funder := cfg.Wallet.SafeAddress
	if funder == "" {
		funder = signer.Address().Hex()
	}
	balance := chain.NewUSDCBalance(eth, cfg.Chain.USDCAddress, funder, a.logger)
	sink := service.NewOrderService(service.LiveConfig{
		Funder:        funder,
		SignatureType: cfg.Polymarket.SignatureType,
		OrderType:     domain.OrderTypeGTC,
		RateLimit:     orderRateLimit,
		RateWindow:    orderRateWindow,
	}, signer, clob, deps.RateLimiter, balance, deps.SignalBus, a.logger)

	a.logger.InfoContext(ctx, "live wallet ready",
		slog.String("signer", signer.Address().Hex()),
		slog.String("funder", funder),
		slog.Int("signature_type", cfg.Polymarket.SignatureType),
	)
	return session{sink: sink, balance: balance, wallet: strings.ToLower(funder)}, nil
}
