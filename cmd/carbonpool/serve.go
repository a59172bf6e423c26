package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carbonPool/internal/api"
	"carbonPool/internal/config"
	"carbonPool/internal/eventlog"
	"carbonPool/internal/ledger"
	"carbonPool/internal/metrics"
	"carbonPool/internal/model"
	"carbonPool/internal/pool"
	"carbonPool/internal/storage"
	"carbonPool/internal/storage/journal"
	"carbonPool/internal/storage/postgres"
)

type poolParams struct {
	address  common.Address
	owner    common.Address
	issuer   common.Address
	rate     *uint256.Int
	fee      pool.FeeSchedule
	reserve  []config.Allocation
	credits  []config.Allocation
	info     model.PoolInfo
	bindInit bool
	opWait   time.Duration
}

func parsePoolParams(cfg config.ServeConfig) (poolParams, error) {
	var p poolParams
	var err error
	if p.address, err = config.ParseAddress(cfg.PoolAddress); err != nil {
		return p, fmt.Errorf("pool address: %w", err)
	}
	if p.owner, err = config.ParseAddress(cfg.Owner); err != nil {
		return p, fmt.Errorf("owner: %w", err)
	}
	p.issuer = p.owner
	if cfg.Issuer != "" {
		if p.issuer, err = config.ParseAddress(cfg.Issuer); err != nil {
			return p, fmt.Errorf("issuer: %w", err)
		}
	}
	if p.rate, err = config.ParseAmount(cfg.ExchangeRate); err != nil {
		return p, fmt.Errorf("exchange rate: %w", err)
	}
	if p.fee.Numerator, err = config.ParseAmount(cfg.FeeNumerator); err != nil {
		return p, fmt.Errorf("fee numerator: %w", err)
	}
	if p.fee.Denominator, err = config.ParseAmount(cfg.FeeDenominator); err != nil {
		return p, fmt.Errorf("fee denominator: %w", err)
	}
	if p.reserve, err = config.ParseAllocations(cfg.GenesisReserve); err != nil {
		return p, fmt.Errorf("genesis reserve: %w", err)
	}
	if p.credits, err = config.ParseAllocations(cfg.GenesisCredits); err != nil {
		return p, fmt.Errorf("genesis credits: %w", err)
	}
	p.bindInit = cfg.BindShares
	p.opWait = cfg.OperationWait
	p.info = model.PoolInfo{
		ChainID:        cfg.ChainID,
		Address:        p.address.Hex(),
		Owner:          p.owner.Hex(),
		ExchangeRate:   p.rate.Dec(),
		FeeNumerator:   p.fee.Numerator.Dec(),
		FeeDenominator: p.fee.Denominator.Dec(),
	}
	return p, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	params, err := parsePoolParams(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	encoder, err := eventlog.NewEncoder(cfg.ChainID, params.address)
	if err != nil {
		return err
	}
	store, err := journal.Open(cfg.JournalPath, encoder, logger.Named("journal"))
	if err != nil {
		return err
	}
	defer store.Close()

	venue, err := openVenue(ctx, store, params, logger)
	if err != nil {
		return err
	}

	m := metrics.New("carbonpool", nil)
	m.SetState(venue.Pool.State())
	venue.Pool.Subscribe(m.Observe(venue.Pool))

	g, gctx := errgroup.WithContext(ctx)

	var sinks []storage.Storage
	if cfg.EventsOut != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.EventsOut))
	}
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		if err := pg.UpsertPool(ctx, venue.Info); err != nil {
			return fmt.Errorf("upsert pool: %w", err)
		}
		sinks = append(sinks, postgres.EventArchive{Store: pg})
	}
	if len(sinks) > 0 {
		archiver := storage.NewArchiver(4096, 200, time.Second, logger.Named("archive"), sinks...)
		archiver.OnDrop = func(model.LogRecord) { m.ArchiveDropped.Inc() }
		venue.Pool.Subscribe(func(ev pool.Event) {
			record, err := encoder.Encode(ev)
			if err != nil {
				logger.Error("encode event", zap.Uint64("seq", ev.Seq), zap.Error(err))
				return
			}
			archiver.Enqueue(record)
		})
		g.Go(func() error { return archiver.Run(gctx) })
	}

	if cfg.AdminToken == "" {
		logger.Warn("no admin token configured, admin and approval routes are disabled")
	}
	srv, err := api.NewServer(api.Config{
		CORSOrigins: cfg.CORSOrigins,
		AdminToken:  cfg.AdminToken,
	}, venue, m, logger.Named("api"))
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("serve start",
			zap.String("listen", cfg.Listen),
			zap.String("journal", cfg.JournalPath),
			zap.String("pool", params.address.Hex()),
			zap.String("events_out", cfg.EventsOut),
			zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("serve stopped", zap.Uint64("seq", venue.Pool.State().Sequence))
	return nil
}

// openVenue restores the pool and its ledgers from the journal, or creates
// them with the genesis allocations on first start.
func openVenue(ctx context.Context, store *journal.Store, params poolParams, logger *zap.Logger) (api.Venue, error) {
	venue := api.Venue{
		Info:    params.info,
		Credits: ledger.NewToken("credits", logger.Named("credits")),
		Shares:  ledger.NewToken("shares", logger.Named("shares")),
		Bank:    ledger.NewBank(logger.Named("bank")),
		Journal: store,
	}
	store.Track(venue.Credits, venue.Shares, venue.Bank)

	stored, hasInfo, err := store.LoadPoolInfo()
	if err != nil {
		return api.Venue{}, err
	}
	if hasInfo {
		if err := samePool(stored, params.info); err != nil {
			return api.Venue{}, err
		}
	}

	restored, err := store.RestoreLedgers()
	if err != nil {
		return api.Venue{}, fmt.Errorf("restore ledgers: %w", err)
	}
	fresh := restored == 0
	if fresh {
		if err := seedLedgers(ctx, venue, params); err != nil {
			return api.Venue{}, err
		}
	}
	if !hasInfo {
		if err := store.SavePoolInfo(params.info); err != nil {
			return api.Venue{}, err
		}
	}

	venue.Pool, err = pool.New(pool.Config{
		Address:      params.address,
		Owner:        params.owner,
		ExchangeRate: params.rate,
		Fee:          params.fee,
		Credits:      venue.Credits,
		Reserve:      venue.Bank,
		Journal:      store,

		OperationWait: params.opWait,
	}, logger.Named("pool"))
	if err != nil {
		return api.Venue{}, err
	}

	st, ok, err := store.LoadState()
	if err != nil {
		return api.Venue{}, err
	}
	if ok {
		if err := venue.Pool.Restore(st, venue.Shares); err != nil {
			return api.Venue{}, fmt.Errorf("restore pool: %w", err)
		}
	} else if params.bindInit {
		if err := venue.Pool.BindShareLedger(ctx, params.owner, venue.Shares); err != nil {
			return api.Venue{}, fmt.Errorf("bind share ledger: %w", err)
		}
	}

	logger.Info("venue ready",
		zap.Bool("fresh", fresh),
		zap.Int("ledgers_restored", restored),
		zap.Uint64("seq", venue.Pool.State().Sequence),
		zap.String("status", string(venue.Pool.State().Status())),
	)
	return venue, nil
}

func seedLedgers(ctx context.Context, venue api.Venue, params poolParams) error {
	if err := venue.Credits.SetMinter(params.issuer); err != nil {
		return err
	}
	if err := venue.Shares.SetMinter(params.address); err != nil {
		return err
	}
	for _, alloc := range params.reserve {
		if err := venue.Bank.Fund(alloc.Address, alloc.Amount); err != nil {
			return fmt.Errorf("fund %s: %w", alloc.Address.Hex(), err)
		}
	}
	for _, alloc := range params.credits {
		if err := venue.Credits.Mint(ctx, params.issuer, alloc.Address, alloc.Amount); err != nil {
			return fmt.Errorf("issue credits to %s: %w", alloc.Address.Hex(), err)
		}
	}
	return venue.Journal.Checkpoint(ctx)
}

func samePool(stored, configured model.PoolInfo) error {
	if stored.ChainID != configured.ChainID ||
		stored.Address != configured.Address ||
		stored.Owner != configured.Owner ||
		stored.ExchangeRate != configured.ExchangeRate ||
		stored.FeeNumerator != configured.FeeNumerator ||
		stored.FeeDenominator != configured.FeeDenominator {
		return fmt.Errorf("journal belongs to pool %s (rate %s, fee %s/%s), configured %s (rate %s, fee %s/%s)",
			stored.Address, stored.ExchangeRate, stored.FeeNumerator, stored.FeeDenominator,
			configured.Address, configured.ExchangeRate, configured.FeeNumerator, configured.FeeDenominator)
	}
	return nil
}
