package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/foresightlabs/foresight/internal/server"
	"github.com/foresightlabs/foresight/internal/server/handler"
	"github.com/foresightlabs/foresight/internal/server/ws"
	"github.com/foresightlabs/foresight/internal/service"
)

// shutdownTimeout bounds graceful HTTP shutdown on exit.
const shutdownTimeout = 10 * time.Second

// ServerMode runs the HTTP + WebSocket API server together with the
// deadline closer that sweeps expired markets. It blocks until the context
// is cancelled or a component fails.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	hub := ws.NewHub(deps.Bus, a.logger)

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		AdminKey:     a.cfg.Server.AdminKey,
		AdminKeyHash: a.cfg.Server.AdminKeyHash,
	}, server.Handlers{
		Health:      handler.NewHealthHandler(),
		Markets:     handler.NewMarketHandler(deps.Markets, a.logger),
		Trades:      handler.NewTradeHandler(deps.Trades, a.logger),
		Settlements: handler.NewSettlementHandler(deps.Settlements, a.logger),
		Users:       handler.NewUserHandler(deps.Users, a.logger),
		Audit:       handler.NewAuditHandler(deps.Stores.Audit, a.logger),
	}, hub, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := hub.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("app: ws hub: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		a.runDeadlineCloser(gctx, deps)
		return nil
	})

	if deps.Notifier.Enabled() {
		g.Go(func() error {
			a.runAlertListener(gctx, deps)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

// runDeadlineCloser periodically closes markets whose deadline has passed so
// expired markets stop accepting trades without operator action.
func (a *App) runDeadlineCloser(ctx context.Context, deps *Dependencies) {
	interval := a.cfg.Engine.CloseInterval.Duration
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.InfoContext(ctx, "deadline closer started",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			closed, err := deps.Markets.CloseExpired(ctx, now)
			if err != nil {
				a.logger.WarnContext(ctx, "deadline sweep failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if closed > 0 {
				a.logger.InfoContext(ctx, "closed expired markets",
					slog.Int("count", closed),
				)
			}
		}
	}
}

// runAlertListener forwards market lifecycle and settlement events from the
// signal bus to the configured operator alert channels.
func (a *App) runAlertListener(ctx context.Context, deps *Dependencies) {
	channels := []string{service.ChannelMarkets, service.ChannelSettlements}

	for _, channel := range channels {
		msgCh, err := deps.Bus.Subscribe(ctx, channel)
		if err != nil {
			a.logger.WarnContext(ctx, "alert listener subscribe failed",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
			continue
		}

		go func(channel string, msgCh <-chan []byte) {
			for {
				select {
				case <-ctx.Done():
					return
				case data, ok := <-msgCh:
					if !ok {
						return
					}
					var ev service.Event
					if err := json.Unmarshal(data, &ev); err != nil {
						continue
					}
					title := fmt.Sprintf("foresight: %s", ev.Type)
					message := fmt.Sprintf("market %s at %s", ev.MarketID, ev.At.Format(time.RFC3339))
					if err := deps.Notifier.Notify(ctx, ev.Type, title, message); err != nil {
						a.logger.WarnContext(ctx, "alert delivery failed",
							slog.String("event", ev.Type),
							slog.String("error", err.Error()),
						)
					}
				}
			}
		}(channel, msgCh)
	}
}

// ArchiveMode runs a one-shot archival pass: settled-market ledgers plus
// trade and reputation history older than the retention window are uploaded
// to object storage, then the process exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return errors.New("app: archive mode requires archive storage to be enabled")
	}

	retention := a.cfg.Archive.RetentionDays
	if retention <= 0 {
		retention = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retention)

	a.logger.InfoContext(ctx, "archival pass starting",
		slog.Time("cutoff", cutoff),
	)

	settlements, err := deps.Archiver.ArchiveSettlements(ctx)
	if err != nil {
		return fmt.Errorf("app: archive settlements: %w", err)
	}

	trades, err := deps.Archiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive trades: %w", err)
	}

	reputation, err := deps.Archiver.ArchiveReputation(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive reputation: %w", err)
	}

	inventory, err := deps.Archiver.Inventory(ctx)
	if err != nil {
		return fmt.Errorf("app: archive inventory: %w", err)
	}
	var totalBytes int64
	for _, obj := range inventory {
		totalBytes += obj.Size
	}

	a.logger.InfoContext(ctx, "archival pass complete",
		slog.Int64("settlements", settlements),
		slog.Int64("trades", trades),
		slog.Int64("reputation_records", reputation),
		slog.Int("archive_objects", len(inventory)),
		slog.Int64("archive_bytes", totalBytes),
	)
	return nil
}
