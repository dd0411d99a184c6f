package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"content-unlock-service/middleware"
	"content-unlock-service/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const ledgerPollInterval = 2 * time.Second

// ledgerStream polls the caller's ledger through the account service, so
// every poll runs under the store timeout.
type ledgerStream struct {
	accounts *services.AccountService
	log      *zap.Logger
	interval time.Duration
}

// StreamLedgerSSE pushes the caller's new ledger entries (rewards, grants,
// purchases) as server-sent events. It polls the store, so any replica can
// serve any user.
func StreamLedgerSSE(accounts *services.AccountService, log *zap.Logger) fiber.Handler {
	s := &ledgerStream{accounts: accounts, log: log, interval: ledgerPollInterval}

	return func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		cursor := time.Now().UTC()
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			// the request context is gone once the handler returns; the stream
			// ends when a flush fails
			s.run(context.Background(), w, userID, cursor)
		})
		return nil
	}
}

// run writes entries newer than cursor until ctx ends or the client goes away.
func (s *ledgerStream) run(ctx context.Context, w *bufio.Writer, userID int64, cursor time.Time) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	w.WriteString(":\n\n")
	if err := w.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		entries, err := s.accounts.HistorySince(ctx, userID, cursor, 100)
		if err != nil {
			s.log.Warn("[LEDGER_SSE] query failed", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}

		if len(entries) == 0 {
			// keepalive doubles as disconnect detection
			w.WriteString(":\n\n")
		} else {
			cursor = entries[len(entries)-1].CreatedAt
			for _, e := range entries {
				payload, _ := json.Marshal(e)
				fmt.Fprintf(w, "event: ledger\ndata: %s\n\n", payload)
			}
		}

		if err := w.Flush(); err != nil {
			return // client went away
		}
	}
}
