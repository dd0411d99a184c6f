// handlers/engine_routes.go
package handlers

import (
	"strconv"

	"content-unlock-service/middleware"
	"content-unlock-service/models"
	"content-unlock-service/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func SetupEngineRoutes(app *fiber.App, engine *services.Engine, limiter *middleware.RateLimiter, log *zap.Logger) {
	// every route below needs the caller's messaging user id
	secured := app.Group("/", middleware.UserContextMiddleware(log))

	secured.Post("/sessions/start", func(c *fiber.Ctx) error {
		var req struct {
			Payload string `json:"payload"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid JSON")
			}
		}
		res, err := engine.Start(c.UserContext(), middleware.UserID(c), req.Payload)
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(res)
	})

	secured.Post("/sessions/events", func(c *fiber.Ctx) error {
		var req struct {
			Event  models.SessionEvent `json:"event"`
			ItemID *int64              `json:"item_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON")
		}
		sess, err := engine.Sessions.Apply(c.UserContext(), middleware.UserID(c), req.Event, req.ItemID)
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(sess)
	})

	secured.Get("/sessions/current", func(c *fiber.Ctx) error {
		sess, err := engine.Sessions.Current(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(sess)
	})

	secured.Get("/me", func(c *fiber.Ctx) error {
		acct, err := engine.Accounts.GetAccount(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(acct)
	})

	secured.Get("/me/balance", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		balance, err := engine.GetBalance(c.UserContext(), userID)
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(fiber.Map{"user_id": userID, "coin_balance": balance})
	})

	secured.Get("/me/ledger", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		entries, err := engine.Accounts.History(c.UserContext(), middleware.UserID(c), limit)
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(entries)
	})

	secured.Get("/me/ledger/stream", StreamLedgerSSE(engine.Accounts, log))

	secured.Get("/me/purchases", func(c *fiber.Ctx) error {
		records, err := engine.Purchases.Owned(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(records)
	})

	secured.Get("/me/referral-link", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		count, err := engine.Referrals.InviteCount(c.UserContext(), userID)
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"link":             services.ReferralLink(engine.BotUsername, userID),
			"invite_count":     count,
			"reward_threshold": engine.Rewards.Policy.Threshold,
			"reward_coins":     engine.Rewards.Policy.Coins,
		})
	})

	secured.Post("/referrals", limiter.Handler(), func(c *fiber.Ctx) error {
		var req struct {
			InviterID int64 `json:"inviter_id"`
		}
		if err := c.BodyParser(&req); err != nil || req.InviterID <= 0 {
			return badRequest(c, "inviter_id is required")
		}
		res, err := engine.ProcessReferral(c.UserContext(), req.InviterID, middleware.UserID(c))
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(res)
	})

	secured.Get("/catalog", func(c *fiber.Ctx) error {
		items, err := engine.ListCatalog(c.UserContext())
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(items)
	})

	secured.Get("/catalog/:item_id/quote", func(c *fiber.Ctx) error {
		itemID, ok := itemParam(c)
		if !ok {
			return badRequest(c, "invalid item id")
		}
		quote, err := engine.Access.Quote(c.UserContext(), middleware.UserID(c), itemID)
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(quote)
	})

	secured.Get("/catalog/:item_id/access", func(c *fiber.Ctx) error {
		itemID, ok := itemParam(c)
		if !ok {
			return badRequest(c, "invalid item id")
		}
		allowed, err := engine.Access.CanView(c.UserContext(), middleware.UserID(c), itemID)
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(fiber.Map{"item_id": itemID, "has_access": allowed})
	})

	secured.Get("/catalog/:item_id/locator", func(c *fiber.Ctx) error {
		itemID, ok := itemParam(c)
		if !ok {
			return badRequest(c, "invalid item id")
		}
		locator, err := engine.Access.Locator(c.UserContext(), middleware.UserID(c), itemID)
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(fiber.Map{"item_id": itemID, "locator": locator})
	})

	secured.Post("/purchases", limiter.Handler(), func(c *fiber.Ctx) error {
		var req struct {
			ItemID int64 `json:"item_id"`
		}
		if err := c.BodyParser(&req); err != nil || req.ItemID <= 0 {
			return badRequest(c, "item_id is required")
		}
		res, err := engine.Purchase(c.UserContext(), middleware.UserID(c), req.ItemID)
		if err != nil {
			return renderError(c, log, err)
		}
		status := fiber.StatusCreated
		if res.Status == models.PurchaseAlreadyOwned {
			status = fiber.StatusOK
		}
		return c.Status(status).JSON(res)
	})

	// operator "recharge"
	admin := secured.Group("/admin", middleware.RequireRole("admin"))

	admin.Post("/grants", func(c *fiber.Ctx) error {
		var req struct {
			UserID int64  `json:"user_id"`
			Amount int64  `json:"amount"`
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil || req.UserID <= 0 {
			return badRequest(c, "user_id and amount are required")
		}
		balance, err := engine.Grant(c.UserContext(), req.UserID, req.Amount, req.Reason)
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"message":      "coins granted",
			"user_id":      req.UserID,
			"amount":       req.Amount,
			"coin_balance": balance,
		})
	})
}

func itemParam(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("item_id"), 10, 64)
	return id, err == nil && id > 0
}
