package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/router"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the order.paid consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func serve(parent context.Context, migrate bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if migrate {
		if err := runMigrate(ctx, a.db); err != nil {
			return err
		}
	}

	if a.cfg.RabbitURL != "" {
		go func() {
			if err := queue.StartOrderPaidConsumer(ctx, a.cfg.RabbitURL, a.engine.HandleOrderPaid); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("order-consumer: stopped: %v", err)
			}
		}()
	}

	e := newEcho(a)
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.Shutdown(shutCtx)
	}()

	addr := ":" + a.cfg.Port
	log.Printf("listening on %s (env=%s)", addr, a.cfg.Env)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newEcho(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), a.rdb)
	cacheCfg := config.LoadCacheConfig()
	cache := middleware.NewRedisCache(cacheCfg, a.rdb)
	invalidate := middleware.NewCacheInvalidator(cacheCfg, a.rdb)
	secret := a.cfg.JWTSecret

	router.RegisterRoutes(e, a.db)
	router.RegisterAuth(e, handler.NewAuthHandler(a.cfg, a.users, a.tokens), secret)
	router.RegisterCatalog(e, &handler.CatalogHandler{
		Events:     a.events,
		Tiers:      a.tiers,
		Categories: a.cats,
	}, secret, cache, invalidate)
	router.RegisterOrders(e, &handler.OrderHandler{
		Events:      a.events,
		Checkout:    a.checkout,
		Engine:      a.engine,
		Orders:      a.orders,
		Issued:      a.tickets,
		Users:       a.users,
		CallbackURL: a.pay.CallbackURL,
		SiteURL:     a.ful.PublicBaseURL,
	}, secret, limiter)
	router.RegisterTickets(e, &handler.TicketHandler{
		Events:  a.events,
		Tickets: a.tickets,
		Images:  a.media,
	}, secret)
	router.RegisterWallet(e, &handler.WalletHandler{
		Wallets:     a.wallets,
		Users:       a.users,
		Gateway:     a.gateway,
		CallbackURL: a.pay.CallbackURL,
	}, secret, limiter)
	return e
}
