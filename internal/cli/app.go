package cli

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/checkout"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/fulfillment"
	"github.com/iliyamo/event-ticketing/internal/notify"
	"github.com/iliyamo/event-ticketing/internal/payment"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// app holds the wired dependencies shared by serve and reconcile.
type app struct {
	cfg     config.Config
	pay     config.PaymentConfig
	ful     config.FulfillmentConfig
	db      *sql.DB
	rdb     *redis.Client
	gateway *payment.Client
	media   fulfillment.FileStore

	users    *repository.UserRepo
	tokens   *repository.TokenRepo
	events   *repository.EventRepo
	tiers    *repository.TierRepo
	cats     *repository.CategoryRepo
	orders   *repository.OrderRepo
	tickets  *repository.PurchasedTicketRepo
	wallets  *repository.WalletRepo
	checkout *checkout.Checkout
	engine   *checkout.Engine
}

func newApp() (*app, error) {
	a := &app{
		cfg: config.Load(),
		pay: config.LoadPaymentConfig(),
		ful: config.LoadFulfillmentConfig(),
	}
	db, err := database.Open(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db

	a.rdb = config.NewRedisClient()
	if a.rdb == nil {
		log.Printf("redis: unavailable; rate limiting, caching and fulfillment locks disabled")
	}

	mailer, err := notify.New(config.LoadMailConfig())
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a.users = repository.NewUserRepo(db)
	a.tokens = repository.NewTokenRepo(db)
	a.events = repository.NewEventRepo(db)
	a.tiers = repository.NewTierRepo(db)
	a.cats = repository.NewCategoryRepo(db)
	a.orders = repository.NewOrderRepo(db)
	a.tickets = repository.NewPurchasedTicketRepo(db)
	a.wallets = repository.NewWalletRepo(db)
	a.gateway = payment.NewClient(a.pay)
	a.media = fulfillment.FileStore{Root: a.ful.MediaRoot}

	fulfiller := &fulfillment.Fulfiller{
		Tickets: a.tickets,
		QR:      fulfillment.QRRenderer{},
		Media:   a.media,
		Mail:    mailer,
		Locker:  fulfillment.NewRedisLocker(a.rdb, "lock"),
		LockTTL: a.ful.LockTTL,
	}
	a.checkout = &checkout.Checkout{
		Assembler: &checkout.Assembler{Orders: a.orders},
		Orders:    a.orders,
		Gateway:   a.gateway,
	}
	a.engine = &checkout.Engine{
		Orders:    a.orders,
		Gateway:   a.gateway,
		Fulfiller: fulfiller,
		SiteURL:   a.ful.PublicBaseURL,
	}
	if a.cfg.RabbitURL != "" {
		a.engine.Publisher = queue.NewPublisher(a.cfg.RabbitURL)
	}
	return a, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.db.Close()
}
