package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-fulfillment/internal/api"
	"github.com/example/ec-fulfillment/internal/auth"
	"github.com/example/ec-fulfillment/internal/config"
	"github.com/example/ec-fulfillment/internal/domain/cart"
	"github.com/example/ec-fulfillment/internal/domain/inventory"
	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/example/ec-fulfillment/internal/domain/payment"
	"github.com/example/ec-fulfillment/internal/domain/product"
	"github.com/example/ec-fulfillment/internal/domain/user"
	"github.com/example/ec-fulfillment/internal/infrastructure/cache"
	"github.com/example/ec-fulfillment/internal/infrastructure/kafka"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
	"github.com/example/ec-fulfillment/internal/notification"
	"github.com/example/ec-fulfillment/internal/query"
	"golang.org/x/crypto/bcrypt"
)

// stores groups the persistence the services are built on.
type stores struct {
	products product.Repository
	stock    inventory.StockStore
	carts    cart.Repository
	orders   order.Repository
	users    user.Store
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] EC Fulfillment")
	log.Println("[API] ========================================")
	log.Printf("[API] Storage: %s", cfg.Storage)

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("[API] Failed to open storage: %v", err)
	}
	defer st.close()

	// Catalog reads go through Redis when it is configured.
	var reader product.Reader = st.products
	var invalidator product.Invalidator
	var ledgerOpts []inventory.Option
	if cfg.RedisURL != "" {
		backend, err := cache.NewRedisBackend(cfg.RedisURL)
		if err != nil {
			log.Fatalf("[API] Failed to connect to Redis: %v", err)
		}
		defer backend.Close()
		cached := cache.NewCachedCatalog(st.products, st.stock, backend, cfg.CacheTTL)
		reader, invalidator = cached, cached
		ledgerOpts = append(ledgerOpts, inventory.WithChangeHook(cached.StockChanged))
		log.Printf("[API] Catalog cache: Redis (ttl %s)", cfg.CacheTTL)
	}

	// Notifications go to Kafka when brokers are configured, otherwise to the log.
	var sender notification.Sender = notification.LogSender{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		sender = notification.NewKafkaSender(producer)
		log.Printf("[API] Kafka: %v topic=%s", cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	dispatcher := notification.NewDispatcher(sender, cfg.NotifyTimeout)

	catalog := product.NewService(st.products, reader, invalidator)
	ledger := inventory.NewLedger(st.stock, ledgerOpts...)
	carts := cart.NewService(st.carts, reader)
	engine := order.NewEngine(st.orders, carts, reader, ledger, dispatcher)
	payments := payment.NewService(engine)
	queries := query.NewHandler(st.orders, st.products)

	userSvc := user.NewService(st.users, auth.NewHasher(bcrypt.DefaultCost))
	if err := userSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("[API] Failed to create admin account: %v", err)
	}
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)

	router := api.NewRouter(api.RouterConfig{
		Handlers:     api.NewHandlers(catalog, ledger, carts, engine, payments, queries),
		AuthHandlers: api.NewAuthHandlers(userSvc, jwtService),
		JWTService:   jwtService,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Server shutdown error: %v", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Printf("[API] Pending notifications dropped: %v", err)
	}
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		products := store.NewMemoryProductStore()
		return &stores{
			products: products,
			stock:    products,
			carts:    store.NewMemoryCartStore(),
			orders:   store.NewMemoryOrderStore(),
			users:    store.NewMemoryUserStore(),
		}, nil
	}

	if cfg.RunMigrations {
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		log.Println("[API] Migrations applied")
	}

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Println("[API] Connected to PostgreSQL")

	return &stores{
		products: store.NewPostgresProductStore(db),
		stock:    store.NewPgxStockStore(pool),
		carts:    store.NewPostgresCartStore(db),
		orders:   store.NewPostgresOrderStore(db),
		users:    store.NewPostgresUserStore(db),
		closers:  []func(){func() { db.Close() }, pool.Close},
	}, nil
}
