package main

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/streetfoodconnect/marketplace-backend/api/controllers"
	"github.com/streetfoodconnect/marketplace-backend/api/routes"
	"github.com/streetfoodconnect/marketplace-backend/internal/analytics"
	"github.com/streetfoodconnect/marketplace-backend/internal/app"
	"github.com/streetfoodconnect/marketplace-backend/internal/auth"
	"github.com/streetfoodconnect/marketplace-backend/internal/inventory"
	"github.com/streetfoodconnect/marketplace-backend/internal/orders"
	"github.com/streetfoodconnect/marketplace-backend/internal/realtime"
	"github.com/streetfoodconnect/marketplace-backend/internal/reviews"
	"github.com/streetfoodconnect/marketplace-backend/internal/search"
	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/auth/session"
	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/metrics"
	"github.com/streetfoodconnect/marketplace-backend/pkg/migrate"
	"github.com/streetfoodconnect/marketplace-backend/pkg/outbox"
	"github.com/streetfoodconnect/marketplace-backend/pkg/redis"
)

const (
	serviceName     = "api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	app.Main(serviceName, run)
}

// run serves HTTP and the realtime hub until ctx ends or one of them fails.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer app.Close(ctx, logg, "db", dbClient)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer app.Close(ctx, logg, "redis", redisClient)

	sessions, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := realtime.NewHub(realtime.HubParams{
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		SendBuffer:     cfg.Realtime.SendBuffer,
		Metrics:        metrics.NewRealtimeMetrics(reg),
		Logger:         logg,
	})
	publisher := realtime.NewRedisPublisher(redisClient)

	deps, err := buildServices(cfg, logg, dbClient, redisClient, sessions, publisher)
	if err != nil {
		return err
	}
	deps.Config = cfg
	deps.Logger = logg
	deps.Health = map[string]controllers.Pinger{"db": dbClient, "redis": redisClient}
	deps.Store = redisClient
	deps.Sessions = sessions
	deps.Gatherer = reg
	deps.HTTPMetrics = metrics.NewHTTPMetrics(reg)
	deps.Hub = hub
	deps.Realtime = publisher

	// Platforms such as Heroku inject PORT; it wins over SFC_APP_PORT.
	addr := ":" + cmp.Or(os.Getenv("PORT"), cfg.App.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx = logg.WithFields(ctx, map[string]any{"addr": addr, "instance": cmp.Or(os.Getenv("DYNO"), "local")})
	logg.Info(ctx, "api server starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error { return realtime.NewRelay(redisClient, hub, logg).Run(gctx) })
	g.Go(func() error {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		logg.Info(ctx, "api server draining")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessions *session.Manager,
	publisher realtime.Publisher,
) (routes.Deps, error) {
	userRepo := users.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewEmitter(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	usersService, err := users.NewService(users.ServiceParams{
		Repository: userRepo,
		Logger:     logg,
		ChunkSize:  cfg.Analytics.LookupChunkSize,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	searchService, err := search.NewService(search.ServiceParams{
		Directory: usersService,
		Compare:   search.NewCompareStore(redisClient),
		Logger:    logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	analyticsService, err := analytics.NewService(analytics.ServiceParams{
		Orders:   ordersRepo,
		Profiles: usersService,
		TopN:     cfg.Analytics.TopN,
		Logger:   logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repository: ordersRepo,
		Users:      userRepo,
		DB:         dbClient,
		Outbox:     outboxSvc,
		Realtime:   publisher,
		Logger:     logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	inventoryService, err := inventory.NewService(inventory.ServiceParams{
		Repository: inventory.NewRepository(dbClient.DB()),
		Realtime:   publisher,
		Logger:     logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	reviewsService, err := reviews.NewService(reviews.ServiceParams{
		Repository: reviews.NewRepository(dbClient.DB()),
		Users:      userRepo,
		DB:         dbClient,
		Outbox:     outboxSvc,
		Realtime:   publisher,
		Logger:     logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		Auth:      authService,
		Register:  registerService,
		Users:     usersService,
		Search:    searchService,
		Orders:    ordersService,
		Inventory: inventoryService,
		Reviews:   reviewsService,
		Analytics: analyticsService,
	}, nil
}
