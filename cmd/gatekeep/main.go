package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/AlexKimmel/gatekeep/internal/auth"
	"github.com/AlexKimmel/gatekeep/internal/config"
	"github.com/AlexKimmel/gatekeep/internal/gateway"
	"github.com/AlexKimmel/gatekeep/internal/obs"
	"github.com/AlexKimmel/gatekeep/internal/ratelimit"
	"github.com/AlexKimmel/gatekeep/internal/ratelimit/memory"
	"github.com/AlexKimmel/gatekeep/internal/ratelimit/redisstore"
)

func main() {

	cfg, err := config.Load("./config.yaml")

	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := obs.SetupLogger(cfg.Observability.LogLevel)
	logger.Info().Msg("Setup logger")

	reg := prometheus.NewRegistry()
	metrics := obs.NewMetrics(reg)
	hooks := obs.NewHooks(logger, metrics)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeStore()

	keys := map[string]auth.Identity{} // secret -> identity
	plans := map[string]string{}       // userID -> plan
	for _, k := range cfg.Auth.Keys {
		if k.Secret == "" || k.ID == "" {
			continue
		}
		keys[k.Secret] = auth.Identity{UserID: k.ID, Plan: k.Plan}
		if k.Plan != "" {
			plans[k.ID] = k.Plan
		}
	}
	authStore := auth.NewStatic(cfg.Auth.Header, keys)

	defaultPolicy := policyFromCfg(cfg.Limits.Default)

	// Plan-tier policies for known users, config default for everyone else.
	resolver := func(_ context.Context, req *ratelimit.Request) (ratelimit.Policy, error) {
		if plan, ok := plans[req.UserID]; ok {
			p, err := ratelimit.PlanPolicy(plan)
			if err != nil {
				return ratelimit.Policy{}, err
			}
			p.KeyStrategy = ratelimit.KeyUser
			return p, nil
		}
		return defaultPolicy, nil
	}

	lim, err := ratelimit.New(store, defaultPolicy,
		ratelimit.WithResolver(resolver),
		ratelimit.WithTrustedProxies(cfg.Limits.TrustedProxies...),
		ratelimit.WithPrivateIPExemption(cfg.Limits.ExemptPrivate()),
		ratelimit.WithHooks(hooks),
	)
	if err != nil {
		log.Fatalf("build limiter: %v", err)
	}

	quotas := ratelimit.NewQuotaManager(store, ratelimit.WithQuotaHooks(hooks))
	penalties := ratelimit.NewPenaltyManager(store,
		ratelimit.WithPenaltyThreshold(cfg.Penalty.Threshold),
		ratelimit.WithPenaltyDuration(time.Duration(cfg.Penalty.DurationSeconds)*time.Second),
		ratelimit.WithPenaltyDecayRate(cfg.Penalty.DecayPerHour),
		ratelimit.WithPenaltyMultiplier(cfg.Penalty.Multiplier),
		ratelimit.WithPenaltyHooks(hooks),
	)

	// Rejected checks count toward the caller's abuse score; enough of
	// them opens a penalty window that Penalty middleware enforces.
	onBlocked := func(r *http.Request, _ ratelimit.Decision) {
		id, ok := auth.IdentityFrom(r.Context())
		if !ok || id.UserID == "" {
			return
		}
		if _, err := penalties.RecordViolation(r.Context(), id.UserID, 1); err != nil {
			logger.Error().Err(err).Str("user", id.UserID).Msg("record violation")
		}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("v.0.1.0"))
	})

	mux.Handle(cfg.Observability.PrometheusPath,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	skip := map[string]struct{}{
		"/health":                        {},
		"/version":                       {},
		cfg.Observability.PrometheusPath: {},
	}

	mws := []gateway.Middleware{
		obs.Logger(logger),
		metrics.Middleware(skip),
		gateway.BodyLimit(cfg.Server.MaxBody()),
		authStore.Middleware(skip),
		gateway.Penalty(penalties, skip),
		gateway.RateLimit(lim, skip, onBlocked),
	}
	if cfg.Quota.Limit > 0 {
		mws = append(mws, gateway.Quota(quotas, ratelimit.Quota{
			Name:   cfg.Quota.Name,
			Limit:  cfg.Quota.Limit,
			Period: ratelimit.QuotaPeriod(cfg.Quota.Period),
		}, skip))
	}

	handler := gateway.Chain(mux, mws...)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout(),
		ReadTimeout:       cfg.Server.ReadTimeout(),
	}

	// start
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	log.Printf("bye")
}

func openStore(cfg *config.Root) (ratelimit.Store, func(), error) {
	switch cfg.Store.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		st, err := redisstore.New(client)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return memory.New(), func() {}, nil
	}
}

func policyFromCfg(p config.Policy) ratelimit.Policy {
	return ratelimit.Policy{
		Name:          p.Name,
		Limit:         p.Limit,
		Window:        p.WindowSeconds,
		Burst:         p.Burst,
		Cost:          p.Cost,
		Algorithm:     ratelimit.Algorithm(p.Algorithm),
		KeyStrategy:   ratelimit.KeyStrategy(p.KeyStrategy),
		Exemptions:    p.Exemptions,
		BlockDuration: p.BlockDurationSeconds,
		Precision:     p.Precision,
	}
}
