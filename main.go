package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/payrail/x402/internal/challenge"
	"github.com/payrail/x402/internal/gateway"
	"github.com/payrail/x402/internal/payauth"
	"github.com/payrail/x402/internal/resource"
	"github.com/payrail/x402/internal/token"
)

var (
	commit    string
	buildDate string
)

func main() {
	configPath := flag.String("config", "", "location of config file. If non is specified config will be loaded from the environment")
	flag.Parse()

	log.Printf("build info: commit: %v date: %v\n", commit, buildDate)

	var (
		cfg Config
		err error
	)
	if *configPath != "" {
		log.Printf("loading config from file %q\n", *configPath)
		err = cfg.Load(*configPath)
	} else {
		log.Println("loading config from env")
		err = cfg.LoadFromEnv()
	}
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}

	// Protocol engine setup
	challenges := challenge.New(time.Duration(cfg.ChallengeTTLMinutes) * time.Minute)
	tokens := token.New(time.Duration(cfg.TokenTTLMinutes) * time.Minute)

	gw, err := gateway.New(challenges, tokens, gateway.PrefixVerifier{APIKey: cfg.APIKey})
	if err != nil {
		log.Printf("gateway err: %v\n", err)
		os.Exit(1)
	}

	// The signed-authorization path is only wired when a key is
	// configured; without it the guard accepts bearer tokens only.
	var payments gateway.PaymentAccepter
	if cfg.PaymentHMACKey != "" {
		payments, err = payauth.NewVerifier(payauth.HMACVerifier{Key: []byte(cfg.PaymentHMACKey)})
		if err != nil {
			log.Printf("payauth err: %v\n", err)
			os.Exit(1)
		}
	}

	h := &handlers{
		config:  cfg,
		gateway: gw,
		guard:   gateway.NewGuard(challenges, tokens, payments),
		pricing: pricingFromConfig(cfg),
	}

	port := fmt.Sprintf(":%d", cfg.Port)

	log.Printf("api listening on %v\n", port)

	http.ListenAndServe(port, newRouter(h, cfg))
}

func newRouter(h *handlers, cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Access-Token", "X-PAYMENT"},
		ExposedHeaders:   []string{"WWW-Authenticate"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metricsMiddleware)

	r.Get("/", h.handleIndex)
	r.With(rateLimit(cfg.PaymentRateBurst, cfg.PaymentRatePerSecond)).Post("/payment", h.handlePayment)
	r.Get("/api/weather", h.handleWeather)
	r.Get("/api/stock_data", h.handleStockData)
	r.Get("/api/news", h.handleNews)
	r.Post("/api/translation", h.handleTranslation)
	r.Post("/api/data_analysis", h.handleDataAnalysis)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func pricingFromConfig(cfg Config) map[string]float64 {
	pricing := make(map[string]float64, len(resource.DefaultPricing))
	for name, cost := range resource.DefaultPricing {
		pricing[name] = cost
	}
	for _, opt := range cfg.ResourceOptions {
		pricing[opt.Name] = opt.Cost
	}
	return pricing
}
