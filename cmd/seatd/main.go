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

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"seat-booking-companion/config"
	"seat-booking-companion/internal/api"
	"seat-booking-companion/internal/backend"
	"seat-booking-companion/internal/booking"
	"seat-booking-companion/internal/cache"
	"seat-booking-companion/internal/db"
	"seat-booking-companion/internal/gateway"
	"seat-booking-companion/internal/invitation"
	"seat-booking-companion/internal/notification"
	"seat-booking-companion/internal/partner"
	"seat-booking-companion/internal/session"
	"seat-booking-companion/internal/store"
	"seat-booking-companion/internal/venue"
)

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("failed to read .env: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	setupLogging(cfg.Server)
	log.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Backend.BaseURL == "" {
		log.Fatal("backend.base_url must be configured")
	}

	venueLoc, err := time.LoadLocation(cfg.Venue.Timezone)
	if err != nil {
		log.Fatalf("invalid venue timezone %q: %v", cfg.Venue.Timezone, err)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	appStore := store.NewGormStore(gormDB)
	log.Println("local storage initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := gateway.New(gateway.Options{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		HTTPProxy:  cfg.Backend.HTTPProxy,
		Headers:    cfg.Backend.Headers,
		MaxReplays: cfg.Backend.MaxReplays,
		Limiter:    rate.NewLimiter(rate.Limit(cfg.Backend.RequestsPerSec), cfg.Backend.RequestBurst),
	}, appStore)
	client := backend.New(gw)

	cacheMgr := cache.New(appStore,
		time.Duration(cfg.Cache.DefaultTTLSeconds)*time.Second,
		time.Duration(cfg.Cache.CleanupIntervalSeconds)*time.Second)
	if err := cacheMgr.Load(ctx); err != nil {
		log.Warnf("starting with an empty cache: %v", err)
	}
	reload, err := cacheMgr.CheckVersion(ctx, cfg.BuildVersion)
	if err != nil {
		log.Warnf("version check failed: %v", err)
	}
	if reload {
		// New build: bypass responses cached by intermediaries.
		gw.SetCacheBuster(cfg.BuildVersion)
	}

	sess := session.New(client, appStore, cfg.Auth, cacheMgr)
	sess.Restore(ctx)
	gw.SetReauthenticator(sess)
	authenticated, err := sess.CheckAuthStatus(ctx)
	if err != nil {
		log.Warnf("could not verify stored session: %v", err)
	}
	if !authenticated && (cfg.Auth.Password != "" || cfg.Auth.FeishuCode != "") {
		if _, err := sess.Reauthenticate(ctx); err != nil {
			log.Warnf("automatic sign-in failed: %v", err)
		} else if _, err := sess.CheckAuthStatus(ctx); err != nil {
			log.Warnf("could not load profile after automatic sign-in: %v", err)
		}
	}

	venueStore := venue.NewStore(client, sess, cacheMgr)
	if reload {
		err = venueStore.Reload(ctx)
	} else {
		err = venueStore.Initialize(ctx)
	}
	if err != nil {
		log.Warnf("venue data incomplete: %v", err)
	}

	bookingStore := booking.NewStore(client, cacheMgr, venueLoc)
	bookingStore.Restore(ctx)
	partnerStore := partner.NewStore(client, venueStore)
	defer partnerStore.Stop()

	poller := invitation.NewPoller(client, bookingStore, sess, invitation.NewVisibility(), cacheMgr, cfg.Poller.Interval)
	poller.Restore(ctx)
	sess.OnSessionLost(func() {
		bookingStore.Reset()
		poller.Reset()
	})

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		poller.SetNotifier(pool)
		log.Printf("web push enabled with %d worker(s)", cfg.WorkerPool.Size)
	} else {
		log.Println("VAPID keys are not configured; invitation pushes are disabled")
	}

	if cfg.Poller.Enabled && sess.State().Authenticated {
		poller.Start(ctx)
	}
	defer poller.Stop()

	router := api.NewRouter(cfg.Server, api.Deps{
		Store:       appStore,
		Session:     sess,
		Venue:       venueStore,
		Bookings:    bookingStore,
		Partners:    partnerStore,
		Invitations: poller,
		Admin:       client,
		Webpush:     webpushOptions,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server Shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

func setupLogging(cfg config.ServerConfig) {
	if cfg.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stdout)
}
