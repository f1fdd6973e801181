package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ferrybook/internal/clock"
	intconfig "ferrybook/internal/config"
	"ferrybook/internal/domain/models"
	router "ferrybook/internal/http"
	"ferrybook/internal/repositories"
	"ferrybook/internal/services"
	"ferrybook/internal/utils"

	"github.com/gin-gonic/gin"
)

const sweepInterval = time.Minute

func main() {
	env := intconfig.LoadEnv()
	utils.ConfigureLogger(env.LogLevel, env.LogFormat)
	log := utils.Logger()
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	store, err := openStore(env)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer intconfig.CloseDB()

	cfg := env.ServiceConfig()
	gateway := services.NewRandomGateway(100*time.Millisecond, cfg.MaxGatewayLatency, time.Now().UnixNano())
	notifier := services.NewAsyncNotifier(services.SimulatedSink{
		Next:        services.LogSink{},
		Gateway:     gateway,
		SuccessRate: cfg.NotificationSuccessRate,
	}, 256)
	defer notifier.Close()

	svc := services.New(services.Deps{
		Store:    store,
		Clock:    clock.NewSystem(),
		Gateway:  gateway,
		Notifier: notifier,
		Config:   cfg,
	})

	r := router.NewRouter(env, svc)

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runSweeps(sweepCtx, svc)

	go func() {
		log.Infof("server listening on http://localhost%s", env.AppAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}

	log.Info("server stopped cleanly")
}

// openStore uses MySQL when DB_DSN is set and an in-memory store with demo
// ferries otherwise.
func openStore(env intconfig.Env) (repositories.Store, error) {
	if env.DBDSN == "" {
		mem := repositories.NewMemoryStore()
		for _, f := range demoFerries {
			mem.SeedFerry(f)
		}
		utils.LogEvent("", "store", "init", "using in-memory store")
		return mem, nil
	}

	db, err := intconfig.ConnectDB(env.DBDSN)
	if err != nil {
		return nil, err
	}
	store := repositories.NewMySQLStore(db)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

var demoFerries = []models.Ferry{
	{ID: "ferry-1", Name: "KMP Nusantara", CapacityVehicles: 40, CapacityPassengers: 300, Status: models.FerryActive},
	{ID: "ferry-2", Name: "KMP Bahari", CapacityVehicles: 25, CapacityPassengers: 180, Status: models.FerryActive},
	{ID: "ferry-3", Name: "KMP Samudra", CapacityVehicles: 30, CapacityPassengers: 220, Status: models.FerryMaintenance},
}

func runSweeps(ctx context.Context, svc *services.Services) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if expired, err := svc.Bookings.ExpireOverduePayments(ctx); err != nil {
				utils.LogWarn("", "sweep", "expire_payments", err.Error())
			} else if len(expired) > 0 {
				utils.LogEvent("", "sweep", "expire_payments", fmt.Sprintf("expired %d bookings", len(expired)))
			}
			if _, err := svc.Approvals.NotifyOverdue(ctx); err != nil {
				utils.LogWarn("", "sweep", "notify_overdue", err.Error())
			}
		}
	}
}
