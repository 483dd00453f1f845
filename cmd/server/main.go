package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/diewo77/facturation/internal/config"
	"github.com/diewo77/facturation/internal/db"
	"github.com/diewo77/facturation/internal/logger"
	"github.com/diewo77/facturation/internal/mail"
	"github.com/diewo77/facturation/internal/notify"
	"github.com/diewo77/facturation/internal/pdf"
	"github.com/diewo77/facturation/internal/server"
	"github.com/diewo77/facturation/internal/services"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.Setup(cfg.Env, cfg.LogLevel)

	dbConn, err := db.ConnectAndMigrate(cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database setup failed")
	}

	sender := mail.New(cfg.Mail)
	dispatcher := notify.NewDispatcher(sender, pdf.DefaultSeller, log)
	defer dispatcher.Close()

	invoices := services.NewInvoiceService(dbConn, cfg.InvoicePrefix, dispatcher, log)
	quotes := services.NewQuoteService(dbConn, cfg.QuotePrefix, invoices, dispatcher, log)
	clients := services.NewClientService(dbConn)

	// Background sweeps move documents whose dates have lapsed: pending
	// invoices past due to overdue, pending quotes past validity to expired.
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		now := time.Now()
		if _, err := invoices.SweepOverdue(ctx, 0, now); err != nil {
			log.Error().Err(err).Msg("overdue sweep failed")
		}
		if _, err := quotes.SweepExpired(ctx, 0, now); err != nil {
			log.Error().Err(err).Msg("expiry sweep failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("invalid sweep schedule")
	}
	sched.Start()
	defer sched.Stop()

	handler := server.New(server.Deps{
		DB:         dbConn,
		Invoices:   invoices,
		Quotes:     quotes,
		Clients:    clients,
		Dispatcher: dispatcher,
		Seller:     pdf.DefaultSeller,
		Log:        log,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
