// Package cli implements the facturation command line: document PDF
// generation, email delivery, status corrections and on-demand sweeps.
package cli

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/diewo77/facturation/internal/config"
	"github.com/diewo77/facturation/internal/db"
	"github.com/diewo77/facturation/internal/logger"
	"github.com/diewo77/facturation/internal/mail"
	"github.com/diewo77/facturation/internal/models"
	"github.com/diewo77/facturation/internal/notify"
	"github.com/diewo77/facturation/internal/pdf"
	"github.com/diewo77/facturation/internal/services"
)

var rootCmd = &cobra.Command{
	Use:           "facturation",
	Short:         "Outils de facturation: PDF, emails et statuts des documents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI, exiting 1 on any failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cli")
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(pdfCmd, emailCmd, statusCmd, sweepCmd)
	pdfCmd.Flags().StringP("output", "o", "", "output file (defaults to the document's download name)")
}

// app bundles the wiring shared by every command.
type app struct {
	db         *gorm.DB
	cfg        config.Config
	log        zerolog.Logger
	invoices   *services.InvoiceService
	quotes     *services.QuoteService
	dispatcher *notify.Dispatcher
}

func bootstrap() (*app, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.Setup(cfg.Env, cfg.LogLevel)
	conn, err := db.ConnectAndMigrate(cfg.DatabaseDSN, log)
	if err != nil {
		return nil, err
	}
	dispatcher := notify.NewDispatcher(mail.New(cfg.Mail), pdf.DefaultSeller, log)
	invoices := services.NewInvoiceService(conn, cfg.InvoicePrefix, dispatcher, log)
	quotes := services.NewQuoteService(conn, cfg.QuotePrefix, invoices, dispatcher, log)
	return &app{
		db:         conn,
		cfg:        cfg,
		log:        log,
		invoices:   invoices,
		quotes:     quotes,
		dispatcher: dispatcher,
	}, nil
}

func (a *app) close() {
	a.dispatcher.Close()
}

// findInvoice loads an invoice by number across all owners. The CLI is an
// operator tool, not a tenant surface.
func (a *app) findInvoice(number string) (*models.Invoice, error) {
	var inv models.Invoice
	err := a.db.Preload("Client").Preload("Lines").Where("number = ?", number).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (a *app) findQuote(number string) (*models.Quote, error) {
	var q models.Quote
	err := a.db.Preload("Client").Preload("Lines").Where("number = ?", number).First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}
