package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/diewo77/facturation/internal/models"
	"github.com/diewo77/facturation/internal/pdf"
	"github.com/diewo77/facturation/internal/services"
)

var pdfCmd = &cobra.Command{
	Use:   "pdf <number>",
	Short: "Generate the PDF of an invoice or quote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		number := args[0]
		var data []byte
		var name string
		if inv, err := a.findInvoice(number); err == nil {
			if data, err = pdf.InvoicePDF(inv, pdf.DefaultSeller); err != nil {
				return err
			}
			name = pdf.InvoiceFilename(inv)
		} else if q, qerr := a.findQuote(number); qerr == nil {
			if data, err = pdf.QuotePDF(q, pdf.DefaultSeller); err != nil {
				return err
			}
			name = pdf.QuoteFilename(q)
		} else {
			return fmt.Errorf("no invoice or quote numbered %s", number)
		}

		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = name
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		a.log.Info().Str("number", number).Str("file", out).Msg("pdf written")
		return nil
	},
}

var emailCmd = &cobra.Command{
	Use:   "email <number> <address>",
	Short: "Send an invoice or quote by email to an explicit address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		number, to := args[0], args[1]
		if inv, err := a.findInvoice(number); err == nil {
			if err := a.dispatcher.SendInvoice(inv, to); err != nil {
				return fmt.Errorf("send invoice %s: %w", number, err)
			}
		} else if q, qerr := a.findQuote(number); qerr == nil {
			if err := a.dispatcher.SendQuote(q, to); err != nil {
				return fmt.Errorf("send quote %s: %w", number, err)
			}
		} else {
			return fmt.Errorf("no invoice or quote numbered %s", number)
		}
		a.log.Info().Str("number", number).Str("to", to).Msg("email sent")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <number> <pending|paid|overdue>",
	Short: "Force an invoice status, bypassing the transition rules",
	Long: `Sets an invoice's status directly. Unlike the API this skips the
transition guard; it exists for operator corrections, e.g. reopening an
invoice that was marked paid by mistake.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		number := args[0]
		status := models.InvoiceStatus(args[1])
		if !status.Valid() {
			return fmt.Errorf("unknown status %q", args[1])
		}
		inv, err := a.findInvoice(number)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return fmt.Errorf("invoice %s not found", number)
			}
			return err
		}
		old := inv.Status
		if err := a.db.Model(inv).Update("status", status).Error; err != nil {
			return err
		}
		a.log.Info().Str("number", number).Str("from", string(old)).Str("to", string(status)).Msg("invoice status updated")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Move lapsed documents: overdue invoices and expired quotes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		now := time.Now()
		overdue, err := a.invoices.SweepOverdue(ctx, 0, now)
		if err != nil {
			return err
		}
		expired, err := a.quotes.SweepExpired(ctx, 0, now)
		if err != nil {
			return err
		}
		a.log.Info().Int64("overdue", overdue).Int64("expired", expired).Msg("sweep done")
		return nil
	},
}
