package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/facturation/internal/auth"
	"github.com/diewo77/facturation/internal/export"
	"github.com/diewo77/facturation/internal/httpx"
	"github.com/diewo77/facturation/internal/models"
	"github.com/diewo77/facturation/internal/notify"
	"github.com/diewo77/facturation/internal/pdf"
	"github.com/diewo77/facturation/internal/services"
)

type InvoiceHandler struct {
	Svc        *services.InvoiceService
	Dispatcher *notify.Dispatcher
	Seller     pdf.Seller
}

func NewInvoiceHandler(svc *services.InvoiceService, dispatcher *notify.Dispatcher, seller pdf.Seller) *InvoiceHandler {
	return &InvoiceHandler{Svc: svc, Dispatcher: dispatcher, Seller: seller}
}

func (h *InvoiceHandler) Register(mux *http.ServeMux) {
	protect := func(fn http.HandlerFunc) http.Handler { return auth.RequireAuth(fn) }
	mux.Handle("GET /invoices", protect(h.list))
	mux.Handle("POST /invoices", protect(h.create))
	mux.Handle("GET /invoices/stats", protect(h.stats))
	mux.Handle("GET /invoices/export", protect(h.export))
	mux.Handle("GET /invoices/export/unpaid", protect(h.exportUnpaid))
	mux.Handle("POST /invoices/sweep", protect(h.sweep))
	mux.Handle("GET /invoices/{number}", protect(h.get))
	mux.Handle("PUT /invoices/{number}", protect(h.update))
	mux.Handle("DELETE /invoices/{number}", protect(h.delete))
	mux.Handle("POST /invoices/{number}/pay", protect(h.markPaid))
	mux.Handle("POST /invoices/{number}/send", protect(h.send))
	mux.Handle("GET /invoices/{number}/pdf", protect(h.pdf))
}

type invoiceReq struct {
	ClientID      uint                 `json:"client_id"`
	IssueDate     string               `json:"issue_date"`
	DueDate       string               `json:"due_date"`
	PaymentTerms  string               `json:"payment_terms"`
	PaymentMethod string               `json:"payment_method"`
	Notes         string               `json:"notes"`
	LegalNotice   string               `json:"legal_notice"`
	Lines         []services.LineInput `json:"lines"`
}

func (h *InvoiceHandler) decodeInput(w http.ResponseWriter, r *http.Request) (services.InvoiceInput, bool) {
	var req invoiceReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return services.InvoiceInput{}, false
	}
	fields := map[string]string{}
	issue, err := parseDate(req.IssueDate)
	if err != nil {
		fields["issue_date"] = err.Error()
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		fields["due_date"] = err.Error()
	}
	if len(fields) > 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", fields)
		return services.InvoiceInput{}, false
	}
	return services.InvoiceInput{
		ClientID:      req.ClientID,
		IssueDate:     issue,
		DueDate:       due,
		PaymentTerms:  req.PaymentTerms,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		LegalNotice:   req.LegalNotice,
		Lines:         req.Lines,
	}, true
}

func (h *InvoiceHandler) list(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	status := models.InvoiceStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_status", nil)
		return
	}
	invs, err := h.Svc.List(r.Context(), uid, status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": invs, "total": len(invs)})
}

func (h *InvoiceHandler) create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	inv, err := h.Svc.Create(r.Context(), uid, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *InvoiceHandler) stats(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	stats, err := h.Svc.Stats(r.Context(), uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *InvoiceHandler) get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	inv, err := h.Svc.Get(r.Context(), uid, r.PathValue("number"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	inv, err := h.Svc.Update(r.Context(), uid, r.PathValue("number"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), uid, r.PathValue("number")); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *InvoiceHandler) markPaid(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	inv, err := h.Svc.MarkPaid(r.Context(), uid, r.PathValue("number"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// send emails the invoice, with its PDF, to an explicit address or to the
// client's address on file. Delivery runs synchronously so the caller learns
// whether it worked.
func (h *InvoiceHandler) send(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	inv, err := h.Svc.Get(r.Context(), uid, r.PathValue("number"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req struct {
		To string `json:"to"`
	}
	if r.ContentLength > 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
	}
	to := strings.TrimSpace(req.To)
	if to == "" && inv.Client != nil {
		to = inv.Client.Email
	}
	if to == "" {
		writeServiceError(w, services.ErrNoClientEmail)
		return
	}
	if err := h.Dispatcher.SendInvoice(inv, to); err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "delivery_failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "sent", "to": to})
}

func (h *InvoiceHandler) pdf(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	inv, err := h.Svc.Get(r.Context(), uid, r.PathValue("number"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	data, err := pdf.InvoicePDF(inv, h.Seller)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_generation_failed", nil)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pdf.InvoiceFilename(inv)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *InvoiceHandler) export(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	invs, err := h.Svc.List(r.Context(), uid, "")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=UTF-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.InvoicesFilename(time.Now())+`"`)
	if err := export.Invoices(w, invs); err != nil {
		// Headers are gone; nothing left to do but log-free abort.
		return
	}
}

func (h *InvoiceHandler) exportUnpaid(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	now := time.Now()
	pending, err := h.Svc.List(r.Context(), uid, models.InvoiceStatusPending)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	overdue, err := h.Svc.List(r.Context(), uid, models.InvoiceStatusOverdue)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	unpaid := append(overdue, pending...)
	w.Header().Set("Content-Type", "text/csv; charset=UTF-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.UnpaidFilename(now)+`"`)
	if err := export.UnpaidInvoices(w, unpaid, now); err != nil {
		return
	}
}

// sweep runs the overdue pass for the caller on demand, in addition to the
// scheduled background run.
func (h *InvoiceHandler) sweep(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	moved, err := h.Svc.SweepOverdue(r.Context(), uid, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"moved": moved})
}
