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

type QuoteHandler struct {
	Svc        *services.QuoteService
	Dispatcher *notify.Dispatcher
	Seller     pdf.Seller
}

func NewQuoteHandler(svc *services.QuoteService, dispatcher *notify.Dispatcher, seller pdf.Seller) *QuoteHandler {
	return &QuoteHandler{Svc: svc, Dispatcher: dispatcher, Seller: seller}
}

func (h *QuoteHandler) Register(mux *http.ServeMux) {
	protect := func(fn http.HandlerFunc) http.Handler { return auth.RequireAuth(fn) }
	mux.Handle("GET /quotes", protect(h.list))
	mux.Handle("POST /quotes", protect(h.create))
	mux.Handle("GET /quotes/stats", protect(h.stats))
	mux.Handle("GET /quotes/export", protect(h.export))
	mux.Handle("POST /quotes/sweep", protect(h.sweep))
	mux.Handle("GET /quotes/{number}", protect(h.get))
	mux.Handle("PUT /quotes/{number}", protect(h.update))
	mux.Handle("DELETE /quotes/{number}", protect(h.delete))
	mux.Handle("POST /quotes/{number}/accept", protect(h.accept))
	mux.Handle("POST /quotes/{number}/reject", protect(h.reject))
	mux.Handle("POST /quotes/{number}/invoice", protect(h.convert))
	mux.Handle("POST /quotes/{number}/send", protect(h.send))
	mux.Handle("GET /quotes/{number}/pdf", protect(h.pdf))
}

type quoteReq struct {
	ClientID     uint                 `json:"client_id"`
	IssueDate    string               `json:"issue_date"`
	ValidUntil   string               `json:"valid_until"`
	PaymentTerms string               `json:"payment_terms"`
	Notes        string               `json:"notes"`
	LegalNotice  string               `json:"legal_notice"`
	Lines        []services.LineInput `json:"lines"`
}

func (h *QuoteHandler) decodeInput(w http.ResponseWriter, r *http.Request) (services.QuoteInput, bool) {
	var req quoteReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return services.QuoteInput{}, false
	}
	fields := map[string]string{}
	issue, err := parseDate(req.IssueDate)
	if err != nil {
		fields["issue_date"] = err.Error()
	}
	valid, err := parseDate(req.ValidUntil)
	if err != nil {
		fields["valid_until"] = err.Error()
	}
	if len(fields) > 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", fields)
		return services.QuoteInput{}, false
	}
	return services.QuoteInput{
		ClientID:     req.ClientID,
		IssueDate:    issue,
		ValidUntil:   valid,
		PaymentTerms: req.PaymentTerms,
		Notes:        req.Notes,
		LegalNotice:  req.LegalNotice,
		Lines:        req.Lines,
	}, true
}

func (h *QuoteHandler) list(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	status := models.QuoteStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_status", nil)
		return
	}
	quotes, err := h.Svc.List(r.Context(), uid, status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": quotes, "total": len(quotes)})
}

func (h *QuoteHandler) create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Create(r.Context(), uid, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *QuoteHandler) stats(w http.ResponseWriter, r *http.Request) {
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

func (h *QuoteHandler) get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Get(r.Context(), uid, r.PathValue("number"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Update(r.Context(), uid, r.PathValue("number"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) delete(w http.ResponseWriter, r *http.Request) {
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

func (h *QuoteHandler) accept(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.MarkAccepted(r.Context(), uid, r.PathValue("number"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) reject(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.MarkRejected(r.Context(), uid, r.PathValue("number"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) convert(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	inv, err := h.Svc.ConvertToInvoice(r.Context(), uid, r.PathValue("number"), time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *QuoteHandler) send(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Get(r.Context(), uid, r.PathValue("number"))
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
	if to == "" && q.Client != nil {
		to = q.Client.Email
	}
	if to == "" {
		writeServiceError(w, services.ErrNoClientEmail)
		return
	}
	if err := h.Dispatcher.SendQuote(q, to); err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "delivery_failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "sent", "to": to})
}

func (h *QuoteHandler) pdf(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Get(r.Context(), uid, r.PathValue("number"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	data, err := pdf.QuotePDF(q, h.Seller)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_generation_failed", nil)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pdf.QuoteFilename(q)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *QuoteHandler) export(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	quotes, err := h.Svc.List(r.Context(), uid, "")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=UTF-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.QuotesFilename(time.Now())+`"`)
	if err := export.Quotes(w, quotes); err != nil {
		return
	}
}

// sweep runs the expiry pass for the caller on demand.
func (h *QuoteHandler) sweep(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	moved, err := h.Svc.SweepExpired(r.Context(), uid, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"moved": moved})
}
