package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/facturation/internal/mail"
	"github.com/diewo77/facturation/internal/models"
	"github.com/diewo77/facturation/internal/notify"
	"github.com/diewo77/facturation/internal/pdf"
	"github.com/diewo77/facturation/internal/services"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := zerolog.Nop()
	dispatcher := notify.NewDispatcher(&mail.Memory{}, pdf.DefaultSeller, log)
	t.Cleanup(dispatcher.Close)
	invoices := services.NewInvoiceService(db, "F", dispatcher, log)
	return New(Deps{
		DB:         db,
		Invoices:   invoices,
		Quotes:     services.NewQuoteService(db, "D", invoices, dispatcher, log),
		Clients:    services.NewClientService(db),
		Dispatcher: dispatcher,
		Seller:     pdf.DefaultSeller,
		Log:        log,
	})
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestHandler(t)
	for _, path := range []string{"/health", "/healthz"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, w.Code)
		}
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"pro@example.com","password":"longsecret"}`)))
	if w.Code != http.StatusCreated {
		t.Fatalf("signup = %d body=%s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie set")
	}

	// Without the cookie the protected route refuses.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated list = %d, want 401", w.Code)
	}

	// With it the whole middleware chain lets the request through.
	r := httptest.NewRequest(http.MethodGet, "/invoices", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated list = %d body=%s", w.Code, w.Body.String())
	}

	// A tampered cookie is a plain 401.
	r = httptest.NewRequest(http.MethodGet, "/invoices", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: "1.forgedsignature"})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("forged cookie list = %d, want 401", w.Code)
	}
}
