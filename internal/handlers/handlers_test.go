package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/facturation/internal/auth"
	"github.com/diewo77/facturation/internal/mail"
	"github.com/diewo77/facturation/internal/models"
	"github.com/diewo77/facturation/internal/notify"
	"github.com/diewo77/facturation/internal/pdf"
	"github.com/diewo77/facturation/internal/services"
)

type testApp struct {
	mux      *http.ServeMux
	db       *gorm.DB
	userID   uint
	clientID uint
	outbox   *mail.Memory
	notifier *notify.Dispatcher
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	user := models.User{Email: "pro@example.com"}
	if err := user.SetPassword("secret123"); err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	client := models.Client{UserID: user.ID, Name: "ACME SARL", Email: "compta@acme.example"}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}

	log := zerolog.Nop()
	outbox := &mail.Memory{}
	dispatcher := notify.NewDispatcher(outbox, pdf.DefaultSeller, log)
	t.Cleanup(dispatcher.Close)

	invoiceSvc := services.NewInvoiceService(db, "F", dispatcher, log)
	quoteSvc := services.NewQuoteService(db, "D", invoiceSvc, dispatcher, log)

	mux := http.NewServeMux()
	NewAuthHandler(db).Register(mux)
	NewClientHandler(services.NewClientService(db)).Register(mux)
	NewInvoiceHandler(invoiceSvc, dispatcher, pdf.DefaultSeller).Register(mux)
	NewQuoteHandler(quoteSvc, dispatcher, pdf.DefaultSeller).Register(mux)

	return &testApp{mux: mux, db: db, userID: user.ID, clientID: client.ID, outbox: outbox, notifier: dispatcher}
}

// do performs a request as the seeded user.
func (a *testApp) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	r = r.WithContext(auth.WithUserID(r.Context(), a.userID))
	w := httptest.NewRecorder()
	a.mux.ServeHTTP(w, r)
	return w
}

func (a *testApp) invoiceBody() string {
	return fmt.Sprintf(`{"client_id":%d,"issue_date":"2025-06-10","due_date":"2025-07-10","lines":[{"description":"Prestation","quantity":"2","unit_price":"100","tax_rate":"20"}]}`, a.clientID)
}

func (a *testApp) quoteBody() string {
	return fmt.Sprintf(`{"client_id":%d,"issue_date":"2025-06-05","valid_until":"2025-07-05","lines":[{"description":"Prestation","quantity":"2","unit_price":"100","tax_rate":"20"}]}`, a.clientID)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v body=%s", err, w.Body.String())
	}
	return out
}

func TestSignupLoginFlow(t *testing.T) {
	app := setupApp(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"new@example.com","password":"longsecret"}`))
	app.mux.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup = %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Set-Cookie"), "session=") {
		t.Error("signup did not set a session cookie")
	}
	if strings.Contains(w.Body.String(), "longsecret") {
		t.Error("response leaks the password")
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"new@example.com","password":"wrongpass1"}`))
	app.mux.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"new@example.com","password":"longsecret"}`))
	app.mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("login = %d body=%s", w.Code, w.Body.String())
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	app := setupApp(t)
	body := `{"email":"dup@example.com","password":"longsecret"}`

	w := httptest.NewRecorder()
	app.mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("first signup = %d", w.Code)
	}
	w = httptest.NewRecorder()
	app.mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body)))
	if w.Code != http.StatusConflict {
		t.Errorf("second signup = %d, want 409", w.Code)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	app := setupApp(t)
	w := httptest.NewRecorder()
	app.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestInvoiceLifecycleOverHTTP(t *testing.T) {
	app := setupApp(t)

	w := app.do(t, http.MethodPost, "/invoices", app.invoiceBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d body=%s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	number, _ := created["number"].(string)
	if number != "F-202506-001" {
		t.Errorf("number = %q", number)
	}
	if created["total_gross"] != "240" {
		t.Errorf("total_gross = %v", created["total_gross"])
	}

	w = app.do(t, http.MethodGet, "/invoices/"+number, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}

	w = app.do(t, http.MethodPost, "/invoices/"+number+"/pay", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pay = %d body=%s", w.Code, w.Body.String())
	}
	w = app.do(t, http.MethodPost, "/invoices/"+number+"/pay", "")
	if w.Code != http.StatusConflict {
		t.Errorf("second pay = %d, want 409", w.Code)
	}

	w = app.do(t, http.MethodDelete, "/invoices/"+number, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
	w = app.do(t, http.MethodGet, "/invoices/"+number, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", w.Code)
	}
}

func TestInvoiceCreateValidationOverHTTP(t *testing.T) {
	app := setupApp(t)
	body := fmt.Sprintf(`{"client_id":%d,"issue_date":"2025-06-10","due_date":"2025-07-10","lines":[]}`, app.clientID)
	w := app.do(t, http.MethodPost, "/invoices", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body=%s", w.Code, w.Body.String())
	}
	out := decodeBody(t, w)
	if out["error"] != "validation_failed" {
		t.Errorf("error = %v", out["error"])
	}
}

func TestInvoicePDFDownload(t *testing.T) {
	app := setupApp(t)
	w := app.do(t, http.MethodPost, "/invoices", app.invoiceBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	number := decodeBody(t, w)["number"].(string)

	w = app.do(t, http.MethodGet, "/invoices/"+number+"/pdf", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pdf = %d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %s", ct)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "Facture_"+number) {
		t.Errorf("disposition = %s", w.Header().Get("Content-Disposition"))
	}
	if w.Body.Len() == 0 {
		t.Error("empty pdf body")
	}
}

func TestInvoiceSendByEmail(t *testing.T) {
	app := setupApp(t)
	w := app.do(t, http.MethodPost, "/invoices", app.invoiceBody())
	number := decodeBody(t, w)["number"].(string)
	app.notifier.Close()
	sent := len(app.outbox.Outbox)

	w = app.do(t, http.MethodPost, "/invoices/"+number+"/send", `{"to":"direction@acme.example"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("send = %d body=%s", w.Code, w.Body.String())
	}
	if len(app.outbox.Outbox) != sent+1 {
		t.Fatalf("outbox = %d, want %d", len(app.outbox.Outbox), sent+1)
	}
	last := app.outbox.Outbox[len(app.outbox.Outbox)-1]
	if last.To != "direction@acme.example" {
		t.Errorf("to = %s", last.To)
	}
	if last.Attachment == nil {
		t.Error("missing pdf attachment")
	}
}

func TestInvoiceExportCSV(t *testing.T) {
	app := setupApp(t)
	if w := app.do(t, http.MethodPost, "/invoices", app.invoiceBody()); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	w := app.do(t, http.MethodGet, "/invoices/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "\xEF\xBB\xBF") {
		t.Error("missing BOM")
	}
	if !strings.Contains(w.Body.String(), "F-202506-001") {
		t.Error("export missing invoice row")
	}
}

func TestQuoteConversionOverHTTP(t *testing.T) {
	app := setupApp(t)

	w := app.do(t, http.MethodPost, "/quotes", app.quoteBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create quote = %d body=%s", w.Code, w.Body.String())
	}
	number := decodeBody(t, w)["number"].(string)
	if number != "D-202506-001" {
		t.Errorf("quote number = %q", number)
	}

	// Converting before acceptance is refused.
	w = app.do(t, http.MethodPost, "/quotes/"+number+"/invoice", "")
	if w.Code != http.StatusConflict {
		t.Errorf("early convert = %d, want 409", w.Code)
	}

	if w = app.do(t, http.MethodPost, "/quotes/"+number+"/accept", ""); w.Code != http.StatusOK {
		t.Fatalf("accept = %d", w.Code)
	}
	w = app.do(t, http.MethodPost, "/quotes/"+number+"/invoice", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("convert = %d body=%s", w.Code, w.Body.String())
	}
	inv := decodeBody(t, w)
	if inv["total_gross"] != "240" {
		t.Errorf("invoice gross = %v", inv["total_gross"])
	}

	// An invoiced quote refuses deletion.
	w = app.do(t, http.MethodDelete, "/quotes/"+number, "")
	if w.Code != http.StatusConflict {
		t.Errorf("delete invoiced quote = %d, want 409", w.Code)
	}
}

func TestClientCRUDOverHTTP(t *testing.T) {
	app := setupApp(t)

	w := app.do(t, http.MethodPost, "/clients", `{"name":"Bureau Dupont","email":"contact@dupont.example","city":"Lyon"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d body=%s", w.Code, w.Body.String())
	}
	id := int(decodeBody(t, w)["id"].(float64))

	w = app.do(t, http.MethodGet, fmt.Sprintf("/clients/%d", id), "")
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}

	w = app.do(t, http.MethodPost, "/clients", `{"name":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("create empty name = %d, want 400", w.Code)
	}

	w = app.do(t, http.MethodDelete, fmt.Sprintf("/clients/%d", id), "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
}

func TestClientCreateRejectsBadEmail(t *testing.T) {
	app := setupApp(t)

	w := app.do(t, http.MethodPost, "/clients", `{"name":"Bureau Dupont","email":"not-an-address"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body=%s", w.Code, w.Body.String())
	}
	out := decodeBody(t, w)
	if out["error"] != "validation_failed" {
		t.Errorf("error = %v, want validation_failed", out["error"])
	}
	details, ok := out["details"].(map[string]any)
	if !ok || details["email"] == nil {
		t.Errorf("details = %v, want email violation", out["details"])
	}

	w = app.do(t, http.MethodPost, "/clients", `{"name":"Bureau Dupont","email":""}`)
	if w.Code != http.StatusCreated {
		t.Errorf("empty email = %d, want 201 (email is optional)", w.Code)
	}
}
