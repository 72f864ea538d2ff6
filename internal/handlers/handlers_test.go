package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/diewo77/go-contracts/internal/metrics"
	"github.com/diewo77/go-contracts/internal/models"
	"github.com/diewo77/go-contracts/internal/numbering"
	"github.com/diewo77/go-contracts/internal/pricing"
	"github.com/diewo77/go-contracts/internal/services"
	"github.com/diewo77/go-contracts/internal/signing/provider"
	"github.com/diewo77/go-contracts/internal/tenant"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db       *gorm.DB
	server   *httptest.Server
	sessions *tenant.Sessions
	company  *models.Company
	project  *models.Project
	items    []models.CostLineItem

	// providerStatus is what the fake SignWell answers on create; 0 means 201.
	providerStatus  atomic.Int32
	created         atomic.Int32
	recipientsAdded atomic.Int32
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{db: setupTestDB(t)}
	log := slog.New(slog.DiscardHandler)

	signwell := http.NewServeMux()
	signwell.HandleFunc("POST /api/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		if code := env.providerStatus.Load(); code != 0 {
			w.WriteHeader(int(code))
			return
		}
		n := env.created.Add(1)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"sw-%d","status":"pending"}`, n)
	})
	signwell.HandleFunc("POST /api/v1/documents/{id}/recipients", func(w http.ResponseWriter, r *http.Request) {
		env.recipientsAdded.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	fake := httptest.NewServer(signwell)
	t.Cleanup(fake.Close)

	p, err := provider.New(provider.Config{
		Kind:         provider.KindSignWell,
		BaseURL:      fake.URL,
		ClientSecret: "api-key",
		Timeout:      2 * time.Second,
		MaxRetries:   1,
		Backoff:      time.Millisecond,
	}, nil, log, nil)
	if err != nil {
		t.Fatal(err)
	}

	m := metrics.New()
	alloc := numbering.New(env.db, numbering.WithLogger(log), numbering.WithMetrics(m))
	docs := services.NewDocumentService(env.db, alloc, log, m)
	signing := services.NewSigningService(env.db, p, "", log, m)

	env.sessions = tenant.NewSessions("test-secret", nil)
	protect := func(next http.Handler) http.Handler { return env.sessions.RequireCompany(next) }

	mux := http.NewServeMux()
	NewDocumentHandler(docs, signing, log).Register(mux, protect)
	NewCompanyHandler(services.NewCompanyService(env.db, log), log).Register(mux, protect)
	NewCostItemHandler(services.NewCostItemService(env.db, log), log).Register(mux, protect)
	NewWebhookHandler(signing, log).Register(mux)
	env.server = httptest.NewServer(env.sessions.Middleware(mux))
	t.Cleanup(env.server.Close)

	env.seed(t)
	return env
}

func (env *testEnv) seed(t *testing.T) {
	t.Helper()
	env.company = &models.Company{
		Name:                         "Acme Builders",
		SignerName:                   "Bob Owner",
		SignerEmail:                  "bob@acme.test",
		AutoIncludeSubcontractorFees: true,
		NextDocumentNumber:           1,
	}
	env.company.SetCategoryDefaults(pricing.CategorySubcontractorFee, pricing.Override{MarkupPercent: pricing.Money("30")})
	if err := env.db.Create(env.company).Error; err != nil {
		t.Fatal(err)
	}
	env.project = &models.Project{CompanyID: env.company.ID, Name: "Deck", CustomerName: "Jane", CustomerEmail: "jane@example.com"}
	if err := env.db.Create(env.project).Error; err != nil {
		t.Fatal(err)
	}
	env.items = []models.CostLineItem{
		{ProjectID: env.project.ID, Category: pricing.CategorySubcontractorFee, Name: "Framing", Cost: pricing.Money("1000")},
	}
	if err := env.db.Create(&env.items).Error; err != nil {
		t.Fatal(err)
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body any, companyID uint) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, env.server.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if companyID != 0 {
		req.Header.Set(tenant.HeaderName, env.sessions.Token(companyID))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestGenerateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	path := fmt.Sprintf("/projects/%d/documents", env.project.ID)

	resp, body := env.do(t, http.MethodPost, path, map[string]string{"document_type": "contract"}, env.company.ID)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	if body["document_number"] != float64(1) || body["display_number"] != "CON-00001" {
		t.Errorf("body = %v", body)
	}
	milestones, _ := body["milestones"].([]any)
	if len(milestones) != 2 {
		t.Fatalf("milestones = %v", body["milestones"])
	}
	first := milestones[0].(map[string]any)
	if _, leaked := first["cost"]; leaked {
		t.Error("customer view exposes cost")
	}
	if _, leaked := first["markup_percent"]; leaked {
		t.Error("customer view exposes markup")
	}
	if first["price"] != "1300" {
		t.Errorf("price = %v, want 1300", first["price"])
	}

	tests := []struct {
		name      string
		path      string
		body      any
		companyID uint
		status    int
		errCode   string
	}{
		{"no session", path, map[string]string{"document_type": "contract"}, 0, http.StatusUnauthorized, "unauthorized"},
		{"bad json", path, `{"document_type":`, env.company.ID, http.StatusBadRequest, "invalid_json"},
		{"unknown type", path, map[string]string{"document_type": "invoice"}, env.company.ID, http.StatusUnprocessableEntity, "validation_failed"},
		{"unknown project", "/projects/999/documents", map[string]string{"document_type": "contract"}, env.company.ID, http.StatusNotFound, "not_found"},
		{"bad id", "/projects/abc/documents", map[string]string{"document_type": "contract"}, env.company.ID, http.StatusBadRequest, "invalid_id"},
		{"empty change order", path, map[string]string{"document_type": "change_order"}, env.company.ID, http.StatusUnprocessableEntity, "validation_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, tt.path, tt.body, tt.companyID)
			if resp.StatusCode != tt.status || body["error"] != tt.errCode {
				t.Errorf("status = %d error = %v, want %d %s", resp.StatusCode, body["error"], tt.status, tt.errCode)
			}
		})
	}
}

func TestSendAndWebhookEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, gen := env.do(t, http.MethodPost, fmt.Sprintf("/projects/%d/documents", env.project.ID),
		map[string]string{"document_type": "proposal"}, env.company.ID)
	docPath := fmt.Sprintf("/documents/%v", gen["document_id"])

	// Provider outage: 502 with the unchanged status.
	env.providerStatus.Store(http.StatusServiceUnavailable)
	resp, body := env.do(t, http.MethodPost, docPath+"/send", nil, env.company.ID)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	details, _ := body["details"].(map[string]any)
	if details["document_status"] != "draft" || details["retryable"] != true {
		t.Errorf("details = %v", details)
	}

	env.providerStatus.Store(0)
	resp, body = env.do(t, http.MethodPost, docPath+"/send", nil, env.company.ID)
	if resp.StatusCode != http.StatusOK || body["status"] != "sent" {
		t.Fatalf("send: status = %d body = %v", resp.StatusCode, body)
	}
	providerID := body["provider_document_id"].(string)

	resp, body = env.do(t, http.MethodPost, docPath+"/send", nil, env.company.ID)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second send: status = %d body = %v", resp.StatusCode, body)
	}

	webhook := func(eventType, id string) map[string]any {
		payload := map[string]any{
			"event": map[string]any{"type": eventType, "time": 1767225600},
			"data":  map[string]any{"object": map[string]any{"id": id}},
		}
		resp, body := env.do(t, http.MethodPost, "/webhooks/signing/signwell", payload, 0)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("webhook %s: status = %d", eventType, resp.StatusCode)
		}
		return body
	}

	// SignWell adds the company signer after the customer: the first
	// completion only means the customer signed.
	if got := webhook("document_completed", providerID); got["outcome"] != "applied" {
		t.Errorf("customer completion: %v", got)
	}
	_, body = env.do(t, http.MethodGet, docPath, nil, env.company.ID)
	if body["status"] != "signed" || body["company_signer_added"] != true {
		t.Errorf("after customer: status = %v signer added = %v", body["status"], body["company_signer_added"])
	}
	if n := env.recipientsAdded.Load(); n != 1 {
		t.Errorf("company signer added %d times", n)
	}
	if got := webhook("document_completed", providerID); got["outcome"] != "applied" {
		t.Errorf("completed: %v", got)
	}
	if got := webhook("document_completed", providerID); got["outcome"] != "duplicate" {
		t.Errorf("duplicate: %v", got)
	}
	if got := webhook("document_viewed", providerID); got["outcome"] != "regressive" {
		t.Errorf("regressive: %v", got)
	}
	if got := webhook("document_viewed", "nope"); got["outcome"] != "unmatched" {
		t.Errorf("unmatched: %v", got)
	}
	if got := webhook("something_new", providerID); got["outcome"] != "unknown_event" {
		t.Errorf("unknown: %v", got)
	}
	resp, body = env.do(t, http.MethodPost, "/webhooks/signing/hellosign", map[string]any{}, 0)
	if resp.StatusCode != http.StatusOK || body["outcome"] != "unknown_provider" {
		t.Errorf("unknown provider: %d %v", resp.StatusCode, body)
	}

	_, body = env.do(t, http.MethodGet, docPath, nil, env.company.ID)
	if body["status"] != "completed" {
		t.Errorf("final status = %v", body["status"])
	}
}

func TestCompanyEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPut, "/company/numbering", map[string]int64{"next_document_number": 500}, env.company.ID)
	if resp.StatusCode != http.StatusOK || body["next_document_number"] != float64(500) {
		t.Fatalf("raise: %d %v", resp.StatusCode, body)
	}
	resp, body = env.do(t, http.MethodPut, "/company/numbering", map[string]int64{"next_document_number": 3}, env.company.ID)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("lower: %d %v", resp.StatusCode, body)
	}

	pricingBody := `{"default_markup_percent":"20","categories":{"subcontractor_fee":{"markup_percent":"30","min":"900","max":"100"}}}`
	resp, body = env.do(t, http.MethodPut, "/company/pricing", pricingBody, env.company.ID)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad bounds: %d %v", resp.StatusCode, body)
	}
	details, _ := body["details"].(map[string]any)
	if details["categories.subcontractor_fee.min"] != "exceeds_max" {
		t.Errorf("details = %v", details)
	}

	pricingBody = `{"default_markup_percent":"20","auto_include_subcontractor_fees":true,"categories":{"subcontractor_fee":{"max":"1200"}}}`
	resp, body = env.do(t, http.MethodPut, "/company/pricing", pricingBody, env.company.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: %d %v", resp.StatusCode, body)
	}
	if body["next_document_number"] != float64(500) {
		t.Errorf("pricing update changed the counter: %v", body["next_document_number"])
	}
}

func TestCostItemEndpoints(t *testing.T) {
	env := newTestEnv(t)
	path := fmt.Sprintf("/cost-items/%d", env.items[0].ID)

	resp, body := env.do(t, http.MethodPatch, path, `{"name":"Framing and sheathing","cost":"1100"}`, env.company.ID)
	if resp.StatusCode != http.StatusOK || body["name"] != "Framing and sheathing" {
		t.Fatalf("patch: %d %v", resp.StatusCode, body)
	}

	other := &models.Company{Name: "Other"}
	env.db.Create(other)
	if resp, _ := env.do(t, http.MethodDelete, path, nil, other.ID); resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign delete: %d", resp.StatusCode)
	}

	if resp, _ := env.do(t, http.MethodDelete, path, nil, env.company.ID); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: %d", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodDelete, path, nil, env.company.ID); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: %d", resp.StatusCode)
	}
}
