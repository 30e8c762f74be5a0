package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voice-platform/internal/auth"
	"voice-platform/internal/ledger"
	"voice-platform/internal/profile"
	"voice-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

func testRouter(h Handlers, userID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	identity := func(c *gin.Context) {
		if userID != "" {
			ctx := auth.WithIdentity(c.Request.Context(), userID, role)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}

	r.GET("/v1/profile/balance", identity, h.GetBalance)
	r.POST("/v1/admin/credits", identity, rbac.RequireAnyRole(rbac.RoleAdmin), h.AdminManualCredit)
	return r
}

func TestGetBalance(t *testing.T) {
	store := profile.NewMemoryStore(profile.Profile{
		UserID:       "u1",
		PlanID:       "pro",
		VoiceCredits: 42,
	})
	r := testRouter(Handlers{Profiles: store}, "u1", rbac.RoleUser)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/profile/balance", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["voice_credits"].(float64) != 42 || body["plan_id"] != "pro" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestGetBalanceUnknownUser(t *testing.T) {
	r := testRouter(Handlers{Profiles: profile.NewMemoryStore()}, "ghost", rbac.RoleUser)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/profile/balance", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAdminManualCredit(t *testing.T) {
	store := profile.NewMemoryStore(profile.Profile{UserID: "u1", VoiceCredits: 5})
	svc := ledger.NewService(store, ledger.NewMemoryRepository(store))
	r := testRouter(Handlers{Profiles: store, Ledger: svc}, "admin-1", rbac.RoleAdmin)

	body := `{"user_id":"u1","amount":100,"reference":"topup-2026-01"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/credits", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var res map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("json: %v", err)
	}
	if res["voice_credits"].(float64) != 105 {
		t.Fatalf("balance = %v, want 105", res["voice_credits"])
	}

	// Same reference again must not double-credit.
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/v1/admin/credits", strings.NewReader(body))
	req2.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("status = %d", w2.Code)
	}
	var res2 map[string]any
	_ = json.Unmarshal(w2.Body.Bytes(), &res2)
	if res2["voice_credits"].(float64) != 105 {
		t.Fatalf("replayed credit changed balance: %v", res2["voice_credits"])
	}
}

func TestAdminManualCreditForbiddenForUsers(t *testing.T) {
	store := profile.NewMemoryStore(profile.Profile{UserID: "u1"})
	svc := ledger.NewService(store, ledger.NewMemoryRepository(store))
	r := testRouter(Handlers{Profiles: store, Ledger: svc}, "u1", rbac.RoleUser)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/credits", strings.NewReader(`{"user_id":"u1","amount":10,"reference":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}
