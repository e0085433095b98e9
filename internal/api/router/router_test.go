package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/leadtriage/internal/http/middleware"
	"github.com/wolfman30/leadtriage/internal/leads"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

const testSecret = "router-secret"

type stubService struct {
	lead    leads.Lead
	patched *leads.Patch
}

func (s *stubService) ListLeads(leads.Filter) []leads.Lead { return []leads.Lead{s.lead} }

func (s *stubService) LeadStats() leads.Stats { return leads.Stats{Total: 1, MessagesToday: 7} }

func (s *stubService) GetLead(id string) (leads.Lead, error) {
	if id != s.lead.ID {
		return leads.Lead{}, leads.ErrLeadNotFound
	}
	return s.lead, nil
}

func (s *stubService) UpdateLead(_ context.Context, id string, patch leads.Patch) (leads.Lead, error) {
	if id != s.lead.ID {
		return leads.Lead{}, leads.ErrLeadNotFound
	}
	s.patched = &patch
	out := s.lead
	if patch.Status != nil {
		out.Status = *patch.Status
	}
	return out, nil
}

type stubHealth struct{ degraded bool }

func (s stubHealth) Degraded() bool { return s.degraded }

func newTestRouter(t *testing.T, svc *stubService, health HealthChecker) http.Handler {
	t.Helper()
	logger := logging.Discard()
	return New(&Config{
		Logger:          logger,
		LeadsHandler:    leads.NewHandler(svc, logger),
		Health:          health,
		MetricsHandler:  http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		AdminAuthSecret: testSecret,
	})
}

func authed(t *testing.T, req *http.Request) *http.Request {
	t.Helper()
	token, err := middleware.IssueAdminToken(testSecret, "ops", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRouterHealthEndpoint(t *testing.T) {
	for _, tc := range []struct {
		degraded bool
		want     string
	}{{false, "ok"}, {true, "degraded"}} {
		router := newTestRouter(t, &stubService{}, stubHealth{degraded: tc.degraded})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
		}
		var resp map[string]string
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode health response: %v", err)
		}
		if resp["status"] != tc.want {
			t.Errorf("expected status %q, got %q", tc.want, resp["status"])
		}
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubService{}, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "# metrics" {
		t.Fatalf("unexpected metrics response %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router := newTestRouter(t, &stubService{}, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/leads", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRouterAdminLeads(t *testing.T) {
	svc := &stubService{lead: leads.Lead{ID: "01HX", Status: leads.StatusNew}}
	router := newTestRouter(t, svc, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authed(t, httptest.NewRequest(http.MethodGet, "/admin/leads", nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	var list leads.ListLeadsResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil || list.Count != 1 {
		t.Fatalf("unexpected list response %+v (%v)", list, err)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authed(t, httptest.NewRequest(http.MethodGet, "/admin/leads/stats", nil)))
	var stats leads.Stats
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil || stats.MessagesToday != 7 {
		t.Fatalf("unexpected stats %+v (%v)", stats, err)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authed(t, httptest.NewRequest(http.MethodGet, "/admin/leads/missing", nil)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get missing: expected 404, got %d", rr.Code)
	}

	body := bytes.NewBufferString(`{"status":"closed","note":"signed"}`)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authed(t, httptest.NewRequest(http.MethodPatch, "/admin/leads/01HX", body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.patched == nil || svc.patched.Status == nil || *svc.patched.Status != leads.StatusClosed {
		t.Fatalf("expected closed status patch, got %+v", svc.patched)
	}
}
