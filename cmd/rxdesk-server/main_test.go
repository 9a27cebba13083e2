package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rxdesk/rxdesk/internal/config"
	"github.com/rxdesk/rxdesk/internal/domain/prescription"
	"github.com/rxdesk/rxdesk/internal/domain/reference"
	"github.com/rxdesk/rxdesk/internal/platform/events"
	"github.com/rxdesk/rxdesk/internal/platform/middleware"
	"github.com/rxdesk/rxdesk/internal/platform/notification"
	"github.com/rxdesk/rxdesk/internal/platform/websocket"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

// stubRegistry implements the read side and the company writes; any other
// call panics on the nil embedded interface.
type stubRegistry struct{ reference.Registry }

func (stubRegistry) ListDoctors(context.Context) ([]reference.Doctor, error) {
	return []reference.Doctor{{ID: 1, Name: "Dr. Adams"}}, nil
}
func (stubRegistry) ListPatients(context.Context) ([]reference.Patient, error) { return nil, nil }
func (stubRegistry) ListPharmacies(context.Context) ([]reference.Pharmacy, error) {
	return nil, nil
}
func (stubRegistry) ListDrugs(context.Context) ([]reference.Drug, error) { return nil, nil }
func (stubRegistry) Counts(context.Context) (*reference.Counts, error) {
	return &reference.Counts{Doctors: 1}, nil
}
func (stubRegistry) AddCompany(context.Context, reference.Company) error { return nil }

type stubStore struct{}

func (stubStore) ListPrescriptions(context.Context) ([]prescription.Prescription, error) {
	return []prescription.Prescription{}, nil
}
func (stubStore) UpsertPrescription(context.Context, prescription.UpsertRequest) error { return nil }
func (stubStore) DeletePrescription(context.Context, int64) error                     { return nil }

func testServer(t *testing.T, env string) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Env:            env,
		AuthSecret:     strings.Repeat("k", 32),
		CORSOrigins:    []string{"http://localhost:3000"},
		BodyLimit:      "1M",
		RequestTimeout: 5 * time.Second,
	}
	bus := events.NewLocalBus()
	t.Cleanup(func() { bus.Close() })
	board := notification.NewBoard()
	logger := zerolog.Nop()

	return newServer(&app{
		cfg:     cfg,
		logger:  logger,
		health:  okPinger{},
		refs:    reference.NewService(stubRegistry{}, board, bus, logger),
		svc:     prescription.NewService(stubRegistry{}, stubStore{}, prescription.NewSessions(time.Minute), board, bus, logger),
		board:   board,
		hub:     websocket.NewHub(logger),
		limiter: middleware.NewRateLimiter(middleware.DefaultRateLimitConfig()),
	})
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	rec := get(testServer(t, "production"), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request id on every response")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestServer_Metrics(t *testing.T) {
	h := testServer(t, "development")
	get(h, "/api/v1/doctors")

	rec := get(h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_request_total") {
		t.Error("expected request counters in the exposition")
	}
}

func TestServer_DevelopmentGrantsAdmin(t *testing.T) {
	h := testServer(t, "development")

	for _, path := range []string{"/api/v1/doctors", "/api/v1/dashboard", "/api/v1/prescriptions", "/api/v1/notices"} {
		if rec := get(h, path); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/prescription-drafts", nil))
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201 opening a draft, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_ReferenceWriteReachesNotices(t *testing.T) {
	h := testServer(t, "development")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pharmaceutical-companies", strings.NewReader(`{"name":"Globex"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = get(h, "/api/v1/notices")
	if !strings.Contains(rec.Body.String(), "Company added successfully") {
		t.Errorf("expected a success notice, got %s", rec.Body.String())
	}
}

func TestServer_ProductionRequiresToken(t *testing.T) {
	rec := get(testServer(t, "production"), "/api/v1/doctors")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestNewLogger(t *testing.T) {
	// Both variants must be usable without panicking.
	dev := newLogger("development")
	dev.Debug().Msg("dev")
	prod := newLogger("production")
	prod.Debug().Msg("prod")
}

func TestNewBus_LocalWithoutRedis(t *testing.T) {
	bus, err := newBus(context.Background(), &config.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer bus.Close()
	if _, ok := bus.(*events.LocalBus); !ok {
		t.Errorf("expected a LocalBus, got %T", bus)
	}
}

func TestMigrateCmd_Subcommands(t *testing.T) {
	cmd := migrateCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
		if c.Flags().Lookup("dir") == nil {
			t.Errorf("%s: expected --dir flag", c.Name())
		}
	}
	if !names["up"] || !names["status"] {
		t.Errorf("expected up and status subcommands, got %v", names)
	}
}
