package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nucleus/pm-sync/internal/connector/http"
	"github.com/nucleus/pm-sync/internal/database"
	"github.com/nucleus/pm-sync/internal/database/dbtest"
	"github.com/nucleus/pm-sync/internal/endpoint"
	"github.com/nucleus/pm-sync/internal/endpoint/endpointtest"
)

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, fake *endpointtest.Fake) (*Manager, *database.Client) {
	t.Helper()
	db := dbtest.New(t)
	m := NewManager(db, WithRegistry(endpoint.NewRegistry()), WithClock(func() time.Time { return fixedNow }))
	m.RegisterAdapterConstructor(endpoint.ServiceGitHub, fake.Factory())
	return m, db
}

func addService(t *testing.T, db *database.Client, id string, enabled bool) {
	t.Helper()
	_, err := db.CreateService(context.Background(), &database.Service{
		ID:          id,
		ServiceType: endpoint.ServiceGitHub,
		Name:        "GitHub " + id,
		Credentials: map[string]string{"token": "ghp_test"},
		Enabled:     enabled,
	})
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}
}

func TestConnectServicePersistsStatus(t *testing.T) {
	ctx := context.Background()
	fake := &endpointtest.Fake{}
	m, db := newTestManager(t, fake)
	addService(t, db, "gh", true)

	ok, err := m.ConnectService(ctx, "gh")
	if err != nil || !ok {
		t.Fatalf("ConnectService = %v, %v", ok, err)
	}
	if _, live := m.GetClient("gh"); !live {
		t.Fatal("adapter not stored")
	}
	if cfg := fake.Config(); cfg == nil || cfg.Credential("token") != "ghp_test" {
		t.Errorf("adapter built from wrong config: %+v", cfg)
	}

	svc, err := db.GetService(ctx, "gh")
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}
	if svc.ConnectionStatus != endpoint.StatusConnected {
		t.Errorf("status = %s, want connected", svc.ConnectionStatus)
	}
	if svc.LastConnectedAt == nil || !svc.LastConnectedAt.Equal(fixedNow) {
		t.Errorf("last_connected_at = %v, want %v", svc.LastConnectedAt, fixedNow)
	}
	if svc.LastError != "" {
		t.Errorf("last_error = %q, want empty", svc.LastError)
	}
}

func TestConnectServiceFailureRecordsError(t *testing.T) {
	ctx := context.Background()
	fake := &endpointtest.Fake{ConnectErr: &http.AuthenticationError{Client: "github", Message: "bad token"}}
	m, db := newTestManager(t, fake)
	addService(t, db, "gh", true)

	ok, err := m.ConnectService(ctx, "gh")
	if ok || err == nil {
		t.Fatalf("ConnectService = %v, %v, want failure", ok, err)
	}
	if _, live := m.GetClient("gh"); live {
		t.Error("failed adapter should not be stored")
	}
	svc, _ := db.GetService(ctx, "gh")
	if svc.ConnectionStatus != endpoint.StatusError {
		t.Errorf("status = %s, want error", svc.ConnectionStatus)
	}
	if svc.LastError == "" {
		t.Error("last_error not recorded")
	}
}

func TestConnectServiceRejectsMissingAndDisabled(t *testing.T) {
	ctx := context.Background()
	m, db := newTestManager(t, &endpointtest.Fake{})
	addService(t, db, "off", false)

	if _, err := m.ConnectService(ctx, "nope"); !errors.Is(err, endpoint.ErrServiceNotFound) {
		t.Errorf("missing service err = %v", err)
	}
	if _, err := m.ConnectService(ctx, "off"); !errors.Is(err, endpoint.ErrServiceDisabled) {
		t.Errorf("disabled service err = %v", err)
	}
}

func TestDisconnectService(t *testing.T) {
	ctx := context.Background()
	fake := &endpointtest.Fake{}
	m, db := newTestManager(t, fake)
	addService(t, db, "gh", true)

	if _, err := m.ConnectService(ctx, "gh"); err != nil {
		t.Fatalf("ConnectService: %v", err)
	}
	if err := m.DisconnectService(ctx, "gh"); err != nil {
		t.Fatalf("DisconnectService: %v", err)
	}
	if fake.IsConnected() {
		t.Error("adapter still connected")
	}
	if ids := m.ConnectedServiceIDs(); len(ids) != 0 {
		t.Errorf("connected ids = %v", ids)
	}
	svc, _ := db.GetService(ctx, "gh")
	if svc.ConnectionStatus != endpoint.StatusDisconnected {
		t.Errorf("status = %s, want disconnected", svc.ConnectionStatus)
	}
	if err := m.DisconnectService(ctx, "gh"); err != nil {
		t.Errorf("second disconnect: %v", err)
	}
}

func TestCreateClientUnregisteredType(t *testing.T) {
	m := NewManager(nil, WithRegistry(endpoint.NewRegistry()))
	_, err := m.CreateClient(&endpoint.ServiceConfig{Type: endpoint.ServiceConfluence})
	if !errors.Is(err, endpoint.ErrUnregisteredType) {
		t.Errorf("err = %v, want ErrUnregisteredType", err)
	}
}

func TestSyncAllServices(t *testing.T) {
	ctx := context.Background()
	fake := &endpointtest.Fake{
		Repositories: []*endpoint.RepositoryData{{ID: "1", FullName: "acme/api"}, {ID: "2", FullName: "acme/web"}},
		ProjectsErr:  endpoint.ErrUnsupported,
	}
	m, db := newTestManager(t, fake)
	addService(t, db, "gh", true)
	if _, err := m.ConnectService(ctx, "gh"); err != nil {
		t.Fatalf("ConnectService: %v", err)
	}

	results := m.SyncAllServices(ctx)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Status != SyncSuccess || r.RepositoriesSynced != 2 || r.ProjectsSynced != 0 {
		t.Errorf("result = %+v", r)
	}
	if len(r.Warnings) != 1 || len(r.Errors) != 0 {
		t.Errorf("warnings = %v, errors = %v", r.Warnings, r.Errors)
	}
}

func TestSyncAllServicesPartial(t *testing.T) {
	ctx := context.Background()
	fake := &endpointtest.Fake{RepositoriesErr: errors.New("boom")}
	m, db := newTestManager(t, fake)
	addService(t, db, "gh", true)
	if _, err := m.ConnectService(ctx, "gh"); err != nil {
		t.Fatalf("ConnectService: %v", err)
	}

	r := m.SyncAllServices(ctx)[0]
	if r.Status != SyncPartial || len(r.Errors) != 1 {
		t.Errorf("result = %+v", r)
	}
}

func TestHealthCheckAllServices(t *testing.T) {
	ctx := context.Background()
	m, db := newTestManager(t, &endpointtest.Fake{})
	addService(t, db, "a", true)
	addService(t, db, "b", true)
	if _, err := m.ConnectService(ctx, "a"); err != nil {
		t.Fatalf("ConnectService: %v", err)
	}

	checks, err := m.HealthCheckAllServices(ctx)
	if err != nil {
		t.Fatalf("HealthCheckAllServices: %v", err)
	}
	if len(checks) != 2 {
		t.Fatalf("got %d checks, want 2", len(checks))
	}
	byID := map[string]*endpoint.HealthCheck{}
	for _, c := range checks {
		byID[c.ServiceID] = c
	}
	if byID["a"].Status != endpoint.HealthHealthy {
		t.Errorf("a = %+v, want healthy", byID["a"])
	}
	if byID["b"].Status != endpoint.HealthUnhealthy || byID["b"].ErrorMessage != "not connected" {
		t.Errorf("b = %+v, want not connected", byID["b"])
	}
}

func TestValidateServiceConfig(t *testing.T) {
	ctx := context.Background()
	cfg := &endpoint.ServiceConfig{ID: "x", Type: endpoint.ServiceGitHub}

	m, _ := newTestManager(t, &endpointtest.Fake{})
	if err := m.ValidateServiceConfig(ctx, cfg); err != nil {
		t.Errorf("valid config: %v", err)
	}

	m, _ = newTestManager(t, &endpointtest.Fake{InvalidCredentials: true})
	if err := m.ValidateServiceConfig(ctx, cfg); !errors.Is(err, endpoint.ErrInvalidCredentials) {
		t.Errorf("rejected identity err = %v", err)
	}

	m, _ = newTestManager(t, &endpointtest.Fake{ConnectErr: &http.AuthenticationError{Client: "github", Message: "401"}})
	if err := m.ValidateServiceConfig(ctx, cfg); !errors.Is(err, endpoint.ErrInvalidCredentials) {
		t.Errorf("401 on connect err = %v", err)
	}
}
