package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/nucleus/pm-sync/internal/reconcile"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*SyncService)(nil)
)

type fakeServer struct {
	stop      chan struct{}
	listenErr error
	shutdown  atomic.Bool
}

func newFakeServer() *fakeServer { return &fakeServer{stop: make(chan struct{})} }

func (s *fakeServer) ListenAndServe() error {
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.stop
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	s.shutdown.Store(true)
	close(s.stop)
	return nil
}

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingSyncer) SyncAllProjects(ctx context.Context) ([]*reconcile.SyncStatus, error) {
	c.calls.Add(1)
	return []*reconcile.SyncStatus{{Status: reconcile.StatusSuccess}, {Status: reconcile.StatusError}}, c.err
}

func TestHTTPServerServiceShutsDownOnCancel(t *testing.T) {
	srv := newFakeServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if !srv.shutdown.Load() {
		t.Error("Shutdown not called")
	}
}

func TestHTTPServerServiceReportsListenFailure(t *testing.T) {
	srv := newFakeServer()
	srv.listenErr = errors.New("address in use")
	err := NewHTTPServerService(srv, 0).Serve(context.Background())
	if err == nil || !errors.Is(err, srv.listenErr) {
		t.Errorf("Serve = %v, want wrapped listen error", err)
	}
}

func TestSyncServiceRunsImmediatelyAndOnInterval(t *testing.T) {
	syncer := &countingSyncer{}
	svc := NewSyncService(syncer, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for syncer.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if n := syncer.calls.Load(); n < 3 {
		t.Errorf("sync ran %d times, want at least 3", n)
	}
}

func TestSyncServiceSurvivesSyncErrors(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("store down")}
	svc := NewSyncService(syncer, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v, want deadline exceeded", err)
	}
	if syncer.calls.Load() < 2 {
		t.Errorf("sync ran %d times, want retries after errors", syncer.calls.Load())
	}
}

func TestSyncServiceRejectsZeroInterval(t *testing.T) {
	if err := NewSyncService(&countingSyncer{}, 0).Serve(context.Background()); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestTreeDefaultsAndLifecycle(t *testing.T) {
	tree := NewTree(TreeConfig{})
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults", tree.config)
	}

	syncer := &countingSyncer{}
	tree.AddSyncService(NewSyncService(syncer, time.Hour))
	srv := newFakeServer()
	tree.AddAPIService(NewHTTPServerService(srv, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for syncer.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
	if syncer.calls.Load() == 0 {
		t.Error("sync service never ran")
	}
	if !srv.shutdown.Load() {
		t.Error("http server not shut down")
	}
}
