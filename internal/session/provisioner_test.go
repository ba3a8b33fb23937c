package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/classtime/internal/docstore"
	"github.com/hitoshi/classtime/internal/model"
)

type mockProfileCreator struct {
	createFn func(ctx context.Context, collection, id string, data map[string]any) error

	mu         sync.Mutex
	createCall int
}

func (m *mockProfileCreator) Create(ctx context.Context, collection, id string, data map[string]any) error {
	m.mu.Lock()
	m.createCall++
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, collection, id, data)
	}
	return nil
}

func (m *mockProfileCreator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCall
}

func TestProvisionIfNeeded_CreatesProfile(t *testing.T) {
	var gotCollection, gotID string
	var gotData map[string]any
	store := &mockProfileCreator{
		createFn: func(ctx context.Context, collection, id string, data map[string]any) error {
			gotCollection = collection
			gotID = id
			gotData = data
			return nil
		},
	}
	p := NewProvisioner(store)
	principal := &model.Principal{ID: "sub-123", Email: "x@brown.edu", Name: "X"}

	created, err := p.ProvisionIfNeeded(context.Background(), model.TierProvisioning, principal)
	if err != nil {
		t.Fatalf("ProvisionIfNeeded returned error: %v", err)
	}
	if !created {
		t.Error("created = false, want true")
	}
	if gotCollection != docstore.CollectionUsers || gotID != "sub-123" {
		t.Errorf("created %s/%s, want users/sub-123", gotCollection, gotID)
	}
	if gotData["email"] != "x@brown.edu" || gotData["name"] != "X" {
		t.Errorf("unexpected profile data: %v", gotData)
	}
	if gotData["total_time"] != "0" {
		t.Errorf("total_time = %v, want string \"0\"", gotData["total_time"])
	}
	if _, err := time.Parse(time.RFC3339, gotData["created_at"].(string)); err != nil {
		t.Errorf("created_at is not RFC3339: %v", gotData["created_at"])
	}
}

func TestProvisionIfNeeded_NonProvisioningTier_NoOp(t *testing.T) {
	store := &mockProfileCreator{}
	p := NewProvisioner(store)
	principal := &model.Principal{ID: "sub-123", Email: "x@brown.edu"}

	for _, tier := range []model.AccessTier{
		model.TierFullAccess,
		model.TierRestrictedAccess,
		model.TierRejected,
		model.TierPending,
		model.TierFailed,
		model.TierUnauthenticated,
	} {
		created, err := p.ProvisionIfNeeded(context.Background(), tier, principal)
		if err != nil || created {
			t.Errorf("tier %q: (created, err) = (%v, %v), want (false, nil)", tier, created, err)
		}
	}
	if store.calls() != 0 {
		t.Errorf("store.Create called %d times, want 0", store.calls())
	}
}

func TestProvisionIfNeeded_NilPrincipal_NoOp(t *testing.T) {
	store := &mockProfileCreator{}
	p := NewProvisioner(store)

	created, err := p.ProvisionIfNeeded(context.Background(), model.TierProvisioning, nil)
	if err != nil || created {
		t.Errorf("(created, err) = (%v, %v), want (false, nil)", created, err)
	}
}

func TestProvisionIfNeeded_ExistingProfile_Benign(t *testing.T) {
	store := &mockProfileCreator{
		createFn: func(ctx context.Context, collection, id string, data map[string]any) error {
			return docstore.ErrDocumentExists
		},
	}
	p := NewProvisioner(store)
	principal := &model.Principal{ID: "sub-123", Email: "x@brown.edu"}

	created, err := p.ProvisionIfNeeded(context.Background(), model.TierProvisioning, principal)
	if err != nil {
		t.Fatalf("ErrDocumentExists should be benign, got error: %v", err)
	}
	if created {
		t.Error("created = true, want false（既存プロファイルは新規作成扱いにしない）")
	}
}

func TestProvisionIfNeeded_StoreError_Returned(t *testing.T) {
	store := &mockProfileCreator{
		createFn: func(ctx context.Context, collection, id string, data map[string]any) error {
			return errors.New("connection refused")
		},
	}
	p := NewProvisioner(store)
	principal := &model.Principal{ID: "sub-123", Email: "x@brown.edu"}

	_, err := p.ProvisionIfNeeded(context.Background(), model.TierProvisioning, principal)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TestProvisionIfNeeded_InflightGuard は同一Principalの作成進行中に
// 重複した作成リクエストが発行されないことをテストする。
func TestProvisionIfNeeded_InflightGuard(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	store := &mockProfileCreator{
		createFn: func(ctx context.Context, collection, id string, data map[string]any) error {
			close(entered)
			<-release
			return nil
		},
	}
	p := NewProvisioner(store)
	principal := &model.Principal{ID: "sub-123", Email: "x@brown.edu"}
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.ProvisionIfNeeded(ctx, model.TierProvisioning, principal); err != nil {
			t.Errorf("first ProvisionIfNeeded returned error: %v", err)
		}
	}()
	<-entered

	// 1回目の作成が進行中の間、2回目はガードにより即座に戻る
	created, err := p.ProvisionIfNeeded(ctx, model.TierProvisioning, principal)
	if err != nil || created {
		t.Errorf("(created, err) = (%v, %v), want (false, nil) while first create in flight", created, err)
	}

	close(release)
	<-done

	if store.calls() != 1 {
		t.Errorf("store.Create called %d times, want 1", store.calls())
	}
}

// TestProvisionIfNeeded_GuardReleasedAfterCompletion は作成完了後に
// ガードが解除され、次の遷移で再度作成を試行できることをテストする。
func TestProvisionIfNeeded_GuardReleasedAfterCompletion(t *testing.T) {
	store := &mockProfileCreator{
		createFn: func(ctx context.Context, collection, id string, data map[string]any) error {
			return docstore.ErrDocumentExists
		},
	}
	p := NewProvisioner(store)
	principal := &model.Principal{ID: "sub-123", Email: "x@brown.edu"}
	ctx := context.Background()

	if _, err := p.ProvisionIfNeeded(ctx, model.TierProvisioning, principal); err != nil {
		t.Fatalf("first call returned error: %v", err)
	}
	if _, err := p.ProvisionIfNeeded(ctx, model.TierProvisioning, principal); err != nil {
		t.Fatalf("second call returned error: %v", err)
	}
	if store.calls() != 2 {
		t.Errorf("store.Create called %d times, want 2（完了後はガードが解除されること）", store.calls())
	}
}

func TestProvisionIfNeeded_DifferentPrincipals_NotBlocked(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	first := true
	var mu sync.Mutex
	store := &mockProfileCreator{
		createFn: func(ctx context.Context, collection, id string, data map[string]any) error {
			mu.Lock()
			isFirst := first
			first = false
			mu.Unlock()
			if isFirst {
				close(entered)
				<-release
			}
			return nil
		},
	}
	p := NewProvisioner(store)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.ProvisionIfNeeded(ctx, model.TierProvisioning, &model.Principal{ID: "sub-a", Email: "a@brown.edu"})
	}()
	<-entered

	// 別Principalの作成はガードの影響を受けない
	created, err := p.ProvisionIfNeeded(ctx, model.TierProvisioning, &model.Principal{ID: "sub-b", Email: "b@brown.edu"})
	if err != nil {
		t.Fatalf("second principal returned error: %v", err)
	}
	if !created {
		t.Error("created = false, want true for a different principal")
	}

	close(release)
	<-done
}
