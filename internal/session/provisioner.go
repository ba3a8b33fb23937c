package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/classtime/internal/docstore"
	"github.com/hitoshi/classtime/internal/model"
)

// ProfileCreator はプロファイルの条件付き作成に必要なストア操作のインターフェース。
// docstore.Storeの部分集合として定義する。
type ProfileCreator interface {
	Create(ctx context.Context, collection, id string, data map[string]any) error
}

// Provisioner はprovisioning階層のPrincipalに対してプロファイルの初回作成を行う。
// 作成は条件付き書き込みのため、並行実行されても二重作成は起きない。
// さらにPrincipalごとのインフライトガードにより、短時間に繰り返される評価が
// 作成リクエストを多重発行しないようにしている。
type Provisioner struct {
	store ProfileCreator

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewProvisioner はProvisionerを生成する。
func NewProvisioner(store ProfileCreator) *Provisioner {
	return &Provisioner{
		store:    store,
		inflight: make(map[string]struct{}),
	}
}

// ProvisionIfNeeded は階層がprovisioningの場合にプロファイルを作成する。
// それ以外の階層では何もしない。同一Principalの作成が既に進行中の場合も
// 何もしない。既にプロファイルが存在する場合（ErrDocumentExists）は
// 正常系として扱う。作成に成功した場合はtrueを返す。
func (p *Provisioner) ProvisionIfNeeded(ctx context.Context, tier model.AccessTier, principal *model.Principal) (bool, error) {
	if tier != model.TierProvisioning || principal == nil {
		return false, nil
	}

	p.mu.Lock()
	if _, busy := p.inflight[principal.ID]; busy {
		p.mu.Unlock()
		return false, nil
	}
	p.inflight[principal.ID] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.inflight, principal.ID)
		p.mu.Unlock()
	}()

	data := map[string]any{
		"email":      principal.Email,
		"name":       principal.Name,
		"total_time": "0",
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}

	err := p.store.Create(ctx, docstore.CollectionUsers, principal.ID, data)
	if errors.Is(err, docstore.ErrDocumentExists) {
		// 並行評価が先に作成を済ませたケース。上書きせずそのまま成功扱い。
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to provision user profile: %w", err)
	}

	slog.Info("user profile provisioned",
		slog.String("user_id", principal.ID),
	)
	return true, nil
}
