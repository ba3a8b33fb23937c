package session

import (
	"context"
	"log/slog"

	"github.com/hitoshi/classtime/internal/model"
)

// MetricsRecorder はセッション評価が記録するメトリクスのインターフェース。
// metrics.Collectorが実装する。
type MetricsRecorder interface {
	RecordSessionResolution(tier string)
	RecordProfileProvisioned()
}

// Resolver は分類とプロビジョニングを束ねるセッション評価の入口。
// 評価自体は純粋な分類で、プロビジョニングは非同期の副作用として切り離す。
type Resolver struct {
	classifier  *Classifier
	provisioner *Provisioner
	metrics     MetricsRecorder
}

// NewResolver はResolverを生成する。metricsはnilでもよい。
func NewResolver(classifier *Classifier, provisioner *Provisioner, metrics MetricsRecorder) *Resolver {
	return &Resolver{
		classifier:  classifier,
		provisioner: provisioner,
		metrics:     metrics,
	}
}

// Resolve はアクセス階層を導出して返す。
// failed階層ではエラー内容をログに出力する（認証軸のエラーを優先）。
// provisioning階層ではプロファイル作成を非同期で起動し、結果を待たずに返す。
// 作成完了前の再評価は引き続きprovisioningになるが、インフライトガードと
// 条件付き作成により二重作成は起きない。
func (r *Resolver) Resolve(ctx context.Context, auth AuthState, profile ProfileState) model.AccessTier {
	tier := r.classifier.Classify(auth, profile)

	if tier == model.TierFailed {
		err := auth.Err
		axis := "auth"
		if err == nil {
			err = profile.Err
			axis = "profile"
		}
		slog.Error("session resolution failed",
			slog.String("axis", axis),
			slog.String("error", err.Error()),
		)
	}

	if r.metrics != nil {
		r.metrics.RecordSessionResolution(string(tier))
	}

	if tier == model.TierProvisioning {
		principal := auth.Principal
		go func(ctx context.Context) {
			created, err := r.provisioner.ProvisionIfNeeded(ctx, tier, principal)
			if err != nil {
				slog.Error("profile provisioning failed",
					slog.String("user_id", principal.ID),
					slog.String("error", err.Error()),
				)
				return
			}
			if created && r.metrics != nil {
				r.metrics.RecordProfileProvisioned()
			}
		}(context.WithoutCancel(ctx))
	}

	return tier
}
