package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/classtime/internal/model"
	"github.com/hitoshi/classtime/internal/session"
)

// TierResolver はアクセス階層を評価するインターフェース。
// session.Resolverが実装する。
type TierResolver interface {
	Resolve(ctx context.Context, auth session.AuthState, profile session.ProfileState) model.AccessTier
}

// ProfileGetter はプロファイルの取得インターフェース。
// user.Serviceの部分集合として定義する。
type ProfileGetter interface {
	GetProfile(ctx context.Context, principalID string) (*model.User, error)
}

// NewRequireAccessMiddleware はAPIルートをアクセス階層で保護するミドルウェアを返す。
// SessionMiddlewareの後に配置すること。リクエストごとに階層を評価し、
// 認可済み（full_access / restricted_access）のみ通過させる。
// 通過したリクエストのコンテキストには評価済み階層が注入される。
func NewRequireAccessMiddleware(resolver TierResolver, profiles ProfileGetter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tier := resolveTier(r.Context(), resolver, profiles)

			if !tier.Authorized() {
				writeTierDenied(w, tier)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithTier(r.Context(), tier)))
		})
	}
}

// resolveTier はコンテキストのPrincipal解決結果とプロファイル取得結果から
// アクセス階層を評価する。
func resolveTier(ctx context.Context, resolver TierResolver, profiles ProfileGetter) model.AccessTier {
	principal, perr := PrincipalFromContext(ctx)
	auth := session.AuthState{Principal: principal, Err: perr}

	var profile session.ProfileState
	if principal != nil && perr == nil {
		p, err := profiles.GetProfile(ctx, principal.ID)
		profile = session.ProfileState{Profile: p, Err: err}
	}

	return resolver.Resolve(ctx, auth, profile)
}

// ResolveTier はハンドラーから直接階層評価を行うためのエクスポート。
// /auth/me のように非認可階層もレスポンスとして返すエンドポイントで使用する。
func ResolveTier(ctx context.Context, resolver TierResolver, profiles ProfileGetter) model.AccessTier {
	return resolveTier(ctx, resolver, profiles)
}

// writeTierDenied は非認可階層に対応するエラーレスポンスを書き込む。
func writeTierDenied(w http.ResponseWriter, tier model.AccessTier) {
	switch tier {
	case model.TierUnauthenticated:
		WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHENTICATED",
			Message:  "ログインが必要です。",
			Category: "auth",
			Action:   "ログインしてから再度お試しください。",
		})
	case model.TierFailed:
		WriteInternalServerError(w)
	case model.TierPending, model.TierProvisioning:
		WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
			Code:     "ACCESS_PENDING",
			Message:  "アカウントの準備中です。",
			Category: "auth",
			Action:   "しばらく待ってから再度お試しください。",
		})
	default: // rejected
		WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
			Code:     "ACCESS_REJECTED",
			Message:  "このメールドメインでは利用できません。",
			Category: "auth",
			Action:   "所属機関のアカウントでログインし直してください。",
		})
	}
}
