// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/classtime/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	principalContextKey = contextKey("principal")
	tierContextKey      = contextKey("access_tier")
)

// PrincipalFinder はセッションCookieからPrincipalを復元するインターフェース。
// auth.Serviceの部分集合として定義する。
type PrincipalFinder interface {
	GetPrincipal(ctx context.Context, sessionID string) (*model.Principal, error)
}

// NewSessionMiddleware はHTTP Only CookieからセッションIDを読み取り、
// 解決済みPrincipalをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストも拒否せず通す。アクセス制御は階層評価側
// （RequireAccessミドルウェア、または/auth/meハンドラー）が行う。
func NewSessionMiddleware(finder PrincipalFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := finder.GetPrincipal(r.Context(), cookie.Value)
			if err != nil {
				// ストア障害は未認証ではなくfailed階層として扱わせる
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				ctx := context.WithValue(r.Context(), principalContextKey, &principalResolution{err: err})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			if principal == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey, &principalResolution{principal: principal})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// principalResolution はセッション解決の結果（成功またはエラー）を保持する。
type principalResolution struct {
	principal *model.Principal
	err       error
}

// PrincipalFromContext はリクエストコンテキストからPrincipal解決結果を取得する。
// 戻り値は (principal, 解決エラー)。どちらもnilなら未認証。
func PrincipalFromContext(ctx context.Context) (*model.Principal, error) {
	res, ok := ctx.Value(principalContextKey).(*principalResolution)
	if !ok {
		return nil, nil
	}
	return res.principal, res.err
}

// ContextWithPrincipal はコンテキストにPrincipalを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, principal *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, &principalResolution{principal: principal})
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
// RequireAccessミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	principal, err := PrincipalFromContext(ctx)
	if err != nil || principal == nil || principal.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return principal.ID, nil
}

// TierFromContext はリクエストコンテキストからアクセス階層を取得する。
func TierFromContext(ctx context.Context) (model.AccessTier, bool) {
	tier, ok := ctx.Value(tierContextKey).(model.AccessTier)
	return tier, ok
}

// ContextWithTier はコンテキストにアクセス階層を注入する。
func ContextWithTier(ctx context.Context, tier model.AccessTier) context.Context {
	return context.WithValue(ctx, tierContextKey, tier)
}
