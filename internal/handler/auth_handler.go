// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/classtime/internal/middleware"
	"github.com/hitoshi/classtime/internal/model"
)

const (
	sessionCookieName = "session_id"
	oauthStateCookie  = "oauth_state"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	resolver middleware.TierResolver
	profiles middleware.ProfileGetter
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, resolver middleware.TierResolver, profiles middleware.ProfileGetter, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		resolver: resolver,
		profiles: profiles,
		config:   config,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	url := h.service.GetLoginURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	// 3. 認証処理
	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// 4. セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 5. フロントエンドにリダイレクト
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// セッションCookieの取得
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		// セッションをDBから削除
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// meResponse は/auth/meのレスポンス。認可済みの場合のみuserを含む。
type meResponse struct {
	Tier string          `json:"tier"`
	User *profilePayload `json:"user,omitempty"`
}

type profilePayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	TotalTime string `json:"total_time"`
	CreatedAt string `json:"created_at"`
}

// Me は現在のセッションのアクセス階層とプロファイルを返す。
// GET /auth/me
//
// 階層ごとのステータスコード:
//
//	full_access / restricted_access → 200（user付き）
//	pending / provisioning          → 202
//	unauthenticated                 → 401
//	rejected                        → 403
//	failed                          → 500
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	tier := middleware.ResolveTier(r.Context(), h.resolver, h.profiles)

	switch {
	case tier.Authorized():
		principal, _ := middleware.PrincipalFromContext(r.Context())
		profile, err := h.profiles.GetProfile(r.Context(), principal.ID)
		if err != nil || profile == nil {
			slog.Error("failed to load profile for authorized session",
				slog.String("user_id", principal.ID),
			)
			middleware.WriteInternalServerError(w)
			return
		}
		writeJSON(w, http.StatusOK, meResponse{
			Tier: string(tier),
			User: toProfilePayload(profile),
		})

	case tier.Interim():
		writeJSON(w, http.StatusAccepted, meResponse{Tier: string(tier)})

	case tier == model.TierUnauthenticated:
		writeJSON(w, http.StatusUnauthorized, meResponse{Tier: string(tier)})

	case tier == model.TierRejected:
		writeJSON(w, http.StatusForbidden, meResponse{Tier: string(tier)})

	default: // failed
		middleware.WriteInternalServerError(w)
	}
}

// toProfilePayload はmodel.UserからAPIレスポンスに変換する。
func toProfilePayload(u *model.User) *profilePayload {
	return &profilePayload{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		TotalTime: u.TotalTime,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
