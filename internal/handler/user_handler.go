package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/classtime/internal/middleware"
	"github.com/hitoshi/classtime/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetProfile はユーザープロファイルを取得する。未作成の場合は(nil, nil)。
	GetProfile(ctx context.Context, principalID string) (*model.User, error)
	// Withdraw はユーザーの退会処理を行う。関連データをすべて削除する。
	Withdraw(ctx context.Context, principalID string) error
}

// UserHandlerConfig はユーザーハンドラーの設定。
type UserHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	config  UserHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, config UserHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		config:  config,
	}
}

// GetProfile は認証済みユーザーのプロファイルを返す。
// GET /api/users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if profile == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	writeJSON(w, http.StatusOK, toProfilePayload(profile))
}

// Withdraw は退会処理を行う。
// 時間記録・セッション・プロファイルをすべて削除し、セッションCookieをクリアする。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションは退会処理で削除済み。Cookieもクリアする。
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

	w.WriteHeader(http.StatusNoContent)
}
