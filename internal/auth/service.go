// Package auth はOAuth認証フロー、セッション管理を提供する。
// プロファイルの作成はここでは行わない。初回サインイン時のプロビジョニングは
// セッション評価側の責務。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/classtime/internal/docstore"
	"github.com/hitoshi/classtime/internal/model"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// SessionStore はセッションの永続化に必要なストア操作のインターフェース。
// docstore.Storeの部分集合として定義する。
type SessionStore interface {
	Get(ctx context.Context, collection, id string) (*docstore.Document, error)
	Set(ctx context.Context, collection, id string, data map[string]any) error
	Delete(ctx context.Context, collection, id string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
// セッションはsessionsコレクションのドキュメントとして永続化され、
// Principal（Googleのsub、メール、表示名）をセッションに保持する。
type Service struct {
	oauth  OAuthProvider
	store  SessionStore
	config ServiceConfig
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, store SessionStore, config ServiceConfig) *Service {
	return &Service{
		oauth:  oauth,
		store:  store,
		config: config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// Googleのsubクレームをprincipal IDとして採用する。
// プロファイルドキュメントの有無は確認しない（評価側で解決される）。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	session, err := s.createSession(ctx, &model.Principal{
		ID:    userInfo.ProviderUserID,
		Email: userInfo.Email,
		Name:  userInfo.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", userInfo.ProviderUserID),
		slog.String("provider", userInfo.Provider),
	)
	return session, nil
}

// GetPrincipal はセッションIDから認証済みPrincipalを復元する。
// セッションが存在しない、または期限切れの場合はnilを返し、エラーにはしない
// （未認証として扱われる）。期限切れセッションはその場で削除する。
func (s *Service) GetPrincipal(ctx context.Context, sessionID string) (*model.Principal, error) {
	if sessionID == "" {
		return nil, nil
	}

	doc, err := s.store.Get(ctx, docstore.CollectionSessions, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if !doc.Exists {
		return nil, nil
	}

	expiresAt, err := time.Parse(time.RFC3339, doc.String("expires_at"))
	if err != nil || time.Now().After(expiresAt) {
		// 期限切れ（または壊れた）セッションは遅延削除する
		if delErr := s.store.Delete(ctx, docstore.CollectionSessions, sessionID); delErr != nil {
			slog.Warn("failed to delete expired session",
				slog.String("session_id", sessionID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, nil
	}

	return &model.Principal{
		ID:    doc.String("user_id"),
		Email: doc.String("email"),
		Name:  doc.String("name"),
	}, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.store.Delete(ctx, docstore.CollectionSessions, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, principal *model.Principal) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:          sessionID,
		PrincipalID: principal.ID,
		ExpiresAt:   now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt:   now,
	}

	data := map[string]any{
		"user_id":    principal.ID,
		"email":      principal.Email,
		"name":       principal.Name,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
		"created_at": session.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := s.store.Set(ctx, docstore.CollectionSessions, sessionID, data); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
