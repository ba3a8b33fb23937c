// Package user はユーザープロファイル管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/classtime/internal/docstore"
	"github.com/hitoshi/classtime/internal/model"
)

// ProfileStore はプロファイル管理に必要なストア操作のインターフェース。
// docstore.Storeの部分集合として定義する。
type ProfileStore interface {
	Get(ctx context.Context, collection, id string) (*docstore.Document, error)
	Delete(ctx context.Context, collection, id string) error
	DeleteByField(ctx context.Context, collection, field, value string) (int64, error)
}

// Service はユーザープロファイルのサービス層。
// プロファイル取得と退会処理のビジネスロジックを提供する。
type Service struct {
	store ProfileStore
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store ProfileStore) *Service {
	return &Service{store: store}
}

// GetProfile はprincipal IDに対応するプロファイルを取得する。
// プロファイルが存在しない場合は(nil, nil)を返し、エラーにはしない。
// 初回サインイン直後のプロビジョニング完了前はこの「存在しない」状態になる。
func (s *Service) GetProfile(ctx context.Context, principalID string) (*model.User, error) {
	if principalID == "" {
		return nil, nil
	}

	doc, err := s.store.Get(ctx, docstore.CollectionUsers, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	if !doc.Exists {
		return nil, nil
	}

	profile := &model.User{
		ID:        doc.ID,
		Email:     doc.String("email"),
		Name:      doc.String("name"),
		TotalTime: doc.String("total_time"),
	}
	if createdAt, err := time.Parse(time.RFC3339, doc.String("created_at")); err == nil {
		profile.CreatedAt = createdAt
	}
	return profile, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: 時間記録 → セッション → プロファイル。
// クラスドキュメントは共有資産として残す（統計は集計ワーカーが追従する）。
func (s *Service) Withdraw(ctx context.Context, principalID string) error {
	doc, err := s.store.Get(ctx, docstore.CollectionUsers, principalID)
	if err != nil {
		return fmt.Errorf("failed to get user profile: %w", err)
	}
	if !doc.Exists {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", principalID),
	)

	// 1. 時間記録を削除
	deleted, err := s.store.DeleteByField(ctx, docstore.CollectionRecords, "user_id", principalID)
	if err != nil {
		return fmt.Errorf("failed to delete time records: %w", err)
	}

	// 2. セッションを削除
	if _, err := s.store.DeleteByField(ctx, docstore.CollectionSessions, "user_id", principalID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	// 3. プロファイルを削除
	if err := s.store.Delete(ctx, docstore.CollectionUsers, principalID); err != nil {
		return fmt.Errorf("failed to delete user profile: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", principalID),
		slog.Int64("records_deleted", deleted),
	)

	return nil
}
