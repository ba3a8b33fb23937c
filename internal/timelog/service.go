// Package timelog は学習時間記録のドメインロジックを提供する。
// 記録は追記のみで、クラス統計への反映は集計ワーカーが行う。
package timelog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/classtime/internal/docstore"
	"github.com/hitoshi/classtime/internal/model"
)

// RecordStore は時間記録に必要なストア操作のインターフェース。
// docstore.Storeの部分集合として定義する。
type RecordStore interface {
	Get(ctx context.Context, collection, id string) (*docstore.Document, error)
	Set(ctx context.Context, collection, id string, data map[string]any) error
	ListByField(ctx context.Context, collection, field, value string) ([]*docstore.Document, error)
}

// Service は時間記録のサービス層。
type Service struct {
	store RecordStore
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store RecordStore) *Service {
	return &Service{store: store}
}

// AddRecord は時間記録を追加する。
// 記録対象のクラスが存在し、記録時間が正であることを検証する。
// recordedAtがゼロ値の場合は現在時刻を採用する。
func (s *Service) AddRecord(ctx context.Context, userID, classID string, seconds int, recordedAt time.Time) (*model.TimeRecord, error) {
	if seconds <= 0 {
		return nil, model.NewInvalidRecordError(fmt.Sprintf("記録時間は正の秒数で指定してください（指定値: %d）", seconds))
	}

	classDoc, err := s.store.Get(ctx, docstore.CollectionClasses, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to check class: %w", err)
	}
	if !classDoc.Exists {
		return nil, model.NewClassNotFoundError(classID)
	}

	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	record := &model.TimeRecord{
		ID:         uuid.New().String(),
		UserID:     userID,
		ClassID:    classID,
		Seconds:    seconds,
		RecordedAt: recordedAt,
	}

	data := map[string]any{
		"user_id":     record.UserID,
		"class_id":    record.ClassID,
		"seconds":     record.Seconds,
		"recorded_at": record.RecordedAt.UTC().Format(time.RFC3339),
	}
	if err := s.store.Set(ctx, docstore.CollectionRecords, record.ID, data); err != nil {
		return nil, fmt.Errorf("failed to save time record: %w", err)
	}

	slog.Info("time record added",
		slog.String("user_id", record.UserID),
		slog.String("class_id", record.ClassID),
		slog.Int("seconds", record.Seconds),
	)
	return record, nil
}

// ListByUser はユーザーの時間記録を返す。
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*model.TimeRecord, error) {
	docs, err := s.store.ListByField(ctx, docstore.CollectionRecords, "user_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list time records: %w", err)
	}

	records := make([]*model.TimeRecord, len(docs))
	for i, doc := range docs {
		records[i] = recordFromDocument(doc)
	}
	return records, nil
}

// recordFromDocument はrecordsコレクションのドキュメントをモデルに変換する。
// jsonbの数値は float64 でデコードされる。
func recordFromDocument(doc *docstore.Document) *model.TimeRecord {
	record := &model.TimeRecord{
		ID:      doc.ID,
		UserID:  doc.String("user_id"),
		ClassID: doc.String("class_id"),
	}
	if seconds, ok := doc.Data["seconds"].(float64); ok {
		record.Seconds = int(seconds)
	}
	if recordedAt, err := time.Parse(time.RFC3339, doc.String("recorded_at")); err == nil {
		record.RecordedAt = recordedAt
	}
	return record
}
