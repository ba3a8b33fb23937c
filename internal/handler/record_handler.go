package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/classtime/internal/middleware"
	"github.com/hitoshi/classtime/internal/model"
)

// RecordServiceInterface は時間記録ハンドラーが必要とするサービスインターフェース。
type RecordServiceInterface interface {
	// AddRecord はクラスに対する時間記録を追加する。
	AddRecord(ctx context.Context, userID, classID string, seconds int, recordedAt time.Time) (*model.TimeRecord, error)
	// ListByUser はユーザーの全時間記録を返す。
	ListByUser(ctx context.Context, userID string) ([]*model.TimeRecord, error)
}

// RecordAddedRecorder は時間記録追加のメトリクス記録インターフェース。
type RecordAddedRecorder interface {
	RecordRecordAdded()
}

// RecordHandler は時間記録のHTTPハンドラー。
type RecordHandler struct {
	service RecordServiceInterface
	metrics RecordAddedRecorder
}

// NewRecordHandler はRecordHandlerを生成する。metricsはnil可。
func NewRecordHandler(service RecordServiceInterface, metrics RecordAddedRecorder) *RecordHandler {
	return &RecordHandler{
		service: service,
		metrics: metrics,
	}
}

// addRecordRequest は時間記録追加リクエストのボディ。
// recorded_atはRFC3339形式。省略時はサーバー時刻を使用する。
type addRecordRequest struct {
	ClassID    string `json:"class_id"`
	Seconds    int    `json:"seconds"`
	RecordedAt string `json:"recorded_at,omitempty"`
}

// recordResponse は時間記録のAPIレスポンス。
type recordResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	ClassID    string `json:"class_id"`
	Seconds    int    `json:"seconds"`
	RecordedAt string `json:"recorded_at"`
}

// AddRecord は時間記録の追加を処理する。
// POST /api/records
func (h *RecordHandler) AddRecord(w http.ResponseWriter, r *http.Request) {
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

	var req addRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	var recordedAt time.Time
	if req.RecordedAt != "" {
		recordedAt, err = time.Parse(time.RFC3339, req.RecordedAt)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRecordError("recorded_atはRFC3339形式で指定してください"))
			return
		}
	}

	record, err := h.service.AddRecord(r.Context(), userID, req.ClassID, req.Seconds, recordedAt)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordRecordAdded()
	}

	writeJSON(w, http.StatusCreated, toRecordResponse(record))
}

// ListRecords は認証済みユーザーの時間記録一覧を返す。
// GET /api/records
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
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

	records, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]recordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, toRecordResponse(record))
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": responses})
}

// toRecordResponse はmodel.TimeRecordからAPIレスポンスに変換する。
func toRecordResponse(record *model.TimeRecord) recordResponse {
	return recordResponse{
		ID:         record.ID,
		UserID:     record.UserID,
		ClassID:    record.ClassID,
		Seconds:    record.Seconds,
		RecordedAt: record.RecordedAt.UTC().Format(time.RFC3339),
	}
}
