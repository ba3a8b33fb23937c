package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/classtime/internal/metrics"
	"github.com/hitoshi/classtime/internal/model"
)

// ClassServiceInterface はクラスハンドラーが必要とするサービスインターフェース。
type ClassServiceInterface interface {
	// CreateClass は学科・コース番号を正規化・検証し、クラスを登録する。
	CreateClass(ctx context.Context, department, courseNumber, name string) (string, error)
	// GetClass はクラスを取得する。
	GetClass(ctx context.Context, classID string) (*model.Class, error)
	// ListClasses は全クラスの一覧を返す。
	ListClasses(ctx context.Context) ([]*model.Class, error)
}

// ClassCreationRecorder はクラス作成結果のメトリクス記録インターフェース。
type ClassCreationRecorder interface {
	RecordClassCreation(outcome string)
}

// ClassHandler はクラス管理のHTTPハンドラー。
type ClassHandler struct {
	service ClassServiceInterface
	metrics ClassCreationRecorder
}

// NewClassHandler はClassHandlerを生成する。metricsはnil可。
func NewClassHandler(service ClassServiceInterface, metrics ClassCreationRecorder) *ClassHandler {
	return &ClassHandler{
		service: service,
		metrics: metrics,
	}
}

// createClassRequest はクラス作成リクエストのボディ。
type createClassRequest struct {
	Department   string `json:"department"`
	CourseNumber string `json:"course_number"`
	Name         string `json:"name"`
}

// classResponse はクラス情報のAPIレスポンス。
// 統計フィールドは保存形式と同じく文字列。
type classResponse struct {
	ID            string `json:"id"`
	Department    string `json:"department"`
	CourseNumber  string `json:"course_number"`
	Name          string `json:"name"`
	DailyAverage  string `json:"daily_average"`
	WeeklyAverage string `json:"weekly_average"`
	TotalTime     string `json:"total_time"`
}

// CreateClass はクラス登録を処理する。
// POST /api/classes
func (h *ClassHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.recordCreation(metrics.ClassCreationInvalid)
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	classID, err := h.service.CreateClass(r.Context(), req.Department, req.CourseNumber, req.Name)
	if err != nil {
		h.recordCreation(creationOutcome(err))
		handleServiceError(w, err)
		return
	}

	h.recordCreation(metrics.ClassCreationCreated)

	class, err := h.service.GetClass(r.Context(), classID)
	if err != nil {
		// 作成自体は成功しているため、IDのみ返す
		slog.Warn("failed to load created class", slog.String("class_id", classID))
		writeJSON(w, http.StatusCreated, map[string]string{"id": classID})
		return
	}

	writeJSON(w, http.StatusCreated, toClassResponse(class))
}

// GetClass はクラス詳細を取得する。
// GET /api/classes/{id}
// クラスIDはスペースを含む（"CSCI 0320"）ため、パスパラメータはURLエンコードされている。
func (h *ClassHandler) GetClass(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "id")
	if decoded, err := url.PathUnescape(classID); err == nil {
		classID = decoded
	}

	class, err := h.service.GetClass(r.Context(), classID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toClassResponse(class))
}

// ListClasses は全クラスの一覧を返す。
// GET /api/classes
func (h *ClassHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.service.ListClasses(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]classResponse, 0, len(classes))
	for _, class := range classes {
		responses = append(responses, toClassResponse(class))
	}

	writeJSON(w, http.StatusOK, map[string]any{"classes": responses})
}

// recordCreation はクラス作成結果のメトリクスを記録する。
func (h *ClassHandler) recordCreation(outcome string) {
	if h.metrics != nil {
		h.metrics.RecordClassCreation(outcome)
	}
}

// creationOutcome はクラス作成エラーをメトリクスの結果ラベルに変換する。
func creationOutcome(err error) string {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return metrics.ClassCreationError
	}
	switch apiErr.Code {
	case model.ErrCodeInvalidDepartment, model.ErrCodeInvalidCourseNumber:
		return metrics.ClassCreationInvalid
	case model.ErrCodeDuplicateClass:
		return metrics.ClassCreationDuplicate
	default:
		return metrics.ClassCreationError
	}
}

// toClassResponse はmodel.ClassからAPIレスポンスに変換する。
func toClassResponse(class *model.Class) classResponse {
	return classResponse{
		ID:            class.ID,
		Department:    class.Department,
		CourseNumber:  class.CourseNumber,
		Name:          class.Name,
		DailyAverage:  class.DailyAverage,
		WeeklyAverage: class.WeeklyAverage,
		TotalTime:     class.TotalTime,
	}
}
