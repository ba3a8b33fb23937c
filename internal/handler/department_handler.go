package handler

import (
	"context"
	"net/http"
)

// DepartmentLister は学科コード一覧の取得インターフェース。
// department.Registryが実装する。
type DepartmentLister interface {
	Codes(ctx context.Context) []string
}

// DepartmentHandler は学科コード関連のHTTPハンドラー。
type DepartmentHandler struct {
	departments DepartmentLister
}

// NewDepartmentHandler はDepartmentHandlerを生成する。
func NewDepartmentHandler(departments DepartmentLister) *DepartmentHandler {
	return &DepartmentHandler{departments: departments}
}

// ListDepartments は学科コードの統制語彙をソート済みで返す。
// 語彙が未ロードの場合は空配列を返す（エラーにはしない）。
// GET /api/departments
func (h *DepartmentHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	codes := h.departments.Codes(r.Context())
	if codes == nil {
		codes = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"departments": codes})
}
