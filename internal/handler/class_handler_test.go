package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/classtime/internal/metrics"
	"github.com/hitoshi/classtime/internal/model"
)

type mockClassService struct {
	createClassFn func(ctx context.Context, department, courseNumber, name string) (string, error)
	getClassFn    func(ctx context.Context, classID string) (*model.Class, error)
	listClassesFn func(ctx context.Context) ([]*model.Class, error)
}

func (m *mockClassService) CreateClass(ctx context.Context, department, courseNumber, name string) (string, error) {
	return m.createClassFn(ctx, department, courseNumber, name)
}

func (m *mockClassService) GetClass(ctx context.Context, classID string) (*model.Class, error) {
	if m.getClassFn != nil {
		return m.getClassFn(ctx, classID)
	}
	return nil, model.NewClassNotFoundError(classID)
}

func (m *mockClassService) ListClasses(ctx context.Context) ([]*model.Class, error) {
	return m.listClassesFn(ctx)
}

type mockCreationRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *mockCreationRecorder) RecordClassCreation(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func sampleClass() *model.Class {
	return &model.Class{
		ID:            "CSCI 0320",
		Department:    "CSCI",
		CourseNumber:  "0320",
		Name:          "Introduction to Software Engineering",
		DailyAverage:  "0",
		WeeklyAverage: "0",
		TotalTime:     "0",
	}
}

func TestClassHandler_CreateClass(t *testing.T) {
	service := &mockClassService{
		createClassFn: func(ctx context.Context, department, courseNumber, name string) (string, error) {
			if department != "csci" || courseNumber != "0320" {
				t.Errorf("CreateClass(%q, %q), want raw request values", department, courseNumber)
			}
			return "CSCI 0320", nil
		},
		getClassFn: func(ctx context.Context, classID string) (*model.Class, error) {
			return sampleClass(), nil
		},
	}
	recorder := &mockCreationRecorder{}
	h := NewClassHandler(service, recorder)

	body := `{"department":"csci","course_number":"0320","name":"Introduction to Software Engineering"}`
	req := httptest.NewRequest(http.MethodPost, "/api/classes", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.CreateClass(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var resp classResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "CSCI 0320" || resp.TotalTime != "0" {
		t.Errorf("response = %+v", resp)
	}

	if len(recorder.outcomes) != 1 || recorder.outcomes[0] != metrics.ClassCreationCreated {
		t.Errorf("outcomes = %v, want [created]", recorder.outcomes)
	}
}

func TestClassHandler_CreateClass_Duplicate(t *testing.T) {
	service := &mockClassService{
		createClassFn: func(ctx context.Context, department, courseNumber, name string) (string, error) {
			return "", model.NewDuplicateClassError("CSCI 0320")
		},
	}
	recorder := &mockCreationRecorder{}
	h := NewClassHandler(service, recorder)

	body := `{"department":"CSCI","course_number":"0320","name":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/api/classes", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.CreateClass(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != model.ErrCodeDuplicateClass {
		t.Errorf("code = %q, want DUPLICATE_CLASS", resp.Code)
	}

	if len(recorder.outcomes) != 1 || recorder.outcomes[0] != metrics.ClassCreationDuplicate {
		t.Errorf("outcomes = %v, want [duplicate]", recorder.outcomes)
	}
}

func TestClassHandler_CreateClass_ValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"invalid department", model.NewInvalidDepartmentError("XXXX")},
		{"invalid course number", model.NewInvalidCourseNumberError("320")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockClassService{
				createClassFn: func(ctx context.Context, department, courseNumber, name string) (string, error) {
					return "", tt.err
				},
			}
			recorder := &mockCreationRecorder{}
			h := NewClassHandler(service, recorder)

			body := `{"department":"XXXX","course_number":"320","name":"x"}`
			req := httptest.NewRequest(http.MethodPost, "/api/classes", strings.NewReader(body))
			w := httptest.NewRecorder()
			h.CreateClass(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if len(recorder.outcomes) != 1 || recorder.outcomes[0] != metrics.ClassCreationInvalid {
				t.Errorf("outcomes = %v, want [invalid]", recorder.outcomes)
			}
		})
	}
}

func TestClassHandler_CreateClass_MalformedBody(t *testing.T) {
	h := NewClassHandler(&mockClassService{}, &mockCreationRecorder{})

	req := httptest.NewRequest(http.MethodPost, "/api/classes", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.CreateClass(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestClassHandler_CreateClass_ServiceError(t *testing.T) {
	service := &mockClassService{
		createClassFn: func(ctx context.Context, department, courseNumber, name string) (string, error) {
			return "", errors.New("store unavailable")
		},
	}
	recorder := &mockCreationRecorder{}
	h := NewClassHandler(service, recorder)

	body := `{"department":"CSCI","course_number":"0320","name":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/api/classes", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.CreateClass(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if len(recorder.outcomes) != 1 || recorder.outcomes[0] != metrics.ClassCreationError {
		t.Errorf("outcomes = %v, want [error]", recorder.outcomes)
	}
}

func TestClassHandler_ListClasses(t *testing.T) {
	service := &mockClassService{
		listClassesFn: func(ctx context.Context) ([]*model.Class, error) {
			return []*model.Class{sampleClass()}, nil
		},
	}
	h := NewClassHandler(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/classes", nil)
	w := httptest.NewRecorder()
	h.ListClasses(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Classes []classResponse `json:"classes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Classes) != 1 || resp.Classes[0].ID != "CSCI 0320" {
		t.Errorf("classes = %+v", resp.Classes)
	}
}

func TestClassHandler_ListClasses_Empty(t *testing.T) {
	service := &mockClassService{
		listClassesFn: func(ctx context.Context) ([]*model.Class, error) {
			return nil, nil
		},
	}
	h := NewClassHandler(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/classes", nil)
	w := httptest.NewRecorder()
	h.ListClasses(w, req)

	// 空でもnullではなく空配列を返す
	if !strings.Contains(w.Body.String(), `"classes":[]`) {
		t.Errorf("body = %s, want empty array", w.Body.String())
	}
}
