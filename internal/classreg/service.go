// Package classreg はクラス登録のドメインロジックを提供する。
// クラスは正規化済みの "DEPT NUM" 形式のIDで一意に識別され、
// 同一IDのクラスは二重に作成されない。
package classreg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hitoshi/classtime/internal/docstore"
	"github.com/hitoshi/classtime/internal/model"
)

// courseNumberPattern はコース番号の形式。4桁の数字と任意の英大文字サフィックス
// 1文字（ラボセクション等）。正規化後の値に対して照合する。
var courseNumberPattern = regexp.MustCompile(`^\d{4}[A-Z]?$`)

// ClassStore はクラス登録に必要なストア操作のインターフェース。
// docstore.Storeの部分集合として定義する。
type ClassStore interface {
	Get(ctx context.Context, collection, id string) (*docstore.Document, error)
	Create(ctx context.Context, collection, id string, data map[string]any) error
	List(ctx context.Context, collection string) ([]*docstore.Document, error)
}

// DepartmentValidator は学科コードが統制語彙に含まれるかを判定する。
// department.Registryが実装する。
type DepartmentValidator interface {
	IsValid(ctx context.Context, code string) bool
}

// NameSanitizer はクラス表示名のサニタイズを行う。
// security.NameSanitizerServiceが実装する。
type NameSanitizer interface {
	SanitizeName(name string) string
}

// Service はクラス登録のサービス層。
// 入力の正規化、学科コード・コース番号の検証、条件付き作成を担う。
// 統計フィールドの更新は集計ワーカーの責務であり、ここでは初期値のみ書き込む。
type Service struct {
	store       ClassStore
	departments DepartmentValidator
	sanitizer   NameSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store ClassStore, departments DepartmentValidator, sanitizer NameSanitizer) *Service {
	return &Service{
		store:       store,
		departments: departments,
		sanitizer:   sanitizer,
	}
}

// CreateClass は新しいクラスを作成し、正規化済みのクラスIDを返す。
// 学科コードとコース番号は大文字化と前後空白除去で正規化される。
// 検証は学科コード→コース番号の順で行い、最初の違反のみ報告する。
// 既に同一IDのクラスが存在する場合はDUPLICATE_CLASSエラーを返す（冪等ではない）。
func (s *Service) CreateClass(ctx context.Context, department, courseNumber, name string) (string, error) {
	dept := strings.ToUpper(strings.TrimSpace(department))
	num := strings.ToUpper(strings.TrimSpace(courseNumber))
	displayName := s.sanitizer.SanitizeName(name)

	if !s.departments.IsValid(ctx, dept) {
		return "", model.NewInvalidDepartmentError(dept)
	}
	if !courseNumberPattern.MatchString(num) {
		return "", model.NewInvalidCourseNumberError(num)
	}

	classID := dept + " " + num
	data := map[string]any{
		"department":     dept,
		"course_number":  num,
		"name":           displayName,
		"daily_average":  "0",
		"weekly_average": "0",
		"total_time":     "0",
	}

	if err := s.store.Create(ctx, docstore.CollectionClasses, classID, data); err != nil {
		if errors.Is(err, docstore.ErrDocumentExists) {
			return "", model.NewDuplicateClassError(classID)
		}
		return "", fmt.Errorf("failed to create class: %w", err)
	}

	slog.Info("class created",
		slog.String("class_id", classID),
		slog.String("department", dept),
	)
	return classID, nil
}

// GetClass は指定IDのクラスを返す。存在しない場合はCLASS_NOT_FOUNDエラー。
func (s *Service) GetClass(ctx context.Context, classID string) (*model.Class, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionClasses, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	if !doc.Exists {
		return nil, model.NewClassNotFoundError(classID)
	}
	return classFromDocument(doc), nil
}

// ListClasses は全クラスをID昇順で返す。
func (s *Service) ListClasses(ctx context.Context) ([]*model.Class, error) {
	docs, err := s.store.List(ctx, docstore.CollectionClasses)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}

	classes := make([]*model.Class, len(docs))
	for i, doc := range docs {
		classes[i] = classFromDocument(doc)
	}
	return classes, nil
}

// classFromDocument はclassesコレクションのドキュメントをモデルに変換する。
func classFromDocument(doc *docstore.Document) *model.Class {
	return &model.Class{
		ID:            doc.ID,
		Department:    doc.String("department"),
		CourseNumber:  doc.String("course_number"),
		Name:          doc.String("name"),
		DailyAverage:  doc.String("daily_average"),
		WeeklyAverage: doc.String("weekly_average"),
		TotalTime:     doc.String("total_time"),
	}
}
