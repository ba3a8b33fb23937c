package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, class, record, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidDepartment   = "INVALID_DEPARTMENT"
	ErrCodeInvalidCourseNumber = "INVALID_COURSE_NUMBER"
	ErrCodeDuplicateClass      = "DUPLICATE_CLASS"
	ErrCodeClassNotFound       = "CLASS_NOT_FOUND"
	ErrCodeInvalidRecord       = "INVALID_RECORD"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
)

// NewInvalidDepartmentError は無効な学科コードエラーを生成する。
// 統制語彙に含まれないコード、および語彙が未ロードの場合の両方で返される。
func NewInvalidDepartmentError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDepartment,
		Message:  fmt.Sprintf("%q は有効な学科コードではありません。", code),
		Category: "validation",
		Action:   "学科コードの一覧から有効なコードを選択してください。",
	}
}

// NewInvalidCourseNumberError は無効なコース番号エラーを生成する。
func NewInvalidCourseNumberError(num string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCourseNumber,
		Message:  fmt.Sprintf("%q は有効なコース番号ではありません。", num),
		Category: "validation",
		Action:   "コース番号は4桁の数字と任意の英大文字1文字で指定してください（例: 0320、0320L）。",
	}
}

// NewDuplicateClassError はクラスIDの重複エラーを生成する。
func NewDuplicateClassError(classID string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateClass,
		Message:  fmt.Sprintf("ID %q のクラスは既に存在します。", classID),
		Category: "class",
		Action:   "既存のクラスを利用するか、別の学科・コース番号を指定してください。",
	}
}

// NewClassNotFoundError はクラス未検出エラーを生成する。
func NewClassNotFoundError(classID string) *APIError {
	return &APIError{
		Code:     ErrCodeClassNotFound,
		Message:  fmt.Sprintf("指定されたクラスが見つかりません: %s", classID),
		Category: "class",
		Action:   "クラスIDを確認してください。",
	}
}

// NewInvalidRecordError は無効な時間記録エラーを生成する。
func NewInvalidRecordError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRecord,
		Message:  fmt.Sprintf("無効な時間記録です: %s", reason),
		Category: "record",
		Action:   "記録対象のクラスと記録時間を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
