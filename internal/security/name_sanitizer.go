// NameSanitizerService はユーザー入力の表示名（クラス名など）をサニタイズし、
// フロントエンドでの描画時のXSSリスクからユーザーを保護する。
// bluemondayのStrictPolicy（全タグ除去）を使用する。表示名にマークアップは
// 不要なため、許可リストではなく全除去とする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は表示名のサニタイズ機能のインターフェースを定義する。
// クラス作成時の表示名の保存前に使用される。
type NameSanitizerService interface {
	// SanitizeName は表示名からHTMLタグを全て除去し、
	// 残ったエンティティをデコードしてプレーンテキストを返す。
	// 前後の空白は除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeName(name string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeName は表示名からHTMLタグを全て除去する。
// bluemondayはタグ除去後のテキストをエスケープして返すため、
// プレーンテキストとして保存できるようエンティティをデコードする。
func (s *nameSanitizer) SanitizeName(name string) string {
	stripped := s.policy.Sanitize(name)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// compile-time interface check
var _ NameSanitizerService = (*nameSanitizer)(nil)
