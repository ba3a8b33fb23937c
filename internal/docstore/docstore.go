// Package docstore はコレクション+IDでアドレス指定するドキュメントストアの
// 抽象を定義する。コアのロジック（セッション評価、クラスレジストリ）は
// このインターフェースにのみ依存し、具体的なストアには依存しない。
package docstore

import (
	"context"
	"errors"
)

// コレクション名。既存データとのワイヤ互換のため固定。
const (
	CollectionDepartments = "departments"
	CollectionClasses     = "classes"
	CollectionUsers       = "users"
	CollectionSessions    = "sessions"
	CollectionRecords     = "records"
)

// ErrDocumentExists は条件付き作成が既存ドキュメントと衝突した場合のエラー。
var ErrDocumentExists = errors.New("document already exists")

// Document は1件のドキュメントの取得結果を表す。
// 存在しないドキュメントはエラーではなくExists=falseで表現する。
type Document struct {
	Collection string
	ID         string
	Exists     bool
	Data       map[string]any
}

// String はDataから文字列フィールドを取り出す。型不一致・欠落時は空文字列。
func (d *Document) String(field string) string {
	if d == nil || d.Data == nil {
		return ""
	}
	s, _ := d.Data[field].(string)
	return s
}

// Store はドキュメントストアの操作を定義する。
type Store interface {
	// Get は指定ドキュメントを取得する。存在しない場合はExists=falseの
	// Documentを返し、エラーにはしない。
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Set はドキュメントを書き込む（存在すれば上書き）。
	Set(ctx context.Context, collection, id string, data map[string]any) error

	// Create はドキュメントが存在しない場合のみ作成する。
	// 既に存在する場合はErrDocumentExistsを返す。
	// 存在確認と書き込みがアトミックであることを実装が保証する。
	Create(ctx context.Context, collection, id string, data map[string]any) error

	// Delete は指定ドキュメントを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, collection, id string) error

	// List はコレクション内の全ドキュメントをID昇順で返す。
	List(ctx context.Context, collection string) ([]*Document, error)

	// ListByField はdataの文字列フィールドが一致するドキュメントをID昇順で返す。
	ListByField(ctx context.Context, collection, field, value string) ([]*Document, error)

	// DeleteByField はdataの文字列フィールドが一致するドキュメントを削除し、
	// 削除件数を返す。
	DeleteByField(ctx context.Context, collection, field, value string) (int64, error)
}
