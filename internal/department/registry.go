// Package department は学科コードの統制語彙のキャッシュを提供する。
// 語彙はdepartmentsコレクションの単一の_metaドキュメントに保持され、
// 追記のみで滅多に変わらない前提のため、一度ロードに成功したら
// プロセス生存期間中は再フェッチしない。更新の反映はプロセス再起動で行う。
package department

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/hitoshi/classtime/internal/docstore"
)

// MetaDocID はdepartmentsコレクション内のメタドキュメントのID。
const MetaDocID = "_meta"

// allCodesField はメタドキュメント内の学科コード一覧フィールド名。
const allCodesField = "all_codes"

// MetaGetter は語彙のロードに必要なストア操作のインターフェース。
// docstore.Storeの部分集合として定義する。
type MetaGetter interface {
	Get(ctx context.Context, collection, id string) (*docstore.Document, error)
}

// Registry は学科コード集合のプロセス内キャッシュ。
// クラスレジストリに参照渡しされ、パッケージレベルの可変状態を持たない。
type Registry struct {
	store MetaGetter

	mu     sync.Mutex
	codes  map[string]struct{}
	loaded bool
}

// NewRegistry はRegistryを生成する。
func NewRegistry(store MetaGetter) *Registry {
	return &Registry{
		store: store,
		codes: make(map[string]struct{}),
	}
}

// EnsureLoaded は学科コード集合を返す。初回呼び出しで_metaドキュメントを
// フェッチし、非空の結果をキャッシュする。ドキュメントが存在しない、
// all_codesフィールドがない、または空の場合はキャッシュを空のままにして
// 運用者向け診断ログをロード試行ごとに1回出力する。空の結果は無効化ではなく
// リトライとして扱い、後続の呼び出しで再フェッチする。
func (r *Registry) EnsureLoaded(ctx context.Context) map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return r.codes
	}

	doc, err := r.store.Get(ctx, docstore.CollectionDepartments, MetaDocID)
	if err != nil {
		slog.Error("failed to load department codes",
			slog.String("error", err.Error()),
		)
		return r.codes
	}

	codes := extractCodes(doc)
	if len(codes) == 0 {
		slog.Error(`departments "_meta" doc either doesn't exist or doesn't have "all_codes" field; run the "departments" subcommand to fix`)
		return r.codes
	}

	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	r.codes = set
	r.loaded = true

	slog.Info("department codes loaded", slog.Int("count", len(set)))
	return r.codes
}

// IsValid はコードが統制語彙に含まれるかどうかを返す。
// 語彙が未ロード（または空）の場合はフェイルクローズで常にfalseを返す。
func (r *Registry) IsValid(ctx context.Context, code string) bool {
	_, ok := r.EnsureLoaded(ctx)[code]
	return ok
}

// Codes はロード済みの学科コードを昇順で返す。
func (r *Registry) Codes(ctx context.Context) []string {
	set := r.EnsureLoaded(ctx)
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// extractCodes は_metaドキュメントからall_codesの文字列要素を取り出す。
// jsonbのデコード結果は[]anyになるため、文字列以外の要素は読み飛ばす。
func extractCodes(doc *docstore.Document) []string {
	if doc == nil || !doc.Exists || doc.Data == nil {
		return nil
	}

	raw, ok := doc.Data[allCodesField].([]any)
	if !ok {
		return nil
	}

	codes := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			codes = append(codes, s)
		}
	}
	return codes
}
