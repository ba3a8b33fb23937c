// Package catalog は教育機関のコースカタログページから学科コードを抽出し、
// departmentsコレクションの統制語彙として取り込む。
// "departments" サブコマンドから実行される運用ツール。
package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/classtime/internal/docstore"
	"github.com/hitoshi/classtime/internal/department"
)

// coursePattern はカタログページのコース表記（例: "CSCI 0320", "APMA 2560L"）。
// 学科コード部分のみをキャプチャする。単独の大文字トークンは誤検出が多いため、
// コース番号を伴う表記だけを学科コードとして採用する。
var coursePattern = regexp.MustCompile(`\b([A-Z]{2,4})\s+\d{4}[A-Z]?\b`)

// MetaSetter は語彙の書き込みに必要なストア操作のインターフェース。
// docstore.Storeの部分集合として定義する。
type MetaSetter interface {
	Set(ctx context.Context, collection, id string, data map[string]any) error
}

// Importer はカタログページから学科コードを取り込む。
// HTTPクライアントにはSSRF防止付きクライアントを渡すこと。
type Importer struct {
	client  *http.Client
	store   MetaSetter
	maxSize int64
}

// NewImporter はImporterを生成する。
func NewImporter(client *http.Client, store MetaSetter, maxSize int64) *Importer {
	return &Importer{
		client:  client,
		store:   store,
		maxSize: maxSize,
	}
}

// Import はカタログページをフェッチして学科コードを抽出し、
// departments/_metaのall_codesとして書き込む（全置換）。
// 抽出結果は重複排除のうえ昇順でソートされる。コードが1件も
// 見つからない場合は語彙を壊さないよう書き込まずにエラーを返す。
// 取り込んだコード数を返す。
func (i *Importer) Import(ctx context.Context, catalogURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, catalogURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create catalog request: %w", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("catalog fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("catalog fetch failed with status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, i.maxSize))
	if err != nil {
		return 0, fmt.Errorf("failed to parse catalog page: %w", err)
	}

	codes := ExtractCodes(doc)
	if len(codes) == 0 {
		return 0, fmt.Errorf("no department codes found in catalog page: %s", catalogURL)
	}

	raw := make([]any, len(codes))
	for idx, code := range codes {
		raw[idx] = code
	}
	data := map[string]any{"all_codes": raw}
	if err := i.store.Set(ctx, docstore.CollectionDepartments, department.MetaDocID, data); err != nil {
		return 0, fmt.Errorf("failed to write department codes: %w", err)
	}

	slog.Info("department codes imported",
		slog.Int("count", len(codes)),
		slog.String("source", catalogURL),
	)
	return len(codes), nil
}

// ExtractCodes はHTMLツリーのテキストからコース表記を探し、
// 学科コードを重複排除して昇順で返す。
func ExtractCodes(doc *html.Node) []string {
	var text strings.Builder
	collectText(doc, &text)

	seen := make(map[string]struct{})
	for _, match := range coursePattern.FindAllStringSubmatch(text.String(), -1) {
		seen[match[1]] = struct{}{}
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// collectText はscript/style以外のテキストノードを連結する。
// ノード境界はコース表記の区切りになるよう空白を挟む。
func collectText(n *html.Node, out *strings.Builder) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		out.WriteString(n.Data)
		out.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, out)
	}
}
