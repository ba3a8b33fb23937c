package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore はPostgreSQLのdocumentsテーブルを使用したStore実装。
// 1コレクション=1テーブルではなく、(collection, id) を複合PKとする
// 単一テーブルにjsonbでドキュメント本体を保持する。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get は指定ドキュメントを取得する。存在しない場合はExists=falseで返す。
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)

	if err == sql.ErrNoRows {
		return &Document{Collection: collection, ID: id, Exists: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}

	data, err := unmarshalData(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}

	return &Document{Collection: collection, ID: id, Exists: true, Data: data}, nil
}

// Set はドキュメントを書き込む。存在すれば上書きする。
func (s *PostgresStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		collection, id, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}

	return nil
}

// Create はドキュメントが存在しない場合のみ作成する。
// ON CONFLICT DO NOTHINGにより存在確認と書き込みの間のTOCTOU競合を排除する。
// 既に存在する場合はErrDocumentExistsを返す。
func (s *PostgresStore) Create(ctx context.Context, collection, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to create document %s/%s: %w", collection, id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDocumentExists
	}

	return nil
}

// Delete は指定ドキュメントを削除する。存在しない場合もエラーにしない。
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// List はコレクション内の全ドキュメントをID昇順で返す。
func (s *PostgresStore) List(ctx context.Context, collection string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}
	defer rows.Close()

	return s.scanDocuments(collection, rows)
}

// ListByField はdataの文字列フィールドが一致するドキュメントをID昇順で返す。
func (s *PostgresStore) ListByField(ctx context.Context, collection, field, value string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 AND data->>$2 = $3 ORDER BY id`,
		collection, field, value,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s by %s: %w", collection, field, err)
	}
	defer rows.Close()

	return s.scanDocuments(collection, rows)
}

// DeleteByField はdataの文字列フィールドが一致するドキュメントを削除する。
func (s *PostgresStore) DeleteByField(ctx context.Context, collection, field, value string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND data->>$2 = $3`,
		collection, field, value,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from collection %s by %s: %w", collection, field, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// scanDocuments は行セットをDocumentのスライスに変換する。
func (s *PostgresStore) scanDocuments(collection string, rows *sql.Rows) ([]*Document, error) {
	var docs []*Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}

		data, err := unmarshalData(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
		}

		docs = append(docs, &Document{Collection: collection, ID: id, Exists: true, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
}

// unmarshalData はjsonbバイト列をmapにデコードする。
func unmarshalData(raw []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// compile-time interface check
var _ Store = (*PostgresStore)(nil)
