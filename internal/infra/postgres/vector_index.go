package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/curriculum-search/internal/core/curriculum"
	"github.com/jinford/curriculum-search/internal/core/vectorindex"
)

// VectorIndex は vectorindex.Index を実装する pgvector ベースのインデックス。
// 1レコード=1チャンクで、IDは呼び出し側が割り当てる決定的な文字列。
type VectorIndex struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewVectorIndex は新しい VectorIndex を作成します
func NewVectorIndex(pool *pgxpool.Pool, dimension int) (*VectorIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension: %d", dimension)
	}
	return &VectorIndex{
		pool:      pool,
		dimension: dimension,
	}, nil
}

// コンパイル時の型チェック
var _ vectorindex.Index = (*VectorIndex)(nil)

// EnsureSchema はpgvector拡張とベクトルテーブルを作成する（存在する場合は何もしない）
func (v *VectorIndex) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS curriculum_vectors (
			id             text PRIMARY KEY,
			embedding      vector(%d) NOT NULL,
			entity_type    text NOT NULL,
			entity_id      uuid NOT NULL,
			tenant_id      uuid NOT NULL,
			subject        text NOT NULL,
			grade          integer NOT NULL,
			title          text NOT NULL,
			topic_id       uuid,
			content_type   text,
			standard_code  text,
			body_preview   text NOT NULL DEFAULT '',
			chunk_index    integer NOT NULL,
			total_chunks   integer NOT NULL,
			schema_version integer NOT NULL DEFAULT 1,
			indexed_at     timestamptz NOT NULL
		)`, v.dimension),
		`CREATE INDEX IF NOT EXISTS curriculum_vectors_embedding_idx
			ON curriculum_vectors USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS curriculum_vectors_entity_idx
			ON curriculum_vectors (entity_type, entity_id)`,
		`CREATE INDEX IF NOT EXISTS curriculum_vectors_filter_idx
			ON curriculum_vectors (tenant_id, subject, grade)`,
	}

	for _, stmt := range stmts {
		if _, err := v.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure vector schema: %w", err)
		}
	}
	return nil
}

const upsertSQL = `
	INSERT INTO curriculum_vectors (
		id, embedding, entity_type, entity_id, tenant_id, subject, grade, title,
		topic_id, content_type, standard_code, body_preview,
		chunk_index, total_chunks, schema_version, indexed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (id) DO UPDATE SET
		embedding      = EXCLUDED.embedding,
		entity_type    = EXCLUDED.entity_type,
		entity_id      = EXCLUDED.entity_id,
		tenant_id      = EXCLUDED.tenant_id,
		subject        = EXCLUDED.subject,
		grade          = EXCLUDED.grade,
		title          = EXCLUDED.title,
		topic_id       = EXCLUDED.topic_id,
		content_type   = EXCLUDED.content_type,
		standard_code  = EXCLUDED.standard_code,
		body_preview   = EXCLUDED.body_preview,
		chunk_index    = EXCLUDED.chunk_index,
		total_chunks   = EXCLUDED.total_chunks,
		schema_version = EXCLUDED.schema_version,
		indexed_at     = EXCLUDED.indexed_at`

// Upsert は1件のレコードを登録または上書きする
func (v *VectorIndex) Upsert(ctx context.Context, record vectorindex.Record) error {
	args, err := v.upsertArgs(record)
	if err != nil {
		return err
	}
	if _, err := v.pool.Exec(ctx, upsertSQL, args...); err != nil {
		return fmt.Errorf("failed to upsert vector record %s: %w", record.ID, err)
	}
	return nil
}

// UpsertBatch は複数レコードを1回のラウンドトリップで一括登録する。空スライスはno-op
func (v *VectorIndex) UpsertBatch(ctx context.Context, records []vectorindex.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		args, err := v.upsertArgs(record)
		if err != nil {
			return err
		}
		batch.Queue(upsertSQL, args...)
	}

	br := v.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, record := range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert vector record %s: %w", record.ID, err)
		}
	}
	return nil
}

func (v *VectorIndex) upsertArgs(record vectorindex.Record) ([]any, error) {
	if record.ID == "" {
		return nil, fmt.Errorf("record id is required")
	}
	if len(record.Vector) != v.dimension {
		return nil, fmt.Errorf("vector dimension mismatch for %s: got %d, want %d", record.ID, len(record.Vector), v.dimension)
	}

	m := record.Metadata
	return []any{
		record.ID,
		pgvector.NewVector(record.Vector),
		string(m.EntityType),
		UUIDToPgtype(m.EntityID),
		UUIDToPgtype(m.TenantID),
		m.Subject,
		int32(m.Grade),
		m.Title,
		UUIDPtrToPgtype(m.TopicID),
		StringPtrToPgtext(m.ContentType),
		StringPtrToPgtext(m.StandardCode),
		m.BodyPreview,
		int32(m.ChunkIndex),
		int32(m.TotalChunks),
		int32(m.SchemaVersion),
		TimeToPgtype(m.IndexedAt),
	}, nil
}

// ReplaceEntity はエンティティの全チャンクレコードを1つのトランザクションで
// 置き換える。DELETEとINSERTが同一トランザクションに入るため、途中で失敗しても
// 既存レコードは残り、検索から消えることはない。
func (v *VectorIndex) ReplaceEntity(ctx context.Context, entityType curriculum.EntityType, entityID uuid.UUID, records []vectorindex.Record) error {
	// バリデーションはトランザクション開始前に済ませる
	batch := &pgx.Batch{}
	for _, record := range records {
		args, err := v.upsertArgs(record)
		if err != nil {
			return err
		}
		batch.Queue(upsertSQL, args...)
	}

	tx, err := v.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin replace for %s %s: %w", entityType, entityID, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM curriculum_vectors WHERE entity_type = $1 AND entity_id = $2`,
		string(entityType), UUIDToPgtype(entityID),
	); err != nil {
		return fmt.Errorf("failed to clear records for %s %s: %w", entityType, entityID, err)
	}

	if len(records) > 0 {
		br := tx.SendBatch(ctx, batch)
		for _, record := range records {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert vector record %s: %w", record.ID, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to insert vector records for %s %s: %w", entityType, entityID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit replace for %s %s: %w", entityType, entityID, err)
	}
	return nil
}

// Query はコサイン類似度の高い順にレコードを返す。
// フィルタは型付き構造体からパラメータ化SQLに変換される（文字列連結は行わない）
func (v *VectorIndex) Query(ctx context.Context, vector []float32, opts vectorindex.QueryOptions) ([]vectorindex.QueryResult, error) {
	if len(vector) != v.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: got %d, want %d", len(vector), v.dimension)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = vectorindex.DefaultTopK
	}

	columns := `id, 1 - (embedding <=> $1) AS score,
		entity_type, entity_id, tenant_id, subject, grade, title,
		topic_id, content_type, standard_code, body_preview,
		chunk_index, total_chunks, schema_version, indexed_at`
	if opts.IncludeVectors {
		columns += `, embedding`
	}

	where, args := buildFilter(opts.Filter, []any{pgvector.NewVector(vector)})
	args = append(args, int32(topK))

	sql := fmt.Sprintf(`SELECT %s FROM curriculum_vectors%s ORDER BY embedding <=> $1 LIMIT $%d`,
		columns, where, len(args))

	rows, err := v.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var results []vectorindex.QueryResult
	for rows.Next() {
		var (
			id       string
			score    float64
			metadata vectorindex.Metadata
			row      metadataRow
			emb      pgvector.Vector
		)

		dest := []any{
			&id, &score,
			&row.entityType, &row.entityID, &row.tenantID, &row.subject, &row.grade, &row.title,
			&row.topicID, &row.contentType, &row.standardCode, &row.bodyPreview,
			&row.chunkIndex, &row.totalChunks, &row.schemaVersion, &row.indexedAt,
		}
		if opts.IncludeVectors {
			dest = append(dest, &emb)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan query result: %w", err)
		}

		result := vectorindex.QueryResult{ID: id, Score: score}
		if opts.IncludeMetadata {
			metadata = row.toMetadata()
			result.Metadata = &metadata
		}
		if opts.IncludeVectors {
			result.Vector = emb.Slice()
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read query results: %w", err)
	}
	return results, nil
}

// buildFilter は等価フィルタをWHERE句とバインド引数に変換する。各条件はANDで結合される
func buildFilter(f vectorindex.Filter, args []any) (string, []any) {
	var clauses []string

	if f.TenantID != nil {
		args = append(args, UUIDToPgtype(*f.TenantID))
		clauses = append(clauses, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if f.Subject != nil {
		args = append(args, *f.Subject)
		clauses = append(clauses, fmt.Sprintf("subject = $%d", len(args)))
	}
	if f.Grade != nil {
		args = append(args, int32(*f.Grade))
		clauses = append(clauses, fmt.Sprintf("grade = $%d", len(args)))
	}
	if f.EntityType != nil {
		args = append(args, string(*f.EntityType))
		clauses = append(clauses, fmt.Sprintf("entity_type = $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Delete は1件のレコードを削除する。存在しないIDはno-op
func (v *VectorIndex) Delete(ctx context.Context, id string) error {
	if _, err := v.pool.Exec(ctx, `DELETE FROM curriculum_vectors WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete vector record %s: %w", id, err)
	}
	return nil
}

// DeleteBatch は複数レコードを一括削除する。空スライスはno-op
func (v *VectorIndex) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := v.pool.Exec(ctx, `DELETE FROM curriculum_vectors WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("failed to delete vector records: %w", err)
	}
	return nil
}

// DeleteByEntity はエンティティに属する全チャンクレコードを削除し、削除件数を返す
func (v *VectorIndex) DeleteByEntity(ctx context.Context, entityType curriculum.EntityType, entityID uuid.UUID) (int64, error) {
	tag, err := v.pool.Exec(ctx,
		`DELETE FROM curriculum_vectors WHERE entity_type = $1 AND entity_id = $2`,
		string(entityType), UUIDToPgtype(entityID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete vector records for %s %s: %w", entityType, entityID, err)
	}
	return tag.RowsAffected(), nil
}

// Fetch はIDでレコードを取得する。存在しない場合は(nil, nil)
func (v *VectorIndex) Fetch(ctx context.Context, id string) (*vectorindex.Record, error) {
	var (
		row metadataRow
		emb pgvector.Vector
	)

	err := v.pool.QueryRow(ctx,
		`SELECT embedding,
			entity_type, entity_id, tenant_id, subject, grade, title,
			topic_id, content_type, standard_code, body_preview,
			chunk_index, total_chunks, schema_version, indexed_at
		FROM curriculum_vectors WHERE id = $1`, id,
	).Scan(
		&emb,
		&row.entityType, &row.entityID, &row.tenantID, &row.subject, &row.grade, &row.title,
		&row.topicID, &row.contentType, &row.standardCode, &row.bodyPreview,
		&row.chunkIndex, &row.totalChunks, &row.schemaVersion, &row.indexedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch vector record %s: %w", id, err)
	}

	return &vectorindex.Record{
		ID:       id,
		Vector:   emb.Slice(),
		Metadata: row.toMetadata(),
	}, nil
}

// Stats はインデックスの統計情報を返す
func (v *VectorIndex) Stats(ctx context.Context) (*vectorindex.Stats, error) {
	var count int64
	if err := v.pool.QueryRow(ctx, `SELECT count(*) FROM curriculum_vectors`).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count vector records: %w", err)
	}
	return &vectorindex.Stats{
		VectorCount: count,
		Dimension:   v.dimension,
	}, nil
}

// metadataRow はcurriculum_vectorsのメタデータ列のスキャン用
type metadataRow struct {
	entityType    string
	entityID      pgtype.UUID
	tenantID      pgtype.UUID
	subject       string
	grade         int32
	title         string
	topicID       pgtype.UUID
	contentType   pgtype.Text
	standardCode  pgtype.Text
	bodyPreview   string
	chunkIndex    int32
	totalChunks   int32
	schemaVersion int32
	indexedAt     pgtype.Timestamptz
}

func (r *metadataRow) toMetadata() vectorindex.Metadata {
	return vectorindex.Metadata{
		SchemaVersion: int(r.schemaVersion),
		EntityType:    curriculum.EntityType(r.entityType),
		EntityID:      PgtypeToUUID(r.entityID),
		TenantID:      PgtypeToUUID(r.tenantID),
		Subject:       r.subject,
		Grade:         int(r.grade),
		Title:         r.title,
		TopicID:       PgtypeToUUIDPtr(r.topicID),
		ContentType:   PgtextToStringPtr(r.contentType),
		StandardCode:  PgtextToStringPtr(r.standardCode),
		BodyPreview:   r.bodyPreview,
		ChunkIndex:    int(r.chunkIndex),
		TotalChunks:   int(r.totalChunks),
		IndexedAt:     PgtypeToTime(r.indexedAt),
	}
}
