package vectorindex

import (
	"context"

	"github.com/google/uuid"

	"github.com/jinford/curriculum-search/internal/core/curriculum"
)

// DefaultTopK は検索件数未指定時のデフォルト
const DefaultTopK = 10

// Filter はベクトル検索の等価フィルタ。各フィールドはANDで結合される。
// nilのフィールドは条件に含めない。
type Filter struct {
	TenantID   *uuid.UUID
	Subject    *string
	Grade      *int
	EntityType *curriculum.EntityType
}

// Empty はフィルタ条件が1つもないことを返す
func (f Filter) Empty() bool {
	return f.TenantID == nil && f.Subject == nil && f.Grade == nil && f.EntityType == nil
}

// QueryOptions はベクトル検索のオプション
type QueryOptions struct {
	// TopK は取得件数。0以下の場合はDefaultTopK
	TopK            int
	Filter          Filter
	IncludeMetadata bool
	IncludeVectors  bool
}

// QueryResult はベクトル検索の1件の結果（チャンク単位）
type QueryResult struct {
	ID       string
	Score    float64
	Metadata *Metadata
	Vector   []float32
}

// Stats はインデックスの統計情報
type Stats struct {
	VectorCount int64
	Dimension   int
}

// Index は外部ベクトルインデックスへの操作を表すインターフェース。
// IDは呼び出し側が割り当てる不透明文字列で、同一IDへのUpsertは上書きとなる。
type Index interface {
	// Upsert は1件のレコードを登録または上書きする
	Upsert(ctx context.Context, record Record) error
	// UpsertBatch は複数レコードを一括登録する。空スライスはno-op
	UpsertBatch(ctx context.Context, records []Record) error
	// ReplaceEntity はエンティティの全チャンクレコードを新しいレコード群で
	// 原子的に置き換える。失敗時は既存レコードがそのまま残り、
	// 部分的な置換状態が外部から観測されることはない
	ReplaceEntity(ctx context.Context, entityType curriculum.EntityType, entityID uuid.UUID, records []Record) error
	// Query はクエリベクトルに近い順にレコードを返す
	Query(ctx context.Context, vector []float32, opts QueryOptions) ([]QueryResult, error)
	// Delete は1件のレコードを削除する。存在しないIDはno-op
	Delete(ctx context.Context, id string) error
	// DeleteBatch は複数レコードを一括削除する。空スライスはno-op
	DeleteBatch(ctx context.Context, ids []string) error
	// DeleteByEntity はエンティティに属する全チャンクレコードを削除し、削除件数を返す。
	// チャンク数を呼び出し側が把握していなくても取り残しが発生しない
	DeleteByEntity(ctx context.Context, entityType curriculum.EntityType, entityID uuid.UUID) (int64, error)
	// Fetch はIDでレコードを取得する。存在しない場合は(nil, nil)
	Fetch(ctx context.Context, id string) (*Record, error)
	// Stats はインデックスの統計情報を返す
	Stats(ctx context.Context) (*Stats, error)
}
