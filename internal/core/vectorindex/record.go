package vectorindex

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/curriculum-search/internal/core/curriculum"
)

// MetadataSchemaVersion はレコードメタデータスキーマの現行バージョン
const MetadataSchemaVersion = 1

// Metadata はベクトルレコードに付随する閉じた型付きスキーマ。
// 任意キーのmapではなく固定フィールドで持つことで、フィルタ構築を型検査可能にする。
type Metadata struct {
	SchemaVersion int
	EntityType    curriculum.EntityType
	EntityID      uuid.UUID
	TenantID      uuid.UUID
	Subject       string
	Grade         int
	Title         string

	// TopicID はコンテンツアイテムの親トピック
	TopicID *uuid.UUID
	// ContentType はコンテンツアイテムの種別
	ContentType *string
	// StandardCode は基準コード
	StandardCode *string

	// BodyPreview はチャンク本文の先頭（最大500文字）。検索結果のプレビュー表示用
	BodyPreview string
	ChunkIndex  int
	TotalChunks int
	IndexedAt   time.Time
}

// Record は外部インデックスに格納する1件のベクトルレコード
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// RecordID は(エンティティ種別, エンティティID, チャンク番号)から決定的なレコードIDを生成する。
// フォーマット: "{type-prefix}:{entityID}:{chunkIndex}"
// 同一入力は常に同一IDとなるため、再インデックスは追記ではなく上書きになる。
func RecordID(entityType curriculum.EntityType, entityID uuid.UUID, chunkIndex int) string {
	return fmt.Sprintf("%s:%s:%d", entityType.Prefix(), entityID, chunkIndex)
}

// ParseRecordID はレコードIDを(エンティティ種別, エンティティID, チャンク番号)に分解する
func ParseRecordID(id string) (curriculum.EntityType, uuid.UUID, int, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 {
		return "", uuid.Nil, 0, fmt.Errorf("malformed record id: %q", id)
	}

	entityType, err := curriculum.EntityTypeFromPrefix(parts[0])
	if err != nil {
		return "", uuid.Nil, 0, fmt.Errorf("malformed record id %q: %w", id, err)
	}

	entityID, err := uuid.Parse(parts[1])
	if err != nil {
		return "", uuid.Nil, 0, fmt.Errorf("malformed record id %q: %w", id, err)
	}

	chunkIndex, err := strconv.Atoi(parts[2])
	if err != nil || chunkIndex < 0 {
		return "", uuid.Nil, 0, fmt.Errorf("malformed record id %q: invalid chunk index", id)
	}

	return entityType, entityID, chunkIndex, nil
}
