package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/curriculum-search/internal/core/chunk"
	"github.com/jinford/curriculum-search/internal/core/curriculum"
	"github.com/jinford/curriculum-search/internal/core/vectorindex"
)

// bodyPreviewSize はメタデータに保持するチャンク本文プレビューの最大文字数
const bodyPreviewSize = 500

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// EmbedBatch は複数テキストのEmbeddingを入力順を保って生成する
	EmbedBatch(ctx context.Context, texts []string) (*BatchEmbeddingResult, error)
	// Dimensions はEmbeddingベクトルの次元数を返す
	Dimensions() int
}

// EmbeddingResult は1テキスト分のEmbedding生成結果
type EmbeddingResult struct {
	Embedding  []float32
	TokensUsed int
	Text       string
}

// BatchEmbeddingResult はバッチEmbedding生成の結果
type BatchEmbeddingResult struct {
	Embeddings      []EmbeddingResult
	TotalTokensUsed int
}

// SourceRepository はリレーショナルストア上のカリキュラム原本への読み取りアクセス
type SourceRepository interface {
	GetTopic(ctx context.Context, id uuid.UUID) (*curriculum.Entity, error)
	GetContentItem(ctx context.Context, id uuid.UUID) (*curriculum.Entity, error)
	// ListTopics はトピック一覧を返す。tenantIDがnilでなければそのテナントに絞り込む
	ListTopics(ctx context.Context, tenantID *uuid.UUID) ([]*curriculum.Entity, error)
	ListContentItems(ctx context.Context, tenantID *uuid.UUID) ([]*curriculum.Entity, error)
}

// IndexResult は1エンティティのインデックス化結果
type IndexResult struct {
	EntityID      uuid.UUID
	EntityType    curriculum.EntityType
	ChunksIndexed int
	TokensUsed    int
	Duration      time.Duration
}

// IndexFailure は一括インデックス中の1エンティティの失敗
type IndexFailure struct {
	EntityID   uuid.UUID
	EntityType curriculum.EntityType
	Err        string
}

// Manifest は一括インデックスの成功/失敗の内訳
type Manifest struct {
	Indexed  []IndexResult
	Failed   []IndexFailure
	Duration time.Duration
}

// Service はインデックス化のビジネスロジックを提供する。
// 呼び出し間で状態を持たず、全ての状態は外部インデックスに存在する。
type Service struct {
	embedder Embedder
	index    vectorindex.Index
	chunker  *chunk.Chunker
	log      *slog.Logger
	now      func() time.Time
}

// ServiceOption はServiceのオプション設定
type ServiceOption func(*Service)

// WithLogger はロガーを差し替える
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// WithClock は現在時刻の取得関数を差し替える（テスト用）
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService は新しいServiceを作成します
func NewService(embedder Embedder, index vectorindex.Index, chunker *chunk.Chunker, opts ...ServiceOption) *Service {
	s := &Service{
		embedder: embedder,
		index:    index,
		chunker:  chunker,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IndexTopic はトピックをインデックス化します
func (s *Service) IndexTopic(ctx context.Context, e *curriculum.Entity) (*IndexResult, error) {
	return s.indexEntity(ctx, e, curriculum.EntityTypeTopic)
}

// IndexContentItem はコンテンツアイテムをインデックス化します
func (s *Service) IndexContentItem(ctx context.Context, e *curriculum.Entity) (*IndexResult, error) {
	return s.indexEntity(ctx, e, curriculum.EntityTypeContentItem)
}

// indexEntity はチャンク化→バッチEmbedding→原子的な置換のパイプラインを実行する。
// 置換はインデックス側で1回の呼び出しとして行われるため、チャンク数が前回より
// 減っても旧チャンクのレコードが残らず、置換が失敗しても既存レコードは消えない。
func (s *Service) indexEntity(ctx context.Context, e *curriculum.Entity, want curriculum.EntityType) (*IndexResult, error) {
	start := s.now()

	if e == nil {
		return nil, fmt.Errorf("entity is required")
	}
	// 呼び出し元のエンティティは変更しない。種別未設定はコピー上で補完する
	if e.Type == "" {
		defaulted := *e
		defaulted.Type = want
		e = &defaulted
	}
	if e.Type != want {
		return nil, fmt.Errorf("entity type mismatch: got %q, want %q", e.Type, want)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid entity: %w", err)
	}

	text := curriculum.BuildEmbeddingText(e)
	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("entity %s produced no chunks", e.ID)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	batch, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks for %s %s: %w", e.Type, e.ID, err)
	}
	if len(batch.Embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(batch.Embeddings), len(chunks))
	}

	indexedAt := s.now()
	records := make([]vectorindex.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorindex.Record{
			ID:     vectorindex.RecordID(e.Type, e.ID, c.Index),
			Vector: batch.Embeddings[i].Embedding,
			Metadata: vectorindex.Metadata{
				SchemaVersion: vectorindex.MetadataSchemaVersion,
				EntityType:    e.Type,
				EntityID:      e.ID,
				TenantID:      e.TenantID,
				Subject:       e.Subject,
				Grade:         e.Grade,
				Title:         e.Title,
				TopicID:       e.TopicID,
				ContentType:   e.ContentType,
				StandardCode:  e.StandardCode,
				BodyPreview:   bodyPreview(c.Text),
				ChunkIndex:    c.Index,
				TotalChunks:   c.TotalChunks,
				IndexedAt:     indexedAt,
			},
		}
	}

	if err := s.index.ReplaceEntity(ctx, e.Type, e.ID, records); err != nil {
		return nil, fmt.Errorf("failed to replace records for %s %s: %w", e.Type, e.ID, err)
	}

	result := &IndexResult{
		EntityID:      e.ID,
		EntityType:    e.Type,
		ChunksIndexed: len(records),
		TokensUsed:    batch.TotalTokensUsed,
		Duration:      s.now().Sub(start),
	}

	s.log.Info("entity indexed",
		"type", e.Type,
		"entityID", e.ID,
		"chunks", result.ChunksIndexed,
		"tokens", result.TokensUsed,
		"duration", result.Duration,
	)
	return result, nil
}

// IndexAll は全トピック・全コンテンツアイテムを一括インデックス化する。
// 個々のエンティティの失敗はManifestに記録して処理を継続する。
func (s *Service) IndexAll(ctx context.Context, source SourceRepository, tenantID *uuid.UUID) (*Manifest, error) {
	start := s.now()

	topics, err := source.ListTopics(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	items, err := source.ListContentItems(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list content items: %w", err)
	}

	manifest := &Manifest{}
	for _, e := range append(topics, items...) {
		result, err := s.indexEntity(ctx, e, e.Type)
		if err != nil {
			s.log.Error("entity indexing failed",
				"type", e.Type,
				"entityID", e.ID,
				"error", err,
			)
			manifest.Failed = append(manifest.Failed, IndexFailure{
				EntityID:   e.ID,
				EntityType: e.Type,
				Err:        err.Error(),
			})
			continue
		}
		manifest.Indexed = append(manifest.Indexed, *result)
	}

	manifest.Duration = s.now().Sub(start)
	s.log.Info("bulk indexing completed",
		"indexed", len(manifest.Indexed),
		"failed", len(manifest.Failed),
		"duration", manifest.Duration,
	)
	return manifest, nil
}

// DeleteEntity はエンティティの全チャンクレコードをインデックスから削除し、削除件数を返す
func (s *Service) DeleteEntity(ctx context.Context, entityType curriculum.EntityType, entityID uuid.UUID) (int64, error) {
	if !entityType.Valid() {
		return 0, fmt.Errorf("invalid entity type: %q", entityType)
	}
	if entityID == uuid.Nil {
		return 0, fmt.Errorf("entity id is required")
	}

	deleted, err := s.index.DeleteByEntity(ctx, entityType, entityID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records for %s %s: %w", entityType, entityID, err)
	}

	s.log.Info("entity records deleted", "type", entityType, "entityID", entityID, "deleted", deleted)
	return deleted, nil
}

// bodyPreview はチャンク本文の先頭を最大bodyPreviewSize文字で切り出す
func bodyPreview(text string) string {
	runes := []rune(text)
	if len(runes) <= bodyPreviewSize {
		return text
	}
	return string(runes[:bodyPreviewSize])
}
