package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/curriculum-search/internal/core/curriculum"
	"github.com/jinford/curriculum-search/internal/core/vectorindex"
)

// Embedder はクエリテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options は検索オプション
type Options struct {
	// TopK は返却する最大エンティティ数。0以下の場合はデフォルト(10)
	TopK int
	// MinScore は類似度スコアの下限。下回る結果はクライアント側で除外する
	MinScore float64

	// 等価フィルタ（ANDで結合）
	TenantID   *uuid.UUID
	Subject    *string
	Grade      *int
	EntityType *curriculum.EntityType
}

// Result は検索結果の1件。チャンクではなくエンティティ単位に集約済み
type Result struct {
	EntityID     uuid.UUID             `json:"entityID"`
	EntityType   curriculum.EntityType `json:"entityType"`
	Subject      string                `json:"subject"`
	Grade        int                   `json:"grade"`
	Title        string                `json:"title"`
	TopicID      *uuid.UUID            `json:"topicID,omitempty"`
	ContentType  *string               `json:"contentType,omitempty"`
	StandardCode *string               `json:"standardCode,omitempty"`
	BodyPreview  string                `json:"bodyPreview"`
	Score        float64               `json:"score"`
	IndexedAt    time.Time             `json:"indexedAt"`
}

// Service は検索のビジネスロジックを提供する
type Service struct {
	embedder Embedder
	index    vectorindex.Index
	log      *slog.Logger
}

// ServiceOption はServiceのオプション設定
type ServiceOption func(*Service)

// WithLogger はロガーを差し替える
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// NewService は新しいServiceを作成します
func NewService(embedder Embedder, index vectorindex.Index, opts ...ServiceOption) *Service {
	s := &Service{
		embedder: embedder,
		index:    index,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search は自然言語クエリでカリキュラムを検索する。
// クエリはユーザー入力のまま埋め込む（インデックス時の文脈ヘッダは付与しない）。
// Embeddingまたはインデックスの失敗はそのままエラーとして返す。
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = vectorindex.DefaultTopK
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// 同一エンティティの複数チャンクが上位を占めても集約後にtopK件を
	// 満たせるよう、余裕を持たせて取得する。余裕分は100件で頭打ちにするが、
	// topK自体は下回らない。1エンティティのチャンクが上位を独占し尽くした
	// 場合は集約後がtopKに満たないことがある
	fetchK := topK * 3
	if fetchK > 100 {
		fetchK = 100
	}
	if fetchK < topK {
		fetchK = topK
	}

	raw, err := s.index.Query(ctx, queryVector, vectorindex.QueryOptions{
		TopK: fetchK,
		Filter: vectorindex.Filter{
			TenantID:   opts.TenantID,
			Subject:    opts.Subject,
			Grade:      opts.Grade,
			EntityType: opts.EntityType,
		},
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	// スコア下限はプロバイダに任せず明示的な後段フィルタとして適用する
	filtered := make([]vectorindex.QueryResult, 0, len(raw))
	for _, r := range raw {
		if r.Score >= opts.MinScore {
			filtered = append(filtered, r)
		}
	}

	results := dedupeByEntity(filtered)

	// スコア降順。同点はプロバイダの返却順を維持する
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}

	s.log.Debug("search completed",
		"query", query,
		"rawResults", len(raw),
		"entities", len(results),
	)
	return results, nil
}

// dedupeByEntity はチャンク単位の結果を親エンティティ単位に集約する。
// 同一エンティティの複数チャンクがヒットした場合は最高スコアのチャンクの
// メタデータのみを残す。入力順（プロバイダの返却順）は維持される。
func dedupeByEntity(raw []vectorindex.QueryResult) []Result {
	type key struct {
		entityType curriculum.EntityType
		entityID   uuid.UUID
	}

	seen := make(map[key]int)
	results := make([]Result, 0, len(raw))

	for _, r := range raw {
		if r.Metadata == nil {
			continue
		}
		m := r.Metadata

		k := key{entityType: m.EntityType, entityID: m.EntityID}
		if i, ok := seen[k]; ok {
			// スコアが上回る場合のみ差し替える。位置は初出のまま
			if r.Score > results[i].Score {
				results[i] = toResult(r.Score, m)
			}
			continue
		}

		seen[k] = len(results)
		results = append(results, toResult(r.Score, m))
	}

	return results
}

func toResult(score float64, m *vectorindex.Metadata) Result {
	return Result{
		EntityID:     m.EntityID,
		EntityType:   m.EntityType,
		Subject:      m.Subject,
		Grade:        m.Grade,
		Title:        m.Title,
		TopicID:      m.TopicID,
		ContentType:  m.ContentType,
		StandardCode: m.StandardCode,
		BodyPreview:  m.BodyPreview,
		Score:        score,
		IndexedAt:    m.IndexedAt,
	}
}

// Stats はインデックスの統計情報を返す
func (s *Service) Stats(ctx context.Context) (*vectorindex.Stats, error) {
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get index stats: %w", err)
	}
	return stats, nil
}
