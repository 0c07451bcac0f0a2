package container

import (
	"context"
	"fmt"
	"log/slog"

	corechunk "github.com/jinford/curriculum-search/internal/core/chunk"
	coreindexing "github.com/jinford/curriculum-search/internal/core/indexing"
	coresearch "github.com/jinford/curriculum-search/internal/core/search"
	"github.com/jinford/curriculum-search/internal/core/vectorindex"
	infraopenai "github.com/jinford/curriculum-search/internal/infra/openai"
	infrapg "github.com/jinford/curriculum-search/internal/infra/postgres"
	"github.com/jinford/curriculum-search/pkg/config"
	"github.com/jinford/curriculum-search/pkg/db"
)

// ServiceContainer はアプリケーションの依存関係を明示的に構築して保持する。
// モジュールレベルのシングルトンは持たず、テストではオプションで依存を差し替え、
// Close で確実に解放する。
type ServiceContainer struct {
	IndexingService *coreindexing.Service
	SearchService   *coresearch.Service
	SourceRepo      coreindexing.SourceRepository
	VectorIndex     vectorindex.Index

	logger   *slog.Logger
	database *db.DB
}

type containerOptions struct {
	logger        *slog.Logger
	indexEmbedder coreindexing.Embedder
	queryEmbedder coresearch.Embedder
	vectorIndex   vectorindex.Index
	sourceRepo    coreindexing.SourceRepository
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbedder はEmbedding生成の実装を差し替える（テスト用）
func WithContainerEmbedder(indexEmbedder coreindexing.Embedder, queryEmbedder coresearch.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.indexEmbedder = indexEmbedder
		opts.queryEmbedder = queryEmbedder
	}
}

// WithContainerVectorIndex はベクトルインデックスの実装を差し替える（テスト用）
func WithContainerVectorIndex(index vectorindex.Index) ContainerOption {
	return func(opts *containerOptions) {
		opts.vectorIndex = index
	}
}

// WithContainerSourceRepository はカリキュラム原本リポジトリを差し替える（テスト用）
func WithContainerSourceRepository(repo coreindexing.SourceRepository) ContainerOption {
	return func(opts *containerOptions) {
		opts.sourceRepo = repo
	}
}

// NewContainer は設定から全サービスを組み立てます
func NewContainer(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: logger}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// データベース接続（ベクトルインデックスとカリキュラム原本を保持）
	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Embedder（注入されていない場合はOpenAIを使用）
	indexEmbedder := options.indexEmbedder
	queryEmbedder := options.queryEmbedder
	if indexEmbedder == nil || queryEmbedder == nil {
		embedder, err := infraopenai.NewEmbedder(cfg.OpenAI.APIKey,
			infraopenai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			infraopenai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		if indexEmbedder == nil {
			indexEmbedder = embedder
		}
		if queryEmbedder == nil {
			queryEmbedder = embedder
		}
	}

	// ベクトルインデックス
	index := options.vectorIndex
	if index == nil {
		pgIndex, err := infrapg.NewVectorIndex(database.Pool, cfg.OpenAI.EmbeddingDimension)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to create vector index: %w", err)
		}
		index = pgIndex
	}

	// カリキュラム原本リポジトリ
	sourceRepo := options.sourceRepo
	if sourceRepo == nil {
		sourceRepo = infrapg.NewSourceRepository(database.Pool)
	}

	chunker := corechunk.New()

	return &ServiceContainer{
		IndexingService: coreindexing.NewService(indexEmbedder, index, chunker,
			coreindexing.WithLogger(options.logger)),
		SearchService: coresearch.NewService(queryEmbedder, index,
			coresearch.WithLogger(options.logger)),
		SourceRepo:  sourceRepo,
		VectorIndex: index,
		logger:      options.logger,
		database:    database,
	}, nil
}

// Logger はコンテナのロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	return c.logger
}

// Pool はデータベース接続プールを返す（スキーマ作成等に使用）
func (c *ServiceContainer) Pool() *db.DB {
	return c.database
}

// Close はコンテナが保持するリソースを解放する
func (c *ServiceContainer) Close() {
	if c.database != nil {
		c.database.Close()
	}
}
