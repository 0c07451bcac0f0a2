package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jinford/curriculum-search/internal/core/curriculum"
	"github.com/jinford/curriculum-search/internal/platform/container"
	"github.com/jinford/curriculum-search/internal/platform/logger"
	"github.com/jinford/curriculum-search/pkg/config"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Container *container.ServiceContainer
}

// NewAppContext は設定ファイルを読み込み、DBに接続して AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	// 設定の読み込み
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	// ロガーの初期化
	appLogger := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
	})

	// コンテナの初期化
	cont, err := container.NewContainer(ctx, appLogger, cfg)
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Container: cont,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}

// parseEntityType は--typeフラグの値をEntityTypeに変換する
func parseEntityType(s string) (curriculum.EntityType, error) {
	switch s {
	case "topic":
		return curriculum.EntityTypeTopic, nil
	case "content_item", "item":
		return curriculum.EntityTypeContentItem, nil
	default:
		return "", fmt.Errorf("invalid entity type %q (topic または content_item を指定)", s)
	}
}

// parseOptionalUUID は空文字をnilとして扱うUUIDパース
func parseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return &id, nil
}
