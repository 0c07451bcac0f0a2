package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jinford/curriculum-search/internal/core/curriculum"
	coresearch "github.com/jinford/curriculum-search/internal/core/search"
)

// SearchAction は自然言語クエリでカリキュラムを検索するコマンドのアクション
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	query := cmd.String("query")

	tenantID, err := parseOptionalUUID(cmd.String("tenant"))
	if err != nil {
		return err
	}

	var subject *string
	if s := cmd.String("subject"); s != "" {
		subject = &s
	}

	var grade *int
	if cmd.IsSet("grade") {
		g := cmd.Int("grade")
		grade = &g
	}

	var entityType *curriculum.EntityType
	if s := cmd.String("type"); s != "" {
		t, err := parseEntityType(s)
		if err != nil {
			return err
		}
		entityType = &t
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	results, err := appCtx.Container.SearchService.Search(ctx, query, coresearch.Options{
		TopK:       cmd.Int("top-k"),
		MinScore:   cmd.Float("min-score"),
		TenantID:   tenantID,
		Subject:    subject,
		Grade:      grade,
		EntityType: entityType,
	})
	if err != nil {
		slog.Error("検索に失敗しました", "query", query, "error", err)
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

// StatsAction はインデックスの統計情報を表示するコマンドのアクション
func StatsAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	stats, err := appCtx.Container.SearchService.Stats(ctx)
	if err != nil {
		slog.Error("統計情報の取得に失敗しました", "error", err)
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"vectorCount": stats.VectorCount,
		"dimension":   stats.Dimension,
	})
}

// MigrateAction はベクトルインデックスのスキーマを作成するコマンドのアクション
func MigrateAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	migrator, ok := appCtx.Container.VectorIndex.(interface {
		EnsureSchema(ctx context.Context) error
	})
	if !ok {
		slog.Warn("注入されたベクトルインデックスはスキーマ管理に対応していません")
		return nil
	}

	if err := migrator.EnsureSchema(ctx); err != nil {
		slog.Error("スキーマの作成に失敗しました", "error", err)
		return err
	}

	slog.Info("ベクトルインデックスのスキーマを作成しました")
	return nil
}
