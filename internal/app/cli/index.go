package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// IndexTopicAction はトピックを1件インデックス化するコマンドのアクション
func IndexTopicAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("invalid topic id: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("トピックのインデックス化を開始", "id", id)

	topic, err := appCtx.Container.SourceRepo.GetTopic(ctx, id)
	if err != nil {
		return err
	}

	result, err := appCtx.Container.IndexingService.IndexTopic(ctx, topic)
	if err != nil {
		slog.Error("トピックのインデックス化に失敗しました", "id", id, "error", err)
		return err
	}

	slog.Info("トピックのインデックス化が完了しました",
		"id", result.EntityID,
		"chunks", result.ChunksIndexed,
		"tokens", result.TokensUsed,
		"duration", result.Duration,
	)
	return nil
}

// IndexItemAction はコンテンツアイテムを1件インデックス化するコマンドのアクション
func IndexItemAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("invalid content item id: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("コンテンツアイテムのインデックス化を開始", "id", id)

	item, err := appCtx.Container.SourceRepo.GetContentItem(ctx, id)
	if err != nil {
		return err
	}

	result, err := appCtx.Container.IndexingService.IndexContentItem(ctx, item)
	if err != nil {
		slog.Error("コンテンツアイテムのインデックス化に失敗しました", "id", id, "error", err)
		return err
	}

	slog.Info("コンテンツアイテムのインデックス化が完了しました",
		"id", result.EntityID,
		"chunks", result.ChunksIndexed,
		"tokens", result.TokensUsed,
		"duration", result.Duration,
	)
	return nil
}

// IndexAllAction は全エンティティを一括インデックス化するコマンドのアクション
func IndexAllAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	tenantID, err := parseOptionalUUID(cmd.String("tenant"))
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("一括インデックス化を開始", "tenant", cmd.String("tenant"))

	manifest, err := appCtx.Container.IndexingService.IndexAll(ctx, appCtx.Container.SourceRepo, tenantID)
	if err != nil {
		slog.Error("一括インデックス化に失敗しました", "error", err)
		return err
	}

	for _, failure := range manifest.Failed {
		slog.Warn("インデックス化に失敗したエンティティ",
			"type", failure.EntityType,
			"id", failure.EntityID,
			"error", failure.Err,
		)
	}

	slog.Info("一括インデックス化が完了しました",
		"indexed", len(manifest.Indexed),
		"failed", len(manifest.Failed),
		"duration", manifest.Duration,
	)

	if len(manifest.Failed) > 0 {
		return fmt.Errorf("%d entities failed to index", len(manifest.Failed))
	}
	return nil
}

// DeleteAction はエンティティの全チャンクレコードをインデックスから削除するアクション
func DeleteAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	entityType, err := parseEntityType(cmd.String("type"))
	if err != nil {
		return err
	}
	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("invalid entity id: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	deleted, err := appCtx.Container.IndexingService.DeleteEntity(ctx, entityType, id)
	if err != nil {
		slog.Error("インデックスからの削除に失敗しました", "type", entityType, "id", id, "error", err)
		return err
	}

	slog.Info("インデックスから削除しました", "type", entityType, "id", id, "deleted", deleted)
	return nil
}
