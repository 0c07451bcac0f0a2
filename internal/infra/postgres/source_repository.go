package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/curriculum-search/internal/core/curriculum"
	"github.com/jinford/curriculum-search/internal/core/indexing"
)

// SourceRepository は indexing.SourceRepository を実装する PostgreSQL リポジトリ。
// カリキュラム原本（トピック・コンテンツアイテム）への読み取り専用アクセスを提供する。
// 原本の作成・更新は教材作成システム側の責務で、ここでは一切変更しない。
type SourceRepository struct {
	pool *pgxpool.Pool
}

// NewSourceRepository は新しい SourceRepository を返す
func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{pool: pool}
}

var _ indexing.SourceRepository = (*SourceRepository)(nil)

const topicColumns = `id, tenant_id, subject, grade, title, body, standard_code`

const contentItemColumns = `id, tenant_id, topic_id, subject, grade, title, body, content_type, standard_code`

// GetTopic はトピックをIDで取得する
func (r *SourceRepository) GetTopic(ctx context.Context, id uuid.UUID) (*curriculum.Entity, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM curriculum_topics WHERE id = $1`, topicColumns),
		UUIDToPgtype(id),
	)
	entity, err := scanTopic(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("topic not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return entity, nil
}

// GetContentItem はコンテンツアイテムをIDで取得する
func (r *SourceRepository) GetContentItem(ctx context.Context, id uuid.UUID) (*curriculum.Entity, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM curriculum_content_items WHERE id = $1`, contentItemColumns),
		UUIDToPgtype(id),
	)
	entity, err := scanContentItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("content item not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return entity, nil
}

// ListTopics はトピック一覧を返す。tenantIDがnilでなければそのテナントに絞り込む
func (r *SourceRepository) ListTopics(ctx context.Context, tenantID *uuid.UUID) ([]*curriculum.Entity, error) {
	sql := fmt.Sprintf(`SELECT %s FROM curriculum_topics`, topicColumns)
	var args []any
	if tenantID != nil {
		sql += ` WHERE tenant_id = $1`
		args = append(args, UUIDToPgtype(*tenantID))
	}
	sql += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	var entities []*curriculum.Entity
	for rows.Next() {
		entity, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read topics: %w", err)
	}
	return entities, nil
}

// ListContentItems はコンテンツアイテム一覧を返す。tenantIDがnilでなければそのテナントに絞り込む
func (r *SourceRepository) ListContentItems(ctx context.Context, tenantID *uuid.UUID) ([]*curriculum.Entity, error) {
	sql := fmt.Sprintf(`SELECT %s FROM curriculum_content_items`, contentItemColumns)
	var args []any
	if tenantID != nil {
		sql += ` WHERE tenant_id = $1`
		args = append(args, UUIDToPgtype(*tenantID))
	}
	sql += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list content items: %w", err)
	}
	defer rows.Close()

	var entities []*curriculum.Entity
	for rows.Next() {
		entity, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read content items: %w", err)
	}
	return entities, nil
}

func scanTopic(row pgx.Row) (*curriculum.Entity, error) {
	var (
		id           pgtype.UUID
		tenantID     pgtype.UUID
		subject      string
		grade        int32
		title        string
		body         string
		standardCode pgtype.Text
	)
	if err := row.Scan(&id, &tenantID, &subject, &grade, &title, &body, &standardCode); err != nil {
		return nil, err
	}
	return &curriculum.Entity{
		ID:           PgtypeToUUID(id),
		TenantID:     PgtypeToUUID(tenantID),
		Type:         curriculum.EntityTypeTopic,
		Subject:      subject,
		Grade:        int(grade),
		Title:        title,
		Body:         body,
		StandardCode: PgtextToStringPtr(standardCode),
	}, nil
}

func scanContentItem(row pgx.Row) (*curriculum.Entity, error) {
	var (
		id           pgtype.UUID
		tenantID     pgtype.UUID
		topicID      pgtype.UUID
		subject      string
		grade        int32
		title        string
		body         string
		contentType  pgtype.Text
		standardCode pgtype.Text
	)
	if err := row.Scan(&id, &tenantID, &topicID, &subject, &grade, &title, &body, &contentType, &standardCode); err != nil {
		return nil, err
	}
	return &curriculum.Entity{
		ID:           PgtypeToUUID(id),
		TenantID:     PgtypeToUUID(tenantID),
		Type:         curriculum.EntityTypeContentItem,
		Subject:      subject,
		Grade:        int(grade),
		Title:        title,
		Body:         body,
		TopicID:      PgtypeToUUIDPtr(topicID),
		ContentType:  PgtextToStringPtr(contentType),
		StandardCode: PgtextToStringPtr(standardCode),
	}, nil
}
