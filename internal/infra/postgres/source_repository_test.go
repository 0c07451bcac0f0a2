package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/curriculum-search/internal/core/curriculum"
	"github.com/jinford/curriculum-search/internal/infra/postgres"
)

// setupSourceRepository はカリキュラム原本テーブルを作成してリポジトリを返します
func setupSourceRepository(t *testing.T) (*postgres.SourceRepository, *pgxpool.Pool) {
	t.Helper()

	pool := setupPool(t)
	ctx := context.Background()

	stmts := []string{
		`CREATE TABLE curriculum_topics (
			id            uuid PRIMARY KEY,
			tenant_id     uuid NOT NULL,
			subject       text NOT NULL,
			grade         integer NOT NULL,
			title         text NOT NULL,
			body          text NOT NULL,
			standard_code text
		)`,
		`CREATE TABLE curriculum_content_items (
			id            uuid PRIMARY KEY,
			tenant_id     uuid NOT NULL,
			topic_id      uuid NOT NULL REFERENCES curriculum_topics(id),
			subject       text NOT NULL,
			grade         integer NOT NULL,
			title         text NOT NULL,
			body          text NOT NULL,
			content_type  text,
			standard_code text
		)`,
	}
	for _, stmt := range stmts {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	return postgres.NewSourceRepository(pool), pool
}

func insertTopic(t *testing.T, pool *pgxpool.Pool, tenantID uuid.UUID, subject string, grade int, title string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO curriculum_topics (id, tenant_id, subject, grade, title, body, standard_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		postgres.UUIDToPgtype(id), postgres.UUIDToPgtype(tenantID),
		subject, int32(grade), title, "body of "+title, "5.NF.A.1",
	)
	require.NoError(t, err)
	return id
}

func insertContentItem(t *testing.T, pool *pgxpool.Pool, tenantID, topicID uuid.UUID, title string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO curriculum_content_items (id, tenant_id, topic_id, subject, grade, title, body, content_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		postgres.UUIDToPgtype(id), postgres.UUIDToPgtype(tenantID), postgres.UUIDToPgtype(topicID),
		"math", int32(5), title, "body of "+title, "practice",
	)
	require.NoError(t, err)
	return id
}

func TestSourceRepository_GetTopic(t *testing.T) {
	repo, pool := setupSourceRepository(t)
	ctx := context.Background()

	tenantID := uuid.New()
	topicID := insertTopic(t, pool, tenantID, "math", 5, "Fractions")

	topic, err := repo.GetTopic(ctx, topicID)
	require.NoError(t, err)
	assert.Equal(t, topicID, topic.ID)
	assert.Equal(t, tenantID, topic.TenantID)
	assert.Equal(t, curriculum.EntityTypeTopic, topic.Type)
	assert.Equal(t, "math", topic.Subject)
	assert.Equal(t, 5, topic.Grade)
	assert.Equal(t, "Fractions", topic.Title)
	require.NotNil(t, topic.StandardCode)
	assert.Equal(t, "5.NF.A.1", *topic.StandardCode)
	assert.Nil(t, topic.TopicID)

	// インデックス可能なエンティティとして取得できる
	require.NoError(t, topic.Validate())

	_, err = repo.GetTopic(ctx, uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic not found")
}

func TestSourceRepository_GetContentItem(t *testing.T) {
	repo, pool := setupSourceRepository(t)
	ctx := context.Background()

	tenantID := uuid.New()
	topicID := insertTopic(t, pool, tenantID, "math", 5, "Fractions")
	itemID := insertContentItem(t, pool, tenantID, topicID, "Worked Example")

	item, err := repo.GetContentItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, itemID, item.ID)
	assert.Equal(t, curriculum.EntityTypeContentItem, item.Type)
	require.NotNil(t, item.TopicID)
	assert.Equal(t, topicID, *item.TopicID)
	require.NotNil(t, item.ContentType)
	assert.Equal(t, "practice", *item.ContentType)
	require.NoError(t, item.Validate())

	_, err = repo.GetContentItem(ctx, uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content item not found")
}

func TestSourceRepository_ListByTenant(t *testing.T) {
	repo, pool := setupSourceRepository(t)
	ctx := context.Background()

	tenantA := uuid.New()
	tenantB := uuid.New()

	topicA := insertTopic(t, pool, tenantA, "math", 5, "Fractions")
	insertTopic(t, pool, tenantB, "science", 3, "Plants")
	insertContentItem(t, pool, tenantA, topicA, "Example")

	// 全件
	topics, err := repo.ListTopics(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, topics, 2)

	// テナント絞り込み
	topics, err = repo.ListTopics(ctx, &tenantA)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, topicA, topics[0].ID)

	items, err := repo.ListContentItems(ctx, &tenantA)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = repo.ListContentItems(ctx, &tenantB)
	require.NoError(t, err)
	assert.Empty(t, items)
}
