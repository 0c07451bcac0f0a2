package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/curriculum-search/internal/core/curriculum"
	"github.com/jinford/curriculum-search/internal/core/vectorindex"
)

func TestNewVectorIndex_Validation(t *testing.T) {
	_, err := NewVectorIndex(nil, 1536)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection pool is required")
}

func TestBuildFilter_Empty(t *testing.T) {
	baseArgs := []any{pgvector.NewVector([]float32{0.1})}

	where, args := buildFilter(vectorindex.Filter{}, baseArgs)

	assert.Equal(t, "", where)
	assert.Len(t, args, 1)
}

func TestBuildFilter_SingleCondition(t *testing.T) {
	subject := "math"
	baseArgs := []any{pgvector.NewVector([]float32{0.1})}

	where, args := buildFilter(vectorindex.Filter{Subject: &subject}, baseArgs)

	assert.Equal(t, " WHERE subject = $2", where)
	require.Len(t, args, 2)
	assert.Equal(t, "math", args[1])
}

func TestBuildFilter_AllConditions(t *testing.T) {
	tenantID := uuid.New()
	subject := "math"
	grade := 5
	entityType := curriculum.EntityTypeContentItem
	baseArgs := []any{pgvector.NewVector([]float32{0.1})}

	where, args := buildFilter(vectorindex.Filter{
		TenantID:   &tenantID,
		Subject:    &subject,
		Grade:      &grade,
		EntityType: &entityType,
	}, baseArgs)

	// 条件はANDで結合され、プレースホルダは引数位置と一致する
	assert.Equal(t, " WHERE tenant_id = $2 AND subject = $3 AND grade = $4 AND entity_type = $5", where)
	require.Len(t, args, 5)
	assert.Equal(t, "math", args[2])
	assert.Equal(t, int32(5), args[3])
	assert.Equal(t, "content_item", args[4])
}

func TestUpsertArgs_Validation(t *testing.T) {
	index := &VectorIndex{dimension: 3}

	_, err := index.upsertArgs(vectorindex.Record{ID: "", Vector: []float32{1, 2, 3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record id is required")

	_, err = index.upsertArgs(vectorindex.Record{ID: "topic:x:0", Vector: []float32{1, 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector dimension mismatch")
}

func TestMetadataRow_ToMetadata(t *testing.T) {
	entityID := uuid.New()
	tenantID := uuid.New()
	topicID := uuid.New()

	row := metadataRow{
		entityType:    "content_item",
		entityID:      UUIDToPgtype(entityID),
		tenantID:      UUIDToPgtype(tenantID),
		subject:       "math",
		grade:         5,
		title:         "Worked Example",
		topicID:       UUIDToPgtype(topicID),
		contentType:   StringPtrToPgtext(ptr("example")),
		standardCode:  StringPtrToPgtext(nil),
		bodyPreview:   "1/2 + 1/3",
		chunkIndex:    1,
		totalChunks:   2,
		schemaVersion: 1,
	}

	m := row.toMetadata()

	assert.Equal(t, curriculum.EntityTypeContentItem, m.EntityType)
	assert.Equal(t, entityID, m.EntityID)
	assert.Equal(t, tenantID, m.TenantID)
	require.NotNil(t, m.TopicID)
	assert.Equal(t, topicID, *m.TopicID)
	require.NotNil(t, m.ContentType)
	assert.Equal(t, "example", *m.ContentType)
	assert.Nil(t, m.StandardCode)
	assert.Equal(t, 1, m.ChunkIndex)
	assert.Equal(t, 2, m.TotalChunks)
}

func ptr(s string) *string {
	return &s
}
