package vectorindex_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/curriculum-search/internal/core/curriculum"
	"github.com/jinford/curriculum-search/internal/core/vectorindex"
)

func TestRecordID_Deterministic(t *testing.T) {
	entityID := uuid.MustParse("5f1c7a9e-0b0b-4a68-9a3d-2f4f9f6e1c22")

	id := vectorindex.RecordID(curriculum.EntityTypeTopic, entityID, 0)
	assert.Equal(t, "topic:5f1c7a9e-0b0b-4a68-9a3d-2f4f9f6e1c22:0", id)

	// 同一入力は常に同一ID
	assert.Equal(t, id, vectorindex.RecordID(curriculum.EntityTypeTopic, entityID, 0))

	itemID := vectorindex.RecordID(curriculum.EntityTypeContentItem, entityID, 3)
	assert.Equal(t, "item:5f1c7a9e-0b0b-4a68-9a3d-2f4f9f6e1c22:3", itemID)
}

func TestParseRecordID_RoundTrip(t *testing.T) {
	entityID := uuid.New()

	for _, entityType := range []curriculum.EntityType{
		curriculum.EntityTypeTopic,
		curriculum.EntityTypeContentItem,
	} {
		id := vectorindex.RecordID(entityType, entityID, 7)

		gotType, gotID, gotIndex, err := vectorindex.ParseRecordID(id)
		require.NoError(t, err)
		assert.Equal(t, entityType, gotType)
		assert.Equal(t, entityID, gotID)
		assert.Equal(t, 7, gotIndex)
	}
}

func TestParseRecordID_Malformed(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{name: "空文字", id: ""},
		{name: "区切りが足りない", id: "topic:abc"},
		{name: "区切りが多い", id: "topic:a:b:c"},
		{name: "未知のプレフィックス", id: "chapter:" + uuid.New().String() + ":0"},
		{name: "不正なUUID", id: "topic:not-a-uuid:0"},
		{name: "チャンク番号が数値でない", id: "topic:" + uuid.New().String() + ":x"},
		{name: "チャンク番号が負", id: "topic:" + uuid.New().String() + ":-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := vectorindex.ParseRecordID(tt.id)
			require.Error(t, err)
		})
	}
}

func TestFilter_Empty(t *testing.T) {
	assert.True(t, vectorindex.Filter{}.Empty())

	subject := "math"
	assert.False(t, vectorindex.Filter{Subject: &subject}.Empty())
}
