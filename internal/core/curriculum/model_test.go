package curriculum_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/curriculum-search/internal/core/curriculum"
)

func validTopic() *curriculum.Entity {
	return &curriculum.Entity{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Type:     curriculum.EntityTypeTopic,
		Subject:  "math",
		Grade:    5,
		Title:    "Fractions",
		Body:     "Adding fractions with unlike denominators.",
	}
}

func validContentItem() *curriculum.Entity {
	topicID := uuid.New()
	contentType := "example"
	return &curriculum.Entity{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		Type:        curriculum.EntityTypeContentItem,
		Subject:     "math",
		Grade:       5,
		Title:       "Worked Example",
		Body:        "1/2 + 1/3 = 5/6",
		TopicID:     &topicID,
		ContentType: &contentType,
	}
}

func TestEntity_Validate_Success(t *testing.T) {
	require.NoError(t, validTopic().Validate())
	require.NoError(t, validContentItem().Validate())
}

func TestEntity_Validate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *curriculum.Entity)
		errText string
	}{
		{
			name:    "IDなし",
			mutate:  func(e *curriculum.Entity) { e.ID = uuid.Nil },
			errText: "entity id is required",
		},
		{
			name:    "テナントIDなし",
			mutate:  func(e *curriculum.Entity) { e.TenantID = uuid.Nil },
			errText: "tenant id is required",
		},
		{
			name:    "不正なエンティティ種別",
			mutate:  func(e *curriculum.Entity) { e.Type = "chapter" },
			errText: "invalid entity type",
		},
		{
			name:    "教科なし",
			mutate:  func(e *curriculum.Entity) { e.Subject = "" },
			errText: "subject is required",
		},
		{
			name:    "負の学年",
			mutate:  func(e *curriculum.Entity) { e.Grade = -1 },
			errText: "grade must not be negative",
		},
		{
			name:    "タイトルなし",
			mutate:  func(e *curriculum.Entity) { e.Title = "" },
			errText: "title is required",
		},
		{
			name:    "トピックに親トピックID",
			mutate:  func(e *curriculum.Entity) { id := uuid.New(); e.TopicID = &id },
			errText: "topic must not have a parent topic id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validTopic()
			tt.mutate(e)
			err := e.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestEntity_Validate_ContentItemRequiresTopicID(t *testing.T) {
	e := validContentItem()
	e.TopicID = nil

	err := e.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content item requires a parent topic id")
}

func TestEntityType_Prefix(t *testing.T) {
	assert.Equal(t, "topic", curriculum.EntityTypeTopic.Prefix())
	assert.Equal(t, "item", curriculum.EntityTypeContentItem.Prefix())
}

func TestEntityTypeFromPrefix(t *testing.T) {
	topic, err := curriculum.EntityTypeFromPrefix("topic")
	require.NoError(t, err)
	assert.Equal(t, curriculum.EntityTypeTopic, topic)

	item, err := curriculum.EntityTypeFromPrefix("item")
	require.NoError(t, err)
	assert.Equal(t, curriculum.EntityTypeContentItem, item)

	_, err = curriculum.EntityTypeFromPrefix("chapter")
	require.Error(t, err)
}
