package curriculum_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jinford/curriculum-search/internal/core/curriculum"
)

func TestBuildEmbeddingText_TopicMinimal(t *testing.T) {
	e := &curriculum.Entity{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Type:     curriculum.EntityTypeTopic,
		Subject:  "math",
		Grade:    5,
		Title:    "分数のたし算",
		Body:     "分母をそろえてから分子を足す。",
	}

	text := curriculum.BuildEmbeddingText(e)

	expected := "MATH Grade 5\nTitle: 分数のたし算\n\n分母をそろえてから分子を足す。"
	assert.Equal(t, expected, text)
}

func TestBuildEmbeddingText_WithStandardCode(t *testing.T) {
	code := "5.NF.A.1"
	e := &curriculum.Entity{
		Type:         curriculum.EntityTypeTopic,
		Subject:      "Math",
		Grade:        5,
		Title:        "Adding Fractions",
		Body:         "Find a common denominator first.",
		StandardCode: &code,
	}

	text := curriculum.BuildEmbeddingText(e)

	expected := "MATH Grade 5\nStandard: 5.NF.A.1\nTitle: Adding Fractions\n\nFind a common denominator first."
	assert.Equal(t, expected, text)
}

func TestBuildEmbeddingText_ContentItemWithType(t *testing.T) {
	contentType := "practice"
	topicID := uuid.New()
	e := &curriculum.Entity{
		Type:        curriculum.EntityTypeContentItem,
		Subject:     "science",
		Grade:       3,
		Title:       "光合成の観察",
		Body:        "葉にアルミホイルを巻いて実験する。",
		TopicID:     &topicID,
		ContentType: &contentType,
	}

	text := curriculum.BuildEmbeddingText(e)

	expected := "SCIENCE Grade 3\nTitle: 光合成の観察\nType: practice\n\n葉にアルミホイルを巻いて実験する。"
	assert.Equal(t, expected, text)
}

func TestBuildEmbeddingText_EmptyOptionalFieldsOmitted(t *testing.T) {
	empty := ""
	e := &curriculum.Entity{
		Type:         curriculum.EntityTypeTopic,
		Subject:      "math",
		Grade:        1,
		Title:        "Counting",
		Body:         "Count to ten.",
		StandardCode: &empty,
		ContentType:  &empty,
	}

	text := curriculum.BuildEmbeddingText(e)

	assert.NotContains(t, text, "Standard:")
	assert.NotContains(t, text, "Type:")
}
