package curriculum

import (
	"fmt"

	"github.com/google/uuid"
)

// EntityType はインデックス対象のカリキュラムエンティティ種別
type EntityType string

const (
	// EntityTypeTopic はカリキュラムトピック（単元）
	EntityTypeTopic EntityType = "topic"
	// EntityTypeContentItem はトピック配下のコンテンツアイテム
	EntityTypeContentItem EntityType = "content_item"
)

// Prefix はベクトルレコードIDに使用する短い種別プレフィックスを返す
func (t EntityType) Prefix() string {
	if t == EntityTypeContentItem {
		return "item"
	}
	return "topic"
}

// EntityTypeFromPrefix はレコードIDのプレフィックスからEntityTypeを復元する
func EntityTypeFromPrefix(prefix string) (EntityType, error) {
	switch prefix {
	case "topic":
		return EntityTypeTopic, nil
	case "item":
		return EntityTypeContentItem, nil
	default:
		return "", fmt.Errorf("unknown entity type prefix: %q", prefix)
	}
}

// Valid はEntityTypeが既知の値かどうかを返す
func (t EntityType) Valid() bool {
	return t == EntityTypeTopic || t == EntityTypeContentItem
}

// Entity はインデックス対象のカリキュラムエンティティ（トピックまたはコンテンツアイテム）を表す。
// 識別子は不変。Title/Bodyは教材作成者によって編集され、編集のたびに再インデックスされる。
type Entity struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Type     EntityType
	Subject  string
	Grade    int
	Title    string
	Body     string

	// TopicID はコンテンツアイテムの親トピック（トピック自身には設定されない）
	TopicID *uuid.UUID

	// ContentType はコンテンツアイテムの種別（explanation/example/practice等）
	ContentType *string

	// StandardCode は学習指導要領等の基準コード
	StandardCode *string
}

// Validate はエンティティがインデックス可能かどうかを検証する
func (e *Entity) Validate() error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("entity id is required")
	}
	if e.TenantID == uuid.Nil {
		return fmt.Errorf("tenant id is required")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("invalid entity type: %q", e.Type)
	}
	if e.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if e.Grade < 0 {
		return fmt.Errorf("grade must not be negative: %d", e.Grade)
	}
	if e.Title == "" {
		return fmt.Errorf("title is required")
	}
	if e.Type == EntityTypeContentItem && (e.TopicID == nil || *e.TopicID == uuid.Nil) {
		return fmt.Errorf("content item requires a parent topic id")
	}
	if e.Type == EntityTypeTopic && e.TopicID != nil {
		return fmt.Errorf("topic must not have a parent topic id")
	}
	return nil
}
