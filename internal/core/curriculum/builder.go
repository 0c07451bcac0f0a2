package curriculum

import (
	"fmt"
	"strings"
)

// BuildEmbeddingText はエンティティからEmbedding用の正規テキストを構築します
//
// フォーマット:
//
//	{SUBJECT} Grade {grade}
//	Standard: {standard_code}   (StandardCode がある場合のみ)
//	Title: {title}
//	Type: {content_type}        (ContentType がある場合のみ)
//
//	{本文}
//
// インデックス時はこの構成をそのままChunkerに渡す。検索クエリには適用しない
// （クエリはユーザー入力のまま埋め込む）。教科・学年の文脈を含めることで、
// 学年や教科が曖昧な語の検索精度を上げる。
func BuildEmbeddingText(e *Entity) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("%s Grade %d", strings.ToUpper(e.Subject), e.Grade))

	if e.StandardCode != nil && *e.StandardCode != "" {
		lines = append(lines, fmt.Sprintf("Standard: %s", *e.StandardCode))
	}

	lines = append(lines, fmt.Sprintf("Title: %s", e.Title))

	if e.ContentType != nil && *e.ContentType != "" {
		lines = append(lines, fmt.Sprintf("Type: %s", *e.ContentType))
	}

	header := strings.Join(lines, "\n")
	return fmt.Sprintf("%s\n\n%s", header, e.Body)
}
