package chunk

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// DefaultMaxChunkSize はチャンクの最大文字数（rune数）のデフォルト
	DefaultMaxChunkSize = 1000
	// DefaultOverlapSize は隣接チャンク間のオーバーラップ文字数のデフォルト
	DefaultOverlapSize = 100

	// lookbackWindow は境界スナップを探索する末尾範囲の文字数
	lookbackWindow = 200
	// minBoundaryOffset は探索範囲の先頭からこの文字数以内の境界は採用しない
	minBoundaryOffset = 50
)

// Chunk は正規化済みテキストから切り出した1セグメントを表す。
// StartPos/EndPos は正規化済みテキストに対するrune単位のオフセット。
// TotalChunks は同一エンティティの全チャンク生成後に確定する。
type Chunk struct {
	Text        string
	Index       int
	StartPos    int
	EndPos      int
	TotalChunks int
}

// Chunker はテキストを境界を考慮しつつ固定上限のセグメントに分割します
type Chunker struct {
	maxChunkSize       int
	overlapSize        int
	preserveParagraphs bool
	preserveSentences  bool
}

// Option はChunkerのオプション設定
type Option func(*Chunker)

// WithMaxChunkSize はチャンクの最大文字数を上書きする。0以下は無視してデフォルトを使う
func WithMaxChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.maxChunkSize = size
		}
	}
}

// WithOverlapSize はオーバーラップ文字数を上書きする。負値は無視してデフォルトを使う
func WithOverlapSize(size int) Option {
	return func(c *Chunker) {
		if size >= 0 {
			c.overlapSize = size
		}
	}
}

// WithPreserveParagraphs は段落境界でのスナップを有効/無効にする
func WithPreserveParagraphs(enabled bool) Option {
	return func(c *Chunker) {
		c.preserveParagraphs = enabled
	}
}

// WithPreserveSentences は文境界でのスナップを有効/無効にする
func WithPreserveSentences(enabled bool) Option {
	return func(c *Chunker) {
		c.preserveSentences = enabled
	}
}

// New は新しいChunkerを作成します
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxChunkSize:       DefaultMaxChunkSize,
		overlapSize:        DefaultOverlapSize,
		preserveParagraphs: true,
		preserveSentences:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var spaceRunRe = regexp.MustCompile(`[ \t]+`)

// Normalize はチャンク化およびEmbedding前処理で共有するテキスト正規化を行う。
// CRLF/CRをLFへ変換し、スペース・タブの連続を1つに畳み、前後の空白を除去する。
// 段落境界（連続改行）は保持する。
func Normalize(text string) string {
	s := strings.ReplaceAll(text, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = spaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Split はテキストを正規化したうえでチャンクに分割します。
// 空文字・空白のみの入力は空のスライスを返す。
func (c *Chunker) Split(text string) []Chunk {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	length := len(runes)

	// 上限以下ならそのまま1チャンク
	if length <= c.maxChunkSize {
		return []Chunk{{
			Text:        normalized,
			Index:       0,
			StartPos:    0,
			EndPos:      length,
			TotalChunks: 1,
		}}
	}

	var chunks []Chunk
	pos := 0
	for pos < length {
		end := pos + c.maxChunkSize
		if end > length {
			end = length
		}

		// テキスト末尾でない場合のみ境界スナップを試みる
		if end < length {
			end = c.snapToBoundary(runes, pos, end)
		}

		piece := strings.TrimSpace(string(runes[pos:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{
				Text:     piece,
				Index:    len(chunks),
				StartPos: pos,
				EndPos:   end,
			})
		}

		// オーバーラップ分だけ巻き戻す。前進しない場合は強制的に進めて停止を保証する
		next := end - c.overlapSize
		if next <= pos {
			next = end
		}
		pos = next
	}

	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

// snapToBoundary は仮の終端位置を段落境界・文境界に引き寄せる。
// 見つからない場合は仮の終端をそのまま返す（ハードカット）。
func (c *Chunker) snapToBoundary(runes []rune, pos, end int) int {
	lookStart := end - lookbackWindow
	if lookStart < pos {
		lookStart = pos
	}
	window := runes[lookStart:end]

	if c.preserveParagraphs {
		if i := lastParagraphBreak(window); i > minBoundaryOffset {
			// 段落区切りの直後まで
			return lookStart + i + 2
		}
	}

	if c.preserveSentences {
		if i := lastSentenceEnd(window); i > minBoundaryOffset {
			// 終端記号の直後まで
			return lookStart + i + 1
		}
	}

	return end
}

// lastParagraphBreak はwindow内で最後に現れる "\n\n" の開始位置を返す。なければ-1
func lastParagraphBreak(window []rune) int {
	for i := len(window) - 2; i >= 0; i-- {
		if window[i] == '\n' && window[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// lastSentenceEnd はwindow内で最後に現れる文終端記号の位置を返す。
// 終端記号の直後が空白または探索範囲の末尾である場合のみ文末とみなす。なければ-1
func lastSentenceEnd(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if !isSentenceTerminal(window[i]) {
			continue
		}
		if i == len(window)-1 || unicode.IsSpace(window[i+1]) {
			return i
		}
	}
	return -1
}

func isSentenceTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
