package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/pkoukk/tiktoken-go"

	"github.com/jinford/curriculum-search/internal/core/chunk"
	"github.com/jinford/curriculum-search/internal/core/indexing"
	"github.com/jinford/curriculum-search/internal/core/search"
)

// Embedder は OpenAI API を使用してテキストをベクトルに変換する
type Embedder struct {
	client    openai.Client
	encoder   *tiktoken.Tiktoken
	model     string
	dimension int
	maxRunes  int
}

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536
	// DefaultMaxInputRunes は1入力あたりの文字数上限。
	// モデルのトークン上限(8191)に対する保守的な近似として先に適用する
	DefaultMaxInputRunes = 8000

	// maxInputTokens はtext-embedding-3系の入力トークン上限
	maxInputTokens = 8191
	// maxBatchSize はOpenAI Embeddings APIの1リクエストあたりの入力数上限
	maxBatchSize = 100
)

// ErrAPIKeyNotSet はAPIキー未設定の構築時エラー
var ErrAPIKeyNotSet = errors.New("openai api key is not set")

type embedderOptions struct {
	model     string
	dimension int
	maxRunes  int
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithMaxInputRunes は1入力あたりの文字数上限を上書きする
func WithMaxInputRunes(max int) EmbedderOption {
	return func(o *embedderOptions) {
		if max > 0 {
			o.maxRunes = max
		}
	}
}

// NewEmbedder は新しい Embedder を作成する。
// APIキー未設定は初回呼び出しまで遅延させず、ここで失敗させる。
func NewEmbedder(apiKey string, opts ...EmbedderOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
		maxRunes:  DefaultMaxInputRunes,
	}
	for _, opt := range opts {
		opt(&options)
	}

	// cl100k_baseエンコーダを使用（text-embedding-3系と互換）
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	return &Embedder{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
		),
		encoder:   encoder,
		model:     options.model,
		dimension: options.dimension,
		maxRunes:  options.maxRunes,
	}, nil
}

// Embed は単一テキストのEmbeddingベクトルを生成する
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.EmbedWithUsage(ctx, text)
	if err != nil {
		return nil, err
	}
	return result.Embedding, nil
}

// EmbedWithUsage は単一テキストのEmbeddingをトークン使用量付きで生成する
func (e *Embedder) EmbedWithUsage(ctx context.Context, text string) (*indexing.EmbeddingResult, error) {
	batch, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(batch.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}
	return &batch.Embeddings[0], nil
}

// EmbedBatch はバッチでEmbeddingを生成する。結果は入力順を保つ。
// 空の入力はAPIを呼ばずに空の結果を返す。APIの入力数上限(100)を超える場合は
// 内部で分割して順に送信する。
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) (*indexing.BatchEmbeddingResult, error) {
	result := &indexing.BatchEmbeddingResult{
		Embeddings: make([]indexing.EmbeddingResult, 0, len(texts)),
	}
	if len(texts) == 0 {
		return result, nil
	}

	prepared := make([]string, len(texts))
	for i, text := range texts {
		prepared[i] = e.preprocess(text)
	}

	for start := 0; start < len(prepared); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(prepared) {
			end = len(prepared)
		}

		vectors, tokensUsed, err := e.embedRequest(ctx, prepared[start:end])
		if err != nil {
			return nil, err
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), end-start)
		}

		for i, vector := range vectors {
			text := prepared[start+i]
			result.Embeddings = append(result.Embeddings, indexing.EmbeddingResult{
				Embedding:  vector,
				TokensUsed: e.countTokens(text),
				Text:       text,
			})
		}
		result.TotalTokensUsed += tokensUsed
	}

	return result, nil
}

// embedRequest は1回のAPIリクエストでEmbeddingを生成する
func (e *Embedder) embedRequest(ctx context.Context, texts []string) ([][]float32, int, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
	}

	if len(texts) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(texts[0]),
		}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		}
	}

	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	vectors := make([][]float32, 0, len(resp.Data))
	for _, data := range resp.Data {
		vector := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vector[i] = float32(v)
		}
		vectors = append(vectors, vector)
	}

	return vectors, int(resp.Usage.TotalTokens), nil
}

// preprocess は送信前のテキスト前処理を行う。
// 正規化（Chunkerと共通）→文字数上限→トークン上限の順に適用する。
func (e *Embedder) preprocess(text string) string {
	normalized := chunk.Normalize(text)

	runes := []rune(normalized)
	if len(runes) > e.maxRunes {
		normalized = string(runes[:e.maxRunes])
	}

	return e.trimToTokenLimit(normalized, maxInputTokens)
}

// trimToTokenLimit はテキストを指定されたトークン数に収まるようトリミングする
func (e *Embedder) trimToTokenLimit(text string, maxTokens int) string {
	tokens := e.encoder.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return e.encoder.Decode(tokens[:maxTokens])
}

// countTokens はテキストのトークン数をカウントする
func (e *Embedder) countTokens(text string) int {
	return len(e.encoder.Encode(text, nil, nil))
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimensions はEmbeddingベクトルの次元数を返す
func (e *Embedder) Dimensions() int {
	return e.dimension
}

// インターフェース実装の確認
var (
	_ indexing.Embedder = (*Embedder)(nil)
	_ search.Embedder   = (*Embedder)(nil)
)
