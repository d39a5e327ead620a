package llm

import (
	"healthmate/app/config"
	"net/http"
	"time"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const httpTimeout = 60 * time.Second

// Client bundles the chat model and the embedder built on the same
// OpenAI-compatible endpoint.
type Client struct {
	Model    llms.Model
	Embedder embeddings.Embedder
}

func New(di *do.Injector) (*Client, error) {
	return NewClient(do.MustInvoke[*config.Config](di).OpenAI)
}

func NewClient(cfg config.OpenAI) (*Client, error) {
	model, err := openai.New(
		openai.WithToken(cfg.Token),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
		openai.WithHTTPClient(&http.Client{
			Timeout: httpTimeout,
		}),
		openai.WithCallback(LogCallbackHandler{}),
	)
	if err != nil {
		return nil, oops.In("llm").With("model", cfg.Model).Wrapf(err, "failed to create openai client")
	}

	embedder, err := embeddings.NewEmbedder(model)
	if err != nil {
		return nil, oops.In("llm").With("model", cfg.EmbeddingModel).Wrapf(err, "failed to create embedder")
	}

	return &Client{
		Model:    model,
		Embedder: embedder,
	}, nil
}
