package reference

import (
	"context"
	"healthmate/app/client/llm"
	"healthmate/app/config"
	"log/slog"
	"strings"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/tmc/langchaingo/vectorstores/pinecone"
)

// Service searches reference passages (clinical guidance, FAQs) relevant to
// a patient's question.
type Service struct {
	store vectorstores.VectorStore
	topK  int
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if cfg.Pinecone.Host == "" {
		slog.Warn("Pinecone host is not configured, reference search disabled")
		return NewWithStore(nil, cfg.Pinecone.TopK), nil
	}

	llmClient := do.MustInvoke[*llm.Client](di)

	store, err := pinecone.New(
		pinecone.WithHost(cfg.Pinecone.Host),
		pinecone.WithAPIKey(cfg.Pinecone.APIKey),
		pinecone.WithNameSpace(cfg.Pinecone.Namespace),
		pinecone.WithEmbedder(llmClient.Embedder),
	)
	if err != nil {
		return nil, oops.In("reference").With("host", cfg.Pinecone.Host).Wrapf(err, "failed to create pinecone store")
	}

	return NewWithStore(store, cfg.Pinecone.TopK), nil
}

func NewWithStore(store vectorstores.VectorStore, topK int) *Service {
	if topK <= 0 {
		topK = 4
	}

	return &Service{
		store: store,
		topK:  topK,
	}
}

// Search returns passages ordered by relevance. A disabled store or a blank
// query yields no passages.
func (s *Service) Search(ctx context.Context, query string) ([]string, error) {
	if s.store == nil || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	docs, err := s.store.SimilaritySearch(ctx, query, s.topK)
	if err != nil {
		return nil, oops.In("reference").Wrapf(err, "similarity search failed")
	}

	passages := pie.Map(docs, func(doc schema.Document) string {
		return strings.TrimSpace(doc.PageContent)
	})

	return pie.Filter(passages, func(p string) bool { return p != "" }), nil
}
