package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

type fakeStore struct {
	docs    []schema.Document
	err     error
	queries []string
	limits  []int
}

func (f *fakeStore) AddDocuments(context.Context, []schema.Document, ...vectorstores.Option) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) SimilaritySearch(_ context.Context, query string, numDocuments int, _ ...vectorstores.Option) ([]schema.Document, error) {
	f.queries = append(f.queries, query)
	f.limits = append(f.limits, numDocuments)
	return f.docs, f.err
}

func TestSearchReturnsPassagesInOrder(t *testing.T) {
	store := &fakeStore{docs: []schema.Document{
		{PageContent: " Drink fluids when you have a cold. "},
		{PageContent: ""},
		{PageContent: "Rest helps recovery."},
	}}
	svc := NewWithStore(store, 3)

	passages, err := svc.Search(context.Background(), "what should I do for a cold?")
	require.NoError(t, err)
	assert.Equal(t, []string{"Drink fluids when you have a cold.", "Rest helps recovery."}, passages)
	assert.Equal(t, []int{3}, store.limits)
}

func TestSearchDisabledOrBlank(t *testing.T) {
	passages, err := NewWithStore(nil, 0).Search(context.Background(), "cold")
	require.NoError(t, err)
	assert.Empty(t, passages)

	store := &fakeStore{}
	passages, err = NewWithStore(store, 2).Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, passages)
	assert.Empty(t, store.queries)
}

func TestSearchError(t *testing.T) {
	store := &fakeStore{err: errors.New("index unavailable")}

	_, err := NewWithStore(store, 2).Search(context.Background(), "cold")
	assert.ErrorContains(t, err, "index unavailable")
}
