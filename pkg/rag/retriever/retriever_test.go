package retriever

import (
	"context"
	"errors"
	"testing"
	"time"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/contract"
	"doc-qa-be/internal/repository/specification"
	"doc-qa-be/pkg/embedding"
	"doc-qa-be/pkg/rag"
	"doc-qa-be/pkg/rerank"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	dims int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, taskType string) (*embedding.Result, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, f.dims)
		vectors[i][0] = 1
	}
	return &embedding.Result{Vectors: vectors, Model: "fake", Dimensions: f.dims}, nil
}

func (f *fakeEmbedder) Model() string   { return "fake" }
func (f *fakeEmbedder) Dimensions() int { return f.dims }

type fakeChunkRepo struct {
	contract.ChunkEmbeddingRepository

	dense      []*contract.ScoredChunk
	sparse     []*contract.ScoredChunk
	denseErr   error
	denseCalls int
}

func (f *fakeChunkRepo) SearchSimilarWithScore(ctx context.Context, vec []float32, limit int, userId uuid.UUID, documentIds []uuid.UUID, threshold float64) ([]*contract.ScoredChunk, error) {
	f.denseCalls++
	if f.denseErr != nil {
		return nil, f.denseErr
	}
	return f.dense, nil
}

func (f *fakeChunkRepo) SearchKeyword(ctx context.Context, query string, limit int, userId uuid.UUID, documentIds []uuid.UUID) ([]*contract.ScoredChunk, error) {
	return f.sparse, nil
}

type fakeDocRepo struct {
	contract.DocumentRepository

	docs []*entity.Document
}

func (f *fakeDocRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	return f.docs, nil
}

type fakeReranker struct {
	results []rerank.Result
	err     error
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, candidates []rerank.Candidate) ([]rerank.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeReranker) ModelName() string { return "fake-reranker" }

func scored(docId uuid.UUID, index int, score float64, text string) *contract.ScoredChunk {
	return &contract.ScoredChunk{
		Chunk: &entity.ChunkEmbedding{
			Id:         uuid.New(),
			DocumentId: docId,
			ChunkIndex: index,
			Text:       text,
		},
		Score: score,
	}
}

func TestNormalizeMinMax(t *testing.T) {
	docId := uuid.New()
	list := []*contract.ScoredChunk{
		scored(docId, 0, 0.9, "a"),
		scored(docId, 1, 0.5, "b"),
		scored(docId, 2, 0.1, "c"),
	}

	out := normalize(list)
	require.Len(t, out, 3)
	assert.Equal(t, 1.0, out[0].score)
	assert.InDelta(t, 0.5, out[1].score, 1e-9)
	assert.Equal(t, 0.0, out[2].score)
}

func TestNormalizeConstantList(t *testing.T) {
	docId := uuid.New()
	list := []*contract.ScoredChunk{
		scored(docId, 0, 0.42, "a"),
		scored(docId, 1, 0.42, "b"),
	}

	out := normalize(list)
	assert.Equal(t, 1.0, out[0].score)
	assert.Equal(t, 1.0, out[1].score)
}

func TestFuseSumsWeightedLegs(t *testing.T) {
	docId := uuid.New()
	shared := scored(docId, 0, 0.9, "shared")
	denseOnly := scored(docId, 1, 0.3, "dense only")

	// The same chunk appears in dense and sparse results
	sparseShared := &contract.ScoredChunk{Chunk: shared.Chunk, Score: 2.0}
	sparseOnly := scored(docId, 2, 1.0, "sparse only")

	fused := fuse(
		[][]*contract.ScoredChunk{{shared, denseOnly}},
		[][]*contract.ScoredChunk{{sparseShared, sparseOnly}},
		0.5, 0.5,
	)

	require.Len(t, fused, 3)
	seen := map[uuid.UUID]float64{}
	for _, c := range fused {
		seen[c.chunk.Chunk.Id] = c.score
	}
	// Shared chunk tops both legs: 0.5*1.0 + 0.5*1.0
	assert.InDelta(t, 1.0, seen[shared.Chunk.Id], 1e-9)
	// Single-leg chunks keep only their own half
	assert.InDelta(t, 0.0, seen[denseOnly.Chunk.Id], 1e-9)
	assert.InDelta(t, 0.5, seen[sparseOnly.Chunk.Id], 1e-9)
	// Scores sorted descending
	for i := 1; i < len(fused); i++ {
		assert.GreaterOrEqual(t, fused[i-1].score, fused[i].score)
	}
}

func TestFuseBothLegsOutrankSingleLeg(t *testing.T) {
	docId := uuid.New()
	both := scored(docId, 0, 0.9, "both legs")
	denseOnly := scored(docId, 1, 0.89, "dense only")
	weak := scored(docId, 2, 0.1, "weak")

	sparseBoth := &contract.ScoredChunk{Chunk: both.Chunk, Score: 2.0}
	sparseFiller := scored(docId, 3, 0.2, "filler")

	fused := fuse(
		[][]*contract.ScoredChunk{{both, denseOnly, weak}},
		[][]*contract.ScoredChunk{{sparseBoth, sparseFiller}},
		0.5, 0.5,
	)

	require.NotEmpty(t, fused)
	assert.Equal(t, both.Chunk.Id, fused[0].chunk.Chunk.Id,
		"a chunk strong in dense and sparse must beat a chunk strong in one leg")
	assert.InDelta(t, 1.0, fused[0].score, 1e-9)
}

func TestFuseVariantsKeepBestPerLeg(t *testing.T) {
	docId := uuid.New()
	a := scored(docId, 0, 0.9, "a")
	aWorse := &contract.ScoredChunk{Chunk: a.Chunk, Score: 0.2}
	filler := scored(docId, 1, 0.1, "filler")
	strong := scored(docId, 2, 0.9, "strong")
	filler2 := scored(docId, 3, 0.1, "filler2")

	// Two dense variants see the same chunk; the better normalized score
	// survives, it is not overwritten by the weaker variant.
	fused := fuse(
		[][]*contract.ScoredChunk{{a, filler}, {strong, aWorse, filler2}},
		nil,
		0.5, 0.5,
	)

	seen := map[uuid.UUID]float64{}
	for _, c := range fused {
		seen[c.chunk.Chunk.Id] = c.score
	}
	assert.InDelta(t, 0.5, seen[a.Chunk.Id], 1e-9)
}

func TestFuseRespectsConfiguredWeights(t *testing.T) {
	docId := uuid.New()
	denseOnly := scored(docId, 0, 0.9, "dense")
	denseFiller := scored(docId, 1, 0.1, "d filler")
	sparseOnly := scored(docId, 2, 3.0, "sparse")
	sparseFiller := scored(docId, 3, 0.5, "s filler")

	fused := fuse(
		[][]*contract.ScoredChunk{{denseOnly, denseFiller}},
		[][]*contract.ScoredChunk{{sparseOnly, sparseFiller}},
		0.8, 0.2,
	)

	seen := map[uuid.UUID]float64{}
	for _, c := range fused {
		seen[c.chunk.Chunk.Id] = c.score
	}
	assert.InDelta(t, 0.8, seen[denseOnly.Chunk.Id], 1e-9)
	assert.InDelta(t, 0.2, seen[sparseOnly.Chunk.Id], 1e-9)
}

func TestFuseTiebreakDeterministic(t *testing.T) {
	docId := uuid.New()
	a := scored(docId, 0, 0.5, "a")
	b := scored(docId, 1, 0.5, "b")

	fused := fuse([][]*contract.ScoredChunk{{a, b}}, nil, 0.5, 0.5)

	require.Len(t, fused, 2)
	assert.Equal(t, 0, fused[0].chunk.Chunk.ChunkIndex)
	assert.Equal(t, 1, fused[1].chunk.Chunk.ChunkIndex)
}

func TestRetrieveResolvesFilenames(t *testing.T) {
	docId := uuid.New()
	chunks := &fakeChunkRepo{dense: []*contract.ScoredChunk{
		scored(docId, 0, 0.8, "relevant text"),
	}}
	docs := &fakeDocRepo{docs: []*entity.Document{{Id: docId, Filename: "policy.pdf"}}}

	r := New(chunks, docs, &fakeEmbedder{dims: 8}, nil, logger.NewNopLogger())

	passages, err := r.Retrieve(context.Background(), Input{
		Variants: []string{"leave policy"},
		UserId:   uuid.New(),
		TopK:     4,
	})
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "policy.pdf", passages[0].Filename)
	assert.Equal(t, "relevant text", passages[0].Text)
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	docId := uuid.New()
	var dense []*contract.ScoredChunk
	for i := 0; i < 10; i++ {
		dense = append(dense, scored(docId, i, 1.0-float64(i)*0.05, "text"))
	}
	chunks := &fakeChunkRepo{dense: dense}
	docs := &fakeDocRepo{docs: []*entity.Document{{Id: docId, Filename: "doc"}}}

	r := New(chunks, docs, &fakeEmbedder{dims: 8}, nil, logger.NewNopLogger())

	passages, err := r.Retrieve(context.Background(), Input{
		Variants: []string{"q"},
		TopK:     3,
	})
	require.NoError(t, err)
	assert.Len(t, passages, 3)
}

func TestRetrieveDegradesOnPersistentIndexFailure(t *testing.T) {
	chunks := &fakeChunkRepo{denseErr: errors.New("index offline")}
	docs := &fakeDocRepo{}

	r := New(chunks, docs, &fakeEmbedder{dims: 8}, nil, logger.NewNopLogger())

	passages, err := r.Retrieve(context.Background(), Input{
		Variants: []string{"q"},
	})
	require.NoError(t, err, "persistent index failure degrades instead of failing the turn")
	assert.Nil(t, passages)
	assert.Equal(t, 2, chunks.denseCalls, "search is retried once before degrading")
}

type blockingEmbedder struct{}

func (f *blockingEmbedder) Embed(ctx context.Context, texts []string, taskType string) (*embedding.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *blockingEmbedder) Model() string   { return "blocking" }
func (f *blockingEmbedder) Dimensions() int { return 8 }

type blockingChunkRepo struct {
	contract.ChunkEmbeddingRepository

	calls int
}

func (f *blockingChunkRepo) SearchSimilarWithScore(ctx context.Context, vec []float32, limit int, userId uuid.UUID, documentIds []uuid.UUID, threshold float64) ([]*contract.ScoredChunk, error) {
	f.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *blockingChunkRepo) SearchKeyword(ctx context.Context, query string, limit int, userId uuid.UUID, documentIds []uuid.UUID) ([]*contract.ScoredChunk, error) {
	return nil, nil
}

func TestRetrieveEmbedTimeout(t *testing.T) {
	chunks := &fakeChunkRepo{}
	r := New(chunks, &fakeDocRepo{}, &blockingEmbedder{}, nil, logger.NewNopLogger()).
		WithTimeouts(20*time.Millisecond, time.Second)

	_, err := r.Retrieve(context.Background(), Input{Variants: []string{"q"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrProviderTimeout)
}

func TestRetrieveSearchTimeoutDegrades(t *testing.T) {
	chunks := &blockingChunkRepo{}
	r := New(chunks, &fakeDocRepo{}, &fakeEmbedder{dims: 8}, nil, logger.NewNopLogger()).
		WithTimeouts(time.Second, 20*time.Millisecond)

	started := time.Now()
	passages, err := r.Retrieve(context.Background(), Input{Variants: []string{"q"}})
	require.NoError(t, err, "a hung index degrades to answering without context")
	assert.Nil(t, passages)
	assert.Equal(t, 2, chunks.calls, "each attempt gets its own deadline")
	assert.Less(t, time.Since(started), time.Second, "the turn is never blocked indefinitely")
}

func TestRetrieveHybridMergesSparse(t *testing.T) {
	docId := uuid.New()
	chunks := &fakeChunkRepo{
		dense:  []*contract.ScoredChunk{scored(docId, 0, 0.9, "dense hit")},
		sparse: []*contract.ScoredChunk{scored(docId, 1, 3.5, "sparse hit")},
	}
	docs := &fakeDocRepo{docs: []*entity.Document{{Id: docId, Filename: "doc"}}}

	r := New(chunks, docs, &fakeEmbedder{dims: 8}, nil, logger.NewNopLogger())

	passages, err := r.Retrieve(context.Background(), Input{
		Variants: []string{"q"},
		Options:  rag.Options{HybridSearch: true},
	})
	require.NoError(t, err)
	require.Len(t, passages, 2)
}

func TestRetrieveRerankReorders(t *testing.T) {
	docId := uuid.New()
	first := scored(docId, 0, 0.9, "fused winner")
	second := scored(docId, 1, 0.5, "rerank winner")
	chunks := &fakeChunkRepo{dense: []*contract.ScoredChunk{first, second}}
	docs := &fakeDocRepo{docs: []*entity.Document{{Id: docId, Filename: "doc"}}}

	reranker := &fakeReranker{results: []rerank.Result{
		{ID: second.Chunk.Id.String(), Score: 0.99},
		{ID: first.Chunk.Id.String(), Score: 0.10},
	}}

	r := New(chunks, docs, &fakeEmbedder{dims: 8}, reranker, logger.NewNopLogger())

	passages, err := r.Retrieve(context.Background(), Input{
		Variants: []string{"q"},
		Options:  rag.Options{Reranking: true},
	})
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "rerank winner", passages[0].Text)
	assert.Equal(t, 0.99, passages[0].Score)
}

func TestRetrieveRerankFailureKeepsFusedOrder(t *testing.T) {
	docId := uuid.New()
	chunks := &fakeChunkRepo{dense: []*contract.ScoredChunk{
		scored(docId, 0, 0.9, "best"),
		scored(docId, 1, 0.5, "second"),
	}}
	docs := &fakeDocRepo{docs: []*entity.Document{{Id: docId, Filename: "doc"}}}
	reranker := &fakeReranker{err: errors.New("rerank api down")}

	r := New(chunks, docs, &fakeEmbedder{dims: 8}, reranker, logger.NewNopLogger())

	passages, err := r.Retrieve(context.Background(), Input{
		Variants: []string{"q"},
		Options:  rag.Options{Reranking: true},
	})
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "best", passages[0].Text)
}
