package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/contract"
	"doc-qa-be/internal/repository/specification"
	"doc-qa-be/pkg/embedding"
	"doc-qa-be/pkg/rag"
	"doc-qa-be/pkg/rerank"
	"doc-qa-be/pkg/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTopK is the passage count handed to the prompt when the
	// request does not say otherwise.
	DefaultTopK = 4

	// candidateMultiplier widens the pool fetched per search so fusion
	// and reranking have something to choose from.
	candidateMultiplier = 4

	// DefaultThreshold drops dense matches below this cosine similarity.
	DefaultThreshold = 0.3

	// DefaultDenseWeight and DefaultSparseWeight split the fused score
	// evenly between the two search legs.
	DefaultDenseWeight  = 0.5
	DefaultSparseWeight = 0.5

	// DefaultEmbedTimeout bounds the query embedding call.
	DefaultEmbedTimeout = 30 * time.Second

	// DefaultSearchTimeout bounds one index search attempt. The retry
	// gets a fresh deadline.
	DefaultSearchTimeout = 10 * time.Second
)

// Input is one retrieval request.
type Input struct {
	// Variants are the search queries, primary first.
	Variants []string
	UserId   uuid.UUID
	// DocumentIds restricts the search scope when non-empty.
	DocumentIds []uuid.UUID
	TopK        int
	Options     rag.Options
}

// Retriever turns search queries into a ranked passage list. Dense and
// sparse searches run concurrently per variant, scores are normalized and
// fused, and an optional second-pass model rescores the survivors.
type Retriever struct {
	chunks    contract.ChunkEmbeddingRepository
	documents contract.DocumentRepository
	embedder  embedding.Provider
	reranker  rerank.Reranker
	logger    logger.ILogger

	denseWeight   float64
	sparseWeight  float64
	embedTimeout  time.Duration
	searchTimeout time.Duration
}

func New(
	chunks contract.ChunkEmbeddingRepository,
	documents contract.DocumentRepository,
	embedder embedding.Provider,
	reranker rerank.Reranker,
	log logger.ILogger,
) *Retriever {
	return &Retriever{
		chunks:        chunks,
		documents:     documents,
		embedder:      embedder,
		reranker:      reranker,
		logger:        log,
		denseWeight:   DefaultDenseWeight,
		sparseWeight:  DefaultSparseWeight,
		embedTimeout:  DefaultEmbedTimeout,
		searchTimeout: DefaultSearchTimeout,
	}
}

// WithWeights overrides the dense/sparse fusion weights. Non-positive
// values keep the defaults.
func (r *Retriever) WithWeights(dense, sparse float64) *Retriever {
	if dense > 0 {
		r.denseWeight = dense
	}
	if sparse > 0 {
		r.sparseWeight = sparse
	}
	return r
}

// WithTimeouts overrides the per-stage deadlines for query embedding and
// index search. Non-positive values keep the defaults.
func (r *Retriever) WithTimeouts(embed, search time.Duration) *Retriever {
	if embed > 0 {
		r.embedTimeout = embed
	}
	if search > 0 {
		r.searchTimeout = search
	}
	return r
}

type scoredCandidate struct {
	chunk *contract.ScoredChunk
	score float64
}

// Retrieve runs the full retrieval pipeline. A transient index failure is
// retried once; if it persists the turn degrades to answering without
// context instead of failing.
func (r *Retriever) Retrieve(ctx context.Context, input Input) ([]store.Passage, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	poolSize := topK * candidateMultiplier

	var (
		mu         sync.Mutex
		denseLists [][]*contract.ScoredChunk
		sparseList [][]*contract.ScoredChunk
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, variant := range input.Variants {
		variant := variant

		g.Go(func() error {
			chunks, err := r.denseSearch(gctx, variant, poolSize, input)
			if err != nil {
				return err
			}
			mu.Lock()
			denseLists = append(denseLists, chunks)
			mu.Unlock()
			return nil
		})

		if input.Options.HybridSearch {
			g.Go(func() error {
				chunks, err := r.sparseSearch(gctx, variant, poolSize, input)
				if err != nil {
					return err
				}
				mu.Lock()
				sparseList = append(sparseList, chunks)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, rag.ErrIndexSearch) {
			// Degrade: answer without context rather than fail the turn
			r.logger.Warn("Retriever", "Index search failed after retry, answering without context", map[string]interface{}{"error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	fused := fuse(denseLists, sparseList, r.denseWeight, r.sparseWeight)
	if len(fused) == 0 {
		return nil, nil
	}

	if input.Options.WantsRerank() && r.reranker != nil {
		fused = r.rerankCandidates(ctx, input.Variants[0], fused, topK)
	}

	if len(fused) > topK {
		fused = fused[:topK]
	}

	return r.toPassages(ctx, fused)
}

// denseSearch embeds the variant and queries the vector index, retrying
// the index lookup once. Embedding and each search attempt carry their
// own deadlines so a hung stage cannot block the turn.
func (r *Retriever) denseSearch(ctx context.Context, query string, limit int, input Input) ([]*contract.ScoredChunk, error) {
	embedCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
	defer cancel()

	result, err := r.embedder.Embed(embedCtx, []string{query}, embedding.TaskRetrievalQuery)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: query embedding: %v", rag.ErrProviderTimeout, err)
		}
		return nil, err
	}
	if len(result.Vectors) == 0 || result.Vectors[0] == nil {
		return nil, nil
	}
	vector := result.Vectors[0]

	attempt := func() ([]*contract.ScoredChunk, error) {
		searchCtx, cancel := context.WithTimeout(ctx, r.searchTimeout)
		defer cancel()
		return r.chunks.SearchSimilarWithScore(searchCtx, vector, limit, input.UserId, input.DocumentIds, DefaultThreshold)
	}

	chunks, err := attempt()
	if err != nil {
		chunks, err = attempt()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", rag.ErrIndexSearch, err)
		}
	}
	return chunks, nil
}

func (r *Retriever) sparseSearch(ctx context.Context, query string, limit int, input Input) ([]*contract.ScoredChunk, error) {
	attempt := func() ([]*contract.ScoredChunk, error) {
		searchCtx, cancel := context.WithTimeout(ctx, r.searchTimeout)
		defer cancel()
		return r.chunks.SearchKeyword(searchCtx, query, limit, input.UserId, input.DocumentIds)
	}

	chunks, err := attempt()
	if err != nil {
		chunks, err = attempt()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", rag.ErrIndexSearch, err)
		}
	}
	return chunks, nil
}

// fuse normalizes each result list to [0,1] and combines the dense and
// sparse legs per chunk as a weighted sum. Within one leg a chunk seen by
// several query variants keeps its best normalized score, so a chunk
// strong in both legs outranks one strong in only one. The output is
// sorted best first with chunk identity as tiebreaker.
func fuse(denseLists, sparseLists [][]*contract.ScoredChunk, denseWeight, sparseWeight float64) []*scoredCandidate {
	type legScores struct {
		chunk  *contract.ScoredChunk
		dense  float64
		sparse float64
	}
	best := map[uuid.UUID]*legScores{}

	collect := func(lists [][]*contract.ScoredChunk, sparse bool) {
		for _, list := range lists {
			for _, sc := range normalize(list) {
				entry, ok := best[sc.chunk.Chunk.Id]
				if !ok {
					entry = &legScores{chunk: sc.chunk}
					best[sc.chunk.Chunk.Id] = entry
				}
				if sparse {
					if sc.score > entry.sparse {
						entry.sparse = sc.score
					}
				} else if sc.score > entry.dense {
					entry.dense = sc.score
				}
			}
		}
	}

	collect(denseLists, false)
	collect(sparseLists, true)

	out := make([]*scoredCandidate, 0, len(best))
	for _, e := range best {
		out = append(out, &scoredCandidate{
			chunk: e.chunk,
			score: denseWeight*e.dense + sparseWeight*e.sparse,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		a, b := out[i].chunk.Chunk, out[j].chunk.Chunk
		if a.DocumentId != b.DocumentId {
			return a.DocumentId.String() < b.DocumentId.String()
		}
		return a.ChunkIndex < b.ChunkIndex
	})
	return out
}

// normalize min-max scales one result list. A constant list maps to 1.0
// so a single strong hit is not zeroed out.
func normalize(list []*contract.ScoredChunk) []*scoredCandidate {
	if len(list) == 0 {
		return nil
	}
	min, max := list[0].Score, list[0].Score
	for _, sc := range list {
		if sc.Score < min {
			min = sc.Score
		}
		if sc.Score > max {
			max = sc.Score
		}
	}
	out := make([]*scoredCandidate, len(list))
	for i, sc := range list {
		score := 1.0
		if max > min {
			score = (sc.Score - min) / (max - min)
		}
		out[i] = &scoredCandidate{chunk: sc, score: score}
	}
	return out
}

// rerankCandidates asks the second-pass model to rescore up to 2*topK of
// the fused pool. A rerank failure keeps the fused order.
func (r *Retriever) rerankCandidates(ctx context.Context, query string, fused []*scoredCandidate, topK int) []*scoredCandidate {
	pool := fused
	if len(pool) > 2*topK {
		pool = pool[:2*topK]
	}

	candidates := make([]rerank.Candidate, len(pool))
	byID := make(map[string]*scoredCandidate, len(pool))
	for i, c := range pool {
		id := c.chunk.Chunk.Id.String()
		candidates[i] = rerank.Candidate{
			ID:      id,
			Content: c.chunk.Chunk.Text,
			Score:   c.score,
		}
		byID[id] = c
	}

	results, err := r.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		r.logger.Warn("Retriever", "Rerank failed, keeping fused order", map[string]interface{}{"error": err.Error()})
		return fused
	}

	out := make([]*scoredCandidate, 0, len(results))
	for _, res := range results {
		if c, ok := byID[res.ID]; ok {
			out = append(out, &scoredCandidate{chunk: c.chunk, score: res.Score})
		}
	}
	if len(out) == 0 {
		return fused
	}
	return out
}

// toPassages resolves document filenames and shapes the final output.
func (r *Retriever) toPassages(ctx context.Context, candidates []*scoredCandidate) ([]store.Passage, error) {
	idSet := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, c := range candidates {
		if !idSet[c.chunk.Chunk.DocumentId] {
			idSet[c.chunk.Chunk.DocumentId] = true
			ids = append(ids, c.chunk.Chunk.DocumentId)
		}
	}

	filenames := map[uuid.UUID]string{}
	if len(ids) > 0 {
		docs, err := r.documents.FindAll(ctx, specification.ByIDs{IDs: ids})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			filenames[doc.Id] = doc.Filename
		}
	}

	passages := make([]store.Passage, len(candidates))
	for i, c := range candidates {
		chunk := c.chunk.Chunk
		passages[i] = store.Passage{
			ChunkId:    chunk.Id,
			DocumentId: chunk.DocumentId,
			Filename:   filenames[chunk.DocumentId],
			ChunkIndex: chunk.ChunkIndex,
			PageNumber: chunk.PageNumber,
			Text:       chunk.Text,
			Score:      c.score,
		}
	}
	return passages, nil
}
