package semanticdef

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/errgroup"

	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/types"
)

// Embedder turns evidence claim text into a vector. Hosts wire in whatever
// model they use (OpenAI, Ollama, ...); this package only consumes the
// result.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ReferenceIndex resolves a target's reference vectors: the embeddings of
// whatever ontology/specification text defines the target's expected scope.
// Def_sem then measures how much of that reference the target's current
// definitional evidence covers, via cosine similarity against the nearest
// reference points.
type ReferenceIndex interface {
	// SearchReference returns the cosine similarity of query against the
	// nearest few reference vectors registered for target, in [-1, 1].
	SearchReference(ctx context.Context, target types.TargetID, query []float32, limit int) ([]float32, error)
}

// EmbeddingProvider computes Def_sem from cosine similarity between a
// target's definitional evidence and a reference index, blended with the
// same tag-based score DefaultProvider uses so a target with no embeddings
// configured degrades gracefully rather than reading as fully undefined.
//
// Grounded on the teacher's candidate-search pipeline (internal/conflicts,
// internal/search/qdrant.go): embed each claim concurrently via an
// errgroup-bounded fan-out, then score against the nearest reference
// vectors.
type EmbeddingProvider struct {
	Embedder Embedder
	Index    ReferenceIndex
	// Concurrency bounds how many claims are embedded at once. Defaults to 4.
	Concurrency int
	// TagWeight blends the tag-based score with the embedding score:
	// Def_sem = TagWeight*tagScore + (1-TagWeight)*embeddingScore.
	TagWeight float64
}

// SemanticDefinedness implements Provider.
func (p EmbeddingProvider) SemanticDefinedness(ctx context.Context, s state.State, ctxID types.ContextID) (float64, error) {
	tagScore := meanOfTags(s.Meta.Tags)
	if p.Embedder == nil || p.Index == nil {
		return tagScore, nil
	}

	defItems := s.Evidence.ByKind(types.KindDefinitional)
	if len(defItems) == 0 {
		return tagScore, nil
	}

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	scores := make([]float64, len(defItems))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range defItems {
		i, item := i, item
		g.Go(func() error {
			vec, err := p.Embedder.Embed(gctx, item.Claim)
			if err != nil {
				return fmt.Errorf("semanticdef: embed claim: %w", err)
			}
			sims, err := p.Index.SearchReference(gctx, s.Target, vec, 3)
			if err != nil {
				return fmt.Errorf("semanticdef: search reference: %w", err)
			}
			scores[i] = bestOf(sims)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	embeddingScore := mean(scores)

	weight := p.TagWeight
	if weight <= 0 && weight >= 0 {
		weight = 0.5
	}
	return weight*tagScore + (1-weight)*embeddingScore, nil
}

func bestOf(sims []float32) float64 {
	var best float64
	for _, s := range sims {
		v := float64((s + 1) / 2) // cosine similarity in [-1,1] -> [0,1]
		if v > best {
			best = v
		}
	}
	return best
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var total float64
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

// QdrantReferenceIndex implements ReferenceIndex against a Qdrant collection
// where each point's payload carries the owning TargetID, adapted from the
// teacher's QdrantIndex connection and query handling.
type QdrantReferenceIndex struct {
	Client     *qdrant.Client
	Collection string
}

// SearchReference queries Qdrant for the nearest reference vectors scoped to
// target via a payload filter, returning their cosine scores.
func (q QdrantReferenceIndex) SearchReference(ctx context.Context, target types.TargetID, query []float32, limit int) ([]float32, error) {
	if q.Client == nil {
		return nil, fmt.Errorf("semanticdef: qdrant client is nil")
	}
	u := uint64(limit)
	resp, err := q.Client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.Collection,
		Query:          qdrant.NewQueryDense(query),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("target_id", string(target)),
			},
		},
		Limit:       &u,
		WithPayload: qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, fmt.Errorf("semanticdef: qdrant query: %w", err)
	}
	out := make([]float32, 0, len(resp))
	for _, point := range resp {
		out = append(out, point.Score)
	}
	return out, nil
}

// PgvectorLiteral converts a float32 vector to the pgvector-go wire type, for
// hosts that persist reference vectors in Postgres instead of Qdrant (see
// internal/storage's pgvector-backed Store).
func PgvectorLiteral(v []float32) pgvector.Vector {
	return pgvector.NewVector(v)
}
