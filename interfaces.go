package aporia

import "github.com/aporia-systems/aporia/internal/semanticdef"

// SemanticDefinednessProvider computes Def_sem, the one definedness
// component the aggregator does not derive from evidence mass: how well
// specified a target's concept is, given its current state and context.
type SemanticDefinednessProvider = semanticdef.Provider

// DefaultSemanticProvider computes Def_sem as the mean of four metadata
// tags a State tracks: ontology_coverage, 1-ambiguity, constraint_coverage,
// boundary_precision. A brand-new target reads Def_sem = 0 until NegDefine
// or host-supplied tags raise it.
type DefaultSemanticProvider = semanticdef.DefaultProvider

// Embedder generates vector embeddings from text, for the embedding-backed
// semantic-definedness provider.
type Embedder = semanticdef.Embedder

// ReferenceIndex searches a store of canonical-concept embeddings for the
// nearest matches to a query vector.
type ReferenceIndex = semanticdef.ReferenceIndex

// EmbeddingSemanticProvider blends the tag-based default score with an
// embedding similarity lookup against a ReferenceIndex.
type EmbeddingSemanticProvider = semanticdef.EmbeddingProvider

// QdrantReferenceIndex is a ReferenceIndex backed by a Qdrant collection of
// canonical concept embeddings.
type QdrantReferenceIndex = semanticdef.QdrantReferenceIndex
