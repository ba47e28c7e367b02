package search

import "github.com/graniteworks/passage/core"

// SearchMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterQueryEmbedding(vector []float32)
	AfterVectorSearch(matches []*core.ChunkMatch)
	AfterLexicalSearch(matches []*core.ChunkMatch)
	AfterFusion(candidates []*core.RetrievalCandidate)
	RerankFallback(chunkId core.ID, err error)
	Finish(results []*core.RetrievalCandidate)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                   {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32)                  {}
func (n *noopMonitor) AfterVectorSearch(_ []*core.ChunkMatch)           {}
func (n *noopMonitor) AfterLexicalSearch(_ []*core.ChunkMatch)          {}
func (n *noopMonitor) AfterFusion(_ []*core.RetrievalCandidate)         {}
func (n *noopMonitor) RerankFallback(_ core.ID, _ error)                {}
func (n *noopMonitor) Finish(_ []*core.RetrievalCandidate)              {}
