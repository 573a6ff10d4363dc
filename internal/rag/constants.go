package rag

// VectorDimension is the pgvector column width. gemini-embedding-001
// supports truncation to 768 dimensions via OutputDimensionality.
const VectorDimension int32 = 768

// RetrievalK is the number of chunks retrieved per question.
const RetrievalK = 5

// Chunking parameters for ingestion.
const (
	ChunkSize    = 1000
	ChunkOverlap = 100
)

// fetchTimeoutSeconds bounds each remote document fetch during ingestion.
const fetchTimeoutSeconds = 30
