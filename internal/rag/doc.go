// Package rag implements the retrieval-augmented query pipeline and the
// ingestion path that rebuilds its index.
//
// The index lives in PostgreSQL + pgvector as generation-tagged chunk
// rows. A rebuild writes a complete new generation and only then publishes
// its ID through an atomic swap on the Pipeline, so queries always see
// either the fully-old or the fully-new index and are never blocked by a
// rebuild in progress.
package rag
