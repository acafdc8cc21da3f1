// Package entitydb is an embedded vector database.
//
// Records are maps keyed by an id field. Each record carries arbitrary
// attributes and at most one embedding in one of three encodings:
//
//   - float: the embedding provider's vector for the record's text
//   - binary: the float vector plus a one-bit-per-dimension quantized code
//   - manual: a vector supplied by the caller
//
// Queries are exact: every record of the queried encoding is scanned and
// ranked by cosine distance (float, manual) or Hamming distance (binary),
// ties broken by key.
//
// # Quick Start
//
//	db, err := entitydb.Open(ctx, entitydb.Config{VectorField: "embedding"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	key, err := db.Insert(ctx, map[string]any{"id": "a", "text": "hello world"})
//
//	results, err := db.Query(ctx, "hello", entitydb.WithLimit(3))
//	for _, r := range results {
//	    fmt.Println(r.Key, r.Distance, r.Data["text"])
//	}
//
// # Storage
//
// Records live in a kv.Store: in memory by default, or Badger, SQLite or
// DynamoDB via WithKV. Every write of a record is a single atomic store
// operation, so an abandoned call leaves either the whole record or
// nothing. Snapshot and Restore copy a database to and from a
// blobstore.BlobStore (local directory, S3, MinIO).
//
// # Embeddings
//
// Config.EmbeddingProvider selects an embedder from embed.DefaultMux. The
// default "hash" embedder is local and deterministic; register an OpenAI
// compatible endpoint with embed.RegisterOpenAI or pass any embed.Embedder
// with WithEmbedder. Provider failures are returned as *ProviderError and
// never replaced with a fallback vector.
//
// # Errors
//
// Every error matches one of ErrValidation, ErrNotFound, ErrProvider,
// ErrStorage or ErrClosed with errors.Is, or is a context error. Batch
// operations report one error per item instead of failing as a whole.
package entitydb
