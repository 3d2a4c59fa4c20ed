// Package clinrag embeds the clinical retrieval core in a Go program without running
// the HTTP service.
//
// Documents are chunked along their structure, embedded, and stored with their
// graph edges. Retrieval combines vector and keyword search, reranking, MMR and
// graph expansion.
//
//	client, _ := clinrag.New(ctx,
//	    clinrag.WithRedis("localhost:6379", ""),
//	    clinrag.WithEmbedder(myEmbedder),
//	    clinrag.WithVectorDimensions(768),
//	)
//	defer client.Close()
//
//	_, _ = client.Documents().Ingest(ctx, clinrag.Document{
//	    ID: "aua-2023", Type: clinrag.TypeGuideline, Text: text,
//	})
//	hits, _ := client.Retriever().Retrieve(ctx, "active surveillance eligibility",
//	    clinrag.RetrieveOptions{K: 5, EvidenceLevels: []string{"A"}})
//
// Without WithEmbedder the client uses a deterministic hashing embedder, which is
// enough for tests and offline evaluation.
package clinrag
