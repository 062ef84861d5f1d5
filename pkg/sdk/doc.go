// Package vecfeed embeds the vecfeed ingestion pipeline in a Go program.
//
// A client reads CSV, Parquet or pickle files, normalizes them to one of the
// known domains (recruit, candidate, skill_dic) and streams the records to a
// batch writer over gRPC. Checkpoints of completed runs can be kept in Valkey
// or Redis.
//
//	client, _ := vecfeed.New(ctx,
//	    vecfeed.WithBatchWriter("localhost:50051"),
//	    vecfeed.WithValkey("localhost:6379", ""),
//	)
//	defer client.Close()
//
//	res, err := client.Ingest(ctx, "recruit", "data/jobs.parquet",
//	    vecfeed.ChunkSize(500),
//	    vecfeed.Resume(),
//	)
//	if errors.Is(err, vecfeed.ErrNoRecords) {
//	    // nothing survived preprocessing
//	}
//
//	items, _ := client.Checkpoints("recruit").List(ctx)
package vecfeed
