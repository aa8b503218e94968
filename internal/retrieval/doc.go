/*
Package retrieval implements the retrieval pipeline: a location is parsed into
a container and prefix, every object under it is enumerated page by page,
objects older than the retention window are skipped, and the rest are either
restored (archived storage classes) or downloaded (readable classes).

	request ──► ParseLocation ──► Enumerator ──► Qualifies ──► Classifier
	                                                            │
	                                          Archived ◄────────┴────► Standard
	                                             │                        │
	                                         Restorer                Downloader

Every backend call goes through a pkg/retry policy. Failures that outlast the
policy surface as BACKEND_UNAVAILABLE. A failure while listing aborts the job;
a failure on one object is recorded and the job moves on to the next object.

Progress is published as types.Event values to a types.EventSink. Sinks are
called synchronously from the goroutine running the job.

Usage:

	orch := retrieval.New(store, sink, retrieval.Options{
		Destination:    "./downloads",
		TwoPassListing: true,
		Logger:         logger,
	})
	result := orch.Run(ctx, types.RetrievalRequest{
		Location:      "s3://bucket/logs",
		RetentionDays: 7,
		Tier:          types.TierBulk,
	})
*/
package retrieval
