// Package publisher relays finished stream artifacts to an object store and
// announces them to notification sinks.
//
// # Stores
//
// A Store holds the uploaded files. Implementations register themselves by
// type name, the same way sinks and transformers do:
//
//	publisher.RegisterStore("s3", func(c *cfg.Configuration) (publisher.Store, error) {
//		return store.NewS3Store(store.S3ConfigFrom(c))
//	})
//
// # Publishing
//
// Publisher uploads each stream's data file to the data target and its schema
// sidecar to the schema target. Uploads are retried with exponential backoff;
// a stream that still fails is reported in the Summary and the remaining
// streams are published anyway.
//
//	pub, err := publisher.New(publisher.Config{
//		Store:  st,
//		Data:   cfg.BucketKey{Bucket: "lake", Prefix: "raw"},
//		Schema: cfg.BucketKey{Bucket: "lake", Prefix: "schemas"},
//		RunID:  runID,
//	})
//	summary := pub.Publish(ctx, artifacts)
//
// # Notifications
//
// After both files of a stream are stored, a Manifest is transformed and sent
// to every configured sink keyed by stream name. Notification failures are
// logged and never fail a run.
//
// # Filters
//
// GlobFilter selects streams by name:
//
//	filter, err := NewGlobFilter([]string{"users", "orders_*"})
//	if filter.Match("orders_2024") {
//		// write and publish the stream
//	}
package publisher
