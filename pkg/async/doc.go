// Package async provides safe concurrent execution primitives for background tasks.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with panic recovery and an optional timeout
//
//	async.SafeGo(ctx, 30*time.Second, "prune store", func(ctx context.Context) error {
//		_, err := store.Prune(maxAge)
//		return err
//	})
//
// Serial: Ordered, non-overlapping execution of tasks submitted from anywhere
//
//	q := async.NewSerial(ctx, "producer rerun", time.Minute)
//	q.Submit(func(ctx context.Context) error {
//		return rerun(ctx, theme)
//	})
//
// Errors and panics are logged through the logger carried by the context
// (observability.WithLogger), or the default logger.
package async
