// Package preflight checks that an ingest run can succeed before any record
// is read: the source is readable, the persist location is writable with
// room to spare, the target collection is still empty and the embedding
// provider has the credentials it needs.
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg)
//	if err := preflight.Err(results); err != nil {
//	    // Handle failures
//	}
package preflight
