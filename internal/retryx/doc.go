// Package retryx runs operations under an exponential backoff policy and
// tags failures from remote calls with a kind (network, rate limited,
// server, client) so that retry decisions do not depend on error text.
//
//	item, err := retryx.DoValue(ctx, retryx.ChunkPolicy(), func(ctx context.Context) (*Item, error) {
//	    return putChunk(ctx, data)
//	})
package retryx
