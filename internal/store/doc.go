// Package store persists the interaction audit log.
//
// # Backends
//
//   - SQLiteStore: modernc.org/sqlite, WAL mode, schema created on open
//   - PostgresStore: lib/pq, pooled connections, schema created on open
//   - MockStore: in-memory, for tests, with write-failure injection
//
// All three implement Store. Timestamps are stored in UTC.
//
// # Recording
//
// The gateway never writes interactions on the request path. It hands them
// to a Recorder, which queues them and writes from a single goroutine:
//
//	rec := store.NewRecorder(s, 0, logger)
//	defer rec.Close(ctx)
//	rec.Record(store.Interaction{Platform: "facebook", UserID: "123", Success: true})
//
// A full queue or a failing backend is logged and counted; it never fails
// or slows the turn that produced the interaction.
package store
