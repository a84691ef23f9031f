// Package kt implements the multi-database binary dialect: bulk reads and
// writes addressed to a 16-bit database index, optional no-reply writes, and
// server-side script invocation.
//
// Every request starts with an operation magic byte followed by a 32-bit
// flags word; the server answers with the same magic on success or the error
// magic 0xBF. Values pass through the serializer configured at construction;
// the Raw method variants bypass it for a single call.
//
// Usage Example:
//
//	config := common.DefaultClientConfig()
//	db, _ := kt.NewClient(config)
//	defer db.Close()
//
//	db.Set("k1", "v1", 0)
//	value, ok, _ := db.Get("k1")
//
//	// concurrent use: one caller id per goroutine
//	worker := db.Caller(7)
//	worker.Set("k2", "v2", 60)
package kt
