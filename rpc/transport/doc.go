// Package transport owns the TCP side of the client: framed sockets and the
// per-caller socket pool.
//
// The package focuses on:
//   - Exact-length reads and all-or-nothing writes (FramedSocket), with
//     socket failures classified into the client error taxonomy
//   - A per-caller lease model (SocketPool): one socket per caller id,
//     re-entrant for nested operations, never shared between callers
//   - Stalest-first idle reaping driven by the embedder (CloseIdle); the
//     package spawns no background goroutines of its own
//
// Concurrency contract: the pool mutex guards only the idle heap and is
// never held across dialing or socket I/O. Operations on a leased socket
// run entirely outside the pool lock. A single caller id must not be used
// from multiple goroutines concurrently.
package transport
