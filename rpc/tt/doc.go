// Package tt implements the single-database binary dialect: the full
// opcode surface (puts, reads, counters, cursor iteration, maintenance and
// replication control), the miscellaneous command channel with its bulk and
// range helpers, and the table search/query surface built on it.
//
// Every command starts with the two-byte prefix 0xC8 plus an opcode; the
// first response byte is a status: 0 for ok, 1 for a recoverable miss,
// anything else a server error. Miss statuses surface as false results, not
// errors, except for Ext where a nonzero status means the script failed.
//
// Usage Example:
//
//	config := common.DefaultClientConfig()
//	db, _ := tt.NewClient(config)
//	defer db.Close()
//
//	db.Put("k", "v")
//	value, ok, _ := db.Get("k")
//
//	it := db.Iterator()
//	for {
//		key, ok, err := it.Next()
//		if err != nil || !ok {
//			break
//		}
//		// use key
//	}
//
//	n, _ := tt.NewQuery().
//		Filter("status", tt.OpStrEq, "active").
//		Count(db)
package tt
