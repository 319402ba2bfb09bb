// Package grebedb is an embedded, single-process, file-backed ordered
// key-value store.
//
// A Database pairs a page store (mapping a 64-bit page ID to a serialized,
// revision-stamped payload on a virtual file system, with a durable
// crash-safe commit protocol) with a disk-friendly B+tree index built on
// top of it. Keys and values are arbitrary byte strings, ordered
// lexicographically.
//
//	db, err := grebedb.Open("/var/lib/mydb", grebedb.DefaultOptions())
//	if err != nil {
//		// handle err
//	}
//	defer db.Close()
//
//	if err := db.Put([]byte("k"), []byte("v")); err != nil {
//		// handle err
//	}
//	val, found, err := db.Get([]byte("k"))
//
// A Database is single-threaded and cooperative: every operation on it,
// including cursors derived from it, requires the caller's exclusive
// access. There is no internal locking, no background goroutine, and no
// async suspension; every call blocks synchronously. Cross-thread use
// requires the caller's own mutual exclusion.
//
// Durability is controlled by Options.FileSync and the automatic-flush
// policy (Options.AutomaticFlush); see Database.Flush for an explicit
// commit. Options.FileLocking acquires an advisory, cross-process lock for
// the lifetime of the handle.
package grebedb
