// Package store is a flat, append-only store of student records.
//
// All records live in a single file which is rewritten in full
// (atomically, via a temporary file and rename) on every append.
// Records are numbered sequentially starting at 1; the next number is
// always one more than the largest number in the file, so numbering
// survives restarts.
//
// # Basic Usage
//
//	s := &store.Store{
//	    Path: "db.txt",
//	}
//	if err := store.Open(s); err != nil {
//	    log.Fatal(err)
//	}
//	rec, err := s.Append("Mick", "Jagger")
//	// ...
//	recs, err := s.QueryCriteria(store.Criteria{"last": "Jagger"})
//
// # File Format
//
// The file is a siser stream with one record named "student" per entry:
//
//	--- 31 student
//	number: 1
//	first: Mick
//	last: Jagger
//
// If Path ends with ".zst" the stream is zstd-compressed.
//
// # Thread Safety
//
// Append and Query are serialized by a mutex. Writers in other processes
// are not coordinated: the atomic rename guarantees readers never see a
// partial file but two processes appending at the same time can lose
// one of the appends.
package store
