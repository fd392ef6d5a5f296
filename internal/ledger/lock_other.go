//go:build !unix

package ledger

import "os"

// Cross-process locking is unavailable; the in-process RWMutex still applies.
func flock(f *os.File, exclusive bool) error { return nil }

func funlock(f *os.File) error { return nil }
