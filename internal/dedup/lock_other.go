//go:build !unix

package dedup

// lockFile is a no-op where flock is unavailable; the in-process mutex in
// FileStore still serialises updates within one process.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
