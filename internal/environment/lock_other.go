//go:build !unix

package environment

// Lock is a no-op on platforms without flock(2).
func (s *Store) Lock() (func() error, error) {
	return func() error { return nil }, nil
}
