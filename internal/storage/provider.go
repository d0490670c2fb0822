// Package storage defines the output tree abstraction.
package storage

// Provider is the interface for writes into the output tree. All paths are
// slash-separated and relative to the provider's root.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// CopyFile atomically copies the file at src (any absolute path) to dst.
	CopyFile(dst, src string) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
}
