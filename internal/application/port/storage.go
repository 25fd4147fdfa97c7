package port

import "context"

// FileStorage archives uploaded receipts. Paths are relative keys such as
// "receipts/2024-03/<expense-id>.jpg"; implementations reject keys that escape their root.
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	// Read returns ErrNotFound for a missing key
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	// Delete of a missing key is not an error
	Delete(ctx context.Context, path string) error
}
