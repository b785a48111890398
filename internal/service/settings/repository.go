package settings

import "context"

// Decode unmarshals a stored setting value into out.
type Decode func(out any) error

// Repository defines the data access contract for the Settings table.
type Repository interface {
	// Get decodes the value of the named setting into out. It reports
	// false, leaving out untouched, if the setting does not exist.
	Get(ctx context.Context, name string, out any) (bool, error)

	// Put replaces the value of the named setting.
	Put(ctx context.Context, name string, value any) error

	// Delete removes the named setting. Deleting a missing setting is not
	// an error.
	Delete(ctx context.Context, name string) error

	// ScanPrefix returns a decoder for every setting whose name starts
	// with prefix.
	ScanPrefix(ctx context.Context, prefix string) ([]Decode, error)
}
