package repository

import "context"

// DictionaryRepository defines access to the reference dictionary used by the fuzzy matcher
type DictionaryRepository interface {
	// Load reads the current dictionary entries
	Load(ctx context.Context) ([]string, error)

	// Watch calls onChange with the new entries whenever the source changes.
	// It blocks until ctx is done.
	Watch(ctx context.Context, onChange func([]string)) error

	// Source describes where the dictionary comes from
	Source() string
}

// Document is the on-disk and over-the-wire dictionary shape
type Document struct {
	Brands []string `json:"brands"`
}
