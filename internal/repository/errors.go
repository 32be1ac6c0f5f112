package repository

import "errors"

var (
	// ErrInvalidDictionary indicates the dictionary document could not be decoded
	ErrInvalidDictionary = errors.New("invalid dictionary document")

	// ErrWatchUnsupported indicates the dictionary source cannot be watched for changes
	ErrWatchUnsupported = errors.New("dictionary source cannot be watched")
)
