package hxnav

import (
	"errors"

	"github.com/pthm/hxnav/lib/encoding"
)

// IsTampered checks if err comes from a persisted value that failed its
// signature check, could not be decrypted or is not an encoded value at
// all. Such values were written with another key or modified on disk.
func IsTampered(err error) bool {
	return errors.Is(err, encoding.ErrSignatureInvalid) ||
		errors.Is(err, encoding.ErrDecryptFailed) ||
		errors.Is(err, encoding.ErrInvalidFormat)
}
