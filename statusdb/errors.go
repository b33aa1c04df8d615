package statusdb

import "fmt"

// KeyError reports a problem operating on a specific key within a bucket.
type KeyError struct {
	Bucket string
	Key    []byte
	Msg    string
	Err    error
}

func keyErrf(bucket string, key []byte, err error, format string, args ...any) error {
	return &KeyError{bucket, key, fmt.Sprintf(format, args...), err}
}

func (e *KeyError) Unwrap() error { return e.Err }

func (e *KeyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("statusdb: %s/%s: %s: %v", e.Bucket, hexstr(e.Key), e.Msg, e.Err)
	}
	return fmt.Sprintf("statusdb: %s/%s: %s", e.Bucket, hexstr(e.Key), e.Msg)
}
