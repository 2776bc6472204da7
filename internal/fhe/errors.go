package fhe

import "errors"

// ErrNoSession marks an encrypt or decrypt attempted without a ready
// privacy session. This is a caller error and is never retried.
var ErrNoSession = errors.New("no active privacy session")

// ErrSessionExpired marks a session past its expiry. The user must
// re-authorize.
var ErrSessionExpired = errors.New("privacy session expired")

// ErrNotYetMaterialized marks a decryption target the threshold service
// has not finished processing. Retried with a longer base delay: the
// upstream needs time, not a different request.
var ErrNotYetMaterialized = errors.New("ciphertext not yet materialized")

// ErrRetryExhausted marks a decrypt that failed on every allowed
// attempt. The wrapped cause is the last failure.
var ErrRetryExhausted = errors.New("decrypt retries exhausted")
