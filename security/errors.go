package security

import "errors"

var (
	ErrMalformedMessage       = errors.New("security: malformed message")
	ErrUnsupportedSuite       = errors.New("security: unsupported algorithm suite")
	ErrCommitmentPolicy       = errors.New("security: algorithm suite violates commitment policy")
	ErrCommitmentMismatch     = errors.New("security: key commitment mismatch")
	ErrHeaderAuthentication   = errors.New("security: header authentication failed")
	ErrBodyAuthentication     = errors.New("security: body authentication failed")
	ErrSignature              = errors.New("security: signature verification failed")
	ErrNoDecryptableKey       = errors.New("security: no encrypted data key could be decrypted")
	ErrTooManyEncryptedKeys   = errors.New("security: message exceeds the encrypted data key limit")
	ErrReservedContextKey     = errors.New("security: encryption context key uses the reserved aws-crypto- prefix")
	ErrKeyringNotConfigured   = errors.New("security: keyring has no usable key")
	ErrInvalidCommitmentValue = errors.New("security: unknown commitment policy")
)
