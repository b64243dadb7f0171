package security

import (
	"fmt"
	"strings"
)

// CommitmentPolicy controls which suites may be used to encrypt and which
// messages may be decrypted.
type CommitmentPolicy string

const (
	ForbidEncryptAllowDecrypt    CommitmentPolicy = "forbid_encrypt_allow_decrypt"
	RequireEncryptAllowDecrypt   CommitmentPolicy = "require_encrypt_allow_decrypt"
	RequireEncryptRequireDecrypt CommitmentPolicy = "require_encrypt_require_decrypt"
)

const DefaultCommitmentPolicy = RequireEncryptAllowDecrypt

// ParseCommitmentPolicy accepts the snake case names as well as the upper
// case constants used by other Encryption SDK clients.
func ParseCommitmentPolicy(value string) (CommitmentPolicy, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return DefaultCommitmentPolicy, nil
	}
	switch policy := CommitmentPolicy(normalized); policy {
	case ForbidEncryptAllowDecrypt, RequireEncryptAllowDecrypt, RequireEncryptRequireDecrypt:
		return policy, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCommitmentValue, value)
}

// DefaultSuite is the suite used to encrypt under the policy.
func (p CommitmentPolicy) DefaultSuite() AlgorithmID {
	if p == ForbidEncryptAllowDecrypt {
		return AlgAES256GCMHKDFSHA384ECDSAP384
	}
	return AlgAES256GCMHKDFSHA512CommitECDSAP384
}

func (p CommitmentPolicy) allowsEncrypt(suite Suite) bool {
	if p == ForbidEncryptAllowDecrypt {
		return !suite.Committing
	}
	return suite.Committing
}

func (p CommitmentPolicy) allowsDecrypt(suite Suite) bool {
	if p == RequireEncryptRequireDecrypt {
		return suite.Committing
	}
	return true
}
