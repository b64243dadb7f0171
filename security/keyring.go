package security

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-custom-sender/providers/awskms"
)

// KMSClient is the subset of the KMS API the keyring needs.
type KMSClient interface {
	Decrypt(ctx context.Context, in awskms.DecryptInput) (awskms.DecryptOutput, error)
	Encrypt(ctx context.Context, in awskms.EncryptInput) (awskms.EncryptOutput, error)
	GenerateDataKey(ctx context.Context, in awskms.GenerateDataKeyInput) (awskms.GenerateDataKeyOutput, error)
}

// KMSKeyring wraps data keys under a generator key and zero or more extra
// keys. Only encrypted data keys whose provider info names one of those keys
// are sent to KMS for decryption.
type KMSKeyring struct {
	client       KMSClient
	generatorKey string
	keyIDs       []string
}

func NewKMSKeyring(client KMSClient, generatorKey string, keyIDs ...string) (*KMSKeyring, error) {
	if client == nil {
		return nil, fmt.Errorf("security: kms client is required")
	}
	generatorKey = strings.TrimSpace(generatorKey)
	cleaned := make([]string, 0, len(keyIDs))
	seen := map[string]bool{generatorKey: true}
	for _, keyID := range keyIDs {
		keyID = strings.TrimSpace(keyID)
		if keyID == "" || seen[keyID] {
			continue
		}
		seen[keyID] = true
		cleaned = append(cleaned, keyID)
	}
	if generatorKey == "" && len(cleaned) == 0 {
		return nil, ErrKeyringNotConfigured
	}
	return &KMSKeyring{client: client, generatorKey: generatorKey, keyIDs: cleaned}, nil
}

func (k *KMSKeyring) GeneratorKey() string {
	return k.generatorKey
}

func (k *KMSKeyring) KeyIDs() []string {
	return append([]string(nil), k.keyIDs...)
}

func (k *KMSKeyring) allows(providerInfo string) bool {
	if providerInfo == "" {
		return false
	}
	if providerInfo == k.generatorKey {
		return true
	}
	for _, keyID := range k.keyIDs {
		if keyID == providerInfo {
			return true
		}
	}
	return false
}

// DecryptDataKey returns the first data key KMS unwraps. Errors from every
// attempt are joined when none succeeds.
func (k *KMSKeyring) DecryptDataKey(ctx context.Context, suite Suite, edks []EncryptedDataKey, ec map[string]string) ([]byte, error) {
	var attempts []error
	for _, edk := range edks {
		if edk.ProviderID != ProviderIDKMS || !k.allows(edk.ProviderInfo) {
			continue
		}
		out, err := k.client.Decrypt(ctx, awskms.DecryptInput{
			CiphertextBlob:    edk.Ciphertext,
			KeyID:             edk.ProviderInfo,
			EncryptionContext: ec,
		})
		if err != nil {
			attempts = append(attempts, fmt.Errorf("security: kms decrypt with %s: %w", edk.ProviderInfo, err))
			continue
		}
		if out.KeyID != "" && out.KeyID != edk.ProviderInfo {
			attempts = append(attempts, fmt.Errorf("security: kms decrypted with unexpected key %s", out.KeyID))
			continue
		}
		if len(out.Plaintext) != suite.KeyLength {
			attempts = append(attempts, fmt.Errorf("security: kms returned a %d byte data key, suite needs %d", len(out.Plaintext), suite.KeyLength))
			continue
		}
		return out.Plaintext, nil
	}
	if len(attempts) == 0 {
		return nil, fmt.Errorf("%w: no encrypted data key matches the configured keys", ErrNoDecryptableKey)
	}
	return nil, errors.Join(append([]error{ErrNoDecryptableKey}, attempts...)...)
}

// GenerateDataKey creates a data key with the generator and wraps it again
// under every extra key.
func (k *KMSKeyring) GenerateDataKey(ctx context.Context, suite Suite, ec map[string]string) ([]byte, []EncryptedDataKey, error) {
	if k.generatorKey == "" {
		return nil, nil, fmt.Errorf("%w: encryption needs a generator key", ErrKeyringNotConfigured)
	}
	generated, err := k.client.GenerateDataKey(ctx, awskms.GenerateDataKeyInput{
		KeyID:             k.generatorKey,
		NumberOfBytes:     suite.KeyLength,
		EncryptionContext: ec,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("security: kms generate data key: %w", err)
	}
	edks := []EncryptedDataKey{{
		ProviderID:   ProviderIDKMS,
		ProviderInfo: generated.KeyID,
		Ciphertext:   generated.CiphertextBlob,
	}}
	for _, keyID := range k.keyIDs {
		wrapped, err := k.client.Encrypt(ctx, awskms.EncryptInput{
			KeyID:             keyID,
			Plaintext:         generated.Plaintext,
			EncryptionContext: ec,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("security: kms encrypt with %s: %w", keyID, err)
		}
		edks = append(edks, EncryptedDataKey{
			ProviderID:   ProviderIDKMS,
			ProviderInfo: wrapped.KeyID,
			Ciphertext:   wrapped.CiphertextBlob,
		})
	}
	return generated.Plaintext, edks, nil
}
