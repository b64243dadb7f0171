package security

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-custom-sender/providers/awskms"
)

// knownAnswerFile is produced by testdata/generate_vectors.js, which builds
// messages with node:crypto only.
type knownAnswerFile struct {
	KeyID            string        `json:"key_id"`
	DataKey          string        `json:"data_key"`
	EncryptedDataKey string        `json:"encrypted_data_key"`
	Vectors          []knownAnswer `json:"vectors"`
}

type knownAnswer struct {
	Name      string `json:"name"`
	Algorithm uint16 `json:"algorithm"`
	Policy    string `json:"policy"`
	Plaintext string `json:"plaintext"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

// staticKMS unwraps exactly one encrypted data key.
type staticKMS struct {
	keyID    string
	wrapped  []byte
	dataKey  []byte
	contexts []map[string]string
}

func (s *staticKMS) Decrypt(_ context.Context, in awskms.DecryptInput) (awskms.DecryptOutput, error) {
	s.contexts = append(s.contexts, in.EncryptionContext)
	if in.KeyID != s.keyID || !bytes.Equal(in.CiphertextBlob, s.wrapped) {
		return awskms.DecryptOutput{}, fmt.Errorf("unexpected encrypted data key for %s", in.KeyID)
	}
	return awskms.DecryptOutput{KeyID: s.keyID, Plaintext: append([]byte(nil), s.dataKey...)}, nil
}

func (s *staticKMS) Encrypt(context.Context, awskms.EncryptInput) (awskms.EncryptOutput, error) {
	return awskms.EncryptOutput{}, errors.New("encrypt not supported")
}

func (s *staticKMS) GenerateDataKey(context.Context, awskms.GenerateDataKeyInput) (awskms.GenerateDataKeyOutput, error) {
	return awskms.GenerateDataKeyOutput{}, errors.New("generate data key not supported")
}

func loadKnownAnswers(t *testing.T) (knownAnswerFile, *staticKMS) {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", "vectors.json"))
	if err != nil {
		t.Fatalf("read vectors: %v", err)
	}
	var file knownAnswerFile
	if err := json.Unmarshal(raw, &file); err != nil {
		t.Fatalf("decode vectors: %v", err)
	}
	dataKey, err := base64.StdEncoding.DecodeString(file.DataKey)
	if err != nil {
		t.Fatalf("decode data key: %v", err)
	}
	wrapped, err := base64.StdEncoding.DecodeString(file.EncryptedDataKey)
	if err != nil {
		t.Fatalf("decode encrypted data key: %v", err)
	}
	if len(file.Vectors) == 0 {
		t.Fatalf("no vectors in file")
	}
	return file, &staticKMS{keyID: file.KeyID, wrapped: wrapped, dataKey: dataKey}
}

func TestClient_DecryptsKnownAnswerMessages(t *testing.T) {
	file, _ := loadKnownAnswers(t)
	for _, vector := range file.Vectors {
		t.Run(vector.Name, func(t *testing.T) {
			_, kms := loadKnownAnswers(t)
			policy, err := ParseCommitmentPolicy(vector.Policy)
			if err != nil {
				t.Fatalf("policy: %v", err)
			}
			keyring, err := NewKMSKeyring(kms, file.KeyID)
			if err != nil {
				t.Fatalf("keyring: %v", err)
			}
			client, err := NewClient(keyring, WithCommitmentPolicy(policy))
			if err != nil {
				t.Fatalf("client: %v", err)
			}
			message, err := base64.StdEncoding.DecodeString(vector.Message)
			if err != nil {
				t.Fatalf("decode message: %v", err)
			}

			result, err := client.Decrypt(context.Background(), message)
			switch vector.Error {
			case "commitment":
				if !errors.Is(err, ErrCommitmentMismatch) {
					t.Fatalf("expected commitment mismatch, got %v", err)
				}
				return
			case "policy":
				if !errors.Is(err, ErrCommitmentPolicy) {
					t.Fatalf("expected commitment policy error, got %v", err)
				}
				if len(kms.contexts) != 0 {
					t.Fatalf("expected no kms call for a rejected suite")
				}
				return
			}
			if err != nil {
				t.Fatalf("decrypt: %v", err)
			}
			if string(result.Plaintext) != vector.Plaintext {
				t.Fatalf("expected %q, got %q", vector.Plaintext, result.Plaintext)
			}
			if uint16(result.Header.Suite.ID) != vector.Algorithm {
				t.Fatalf("expected suite 0x%04x, got 0x%04x", vector.Algorithm, uint16(result.Header.Suite.ID))
			}
			if len(kms.contexts) != 1 {
				t.Fatalf("expected one kms decrypt, got %d", len(kms.contexts))
			}
			for key, value := range result.Header.EncryptionContext {
				if kms.contexts[0][key] != value {
					t.Fatalf("expected encryption context %q to reach kms", key)
				}
			}
		})
	}
}

func TestClient_KnownAnswerTamperingFailsAuthentication(t *testing.T) {
	file, kms := loadKnownAnswers(t)
	var vector knownAnswer
	for _, candidate := range file.Vectors {
		if candidate.Error == "" && candidate.Algorithm == uint16(AlgAES256GCMHKDFSHA512CommitECDSAP384) {
			vector = candidate
		}
	}
	message, err := base64.StdEncoding.DecodeString(vector.Message)
	if err != nil || len(message) == 0 {
		t.Fatalf("missing signed committing vector: %v", err)
	}
	client := newTestClient(t, kms, file.KeyID, nil)

	// The last byte belongs to the DER signature.
	tampered := append([]byte(nil), message...)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := client.Decrypt(context.Background(), tampered); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected signature failure, got %v", err)
	}

	// Flipping a byte in the encryption context breaks the header tag.
	tampered = append([]byte(nil), message...)
	index := bytes.Index(tampered, []byte("cognito-custom-sms"))
	if index < 0 {
		t.Fatalf("encryption context not found in message")
	}
	tampered[index] ^= 0x01
	if _, err := client.Decrypt(context.Background(), tampered); !errors.Is(err, ErrHeaderAuthentication) {
		t.Fatalf("expected header authentication failure, got %v", err)
	}
}
