package devkit

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-custom-sender/core"
)

// KMSFixture is an in-memory stand-in for the KMS JSON API. It answers
// TrentService Encrypt, Decrypt and GenerateDataKey calls and wraps data
// with per-key AES-GCM material bound to the encryption context.
type KMSFixture struct {
	mu      sync.Mutex
	keys    map[string][]byte
	aliases map[string]string
	denied  map[string]bool
	calls   map[string]int
}

type kmsFixtureRequest struct {
	KeyID             string            `json:"KeyId"`
	Plaintext         []byte            `json:"Plaintext"`
	CiphertextBlob    []byte            `json:"CiphertextBlob"`
	NumberOfBytes     int               `json:"NumberOfBytes"`
	EncryptionContext map[string]string `json:"EncryptionContext"`
}

type kmsFixtureResponse struct {
	KeyID          string `json:"KeyId"`
	Plaintext      []byte `json:"Plaintext,omitempty"`
	CiphertextBlob []byte `json:"CiphertextBlob,omitempty"`
}

func NewKMSFixture(keyARNs ...string) *KMSFixture {
	fixture := &KMSFixture{
		keys:    map[string][]byte{},
		aliases: map[string]string{},
		denied:  map[string]bool{},
		calls:   map[string]int{},
	}
	for _, arn := range keyARNs {
		fixture.AddKey(arn)
	}
	return fixture
}

func (f *KMSFixture) AddKey(arn string) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("devkit: generate fixture key: %v", err))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[strings.TrimSpace(arn)] = key
}

func (f *KMSFixture) AddAlias(alias string, arn string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliases[strings.TrimSpace(alias)] = strings.TrimSpace(arn)
}

// Deny makes every call that resolves to arn fail with AccessDeniedException.
func (f *KMSFixture) Deny(arn string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied[strings.TrimSpace(arn)] = true
}

func (f *KMSFixture) Calls(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[operation]
}

func (f *KMSFixture) Transport() *FakeTransportAdapter {
	return NewRespondingTransportAdapter("rest", f.Handle)
}

func (f *KMSFixture) Handle(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	target := headerValue(req.Headers, "X-Amz-Target")
	operation := strings.TrimPrefix(target, "TrentService.")

	var payload kmsFixtureRequest
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return kmsFault(http.StatusBadRequest, "SerializationException", "request body is not valid json"), nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[operation]++

	switch operation {
	case "Encrypt":
		arn, key, fault := f.resolveKey(payload.KeyID)
		if fault != nil {
			return *fault, nil
		}
		blob, err := sealFixtureBlob(arn, key, payload.Plaintext, payload.EncryptionContext)
		if err != nil {
			return core.TransportResponse{}, err
		}
		return kmsJSON(kmsFixtureResponse{KeyID: arn, CiphertextBlob: blob}), nil
	case "GenerateDataKey":
		arn, key, fault := f.resolveKey(payload.KeyID)
		if fault != nil {
			return *fault, nil
		}
		size := payload.NumberOfBytes
		if size <= 0 || size > 1024 {
			return kmsFault(http.StatusBadRequest, "ValidationException", "NumberOfBytes must be between 1 and 1024"), nil
		}
		plaintext := make([]byte, size)
		if _, err := rand.Read(plaintext); err != nil {
			return core.TransportResponse{}, err
		}
		blob, err := sealFixtureBlob(arn, key, plaintext, payload.EncryptionContext)
		if err != nil {
			return core.TransportResponse{}, err
		}
		return kmsJSON(kmsFixtureResponse{KeyID: arn, Plaintext: plaintext, CiphertextBlob: blob}), nil
	case "Decrypt":
		arn, nonceAndSealed, ok := splitFixtureBlob(payload.CiphertextBlob)
		if !ok {
			return kmsFault(http.StatusBadRequest, "InvalidCiphertextException", "ciphertext blob is malformed"), nil
		}
		if payload.KeyID != "" {
			requested, _, fault := f.resolveKey(payload.KeyID)
			if fault != nil {
				return *fault, nil
			}
			if requested != arn {
				return kmsFault(http.StatusBadRequest, "IncorrectKeyException", "ciphertext was not encrypted under the requested key"), nil
			}
		}
		_, key, fault := f.resolveKey(arn)
		if fault != nil {
			return *fault, nil
		}
		plaintext, err := openFixtureBlob(key, nonceAndSealed, payload.EncryptionContext)
		if err != nil {
			return kmsFault(http.StatusBadRequest, "InvalidCiphertextException", "ciphertext or encryption context does not match"), nil
		}
		return kmsJSON(kmsFixtureResponse{KeyID: arn, Plaintext: plaintext}), nil
	default:
		return kmsFault(http.StatusBadRequest, "UnknownOperationException", "unsupported operation "+target), nil
	}
}

func (f *KMSFixture) resolveKey(keyID string) (string, []byte, *core.TransportResponse) {
	arn := strings.TrimSpace(keyID)
	if alias, ok := f.aliases[arn]; ok {
		arn = alias
	}
	key, ok := f.keys[arn]
	if !ok {
		fault := kmsFault(http.StatusBadRequest, "NotFoundException", "key "+keyID+" does not exist")
		return "", nil, &fault
	}
	if f.denied[arn] {
		fault := kmsFault(http.StatusBadRequest, "AccessDeniedException", "access to key "+arn+" is denied")
		return "", nil, &fault
	}
	return arn, key, nil
}

func sealFixtureBlob(arn string, key []byte, plaintext []byte, ec map[string]string) ([]byte, error) {
	aead, err := fixtureAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	blob := make([]byte, 2, 2+len(arn)+len(nonce)+len(plaintext)+aead.Overhead())
	binary.BigEndian.PutUint16(blob, uint16(len(arn)))
	blob = append(blob, arn...)
	blob = append(blob, nonce...)
	return aead.Seal(blob, nonce, plaintext, canonicalContext(ec)), nil
}

func splitFixtureBlob(blob []byte) (string, []byte, bool) {
	if len(blob) < 2 {
		return "", nil, false
	}
	size := int(binary.BigEndian.Uint16(blob))
	if len(blob) < 2+size+12 {
		return "", nil, false
	}
	return string(blob[2 : 2+size]), blob[2+size:], true
}

func openFixtureBlob(key []byte, nonceAndSealed []byte, ec map[string]string) ([]byte, error) {
	aead, err := fixtureAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := nonceAndSealed[:aead.NonceSize()]
	return aead.Open(nil, nonce, nonceAndSealed[aead.NonceSize():], canonicalContext(ec))
}

func fixtureAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func canonicalContext(ec map[string]string) []byte {
	keys := make([]string, 0, len(ec))
	for key := range ec {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(ec[key])
		b.WriteByte(';')
	}
	return []byte(b.String())
}

func kmsJSON(payload kmsFixtureResponse) core.TransportResponse {
	body, _ := json.Marshal(payload)
	return core.TransportResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/x-amz-json-1.1"},
		Body:       body,
	}
}

func kmsFault(status int, errorType string, message string) core.TransportResponse {
	body, _ := json.Marshal(map[string]string{"__type": errorType, "message": message})
	return core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/x-amz-json-1.1"},
		Body:       body,
	}
}

func headerValue(headers map[string]string, name string) string {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
