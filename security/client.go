package security

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goliatone/go-custom-sender/core"
)

const (
	DefaultFrameLength          = 4096
	DefaultMaxEncryptedDataKeys = 0
)

type Option func(*Client)

func WithCommitmentPolicy(policy CommitmentPolicy) Option {
	return func(c *Client) {
		if c == nil || policy == "" {
			return
		}
		c.policy = policy
	}
}

// WithAlgorithmSuite overrides the suite used to encrypt. It must be
// allowed by the commitment policy.
func WithAlgorithmSuite(id AlgorithmID) Option {
	return func(c *Client) {
		if c == nil {
			return
		}
		c.suite = id
	}
}

func WithFrameLength(length uint32) Option {
	return func(c *Client) {
		if c == nil || length == 0 {
			return
		}
		c.frameLength = length
	}
}

// WithMaxEncryptedDataKeys rejects messages carrying more wrapped keys than
// limit. Zero disables the check.
func WithMaxEncryptedDataKeys(limit int) Option {
	return func(c *Client) {
		if c == nil || limit < 0 {
			return
		}
		c.maxEncryptedDataKeys = limit
	}
}

// Client encrypts and decrypts messages with a KMS keyring.
type Client struct {
	keyring              *KMSKeyring
	policy               CommitmentPolicy
	suite                AlgorithmID
	frameLength          uint32
	maxEncryptedDataKeys int
}

// DecryptResult carries the plaintext and the authenticated header.
type DecryptResult struct {
	Plaintext []byte
	Header    *Header
}

func NewClient(keyring *KMSKeyring, opts ...Option) (*Client, error) {
	if keyring == nil {
		return nil, ErrKeyringNotConfigured
	}
	client := &Client{
		keyring:              keyring,
		policy:               DefaultCommitmentPolicy,
		frameLength:          DefaultFrameLength,
		maxEncryptedDataKeys: DefaultMaxEncryptedDataKeys,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(client)
	}
	if _, err := ParseCommitmentPolicy(string(client.policy)); err != nil {
		return nil, err
	}
	if client.suite == 0 {
		client.suite = client.policy.DefaultSuite()
	}
	suite, err := SuiteByID(client.suite)
	if err != nil {
		return nil, err
	}
	if !client.policy.allowsEncrypt(suite) {
		return nil, fmt.Errorf("%w: cannot encrypt with %s under %s", ErrCommitmentPolicy, suite.Name, client.policy)
	}
	return client, nil
}

func (c *Client) Policy() CommitmentPolicy {
	return c.policy
}

// Decrypt authenticates and decrypts one complete message.
func (c *Client) Decrypt(ctx context.Context, ciphertext []byte) (DecryptResult, error) {
	if c == nil {
		return DecryptResult{}, ErrKeyringNotConfigured
	}
	if len(ciphertext) == 0 {
		return DecryptResult{}, fmt.Errorf("%w: empty ciphertext", ErrMalformedMessage)
	}
	msg, err := parseMessage(ciphertext, c.maxEncryptedDataKeys)
	if err != nil {
		return DecryptResult{}, err
	}
	header := msg.header
	if !c.policy.allowsDecrypt(header.Suite) {
		return DecryptResult{}, fmt.Errorf("%w: %s is not committing", ErrCommitmentPolicy, header.Suite.Name)
	}

	dataKey, err := c.keyring.DecryptDataKey(ctx, header.Suite, header.EncryptedDataKeys, header.EncryptionContext)
	if err != nil {
		return DecryptResult{}, err
	}
	key, commitment, err := deriveKeys(header.Suite, dataKey, header.MessageID)
	if err != nil {
		return DecryptResult{}, err
	}
	if header.Suite.Committing {
		if err := verifyCommitment(header.Commitment, commitment); err != nil {
			return DecryptResult{}, err
		}
	}
	aead, err := newGCM(key)
	if err != nil {
		return DecryptResult{}, err
	}
	if err := verifyHeaderAuth(aead, header); err != nil {
		return DecryptResult{}, err
	}
	plaintext, err := openBody(aead, header, msg.body)
	if err != nil {
		return DecryptResult{}, err
	}
	if header.Suite.Signed() {
		if err := verifySignature(header.Suite, header.EncryptionContext[PublicKeyContextKey], msg.signed, msg.signature); err != nil {
			return DecryptResult{}, err
		}
	}
	return DecryptResult{Plaintext: plaintext, Header: header}, nil
}

// Encrypt produces a framed message. Keys in ec must not start with the
// reserved aws-crypto- prefix.
func (c *Client) Encrypt(ctx context.Context, plaintext []byte, ec map[string]string) ([]byte, error) {
	if c == nil {
		return nil, ErrKeyringNotConfigured
	}
	suite, err := SuiteByID(c.suite)
	if err != nil {
		return nil, err
	}
	encryptionContext := make(map[string]string, len(ec)+1)
	for key, value := range ec {
		if strings.HasPrefix(key, reservedContextPrefix) {
			return nil, fmt.Errorf("%w: %q", ErrReservedContextKey, key)
		}
		encryptionContext[key] = value
	}

	var signingKey *ecdsa.PrivateKey
	if suite.Signed() {
		signingKey, err = ecdsa.GenerateKey(suite.Curve, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("security: generate signing key: %w", err)
		}
		encryptionContext[PublicKeyContextKey] = encodePublicKey(&signingKey.PublicKey)
	}

	dataKey, edks, err := c.keyring.GenerateDataKey(ctx, suite, encryptionContext)
	if err != nil {
		return nil, err
	}
	messageID, err := randomBytes(suite.messageIDLength())
	if err != nil {
		return nil, err
	}
	key, commitment, err := deriveKeys(suite, dataKey, messageID)
	if err != nil {
		return nil, err
	}
	header := &Header{
		Version:           suite.FormatVersion,
		Suite:             suite,
		MessageID:         messageID,
		EncryptionContext: encryptionContext,
		EncryptedDataKeys: edks,
		ContentType:       ContentTypeFramed,
		FrameLength:       c.frameLength,
		Commitment:        commitment,
	}
	if header.raw, err = serializeHeaderBody(header); err != nil {
		return nil, err
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	sealHeaderAuth(aead, header)

	out := append([]byte(nil), header.raw...)
	out = appendHeaderAuth(out, header)
	for _, f := range sealBody(aead, header, plaintext) {
		out = appendFrame(out, f)
	}
	if signingKey != nil {
		signature, err := sign(suite, signingKey, out)
		if err != nil {
			return nil, err
		}
		if out, err = appendShortBytes(out, signature); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CodeDecrypter adapts Client to core.CodeDecrypter.
type CodeDecrypter struct {
	Client *Client
}

func (d CodeDecrypter) DecryptCode(ctx context.Context, ciphertext []byte) (string, error) {
	result, err := d.Client.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", err
	}
	return string(result.Plaintext), nil
}

// EncryptCode returns the base64 message Cognito would place in
// request.code.
func (c *Client) EncryptCode(ctx context.Context, code string, ec map[string]string) (string, error) {
	message, err := c.Encrypt(ctx, []byte(code), ec)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(message), nil
}

var _ core.CodeDecrypter = CodeDecrypter{}
