// Package awskms wraps the AWS SDK KMS client for the three calls the message
// format needs: Decrypt, Encrypt and GenerateDataKey. The SDK signs every
// request and hands it to a core.TransportAdapter, so hosts and tests choose
// the HTTP layer.
package awskms

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-custom-sender/core"
	"github.com/goliatone/go-custom-sender/transport"
)

const ProviderID = "aws-kms"

const defaultRequestTimeout = 10 * time.Second

type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	RequestTimeout  time.Duration
	// MaxAttempts caps SDK retries. Zero keeps the SDK default.
	MaxAttempts int
}

type Client struct {
	api    *kms.Client
	region string
}

type DecryptInput struct {
	CiphertextBlob    []byte
	KeyID             string
	EncryptionContext map[string]string
}

type DecryptOutput struct {
	KeyID     string
	Plaintext []byte
}

type EncryptInput struct {
	KeyID             string
	Plaintext         []byte
	EncryptionContext map[string]string
}

type EncryptOutput struct {
	KeyID          string
	CiphertextBlob []byte
}

type GenerateDataKeyInput struct {
	KeyID             string
	NumberOfBytes     int
	EncryptionContext map[string]string
}

type GenerateDataKeyOutput struct {
	KeyID          string
	Plaintext      []byte
	CiphertextBlob []byte
}

// New builds a client. When adapter is nil a plain REST transport is used.
func New(cfg Config, adapter core.TransportAdapter) (*Client, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		return nil, configError("awskms: region is required", nil)
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint != "" {
		parsed, err := url.Parse(endpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, configError("awskms: endpoint must be an absolute url", map[string]any{"endpoint": endpoint})
		}
	}
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	options := kms.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(staticCredentials(cfg)),
		HTTPClient:  &transportHTTPClient{adapter: adapter, timeout: timeout},
	}
	if cfg.MaxAttempts > 0 {
		options.RetryMaxAttempts = cfg.MaxAttempts
	}
	if endpoint != "" {
		options.BaseEndpoint = aws.String(endpoint)
	}
	return &Client{api: kms.New(options), region: region}, nil
}

func (c *Client) Region() string {
	if c == nil {
		return ""
	}
	return c.region
}

func (c *Client) Decrypt(ctx context.Context, in DecryptInput) (DecryptOutput, error) {
	if err := c.ready(); err != nil {
		return DecryptOutput{}, err
	}
	if len(in.CiphertextBlob) == 0 {
		return DecryptOutput{}, inputError("awskms: ciphertext blob is required")
	}
	params := &kms.DecryptInput{
		CiphertextBlob:    in.CiphertextBlob,
		EncryptionContext: in.EncryptionContext,
	}
	if keyID := strings.TrimSpace(in.KeyID); keyID != "" {
		params.KeyId = aws.String(keyID)
	}
	out, err := c.api.Decrypt(ctx, params)
	if err != nil {
		return DecryptOutput{}, wrapFault("Decrypt", err)
	}
	return DecryptOutput{KeyID: aws.ToString(out.KeyId), Plaintext: out.Plaintext}, nil
}

func (c *Client) Encrypt(ctx context.Context, in EncryptInput) (EncryptOutput, error) {
	if err := c.ready(); err != nil {
		return EncryptOutput{}, err
	}
	if strings.TrimSpace(in.KeyID) == "" {
		return EncryptOutput{}, inputError("awskms: key id is required")
	}
	if len(in.Plaintext) == 0 {
		return EncryptOutput{}, inputError("awskms: plaintext is required")
	}
	out, err := c.api.Encrypt(ctx, &kms.EncryptInput{
		KeyId:             aws.String(strings.TrimSpace(in.KeyID)),
		Plaintext:         in.Plaintext,
		EncryptionContext: in.EncryptionContext,
	})
	if err != nil {
		return EncryptOutput{}, wrapFault("Encrypt", err)
	}
	return EncryptOutput{KeyID: aws.ToString(out.KeyId), CiphertextBlob: out.CiphertextBlob}, nil
}

func (c *Client) GenerateDataKey(ctx context.Context, in GenerateDataKeyInput) (GenerateDataKeyOutput, error) {
	if err := c.ready(); err != nil {
		return GenerateDataKeyOutput{}, err
	}
	if strings.TrimSpace(in.KeyID) == "" {
		return GenerateDataKeyOutput{}, inputError("awskms: key id is required")
	}
	if in.NumberOfBytes <= 0 || in.NumberOfBytes > 1024 {
		return GenerateDataKeyOutput{}, inputError("awskms: number of bytes must be between 1 and 1024")
	}
	out, err := c.api.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:             aws.String(strings.TrimSpace(in.KeyID)),
		NumberOfBytes:     aws.Int32(int32(in.NumberOfBytes)),
		EncryptionContext: in.EncryptionContext,
	})
	if err != nil {
		return GenerateDataKeyOutput{}, wrapFault("GenerateDataKey", err)
	}
	if len(out.Plaintext) != in.NumberOfBytes || len(out.CiphertextBlob) == 0 {
		return GenerateDataKeyOutput{}, goerrors.New("awskms: generate data key returned an invalid key", goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(KMSErrorFailure)
	}
	return GenerateDataKeyOutput{
		KeyID:          aws.ToString(out.KeyId),
		Plaintext:      out.Plaintext,
		CiphertextBlob: out.CiphertextBlob,
	}, nil
}

func (c *Client) ready() error {
	if c == nil || c.api == nil {
		return goerrors.New("awskms: client is not configured", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(KMSErrorInvalidConfig)
	}
	return nil
}

// staticCredentials serves the configured key pair. Lambda exports the
// execution role credentials through the same environment variables.
func staticCredentials(cfg Config) aws.CredentialsProvider {
	creds := aws.Credentials{
		AccessKeyID:     strings.TrimSpace(cfg.AccessKeyID),
		SecretAccessKey: strings.TrimSpace(cfg.SecretAccessKey),
		SessionToken:    strings.TrimSpace(cfg.SessionToken),
		Source:          "CustomSenderConfig",
	}
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
			return aws.Credentials{}, configError("awskms: access key id and secret access key are required", nil)
		}
		return creds, nil
	})
}

func configError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode(KMSErrorInvalidConfig)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inputError(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(KMSErrorInvalidInput)
}
