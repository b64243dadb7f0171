package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	frameStringRegular = "AWSKMSEncryptionClient Frame"
	frameStringFinal   = "AWSKMSEncryptionClient Final Frame"
	frameStringSingle  = "AWSKMSEncryptionClient Single Block"

	deriveKeyLabel = "DERIVEKEY"
	commitKeyLabel = "COMMITKEY"
)

// deriveKeys returns the content encryption key and, for committing suites,
// the commitment value.
func deriveKeys(suite Suite, dataKey []byte, messageID []byte) ([]byte, []byte, error) {
	if len(dataKey) != suite.KeyLength {
		return nil, nil, fmt.Errorf("%w: data key is %d bytes, suite needs %d", ErrNoDecryptableKey, len(dataKey), suite.KeyLength)
	}
	if suite.KDFHash == 0 {
		return append([]byte(nil), dataKey...), nil, nil
	}

	if !suite.Committing {
		info := binary.BigEndian.AppendUint16(nil, uint16(suite.ID))
		info = append(info, messageID...)
		key, err := readHKDF(hkdf.New(suite.KDFHash.New, dataKey, nil, info), suite.KeyLength)
		return key, nil, err
	}

	prk := hkdf.Extract(suite.KDFHash.New, dataKey, messageID)
	info := binary.BigEndian.AppendUint16(nil, uint16(suite.ID))
	info = append(info, deriveKeyLabel...)
	key, err := readHKDF(hkdf.Expand(suite.KDFHash.New, prk, info), suite.KeyLength)
	if err != nil {
		return nil, nil, err
	}
	commitment, err := readHKDF(hkdf.Expand(suite.KDFHash.New, prk, []byte(commitKeyLabel)), commitmentKeyLength)
	if err != nil {
		return nil, nil, err
	}
	return key, commitment, nil
}

func readHKDF(r io.Reader, size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("security: derive key: %w", err)
	}
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: aes cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, fmt.Errorf("security: gcm: %w", err)
	}
	return aead, nil
}

func verifyCommitment(expected []byte, actual []byte) error {
	if subtle.ConstantTimeCompare(expected, actual) != 1 {
		return ErrCommitmentMismatch
	}
	return nil
}

func verifyHeaderAuth(aead cipher.AEAD, header *Header) error {
	if _, err := aead.Open(nil, header.HeaderIV, header.HeaderTag, header.raw); err != nil {
		return ErrHeaderAuthentication
	}
	return nil
}

func sealHeaderAuth(aead cipher.AEAD, header *Header) {
	header.HeaderIV = make([]byte, ivLength)
	header.HeaderTag = aead.Seal(nil, header.HeaderIV, nil, header.raw)
}

func frameAAD(messageID []byte, label string, sequence uint32, contentLength int) []byte {
	out := make([]byte, 0, len(messageID)+len(label)+12)
	out = append(out, messageID...)
	out = append(out, label...)
	out = binary.BigEndian.AppendUint32(out, sequence)
	return binary.BigEndian.AppendUint64(out, uint64(contentLength))
}

func frameLabel(header *Header, f frame) string {
	switch {
	case header.ContentType == ContentTypeNonFramed:
		return frameStringSingle
	case f.final:
		return frameStringFinal
	default:
		return frameStringRegular
	}
}

func openBody(aead cipher.AEAD, header *Header, body messageBody) ([]byte, error) {
	var plaintext []byte
	for _, f := range body.frames {
		sealed := make([]byte, 0, len(f.content)+len(f.tag))
		sealed = append(sealed, f.content...)
		sealed = append(sealed, f.tag...)
		aad := frameAAD(header.MessageID, frameLabel(header, f), f.sequence, len(f.content))
		opened, err := aead.Open(nil, f.iv, sealed, aad)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d", ErrBodyAuthentication, f.sequence)
		}
		plaintext = append(plaintext, opened...)
	}
	return plaintext, nil
}

// sealBody splits plaintext into frames. The last frame is always a final
// frame, possibly empty when plaintext is a multiple of the frame length.
func sealBody(aead cipher.AEAD, header *Header, plaintext []byte) []frame {
	frameLength := int(header.FrameLength)
	var frames []frame
	sequence := uint32(1)
	for {
		final := len(plaintext) < frameLength
		chunk := plaintext
		if !final {
			chunk = plaintext[:frameLength]
		}
		iv := make([]byte, ivLength)
		binary.BigEndian.PutUint32(iv[ivLength-4:], sequence)
		label := frameStringRegular
		if final {
			label = frameStringFinal
		}
		sealed := aead.Seal(nil, iv, chunk, frameAAD(header.MessageID, label, sequence, len(chunk)))
		frames = append(frames, frame{
			sequence: sequence,
			final:    final,
			iv:       iv,
			content:  sealed[:len(chunk)],
			tag:      sealed[len(chunk):],
		})
		if final {
			return frames
		}
		plaintext = plaintext[frameLength:]
		sequence++
	}
}

func decodePublicKey(suite Suite, encoded string) (*ecdsa.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: public key is not base64", ErrSignature)
	}
	x, y := elliptic.UnmarshalCompressed(suite.Curve, raw)
	if x == nil {
		return nil, fmt.Errorf("%w: public key is not a compressed %s point", ErrSignature, suite.Curve.Params().Name)
	}
	return &ecdsa.PublicKey{Curve: suite.Curve, X: x, Y: y}, nil
}

func encodePublicKey(key *ecdsa.PublicKey) string {
	return base64.StdEncoding.EncodeToString(elliptic.MarshalCompressed(key.Curve, key.X, key.Y))
}

func verifySignature(suite Suite, encodedKey string, signed []byte, signature []byte) error {
	if encodedKey == "" {
		return fmt.Errorf("%w: %s missing from encryption context", ErrSignature, PublicKeyContextKey)
	}
	public, err := decodePublicKey(suite, encodedKey)
	if err != nil {
		return err
	}
	digest := suite.SignatureHash.New()
	_, _ = digest.Write(signed)
	if !ecdsa.VerifyASN1(public, digest.Sum(nil), signature) {
		return ErrSignature
	}
	return nil
}

func sign(suite Suite, key *ecdsa.PrivateKey, signed []byte) ([]byte, error) {
	digest := suite.SignatureHash.New()
	_, _ = digest.Write(signed)
	signature, err := ecdsa.SignASN1(rand.Reader, key, digest.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("security: sign message: %w", err)
	}
	return signature, nil
}

func randomBytes(size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("security: random bytes: %w", err)
	}
	return out, nil
}
