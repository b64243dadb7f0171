package security

import (
	"encoding/binary"
	"fmt"
	"sort"
	"unicode/utf8"
)

const (
	messageTypeCustomerAEAD byte = 0x80

	ContentTypeNonFramed byte = 0x01
	ContentTypeFramed    byte = 0x02

	finalFrameMarker uint32 = 0xFFFFFFFF
)

// ProviderIDKMS marks encrypted data keys produced by a KMS keyring.
const ProviderIDKMS = "aws-kms"

// PublicKeyContextKey holds the base64 compressed verification key of
// signing suites.
const PublicKeyContextKey = "aws-crypto-public-key"

const reservedContextPrefix = "aws-crypto-"

// EncryptedDataKey is one wrapped copy of the message data key.
type EncryptedDataKey struct {
	ProviderID   string
	ProviderInfo string
	Ciphertext   []byte
}

// Header is the parsed message header.
type Header struct {
	Version           byte
	Suite             Suite
	MessageID         []byte
	EncryptionContext map[string]string
	EncryptedDataKeys []EncryptedDataKey
	ContentType       byte
	FrameLength       uint32
	Commitment        []byte
	HeaderIV          []byte
	HeaderTag         []byte

	// raw holds the header bytes covered by the header authentication tag.
	raw []byte
}

type frame struct {
	sequence uint32
	final    bool
	iv       []byte
	content  []byte
	tag      []byte
}

type messageBody struct {
	frames []frame
}

// parsedMessage keeps the byte ranges the footer signature covers.
type parsedMessage struct {
	header    *Header
	body      messageBody
	signed    []byte
	signature []byte
}

type byteReader struct {
	buf []byte
	off int
}

func (r *byteReader) take(n int, field string) ([]byte, error) {
	if n < 0 || len(r.buf)-r.off < n {
		return nil, fmt.Errorf("%w: truncated %s", ErrMalformedMessage, field)
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *byteReader) u8(field string) (byte, error) {
	b, err := r.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) u16(field string) (uint16, error) {
	b, err := r.take(2, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *byteReader) u32(field string) (uint32, error) {
	b, err := r.take(4, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *byteReader) u64(field string) (uint64, error) {
	b, err := r.take(8, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *byteReader) shortBytes(field string) ([]byte, error) {
	size, err := r.u16(field + " length")
	if err != nil {
		return nil, err
	}
	return r.take(int(size), field)
}

func (r *byteReader) remaining() int {
	return len(r.buf) - r.off
}

func parseMessage(data []byte, maxEncryptedDataKeys int) (*parsedMessage, error) {
	r := &byteReader{buf: data}
	header, err := parseHeader(r, maxEncryptedDataKeys)
	if err != nil {
		return nil, err
	}
	body, err := parseBody(r, header)
	if err != nil {
		return nil, err
	}
	msg := &parsedMessage{header: header, body: body}
	if header.Suite.Signed() {
		msg.signed = data[:r.off]
		signature, err := r.shortBytes("signature")
		if err != nil {
			return nil, err
		}
		msg.signature = signature
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedMessage, r.remaining())
	}
	return msg, nil
}

func parseHeader(r *byteReader, maxEncryptedDataKeys int) (*Header, error) {
	start := r.off
	version, err := r.u8("version")
	if err != nil {
		return nil, err
	}
	header := &Header{Version: version}
	switch version {
	case 1:
		messageType, err := r.u8("type")
		if err != nil {
			return nil, err
		}
		if messageType != messageTypeCustomerAEAD {
			return nil, fmt.Errorf("%w: unknown message type 0x%02x", ErrMalformedMessage, messageType)
		}
	case 2:
	default:
		return nil, fmt.Errorf("%w: unknown version 0x%02x", ErrMalformedMessage, version)
	}

	algorithm, err := r.u16("algorithm id")
	if err != nil {
		return nil, err
	}
	suite, err := SuiteByID(AlgorithmID(algorithm))
	if err != nil {
		return nil, err
	}
	if suite.FormatVersion != version {
		return nil, fmt.Errorf("%w: suite %s is not valid in version %d", ErrMalformedMessage, suite.Name, version)
	}
	header.Suite = suite

	messageID, err := r.take(suite.messageIDLength(), "message id")
	if err != nil {
		return nil, err
	}
	header.MessageID = append([]byte(nil), messageID...)

	aad, err := r.shortBytes("aad")
	if err != nil {
		return nil, err
	}
	header.EncryptionContext, err = parseEncryptionContext(aad)
	if err != nil {
		return nil, err
	}

	count, err := r.u16("encrypted data key count")
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: no encrypted data keys", ErrMalformedMessage)
	}
	if maxEncryptedDataKeys > 0 && int(count) > maxEncryptedDataKeys {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyEncryptedKeys, count, maxEncryptedDataKeys)
	}
	header.EncryptedDataKeys = make([]EncryptedDataKey, 0, count)
	for i := 0; i < int(count); i++ {
		providerID, err := r.shortBytes("provider id")
		if err != nil {
			return nil, err
		}
		providerInfo, err := r.shortBytes("provider info")
		if err != nil {
			return nil, err
		}
		encrypted, err := r.shortBytes("encrypted data key")
		if err != nil {
			return nil, err
		}
		header.EncryptedDataKeys = append(header.EncryptedDataKeys, EncryptedDataKey{
			ProviderID:   string(providerID),
			ProviderInfo: string(providerInfo),
			Ciphertext:   append([]byte(nil), encrypted...),
		})
	}

	if header.ContentType, err = r.u8("content type"); err != nil {
		return nil, err
	}
	if header.ContentType != ContentTypeFramed && header.ContentType != ContentTypeNonFramed {
		return nil, fmt.Errorf("%w: unknown content type 0x%02x", ErrMalformedMessage, header.ContentType)
	}

	if version == 1 {
		reserved, err := r.take(4, "reserved")
		if err != nil {
			return nil, err
		}
		if binary.BigEndian.Uint32(reserved) != 0 {
			return nil, fmt.Errorf("%w: reserved field is not zero", ErrMalformedMessage)
		}
		ivLen, err := r.u8("iv length")
		if err != nil {
			return nil, err
		}
		if int(ivLen) != ivLength {
			return nil, fmt.Errorf("%w: iv length %d", ErrMalformedMessage, ivLen)
		}
	}

	if header.FrameLength, err = r.u32("frame length"); err != nil {
		return nil, err
	}
	if header.ContentType == ContentTypeFramed && header.FrameLength == 0 {
		return nil, fmt.Errorf("%w: framed content with zero frame length", ErrMalformedMessage)
	}
	if header.ContentType == ContentTypeNonFramed && header.FrameLength != 0 {
		return nil, fmt.Errorf("%w: non-framed content with frame length %d", ErrMalformedMessage, header.FrameLength)
	}

	if suite.Committing {
		commitment, err := r.take(commitmentKeyLength, "commitment")
		if err != nil {
			return nil, err
		}
		header.Commitment = append([]byte(nil), commitment...)
	}
	header.raw = append([]byte(nil), r.buf[start:r.off]...)

	if version == 1 {
		iv, err := r.take(ivLength, "header iv")
		if err != nil {
			return nil, err
		}
		header.HeaderIV = append([]byte(nil), iv...)
	} else {
		header.HeaderIV = make([]byte, ivLength)
	}
	tag, err := r.take(tagLength, "header tag")
	if err != nil {
		return nil, err
	}
	header.HeaderTag = append([]byte(nil), tag...)
	return header, nil
}

func parseBody(r *byteReader, header *Header) (messageBody, error) {
	if header.ContentType == ContentTypeNonFramed {
		iv, err := r.take(ivLength, "iv")
		if err != nil {
			return messageBody{}, err
		}
		length, err := r.u64("content length")
		if err != nil {
			return messageBody{}, err
		}
		if length > uint64(r.remaining()) {
			return messageBody{}, fmt.Errorf("%w: truncated content", ErrMalformedMessage)
		}
		content, err := r.take(int(length), "content")
		if err != nil {
			return messageBody{}, err
		}
		tag, err := r.take(tagLength, "tag")
		if err != nil {
			return messageBody{}, err
		}
		return messageBody{frames: []frame{{sequence: 1, final: true, iv: iv, content: content, tag: tag}}}, nil
	}

	var body messageBody
	expected := uint32(1)
	for {
		sequence, err := r.u32("sequence number")
		if err != nil {
			return messageBody{}, err
		}
		final := sequence == finalFrameMarker
		if final {
			if sequence, err = r.u32("final sequence number"); err != nil {
				return messageBody{}, err
			}
		}
		if sequence != expected {
			return messageBody{}, fmt.Errorf("%w: frame %d out of order, expected %d", ErrMalformedMessage, sequence, expected)
		}
		iv, err := r.take(ivLength, "frame iv")
		if err != nil {
			return messageBody{}, err
		}
		length := header.FrameLength
		if final {
			if length, err = r.u32("final frame length"); err != nil {
				return messageBody{}, err
			}
			if length > header.FrameLength {
				return messageBody{}, fmt.Errorf("%w: final frame longer than frame length", ErrMalformedMessage)
			}
		}
		content, err := r.take(int(length), "frame content")
		if err != nil {
			return messageBody{}, err
		}
		tag, err := r.take(tagLength, "frame tag")
		if err != nil {
			return messageBody{}, err
		}
		body.frames = append(body.frames, frame{sequence: sequence, final: final, iv: iv, content: content, tag: tag})
		if final {
			return body, nil
		}
		if expected == finalFrameMarker-1 {
			return messageBody{}, fmt.Errorf("%w: too many frames", ErrMalformedMessage)
		}
		expected++
	}
}

func parseEncryptionContext(aad []byte) (map[string]string, error) {
	ec := map[string]string{}
	if len(aad) == 0 {
		return ec, nil
	}
	r := &byteReader{buf: aad}
	count, err := r.u16("encryption context count")
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: empty encryption context with non-zero length", ErrMalformedMessage)
	}
	for i := 0; i < int(count); i++ {
		key, err := r.shortBytes("encryption context key")
		if err != nil {
			return nil, err
		}
		value, err := r.shortBytes("encryption context value")
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(key) || !utf8.Valid(value) {
			return nil, fmt.Errorf("%w: encryption context is not utf-8", ErrMalformedMessage)
		}
		if _, dup := ec[string(key)]; dup {
			return nil, fmt.Errorf("%w: duplicate encryption context key %q", ErrMalformedMessage, key)
		}
		ec[string(key)] = string(value)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: trailing encryption context bytes", ErrMalformedMessage)
	}
	return ec, nil
}

func serializeEncryptionContext(ec map[string]string) ([]byte, error) {
	if len(ec) == 0 {
		return nil, nil
	}
	if len(ec) > 0xFFFF {
		return nil, fmt.Errorf("%w: too many encryption context pairs", ErrMalformedMessage)
	}
	keys := make([]string, 0, len(ec))
	for key := range ec {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := binary.BigEndian.AppendUint16(nil, uint16(len(keys)))
	for _, key := range keys {
		var err error
		if out, err = appendShortBytes(out, []byte(key)); err != nil {
			return nil, err
		}
		if out, err = appendShortBytes(out, []byte(ec[key])); err != nil {
			return nil, err
		}
	}
	if len(out) > 0xFFFF {
		return nil, fmt.Errorf("%w: encryption context too large", ErrMalformedMessage)
	}
	return out, nil
}

func appendShortBytes(out []byte, value []byte) ([]byte, error) {
	if len(value) > 0xFFFF {
		return nil, fmt.Errorf("%w: field longer than 65535 bytes", ErrMalformedMessage)
	}
	out = binary.BigEndian.AppendUint16(out, uint16(len(value)))
	return append(out, value...), nil
}

// serializeHeaderBody writes the header fields covered by the header tag.
func serializeHeaderBody(header *Header) ([]byte, error) {
	suite := header.Suite
	out := []byte{suite.FormatVersion}
	if suite.FormatVersion == 1 {
		out = append(out, messageTypeCustomerAEAD)
	}
	out = binary.BigEndian.AppendUint16(out, uint16(suite.ID))
	out = append(out, header.MessageID...)

	aad, err := serializeEncryptionContext(header.EncryptionContext)
	if err != nil {
		return nil, err
	}
	if out, err = appendShortBytes(out, aad); err != nil {
		return nil, err
	}

	out = binary.BigEndian.AppendUint16(out, uint16(len(header.EncryptedDataKeys)))
	for _, edk := range header.EncryptedDataKeys {
		if out, err = appendShortBytes(out, []byte(edk.ProviderID)); err != nil {
			return nil, err
		}
		if out, err = appendShortBytes(out, []byte(edk.ProviderInfo)); err != nil {
			return nil, err
		}
		if out, err = appendShortBytes(out, edk.Ciphertext); err != nil {
			return nil, err
		}
	}

	out = append(out, header.ContentType)
	if suite.FormatVersion == 1 {
		out = append(out, 0, 0, 0, 0, ivLength)
	}
	out = binary.BigEndian.AppendUint32(out, header.FrameLength)
	if suite.Committing {
		out = append(out, header.Commitment...)
	}
	return out, nil
}

func appendHeaderAuth(out []byte, header *Header) []byte {
	if header.Suite.FormatVersion == 1 {
		out = append(out, header.HeaderIV...)
	}
	return append(out, header.HeaderTag...)
}

func appendFrame(out []byte, f frame) []byte {
	if f.final {
		out = binary.BigEndian.AppendUint32(out, finalFrameMarker)
	}
	out = binary.BigEndian.AppendUint32(out, f.sequence)
	out = append(out, f.iv...)
	if f.final {
		out = binary.BigEndian.AppendUint32(out, uint32(len(f.content)))
	}
	out = append(out, f.content...)
	return append(out, f.tag...)
}
