package security

import (
	"crypto"
	"crypto/elliptic"
	"fmt"
	"sort"

	_ "crypto/sha256"
	_ "crypto/sha512"
)

type AlgorithmID uint16

const (
	AlgAES128GCMNoKDF                     AlgorithmID = 0x0014
	AlgAES192GCMNoKDF                     AlgorithmID = 0x0046
	AlgAES256GCMNoKDF                     AlgorithmID = 0x0078
	AlgAES128GCMHKDFSHA256                AlgorithmID = 0x0114
	AlgAES192GCMHKDFSHA256                AlgorithmID = 0x0146
	AlgAES256GCMHKDFSHA256                AlgorithmID = 0x0178
	AlgAES128GCMHKDFSHA256ECDSAP256       AlgorithmID = 0x0214
	AlgAES192GCMHKDFSHA384ECDSAP384       AlgorithmID = 0x0346
	AlgAES256GCMHKDFSHA384ECDSAP384       AlgorithmID = 0x0378
	AlgAES256GCMHKDFSHA512Commit          AlgorithmID = 0x0478
	AlgAES256GCMHKDFSHA512CommitECDSAP384 AlgorithmID = 0x0578
)

const (
	ivLength            = 12
	tagLength           = 16
	commitmentKeyLength = 32
)

// Suite describes one algorithm suite.
type Suite struct {
	ID            AlgorithmID
	Name          string
	FormatVersion byte
	KeyLength     int
	KDFHash       crypto.Hash
	Committing    bool
	Curve         elliptic.Curve
	SignatureHash crypto.Hash
}

func (s Suite) Signed() bool {
	return s.Curve != nil
}

func (s Suite) messageIDLength() int {
	if s.FormatVersion == 2 {
		return 32
	}
	return 16
}

var suites = map[AlgorithmID]Suite{
	AlgAES128GCMNoKDF:               {ID: AlgAES128GCMNoKDF, Name: "AES_128_GCM_IV12_TAG16_NO_KDF", FormatVersion: 1, KeyLength: 16},
	AlgAES192GCMNoKDF:               {ID: AlgAES192GCMNoKDF, Name: "AES_192_GCM_IV12_TAG16_NO_KDF", FormatVersion: 1, KeyLength: 24},
	AlgAES256GCMNoKDF:               {ID: AlgAES256GCMNoKDF, Name: "AES_256_GCM_IV12_TAG16_NO_KDF", FormatVersion: 1, KeyLength: 32},
	AlgAES128GCMHKDFSHA256:          {ID: AlgAES128GCMHKDFSHA256, Name: "AES_128_GCM_IV12_TAG16_HKDF_SHA256", FormatVersion: 1, KeyLength: 16, KDFHash: crypto.SHA256},
	AlgAES192GCMHKDFSHA256:          {ID: AlgAES192GCMHKDFSHA256, Name: "AES_192_GCM_IV12_TAG16_HKDF_SHA256", FormatVersion: 1, KeyLength: 24, KDFHash: crypto.SHA256},
	AlgAES256GCMHKDFSHA256:          {ID: AlgAES256GCMHKDFSHA256, Name: "AES_256_GCM_IV12_TAG16_HKDF_SHA256", FormatVersion: 1, KeyLength: 32, KDFHash: crypto.SHA256},
	AlgAES128GCMHKDFSHA256ECDSAP256: {ID: AlgAES128GCMHKDFSHA256ECDSAP256, Name: "AES_128_GCM_IV12_TAG16_HKDF_SHA256_ECDSA_P256", FormatVersion: 1, KeyLength: 16, KDFHash: crypto.SHA256, Curve: elliptic.P256(), SignatureHash: crypto.SHA256},
	AlgAES192GCMHKDFSHA384ECDSAP384: {ID: AlgAES192GCMHKDFSHA384ECDSAP384, Name: "AES_192_GCM_IV12_TAG16_HKDF_SHA384_ECDSA_P384", FormatVersion: 1, KeyLength: 24, KDFHash: crypto.SHA384, Curve: elliptic.P384(), SignatureHash: crypto.SHA384},
	AlgAES256GCMHKDFSHA384ECDSAP384: {ID: AlgAES256GCMHKDFSHA384ECDSAP384, Name: "AES_256_GCM_IV12_TAG16_HKDF_SHA384_ECDSA_P384", FormatVersion: 1, KeyLength: 32, KDFHash: crypto.SHA384, Curve: elliptic.P384(), SignatureHash: crypto.SHA384},
	AlgAES256GCMHKDFSHA512Commit:    {ID: AlgAES256GCMHKDFSHA512Commit, Name: "AES_256_GCM_HKDF_SHA512_COMMIT_KEY", FormatVersion: 2, KeyLength: 32, KDFHash: crypto.SHA512, Committing: true},
	AlgAES256GCMHKDFSHA512CommitECDSAP384: {
		ID: AlgAES256GCMHKDFSHA512CommitECDSAP384, Name: "AES_256_GCM_HKDF_SHA512_COMMIT_KEY_ECDSA_P384", FormatVersion: 2,
		KeyLength: 32, KDFHash: crypto.SHA512, Committing: true, Curve: elliptic.P384(), SignatureHash: crypto.SHA384,
	},
}

// SuiteByID looks up a supported suite.
func SuiteByID(id AlgorithmID) (Suite, error) {
	suite, ok := suites[id]
	if !ok {
		return Suite{}, fmt.Errorf("%w: 0x%04x", ErrUnsupportedSuite, uint16(id))
	}
	return suite, nil
}

// SupportedSuites lists every suite in ascending id order.
func SupportedSuites() []Suite {
	out := make([]Suite, 0, len(suites))
	for _, suite := range suites {
		out = append(out, suite)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
