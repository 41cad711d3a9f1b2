package tsclient

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"hash"
	"io"
	"strconv"
	"strings"

	digest "github.com/opencontainers/go-digest"
	"golang.org/x/crypto/sha3"
)

// DigestAlgorithm identifies the hash function used to build the message
// imprint of a Time-Stamp request. See
// https://tools.ietf.org/html/rfc3161#section-2.4.1
type DigestAlgorithm int

const (
	// UnknownDigestAlgorithm is the zero value and is never accepted.
	UnknownDigestAlgorithm DigestAlgorithm = iota
	SHA1
	SHA256
	SHA384
	SHA512
	SHA3_256
	SHA3_384
	SHA3_512
)

type algorithmInfo struct {
	name   string
	oid    asn1.ObjectIdentifier
	size   int
	hash   crypto.Hash
	new    func() hash.Hash
	digest digest.Algorithm
}

var algorithms = map[DigestAlgorithm]algorithmInfo{
	SHA1: {
		name: "SHA-1",
		oid:  asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26},
		size: sha1.Size,
		hash: crypto.SHA1,
		new:  sha1.New,
	},
	SHA256: {
		name:   "SHA-256",
		oid:    asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1},
		size:   sha256.Size,
		hash:   crypto.SHA256,
		new:    sha256.New,
		digest: digest.SHA256,
	},
	SHA384: {
		name:   "SHA-384",
		oid:    asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2},
		size:   sha512.Size384,
		hash:   crypto.SHA384,
		new:    sha512.New384,
		digest: digest.SHA384,
	},
	SHA512: {
		name:   "SHA-512",
		oid:    asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3},
		size:   sha512.Size,
		hash:   crypto.SHA512,
		new:    sha512.New,
		digest: digest.SHA512,
	},
	SHA3_256: {
		name: "SHA3-256",
		oid:  asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 8},
		size: 32,
		hash: crypto.SHA3_256,
		new:  sha3.New256,
	},
	SHA3_384: {
		name: "SHA3-384",
		oid:  asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 9},
		size: 48,
		hash: crypto.SHA3_384,
		new:  sha3.New384,
	},
	SHA3_512: {
		name: "SHA3-512",
		oid:  asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 10},
		size: 64,
		hash: crypto.SHA3_512,
		new:  sha3.New512,
	},
}

// DigestAlgorithms returns all supported algorithms in ascending order.
func DigestAlgorithms() []DigestAlgorithm {
	return []DigestAlgorithm{SHA1, SHA256, SHA384, SHA512, SHA3_256, SHA3_384, SHA3_512}
}

func (a DigestAlgorithm) String() string {
	if info, ok := algorithms[a]; ok {
		return info.name
	}
	return "unknown digest algorithm: " + strconv.Itoa(int(a))
}

// Available reports whether the algorithm is known to this package.
func (a DigestAlgorithm) Available() bool {
	_, ok := algorithms[a]
	return ok
}

// OID returns the object identifier placed in the AlgorithmIdentifier of the
// message imprint, or nil for an unknown algorithm.
func (a DigestAlgorithm) OID() asn1.ObjectIdentifier {
	return algorithms[a].oid
}

// Size returns the length in bytes of a digest produced by the algorithm.
func (a DigestAlgorithm) Size() int {
	return algorithms[a].size
}

// Hash returns the equivalent crypto.Hash identifier.
func (a DigestAlgorithm) Hash() crypto.Hash {
	return algorithms[a].hash
}

// New returns a fresh hash state. It returns nil for an unknown algorithm.
func (a DigestAlgorithm) New() hash.Hash {
	info, ok := algorithms[a]
	if !ok {
		return nil
	}
	return info.new()
}

// ContentDigest formats sum as an OCI content digest such as
// "sha256:b94d27...". Only the SHA-2 family has a registered OCI form.
func (a DigestAlgorithm) ContentDigest(sum []byte) (digest.Digest, error) {
	info, ok := algorithms[a]
	if !ok || info.digest == "" {
		return "", digest.ErrDigestUnsupported
	}
	if len(sum) != info.size {
		return "", &DigestLengthMismatchError{Algorithm: a, Got: len(sum)}
	}
	d := digest.NewDigestFromBytes(info.digest, sum)
	return d, d.Validate()
}

// ParseDigestAlgorithm looks up an algorithm by name. Matching ignores case
// and dashes, so "sha256", "SHA-256" and "Sha256" are equivalent.
func ParseDigestAlgorithm(name string) (DigestAlgorithm, error) {
	want := normalizeAlgorithmName(name)
	for alg, info := range algorithms {
		if normalizeAlgorithmName(info.name) == want {
			return alg, nil
		}
	}
	return UnknownDigestAlgorithm, &InputError{Msg: "unsupported digest algorithm " + strconv.Quote(name), Err: ErrUnsupportedAlgorithm}
}

func normalizeAlgorithmName(name string) string {
	return strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(strings.TrimSpace(name)))
}

// DigestAlgorithmFromOID returns the algorithm registered for oid, or
// UnknownDigestAlgorithm.
func DigestAlgorithmFromOID(oid asn1.ObjectIdentifier) DigestAlgorithm {
	for alg, info := range algorithms {
		if info.oid.Equal(oid) {
			return alg
		}
	}
	return UnknownDigestAlgorithm
}

// Digest computes the message imprint of data.
func Digest(data []byte, alg DigestAlgorithm) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	h := alg.New()
	if h == nil {
		return nil, &InputError{Msg: alg.String(), Err: ErrUnsupportedAlgorithm}
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// DigestReader computes the message imprint of everything read from r.
func DigestReader(r io.Reader, alg DigestAlgorithm) ([]byte, error) {
	h := alg.New()
	if h == nil {
		return nil, &InputError{Msg: alg.String(), Err: ErrUnsupportedAlgorithm}
	}
	n, err := io.Copy(h, r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEmptyPayload
	}
	return h.Sum(nil), nil
}
