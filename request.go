package tsclient

import (
	"bytes"
	"crypto/rand"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"io"
	"math/big"
)

// nonceBits is the size of generated nonces.
const nonceBits = 160

// Request represents an Time-Stamp request. See
// https://tools.ietf.org/html/rfc3161#section-2.4.1
type Request struct {
	HashAlgorithm DigestAlgorithm
	HashedMessage []byte

	// TSAPolicyOID asks the TSA to issue the token under a specific policy.
	TSAPolicyOID asn1.ObjectIdentifier

	// Nonce binds the response to this request. It is nil when no nonce is
	// sent.
	Nonce *big.Int

	// Certificates indicates if the TSA needs to return the signing certificate
	// and optionally any other certificates of the chain as part of the response.
	Certificates bool

	// Extensions contains raw X.509 extensions from the Extensions field of the
	// Time-Stamp request. When parsing requests, this can be used to extract
	// non-critical extensions that are not parsed by this package. When
	// marshaling requests, the Extensions field is ignored, see
	// ExtraExtensions.
	Extensions []pkix.Extension

	// ExtraExtensions contains extensions to be copied, raw, into any marshaled
	// Time-Stamp request. The ExtraExtensions field is not populated when
	// parsing Time-Stamp requests, see Extensions.
	ExtraExtensions []pkix.Extension
}

// ParseRequest parses an timestamp request in DER form.
func ParseRequest(bytes []byte) (*Request, error) {
	var err error
	var rest []byte
	var req request

	if rest, err = asn1.Unmarshal(bytes, &req); err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, ParseError("trailing data in Time-Stamp request")
	}

	if len(req.MessageImprint.HashedMessage) == 0 {
		return nil, ParseError("Time-Stamp request contains no hashed message")
	}

	hashAlg := DigestAlgorithmFromOID(req.MessageImprint.HashAlgorithm.Algorithm)
	if hashAlg == UnknownDigestAlgorithm {
		return nil, ParseError("Time-Stamp request uses unknown hash function")
	}

	return &Request{
		HashAlgorithm: hashAlg,
		HashedMessage: req.MessageImprint.HashedMessage,
		TSAPolicyOID:  req.ReqPolicy,
		Nonce:         req.Nonce,
		Certificates:  req.CertReq,
		Extensions:    req.Extensions,
	}, nil
}

// Marshal marshals the Time-Stamp request to ASN.1 DER encoded form.
func (req *Request) Marshal() ([]byte, error) {
	if req == nil {
		return nil, &EncodingError{Err: errors.New("nil request")}
	}
	oid := req.HashAlgorithm.OID()
	if oid == nil {
		return nil, &EncodingError{Err: ErrUnsupportedAlgorithm}
	}
	der, err := asn1.Marshal(request{
		Version:        1,
		MessageImprint: req.messageImprint(),
		ReqPolicy:      req.TSAPolicyOID,
		Nonce:          req.Nonce,
		CertReq:        req.Certificates,
		Extensions:     req.ExtraExtensions,
	})
	if err != nil {
		return nil, &EncodingError{Err: err}
	}
	return der, nil
}

func (req *Request) messageImprint() messageImprint {
	return messageImprint{
		HashAlgorithm: pkix.AlgorithmIdentifier{
			Algorithm: req.HashAlgorithm.OID(),
			Parameters: asn1.RawValue{
				Tag: 5, /* ASN.1 NULL */
			},
		},
		HashedMessage: req.HashedMessage,
	}
}

// matchesImprint reports whether a token imprint is the one this request
// asked for. Absent and NULL algorithm parameters are treated alike.
func (req *Request) matchesImprint(mi messageImprint) bool {
	return req.HashAlgorithm.OID().Equal(mi.HashAlgorithm.Algorithm) &&
		bytes.Equal(req.HashedMessage, mi.HashedMessage)
}

// RequestOptions contains options for constructing timestamp requests.
type RequestOptions struct {
	// Hash contains the hash function that should be used when
	// constructing the timestamp request. If zero, SHA-256 will be used.
	Hash DigestAlgorithm

	// Certificates sets Request.Certificates
	Certificates bool

	// Nonce makes the request carry a freshly generated random nonce.
	Nonce bool

	// TSAPolicyOID sets Request.TSAPolicyOID
	TSAPolicyOID asn1.ObjectIdentifier

	// ExtraExtensions sets Request.ExtraExtensions
	ExtraExtensions []pkix.Extension
}

func (opts *RequestOptions) hash() DigestAlgorithm {
	if opts == nil || opts.Hash == UnknownDigestAlgorithm {
		return SHA256
	}
	return opts.Hash
}

// NewRequest builds a Time-Stamp request for an already computed digest and
// returns it together with its DER encoding. If opts is nil then sensible
// defaults are used.
func NewRequest(hashedMessage []byte, opts *RequestOptions) (*Request, []byte, error) {
	hashAlg := opts.hash()
	if !hashAlg.Available() {
		return nil, nil, &InputError{Msg: hashAlg.String(), Err: ErrUnsupportedAlgorithm}
	}
	if len(hashedMessage) != hashAlg.Size() {
		return nil, nil, &DigestLengthMismatchError{Algorithm: hashAlg, Got: len(hashedMessage)}
	}

	req := &Request{
		HashAlgorithm: hashAlg,
		HashedMessage: append([]byte(nil), hashedMessage...),
	}
	if opts != nil {
		req.Certificates = opts.Certificates
		req.TSAPolicyOID = cloneOID(opts.TSAPolicyOID)
		req.ExtraExtensions = cloneExtensions(opts.ExtraExtensions)
		if opts.Nonce {
			nonce, err := generateNonce(rand.Reader)
			if err != nil {
				return nil, nil, &EncodingError{Err: err}
			}
			req.Nonce = nonce
		}
	}

	der, err := req.Marshal()
	if err != nil {
		return nil, nil, err
	}
	return req, der, nil
}

// CreateRequest returns a timestamp request, and its DER encoding, for the
// content read from r. If opts is nil then sensible defaults are used.
func CreateRequest(r io.Reader, opts *RequestOptions) (*Request, []byte, error) {
	hashedMessage, err := DigestReader(r, opts.hash())
	if err != nil {
		return nil, nil, err
	}
	return NewRequest(hashedMessage, opts)
}

func cloneExtensions(exts []pkix.Extension) []pkix.Extension {
	if exts == nil {
		return nil
	}
	ret := make([]pkix.Extension, len(exts))
	for i, ext := range exts {
		ret[i] = pkix.Extension{
			Id:       cloneOID(ext.Id),
			Critical: ext.Critical,
			Value:    append([]byte(nil), ext.Value...),
		}
	}
	return ret
}

// generateNonce picks a random number in [1, 2^nonceBits). Zero is skipped so
// the nonce always survives DER encoding as a non-empty INTEGER.
func generateNonce(random io.Reader) (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), nonceBits)
	for {
		nonce, err := rand.Int(random, limit)
		if err != nil {
			return nil, errors.New("error generating nonce: " + err.Error())
		}
		if nonce.Sign() > 0 {
			return nonce, nil
		}
	}
}
