package tsclient

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/digitorus/pkcs7"
	digest "github.com/opencontainers/go-digest"
)

// Token represents a TimeStampToken returned by a TSA. See
// https://tools.ietf.org/html/rfc3161#section-2.4.2
type Token struct {
	// HashAlgorithm is UnknownDigestAlgorithm when the TSA used an algorithm
	// this package does not know; HashAlgorithmOID always holds the raw value.
	HashAlgorithm    DigestAlgorithm
	HashAlgorithmOID asn1.ObjectIdentifier
	HashedMessage    []byte

	// Time is the genTime asserted by the TSA.
	Time         time.Time
	Accuracy     time.Duration
	SerialNumber *big.Int
	Policy       asn1.ObjectIdentifier
	Ordering     bool
	Nonce        *big.Int

	// TSAName is the raw GeneralName of the TSA, if it included one.
	TSAName asn1.RawValue

	// Certificates contains the certificates embedded in the token.
	Certificates []*x509.Certificate

	// Extensions contains raw X.509 extensions from the Extensions field of the
	// TSTInfo.
	Extensions []pkix.Extension

	// Status is the PKIStatus of the response that carried the token, and
	// Warnings holds any non-fatal notes attached to it.
	Status   Status
	Warnings []string

	// Raw is the DER encoded ContentInfo of the token.
	Raw []byte

	p7 *pkcs7.PKCS7
}

// ParseToken parses a TimeStampToken in DER form. The signature is not
// verified, see SignatureVerifier.
func ParseToken(bytes []byte) (*Token, error) {
	p7, err := pkcs7.Parse(bytes)
	if err != nil {
		return nil, &MalformedResponseError{Msg: "invalid token", Err: err}
	}

	var inf tstInfo
	rest, err := asn1.Unmarshal(p7.Content, &inf)
	if err != nil {
		return nil, &MalformedResponseError{Msg: "invalid TSTInfo", Err: err}
	}
	if len(rest) > 0 {
		return nil, &MalformedResponseError{Msg: "trailing data in TSTInfo"}
	}

	if len(inf.MessageImprint.HashedMessage) == 0 {
		return nil, &MalformedResponseError{Msg: "Time-Stamp token contains no hashed message"}
	}

	return &Token{
		HashAlgorithm:    DigestAlgorithmFromOID(inf.MessageImprint.HashAlgorithm.Algorithm),
		HashAlgorithmOID: inf.MessageImprint.HashAlgorithm.Algorithm,
		HashedMessage:    inf.MessageImprint.HashedMessage,
		Time:             inf.Time,
		Accuracy:         inf.Accuracy.duration(),
		SerialNumber:     inf.SerialNumber,
		Policy:           inf.Policy,
		Ordering:         inf.Ordering,
		Nonce:            inf.Nonce,
		TSAName:          inf.TSA,
		Certificates:     p7.Certificates,
		Extensions:       inf.Extensions,
		Raw:              append([]byte(nil), bytes...),
		p7:               p7,
	}, nil
}

// ContentDigest returns the message imprint as an OCI content digest.
func (t *Token) ContentDigest() (digest.Digest, error) {
	return t.HashAlgorithm.ContentDigest(t.HashedMessage)
}

// Signer returns the certificate of the token signer if it is embedded in the
// token.
func (t *Token) Signer() *x509.Certificate {
	if t.p7 == nil {
		return nil
	}
	return t.p7.GetOnlySigner()
}

// Bounds returns the interval in which the token was created, that is genTime
// widened by the accuracy on both sides.
func (t *Token) Bounds() (time.Time, time.Time) {
	return t.Time.Add(-t.Accuracy), t.Time.Add(t.Accuracy)
}

// imprint rebuilds the message imprint carried by the token.
func (t *Token) imprint() messageImprint {
	return messageImprint{
		HashAlgorithm: pkix.AlgorithmIdentifier{Algorithm: t.HashAlgorithmOID},
		HashedMessage: t.HashedMessage,
	}
}
