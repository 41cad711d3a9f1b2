package tsclient

import (
	"bytes"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"github.com/digitorus/pkcs7"
)

// RFC 5035 IssuerSerial, only the directoryName form of GeneralName is
// decoded.
type generalNames struct {
	Name asn1.RawValue `asn1:"optional,tag:4"`
}

type issuerAndSerial struct {
	IssuerName   generalNames
	SerialNumber *big.Int
}

type essCertIDv2 struct {
	HashAlgorithm pkix.AlgorithmIdentifier `asn1:"optional"`
	CertHash      []byte
	IssuerSerial  issuerAndSerial `asn1:"optional"`
}

type signingCertificateV2 struct {
	Certs []essCertIDv2
}

// checkSigningCertificate matches the ESS signing-certificate-v2 attribute of
// the signer against the certificate used to verify the signature. Tokens
// without the attribute are accepted.
func checkSigningCertificate(p7 *pkcs7.PKCS7, signer *x509.Certificate) error {
	var raw asn1.RawValue
	if err := p7.UnmarshalSignedAttribute(oidAttributeSigningCertificateV2, &raw); err != nil {
		return nil
	}

	var scv2 signingCertificateV2
	if rest, err := asn1.Unmarshal(raw.FullBytes, &scv2); err != nil {
		return fmt.Errorf("invalid signing-certificate-v2 attribute: %w", err)
	} else if len(rest) > 0 {
		return errors.New("trailing data after signing-certificate-v2 attribute")
	}
	if len(scv2.Certs) == 0 {
		return errors.New("signing-certificate-v2 attribute lists no certificate")
	}

	id := scv2.Certs[0]
	hashAlg := SHA256 // RFC 5035 default
	if len(id.HashAlgorithm.Algorithm) > 0 {
		hashAlg = DigestAlgorithmFromOID(id.HashAlgorithm.Algorithm)
	}
	sum, err := Digest(signer.Raw, hashAlg)
	if err != nil {
		return fmt.Errorf("signing-certificate-v2 attribute: %w", err)
	}
	if !bytes.Equal(sum, id.CertHash) {
		return errors.New("signing-certificate-v2 attribute does not match the signer certificate")
	}
	if id.IssuerSerial.SerialNumber != nil && id.IssuerSerial.SerialNumber.Cmp(signer.SerialNumber) != 0 {
		return errors.New("signing-certificate-v2 serial number does not match the signer certificate")
	}
	return nil
}
