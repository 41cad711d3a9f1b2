package tsclient

import (
	"crypto/x509"
	"errors"
	"fmt"
)

// SignatureVerifier checks the signature of a token and the certificate that
// produced it.
type SignatureVerifier interface {
	VerifyToken(token *Token) error
}

// PKCS7Verifier verifies the CMS signature of a token with
// github.com/digitorus/pkcs7.
//
// The signer certificate is looked up among the certificates embedded in the
// token and Certificates. It must carry the id-kp-timeStamping extended key
// usage and, when the token names it in a signing-certificate-v2 attribute,
// match that attribute. The chain up to Roots is only verified when Roots is
// set.
type PKCS7Verifier struct {
	Roots        *x509.CertPool
	Certificates []*x509.Certificate
}

// VerifyToken implements SignatureVerifier.
func (v *PKCS7Verifier) VerifyToken(token *Token) error {
	if token == nil || token.p7 == nil {
		return errors.New("token carries no signed data")
	}

	p7 := *token.p7
	p7.Certificates = append(append([]*x509.Certificate(nil), token.p7.Certificates...), v.Certificates...)
	if len(p7.Certificates) == 0 {
		return errors.New("no certificate available to verify the token signature")
	}

	signer := p7.GetOnlySigner()
	if signer == nil {
		return errors.New("token must have exactly one signer with a known certificate")
	}
	if !hasTimeStampingUsage(signer) {
		return fmt.Errorf("signer certificate %q is not valid for time-stamping", signer.Subject.CommonName)
	}
	if err := checkSigningCertificate(&p7, signer); err != nil {
		return err
	}

	intermediates := x509.NewCertPool()
	for _, cert := range p7.Certificates {
		intermediates.AddCert(cert)
	}
	return p7.VerifyWithOpts(x509.VerifyOptions{
		Roots:         v.Roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
	})
}

func hasTimeStampingUsage(cert *x509.Certificate) bool {
	for _, eku := range cert.ExtKeyUsage {
		if eku == x509.ExtKeyUsageTimeStamping {
			return true
		}
	}
	return false
}
