// Package timestamptest provides an in-process Time-Stamping Authority for
// tests. It signs real RFC 3161 tokens and can be told to misbehave.
package timestamptest

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/digitorus/pkcs7"
	"github.com/digitorus/tsclient"
)

// DefaultPolicy is the policy tokens are issued under when TSA.Policy is nil.
var DefaultPolicy = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 4146, 2, 3}

var (
	oidTSTInfo                       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 4}
	oidAttributeSigningCertificateV2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47}
)

// TSA is a Time-Stamping Authority for testing purpose. The exported fields
// change how requests are answered and must not be modified while requests
// are being served.
type TSA struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate

	otherKeyOnce sync.Once
	otherKey     *rsa.PrivateKey
	otherKeyErr  error

	requests atomic.Int64

	// NowFunc provides the current time. time.Now() is used if nil.
	NowFunc func() time.Time

	// Policy defaults to DefaultPolicy.
	Policy asn1.ObjectIdentifier

	// Accuracy of genTime, one second if zero.
	Accuracy time.Duration

	// Status is sent instead of Granted. Tokens accompany GrantedWithMods only.
	Status        tsclient.Status
	StatusStrings []string
	FailureInfo   []tsclient.FailureInfo

	// TamperDigest flips a bit of the message imprint placed in the token.
	TamperDigest bool

	// OmitNonce drops the nonce of the request from the token.
	OmitNonce bool

	// OmitToken answers Granted without a TimeStampToken.
	OmitToken bool

	// WrongSigningKey signs tokens with a key that does not belong to the
	// certificate.
	WrongSigningKey bool

	// OmitSigningCertificate leaves out the ESS signing-certificate-v2
	// attribute.
	OmitSigningCertificate bool

	// SigningCertificate is named in the ESS signing-certificate-v2 attribute
	// instead of the TSA certificate.
	SigningCertificate *x509.Certificate
}

// CertificateOption changes the certificate template of NewTSA.
type CertificateOption func(*x509.Certificate)

// WithExtKeyUsage replaces the id-kp-timeStamping extended key usage of the
// TSA certificate.
func WithExtKeyUsage(usages ...x509.ExtKeyUsage) CertificateOption {
	return func(template *x509.Certificate) {
		template.ExtKeyUsage = usages
	}
}

// NewTSA creates a TSA with random credentials. The certificate is
// self-signed, valid from an hour ago and carries the id-kp-timeStamping
// extended key usage unless opts say otherwise.
func NewTSA(opts ...CertificateOption) (*TSA, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	serialNumber, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, err
	}
	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   "tsclient test TSA",
			Organization: []string{"Digitorus"},
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(365 * 24 * time.Hour), // 1 year
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, opt := range opts {
		opt(&template)
	}
	certBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, key.Public(), key)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, err
	}

	return &TSA{
		key:  key,
		cert: cert,
	}, nil
}

// Certificate returns the certificate of the TSA.
func (tsa *TSA) Certificate() *x509.Certificate {
	return tsa.cert
}

// CertPool returns a pool holding only the TSA certificate.
func (tsa *TSA) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(tsa.cert)
	return pool
}

// Requests returns the number of requests answered so far.
func (tsa *TSA) Requests() int {
	return int(tsa.requests.Load())
}

// Respond answers a DER encoded Time-Stamp request with a DER encoded
// Time-Stamp response. Requests that cannot be parsed are rejected with
// badDataFormat; an error is only returned when signing fails.
func (tsa *TSA) Respond(reqDER []byte) ([]byte, error) {
	tsa.requests.Add(1)

	req, err := tsclient.ParseRequest(reqDER)
	if err != nil {
		return errorResponse(tsclient.Rejection, []string{err.Error()}, tsclient.BadDataFormat)
	}

	switch tsa.Status {
	case tsclient.Granted, tsclient.GrantedWithMods:
	default:
		return errorResponse(tsa.Status, tsa.StatusStrings, tsa.FailureInfo...)
	}

	resp := response{
		Status: pkiStatusInfo{
			Status:       int(tsa.Status),
			StatusString: tsa.StatusStrings,
		},
	}
	if !tsa.OmitToken {
		token, err := tsa.token(req)
		if err != nil {
			return nil, err
		}
		resp.TimeStampToken = asn1.RawValue{FullBytes: token}
	}
	return asn1.Marshal(resp)
}

func (tsa *TSA) token(req *tsclient.Request) ([]byte, error) {
	info, err := tsa.populateTSTInfo(req)
	if err != nil {
		return nil, err
	}
	return tsa.generateSignedData(info, req.Certificates)
}

func (tsa *TSA) populateTSTInfo(req *tsclient.Request) ([]byte, error) {
	serialNumber, err := generateSerialNumber()
	if err != nil {
		return nil, err
	}
	nowFunc := tsa.NowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}
	policy := tsa.Policy
	if policy == nil {
		policy = DefaultPolicy
	}
	dirGeneralName, err := asn1.Marshal(asn1.RawValue{Tag: 4, Class: 2, IsCompound: true, Bytes: tsa.cert.RawSubject})
	if err != nil {
		return nil, err
	}

	hashedMessage := append([]byte(nil), req.HashedMessage...)
	if tsa.TamperDigest {
		hashedMessage[0] ^= 0x01
	}

	info := tstInfo{
		Version: 1,
		Policy:  policy,
		MessageImprint: messageImprint{
			HashAlgorithm: pkix.AlgorithmIdentifier{
				Algorithm:  req.HashAlgorithm.OID(),
				Parameters: asn1.NullRawValue,
			},
			HashedMessage: hashedMessage,
		},
		SerialNumber: serialNumber,
		Time:         nowFunc().UTC().Truncate(time.Second),
		Accuracy:     newAccuracy(tsa.Accuracy),
		TSA:          asn1.RawValue{Tag: 0, Class: 2, IsCompound: true, Bytes: dirGeneralName},
	}
	if !tsa.OmitNonce {
		info.Nonce = req.Nonce
	}
	return asn1.Marshal(info)
}

func (tsa *TSA) generateSignedData(info []byte, addCertificate bool) ([]byte, error) {
	signedData, err := pkcs7.NewSignedData(info)
	if err != nil {
		return nil, err
	}
	signedData.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	signedData.SetContentType(oidTSTInfo)
	signedData.GetSignedData().Version = 3

	config := pkcs7.SignerInfoConfig{SkipCertificates: !addCertificate}
	if !tsa.OmitSigningCertificate {
		essCert := tsa.cert
		if tsa.SigningCertificate != nil {
			essCert = tsa.SigningCertificate
		}
		essBytes, err := signingCertificateV2Attribute(essCert)
		if err != nil {
			return nil, err
		}
		config.ExtraSignedAttributes = []pkcs7.Attribute{
			{
				Type:  oidAttributeSigningCertificateV2,
				Value: asn1.RawValue{FullBytes: essBytes},
			},
		}
	}

	var signer crypto.Signer = tsa.key
	if tsa.WrongSigningKey {
		if signer, err = tsa.foreignKey(); err != nil {
			return nil, err
		}
	}
	if err := signedData.AddSigner(tsa.cert, signer, config); err != nil {
		return nil, err
	}
	return signedData.Finish()
}

func (tsa *TSA) foreignKey() (*rsa.PrivateKey, error) {
	tsa.otherKeyOnce.Do(func() {
		tsa.otherKey, tsa.otherKeyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	return tsa.otherKey, tsa.otherKeyErr
}

func signingCertificateV2Attribute(cert *x509.Certificate) ([]byte, error) {
	sum, err := tsclient.Digest(cert.Raw, tsclient.SHA256)
	if err != nil {
		return nil, err
	}
	// HashAlgorithm is left out, SHA-256 is the default.
	return asn1.Marshal(signingCertificateV2{
		Certs: []essCertIDv2{{
			CertHash: sum,
			IssuerSerial: issuerAndSerial{
				IssuerName: generalNames{
					Name: asn1.RawValue{Tag: 4, Class: 2, IsCompound: true, Bytes: cert.RawIssuer},
				},
				SerialNumber: cert.SerialNumber,
			},
		}},
	})
}

func errorResponse(status tsclient.Status, statusStrings []string, failureInfo ...tsclient.FailureInfo) ([]byte, error) {
	if status == tsclient.Granted || status == tsclient.GrantedWithMods {
		return nil, errors.New("error response requires a status other than granted")
	}
	var bs asn1.BitString
	for _, f := range failureInfo {
		if f >= 0 {
			setFlag(&bs, int(f))
		}
	}
	return asn1.Marshal(response{
		Status: pkiStatusInfo{
			Status:       int(status),
			StatusString: statusStrings,
			FailInfo:     bs,
		},
	})
}

// setFlag sets bit i, counting from the most significant bit of the first
// byte as ASN.1 does.
func setFlag(bs *asn1.BitString, i int) {
	for len(bs.Bytes) <= i/8 {
		bs.Bytes = append(bs.Bytes, 0)
	}
	bs.Bytes[i/8] |= 1 << uint(7-i%8)
	if i+1 > bs.BitLength {
		bs.BitLength = i + 1
	}
}

func generateSerialNumber() (*big.Int, error) {
	randomBytes := make([]byte, 20)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(randomBytes), nil
}

func newAccuracy(d time.Duration) accuracy {
	if d <= 0 {
		return accuracy{Seconds: 1}
	}
	seconds := d.Truncate(time.Second)
	ms := (d - seconds).Truncate(time.Millisecond)
	us := (d - seconds - ms).Truncate(time.Microsecond)
	return accuracy{
		Seconds:      int64(seconds / time.Second),
		Milliseconds: int64(ms / time.Millisecond),
		Microseconds: int64(us / time.Microsecond),
	}
}
