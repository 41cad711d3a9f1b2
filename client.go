package tsclient

import (
	"context"
	"encoding/asn1"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/digitorus/tsclient/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Config describes a Client. Only URL is required.
type Config struct {
	// URL of the TSA, http or https.
	URL string

	// Method is the HTTP method, POST when empty.
	Method string

	// Hash is the digest algorithm, SHA-256 when zero.
	Hash DigestAlgorithm

	// NoCertificates stops the client from asking the TSA to embed its
	// certificate in the token. The certificate must then be supplied to the
	// Verifier.
	NoCertificates bool

	// NoNonce stops the client from sending a nonce.
	NoNonce bool

	// TSAPolicyOID is sent as reqPolicy and checked in the returned token.
	TSAPolicyOID asn1.ObjectIdentifier

	// AcceptedPolicies, if set, lists the only policies a token may carry.
	AcceptedPolicies []asn1.ObjectIdentifier

	// Transport defaults to an HTTPTransport with default options.
	Transport Transport

	// Verifier defaults to &PKCS7Verifier{}.
	Verifier SignatureVerifier
}

// Client obtains and validates time-stamp tokens from one TSA. A Client is
// immutable and safe for concurrent use.
type Client struct {
	url       string
	method    string
	reqOpts   RequestOptions
	transport Transport
	validator Validator
}

// NewClient checks cfg and returns a Client for it. All configuration problems
// are reported together.
func NewClient(cfg Config) (*Client, error) {
	var result *multierror.Error

	if cfg.URL == "" {
		result = multierror.Append(result, errors.New("TSA URL is required"))
	} else if u, err := url.Parse(cfg.URL); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid TSA URL: %w", err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("invalid TSA URL %q: want an absolute http or https URL", cfg.URL))
	}

	switch cfg.Method {
	case "":
		cfg.Method = http.MethodPost
	case http.MethodPost, http.MethodGet:
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported HTTP method %q", cfg.Method))
	}

	if cfg.Hash == UnknownDigestAlgorithm {
		cfg.Hash = SHA256
	}
	if !cfg.Hash.Available() {
		result = multierror.Append(result, &InputError{Msg: cfg.Hash.String(), Err: ErrUnsupportedAlgorithm})
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	if cfg.Transport == nil {
		t, err := NewHTTPTransport(nil)
		if err != nil {
			return nil, err
		}
		cfg.Transport = t
	}

	return &Client{
		url:    cfg.URL,
		method: cfg.Method,
		reqOpts: RequestOptions{
			Hash:         cfg.Hash,
			Certificates: !cfg.NoCertificates,
			Nonce:        !cfg.NoNonce,
			TSAPolicyOID: cloneOID(cfg.TSAPolicyOID),
		},
		transport: cfg.Transport,
		validator: Validator{
			Verifier:         cfg.Verifier,
			AcceptedPolicies: cloneOIDs(cfg.AcceptedPolicies),
		},
	}, nil
}

func cloneOID(oid asn1.ObjectIdentifier) asn1.ObjectIdentifier {
	if oid == nil {
		return nil
	}
	return append(asn1.ObjectIdentifier(nil), oid...)
}

func cloneOIDs(oids []asn1.ObjectIdentifier) []asn1.ObjectIdentifier {
	if oids == nil {
		return nil
	}
	ret := make([]asn1.ObjectIdentifier, len(oids))
	for i, oid := range oids {
		ret[i] = cloneOID(oid)
	}
	return ret
}

// Timestamp digests data, has the digest time-stamped by the TSA and returns
// the validated token. Empty data is rejected before anything is sent.
func (c *Client) Timestamp(ctx context.Context, data []byte) (*Token, error) {
	hashedMessage, err := Digest(data, c.reqOpts.Hash)
	if err != nil {
		return nil, err
	}
	return c.TimestampDigest(ctx, hashedMessage)
}

// TimestampDigest is like Timestamp for a digest computed by the caller with
// the configured hash algorithm.
func (c *Client) TimestampDigest(ctx context.Context, hashedMessage []byte) (*Token, error) {
	logger := log.GetLogger(ctx)
	id := uuid.NewString()

	req, der, err := NewRequest(hashedMessage, &c.reqOpts)
	if err != nil {
		return nil, err
	}
	logger.Debugf("[%s] built %s request for %x (nonce %t, certReq %t)", id, req.HashAlgorithm, req.HashedMessage, req.Nonce != nil, req.Certificates)

	respDER, err := c.transport.Send(ctx, c.url, c.method, ContentTypeQuery, der)
	if err != nil {
		logger.Errorf("[%s] %v", id, err)
		return nil, err
	}

	token, err := c.validator.Validate(respDER, req)
	if err != nil {
		logger.Errorf("[%s] %v", id, err)
		return nil, err
	}
	for _, w := range token.Warnings {
		logger.Warnf("[%s] TSA: %s", id, w)
	}
	logger.Debugf("[%s] token %s issued at %s", id, token.SerialNumber, token.Time)
	return token, nil
}

// URL returns the TSA URL of the client.
func (c *Client) URL() string {
	return c.url
}
