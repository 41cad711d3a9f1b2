// Package config loads the YAML configuration of the tsclient command.
package config

import (
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/digitorus/tsclient"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is sent when user_agent is not configured.
const DefaultUserAgent = "tsclient"

// Config represents the YAML configuration of a TSA client.
type Config struct {
	// URL of the Time-Stamping Authority.
	URL string `yaml:"url"`

	// Method is POST or GET.
	Method string `yaml:"method"`

	// Hash names the digest algorithm, for example sha256 or sha3-512.
	Hash string `yaml:"hash"`

	// CertReq asks the TSA to embed its certificate. Defaults to true.
	CertReq *bool `yaml:"cert_req"`

	// Nonce sends a random nonce with each request. Defaults to true.
	Nonce *bool `yaml:"nonce"`

	// Policy is the dotted OID of the requested TSA policy.
	Policy string `yaml:"policy"`

	// AcceptedPolicies lists the dotted OIDs a token may be issued under.
	AcceptedPolicies []string `yaml:"accepted_policies"`

	Timeout         time.Duration `yaml:"timeout"`
	MaxResponseSize int64         `yaml:"max_response_size"`
	UserAgent       string        `yaml:"user_agent"`

	Proxy ProxyConfig `yaml:"proxy"`
	Trust TrustConfig `yaml:"trust"`
}

// ProxyConfig holds the HTTP proxy settings.
type ProxyConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`

	// PasswordEnv is the name of the environment variable containing the
	// proxy password.
	PasswordEnv string `yaml:"password_env"`

	NoProxy string `yaml:"no_proxy"`
}

// TrustConfig lists PEM files used to verify token signatures.
type TrustConfig struct {
	// Roots enables chain verification against these certificates.
	Roots []string `yaml:"roots"`

	// Certificates supplements the certificates embedded in tokens, which is
	// required when cert_req is false.
	Certificates []string `yaml:"certificates"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	certReq := true
	nonce := true
	return &Config{
		Method:          http.MethodPost,
		Hash:            "sha256",
		CertReq:         &certReq,
		Nonce:           &nonce,
		Timeout:         30 * time.Second,
		MaxResponseSize: tsclient.DefaultMaxResponseSize,
		UserAgent:       DefaultUserAgent,
	}
}

// Load reads a YAML configuration file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of Default. The result is not
// validated so that command line flags can still complete it; ClientConfig
// validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.URL == "" {
		result = multierror.Append(result, errors.New("url is required"))
	} else if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("url %q is not an absolute http or https URL", c.URL))
	}

	switch strings.ToUpper(c.Method) {
	case "", http.MethodPost, http.MethodGet:
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported method %q", c.Method))
	}

	if _, err := tsclient.ParseDigestAlgorithm(c.Hash); err != nil {
		result = multierror.Append(result, fmt.Errorf("hash: %w", err))
	}

	if c.Policy != "" {
		if _, err := ParseOID(c.Policy); err != nil {
			result = multierror.Append(result, fmt.Errorf("policy: %w", err))
		}
	}
	for _, p := range c.AcceptedPolicies {
		if _, err := ParseOID(p); err != nil {
			result = multierror.Append(result, fmt.Errorf("accepted_policies: %w", err))
		}
	}

	if c.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.MaxResponseSize < 0 {
		result = multierror.Append(result, fmt.Errorf("max_response_size must not be negative, got %d", c.MaxResponseSize))
	}

	if c.Proxy.URL == "" && (c.Proxy.Username != "" || c.Proxy.PasswordEnv != "") {
		result = multierror.Append(result, errors.New("proxy.url is required when proxy credentials are set"))
	}

	return result.ErrorOrNil()
}

// ClientConfig builds the tsclient configuration, including an HTTPTransport
// and a PKCS7Verifier loaded with the configured trust files.
func (c *Config) ClientConfig() (tsclient.Config, error) {
	if err := c.Validate(); err != nil {
		return tsclient.Config{}, fmt.Errorf("invalid config: %w", err)
	}

	hash, err := tsclient.ParseDigestAlgorithm(c.Hash)
	if err != nil {
		return tsclient.Config{}, err
	}

	var password string
	if c.Proxy.PasswordEnv != "" {
		password = os.Getenv(c.Proxy.PasswordEnv)
		if password == "" {
			return tsclient.Config{}, fmt.Errorf("environment variable %s is not set or empty", c.Proxy.PasswordEnv)
		}
	}
	transport, err := tsclient.NewHTTPTransport(&tsclient.HTTPOptions{
		Proxy:           c.Proxy.URL,
		ProxyUsername:   c.Proxy.Username,
		ProxyPassword:   password,
		NoProxy:         c.Proxy.NoProxy,
		Timeout:         c.Timeout,
		MaxResponseSize: c.MaxResponseSize,
		UserAgent:       c.UserAgent,
	})
	if err != nil {
		return tsclient.Config{}, err
	}

	verifier := &tsclient.PKCS7Verifier{}
	if len(c.Trust.Roots) > 0 {
		verifier.Roots = x509.NewCertPool()
		for _, path := range c.Trust.Roots {
			certs, err := LoadCertificates(path)
			if err != nil {
				return tsclient.Config{}, err
			}
			for _, cert := range certs {
				verifier.Roots.AddCert(cert)
			}
		}
	}
	for _, path := range c.Trust.Certificates {
		certs, err := LoadCertificates(path)
		if err != nil {
			return tsclient.Config{}, err
		}
		verifier.Certificates = append(verifier.Certificates, certs...)
	}

	cfg := tsclient.Config{
		URL:            c.URL,
		Method:         strings.ToUpper(c.Method),
		Hash:           hash,
		NoCertificates: c.CertReq != nil && !*c.CertReq,
		NoNonce:        c.Nonce != nil && !*c.Nonce,
		Transport:      transport,
		Verifier:       verifier,
	}
	if c.Policy != "" {
		if cfg.TSAPolicyOID, err = ParseOID(c.Policy); err != nil {
			return tsclient.Config{}, fmt.Errorf("policy: %w", err)
		}
	}
	for _, p := range c.AcceptedPolicies {
		oid, err := ParseOID(p)
		if err != nil {
			return tsclient.Config{}, fmt.Errorf("accepted_policies: %w", err)
		}
		cfg.AcceptedPolicies = append(cfg.AcceptedPolicies, oid)
	}
	return cfg, nil
}

// RequestOptions returns the request settings alone. Unlike ClientConfig it
// does not need a URL, which makes it usable for offline requests.
func (c *Config) RequestOptions() (*tsclient.RequestOptions, error) {
	hash, err := tsclient.ParseDigestAlgorithm(c.Hash)
	if err != nil {
		return nil, err
	}
	opts := &tsclient.RequestOptions{
		Hash:         hash,
		Certificates: c.CertReq == nil || *c.CertReq,
		Nonce:        c.Nonce == nil || *c.Nonce,
	}
	if c.Policy != "" {
		if opts.TSAPolicyOID, err = ParseOID(c.Policy); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// ParseOID parses a dotted object identifier such as 1.2.840.113549.
func ParseOID(s string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid object identifier %q", s)
	}
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid object identifier %q", s)
		}
		oid[i] = n
	}
	if oid[0] > 2 || (oid[0] < 2 && oid[1] > 39) {
		return nil, fmt.Errorf("invalid object identifier %q", s)
	}
	return oid, nil
}

// LoadCertificates reads every CERTIFICATE block of a PEM file.
func LoadCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificates: %w", err)
	}

	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate in %s: %w", path, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificate found in %s", path)
	}
	return certs, nil
}
