package tsclient

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
)

func TestNewRequestDigestLength(t *testing.T) {
	for _, alg := range DigestAlgorithms() {
		for _, other := range DigestAlgorithms() {
			t.Run(fmt.Sprintf("%s/%s", alg, other), func(t *testing.T) {
				digest := make([]byte, other.Size())
				digest[0] = 1
				_, _, err := NewRequest(digest, &RequestOptions{Hash: alg})
				if alg.Size() == other.Size() {
					if err != nil {
						t.Fatalf("NewRequest() error = %v", err)
					}
					return
				}
				if !errors.Is(err, ErrDigestLengthMismatch) {
					t.Fatalf("NewRequest() error = %v, want %v", err, ErrDigestLengthMismatch)
				}
				var lengthErr *DigestLengthMismatchError
				if !errors.As(err, &lengthErr) || lengthErr.Got != other.Size() {
					t.Errorf("NewRequest() error = %#v", err)
				}
			})
		}
	}
}

func TestNewRequestDefaults(t *testing.T) {
	digest := bytes.Repeat([]byte{0xab}, 32)
	req, der, err := NewRequest(digest, nil)
	if err != nil {
		t.Fatal(err)
	}
	if req.HashAlgorithm != SHA256 {
		t.Errorf("req.HashAlgorithm: got %v, want %v", req.HashAlgorithm, SHA256)
	}
	if req.Nonce != nil {
		t.Errorf("req.Nonce: got %v, want nil", req.Nonce)
	}
	if req.Certificates {
		t.Error("req.Certificates: got true, want false")
	}

	// the request keeps its own copy of the digest
	digest[0] = 0
	if req.HashedMessage[0] != 0xab {
		t.Error("req.HashedMessage shares memory with the caller")
	}

	parsed, err := ParseRequest(der)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Nonce != nil || parsed.Certificates {
		t.Errorf("parsed request: nonce %v, certReq %t", parsed.Nonce, parsed.Certificates)
	}
}

func TestNewRequestCopiesOptions(t *testing.T) {
	opts := &RequestOptions{
		TSAPolicyOID: asn1.ObjectIdentifier{1, 2, 3, 4},
		ExtraExtensions: []pkix.Extension{
			{Id: asn1.ObjectIdentifier{1, 2, 3, 5}, Value: []byte{0x05, 0x00}},
		},
	}
	req, _, err := NewRequest(bytes.Repeat([]byte{0xab}, 32), opts)
	if err != nil {
		t.Fatal(err)
	}

	opts.TSAPolicyOID[3] = 99
	opts.ExtraExtensions[0].Id[3] = 99
	opts.ExtraExtensions[0].Value[0] = 0xff

	if got := req.TSAPolicyOID.String(); got != "1.2.3.4" {
		t.Errorf("req.TSAPolicyOID: got %s, want 1.2.3.4", got)
	}
	if got := req.ExtraExtensions[0].Id.String(); got != "1.2.3.5" {
		t.Errorf("req.ExtraExtensions[0].Id: got %s, want 1.2.3.5", got)
	}
	if req.ExtraExtensions[0].Value[0] != 0x05 {
		t.Error("req.ExtraExtensions shares memory with the caller")
	}
}

func TestNewRequestNonce(t *testing.T) {
	digest := bytes.Repeat([]byte{0x01}, 32)
	seen := make(map[string]bool)
	for i := 0; i < 16; i++ {
		req, der, err := NewRequest(digest, &RequestOptions{Nonce: true, Certificates: true})
		if err != nil {
			t.Fatal(err)
		}
		if req.Nonce == nil {
			t.Fatal("req.Nonce is nil")
		}
		if req.Nonce.BitLen() < 64 || req.Nonce.BitLen() > nonceBits {
			t.Errorf("req.Nonce has %d bits", req.Nonce.BitLen())
		}
		if seen[req.Nonce.String()] {
			t.Errorf("nonce %v generated twice", req.Nonce)
		}
		seen[req.Nonce.String()] = true

		parsed, err := ParseRequest(der)
		if err != nil {
			t.Fatal(err)
		}
		if parsed.Nonce.Cmp(req.Nonce) != 0 {
			t.Errorf("parsed.Nonce: got %x, want %x", parsed.Nonce, req.Nonce)
		}
	}
}

func TestGenerateNonceSkipsZero(t *testing.T) {
	random := append(make([]byte, nonceBits/8), bytes.Repeat([]byte{0x01}, nonceBits/8)...)
	nonce, err := generateNonce(bytes.NewReader(random))
	if err != nil {
		t.Fatal(err)
	}
	want := new(big.Int).SetBytes(bytes.Repeat([]byte{0x01}, nonceBits/8))
	if nonce.Cmp(want) != 0 {
		t.Errorf("generateNonce() = %x, want %x", nonce, want)
	}

	if _, err := generateNonce(bytes.NewReader(nil)); err == nil {
		t.Error("generateNonce() with an empty source: expected error")
	}
}

func TestCreateRequest(t *testing.T) {
	policy := asn1.ObjectIdentifier{2, 5, 6, 7}

	for _, alg := range DigestAlgorithms() {
		t.Run(alg.String(), func(t *testing.T) {
			msg := "Content to by timestamped"

			h := alg.New()
			_, err := h.Write([]byte(msg))
			if err != nil {
				t.Fatal(err)
			}
			hashedMsg := h.Sum(nil)

			req, der, err := CreateRequest(strings.NewReader(msg), &RequestOptions{
				Hash:         alg,
				Nonce:        true,
				TSAPolicyOID: policy,
				Certificates: true,
			})
			if err != nil {
				t.Fatal(err)
			}

			if len(der) == 0 {
				t.Error("request contains no bytes")
			}

			reqCheck, err := ParseRequest(der)
			if err != nil {
				t.Fatal(err)
			}

			if reqCheck.HashAlgorithm != alg {
				t.Errorf("reqCheck.HashAlgorithm: got %v, want %v", reqCheck.HashAlgorithm, alg)
			}

			if !bytes.Equal(reqCheck.HashedMessage, hashedMsg) {
				t.Errorf("reqCheck.HashedMessage: got %x, want %x", reqCheck.HashedMessage, hashedMsg)
			}

			if reqCheck.Nonce.Cmp(req.Nonce) != 0 {
				t.Errorf("reqCheck.Nonce: got %x, want %x", reqCheck.Nonce, req.Nonce)
			}

			if reqCheck.Certificates != true {
				t.Errorf("reqCheck.Certificates: got %t, want %t", reqCheck.Certificates, true)
			}

			if !reqCheck.TSAPolicyOID.Equal(policy) {
				t.Errorf("reqCheck.TSAPolicyOID: got %v, want %v", reqCheck.TSAPolicyOID, policy)
			}
		})
	}
}

func TestCreateRequestEmpty(t *testing.T) {
	_, _, err := CreateRequest(strings.NewReader(""), nil)
	if !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("CreateRequest() error = %v, want %v", err, ErrEmptyPayload)
	}
}

func TestMarshalRequest(t *testing.T) {
	req, der, err := NewRequest(bytes.Repeat([]byte{0x2a}, 48), &RequestOptions{
		Hash:         SHA384,
		Nonce:        true,
		Certificates: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseRequest(der)
	if err != nil {
		t.Fatal(err)
	}

	reqBytes, err := parsed.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(reqBytes, der) {
		t.Error("Marshalled request bytes are not the same as parsed")
	}
	if !parsed.matchesImprint(req.messageImprint()) {
		t.Error("parsed request does not match the original imprint")
	}
}

func TestMarshalRequestErrors(t *testing.T) {
	var nilReq *Request
	if _, err := nilReq.Marshal(); err == nil {
		t.Error("expected error for nil request")
	}

	var encErr *EncodingError
	_, err := (&Request{HashedMessage: []byte{1}}).Marshal()
	if !errors.As(err, &encErr) || !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("Marshal() error = %v, want EncodingError wrapping %v", err, ErrUnsupportedAlgorithm)
	}
}

func TestParseRequestErrors(t *testing.T) {
	valid, err := (&Request{HashAlgorithm: SHA256, HashedMessage: make([]byte, 32)}).Marshal()
	if err != nil {
		t.Fatal(err)
	}
	emptyImprint, err := asn1.Marshal(request{
		Version: 1,
		MessageImprint: messageImprint{
			HashAlgorithm: (&Request{HashAlgorithm: SHA256}).messageImprint().HashAlgorithm,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	unknownHash, err := asn1.Marshal(request{
		Version: 1,
		MessageImprint: messageImprint{
			HashAlgorithm: pkix.AlgorithmIdentifier{Algorithm: asn1.ObjectIdentifier{1, 2, 3, 4}},
			HashedMessage: make([]byte, 32),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		der  []byte
	}{
		{"garbage", []byte("garbage")},
		{"trailing data", append(append([]byte(nil), valid...), 0x00)},
		{"empty imprint", emptyImprint},
		{"unknown hash", unknownHash},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseRequest(tc.der); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func BenchmarkCreateRequest(b *testing.B) {
	for n := 0; n < b.N; n++ {
		_, _, _ = CreateRequest(strings.NewReader("Content to be time-stamped"), nil)
	}
}

// ExampleCreateRequest demonstrates how to create a new time-stamping request
// for an io.Reader.
func ExampleCreateRequest() {
	_, _, err := CreateRequest(strings.NewReader("Content to by time-stamped"), nil)
	if err != nil {
		panic(err)
	}
}

// ExampleParseRequest demonstrates how to parse a raw der time-stamping request
func ExampleParseRequest() {
	// CreateRequest returns the request in der bytes
	_, createdRequest, err := CreateRequest(strings.NewReader("Content to by time-stamped"), nil)
	if err != nil {
		panic(err)
	}

	// ParseRequest parses a request in der bytes
	parsedRequest, err := ParseRequest(createdRequest)
	if err != nil {
		panic(err)
	}

	fmt.Printf("%x\n", parsedRequest.HashedMessage)
	// Output: 62633c3232115454963ce641e5095c48a85dbec913a08332ad38586b910a3b27
}
