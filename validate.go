package tsclient

import (
	"encoding/asn1"
	"fmt"
)

// Validator checks a Time-Stamp response against the request that produced
// it. The zero value verifies signatures with a PKCS7Verifier and accepts any
// policy. A Validator holds no per-call state and may be shared.
type Validator struct {
	// Verifier checks the token signature. If nil, &PKCS7Verifier{} is used.
	Verifier SignatureVerifier

	// AcceptedPolicies restricts the TSA policies a token may be issued under.
	// Any policy is accepted when empty.
	AcceptedPolicies []asn1.ObjectIdentifier
}

// Validate decodes responseDER and returns its token if it binds to req.
//
// Checks run in a fixed order and stop at the first failure: decoding, the
// PKI status, token presence, the token signature, the message imprint, the
// nonce and finally the policy. A response that is not granted never reaches
// the signature check.
func (v *Validator) Validate(responseDER []byte, req *Request) (*Token, error) {
	if req == nil {
		return nil, &InputError{Msg: "no request to validate the response against"}
	}

	resp, err := ParseResponse(responseDER)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if resp.Token == nil {
		return nil, &ValidationError{Kind: ErrMissingToken}
	}
	token := resp.Token

	if err := v.verifier().VerifyToken(token); err != nil {
		return nil, &ValidationError{Kind: ErrSignatureInvalid, Err: err}
	}

	if !req.matchesImprint(token.imprint()) {
		return nil, &ValidationError{
			Kind: ErrDigestMismatch,
			Msg:  fmt.Sprintf("requested %s %x, token has %s %x", req.HashAlgorithm, req.HashedMessage, token.HashAlgorithmOID, token.HashedMessage),
		}
	}

	if req.Nonce != nil {
		if token.Nonce == nil {
			return nil, &ValidationError{Kind: ErrNonceMismatch, Msg: "token carries no nonce"}
		}
		if req.Nonce.Cmp(token.Nonce) != 0 {
			return nil, &ValidationError{Kind: ErrNonceMismatch, Msg: fmt.Sprintf("sent %x, received %x", req.Nonce, token.Nonce)}
		}
	}

	if err := v.checkPolicy(req, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (v *Validator) verifier() SignatureVerifier {
	if v == nil || v.Verifier == nil {
		return &PKCS7Verifier{}
	}
	return v.Verifier
}

func (v *Validator) checkPolicy(req *Request, token *Token) error {
	if len(req.TSAPolicyOID) > 0 && !req.TSAPolicyOID.Equal(token.Policy) {
		return &ValidationError{
			Kind: ErrPolicyMismatch,
			Msg:  fmt.Sprintf("requested %s, token issued under %s", req.TSAPolicyOID, token.Policy),
		}
	}
	if v == nil || len(v.AcceptedPolicies) == 0 {
		return nil
	}
	for _, policy := range v.AcceptedPolicies {
		if policy.Equal(token.Policy) {
			return nil
		}
	}
	return &ValidationError{Kind: ErrPolicyMismatch, Msg: token.Policy.String()}
}
