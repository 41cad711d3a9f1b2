package tsclient

import "encoding/asn1"

// Response is a decoded Time-Stamp response. See
// https://tools.ietf.org/html/rfc3161#section-2.4.2
type Response struct {
	Status        Status
	StatusStrings []string
	FailureInfo   FailureInfo

	// Token is nil when the TSA did not include a TimeStampToken.
	Token *Token
}

// ParseResponse parses a Time-Stamp response in DER form. Parsing succeeds for
// rejections as well, see Err; use Validator to check the response against a
// request.
//
// Decoding failures result in a MalformedResponseError.
func ParseResponse(bytes []byte) (*Response, error) {
	var err error
	var rest []byte
	var resp response

	if rest, err = asn1.Unmarshal(bytes, &resp); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	if len(rest) > 0 {
		return nil, &MalformedResponseError{Msg: "trailing data in Time-Stamp response"}
	}

	ret := &Response{
		Status:        resp.Status.Status,
		StatusStrings: resp.Status.StatusString,
		FailureInfo:   resp.Status.FailureInfo(),
	}
	// A token accompanying a rejection is never looked at.
	if !ret.Status.granted() || len(resp.TimeStampToken.FullBytes) == 0 {
		return ret, nil
	}

	if ret.Token, err = ParseToken(resp.TimeStampToken.FullBytes); err != nil {
		return nil, err
	}
	ret.Token.Status = ret.Status
	if ret.Status == GrantedWithMods {
		ret.Token.Warnings = append([]string{GrantedWithMods.String()}, ret.StatusStrings...)
	}
	return ret, nil
}

// Err returns a RejectionError when the TSA did not grant the request.
func (r *Response) Err() error {
	if r.Status.granted() {
		return nil
	}
	return &RejectionError{
		Status:        r.Status,
		StatusStrings: r.StatusStrings,
		FailureInfo:   r.FailureInfo,
	}
}
