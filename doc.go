// Package tsclient implements the client side of the Time-Stamp Protocol (TSP)
// as specified in RFC3161 (Internet X.509 Public Key Infrastructure Time-Stamp
// Protocol (TSP)).
//
// A Client digests data, sends a Time-Stamp request to a Time-Stamping
// Authority over HTTP and only returns a token once its signature, message
// imprint, nonce and policy have been checked against the request. The
// building blocks (NewRequest, ParseResponse, Validator) can be used on their
// own for other transports.
package tsclient
