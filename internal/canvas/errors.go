package canvas

import "errors"

// Fetch errors.
//
// Design decision: A throttled request that exhausts its retries is not an
// error. FetchOne returns the final 403 response so callers can treat it as
// "forbidden" with context only they have.
var (
	// ErrUnexpectedStatus is returned by Open and Head when the server
	// answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrInvalidURL is returned when a request URL cannot be parsed or is
	// not absolute.
	ErrInvalidURL = errors.New("invalid request URL")

	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrProxyNotSOCKS5 is returned when the proxy answers but does not
	// speak SOCKS5 without authentication.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// can be established.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")
)
