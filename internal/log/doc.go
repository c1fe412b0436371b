// Package log provides the slog setup used by canvasmirror, with automatic
// redaction of Canvas credentials.
//
// Canvas API tokens travel in the Authorization header, and file download
// URLs carry a "verifier" query parameter that grants access to the file
// without any token. Both end up in log attributes and error messages
// (a failed request logs its URL). SecureHandler masks them before the
// record reaches the output.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("download failed",
//	    "url", "https://canvas.example/files/1/download?verifier=abc", // verifier=***REDACTED***
//	    "authorization", "Bearer 7~abc",                               // ***REDACTED***
//	)
package log
