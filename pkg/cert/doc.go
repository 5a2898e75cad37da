// Package cert provides certificate generation helpers for rawsock
// deployments.
//
// An Authority is a lightweight CA that issues ECDSA P-256 server and
// client certificates signed by its root. It is intended for test
// fixtures, development setups, and closed deployments where a private
// CA is acceptable; production deployments with an existing PKI should
// load their certificates directly into transport.TLSConfig.
//
// PEM helpers round-trip certificates and keys to disk so generated
// material can be shared between the server and CLI binaries.
package cert
