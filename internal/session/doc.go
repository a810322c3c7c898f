// Package session manages the lifecycle of the remote engine session:
// credential issuance with a client-generated fallback, full model replay
// on init and after expiry, and resumption from persisted credentials.
package session
