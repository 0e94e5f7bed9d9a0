// Package token signs and verifies the compact session tokens carried in
// the session cookie. One codec, two swappable signing strategies (HS256
// and Ed25519); verification distinguishes malformed input, bad signatures,
// and expiry.
package token
