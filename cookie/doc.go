// Package cookie carries the session token across HTTP requests. It knows
// nothing about token contents or validity; it only moves opaque strings.
package cookie
