// Package session defines the durable session record, the Store interface
// it is persisted through, and Redis and Postgres backends. A session ID is
// never derived from subject identity or time; the record is the single
// authority on whether a login is still live.
package session
