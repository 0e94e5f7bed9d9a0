// Package password provides the slow, salted credential hash used by the
// credential verifier. bcrypt with a tunable cost factor; never a fast or
// unsalted hash.
package password
