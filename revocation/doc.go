// Package revocation keeps a Redis denylist of token ids.
//
// Entries expire with the token they block, so the set never outgrows the live
// token population. Every transport failure is reported as ErrRedisUnavailable;
// callers must treat that as a rejection.
package revocation
