// Package rate limits token issuance with Redis fixed-window counters.
//
// Each hit is INCR followed by EXPIRE on the first hit of a window. Keys are
// <prefix>:sub:<subject> and <prefix>:ip:<address>.
package rate
