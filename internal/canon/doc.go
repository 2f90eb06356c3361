// Package canon provides the canonical encoding and content hashing shared by
// the ledger-writing side and the local store.
//
// Two records that are semantically equal produce identical canonical bytes,
// and therefore identical content hashes, no matter the order their fields
// were inserted in or which system wrote them.
//
// Encoding rules:
//   - UTF-8 output, no insignificant whitespace
//   - object keys sorted by UTF-8 byte order
//   - arrays keep their order
//   - integers in minimal decimal form
//   - NO floats: fractional quantities must be converted with FixedPoint first
//   - strings escape only quote, backslash and control characters
//
// This package imports nothing internal.
package canon
