// Package sanitizer normalizes client-supplied values before validation and
// storage.
//
// All functions are idempotent. Invalid input is handled gracefully, usually
// by returning the empty string or a best-effort cleaned value rather than an
// error; validators decide whether the result is acceptable.
//
// Normalization includes:
//   - Phone numbers: E.164 when the number is valid for a supported region
//   - Strings: collapse whitespace, trim leading/trailing spaces
//   - Time labels: trim and zero-pad to HH:MM
//   - Slices: remove duplicates and empty values after normalization
package sanitizer
