// Package manifest fingerprints source images and persists the per-directory
// record of fingerprints already processed.
//
// # File Format
//
// Each source directory carries a hidden file named .resize-hash. It holds one
// lowercase hex fingerprint per line, each line terminated by '\n', with no
// header. Files written by older tools with CRLF line endings or stray blank
// lines are still read correctly.
//
// # Fingerprints
//
// A fingerprint is the MD5 digest of a file's raw bytes, hex encoded. Only the
// bytes matter: two files with identical content share a fingerprint whatever
// their names. MD5 is used for stability of the on-disk format, not for any
// security property.
//
// # Append-Only Contract
//
// A Manifest only grows. Fingerprints of deleted or modified files are kept,
// so reverting a file to earlier content does not reprocess it. Save is only
// expected to be called when Changed reports true, which keeps unchanged
// directories free of spurious writes.
package manifest
