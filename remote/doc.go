// Package remote is a file-transfer client core over three transports:
// plain FTP, FTP secured with explicit TLS, and SFTP over SSH.
//
// A Selector opens a Connection; List, Upload, Download, Delete, Rename and
// MakeDirectory operate on it and report failures as *Error values whose
// Kind callers can branch on. Upload and Download optionally verify the
// transfer with MD5 digests: locally computed, and fetched from FTP servers
// through the XMD5/MD5 extension commands when they exist. Verification
// never fails just because a server cannot report a digest; it is skipped.
//
// Every operation is synchronous and a Connection handles one call at a
// time. Bounding a call in time is left to the caller.
package remote
