// Package guid implements the platform's structured unique identifier.
//
// A GUID is 22 bytes, big endian:
//
//	version(1) | objectType(1) | tenant(4) | platform(4) | pid(3) | unixMillis(6) | counter(3)
//
// and is written as 36 characters of unpadded lowercase base32 (a-z, 2-7).
// Every ledger document id is a GUID; Parse is the single validation point.
package guid
