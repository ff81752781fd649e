// Package llsd serializes and parses LLSD, the self-describing structured
// value format used for LEAP message bodies.
//
// Ownership boundary:
// - the Go value model for LLSD data (undef, bool, int, real, string,
//   uuid, binary, date, uri, array, map)
// - the notation formatter used for all outbound frames
// - parsers for the binary, XML, and notation encodings
// - format sniffing, since a peer may send any of the three
package llsd
