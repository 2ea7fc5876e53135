package session

import "encoding/binary"

// appendU32 appends v as 4 big-endian bytes, matching the wire codec's
// convention for every multi-byte field.
func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
