// Package db builds token-authenticated SQL Server connections and executes
// parameterized queries, table-valued functions, and stored procedures.
package db

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// AttrAccessToken is the driver-level connection attribute reserved for
// AAD access token injection (SQL_COPT_SS_ACCESS_TOKEN).
const AttrAccessToken uint32 = 1256

// EncodeTokenAttribute frames an access token in the byte layout the TDS
// federated-auth handshake mandates for attribute 1256: a 4-byte
// little-endian unsigned length prefix followed by the token encoded as
// UTF-16LE. The framing must be bit-exact; any deviation causes the server
// to reject the connection.
func EncodeTokenAttribute(token string) []byte {
	units := utf16.Encode([]rune(token))
	buf := make([]byte, 4+2*len(units))
	binary.LittleEndian.PutUint32(buf, uint32(2*len(units)))
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[4+2*i:], u)
	}
	return buf
}

// DecodeTokenAttribute is the inverse of EncodeTokenAttribute. The Go TDS
// driver wants the bare token string and applies the framing itself, so the
// factory unframes the canonical attribute value at the last step before
// handing it to the driver.
func DecodeTokenAttribute(attr []byte) (string, error) {
	if len(attr) < 4 {
		return "", fmt.Errorf("token attribute truncated: %d bytes", len(attr))
	}
	n := binary.LittleEndian.Uint32(attr)
	if n%2 != 0 || int(n) != len(attr)-4 {
		return "", fmt.Errorf("token attribute length prefix %d does not match payload of %d bytes", n, len(attr)-4)
	}
	units := make([]uint16, n/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(attr[4+2*i:])
	}
	return string(utf16.Decode(units)), nil
}
