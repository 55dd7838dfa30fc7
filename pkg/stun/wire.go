package stun

import (
	"encoding/binary"
	"fmt"
	"net"

	pionstun "github.com/pion/stun"
)

// Wire-level constants for the classic (RFC 3489) binding dialogue. pion/stun
// targets RFC 5389/8489 and no longer exposes the legacy SOURCE-ADDRESS,
// CHANGED-ADDRESS, or CHANGE-REQUEST attributes our dialogue needs, so those
// three stay as local constants; MAPPED-ADDRESS and XOR-MAPPED-ADDRESS reuse
// the library's attribute codes since those survived into RFC 5389 unchanged.
const (
	msgTypeBindingRequest  uint16 = 0x0001
	msgTypeBindingSuccess  uint16 = 0x0101

	attrMappedAddress    = uint16(pionstun.AttrMappedAddress)
	attrChangeRequest    uint16 = 0x0003
	attrSourceAddress    uint16 = 0x0004
	attrChangedAddress   uint16 = 0x0005
	attrXorMappedAddress = uint16(pionstun.AttrXORMappedAddress)

	familyIPv4 byte = 0x01
	familyIPv6 byte = 0x02
)

// magicCookie is the fixed constant marking STUN messages, reused verbatim
// from pion/stun rather than re-declared.
const magicCookie uint32 = uint32(pionstun.MagicCookie)

// transactionID is 12 random bytes identifying one request/response pair.
type transactionID [12]byte

func newTransactionID() (transactionID, error) {
	id, err := pionstun.NewTransactionID()
	if err != nil {
		return transactionID{}, err
	}
	var out transactionID
	copy(out[:], id[:])
	return out, nil
}

// changeRequestAttr encodes the 4-byte CHANGE-REQUEST attribute body
// (type=0x0003, length=0x0004, value=flags) as a full TLV attribute.
func changeRequestAttr(flags uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint16(buf[0:2], attrChangeRequest)
	binary.BigEndian.PutUint16(buf[2:4], 4)
	binary.BigEndian.PutUint32(buf[4:8], flags)
	return buf
}

// buildMessage assembles the 20-byte STUN header (type, length, magic
// cookie, transaction id) followed by the given payload.
func buildMessage(txID transactionID, payload []byte) []byte {
	msg := make([]byte, 20+len(payload))
	binary.BigEndian.PutUint16(msg[0:2], msgTypeBindingRequest)
	binary.BigEndian.PutUint16(msg[2:4], uint16(len(payload)))
	binary.BigEndian.PutUint32(msg[4:8], magicCookie)
	copy(msg[8:20], txID[:])
	copy(msg[20:], payload)
	return msg
}

// parseResponse validates the STUN header against the expected transaction
// id and walks the attribute TLVs, returning a Response with whichever of
// ext/src/changed the server sent. Unknown attribute types are skipped.
func parseResponse(data []byte, txID transactionID) (Response, error) {
	if len(data) < 20 {
		return Response{}, fmt.Errorf("stun: response is too short (%d bytes)", len(data))
	}
	if data[0] != 0x01 || data[1] != 0x01 {
		return Response{}, fmt.Errorf("stun: invalid response type 0x%02x%02x", data[0], data[1])
	}
	if binary.BigEndian.Uint32(data[4:8]) != magicCookie || string(data[8:20]) != string(txID[:]) {
		return Response{}, fmt.Errorf("stun: transaction id mismatch")
	}

	resp := Response{Ok: true}
	body := data[20:]
	offset := 0
	for offset+4 <= len(body) {
		attrType := binary.BigEndian.Uint16(body[offset : offset+2])
		attrLen := int(binary.BigEndian.Uint16(body[offset+2 : offset+4]))
		offset += 4
		if offset+attrLen > len(body) {
			break
		}
		value := body[offset : offset+attrLen]

		switch attrType {
		case attrMappedAddress, attrXorMappedAddress, attrSourceAddress, attrChangedAddress:
			xorID := transactionID{}
			if attrType == attrXorMappedAddress {
				xorID = txID
			}
			addr, err := parseAddress(value, xorID)
			if err != nil {
				return Response{}, err
			}
			switch attrType {
			case attrMappedAddress, attrXorMappedAddress:
				resp.Ext = addr
			case attrSourceAddress:
				resp.Src = addr
			case attrChangedAddress:
				resp.Changed = addr
			}
		}
		offset += attrLen
	}
	return resp, nil
}

// parseAddress decodes a STUN address attribute body:
// reserved(1) family(1) port(2) addr(4|16). When xorID is non-zero the port
// and address bytes are unmasked with the magic cookie + transaction id,
// repeating as needed; a zero xorID leaves the bytes untouched.
func parseAddress(data []byte, xorID transactionID) (*Address, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("stun: address attribute too short")
	}
	family := data[1]
	portBytes := xorBytes(data[2:4], xorID)
	port := binary.BigEndian.Uint16(portBytes)

	switch family {
	case familyIPv4:
		if len(data) < 8 {
			return nil, fmt.Errorf("stun: ipv4 address attribute too short")
		}
		ipBytes := xorBytes(data[4:8], xorID)
		ip := net.IP(ipBytes).To4()
		return &Address{IP: ip.String(), Port: port}, nil
	case familyIPv6:
		if len(data) < 20 {
			return nil, fmt.Errorf("stun: ipv6 address attribute too short")
		}
		ipBytes := xorBytes(data[4:20], xorID)
		ip := net.IP(ipBytes)
		return &Address{IP: ip.String(), Port: port}, nil
	default:
		return nil, fmt.Errorf("stun: invalid address family 0x%02x", family)
	}
}

// xorBytes applies the XOR mask formed by the magic cookie followed by the
// transaction id, repeating to cover data. A zero-value id (the non-XOR
// attributes) is treated as "no mask".
func xorBytes(data []byte, id transactionID) []byte {
	if id == (transactionID{}) {
		out := make([]byte, len(data))
		copy(out, data)
		return out
	}
	var mask [16]byte
	binary.BigEndian.PutUint32(mask[0:4], magicCookie)
	copy(mask[4:16], id[:])

	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ mask[i%len(mask)]
	}
	return out
}
