package stun

import (
	"net"
	"testing"
)

func encodeAddrAttr(attrType uint16, addr *Address, xorID transactionID) []byte {
	ip := net.ParseIP(addr.IP)
	var ipBytes []byte
	var family byte
	if v4 := ip.To4(); v4 != nil {
		ipBytes = v4
		family = familyIPv4
	} else {
		ipBytes = ip.To16()
		family = familyIPv6
	}

	portBuf := []byte{byte(addr.Port >> 8), byte(addr.Port)}
	maskedPort := xorBytes(portBuf, xorID)
	maskedIP := xorBytes(ipBytes, xorID)

	body := append([]byte{0x00, family}, maskedPort...)
	body = append(body, maskedIP...)

	head := []byte{byte(attrType >> 8), byte(attrType), byte(len(body) >> 8), byte(len(body))}
	return append(head, body...)
}

func buildTestResponse(txID transactionID, ext, src, changed *Address) []byte {
	var body []byte
	if ext != nil {
		body = append(body, encodeAddrAttr(attrXorMappedAddress, ext, txID)...)
	}
	if src != nil {
		body = append(body, encodeAddrAttr(attrSourceAddress, src, transactionID{})...)
	}
	if changed != nil {
		body = append(body, encodeAddrAttr(attrChangedAddress, changed, transactionID{})...)
	}
	head := make([]byte, 20)
	head[0], head[1] = 0x01, 0x01
	head[2] = byte(len(body) >> 8)
	head[3] = byte(len(body))
	head[4], head[5], head[6], head[7] = 0x21, 0x12, 0xA4, 0x42
	copy(head[8:20], txID[:])
	return append(head, body...)
}

func TestXorMappedAddressRoundTripIPv4(t *testing.T) {
	txID := transactionID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	want := &Address{IP: "203.0.113.7", Port: 54321}

	msg := buildTestResponse(txID, want, nil, nil)
	resp, err := parseResponse(msg, txID)
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if resp.Ext == nil || resp.Ext.IP != want.IP || resp.Ext.Port != want.Port {
		t.Fatalf("got %+v, want %+v", resp.Ext, want)
	}
}

func TestXorMappedAddressRoundTripIPv6(t *testing.T) {
	txID := transactionID{9, 8, 7, 6, 5, 4, 3, 2, 1, 0, 255, 254}
	want := &Address{IP: "2001:db8::1", Port: 443}

	msg := buildTestResponse(txID, want, nil, nil)
	resp, err := parseResponse(msg, txID)
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if resp.Ext == nil || resp.Ext.IP != want.IP || resp.Ext.Port != want.Port {
		t.Fatalf("got %+v, want %+v", resp.Ext, want)
	}
}

func TestParseResponseRejectsTransactionMismatch(t *testing.T) {
	txID := transactionID{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	other := transactionID{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}
	msg := buildTestResponse(txID, &Address{IP: "1.2.3.4", Port: 1}, nil, nil)

	if _, err := parseResponse(msg, other); err == nil {
		t.Fatal("expected transaction id mismatch error, got nil")
	}
}

func TestParseResponseRejectsShortMessage(t *testing.T) {
	if _, err := parseResponse([]byte{0x01, 0x01, 0x00}, transactionID{}); err == nil {
		t.Fatal("expected short-message error, got nil")
	}
}

func TestBuildMessageHeader(t *testing.T) {
	txID := transactionID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	msg := buildMessage(txID, nil)
	if len(msg) != 20 {
		t.Fatalf("expected 20-byte header-only message, got %d bytes", len(msg))
	}
	if msg[0] != 0x00 || msg[1] != 0x01 {
		t.Fatalf("expected binding request type 0x0001, got %#x%#x", msg[0], msg[1])
	}
	if msg[4] != 0x21 || msg[5] != 0x12 || msg[6] != 0xA4 || msg[7] != 0x42 {
		t.Fatal("magic cookie mismatch")
	}
	for i := 0; i < 12; i++ {
		if msg[8+i] != txID[i] {
			t.Fatalf("transaction id mismatch at byte %d", i)
		}
	}
}

func TestChangeRequestAttr(t *testing.T) {
	attr := changeRequestAttr(0x00000006)
	if len(attr) != 8 {
		t.Fatalf("expected 8-byte attribute, got %d", len(attr))
	}
	if attr[0] != 0x00 || attr[1] != 0x03 || attr[2] != 0x00 || attr[3] != 0x04 {
		t.Fatal("change-request type/length mismatch")
	}
	if attr[4] != 0 || attr[5] != 0 || attr[6] != 0 || attr[7] != 0x06 {
		t.Fatal("change-request flags mismatch")
	}
}
