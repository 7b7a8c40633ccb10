package btprobe

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxEIRPacketLength is the maximum allowed advertising packet
// and scan response packet length
const MaxEIRPacketLength = 31

// advertising data field types
const (
	typeFlags            = 0x01 // Flags
	typeAllUUID128       = 0x07 // Complete List of 128-bit Service Class UUIDs
	typeCompleteName     = 0x09 // Complete Local Name
	typeAppearance       = 0x19 // Appearance
	typeManufacturerData = 0xFF // Manufacturer Specific Data
)

// flag bits
const (
	flagLimitedDiscoverable = 1 << iota // LE Limited Discoverable Mode
	flagGeneralDiscoverable             // LE General Discoverable Mode
	flagLEOnly                          // BR/EDR Not Supported
)

// vendorID is the manufacturer identifier carried in the manufacturer-data
// structure, little-endian on the wire
var vendorID = []byte{0x90, 0x05}

type advPacket struct {
	data []byte
}

// appendField appends a single advertising data structure.
// A field consists of len, typ, data; len counts typ plus len(data).
func (p *advPacket) appendField(typ byte, data []byte) {
	p.data = append(p.data, byte(len(data)+1))
	p.data = append(p.data, typ)
	p.data = append(p.data, data...)
}

// advertisingPayload constructs the fixed advertising packet: flags,
// appearance, the complete 128-bit service UUID (reversed on the wire) and
// a manufacturer-data structure carrying the current notify interval in
// little-endian milliseconds. The recipe must not change; deployed client
// apps match on it during discovery.
func advertisingPayload(serviceUUID string, notifyIntervalMs uint16) ([]byte, error) {
	uuid, err := uuid128Bytes(serviceUUID)
	if err != nil {
		return nil, err
	}

	adv := new(advPacket)
	adv.appendField(typeFlags, []byte{flagGeneralDiscoverable | flagLEOnly})
	adv.appendField(typeAppearance, []byte{0x00, 0x00})
	adv.appendField(typeAllUUID128, reverseBytes(uuid))

	mfData := make([]byte, 4)
	copy(mfData, vendorID)
	binary.LittleEndian.PutUint16(mfData[2:], notifyIntervalMs)
	adv.appendField(typeManufacturerData, mfData)

	if len(adv.data) > MaxEIRPacketLength {
		return nil, fmt.Errorf("advertising packet too long (%d bytes, max %d)", len(adv.data), MaxEIRPacketLength)
	}

	return adv.data, nil
}

// scanResponsePayload constructs the scan response packet containing the
// complete local name
func scanResponsePayload(name string) ([]byte, error) {
	scan := new(advPacket)
	scan.appendField(typeCompleteName, []byte(name))

	if len(scan.data) > MaxEIRPacketLength {
		return nil, fmt.Errorf("scan response packet too long (%d bytes, max %d)", len(scan.data), MaxEIRPacketLength)
	}

	return scan.data, nil
}

// uuid128Bytes parses a canonical hyphenated 128-bit UUID string into its
// 16 big-endian bytes
func uuid128Bytes(uuid string) ([]byte, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(uuid, "-", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID `%s`: %w", uuid, err)
	}
	if len(b) != 16 {
		return nil, fmt.Errorf("invalid service UUID `%s`: have %d bytes, want 16", uuid, len(b))
	}
	return b, nil
}

func reverseBytes(b []byte) []byte {
	r := make([]byte, len(b))
	for i, v := range b {
		r[len(b)-1-i] = v
	}
	return r
}
