package btprobe

import (
	"strings"
	"testing"

	"gotest.tools/assert"
)

func TestAdvertisingPayload(t *testing.T) {
	payload, err := advertisingPayload(ServiceUUID, 2000)
	assert.NilError(t, err)

	expected := []byte{
		0x02, 0x01, 0x06, // flags: general discoverable, no BR/EDR
		0x03, 0x19, 0x00, 0x00, // appearance: unspecified
		0x11, 0x07, // complete 128-bit service UUID, little-endian
		0x93, 0xd4, 0xe1, 0xeb, 0x27, 0xb8, 0xf5, 0xb8,
		0xe8, 0x11, 0x71, 0x0b, 0x00, 0x00, 0xc9, 0x4a,
		0x05, 0xff, 0x90, 0x05, 0xd0, 0x07, // manufacturer data with interval
	}
	assert.DeepEqual(t, payload, expected)
	assert.Equal(t, MaxEIRPacketLength, len(payload))
}

func TestAdvertisingPayloadCarriesInterval(t *testing.T) {
	payload, err := advertisingPayload(ServiceUUID, 500)
	assert.NilError(t, err)
	assert.DeepEqual(t, payload[len(payload)-2:], []byte{0xf4, 0x01})
}

func TestAdvertisingPayloadInvalidUUID(t *testing.T) {
	_, err := advertisingPayload("not-a-uuid", 2000)
	assert.Assert(t, err != nil)

	_, err = advertisingPayload("4ac90000-0b71", 2000)
	assert.Assert(t, err != nil)
}

func TestScanResponsePayload(t *testing.T) {
	payload, err := scanResponsePayload("RBPThermocouple")
	assert.NilError(t, err)

	expected := append([]byte{16, 0x09}, []byte("RBPThermocouple")...)
	assert.DeepEqual(t, payload, expected)
}

func TestScanResponsePayloadTooLong(t *testing.T) {
	_, err := scanResponsePayload(strings.Repeat("x", MaxEIRPacketLength))
	assert.Assert(t, err != nil)
}
