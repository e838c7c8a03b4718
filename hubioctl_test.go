package usbinfo

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDescriptorRequest(t *testing.T) {
	buf := encodeDescriptorRequest(3, DescriptorTypeDevice, 0, 0x0409, 18)
	require.Len(t, buf, descriptorRequestHeaderLen+18)

	// Fixed header: connection index, then the standard GET_DESCRIPTOR
	// setup packet with the type/index combined value.
	want := []byte{
		0x03, 0x00, 0x00, 0x00, // ConnectionIndex
		0x80,       // bmRequestType
		0x06,       // bRequest
		0x00, 0x01, // wValue: type 0x01 in high byte
		0x09, 0x04, // wIndex: language ID
		0x12, 0x00, // wLength
	}
	assert.Equal(t, want, buf[:descriptorRequestHeaderLen])

	// Payload region starts zeroed.
	for _, b := range buf[descriptorRequestHeaderLen:] {
		require.Zero(t, b)
	}
}

func TestEncodeDescriptorRequestCombinesTypeAndIndex(t *testing.T) {
	buf := encodeDescriptorRequest(1, DescriptorTypeString, 2, 0x0409, 255)
	wValue := binary.LittleEndian.Uint16(buf[6:8])
	assert.Equal(t, uint16(0x0302), wValue)
}

func TestDescriptorPayload(t *testing.T) {
	buf := encodeDescriptorRequest(1, DescriptorTypeDevice, 0, 0, 8)
	copy(buf[descriptorRequestHeaderLen:], []byte{1, 2, 3, 4, 5, 6, 7, 8})

	tests := []struct {
		name          string
		bytesReturned uint32
		want          []byte
	}{
		{"nothing returned", 0, nil},
		{"less than header", uint32(descriptorRequestHeaderLen) - 1, nil},
		{"header only", uint32(descriptorRequestHeaderLen), nil},
		{"partial payload", uint32(descriptorRequestHeaderLen) + 3, []byte{1, 2, 3}},
		{"full payload", uint32(descriptorRequestHeaderLen) + 8, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{"reported beyond allocation", uint32(descriptorRequestHeaderLen) + 100, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := descriptorPayload(buf, tt.bytesReturned)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDescriptorExchangeRejectsOverlongRequest(t *testing.T) {
	called := false
	call := func(buf []byte) (uint32, error) {
		called = true
		return 0, nil
	}

	_, err := descriptorExchange(call, 1, DescriptorTypeConfig, 0, 0, MaxDescriptorRequestLen+1)
	require.ErrorIs(t, err, ErrRequestTooLong)
	assert.False(t, called, "overlong request must be rejected before the call is issued")

	_, err = descriptorExchange(call, 1, DescriptorTypeConfig, 0, 0, -1)
	require.Error(t, err)
	assert.False(t, called)
}

func TestDescriptorExchangeMaxLengthAccepted(t *testing.T) {
	var gotLen int
	call := func(buf []byte) (uint32, error) {
		gotLen = len(buf)
		return uint32(descriptorRequestHeaderLen), nil
	}

	payload, err := descriptorExchange(call, 1, DescriptorTypeConfig, 0, 0, MaxDescriptorRequestLen)
	require.NoError(t, err)
	assert.Empty(t, payload)
	assert.Equal(t, descriptorRequestHeaderLen+MaxDescriptorRequestLen, gotLen)
}

func TestDescriptorExchangeReturnsCopy(t *testing.T) {
	var reqBuf []byte
	call := func(buf []byte) (uint32, error) {
		reqBuf = buf
		copy(buf[descriptorRequestHeaderLen:], []byte{0xAA, 0xBB})
		return uint32(descriptorRequestHeaderLen) + 2, nil
	}

	payload, err := descriptorExchange(call, 2, DescriptorTypeDevice, 0, 0, 18)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, payload)

	// The request buffer must not alias the result.
	reqBuf[descriptorRequestHeaderLen] = 0xFF
	assert.Equal(t, []byte{0xAA, 0xBB}, payload)
}

func TestDescriptorExchangePropagatesCallError(t *testing.T) {
	callErr := fmt.Errorf("ioctl failed")
	call := func(buf []byte) (uint32, error) {
		return 0, callErr
	}

	_, err := descriptorExchange(call, 1, DescriptorTypeDevice, 0, 0, 18)
	require.ErrorIs(t, err, callErr)
}

func TestEncodeNodeConnectionRequest(t *testing.T) {
	buf := encodeNodeConnectionRequest(4)
	// The buffer must hold the fixed region plus one pipe-info element,
	// the smallest size the hub driver accepts.
	require.Len(t, buf, nodeConnectionRequestLen)
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(buf[0:4]))
	for _, b := range buf[4:] {
		require.Zero(t, b)
	}
}

func TestDecodeNodeConnectionInfo(t *testing.T) {
	// Golden response laid out at the 1-byte-packed offsets the kernel
	// writes: the device descriptor spans 4..21 and every later field
	// follows immediately, unaligned.
	buf := make([]byte, nodeConnectionRequestLen)
	copy(buf, []byte{
		0x04, 0x00, 0x00, 0x00, // ConnectionIndex
		18, 0x01, // descriptor: bLength, bDescriptorType
		0x00, 0x02, // bcdUSB 2.00
		0x09, 0x00, 0x01, // class, subclass, protocol
		64,         // bMaxPacketSize0
		0x6b, 0x1d, // idVendor
		0x02, 0x00, // idProduct
		0x10, 0x05, // bcdDevice
		1, 2, 3, // string indices
		1,          // bNumConfigurations
		1,          // CurrentConfigurationValue (offset 22)
		2,          // Speed: high (offset 23)
		1,          // DeviceIsHub (offset 24)
		0x07, 0x00, // DeviceAddress (offset 25)
		0x02, 0x00, 0x00, 0x00, // NumberOfOpenPipes (offset 27)
		0x01, 0x00, 0x00, 0x00, // ConnectionStatus (offset 31)
	})

	info, err := decodeNodeConnectionInfo(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), info.ConnectionIndex)
	assert.Equal(t, uint16(0x1d6b), info.DeviceDescriptor.VendorID)
	assert.Equal(t, uint16(0x0002), info.DeviceDescriptor.ProductID)
	assert.Equal(t, uint8(0x09), info.DeviceDescriptor.DeviceClass)
	assert.Equal(t, uint16(0x0510), info.DeviceDescriptor.DeviceVersion)
	assert.Equal(t, uint8(1), info.CurrentConfigurationValue)
	assert.Equal(t, SpeedHigh, info.DeviceSpeed())
	assert.True(t, info.DeviceIsHub)
	assert.Equal(t, uint16(7), info.DeviceAddress)
	assert.Equal(t, uint32(2), info.NumberOfOpenPipes)
	assert.Equal(t, DeviceConnected, info.ConnectionStatus)
}

func TestDecodeNodeConnectionInfoPackedOffsets(t *testing.T) {
	// Writing each field alone at its packed offset must surface in
	// exactly that field, so misaligned reads can't cancel out.
	buf := make([]byte, nodeConnectionInfoLen)
	binary.LittleEndian.PutUint16(buf[25:27], 0xBEEF)
	info, err := decodeNodeConnectionInfo(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), info.DeviceAddress)
	assert.Zero(t, info.NumberOfOpenPipes)
	assert.Equal(t, NoDeviceConnected, info.ConnectionStatus)

	buf = make([]byte, nodeConnectionInfoLen)
	binary.LittleEndian.PutUint32(buf[27:31], 0x12345678)
	info, err = decodeNodeConnectionInfo(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), info.NumberOfOpenPipes)
	assert.Zero(t, info.DeviceAddress)
	assert.Equal(t, NoDeviceConnected, info.ConnectionStatus)

	buf = make([]byte, nodeConnectionInfoLen)
	binary.LittleEndian.PutUint32(buf[31:35], uint32(DeviceGeneralFailure))
	info, err = decodeNodeConnectionInfo(buf)
	require.NoError(t, err)
	assert.Equal(t, DeviceGeneralFailure, info.ConnectionStatus)
	assert.Zero(t, info.DeviceAddress)
	assert.Zero(t, info.NumberOfOpenPipes)
}

func TestDecodeNodeConnectionInfoTooShort(t *testing.T) {
	_, err := decodeNodeConnectionInfo(make([]byte, nodeConnectionInfoLen-1))
	require.Error(t, err)
}

func TestNodeConnectionInfoDeviceSpeed(t *testing.T) {
	tests := []struct {
		raw  uint8
		want Speed
	}{
		{0, SpeedLow},
		{1, SpeedFull},
		{2, SpeedHigh},
		{3, SpeedSuper},
		{200, SpeedUnknown},
	}
	for _, tt := range tests {
		info := NodeConnectionInfo{Speed: tt.raw}
		assert.Equal(t, tt.want, info.DeviceSpeed())
	}
}
