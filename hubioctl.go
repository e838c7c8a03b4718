package usbinfo

import (
	"encoding/binary"
	"fmt"
)

// Hub ioctl codes from the Windows USB stack. The kernel consumes and
// produces the associated structures as raw memory, so their layout is
// encoded by hand below.
const (
	ioctlUSBGetNodeConnectionInformationEx  = 0x220448
	ioctlUSBGetDescriptorFromNodeConnection = 0x220410
)

// descriptorRequestHeaderLen is the fixed part of USB_DESCRIPTOR_REQUEST:
// a 32-bit connection index followed by the 8-byte setup packet. The
// requested payload trails the header in the same buffer.
const descriptorRequestHeaderLen = 12

// MaxDescriptorRequestLen is the largest descriptor payload that can be
// requested through a hub. Determined experimentally on Windows 10
// 19045: longer requests fail with ERROR_INVALID_PARAMETER for
// non-cached descriptors.
const MaxDescriptorRequestLen = 4095

// encodeDescriptorRequest builds the request buffer for
// IOCTL_USB_GET_DESCRIPTOR_FROM_NODE_CONNECTION: the header filled in,
// followed by length zero bytes for the response payload.
func encodeDescriptorRequest(port uint32, descriptorType, descriptorIndex uint8, languageID uint16, length int) []byte {
	buf := make([]byte, descriptorRequestHeaderLen+length)
	binary.LittleEndian.PutUint32(buf[0:4], port)
	buf[4] = 0x80 // bmRequestType: device-to-host, standard, device
	buf[5] = 0x06 // bRequest: GET_DESCRIPTOR
	binary.LittleEndian.PutUint16(buf[6:8], uint16(descriptorType)<<8|uint16(descriptorIndex))
	binary.LittleEndian.PutUint16(buf[8:10], languageID)
	binary.LittleEndian.PutUint16(buf[10:12], uint16(length))
	return buf
}

// descriptorPayload copies the descriptor bytes out of a completed
// request buffer. bytesReturned counts the header, so the payload length
// is clamped to [0, len(buf)-header] regardless of what the OS reports.
func descriptorPayload(buf []byte, bytesReturned uint32) []byte {
	n := int(bytesReturned) - descriptorRequestHeaderLen
	if n <= 0 {
		return nil
	}
	if avail := len(buf) - descriptorRequestHeaderLen; n > avail {
		n = avail
	}
	out := make([]byte, n)
	copy(out, buf[descriptorRequestHeaderLen:descriptorRequestHeaderLen+n])
	return out
}

// ioctlFunc issues one buffered device I/O control using buf as both the
// input and output buffer, returning the byte count the OS reports.
type ioctlFunc func(buf []byte) (bytesReturned uint32, err error)

// descriptorExchange validates, encodes, and issues one descriptor
// request, returning the payload bytes. The request buffer never escapes.
func descriptorExchange(call ioctlFunc, port uint32, descriptorType, descriptorIndex uint8, languageID uint16, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("invalid descriptor request length %d", length)
	}
	if length > MaxDescriptorRequestLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrRequestTooLong, length, MaxDescriptorRequestLen)
	}
	buf := encodeDescriptorRequest(port, descriptorType, descriptorIndex, languageID, length)
	bytesReturned, err := call(buf)
	if err != nil {
		return nil, err
	}
	return descriptorPayload(buf, bytesReturned), nil
}

// USB_NODE_CONNECTION_INFORMATION_EX is 1-byte packed, so the multi-byte
// fields after DeviceIsHub sit at odd offsets: DeviceAddress at 25,
// NumberOfOpenPipes at 27, ConnectionStatus at 31.
const (
	// nodeConnectionInfoLen is the fixed region of the structure,
	// without the trailing pipe list.
	nodeConnectionInfoLen = 35

	// nodeConnectionRequestLen is the buffer size passed to the ioctl:
	// the fixed region plus one 11-byte USB_PIPE_INFO element, the
	// minimum the hub driver accepts.
	nodeConnectionRequestLen = nodeConnectionInfoLen + 11
)

// ConnectionStatus is the USB_CONNECTION_STATUS reported for a hub port.
type ConnectionStatus uint32

const (
	NoDeviceConnected ConnectionStatus = iota
	DeviceConnected
	DeviceFailedEnumeration
	DeviceGeneralFailure
	DeviceCausedOvercurrent
	DeviceNotEnoughPower
	DeviceNotEnoughBandwidth
	DeviceHubNestedTooDeeply
	DeviceInLegacyHub
	DeviceEnumerating
	DeviceReset
)

// NodeConnectionInfo is the decoded result of a connection-info query for
// one hub port.
type NodeConnectionInfo struct {
	ConnectionIndex           uint32
	DeviceDescriptor          DeviceDescriptor
	CurrentConfigurationValue uint8
	Speed                     uint8
	DeviceIsHub               bool
	DeviceAddress             uint16
	NumberOfOpenPipes         uint32
	ConnectionStatus          ConnectionStatus
}

// DeviceSpeed maps the raw USB_DEVICE_SPEED byte to a Speed.
func (i *NodeConnectionInfo) DeviceSpeed() Speed {
	switch i.Speed {
	case 0:
		return SpeedLow
	case 1:
		return SpeedFull
	case 2:
		return SpeedHigh
	case 3:
		return SpeedSuper
	default:
		return SpeedUnknown
	}
}

// encodeNodeConnectionRequest builds the in/out buffer for a
// connection-info query with the port's connection index filled in.
func encodeNodeConnectionRequest(port uint32) []byte {
	buf := make([]byte, nodeConnectionRequestLen)
	binary.LittleEndian.PutUint32(buf[0:4], port)
	return buf
}

// decodeNodeConnectionInfo decodes the fixed region of a completed
// connection-info buffer.
func decodeNodeConnectionInfo(buf []byte) (NodeConnectionInfo, error) {
	if len(buf) < nodeConnectionInfoLen {
		return NodeConnectionInfo{}, fmt.Errorf("connection info too short: %d bytes", len(buf))
	}
	desc, err := ParseDeviceDescriptor(buf[4 : 4+deviceDescriptorLen])
	if err != nil {
		return NodeConnectionInfo{}, err
	}
	return NodeConnectionInfo{
		ConnectionIndex:           binary.LittleEndian.Uint32(buf[0:4]),
		DeviceDescriptor:          desc,
		CurrentConfigurationValue: buf[22],
		Speed:                     buf[23],
		DeviceIsHub:               buf[24] != 0,
		DeviceAddress:             binary.LittleEndian.Uint16(buf[25:27]),
		NumberOfOpenPipes:         binary.LittleEndian.Uint32(buf[27:31]),
		ConnectionStatus:          ConnectionStatus(binary.LittleEndian.Uint32(buf[31:35])),
	}, nil
}
