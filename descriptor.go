package usbinfo

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// USB descriptor types
const (
	DescriptorTypeDevice    = 0x01
	DescriptorTypeConfig    = 0x02
	DescriptorTypeString    = 0x03
	DescriptorTypeInterface = 0x04
	DescriptorTypeEndpoint  = 0x05
	DescriptorTypeBOS       = 0x0f
)

// deviceDescriptorLen is the wire size of a standard device descriptor.
const deviceDescriptorLen = 18

// DeviceDescriptor is the standard 18-byte USB device descriptor.
type DeviceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	USBVersion        uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	DeviceVersion     uint16
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialNumberIndex uint8
	NumConfigurations uint8
}

// ParseDeviceDescriptor decodes a device descriptor from its wire form.
func ParseDeviceDescriptor(data []byte) (DeviceDescriptor, error) {
	if len(data) < deviceDescriptorLen {
		return DeviceDescriptor{}, fmt.Errorf("device descriptor too short: %d bytes", len(data))
	}
	return DeviceDescriptor{
		Length:            data[0],
		DescriptorType:    data[1],
		USBVersion:        binary.LittleEndian.Uint16(data[2:4]),
		DeviceClass:       data[4],
		DeviceSubClass:    data[5],
		DeviceProtocol:    data[6],
		MaxPacketSize0:    data[7],
		VendorID:          binary.LittleEndian.Uint16(data[8:10]),
		ProductID:         binary.LittleEndian.Uint16(data[10:12]),
		DeviceVersion:     binary.LittleEndian.Uint16(data[12:14]),
		ManufacturerIndex: data[14],
		ProductIndex:      data[15],
		SerialNumberIndex: data[16],
		NumConfigurations: data[17],
	}, nil
}

// DecodeUSBString decodes a string descriptor (length/type header followed
// by UTF-16LE code units) into a Go string.
func DecodeUSBString(data []byte) (string, error) {
	if len(data) < 2 {
		return "", fmt.Errorf("string descriptor too short: %d bytes", len(data))
	}
	if data[1] != DescriptorTypeString {
		return "", fmt.Errorf("not a string descriptor: type 0x%02x", data[1])
	}
	length := int(data[0])
	if length > len(data) {
		length = len(data)
	}
	units := make([]uint16, 0, (length-2)/2)
	for i := 2; i+1 < length; i += 2 {
		units = append(units, binary.LittleEndian.Uint16(data[i:i+2]))
	}
	return string(utf16.Decode(units)), nil
}
