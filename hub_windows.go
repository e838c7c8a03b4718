package usbinfo

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"

	"golang.org/x/sys/windows"
)

// GUID_DEVINTERFACE_USB_HUB is the device interface GUID for USB hubs
var GUID_DEVINTERFACE_USB_HUB = windows.GUID{
	Data1: 0xF18A0E88,
	Data2: 0xC30C,
	Data3: 0x11D0,
	Data4: [8]byte{0x88, 0x15, 0x00, 0xA0, 0xC9, 0x06, 0xBE, 0xD8},
}

// HubHandle wraps the hub ioctls used to query descriptors for devices
// attached to the hub's ports. It exclusively owns the open handle.
type HubHandle struct {
	handle windows.Handle
}

// OpenHub opens a control channel to the hub identified by devinst. The
// hub must expose a registered hub device interface.
func OpenHub(devinst DevInst) (*HubHandle, error) {
	paths, err := devinst.Interfaces(GUID_DEVINTERFACE_USB_HUB)
	if err == nil && len(paths) == 0 {
		err = fmt.Errorf("no hub interface registered")
	}
	if err != nil {
		slog.Error("failed to find hub interface", "error", err)
		return nil, err
	}

	pathPtr, err := windows.UTF16PtrFromString(paths[0])
	if err != nil {
		return nil, fmt.Errorf("invalid hub interface path: %w", err)
	}
	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		slog.Error("failed to open hub", "path", paths[0], "error", err)
		return nil, fmt.Errorf("failed to open hub: %w", err)
	}

	return &HubHandle{handle: handle}, nil
}

// Close releases the hub handle. Closing twice is a no-op.
func (h *HubHandle) Close() error {
	if h.handle == windows.InvalidHandle || h.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(h.handle)
	h.handle = windows.InvalidHandle
	return err
}

// ioctl issues one buffered device I/O control with buf as both input and
// output buffer.
func (h *HubHandle) ioctl(code uint32, buf []byte) (uint32, error) {
	var bytesReturned uint32
	err := windows.DeviceIoControl(
		h.handle,
		code,
		&buf[0],
		uint32(len(buf)),
		&buf[0],
		uint32(len(buf)),
		&bytesReturned,
		nil,
	)
	return bytesReturned, err
}

// ConnectionInfo queries the connection state of one hub port. Port
// numbers are 1-based.
func (h *HubHandle) ConnectionInfo(port uint32) (*NodeConnectionInfo, error) {
	buf := encodeNodeConnectionRequest(port)
	if _, err := h.ioctl(ioctlUSBGetNodeConnectionInformationEx, buf); err != nil {
		slog.Error("hub connection info ioctl failed", "port", port, "error", err)
		return nil, osStatusError(err)
	}
	info, err := decodeNodeConnectionInfo(buf)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// GetDescriptor requests a descriptor from the device attached to the
// given port, asking for the maximum length the OS accepts. The returned
// slice holds only the bytes the device actually produced.
func (h *HubHandle) GetDescriptor(port uint32, descriptorType, descriptorIndex uint8, languageID uint16) ([]byte, error) {
	return h.GetDescriptorLen(port, descriptorType, descriptorIndex, languageID, MaxDescriptorRequestLen)
}

// GetDescriptorLen is GetDescriptor with an explicit request length.
// Lengths above MaxDescriptorRequestLen are rejected before any call is
// issued.
func (h *HubHandle) GetDescriptorLen(port uint32, descriptorType, descriptorIndex uint8, languageID uint16, length int) ([]byte, error) {
	payload, err := descriptorExchange(func(buf []byte) (uint32, error) {
		return h.ioctl(ioctlUSBGetDescriptorFromNodeConnection, buf)
	}, port, descriptorType, descriptorIndex, languageID, length)
	if err != nil {
		var errno syscall.Errno
		if errors.As(err, &errno) {
			slog.Warn("descriptor request failed",
				"port", port, "type", descriptorType, "index", descriptorIndex, "error", err)
			if errno == windows.ERROR_GEN_FAILURE {
				return nil, ErrDeviceSuspended
			}
			return nil, &OSStatusError{Code: uint32(errno)}
		}
		return nil, err
	}
	return payload, nil
}

func osStatusError(err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &OSStatusError{Code: uint32(errno)}
	}
	return err
}

// HubPort narrows a HubHandle to the port a specific child device is
// attached to, so callers don't resolve parent and port themselves.
type HubPort struct {
	hub        *HubHandle
	portNumber uint32
}

// HubPortForDevice resolves the parent hub of devinst, opens it, and
// binds the child's hub-relative port number.
func HubPortForDevice(devinst DevInst) (*HubPort, error) {
	parent, ok := devinst.Parent()
	if !ok {
		return nil, ErrNoParentHub
	}
	hub, err := OpenHub(parent)
	if err != nil {
		return nil, fmt.Errorf("failed to open parent hub: %w", err)
	}
	port, ok := devinst.PropertyUint32(DEVPKEY_Device_Address)
	if !ok {
		hub.Close()
		return nil, ErrNotConnected
	}
	return &HubPort{hub: hub, portNumber: port}, nil
}

// PortNumber returns the bound 1-based hub port number.
func (p *HubPort) PortNumber() uint32 { return p.portNumber }

// ConnectionInfo queries the connection state of the bound port.
func (p *HubPort) ConnectionInfo() (*NodeConnectionInfo, error) {
	return p.hub.ConnectionInfo(p.portNumber)
}

// GetDescriptor requests a descriptor from the device on the bound port.
func (p *HubPort) GetDescriptor(descriptorType, descriptorIndex uint8, languageID uint16) ([]byte, error) {
	return p.hub.GetDescriptor(p.portNumber, descriptorType, descriptorIndex, languageID)
}

// DeviceDescriptor fetches and parses the child device's device
// descriptor.
func (p *HubPort) DeviceDescriptor() (DeviceDescriptor, error) {
	data, err := p.hub.GetDescriptorLen(p.portNumber, DescriptorTypeDevice, 0, 0, deviceDescriptorLen)
	if err != nil {
		return DeviceDescriptor{}, err
	}
	return ParseDeviceDescriptor(data)
}

// StringDescriptor fetches one of the child device's string descriptors
// in the given language.
func (p *HubPort) StringDescriptor(index uint8, languageID uint16) (string, error) {
	data, err := p.hub.GetDescriptor(p.portNumber, DescriptorTypeString, index, languageID)
	if err != nil {
		return "", err
	}
	return DecodeUSBString(data)
}

// Close releases the underlying hub handle.
func (p *HubPort) Close() error { return p.hub.Close() }
