package usbinfo

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modcfgmgr32 = windows.NewLazySystemDLL("cfgmgr32.dll")

	procCM_Locate_DevNodeW                 = modcfgmgr32.NewProc("CM_Locate_DevNodeW")
	procCM_Get_Parent                      = modcfgmgr32.NewProc("CM_Get_Parent")
	procCM_Get_Device_ID_Size              = modcfgmgr32.NewProc("CM_Get_Device_ID_Size")
	procCM_Get_Device_IDW                  = modcfgmgr32.NewProc("CM_Get_Device_IDW")
	procCM_Get_Device_Interface_List_SizeW = modcfgmgr32.NewProc("CM_Get_Device_Interface_List_SizeW")
	procCM_Get_Device_Interface_ListW      = modcfgmgr32.NewProc("CM_Get_Device_Interface_ListW")
	procCM_Get_DevNode_PropertyW           = modcfgmgr32.NewProc("CM_Get_DevNode_PropertyW")
)

// CONFIGRET codes and flags
const (
	CR_SUCCESS      = 0x00
	CR_BUFFER_SMALL = 0x1A

	CM_LOCATE_DEVNODE_NORMAL = 0x00000000

	CM_GET_DEVICE_INTERFACE_LIST_PRESENT = 0x00000000

	DEVPROP_TYPE_UINT32 = 0x00000007
)

// DevPropKey identifies one device property in the unified device
// property model.
type DevPropKey struct {
	FmtID windows.GUID
	PID   uint32
}

// DEVPKEY_Device_Address is the hub-relative port number of a device.
var DEVPKEY_Device_Address = DevPropKey{
	FmtID: windows.GUID{
		Data1: 0xA45C254E,
		Data2: 0xDF1C,
		Data3: 0x4EFD,
		Data4: [8]byte{0x80, 0x20, 0x67, 0xD1, 0x46, 0xA8, 0x50, 0xE0},
	},
	PID: 30,
}

// DevInst identifies one node in the Windows device tree.
type DevInst uint32

// LocateDevNode resolves a device instance ID to its DevInst.
func LocateDevNode(instanceID string) (DevInst, error) {
	idPtr, err := windows.UTF16PtrFromString(instanceID)
	if err != nil {
		return 0, fmt.Errorf("invalid instance ID: %w", err)
	}
	var devInst uint32
	r0, _, _ := syscall.SyscallN(
		procCM_Locate_DevNodeW.Addr(),
		uintptr(unsafe.Pointer(&devInst)),
		uintptr(unsafe.Pointer(idPtr)),
		uintptr(CM_LOCATE_DEVNODE_NORMAL),
	)
	if r0 != CR_SUCCESS {
		return 0, fmt.Errorf("CM_Locate_DevNodeW failed: CONFIGRET 0x%02x", r0)
	}
	return DevInst(devInst), nil
}

// Parent returns the parent node in the device tree, or false for a root
// node.
func (d DevInst) Parent() (DevInst, bool) {
	var parent uint32
	r0, _, _ := syscall.SyscallN(
		procCM_Get_Parent.Addr(),
		uintptr(unsafe.Pointer(&parent)),
		uintptr(d),
		0,
	)
	if r0 != CR_SUCCESS {
		return 0, false
	}
	return DevInst(parent), true
}

// InstanceID returns the device instance ID of this node.
func (d DevInst) InstanceID() (string, error) {
	var size uint32
	r0, _, _ := syscall.SyscallN(
		procCM_Get_Device_ID_Size.Addr(),
		uintptr(unsafe.Pointer(&size)),
		uintptr(d),
		0,
	)
	if r0 != CR_SUCCESS {
		return "", fmt.Errorf("CM_Get_Device_ID_Size failed: CONFIGRET 0x%02x", r0)
	}
	buf := make([]uint16, size+1)
	r0, _, _ = syscall.SyscallN(
		procCM_Get_Device_IDW.Addr(),
		uintptr(d),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(uint32(len(buf))),
		0,
	)
	if r0 != CR_SUCCESS {
		return "", fmt.Errorf("CM_Get_Device_IDW failed: CONFIGRET 0x%02x", r0)
	}
	return windows.UTF16ToString(buf), nil
}

// Interfaces returns the registered device interface paths of the given
// interface class for this device instance.
func (d DevInst) Interfaces(classGUID windows.GUID) ([]string, error) {
	instanceID, err := d.InstanceID()
	if err != nil {
		return nil, err
	}
	idPtr, err := windows.UTF16PtrFromString(instanceID)
	if err != nil {
		return nil, fmt.Errorf("invalid instance ID: %w", err)
	}

	// The list can grow between the size query and the read; retry on
	// CR_BUFFER_SMALL.
	for {
		var size uint32
		r0, _, _ := syscall.SyscallN(
			procCM_Get_Device_Interface_List_SizeW.Addr(),
			uintptr(unsafe.Pointer(&size)),
			uintptr(unsafe.Pointer(&classGUID)),
			uintptr(unsafe.Pointer(idPtr)),
			uintptr(CM_GET_DEVICE_INTERFACE_LIST_PRESENT),
		)
		if r0 != CR_SUCCESS {
			return nil, fmt.Errorf("CM_Get_Device_Interface_List_SizeW failed: CONFIGRET 0x%02x", r0)
		}
		if size == 0 {
			return nil, nil
		}
		buf := make([]uint16, size)
		r0, _, _ = syscall.SyscallN(
			procCM_Get_Device_Interface_ListW.Addr(),
			uintptr(unsafe.Pointer(&classGUID)),
			uintptr(unsafe.Pointer(idPtr)),
			uintptr(unsafe.Pointer(&buf[0])),
			uintptr(uint32(len(buf))),
			uintptr(CM_GET_DEVICE_INTERFACE_LIST_PRESENT),
		)
		if r0 == CR_BUFFER_SMALL {
			continue
		}
		if r0 != CR_SUCCESS {
			return nil, fmt.Errorf("CM_Get_Device_Interface_ListW failed: CONFIGRET 0x%02x", r0)
		}
		return splitUTF16List(buf), nil
	}
}

// PropertyUint32 reads a UINT32-typed device property. Absent properties
// and properties of another type report false.
func (d DevInst) PropertyUint32(key DevPropKey) (uint32, bool) {
	var (
		propType uint32
		value    uint32
		size     = uint32(unsafe.Sizeof(value))
	)
	r0, _, _ := syscall.SyscallN(
		procCM_Get_DevNode_PropertyW.Addr(),
		uintptr(d),
		uintptr(unsafe.Pointer(&key)),
		uintptr(unsafe.Pointer(&propType)),
		uintptr(unsafe.Pointer(&value)),
		uintptr(unsafe.Pointer(&size)),
		0,
	)
	if r0 != CR_SUCCESS || propType != DEVPROP_TYPE_UINT32 {
		return 0, false
	}
	return value, true
}

// splitUTF16List splits a double-NUL-terminated UTF-16 multi-string.
func splitUTF16List(buf []uint16) []string {
	var list []string
	start := 0
	for i, c := range buf {
		if c != 0 {
			continue
		}
		if i > start {
			list = append(list, windows.UTF16ToString(buf[start:i]))
		}
		start = i + 1
	}
	return list
}
