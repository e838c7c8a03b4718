// Package usbinfo discovers USB devices attached to the host and reports
// their descriptive metadata in a platform-independent model.
//
// On Linux the metadata comes from the sysfs device tree
// (/sys/bus/usb/devices). On Windows it comes from hub ioctls issued
// against the device's parent hub. Both backends produce the same
// DeviceInfo/InterfaceInfo records; opening devices and performing
// transfers is out of scope.
package usbinfo

// Speed is the negotiated connection speed of a device.
type Speed int

const (
	SpeedUnknown Speed = iota
	SpeedLow
	SpeedFull
	SpeedHigh
	SpeedSuper
	SpeedSuperPlus
)

// ParseSpeed maps the text of a sysfs `speed` attribute (megabits per
// second) to a Speed. Unrecognized values map to SpeedUnknown.
func ParseSpeed(s string) Speed {
	switch s {
	case "1.5":
		return SpeedLow
	case "12":
		return SpeedFull
	case "480":
		return SpeedHigh
	case "5000":
		return SpeedSuper
	case "10000", "20000":
		return SpeedSuperPlus
	default:
		return SpeedUnknown
	}
}

func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "low"
	case SpeedFull:
		return "full"
	case SpeedHigh:
		return "high"
	case SpeedSuper:
		return "super"
	case SpeedSuperPlus:
		return "super+"
	default:
		return "unknown"
	}
}

// InterfaceInfo describes one interface of a device.
type InterfaceInfo struct {
	InterfaceNumber uint8
	Class           uint8
	SubClass        uint8
	Protocol        uint8
	InterfaceString string // empty if the device reports none
}

// DeviceInfo is a point-in-time snapshot of one attached device. It is
// assembled once per probe and holds no system resources.
type DeviceInfo struct {
	BusNum        uint8
	BusID         string // BusNum zero-padded to three digits, e.g. "001"
	DeviceAddress uint8

	// PortChain is the hub port hop sequence from the root controller to
	// the device. Empty if the topology could not be determined.
	PortChain []uint8

	VendorID       uint16
	ProductID      uint16
	DeviceVersion  uint16
	Class          uint8
	SubClass       uint8
	Protocol       uint8
	MaxPacketSize0 uint8

	Speed Speed

	Manufacturer string // empty if the device reports none
	Product      string
	SerialNumber string

	// Interfaces is sorted ascending by interface number.
	Interfaces []InterfaceInfo

	// Path is the sysfs directory the record was probed from. Empty for
	// records that did not originate from the sysfs backend.
	Path SysfsPath
}
