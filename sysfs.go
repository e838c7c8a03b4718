package usbinfo

import (
	"cmp"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// DefaultSysfsRoot is the device tree enumerated when no other root is
// configured on an Enumerator.
const DefaultSysfsRoot = "/sys/bus/usb/devices"

// SysfsPath locates one device or interface directory in a sysfs-style
// device tree. It holds no open resources; every read goes back to the
// filesystem, so values always reflect current kernel state.
type SysfsPath string

func (p SysfsPath) parseAttr(name string, base, bits int) (uint64, error) {
	attrPath := filepath.Join(string(p), name)
	data, err := os.ReadFile(attrPath)
	if err != nil {
		return 0, &AttrError{Path: attrPath, Kind: AttrErrorIO, Err: err}
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), base, bits)
	if err != nil {
		return 0, &AttrError{Path: attrPath, Kind: AttrErrorParse, Raw: string(data)}
	}
	return v, nil
}

// ReadString returns the attribute's text with surrounding whitespace
// trimmed.
func (p SysfsPath) ReadString(name string) (string, error) {
	attrPath := filepath.Join(string(p), name)
	data, err := os.ReadFile(attrPath)
	if err != nil {
		return "", &AttrError{Path: attrPath, Kind: AttrErrorIO, Err: err}
	}
	return strings.TrimSpace(string(data)), nil
}

// ReadDecU8 parses a decimal attribute like busnum or devnum.
func (p SysfsPath) ReadDecU8(name string) (uint8, error) {
	v, err := p.parseAttr(name, 10, 8)
	return uint8(v), err
}

// ReadHexU8 parses a hexadecimal attribute like bDeviceClass.
func (p SysfsPath) ReadHexU8(name string) (uint8, error) {
	v, err := p.parseAttr(name, 16, 8)
	return uint8(v), err
}

// ReadHexU16 parses a hexadecimal attribute like idVendor.
func (p SysfsPath) ReadHexU16(name string) (uint16, error) {
	v, err := p.parseAttr(name, 16, 16)
	return uint16(v), err
}

// children returns the immediate subdirectories of p. Unreadable
// directories yield no children.
func (p SysfsPath) children() []SysfsPath {
	entries, err := os.ReadDir(string(p))
	if err != nil {
		return nil
	}
	var dirs []SysfsPath
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, SysfsPath(filepath.Join(string(p), entry.Name())))
		}
	}
	return dirs
}

// Enumerator walks a sysfs device tree and probes each device entry.
// The zero value enumerates the host's real tree.
type Enumerator struct {
	// Root is the device tree directory to enumerate. Empty means
	// DefaultSysfsRoot.
	Root string

	// Logger receives a warning for each candidate whose probe fails.
	// Nil means slog.Default().
	Logger *slog.Logger
}

func (e *Enumerator) root() string {
	if e.Root != "" {
		return e.Root
	}
	return DefaultSysfsRoot
}

func (e *Enumerator) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// isDeviceName reports whether a device tree entry names a device.
// Device entries look like `1-6` or `1-6.4.2`. Root hubs (`usb1`) and
// interfaces (`1-6:1.0`) use other characters and are excluded.
func isDeviceName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		switch c := name[i]; {
		case c >= '0' && c <= '9':
		case c == '-' || c == '.':
		default:
			return false
		}
	}
	return true
}

// Candidates returns the locations of the device entries directly under
// the tree root, excluding root hubs and interface entries.
func (e *Enumerator) Candidates() ([]SysfsPath, error) {
	root := e.root()
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read device tree %s: %w", root, err)
	}
	var candidates []SysfsPath
	for _, entry := range entries {
		if isDeviceName(entry.Name()) {
			candidates = append(candidates, SysfsPath(filepath.Join(root, entry.Name())))
		}
	}
	return candidates, nil
}

// Devices returns a single-pass sequence of the devices under the tree
// root. Each candidate is probed as the sequence is consumed; a candidate
// whose probe fails is logged and skipped, never aborting the sequence.
func (e *Enumerator) Devices() (iter.Seq[*DeviceInfo], error) {
	candidates, err := e.Candidates()
	if err != nil {
		return nil, err
	}
	log := e.logger()
	return func(yield func(*DeviceInfo) bool) {
		for _, path := range candidates {
			info, err := ProbeDevice(path)
			if err != nil {
				log.Warn("ignoring device", "path", string(path), "error", err)
				continue
			}
			if !yield(info) {
				return
			}
		}
	}, nil
}

// ListDevices probes every device in the host's sysfs tree.
func ListDevices() ([]*DeviceInfo, error) {
	var e Enumerator
	seq, err := e.Devices()
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

// ProbeDevice reads one device's attributes and assembles its record.
// A failure on any required attribute aborts the probe; optional
// attributes degrade to their absent value.
func ProbeDevice(path SysfsPath) (*DeviceInfo, error) {
	busNum, err := path.ReadDecU8("busnum")
	if err != nil {
		return nil, err
	}
	devNum, err := path.ReadDecU8("devnum")
	if err != nil {
		return nil, err
	}
	vendorID, err := path.ReadHexU16("idVendor")
	if err != nil {
		return nil, err
	}
	productID, err := path.ReadHexU16("idProduct")
	if err != nil {
		return nil, err
	}
	deviceVersion, err := path.ReadHexU16("bcdDevice")
	if err != nil {
		return nil, err
	}
	class, err := path.ReadHexU8("bDeviceClass")
	if err != nil {
		return nil, err
	}
	subClass, err := path.ReadHexU8("bDeviceSubClass")
	if err != nil {
		return nil, err
	}
	protocol, err := path.ReadHexU8("bDeviceProtocol")
	if err != nil {
		return nil, err
	}
	maxPacket, err := path.ReadDecU8("bMaxPacketSize0")
	if err != nil {
		return nil, err
	}

	info := &DeviceInfo{
		BusNum:         busNum,
		BusID:          fmt.Sprintf("%03d", busNum),
		DeviceAddress:  devNum,
		VendorID:       vendorID,
		ProductID:      productID,
		DeviceVersion:  deviceVersion,
		Class:          class,
		SubClass:       subClass,
		Protocol:       protocol,
		MaxPacketSize0: maxPacket,
		Path:           path,
	}

	if devpath, err := path.ReadString("devpath"); err == nil {
		info.PortChain = parsePortChain(devpath)
	}

	info.Manufacturer, _ = path.ReadString("manufacturer")
	info.Product, _ = path.ReadString("product")
	info.SerialNumber, _ = path.ReadString("serial")

	if speed, err := path.ReadString("speed"); err == nil {
		info.Speed = ParseSpeed(speed)
	}

	for _, child := range path.children() {
		// Subdirectories like `power` aren't interfaces. They would be
		// skipped anyway when missing required attributes, but might as
		// well not open them.
		if !strings.Contains(filepath.Base(string(child)), ":") {
			continue
		}
		if iface, ok := probeInterface(child); ok {
			info.Interfaces = append(info.Interfaces, iface)
		}
	}
	slices.SortFunc(info.Interfaces, func(a, b InterfaceInfo) int {
		return cmp.Compare(a.InterfaceNumber, b.InterfaceNumber)
	})

	return info, nil
}

// probeInterface reads one interface subdirectory. A subdirectory missing
// any of the four required attributes is treated as not an interface.
func probeInterface(path SysfsPath) (InterfaceInfo, bool) {
	number, err := path.ReadHexU8("bInterfaceNumber")
	if err != nil {
		return InterfaceInfo{}, false
	}
	class, err := path.ReadHexU8("bInterfaceClass")
	if err != nil {
		return InterfaceInfo{}, false
	}
	subClass, err := path.ReadHexU8("bInterfaceSubClass")
	if err != nil {
		return InterfaceInfo{}, false
	}
	protocol, err := path.ReadHexU8("bInterfaceProtocol")
	if err != nil {
		return InterfaceInfo{}, false
	}
	str, _ := path.ReadString("interface")
	return InterfaceInfo{
		InterfaceNumber: number,
		Class:           class,
		SubClass:        subClass,
		Protocol:        protocol,
		InterfaceString: str,
	}, true
}

// parsePortChain parses a devpath attribute like "1.6.4" into its hop
// numbers. Any unparsable hop discards the whole chain.
func parsePortChain(devpath string) []uint8 {
	parts := strings.Split(devpath, ".")
	chain := make([]uint8, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return nil
		}
		chain = append(chain, uint8(v))
	}
	return chain
}
