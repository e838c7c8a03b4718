package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	usbinfo "github.com/usbtools/go-usbinfo"
)

var (
	verbose = flag.Bool("v", false, "Verbose output")
	root    = flag.String("root", usbinfo.DefaultSysfsRoot, "Device tree root to enumerate")
	jobs    = flag.Int("j", 4, "Number of concurrent device probes")
)

func main() {
	flag.Parse()

	e := usbinfo.Enumerator{Root: *root}
	candidates, err := e.Candidates()
	if err != nil {
		log.Fatalf("Failed to enumerate devices: %v", err)
	}

	// Probes don't share state, so run one worker per candidate device.
	var (
		mu      sync.Mutex
		devices []*usbinfo.DeviceInfo
		g       errgroup.Group
	)
	g.SetLimit(*jobs)
	for _, path := range candidates {
		g.Go(func() error {
			info, err := usbinfo.ProbeDevice(path)
			if err != nil {
				slog.Warn("ignoring device", "path", string(path), "error", err)
				return nil
			}
			mu.Lock()
			devices = append(devices, info)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	// Sort devices by bus and address
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].BusNum != devices[j].BusNum {
			return devices[i].BusNum < devices[j].BusNum
		}
		return devices[i].DeviceAddress < devices[j].DeviceAddress
	})

	for _, dev := range devices {
		fmt.Printf("Bus %s Device %03d: ID %04x:%04x %s %s\n",
			dev.BusID, dev.DeviceAddress,
			dev.VendorID, dev.ProductID,
			dev.Manufacturer, dev.Product)
		if *verbose {
			displayVerbose(dev)
		}
	}
}

func displayVerbose(dev *usbinfo.DeviceInfo) {
	fmt.Printf("  Speed:          %s\n", dev.Speed)
	if len(dev.PortChain) > 0 {
		fmt.Printf("  Port chain:     %s\n", formatPortChain(dev.PortChain))
	}
	fmt.Printf("  Device version: %x.%02x\n", dev.DeviceVersion>>8, dev.DeviceVersion&0xff)
	fmt.Printf("  Class:          %02x/%02x/%02x\n", dev.Class, dev.SubClass, dev.Protocol)
	if dev.SerialNumber != "" {
		fmt.Printf("  Serial:         %s\n", dev.SerialNumber)
	}
	for _, iface := range dev.Interfaces {
		fmt.Printf("  Interface %d: Class=%02x SubClass=%02x Protocol=%02x %s\n",
			iface.InterfaceNumber, iface.Class, iface.SubClass, iface.Protocol,
			iface.InterfaceString)
	}
}

func formatPortChain(chain []uint8) string {
	parts := make([]string, len(chain))
	for i, hop := range chain {
		parts[i] = fmt.Sprintf("%d", hop)
	}
	return strings.Join(parts, ".")
}
