package main

import (
	"fmt"
	"log"

	usbinfo "github.com/usbtools/go-usbinfo"
)

func main() {
	devices, err := usbinfo.ListDevices()
	if err != nil {
		log.Fatalf("Failed to get device list: %v", err)
	}

	fmt.Printf("Found %d USB devices:\n\n", len(devices))

	for i, dev := range devices {
		fmt.Printf("Device #%d:\n", i+1)
		fmt.Printf("  Path:        %s\n", dev.Path)
		fmt.Printf("  Bus:         %s\n", dev.BusID)
		fmt.Printf("  Address:     %03d\n", dev.DeviceAddress)
		fmt.Printf("  VID:PID:     %04x:%04x\n", dev.VendorID, dev.ProductID)
		fmt.Printf("  Version:     %x.%02x\n", dev.DeviceVersion>>8, dev.DeviceVersion&0xff)
		fmt.Printf("  Class:       %02x\n", dev.Class)
		fmt.Printf("  SubClass:    %02x\n", dev.SubClass)
		fmt.Printf("  Protocol:    %02x\n", dev.Protocol)
		fmt.Printf("  Speed:       %s\n", dev.Speed)

		if dev.Manufacturer != "" {
			fmt.Printf("  Manufacturer: %s\n", dev.Manufacturer)
		}
		if dev.Product != "" {
			fmt.Printf("  Product:     %s\n", dev.Product)
		}
		if dev.SerialNumber != "" {
			fmt.Printf("  Serial:      %s\n", dev.SerialNumber)
		}

		if len(dev.Interfaces) > 0 {
			fmt.Printf("  Interfaces:\n")
			for _, iface := range dev.Interfaces {
				fmt.Printf("    Interface %d: Class=%02x SubClass=%02x Protocol=%02x\n",
					iface.InterfaceNumber, iface.Class,
					iface.SubClass, iface.Protocol)
			}
		}

		fmt.Println()
	}
}
