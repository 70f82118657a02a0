package comm

import (
	"strconv"

	"go.bug.st/serial/enumerator"
)

// LakeShoreVID is the USB vendor ID shared by all of the instruments.
const LakeShoreVID uint16 = 0x1FB9

// DiscoverPort scans the attached serial devices and returns the name of the
// first port whose USB VID/PID is in allowed and which passes the optional
// filters: portName matches the device path exactly, serialNumber matches
// the USB-reported serial number exactly.  Blank filters match everything.
func DiscoverPort(allowed []VIDPID, portName, serialNumber string) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", err
	}
	return selectPort(ports, allowed, portName, serialNumber)
}

func selectPort(ports []*enumerator.PortDetails, allowed []VIDPID, portName, serialNumber string) (string, error) {
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		if !allowedVIDPID(port, allowed) {
			continue
		}
		if portName != "" && port.Name != portName {
			continue
		}
		if serialNumber != "" && port.SerialNumber != serialNumber {
			continue
		}
		return port.Name, nil
	}
	return "", ErrPortNotFound
}

// allowedVIDPID reports whether the port's IDs appear in the allow-list.
// The enumerator reports VID and PID as hex strings.
func allowedVIDPID(port *enumerator.PortDetails, allowed []VIDPID) bool {
	vid, err := strconv.ParseUint(port.VID, 16, 16)
	if err != nil {
		return false
	}
	pid, err := strconv.ParseUint(port.PID, 16, 16)
	if err != nil {
		return false
	}
	for _, id := range allowed {
		if id.VID == uint16(vid) && id.PID == uint16(pid) {
			return true
		}
	}
	return false
}
