package license

import (
	"crypto/md5"
	"encoding/hex"
	"net"
	"strconv"
	"strings"
)

// FingerprintLength is the width of a derived fingerprint in hex characters.
const FingerprintLength = 16

// Fingerprinter derives a device fingerprint from a machine identifier.
type Fingerprinter func(machineID string) string

// DeriveFingerprint hashes machineID with MD5 and returns the first
// FingerprintLength hex digits, upper-cased.
func DeriveFingerprint(machineID string) string {
	sum := md5.Sum([]byte(machineID))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:FingerprintLength]
}

// HostMachineID returns the first usable hardware address of this host as a
// decimal integer, or "0" when none is found.
func HostMachineID() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "0"
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		var n uint64
		for _, b := range iface.HardwareAddr {
			n = n<<8 | uint64(b)
		}
		if n != 0 {
			return strconv.FormatUint(n, 10)
		}
	}
	return "0"
}
