// Package oids names the standard and Epson SNMP objects read outside the
// remote-mode channel.
package oids

const (
	// --- MIB-II system group (RFC 1213) ---

	// SysDescr is a human-readable description of the device.
	SysDescr = "1.3.6.1.2.1.1.1.0"
	// SysUpTime is the agent uptime in hundredths of a second.
	SysUpTime = "1.3.6.1.2.1.1.3.0"
	// SysName is the administratively assigned device name.
	SysName = "1.3.6.1.2.1.1.5.0"
)

const (
	// --- MIB-II interfaces group, first interface ---

	// IfDescr1 carries the network board firmware (EEPS2) version on Epson devices.
	IfDescr1 = "1.3.6.1.2.1.2.2.1.2.1"
	// IfPhysAddress1 is the MAC address of the first interface.
	IfPhysAddress1 = "1.3.6.1.2.1.2.2.1.6.1"
)

const (
	// --- Host Resources MIB (RFC 2790) ---

	// HrDeviceDescr points at HOST-RESOURCES-MIB::hrDeviceDescr.1, the full model name.
	HrDeviceDescr = "1.3.6.1.2.1.25.3.2.1.3.1"
)

const (
	// --- Epson enterprise tree ---

	// EpsonEnterprise is the Seiko Epson private enterprise number.
	EpsonEnterprise = "1.3.6.1.4.1.1248"
	// EpsonModelShort is the short model name.
	EpsonModelShort = EpsonEnterprise + ".1.1.3.1.3.8.0"
)
