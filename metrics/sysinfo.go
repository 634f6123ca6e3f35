package metrics

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"epsonconf/common/logger"
	"epsonconf/snmp"
	"epsonconf/snmp/oids"

	"github.com/gosnmp/gosnmp"
	"golang.org/x/text/encoding/charmap"
)

// SysInfoOIDs are the standard MIB objects reported by SysInfo, in order.
var SysInfoOIDs = []struct {
	Name string
	OID  string
}{
	{"model", oids.HrDeviceDescr},
	{"model_short", oids.EpsonModelShort},
	{"EEPS2 version", oids.IfDescr1},
	{"descr", oids.SysDescr},
	{"UpTime", oids.SysUpTime},
	{"Name", oids.SysName},
	{"MAC Address", oids.IfPhysAddress1},
}

// SysInfo reads the standard MIB objects. Objects the agent does not
// answer are left out. Uptime is rendered HH:MM:SS and the MAC address as
// AA-BB-CC-DD-EE-FF.
func (p *Printer) SysInfo(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(SysInfoOIDs))
	for _, entry := range SysInfoOIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pdu, err := snmp.Get(p.transport, entry.OID)
		if err != nil {
			if logger.Global != nil {
				logger.Global.Debug("System info object unavailable", "name", entry.Name, "error", err)
			}
			continue
		}
		value, err := renderSysValue(entry.Name, pdu)
		if err != nil {
			if logger.Global != nil {
				logger.Global.Debug("System info object unreadable", "name", entry.Name, "error", err)
			}
			continue
		}
		out[entry.Name] = value
	}
	return out, nil
}

func renderSysValue(name string, pdu gosnmp.SnmpPDU) (string, error) {
	if name == "MAC Address" {
		b, err := snmp.ValueBytes(pdu)
		if err != nil {
			return "", err
		}
		return FormatMAC(b), nil
	}
	if pdu.Type == gosnmp.OctetString {
		b, err := snmp.ValueBytes(pdu)
		if err != nil {
			return "", err
		}
		return DecodeOctets(b), nil
	}
	n, err := snmp.ValueInt(pdu)
	if err != nil {
		return "", err
	}
	if name == "UpTime" {
		return FormatUptime(n.Int64()), nil
	}
	return n.String(), nil
}

// DecodeOctets returns b as text, reading it as ISO-8859-1 when it is not
// valid UTF-8.
func DecodeOctets(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return fmt.Sprintf("%X", b)
	}
	return string(s)
}

// FormatUptime renders hundredths of a second as HH:MM:SS, wrapping at a day.
func FormatUptime(ticks int64) string {
	return time.Unix(ticks/100, 0).UTC().Format("15:04:05")
}
