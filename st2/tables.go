package st2

// Record tags.
const (
	tagStatus           = 0x01 // Printer status code
	tagError            = 0x02 // Error code
	tagSelfPrint        = 0x03 // Self print code
	tagWarning          = 0x04 // Warning codes
	tagPaperPath        = 0x06 // Paper path info
	tagPaperError       = 0x07 // Paper mismatch error
	tagCleaningTime     = 0x0c // Cleaning time info
	tagTanks            = 0x0d // Maintenance tanks
	tagReplaceCartridge = 0x0e // Replace cartridge info
	tagInkInfo          = 0x0f // Ink levels
	tagLoadingPath      = 0x10 // Loading path info
	tagCancelCode       = 0x13 // Cancel code
	tagCutter           = 0x14 // Cutter info
	tagTrayOpen         = 0x18 // Stacker/tray open status
	tagJobName          = 0x19 // Current job name
	tagTemperature      = 0x1c // Temperature info
	tagSerial           = 0x1f // Serial number
	tagPaperJam         = 0x35 // Paper jam error
	tagPaperCount       = 0x36 // Paper count info
	tagMaintenanceBox   = 0x37 // Maintenance box status
	tagInterfaceStatus  = 0x3d // Printer interface status
	tagSerialInfo       = 0x40 // Serial number info
	tagInkReplacement   = 0x45 // Ink replacement counter
	tagMaintBoxReplace  = 0x46 // Maintenance box replacement counter
)

// Cartridge type byte of an ink record.
var cartridgeColors = map[byte]string{
	0x01: "Black",
	0x03: "Cyan",
	0x04: "Magenta",
	0x05: "Yellow",
	0x06: "Light Cyan",
	0x07: "Light Magenta",
	0x0a: "Light Black",
	0x0b: "Matte Black",
	0x0f: "Light Light Black",
	0x10: "Orange",
	0x11: "Green",
}

// Ink color byte, used when the cartridge type is unknown.
var inkColors = map[byte]string{
	0x00: "Black",
	0x01: "Cyan",
	0x02: "Magenta",
	0x03: "Yellow",
	0x04: "Light Cyan",
	0x05: "Light Magenta",
	0x06: "Dark Yellow",
	0x07: "Grey",
	0x08: "Light Black",
	0x09: "Red",
	0x0A: "Blue",
	0x0B: "Gloss Optimizer",
	0x0C: "Light Grey",
	0x0D: "Orange",
}

var printerStatusText = map[byte]string{
	0x00: "Error",
	0x01: "Self Printing",
	0x02: "Busy",
	0x03: "Waiting",
	0x04: "Idle (ready to print)",
	0x05: "Paused",
	0x07: "Cleaning",
	0x08: "Factory shipment (not initialized)",
	0x0a: "Shutdown",
	0x0f: "Nozzle Check",
	0x11: "Charging",
}

var printerErrorText = map[byte]string{
	0x00: "Fatal error",
	0x01: "Other interface selected",
	0x02: "Cover open",
	0x03: "Fatal error",
	0x04: "Paper jam",
	0x05: "Ink out",
	0x06: "Paper out",
	0x0c: "Paper size/type/path error",
	0x10: "Waste ink pad overflow",
	0x11: "Wait return from tear-off",
	0x12: "Double feed",
	0x1a: "Cartridge cover open",
	0x1c: "Cutter error (fatal)",
	0x1d: "Cutter jam (recoverable)",
	0x22: "Maintenance cartridge missing",
	0x25: "Rear cover open",
	0x29: "CD-R tray out",
	0x2a: "Memory card error",
	0x2B: "Tray cover open",
	0x2C: "Ink cartridge overflow",
	0x2F: "Battery voltage error",
	0x30: "Battery temperature error",
	0x31: "Battery empty",
	0x33: "Initial filling impossible",
	0x36: "Maintenance cartridge cover open",
	0x37: "Scanner/front cover open",
	0x41: "Maintenance request",
	0x47: "Printing disabled",
	0x4a: "Maintenance box near end",
	0x4b: "Driver mismatch",
}

var warningCodes = map[byte]string{
	0x10: "Ink low (Black or Yellow)",
	0x11: "Ink low (Magenta)",
	0x12: "Ink low (Yellow or Cyan)",
	0x13: "Ink low (Cyan or Matte Black)",
	0x14: "Ink low (Photo Black)",
	0x15: "Ink low (Red)",
	0x16: "Ink low (Blue)",
	0x17: "Ink low (Gloss Optimizer)",
	0x44: "Black print mode",
	0x51: "Cleaning disabled (Cyan)",
	0x52: "Cleaning disabled (Magenta)",
	0x53: "Cleaning disabled (Yellow)",
	0x54: "Cleaning disabled (Black)",
}

var selfPrintCodes = map[byte]string{
	0x00: "Nozzle test printing",
}

var paperErrorCodes = map[byte]string{
	0x00: "No error",
	0x01: "Paper size mismatch",
	0x02: "Paper type mismatch",
	0x03: "Paper size and type mismatch",
}

// Known paper path byte sequences.
var paperPaths = map[string]string{
	"\x01\xff":     "Cut sheet (Rear)",
	"\x01\x00":     "Cut sheet (Front)",
	"\x03\x01\x00": "Roll paper",
	"\x03\x02\x00": "Photo Album",
	"\x02\x01\x00": "CD-R, cardboard",
}

var cancelCodes = map[byte]string{
	0x01: "No request",
	0xA1: "The status during received cancel command and initialize the printer",
	0x81: "Request",
}

var cutterCodes = map[byte]string{
	0x00: "Set cutter",
	0x01: "No cutter",
}

var trayCodes = map[byte]string{
	0x02: "Closed",
	0x03: "Open",
}

var temperatureCodes = map[byte]string{
	0x00: "The printer temperature is lower than 40C",
	0x01: "The printer temperature is higher than 40C",
}

var paperJamCodes = map[byte]string{
	0x00: "No jams",
	0x01: "Paper jammed at ejecting",
	0x02: "Paper jam in rear ASF or no feed",
	0x80: "No papers at rear ASF",
}

var interfaceCodes = map[byte]string{
	0x00: "Available to accept data and reply",
	0x01: "Not available to accept data",
}

var maintenanceBoxStates = map[byte]string{
	0x00: "not full",
	0x01: "near full",
	0x02: "full",
}

const (
	loadingPathFixed = "01094E"
	jobNameUndefined = "\x00\x00\x00\x00\x00unknown"
)
