package gbridge

import (
	"fmt"
	"strings"
)

var infoNames = map[byte]string{
	InfoCfg:        "EEPROM",
	InfoNumStatus:  "NUMBER_STATUS",
	InfoImpl:       "IMPL",
	InfoStatus:     "STATUS",
	InfoNumber:     "NUMBER",
	InfoNumberPeer: "NUMBER_PEER",
	InfoRelayToken: "RELAY_TOKEN",
	InfoGBridgeCfg: "GBRIDGE_CFG",
}

var logNames = map[byte]string{
	LogIn:           "DBG_IN",
	LogOut:          "DBG_OUT",
	LogTimeTransfer: "TIME_TR",
	LogTimeAccept:   "TIME_AC",
	LogTimeIRQ:      "TIME_IR",
}

// Describe renders a debug answer for the user. It returns "" for units
// that have nothing to print.
func Describe(cmd Command) string {
	if !cmd.Valid || cmd.Partial {
		return ""
	}
	switch cmd.Kind {
	case KindDebugInfo:
		return describeInfo(cmd)
	case KindDebugLog:
		name, ok := logNames[cmd.Sub]
		if !ok {
			name = fmt.Sprintf("LOG(0x%02X)", cmd.Sub)
		}
		return fmt.Sprintf("%s: %d bytes", name, len(cmd.Payload))
	default:
		return ""
	}
}

func describeInfo(cmd Command) string {
	p := cmd.Payload
	switch cmd.Sub {
	case InfoStatus:
		if len(p) < 2 {
			break
		}
		return fmt.Sprintf("STATUS: running=%t can_save=%t auto_save=%t device=%s",
			p[0]&1 != 0, p[0]&2 != 0, p[0]&4 != 0, adapterName(p[1]))
	case InfoNumber, InfoNumberPeer:
		return fmt.Sprintf("%s: %s", infoNames[cmd.Sub], cString(p))
	case InfoRelayToken:
		if len(p) >= 1+RelayTokenSize && p[0] == 1 {
			return fmt.Sprintf("RELAY_TOKEN: %X", p[1:1+RelayTokenSize])
		}
		return "RELAY_TOKEN: NULL"
	case InfoCfg:
		return fmt.Sprintf("EEPROM: %d bytes", len(p))
	}
	name, ok := infoNames[cmd.Sub]
	if !ok {
		name = fmt.Sprintf("INFO(0x%02X)", cmd.Sub)
	}
	return fmt.Sprintf("%s: % X", name, p)
}

func adapterName(v byte) string {
	var name string
	switch Adapter(v &^ unmeteredBit) {
	case AdapterBlue:
		name = "BLUE"
	case AdapterYellow:
		name = "YELLOW"
	case AdapterGreen:
		name = "GREEN"
	case AdapterRed:
		name = "RED"
	default:
		name = fmt.Sprintf("%d", v&^unmeteredBit)
	}
	if v&unmeteredBit != 0 {
		name += " UNMETERED"
	}
	return name
}

func cString(b []byte) string {
	s := string(b)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return s
}
