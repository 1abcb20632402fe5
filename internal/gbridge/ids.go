package gbridge

import "fmt"

// Kind identifies the type of a library unit.
type Kind byte

const (
	KindData         Kind = 0x01
	KindDebugCommand Kind = 0x02
	KindDebugInfo    Kind = 0x03
	KindDebugLog     Kind = 0x04
	KindDebugAck     Kind = 0x05
	KindPoll         Kind = 0x06
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindDebugCommand:
		return "debug-command"
	case KindDebugInfo:
		return "debug-info"
	case KindDebugLog:
		return "debug-log"
	case KindDebugAck:
		return "debug-ack"
	case KindPoll:
		return "poll"
	default:
		return fmt.Sprintf("kind(0x%02X)", byte(k))
	}
}

// CommandID identifies a debug command understood by the firmware. It is
// also the key of the acknowledgment table.
type CommandID byte

const (
	SendEEPROM       CommandID = 1
	UpdateEEPROM     CommandID = 2
	UpdateRelay      CommandID = 3
	UpdateRelayToken CommandID = 4
	UpdateDNS1       CommandID = 5
	UpdateDNS2       CommandID = 6
	UpdateP2PPort    CommandID = 7
	UpdateDevice     CommandID = 8
	GetNumberStatus  CommandID = 9
	SendImplInfo     CommandID = 10
	Stop             CommandID = 11
	Start            CommandID = 12
	Status           CommandID = 13
	SendNumberOwn    CommandID = 14
	SendNumberOther  CommandID = 15
	SendRelayToken   CommandID = 16
	SetSaveStyle     CommandID = 17
	ForceSave        CommandID = 18
	SendGBridgeCfg   CommandID = 19
	UpdateGBridgeCfg CommandID = 20
	AskNumber        CommandID = 21
)

var commandNames = map[CommandID]string{
	SendEEPROM:       "SEND_EEPROM",
	UpdateEEPROM:     "UPDATE_EEPROM",
	UpdateRelay:      "UPDATE_RELAY",
	UpdateRelayToken: "UPDATE_RELAY_TOKEN",
	UpdateDNS1:       "UPDATE_DNS1",
	UpdateDNS2:       "UPDATE_DNS2",
	UpdateP2PPort:    "UPDATE_P2P_PORT",
	UpdateDevice:     "UPDATE_DEVICE",
	GetNumberStatus:  "GET_NUMBER_STATUS",
	SendImplInfo:     "SEND_IMPL_INFO",
	Stop:             "STOP",
	Start:            "START",
	Status:           "STATUS",
	SendNumberOwn:    "SEND_NUMBER_OWN",
	SendNumberOther:  "SEND_NUMBER_OTHER",
	SendRelayToken:   "SEND_RELAY_TOKEN",
	SetSaveStyle:     "SET_SAVE_STYLE",
	ForceSave:        "FORCE_SAVE",
	SendGBridgeCfg:   "SEND_GBRIDGE_CFG",
	UpdateGBridgeCfg: "UPDATE_GBRIDGE_CFG",
	AskNumber:        "ASK_NUMBER",
}

func (id CommandID) String() string {
	if name, ok := commandNames[id]; ok {
		return name
	}
	return fmt.Sprintf("CMD(%d)", byte(id))
}

// acked lists the commands the firmware answers with a DebugAck unit.
var acked = map[CommandID]bool{
	UpdateEEPROM:     true,
	UpdateRelay:      true,
	UpdateRelayToken: true,
	UpdateDNS1:       true,
	UpdateDNS2:       true,
	UpdateP2PPort:    true,
	UpdateDevice:     true,
	Stop:             true,
	Start:            true,
	SetSaveStyle:     true,
	ForceSave:        true,
	UpdateGBridgeCfg: true,
	AskNumber:        true,
}

// Info identifiers, the first payload byte of a DebugInfo unit.
const (
	InfoCfg        byte = 0x01
	InfoNumStatus  byte = 0x02
	InfoImpl       byte = 0x03
	InfoStatus     byte = 0x04
	InfoNumber     byte = 0x05
	InfoNumberPeer byte = 0x06
	InfoRelayToken byte = 0x07
	InfoGBridgeCfg byte = 0x08
)

// Log identifiers, the first payload byte of a DebugLog unit.
const (
	LogIn           byte = 0x01
	LogOut          byte = 0x02
	LogTimeTransfer byte = 0x03
	LogTimeAccept   byte = 0x04
	LogTimeIRQ      byte = 0x05
)

// Category keys the save table: a unit kind plus its sub identifier.
type Category struct {
	Kind Kind
	Sub  byte
}

func (c Category) String() string {
	return fmt.Sprintf("%s/0x%02X", c.Kind, c.Sub)
}

// Save categories offered by the command surface.
var (
	CategoryEEPROM       = Category{KindDebugInfo, InfoCfg}
	CategoryLogIn        = Category{KindDebugLog, LogIn}
	CategoryLogOut       = Category{KindDebugLog, LogOut}
	CategoryTimeTransfer = Category{KindDebugLog, LogTimeTransfer}
	CategoryTimeAccept   = Category{KindDebugLog, LogTimeAccept}
	CategoryTimeIRQ      = Category{KindDebugLog, LogTimeIRQ}
)
