package console

import (
	"encoding/hex"
	"net/netip"
	"strconv"
	"strings"

	"github.com/luhtfiimanal/go-pico-bridge/internal/gbridge"
)

// Request is one parsed command line. The concrete types below are the
// only implementations.
type Request interface {
	request()
}

// Query sends a debug command without data.
type Query struct {
	ID gbridge.CommandID
}

// Toggle sends an on/off setting.
type Toggle struct {
	ID gbridge.CommandID
	On bool
}

// SetDevice selects the emulated adapter.
type SetDevice struct {
	Adapter   gbridge.Adapter
	Unmetered bool
}

// SetUnsigned sends a 16-bit setting.
type SetUnsigned struct {
	ID    gbridge.CommandID
	Value uint16
}

// SetToken sets the relay token; a nil Token clears it.
type SetToken struct {
	Token *[gbridge.RelayTokenSize]byte
}

// SetAddress sends a network address setting. An invalid Addr clears it.
type SetAddress struct {
	ID   gbridge.CommandID
	Addr netip.Addr
	Port uint16
}

// Save records where payloads of Category go. Path may be empty, in which
// case nothing is recorded. A non-zero Query is sent as well.
type Save struct {
	Category gbridge.Category
	Path     string
	Query    gbridge.CommandID
}

// Load sends the contents of Path as the data of ID.
type Load struct {
	ID   gbridge.CommandID
	Path string
}

func (Query) request()       {}
func (Toggle) request()      {}
func (SetDevice) request()   {}
func (SetUnsigned) request() {}
func (SetToken) request()    {}
func (SetAddress) request()  {}
func (Save) request()        {}
func (Load) request()        {}

var queries = map[string]gbridge.CommandID{
	"GET EEPROM":        gbridge.SendEEPROM,
	"GET STATUS":        gbridge.Status,
	"GET INFO":          gbridge.SendImplInfo,
	"GET IMPL":          gbridge.SendImplInfo,
	"GET NUMBER":        gbridge.SendNumberOwn,
	"GET NUMBER_PEER":   gbridge.SendNumberOther,
	"GET NUMBER_STATUS": gbridge.GetNumberStatus,
	"GET RELAY_TOKEN":   gbridge.SendRelayToken,
	"GET GBRIDGE_CFG":   gbridge.SendGBridgeCfg,
	"START ADAPTER":     gbridge.Start,
	"STOP ADAPTER":      gbridge.Stop,
	"FORCE SAVE":        gbridge.ForceSave,
	"ASK NUMBER":        gbridge.AskNumber,
}

var saves = map[string]gbridge.Category{
	"SAVE EEPROM":  gbridge.CategoryEEPROM,
	"SAVE DBG_IN":  gbridge.CategoryLogIn,
	"SAVE DBG_OUT": gbridge.CategoryLogOut,
	"SAVE TIME_TR": gbridge.CategoryTimeTransfer,
	"SAVE TIME_AC": gbridge.CategoryTimeAccept,
	"SAVE TIME_IR": gbridge.CategoryTimeIRQ,
}

var adapters = map[string]gbridge.Adapter{
	"BLUE":   gbridge.AdapterBlue,
	"YELLOW": gbridge.AdapterYellow,
	"GREEN":  gbridge.AdapterGreen,
	"RED":    gbridge.AdapterRed,
}

type addressSetting struct {
	id   gbridge.CommandID
	port uint16
}

var addresses = map[string]addressSetting{
	"SET DNS_1": {gbridge.UpdateDNS1, 53},
	"SET DNS_2": {gbridge.UpdateDNS2, 53},
	"SET RELAY": {gbridge.UpdateRelay, 31227},
}

// Parse reads one command line. Unknown commands and malformed parameters
// report false.
func Parse(line string) (Request, bool) {
	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return nil, false
	}
	key := strings.ToUpper(tokens[0]) + " " + strings.ToUpper(tokens[1])
	args := tokens[2:]

	if id, ok := queries[key]; ok {
		return Query{ID: id}, true
	}
	if cat, ok := saves[key]; ok {
		req := Save{Category: cat}
		if len(args) > 0 {
			req.Path = args[0]
		}
		if cat == gbridge.CategoryEEPROM {
			req.Query = gbridge.SendEEPROM
		}
		return req, true
	}
	if a, ok := addresses[key]; ok {
		return parseAddress(a, args)
	}

	switch key {
	case "AUTO SAVE":
		if len(args) == 0 {
			return nil, false
		}
		switch strings.ToUpper(args[0]) {
		case "ON":
			return Toggle{ID: gbridge.SetSaveStyle, On: true}, true
		case "OFF":
			return Toggle{ID: gbridge.SetSaveStyle, On: false}, true
		}
	case "SET DEVICE":
		if len(args) == 0 {
			return nil, false
		}
		a, ok := adapters[strings.ToUpper(args[0])]
		if !ok {
			return nil, false
		}
		unmetered := len(args) > 1 && strings.EqualFold(args[1], "UNMETERED")
		return SetDevice{Adapter: a, Unmetered: unmetered}, true
	case "SET P2P_PORT":
		if len(args) == 0 {
			return nil, false
		}
		v, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			return nil, false
		}
		return SetUnsigned{ID: gbridge.UpdateP2PPort, Value: uint16(v)}, true
	case "SET RELAY_TOKEN":
		if len(args) == 0 {
			return nil, false
		}
		if strings.EqualFold(args[0], "NULL") {
			return SetToken{}, true
		}
		raw, err := hex.DecodeString(args[0])
		if err != nil || len(raw) != gbridge.RelayTokenSize {
			return nil, false
		}
		var tok [gbridge.RelayTokenSize]byte
		copy(tok[:], raw)
		return SetToken{Token: &tok}, true
	case "LOAD EEPROM":
		if len(args) == 0 {
			return nil, false
		}
		return Load{ID: gbridge.UpdateEEPROM, Path: args[0]}, true
	}
	return nil, false
}

func parseAddress(a addressSetting, args []string) (Request, bool) {
	if len(args) == 0 {
		return nil, false
	}
	req := SetAddress{ID: a.id, Port: a.port}
	if !strings.EqualFold(args[0], "NONE") {
		addr, err := netip.ParseAddr(args[0])
		if err != nil || addr.Zone() != "" {
			return nil, false
		}
		req.Addr = addr
	}
	if len(args) > 1 {
		v, err := strconv.ParseUint(args[1], 0, 16)
		if err != nil {
			return nil, false
		}
		req.Port = uint16(v)
	}
	return req, true
}
