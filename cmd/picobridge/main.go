// Command picobridge connects a Pico link-cable adapter to the host and
// relays its bridge traffic. Debug requests are typed on standard input, one
// per line:
//
//	GET STATUS
//	SET DNS_1 8.8.8.8
//	SAVE EEPROM eeprom.bin
//	LOAD EEPROM eeprom.bin
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInterrupted) {
			fmt.Fprintln(os.Stderr, "picobridge:", err)
		}
		os.Exit(1)
	}
}
