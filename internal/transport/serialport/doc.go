// Package serialport is the OS serial port backend: the adapter's CDC-ACM
// interface as exposed by the operating system (/dev/ttyACM*, COM*).
//
// The port is located by USB vendor/product id through
// go.bug.st/serial/enumerator. On Linux it is then driven with raw termios
// and poll(2), with a self-pipe so that Close unblocks a pending read; other
// platforms go through go.bug.st/serial.
//
// Reads follow the fixed-size poll of the bridge: ReadN(n) collects bytes
// until n arrived or the read timeout elapsed, and reports
// transport.ErrTimeout when nothing came at all.
//
// Example usage:
//
//	p, err := serialport.Open(serialport.Config{
//	    Device:       "/dev/ttyACM0",
//	    BaudRate:     115200,
//	    ReadTimeout:  50 * time.Millisecond,
//	    WriteTimeout: 5 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	if err := p.WriteExact([]byte{0x00}); err != nil {
//	    log.Println("write failed:", err)
//	}
//	buf, err := p.ReadN(64)
package serialport
