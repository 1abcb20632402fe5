//go:build linux

package serialport

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/luhtfiimanal/go-pico-bridge/internal/transport"
)

// Port provides bounded, killable access to a Linux serial port.
// Close may be called from any goroutine and unblocks a pending read.
type Port struct {
	fd        int
	file      *os.File
	done      chan struct{}
	closeOnce sync.Once
	config    Config
	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd
}

var errHangup = errors.New("serial port hung up")

// Open opens a serial port using the provided Config.
// The port is configured for raw 8N1 operation with no line discipline.
func Open(cfg Config) (*Port, error) {
	cfg = cfg.withDefaults()

	fd, err := syscall.Open(cfg.Device, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	// Baud rate
	baud := baudToUnix(cfg.BaudRate)
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud

	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("set termios: %w", err)
	}

	// Turn back into blocking mode now that config is done
	syscall.SetNonblock(fd, false)

	// Create self-pipe for killability
	pipeFds := make([]int, 2)
	if err := unix.Pipe(pipeFds); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}

	return &Port{
		fd:     fd,
		file:   os.NewFile(uintptr(fd), cfg.Device),
		done:   make(chan struct{}),
		config: cfg,
		pipeR:  pipeFds[0],
		pipeW:  pipeFds[1],
	}, nil
}

// WriteExact writes all of b, giving up after the write timeout.
func (p *Port) WriteExact(b []byte) error {
	if p.closed() {
		return transport.ErrClosed
	}
	deadline := time.Now().Add(p.config.WriteTimeout)
	for len(b) > 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("write: %w", os.ErrDeadlineExceeded)
		}
		ready, err := p.wait(unix.POLLOUT, remaining)
		if err != nil {
			return err
		}
		if !ready {
			continue
		}
		n, err := p.file.Write(b)
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		b = b[n:]
	}
	return nil
}

// ReadN collects up to n bytes until the read timeout elapses.
func (p *Port) ReadN(n int) ([]byte, error) {
	if p.closed() {
		return nil, transport.ErrClosed
	}
	buf := make([]byte, n)
	got := 0
	deadline := time.Now().Add(p.config.ReadTimeout)
	for got < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		ready, err := p.wait(unix.POLLIN, remaining)
		if err != nil {
			return buf[:got], err
		}
		if !ready {
			break
		}
		m, err := p.file.Read(buf[got:])
		if err != nil {
			return buf[:got], fmt.Errorf("read: %w", err)
		}
		got += m
	}
	if got == 0 {
		return nil, transport.ErrTimeout
	}
	return buf[:got], nil
}

// wait polls the port together with the self-pipe. It reports false when
// the timeout passed without the requested event.
func (p *Port) wait(events int16, timeout time.Duration) (bool, error) {
	ms := int(timeout / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	pfd := []unix.PollFd{
		{Fd: int32(p.fd), Events: events},
		{Fd: int32(p.pipeR), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(pfd, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		break
	}
	// Check killability
	if p.closed() || pfd[1].Revents&unix.POLLIN != 0 {
		return false, transport.ErrClosed
	}
	if pfd[0].Revents&events != 0 {
		return true, nil
	}
	if pfd[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return false, errHangup
	}
	return false, nil
}

func (p *Port) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Close discards buffered data, closes the port and unblocks any ReadN or
// WriteExact in progress. Safe to call multiple times.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		// Wake up poll using self-pipe
		unix.Write(p.pipeW, []byte{1})
		unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCIOFLUSH)
		err = p.file.Close()
		unix.Close(p.pipeR)
		unix.Close(p.pipeW)
	})
	return err
}

func baudToUnix(baud int) uint32 {
	switch baud {
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	case 460800:
		return unix.B460800
	case 921600:
		return unix.B921600
	default:
		return unix.B115200 // fallback
	}
}
