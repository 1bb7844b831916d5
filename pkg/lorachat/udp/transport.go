// Package udp carries the chat link over IPv4 multicast on a local network.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/exepirit/lorachat/internal/log"
	"github.com/exepirit/lorachat/pkg/lorachat"
)

const (
	DefaultGroup = "224.0.0.69:4403"

	packetsBufferSize = 120
	maxDatagramSize   = 1500
)

var _ lorachat.Transport = &Transport{}

// Transport represents a transport mechanism over UDP multicast.
type Transport struct {
	// Group is the multicast group address. Defaults to DefaultGroup.
	Group string
	// Interface names the network interface to join the group on. When empty, the interface
	// routing to the group is detected.
	Interface string
	Logger    log.Logger

	lock     sync.Mutex
	conn     *net.UDPConn
	sendConn *net.UDPConn
	packets  chan []byte
	ready    atomic.Bool
}

func (t *Transport) logger() log.Logger {
	return log.OrNOOP(t.Logger)
}

// Initialize joins the multicast group.
func (t *Transport) Initialize(_ context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.ready.Load() {
		return nil
	}

	group := t.Group
	if group == "" {
		group = DefaultGroup
	}
	gaddr, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return fmt.Errorf("%w: %w", lorachat.ErrInitFailed, err)
	}

	sendConn, err := net.DialUDP("udp4", nil, gaddr)
	if err != nil {
		return fmt.Errorf("%w: %w", lorachat.ErrInitFailed, err)
	}

	var intf *net.Interface
	if t.Interface != "" {
		intf, err = net.InterfaceByName(t.Interface)
	} else {
		intf, err = interfaceFor(sendConn.LocalAddr().(*net.UDPAddr).IP)
	}
	if err != nil {
		_ = sendConn.Close()
		return fmt.Errorf("%w: %w", lorachat.ErrInitFailed, err)
	}
	t.logger().Info("Found multicast interface", "interface", intf.Name)

	conn, err := net.ListenMulticastUDP("udp4", intf, gaddr)
	if err != nil {
		_ = sendConn.Close()
		return fmt.Errorf("%w: %w", lorachat.ErrInitFailed, err)
	}

	t.conn = conn
	t.sendConn = sendConn
	t.packets = make(chan []byte, packetsBufferSize)
	t.ready.Store(true)
	go t.pullPackets(conn, sendConn.LocalAddr().String(), t.packets)
	return nil
}

// interfaceFor finds the interface holding the local address laddr.
func interfaceFor(laddr net.IP) (*net.Interface, error) {
	intfs, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, intf := range intfs {
		addrs, err := intf.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if addrNet, ok := addr.(*net.IPNet); ok && laddr.Equal(addrNet.IP) {
				return &intf, nil
			}
		}
	}
	return nil, fmt.Errorf("could not find interface for local address %+v", laddr)
}

// Send writes a frame to the group.
func (t *Transport) Send(_ context.Context, frame []byte) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.ready.Load() {
		return lorachat.ErrNotInitialized
	}
	if len(frame) > maxDatagramSize {
		return fmt.Errorf("%w: frame is %d bytes", lorachat.ErrOversizeMessage, len(frame))
	}
	if _, err := t.sendConn.Write(frame); err != nil {
		return fmt.Errorf("%w: %w", lorachat.ErrLinkBusy, err)
	}
	return nil
}

// Poll returns the next datagram received from another node.
func (t *Transport) Poll(_ context.Context) ([]byte, error) {
	t.lock.Lock()
	packets := t.packets
	t.lock.Unlock()
	if !t.ready.Load() {
		return nil, lorachat.ErrNotInitialized
	}
	select {
	case packet := <-packets:
		return packet, nil
	default:
		return nil, nil
	}
}

func (t *Transport) Ready() bool {
	return t.ready.Load()
}

// Cleanup leaves the group.
func (t *Transport) Cleanup() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.ready.Swap(false) {
		return nil
	}
	return errors.Join(t.conn.Close(), t.sendConn.Close())
}

func (t *Transport) pullPackets(conn *net.UDPConn, self string, packets chan []byte) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				t.logger().Warn("Cannot read datagram", "error", err)
			}
			return
		}
		if !accept(addr, self) {
			continue
		}

		t.logger().Debug("Received UDP packet", "from", addr, "size", n)
		packet := append([]byte(nil), buf[:n]...)
		if len(packets) == packetsBufferSize {
			select {
			case <-packets:
			default:
			}
		}
		packets <- packet
	}
}

// accept filters out datagrams looped back from our own socket.
func accept(from *net.UDPAddr, self string) bool {
	return from != nil && from.String() != self
}
