// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

package vconn

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/platinasystems/log"
	"github.com/platinasystems/oflow/buffer"
	"github.com/platinasystems/oflow/ofp"
)

var tcpClass = &class{name: "tcp", open: tcpOpen}
var ptcpClass = &class{name: "ptcp", open: ptcpOpen}

const rxBufSize = 1564

// tcpVconn is an active OpenFlow connection over a non-blocking TCP
// stream.  rx assembles one incoming frame across short reads; tx stages
// at most one outgoing message whose write came up short.
type tcpVconn struct {
	name string
	fd   int
	rx   *buffer.Buffer
	tx   *buffer.Buffer
}

func newTcpVconn(name string, fd int) (*tcpVconn, error) {
	if err := syscall.SetNonblock(fd, true); err != nil {
		log.Print("err", name, ": set nonblocking: ", err)
		syscall.Close(fd)
		return nil, err
	}
	err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP,
		syscall.TCP_NODELAY, 1)
	if err != nil {
		log.Print("err", name, ": setsockopt TCP_NODELAY: ", err)
		syscall.Close(fd)
		return nil, err
	}
	return &tcpVconn{name: name, fd: fd}, nil
}

// lookupIp resolves host to an IPv4 address.
func lookupIp(host string) (ip [4]byte, err error) {
	addrs, err := net.LookupIP(host)
	if err != nil {
		return ip, syscall.ENOENT
	}
	for _, a := range addrs {
		if v4 := a.To4(); v4 != nil {
			copy(ip[:], v4)
			return ip, nil
		}
	}
	return ip, syscall.ENOENT
}

func tcpOpen(name, suffix string) (Vconn, error) {
	host := suffix
	port := ofp.TcpPort
	if i := strings.LastIndex(suffix, ":"); i >= 0 {
		host = suffix[:i]
		var err error
		port, err = strconv.Atoi(suffix[i+1:])
		if err != nil {
			return nil, fmt.Errorf("%s: bad port %q", name,
				suffix[i+1:])
		}
	}
	if len(host) == 0 {
		return nil, fmt.Errorf("%s: bad peer name format", name)
	}

	sa := &syscall.SockaddrInet4{Port: port}
	ip, err := lookupIp(host)
	if err != nil {
		return nil, err
	}
	sa.Addr = ip

	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM, 0)
	if err != nil {
		log.Print("err", name, ": socket: ", err)
		return nil, err
	}

	// A blocking connect is fine; this path only runs during setup.
	if err = syscall.Connect(fd, sa); err != nil {
		log.Print("err", name, ": connect: ", err)
		syscall.Close(fd)
		return nil, err
	}

	return newTcpVconn(name, fd)
}

func (t *tcpVconn) Name() string { return t.name }

func (t *tcpVconn) Close() error {
	return syscall.Close(t.fd)
}

func (t *tcpVconn) Prepoll(want int, pfd *unix.PollFd) bool {
	pfd.Fd = int32(t.fd)
	if want&WantRecv != 0 {
		pfd.Events |= unix.POLLIN
	}
	if want&WantSend != 0 || t.tx != nil {
		pfd.Events |= unix.POLLOUT
	}
	return false
}

func (t *tcpVconn) Postpoll(revents *int16) {
	if *revents&unix.POLLOUT != 0 && t.tx != nil {
		var n int
		var err error
		for {
			n, err = syscall.Write(t.fd, t.tx.Data())
			if err != syscall.EINTR {
				break
			}
		}
		if err != nil {
			if err != syscall.EAGAIN {
				log.Print("err", t.name, ": send: ", err)
				*revents |= unix.POLLERR
			}
		} else if n > 0 {
			t.tx.Pull(n)
			if t.tx.Size() == 0 {
				t.tx = nil
			}
		}
		if t.tx != nil {
			*revents &^= unix.POLLOUT
		}
	}
}

// Recv returns the next complete OpenFlow frame, EAGAIN if one has not
// fully arrived, io.EOF on clean close with no partial frame buffered,
// or EPROTO on a corrupt stream.  Partial progress is kept across calls.
func (t *tcpVconn) Recv() (*buffer.Buffer, error) {
	if t.rx == nil {
		t.rx = buffer.New(rxBufSize)
	}
	rx := t.rx

	for {
		var want int
		if rx.Size() < ofp.HeaderLen {
			want = ofp.HeaderLen - rx.Size()
		} else {
			length := ofp.FrameLength(rx.Data())
			if length < ofp.HeaderLen {
				log.Print("err", t.name,
					": received too-short ofp frame (",
					length, " bytes)")
				return nil, syscall.EPROTO
			}
			if rx.Size() >= length {
				// A frame with no body is still a frame.
				t.rx = nil
				return rx, nil
			}
			want = length - rx.Size()
		}
		rx.ReserveTailroom(want)

		n, err := syscall.Read(t.fd, rx.Tail()[:want])
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			if rx.Size() != 0 {
				return nil, syscall.EPROTO
			}
			return nil, io.EOF
		}
		rx.Advance(n)
		if n < want {
			return nil, syscall.EAGAIN
		}
	}
}

// Send transmits msg, taking ownership.  If the write comes up short the
// remainder is staged and flushed by Postpoll when the socket is
// writable again; a second Send while a message is staged returns
// EAGAIN.
func (t *tcpVconn) Send(msg *buffer.Buffer) error {
	if t.tx != nil {
		return syscall.EAGAIN
	}

	var n int
	var err error
	for {
		n, err = syscall.Write(t.fd, msg.Data())
		if err != syscall.EINTR {
			break
		}
	}
	if err == nil && n == msg.Size() {
		return nil
	}
	if err == nil || err == syscall.EAGAIN {
		if n > 0 {
			msg.Pull(n)
		}
		t.tx = msg
		return nil
	}
	return err
}

func (t *tcpVconn) Accept() (Vconn, error) {
	return nil, syscall.EOPNOTSUPP
}

// ptcpVconn listens for incoming OpenFlow connections.
type ptcpVconn struct {
	name string
	fd   int
}

func ptcpOpen(name, suffix string) (Vconn, error) {
	port := ofp.TcpPort
	if len(suffix) > 0 {
		var err error
		port, err = strconv.Atoi(suffix)
		if err != nil {
			return nil, fmt.Errorf("%s: bad port %q", name, suffix)
		}
	}

	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM, 0)
	if err != nil {
		log.Print("err", name, ": socket: ", err)
		return nil, err
	}
	fail := func(op string, err error) (Vconn, error) {
		log.Print("err", name, ": ", op, ": ", err)
		syscall.Close(fd)
		return nil, err
	}

	err = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET,
		syscall.SO_REUSEADDR, 1)
	if err != nil {
		return fail("setsockopt SO_REUSEADDR", err)
	}
	if err = syscall.Bind(fd, &syscall.SockaddrInet4{Port: port}); err != nil {
		return fail("bind", err)
	}
	if err = syscall.Listen(fd, 10); err != nil {
		return fail("listen", err)
	}
	if err = syscall.SetNonblock(fd, true); err != nil {
		return fail("set nonblocking", err)
	}

	return &ptcpVconn{name: name, fd: fd}, nil
}

func (p *ptcpVconn) Name() string { return p.name }

func (p *ptcpVconn) Close() error {
	return syscall.Close(p.fd)
}

func (p *ptcpVconn) Prepoll(want int, pfd *unix.PollFd) bool {
	pfd.Fd = int32(p.fd)
	if want&WantAccept != 0 {
		pfd.Events |= unix.POLLIN
	}
	return false
}

func (p *ptcpVconn) Postpoll(revents *int16) {}

// Accept returns a vconn for the next queued incoming connection, or
// EAGAIN if none is pending.
func (p *ptcpVconn) Accept() (Vconn, error) {
	for {
		fd, sa, err := syscall.Accept(p.fd)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		name := "tcp"
		if sin, ok := sa.(*syscall.SockaddrInet4); ok {
			name = fmt.Sprintf("tcp:%d.%d.%d.%d:%d",
				sin.Addr[0], sin.Addr[1], sin.Addr[2],
				sin.Addr[3], sin.Port)
		}
		return newTcpVconn(name, fd)
	}
}

func (p *ptcpVconn) Recv() (*buffer.Buffer, error) {
	return nil, syscall.EOPNOTSUPP
}

func (p *ptcpVconn) Send(msg *buffer.Buffer) error {
	return syscall.EOPNOTSUPP
}
