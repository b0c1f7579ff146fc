// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

package netlink

import (
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/platinasystems/log"
	"github.com/platinasystems/oflow/buffer"
	"github.com/willf/bitset"
)

// Every netlink socket binds a unique 32-bit pid.  By convention a
// process with a single socket uses its Unix process id; a process with
// several sockets adds a per-socket index in the bits above it.  The
// kernel is pid 0.
const (
	SocketBits  = 10
	MaxSockets  = 1 << SocketBits
	ProcessBits = 32 - SocketBits
	ProcessMask = 1<<ProcessBits - 1
)

var (
	mu sync.Mutex

	// Sequence numbers are unique process-wide, not per socket, so a
	// late reply that lands on a reused pid cannot be mistaken for a
	// reply to a current request.
	seq uint32

	pids = bitset.New(MaxSockets)
)

func nextSequence() uint32 {
	mu.Lock()
	defer mu.Unlock()
	if seq == 0 {
		seq = uint32(os.Getpid()) ^ uint32(time.Now().Unix())
	}
	seq++
	return seq
}

func allocPid() (uint32, error) {
	mu.Lock()
	defer mu.Unlock()
	i, found := pids.NextClear(0)
	if !found || i >= MaxSockets {
		log.Print("err", "netlink: pid space exhausted")
		return 0, syscall.ENOBUFS
	}
	pids.Set(i)
	return uint32(os.Getpid())&ProcessMask | uint32(i)<<ProcessBits, nil
}

func freePid(pid uint32) {
	mu.Lock()
	defer mu.Unlock()
	pids.Clear(uint(pid >> ProcessBits))
}

// Socket is a raw netlink socket bound to a process-unique pid.  It is
// not safe for concurrent use.
type Socket struct {
	fd  int
	pid uint32

	// Seams over the raw datagram exchange so the transaction
	// recovery paths can be driven without a kernel.
	send func(*buffer.Buffer, bool) error
	recv func(bool) (*buffer.Buffer, error)
}

// New opens a netlink socket for the given protocol (NETLINK_ROUTE,
// NETLINK_GENERIC, ...), allocates its pid, binds it, and connects it to
// the kernel.  A nonzero multicastGroup subscribes the socket to that
// group; nonzero sndbuf or rcvbuf override the kernel default socket
// buffer sizes.
func New(protocol, multicastGroup, sndbuf, rcvbuf int) (*Socket, error) {
	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_RAW,
		protocol)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	pid, err := allocPid()
	if err != nil {
		syscall.Close(fd)
		return nil, err
	}
	fail := func(op string, err error) (*Socket, error) {
		freePid(pid)
		syscall.Close(fd)
		return nil, os.NewSyscallError(op, err)
	}

	if sndbuf != 0 {
		err = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET,
			syscall.SO_SNDBUF, sndbuf)
		if err != nil {
			return fail("setsockopt SO_SNDBUF", err)
		}
	}
	if rcvbuf != 0 {
		err = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET,
			syscall.SO_RCVBUF, rcvbuf)
		if err != nil {
			return fail("setsockopt SO_RCVBUF", err)
		}
	}

	local := &syscall.SockaddrNetlink{
		Family: syscall.AF_NETLINK,
		Pid:    pid,
	}
	if multicastGroup > 0 && multicastGroup <= 32 {
		// Supported by old kernels, but limited to 32 groups per
		// protocol.
		local.Groups = 1 << uint(multicastGroup-1)
	}
	if err = syscall.Bind(fd, local); err != nil {
		return fail("bind", err)
	}

	// The kernel is pid 0.
	remote := &syscall.SockaddrNetlink{Family: syscall.AF_NETLINK}
	if err = syscall.Connect(fd, remote); err != nil {
		return fail("connect", err)
	}

	if multicastGroup > 32 {
		err = syscall.SetsockoptInt(fd, SOL_NETLINK,
			NETLINK_ADD_MEMBERSHIP, multicastGroup)
		if err != nil {
			return fail("setsockopt NETLINK_ADD_MEMBERSHIP", err)
		}
	}

	s := &Socket{fd: fd, pid: pid}
	s.send = s.sockSend
	s.recv = s.sockRecv
	return s, nil
}

// Close closes the socket and releases its pid for reuse.
func (s *Socket) Close() error {
	err := syscall.Close(s.fd)
	s.fd = -1
	freePid(s.pid)
	return err
}

func (s *Socket) Pid() uint32 { return s.pid }
func (s *Socket) Fd() int     { return s.fd }

// Send finalizes msg's length field and sends it to the kernel.  With
// wait false it returns EAGAIN instead of blocking on a full send
// buffer.
func (s *Socket) Send(msg *buffer.Buffer, wait bool) error {
	return s.send(msg, wait)
}

func (s *Socket) sockSend(msg *buffer.Buffer, wait bool) error {
	MsgHeader(msg).Len = uint32(msg.Size())
	flags := 0
	if !wait {
		flags = syscall.MSG_DONTWAIT
	}
	for {
		err := syscall.Sendto(s.fd, msg.Data(), flags, nil)
		if err == syscall.EINTR {
			continue
		}
		return err
	}
}

// Recv receives one netlink datagram into a fresh buffer, which the
// caller owns.  With wait false it returns EAGAIN instead of blocking on
// an empty receive queue.
func (s *Socket) Recv(wait bool) (*buffer.Buffer, error) {
	return s.recv(wait)
}

func (s *Socket) sockRecv(wait bool) (*buffer.Buffer, error) {
	flags := syscall.MSG_PEEK
	if !wait {
		flags |= syscall.MSG_DONTWAIT
	}

	// The datagram size isn't known yet, so peek with a guess and
	// double it until the message fits.
	bufsize := 2048
	buf := buffer.New(bufsize)
	for {
		var n, rflags int
		var err error
		for {
			n, _, rflags, _, err = syscall.Recvmsg(s.fd,
				buf.Tail(), nil, flags)
			if err != syscall.EINTR {
				break
			}
		}
		if err != nil {
			return nil, err.(syscall.Errno)
		}
		if rflags&syscall.MSG_TRUNC != 0 {
			bufsize *= 2
			buf.Reinit(bufsize)
			continue
		}
		buf.Advance(n)
		break
	}

	// The message was peeked whole, so receive again to clear it from
	// the queue.
	var tmp [1]byte
	for {
		_, _, _, _, err := syscall.Recvmsg(s.fd, tmp[:], nil,
			syscall.MSG_DONTWAIT)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			log.Print("err",
				"netlink: failed to clear nlmsg from socket: ",
				err)
		}
		break
	}

	if buf.Size() < SizeofHeader ||
		int(MsgHeader(buf).Len) < SizeofHeader ||
		int(MsgHeader(buf).Len) > buf.Size() {
		log.Print("err", "netlink: received invalid nlmsg (",
			buf.Size(), " bytes)")
		return nil, syscall.EPROTO
	}
	return buf, nil
}

// Transact sends request to the kernel and waits for its reply, which
// the caller owns.  An ACK reply returns (nil, nil).
//
// Bare netlink is unreliable on receive: a reply that arrives while the
// socket buffer is full is dropped, and the kernel flags the drop by
// failing the next receive with ENOBUFS.  Transact recovers by resending
// the request, so the request must be idempotent.  Replies whose
// sequence number does not match the request are discarded, so only one
// request per socket can usefully be in flight.
func (s *Socket) Transact(request *buffer.Buffer) (*buffer.Buffer, error) {
	h := MsgHeader(request)
	requestSeq := h.Sequence

	// Get a reply even if this message doesn't ordinarily call for
	// one.
	h.Flags |= NLM_F_ACK

	for {
		if err := s.send(request, true); err != nil {
			return nil, err
		}
		for {
			reply, err := s.recv(true)
			if err == syscall.ENOBUFS {
				log.Print("debug", "netlink: receive buffer ",
					"overflow, resending request")
				break // resend
			}
			if err != nil {
				return nil, err
			}
			if replySeq := MsgHeader(reply).Sequence; replySeq != requestSeq {
				log.Print("debug", "netlink: ignoring seq ",
					replySeq, " != expected ", requestSeq)
				continue
			}
			if errno, isErr := MsgErr(reply); isErr {
				if errno == 0 {
					return nil, nil
				}
				log.Print("debug", "netlink: received NAK, ",
					errno)
				if errno == syscall.EAGAIN {
					// Don't let a NAK'd EAGAIN read as
					// "would block".
					return nil, syscall.EPROTO
				}
				return nil, errno
			}
			return reply, nil
		}
	}
}
