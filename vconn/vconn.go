// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

// Package vconn provides virtual connections to OpenFlow peers: a
// polymorphic handle over concrete stream transports, driven by a
// caller-owned poll loop.  Active connections exchange length-framed
// OpenFlow messages; passive connections accept new active ones.
package vconn

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/platinasystems/oflow/buffer"
)

// Want bits declare which operations the caller intends so Prepoll can
// choose poll events.
const (
	WantRecv = 1 << iota
	WantSend
	WantAccept
)

// Vconn is a virtual connection to an OpenFlow peer.  An active
// connection implements Recv and Send; a passive one implements Accept;
// the rest return EOPNOTSUPP.  No Vconn is safe for concurrent use.
//
// All steady-state operations are non-blocking and return EAGAIN when
// the caller should poll and retry.  The caller drives the loop: fill a
// pollfd with Prepoll, poll unless Prepoll reported work already
// pending, hand the revents to Postpoll, then Recv, Send, or Accept as
// appropriate.
type Vconn interface {
	// Name returns the URL this connection was opened with.
	Name() string
	Close() error
	// Prepoll fills pfd's fd and events for the given want bits and
	// returns true if the implementation already has work pending,
	// in which case the caller may skip polling.
	Prepoll(want int, pfd *unix.PollFd) bool
	// Postpoll digests poll results, e.g. flushing a staged send.
	// Errors are reported by raising POLLERR in revents.
	Postpoll(revents *int16)
	Recv() (*buffer.Buffer, error)
	Send(msg *buffer.Buffer) error
	Accept() (Vconn, error)
}

type class struct {
	name string
	open func(name, suffix string) (Vconn, error)
}

var classes = []*class{
	tcpClass,
	ptcpClass,
}

// Open opens a virtual connection named by a URL of the form
// scheme:suffix, e.g. "tcp:10.0.0.1:6633" or "ptcp:6633".
func Open(name string) (Vconn, error) {
	i := strings.Index(name, ":")
	if i < 0 {
		return nil, fmt.Errorf("%s: vconn name lacks a scheme", name)
	}
	scheme, suffix := name[:i], name[i+1:]
	for _, c := range classes {
		if c.name == scheme {
			return c.open(name, suffix)
		}
	}
	return nil, fmt.Errorf("%s: unknown vconn scheme %q", name, scheme)
}
