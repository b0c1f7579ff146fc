// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

// ofping measures OpenFlow echo round trips to a switch or controller.
//
//	ofping [-c COUNT] TARGET
//
// TARGET is a vconn URL, e.g. tcp:10.0.0.1 or tcp:10.0.0.1:6633.  The
// connection is retried with exponential backoff if it drops.
package main

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/oflow/buffer"
	"github.com/platinasystems/oflow/ofp"
	"github.com/platinasystems/oflow/vconn"
)

func main() {
	parm, args := parms.New(os.Args[1:], "-c")
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: ofping [-c COUNT] TARGET")
		os.Exit(1)
	}
	count := 5
	if s := parm.ByName["-c"]; len(s) > 0 {
		var err error
		count, err = strconv.Atoi(s)
		if err != nil {
			log.Print("err", "-c ", s, ": ", err)
			os.Exit(1)
		}
	}

	r := vconn.NewRconn(args[0])
	defer r.Close()

	for sent := 0; sent < count; {
		if err := r.Connect(); err != nil {
			time.Sleep(r.Disconnect(err))
			continue
		}
		v := r.Vconn()

		xid := uint32(sent + 1)
		start := time.Now()
		if err := send(v, ofp.NewEchoRequest(xid, nil)); err != nil {
			time.Sleep(r.Disconnect(err))
			continue
		}
		if err := pingWait(v, xid, start); err != nil {
			time.Sleep(r.Disconnect(err))
			continue
		}
		sent++
	}
}

// send queues msg and drives the poll loop until any staged remainder
// has been flushed.
func send(v vconn.Vconn, msg *buffer.Buffer) error {
	if err := v.Send(msg); err != nil {
		return err
	}
	for {
		pfds := []unix.PollFd{{}}
		if !v.Prepoll(0, &pfds[0]) {
			if pfds[0].Events == 0 {
				return nil // nothing staged
			}
			if _, err := unix.Poll(pfds, -1); err != nil &&
				err != syscall.EINTR {
				return err
			}
		}
		v.Postpoll(&pfds[0].Revents)
		if pfds[0].Revents&unix.POLLERR != 0 {
			return syscall.EIO
		}
	}
}

// pingWait receives until the echo reply matching xid arrives, answering
// any echo requests the peer sends in the meantime.
func pingWait(v vconn.Vconn, xid uint32, start time.Time) error {
	for {
		pfds := []unix.PollFd{{}}
		if !v.Prepoll(vconn.WantRecv, &pfds[0]) {
			if _, err := unix.Poll(pfds, -1); err != nil &&
				err != syscall.EINTR {
				return err
			}
		}
		v.Postpoll(&pfds[0].Revents)
		if pfds[0].Revents&unix.POLLERR != 0 {
			return syscall.EIO
		}

		msg, err := v.Recv()
		if err == syscall.EAGAIN {
			continue
		}
		if err != nil {
			return err
		}
		var h ofp.Header
		if err = h.Unmarshal(msg.Data()); err != nil {
			return err
		}
		switch h.Type {
		case ofp.OFPT_ECHO_REPLY:
			if h.Xid == xid {
				fmt.Printf("%s: xid %d time %v\n", v.Name(),
					xid, time.Since(start))
				return nil
			}
		case ofp.OFPT_ECHO_REQUEST:
			if err = v.Send(ofp.NewEchoReply(msg)); err != nil &&
				err != syscall.EAGAIN {
				return err
			}
		}
	}
}
