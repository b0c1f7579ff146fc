// Copyright 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style license described in the
// LICENSE file.

package vconn

import (
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/log"
)

// Rconn keeps a vconn to a given peer open, reconnecting with
// exponential backoff after failures.  The caller still drives the poll
// loop on the current vconn; Rconn only manages its lifetime.
type Rconn struct {
	name string
	b    *backoff.Backoff
	v    Vconn
}

func NewRconn(name string) *Rconn {
	return &Rconn{
		name: name,
		b: &backoff.Backoff{
			Min:    1 * time.Second,
			Max:    60 * time.Second,
			Factor: 2,
			Jitter: false,
		},
	}
}

func (r *Rconn) Name() string { return r.name }

// Vconn returns the current connection, or nil while disconnected.
func (r *Rconn) Vconn() Vconn { return r.v }

// Connect opens the underlying vconn if it is not already open.  On
// success the backoff resets.
func (r *Rconn) Connect() error {
	if r.v != nil {
		return nil
	}
	v, err := Open(r.name)
	if err != nil {
		return err
	}
	r.b.Reset()
	r.v = v
	return nil
}

// Disconnect closes the current connection after a failure and returns
// how long the caller should wait before the next Connect.
func (r *Rconn) Disconnect(err error) time.Duration {
	if r.v != nil {
		r.v.Close()
		r.v = nil
	}
	d := r.b.Duration()
	log.Print("daemon", "err", r.name, ": connection dropped (", err,
		"), retrying in ", d)
	return d
}

// Close closes the current connection, if any.
func (r *Rconn) Close() error {
	if r.v == nil {
		return nil
	}
	err := r.v.Close()
	r.v = nil
	return err
}
