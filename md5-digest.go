// Copyright (c) 2026 Hashpool Authors. All rights reserved.
// Use of this source code is governed by a license that can be
// found in the LICENSE file.

package md5go

import (
	"encoding/binary"
	"errors"
)

// md5Digest - Type for computing MD5 on a Server lane.
type md5Digest struct {
	uid    uint64
	srv    *md5Server
	x      [BlockSize]byte
	nx     int
	len    uint64
	closed bool
	result [Size]byte
}

// Size - Return size of checksum
func (d *md5Digest) Size() int { return Size }

// BlockSize - Return blocksize of checksum
func (d md5Digest) BlockSize() int { return BlockSize }

// Reset - reset digest to its initial values
func (d *md5Digest) Reset() {
	d.srv.blocksCh <- blockInput{uid: d.uid, reset: true}
	d.nx = 0
	d.len = 0
	d.closed = false
}

// Write to digest
func (d *md5Digest) Write(p []byte) (nn int, err error) {

	if d.closed {
		return 0, errors.New("md5Digest already closed. Reset first before writing again")
	}

	// break input into messages of maximum maxMsgSize size
	for {
		l := len(p)
		if l > maxMsgSize {
			l = maxMsgSize
		}
		nnn, err := d.write(p[:l])
		if err != nil {
			return nn, err
		}
		nn += nnn
		p = p[l:]

		if len(p) == 0 {
			break
		}
	}
	return
}

func (d *md5Digest) write(p []byte) (nn int, err error) {

	nn = len(p)
	d.len += uint64(nn)
	if d.nx > 0 {
		n := copy(d.x[d.nx:], p)
		d.nx += n
		if d.nx == BlockSize {
			d.sendBlock(d.x[:])
			d.nx = 0
		}
		p = p[n:]
	}
	if len(p) >= BlockSize {
		n := len(p) &^ (BlockSize - 1)
		d.sendBlock(p[:n])
		p = p[n:]
	}
	if len(p) > 0 {
		d.nx = copy(d.x[:], p)
	}
	return
}

// sendBlock queues a whole number of blocks on the server. The server
// holds on to the message until the lane is flushed and the caller may
// reuse its buffer as soon as Write returns, so the message owns its bytes.
func (d *md5Digest) sendBlock(msg []byte) {
	m := make([]byte, len(msg))
	copy(m, msg)
	d.srv.blocksCh <- blockInput{uid: d.uid, msg: m}
}

func (d *md5Digest) Close() {
	if !d.closed {
		d.srv.blocksCh <- blockInput{uid: d.uid, reset: true}
		d.closed = true
	}
}

// Sum - Return MD5 sum in bytes
//
// Sum does not consume the stream: the lane keeps its pre-padding state,
// so writing more data afterwards continues the same computation.
func (d *md5Digest) Sum(in []byte) (result []byte) {

	if d.closed {
		return append(in, d.result[:]...)
	}

	trail := make([]byte, 0, 128)
	trail = append(trail, d.x[:d.nx]...)

	length := d.len
	// Padding. Add a 1 bit and 0 bits until 56 bytes mod 64.
	var tmp [64]byte
	tmp[0] = 0x80
	if length%64 < 56 {
		trail = append(trail, tmp[0:56-length%64]...)
	} else {
		trail = append(trail, tmp[0:64+56-length%64]...)
	}

	// Length in bits.
	length <<= 3
	binary.LittleEndian.PutUint64(tmp[:], length)
	trail = append(trail, tmp[0:8]...)

	sumCh := make(chan [Size]byte)
	d.srv.blocksCh <- blockInput{uid: d.uid, msg: trail, final: true, sumCh: sumCh}
	d.result = <-sumCh
	return append(in, d.result[:]...)
}
