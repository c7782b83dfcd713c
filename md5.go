// Copyright (c) 2026 Hashpool Authors. All rights reserved.
// Use of this source code is governed by a license that can be
// found in the LICENSE file.

// Package md5go implements the MD5 message digest (RFC 1321) in pure Go.
//
// Callers that have the whole input in memory use the one-shot Sum or
// SumString. A Server multiplexes many independent streaming computations
// over a fixed set of lanes and hands out hash.Hash-compatible Hashers.
//
// MD5 is cryptographically broken; use it for fingerprinting and
// deduplication, not for anything security-sensitive.
package md5go

import (
	"encoding/binary"
	"hash"
)

// Size - Size of an MD5 checksum in bytes.
const Size = 16

// BlockSize - Block size of MD5 in bytes.
const BlockSize = 64

// MD5 initialization constants
const (
	init0 = 0x67452301
	init1 = 0xefcdab89
	init2 = 0x98badcfe
	init3 = 0x10325476
)

// Hasher - streaming MD5 computation backed by a Server lane.
type Hasher interface {
	hash.Hash
	Close()
}

// Server - manages concurrent MD5 computations over a set of lanes.
type Server interface {
	NewHash() Hasher
	Close()
}

// digest holds the state of a single MD5 computation: the four working
// registers, the unprocessed tail of the input and the total byte count.
type digest struct {
	s   [4]uint32
	x   [BlockSize]byte
	nx  int
	len uint64
}

func (d *digest) reset() {
	d.s[0], d.s[1], d.s[2], d.s[3] = init0, init1, init2, init3
	d.nx = 0
	d.len = 0
}

func (d *digest) write(p []byte) {
	d.len += uint64(len(p))
	if d.nx > 0 {
		n := copy(d.x[d.nx:], p)
		d.nx += n
		if d.nx == BlockSize {
			blockGeneric(d, d.x[:])
			d.nx = 0
		}
		p = p[n:]
	}
	if len(p) >= BlockSize {
		n := len(p) &^ (BlockSize - 1)
		blockGeneric(d, p[:n])
		p = p[n:]
	}
	if len(p) > 0 {
		d.nx = copy(d.x[:], p)
	}
}

// checkSum finalizes d and returns the digest. d must not be written
// to afterwards.
func (d *digest) checkSum() (sum [Size]byte) {
	// Padding. Add a 1 bit and 0 bits until 56 bytes mod 64.
	length := d.len
	var tmp [64]byte
	tmp[0] = 0x80
	if length%64 < 56 {
		d.write(tmp[0 : 56-length%64])
	} else {
		d.write(tmp[0 : 64+56-length%64])
	}

	// Length in bits.
	length <<= 3
	binary.LittleEndian.PutUint64(tmp[:], length)
	d.write(tmp[0:8])

	if d.nx != 0 {
		panic("md5go: d.nx != 0")
	}

	binary.LittleEndian.PutUint32(sum[0:], d.s[0])
	binary.LittleEndian.PutUint32(sum[4:], d.s[1])
	binary.LittleEndian.PutUint32(sum[8:], d.s[2])
	binary.LittleEndian.PutUint32(sum[12:], d.s[3])
	return
}

// Sum - Return the MD5 checksum of data as raw bytes.
//
// Only the bytes of the given slice are read; data may alias a larger
// buffer. Inputs up to the RFC 1321 limit of 2^64-1 bits are supported.
// Encoding the result (hex, base64) is the caller's business.
func Sum(data []byte) [Size]byte {
	var d digest
	d.reset()
	d.write(data)
	return d.checkSum()
}

// SumString - Return the MD5 checksum of the UTF-8 bytes of s.
func SumString(s string) [Size]byte {
	return Sum([]byte(s))
}
