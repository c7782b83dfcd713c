// Copyright (c) 2026 Hashpool Authors. All rights reserved.
// Use of this source code is governed by a license that can be
// found in the LICENSE file.

package md5go

import (
	"encoding/binary"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/klauspost/cpuid"
	"github.com/remeh/sizedwaitgroup"
)

// maxMsgSize caps a single message on the input channel so no lane can
// monopolize a flush round.
const maxMsgSize = 2 * 1024 * 1024

// md5ServerUID - Does not start at 0 but next multiple of 16 so as to be
// able to differentiate with default initialisation value of 0
const md5ServerUID = 16

// Message to send across input channel
type blockInput struct {
	uid   uint64
	msg   []byte
	reset bool
	final bool
	sumCh chan [Size]byte
}

// md5LaneInfo - Info for each lane
type md5LaneInfo struct {
	uid      uint64          // unique identification for this MD5 processing
	block    []byte          // input block to be processed
	outputCh chan [Size]byte // channel for output result
}

// md5Server - Type to implement parallel handling of MD5 invocations
type md5Server struct {
	uidCounter uint64
	blocksCh   chan blockInput       // Input channel
	totalIn    int                   // Total number of inputs waiting to be processed
	lanes      [16]md5LaneInfo       // Array with info per lane
	digests    map[uint64][Size]byte // Map of uids to (interim) digest results
	maxProcs   int                   // Bound on concurrent lane compressions
}

// NewServer - Create new object for parallel processing handling
func NewServer() Server {
	md5srv := &md5Server{}
	md5srv.digests = make(map[uint64][Size]byte)
	md5srv.blocksCh = make(chan blockInput)
	md5srv.uidCounter = md5ServerUID - 1
	md5srv.maxProcs = cpuid.CPU.LogicalCores
	if md5srv.maxProcs <= 0 {
		md5srv.maxProcs = runtime.NumCPU()
	}

	// Start a single thread for reading from the input channel
	go md5srv.process(md5srv.blocksCh)
	return md5srv
}

// NewHash - Return a Hasher computing on a lane of this server.
func (s *md5Server) NewHash() Hasher {
	uid := atomic.AddUint64(&s.uidCounter, 1)
	return &md5Digest{uid: uid, srv: s}
}

// process - Sole handler for reading from the input channel
func (s *md5Server) process(blocksCh chan blockInput) {
	processBlock := func(block blockInput) {
		// If reset message, reset and we're done
		if block.reset {
			s.reset(block.uid)
			return
		}

		// Get slot
		index := block.uid % uint64(len(s.lanes))

		if s.lanes[index].block != nil {
			// If slot is already filled, process all inputs,
			// including most probably previous block for same hash
			s.blocks()
		}

		// Final messages carry at most two blocks of padding trailer, so
		// finish them synchronously and leave the lane's interim state
		// untouched for any subsequent writes.
		if block.final && len(block.msg) <= 2*BlockSize {
			var dig digest
			s.loadState(&dig, block.uid)
			blockGeneric(&dig, block.msg)

			sum := [Size]byte{}
			binary.LittleEndian.PutUint32(sum[0:], dig.s[0])
			binary.LittleEndian.PutUint32(sum[4:], dig.s[1])
			binary.LittleEndian.PutUint32(sum[8:], dig.s[2])
			binary.LittleEndian.PutUint32(sum[12:], dig.s[3])

			block.sumCh <- sum
			return
		}

		s.totalIn++
		s.lanes[index] = md5LaneInfo{uid: block.uid, block: block.msg}
		if block.final {
			s.lanes[index].outputCh = block.sumCh
		}
		if s.totalIn == len(s.lanes) {
			// if all lanes are filled, process all lanes
			s.blocks()
		}
	}

	for {
		select {
		case block, ok := <-blocksCh:
			if !ok {
				return
			}
			processBlock(block)
		}

		for busy := true; busy; {
			select {
			case block, ok := <-blocksCh:
				if !ok {
					return
				}
				processBlock(block)

			case <-time.After(10 * time.Microsecond):
				l, lane := 0, md5LaneInfo{}
				for l, lane = range s.lanes {
					if lane.block != nil { // check if there is any input to process
						s.blocks()
						break // we are done
					}
				}
				if l == len(s.lanes)-1 && lane.block == nil { // no work to do, so exit this loop and go back to single select
					busy = false
				}
			}
		}
	}
}

func (s *md5Server) Close() {
	if s.blocksCh != nil {
		close(s.blocksCh)
		s.blocksCh = nil
	}
}

// Do a reset for this calculation
func (s *md5Server) reset(uid uint64) {
	// Check if there is a message still waiting to be processed (and remove if so)
	for i, lane := range s.lanes {
		if lane.uid == uid {
			if lane.block != nil {
				s.lanes[i] = md5LaneInfo{} // clear message
				s.totalIn--
			}
		}
	}

	// Delete entry from hash map
	delete(s.digests, uid)
}

// Compress all pending lanes and send results back
func (s *md5Server) blocks() {

	var states [16]digest

	// Lanes are independent computations, so fan the scalar compressor
	// out over the available cores.
	swg := sizedwaitgroup.New(s.maxProcs)
	for i := range s.lanes {
		if s.lanes[i].block == nil {
			continue
		}
		s.loadState(&states[i], s.lanes[i].uid)
		swg.Add()
		go func(dig *digest, block []byte) {
			defer swg.Done()
			blockGeneric(dig, block)
		}(&states[i], s.lanes[i].block)
	}
	swg.Wait()

	s.totalIn = 0
	for i := range s.lanes {
		if s.lanes[i].block == nil {
			s.lanes[i] = md5LaneInfo{}
			continue
		}
		uid, outputCh := s.lanes[i].uid, s.lanes[i].outputCh
		digest := [Size]byte{}
		binary.LittleEndian.PutUint32(digest[0:], states[i].s[0])
		binary.LittleEndian.PutUint32(digest[4:], states[i].s[1])
		binary.LittleEndian.PutUint32(digest[8:], states[i].s[2])
		binary.LittleEndian.PutUint32(digest[12:], states[i].s[3])

		if outputCh == nil {
			s.digests[uid] = digest // save updated digest for next iteration
		} else {
			outputCh <- digest // send back result of padded trailer (and keep previous state for subsequent writes)
		}
		s.lanes[i] = md5LaneInfo{}
	}
}

func (s *md5Server) loadState(dig *digest, uid uint64) {
	if a, ok := s.digests[uid]; ok {
		dig.s[0] = binary.LittleEndian.Uint32(a[0:4])
		dig.s[1] = binary.LittleEndian.Uint32(a[4:8])
		dig.s[2] = binary.LittleEndian.Uint32(a[8:12])
		dig.s[3] = binary.LittleEndian.Uint32(a[12:16])
	} else {
		dig.s[0], dig.s[1], dig.s[2], dig.s[3] = init0, init1, init2, init3
	}
}
