/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package bufpool is a size-classed byte slice pool for outbound packet
// buffers (C7's SEND frames). Every reply, from a one-byte Heartbeat echo
// to a multi-kilobyte ChunkData, is allocated through Malloc and returned
// through Free once its send frame retires, instead of going through the
// allocator and GC on every packet.
package bufpool

import (
	"math/bits"
	"sync"
	"unsafe"

	"github.com/bytedance/gopkg/lang/dirtmake"
)

type sizeClass struct {
	sync.Pool
	size int
}

var classes []*sizeClass

const (
	minClassSize = 256       // smallest class; most replies are a few dozen bytes
	maxClassSize = 256 << 20 // Malloc panics above this
	footerLen    = 8
)

const (
	footerMagicMask = uint64(0xFFFFFFFFFFFFFFC0)
	footerIndexMask = uint64(0x000000000000003F)
	footerMagic     = uint64(0xBADC0DEBADC0DEC0)
)

var bits2idx [64]int

func init() {
	i := 0
	for sz := minClassSize; sz <= maxClassSize; sz <<= 1 {
		c := &sizeClass{size: sz}
		c.New = func() interface{} {
			// dirtmake skips the zero-fill make() would do; every byte of a
			// freshly minted slab is about to be overwritten by Encode or
			// recv anyway, so there is nothing to read before that write.
			b := dirtmake.Bytes(c.size, c.size)
			return &b[0]
		}
		classes = append(classes, c)
		bits2idx[bits.Len(uint(c.size))] = i
		i++
	}
}

func classIndex(sz int) int {
	if sz <= minClassSize {
		return 0
	}
	i := bits2idx[bits.Len(uint(sz))]
	if uint(sz)&(uint(sz)-1) == 0 {
		return i
	}
	return i + 1
}

type sliceHeader struct {
	Data unsafe.Pointer
	Len  int
	Cap  int
}

// Malloc returns a []byte of exactly size, backed by a pooled buffer whose
// capacity may be larger. The trailing bytes beyond size are not zeroed.
func Malloc(size int) []byte {
	if size == 0 {
		return []byte{}
	}
	i := classIndex(size + footerLen)
	c := classes[i]
	p := c.Get().(*byte)

	ret := []byte{}
	h := (*sliceHeader)(unsafe.Pointer(&ret))
	h.Data = unsafe.Pointer(p)
	h.Len = size
	h.Cap = c.size

	*(*uint64)(unsafe.Add(h.Data, h.Cap-footerLen)) = footerMagic | uint64(i)
	return ret
}

// Free returns buf to its size class. buf must have come from Malloc and
// must not be used again afterward. Buffers not recognized as pool-issued
// (wrong footer, resized past their class, or the empty slice Malloc(0)
// returns) are silently dropped to the GC instead of panicking.
func Free(buf []byte) {
	c := cap(buf)
	if c < minClassSize || uint(c)&uint(c-1) != 0 {
		return
	}
	if c-len(buf) < footerLen {
		return
	}
	h := (*sliceHeader)(unsafe.Pointer(&buf))
	footer := *(*uint64)(unsafe.Add(h.Data, h.Cap-footerLen))
	if footer&footerMagicMask != footerMagic {
		return
	}
	i := int(footer & footerIndexMask)
	if i < len(classes) && classes[i].size == c {
		classes[i].Put(&buf[0])
	}
}
