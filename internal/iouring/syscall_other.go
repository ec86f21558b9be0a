/*
 * Copyright 2025 CloudWeGo Authors
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

//go:build !(linux && (amd64 || arm64)) && !(linux && (mips64 || mips64le))

package iouring

import (
	"syscall"
	"unsafe"
)

// Setup is a stub for targets without a syscall table in this package
// (non-Linux, and Linux other than amd64, arm64, mips64 and mips64le).
// Returns ENOSYS.
func Setup(entries uint32, params *IOUringParams) (int, error) {
	return 0, syscall.ENOSYS
}

// Enter is a stub for the same targets as Setup. Returns ENOSYS.
func Enter(fd int, toSubmit uint32, minComplete uint32, flags uint32, sig unsafe.Pointer) (int, syscall.Errno) {
	return 0, syscall.ENOSYS
}

// Register is a stub for the same targets as Setup. Returns ENOSYS.
func Register(fd int, opcode uint32, arg unsafe.Pointer, nrArgs uint32) syscall.Errno {
	return syscall.ENOSYS
}
