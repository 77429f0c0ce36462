// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// DefaultLimitRatio admits allocations up to the full capacity.
const DefaultLimitRatio = 1.0

var (
	// ErrVMNotFound is returned by Remove when no allocated VM has the given ID.
	ErrVMNotFound = errors.New("vm not allocated on server")
	// ErrInvalidLimitRatio is returned for a limit ratio outside (0, 1].
	ErrInvalidLimitRatio = errors.New("limit_ratio must be in (0, 1]")
)

// ValidateLimitRatio returns ErrInvalidLimitRatio unless 0 < ratio <= 1.
func ValidateLimitRatio(ratio float64) error {
	if ratio <= 0 || ratio > 1 {
		return ErrInvalidLimitRatio
	}
	return nil
}

// Host is the capability the allocation engine needs from a server. Both
// local servers and the coordinator's mirrors satisfy it, so selection code
// never depends on network details.
type Host interface {
	// Capacity returns the total memory of the host.
	Capacity() int64
	// Used returns the sum of the sizes of the allocated VMs.
	Used() int64
	// Free returns Capacity() - Used().
	Free() int64
	// CanAllocate reports whether vm fits under capacity*limitRatio.
	CanAllocate(vm *VM, limitRatio float64) bool
	// Allocate appends vm iff CanAllocate holds.
	Allocate(vm *VM, limitRatio float64) bool
}

// Server is a capacity bounded bin of VMs. It is a non-thread safe
// helper; owners serialize access.
type Server struct {
	capacity  int64
	allocated []*VM
}

// NewServer creates an empty server with the given capacity.
func NewServer(capacity int64) *Server {
	return &Server{capacity: capacity}
}

// Capacity is the implementation of Host.Capacity.
func (s *Server) Capacity() int64 {
	return s.capacity
}

// Used is the implementation of Host.Used.
func (s *Server) Used() int64 {
	var used int64
	for _, vm := range s.allocated {
		used += vm.Size()
	}
	return used
}

// Free is the implementation of Host.Free.
func (s *Server) Free() int64 {
	return s.capacity - s.Used()
}

// CanAllocate is the implementation of Host.CanAllocate. It holds when
// size(vm) <= capacity*limitRatio - used.
func (s *Server) CanAllocate(vm *VM, limitRatio float64) bool {
	return float64(vm.Size()) <= float64(s.capacity)*limitRatio-float64(s.Used())
}

// Allocate is the implementation of Host.Allocate. The server is left
// untouched when the VM does not fit.
func (s *Server) Allocate(vm *VM, limitRatio float64) bool {
	if !s.CanAllocate(vm, limitRatio) {
		return false
	}
	s.allocated = append(s.allocated, vm)
	return true
}

// Remove deletes the allocated VM with the given ID, preserving the order
// of the remaining VMs.
func (s *Server) Remove(id string) error {
	for i, vm := range s.allocated {
		if vm.ID == id {
			s.allocated = append(s.allocated[:i:i], s.allocated[i+1:]...)
			return nil
		}
	}
	return errors.Wrapf(ErrVMNotFound, "vm id %s", id)
}

// InsertAt puts vm back at position i without an admission check. It is
// used to undo a Remove, so i is clamped to the current length.
func (s *Server) InsertAt(i int, vm *VM) {
	if i < 0 {
		i = 0
	}
	if i > len(s.allocated) {
		i = len(s.allocated)
	}
	allocated := make([]*VM, 0, len(s.allocated)+1)
	allocated = append(allocated, s.allocated[:i]...)
	allocated = append(allocated, vm)
	s.allocated = append(allocated, s.allocated[i:]...)
}

// IndexOf returns the position of the VM with the given ID or -1.
func (s *Server) IndexOf(id string) int {
	for i, vm := range s.allocated {
		if vm.ID == id {
			return i
		}
	}
	return -1
}

// Has reports whether a VM with the given ID is allocated here.
func (s *Server) Has(id string) bool {
	return s.IndexOf(id) >= 0
}

// Clear empties the server.
func (s *Server) Clear() {
	s.allocated = nil
}

// Replace swaps the allocated set wholesale without admission checks.
// It is used to mirror state reported by the authoritative owner.
func (s *Server) Replace(vms []*VM) {
	s.allocated = append([]*VM(nil), vms...)
}

// VMs returns a copy of the allocated VMs in insertion order.
func (s *Server) VMs() []*VM {
	return append([]*VM(nil), s.allocated...)
}

// Sizes returns the sizes of the allocated VMs in insertion order.
func (s *Server) Sizes() []int64 {
	sizes := make([]int64, 0, len(s.allocated))
	for _, vm := range s.allocated {
		sizes = append(sizes, vm.Size())
	}
	return sizes
}

func (s *Server) String() string {
	return fmt.Sprintf("Server(Capacity: %d, Used: %d, Free: %d, VMs: %v)",
		s.capacity, s.Used(), s.Free(), s.allocated)
}

// Status is a point in time summary of a server.
type Status struct {
	Capacity int64
	Used     int64
	Free     int64
	VMs      []int64
}

// Snapshot returns the Status of the server.
func (s *Server) Snapshot() Status {
	return Status{
		Capacity: s.capacity,
		Used:     s.Used(),
		Free:     s.Free(),
		VMs:      s.Sizes(),
	}
}

// Hosts adapts a slice of servers to the Host capability.
func Hosts(servers []*Server) []Host {
	hosts := make([]Host, len(servers))
	for i, s := range servers {
		hosts[i] = s
	}
	return hosts
}
