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

	"github.com/pborman/uuid"
)

// VM is a virtual machine request. Its only resource dimension is memory,
// which is also its size for placement purposes.
//
// Two VMs with the same memory are interchangeable for capacity accounting,
// so every VM carries a generated ID that relocation and rollback use to
// address one specific instance.
type VM struct {
	ID     string
	Memory int64
}

// NewVM creates a VM of the given memory size with a fresh ID.
func NewVM(memory int64) *VM {
	return &VM{
		ID:     uuid.New(),
		Memory: memory,
	}
}

// Size returns the size of the VM used by the allocation engine.
func (vm *VM) Size() int64 {
	return vm.Memory
}

func (vm *VM) String() string {
	return fmt.Sprintf("VM(%d)", vm.Memory)
}
