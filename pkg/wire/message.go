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

package wire

// Message types.
const (
	TypeRegister     = "register"
	TypeHeartbeat    = "heartbeat"
	TypeAllocateVM   = "allocate_vm"
	TypeServerStatus = "server_status"
	TypeSyncVMs      = "sync_vms"
)

// Reply statuses.
const (
	StatusRegistered     = "registered"
	StatusOK             = "ok"
	StatusAllocated      = "allocated"
	StatusFailed         = "failed"
	StatusUnknownCommand = "unknown_command"
	StatusError          = "error"
)

// Request is the single request message of a connection. Only the fields
// of its Type are set.
type Request struct {
	Type string `cbor:"type"`

	// register, heartbeat
	IP           string  `cbor:"ip,omitempty"`
	Port         int     `cbor:"port,omitempty"`
	Capacity     int64   `cbor:"capacity,omitempty"`
	AllocatedVMs []int64 `cbor:"allocated_vms,omitempty"`

	// allocate_vm
	Memory    int64  `cbor:"memory,omitempty"`
	Algorithm string `cbor:"algorithm,omitempty"`
}

// Response is the single reply message of a connection.
type Response struct {
	Status  string `cbor:"status,omitempty"`
	Message string `cbor:"message,omitempty"`

	// coordinator server_status
	Servers []ServerInfo `cbor:"servers,omitempty"`
	// coordinator sync_vms
	VMs []VMInfo `cbor:"vms,omitempty"`

	// agent server_status
	Capacity     int64   `cbor:"capacity,omitempty"`
	Used         int64   `cbor:"used,omitempty"`
	Free         int64   `cbor:"free,omitempty"`
	AllocatedVMs []int64 `cbor:"allocated_vms,omitempty"`
}

// ServerInfo describes one mirrored server in a coordinator status reply.
type ServerInfo struct {
	IP       string  `cbor:"ip"`
	Port     int     `cbor:"port"`
	Capacity int64   `cbor:"capacity"`
	Used     int64   `cbor:"used"`
	Free     int64   `cbor:"free"`
	Active   bool    `cbor:"active"`
	VMs      []int64 `cbor:"vms,omitempty"`
}

// VMInfo tags one VM size with the server holding it.
type VMInfo struct {
	ServerIP   string `cbor:"server_ip"`
	ServerPort int    `cbor:"server_port,omitempty"`
	Memory     int64  `cbor:"memory"`
}

// Errorf returns an error reply.
func Errorf(message string) *Response {
	return &Response{Status: StatusError, Message: message}
}
