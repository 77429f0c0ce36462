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
	"testing"

	"github.com/stretchr/testify/suite"
)

type ServerTestSuite struct {
	suite.Suite
	server *Server
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (suite *ServerTestSuite) SetupTest() {
	suite.server = NewServer(100)
}

func (suite *ServerTestSuite) TestAllocateUpdatesUsedAndFree() {
	suite.True(suite.server.Allocate(NewVM(60), DefaultLimitRatio))
	suite.EqualValues(60, suite.server.Used())
	suite.EqualValues(40, suite.server.Free())

	suite.False(suite.server.Allocate(NewVM(50), DefaultLimitRatio))
	suite.EqualValues(60, suite.server.Used())

	suite.True(suite.server.Allocate(NewVM(40), DefaultLimitRatio))
	suite.EqualValues(0, suite.server.Free())
}

func (suite *ServerTestSuite) TestLimitRatioReservesHeadroom() {
	suite.True(suite.server.CanAllocate(NewVM(90), 0.9))
	suite.False(suite.server.CanAllocate(NewVM(91), 0.9))

	suite.True(suite.server.Allocate(NewVM(50), 0.9))
	suite.False(suite.server.Allocate(NewVM(41), 0.9))
	suite.True(suite.server.Allocate(NewVM(40), 0.9))
	suite.LessOrEqual(float64(suite.server.Used()), float64(suite.server.Capacity())*0.9)
}

func (suite *ServerTestSuite) TestRemoveByIDWithDuplicateSizes() {
	first := NewVM(30)
	second := NewVM(30)
	third := NewVM(10)
	suite.True(suite.server.Allocate(first, DefaultLimitRatio))
	suite.True(suite.server.Allocate(second, DefaultLimitRatio))
	suite.True(suite.server.Allocate(third, DefaultLimitRatio))

	suite.NoError(suite.server.Remove(second.ID))
	suite.True(suite.server.Has(first.ID))
	suite.False(suite.server.Has(second.ID))
	suite.Equal([]*VM{first, third}, suite.server.VMs())
	suite.EqualValues(40, suite.server.Used())
}

func (suite *ServerTestSuite) TestRemoveMissing() {
	suite.True(suite.server.Allocate(NewVM(30), DefaultLimitRatio))
	err := suite.server.Remove(NewVM(30).ID)
	suite.Error(err)
	suite.EqualValues(30, suite.server.Used())
}

func (suite *ServerTestSuite) TestRemoveDoesNotAliasCopies() {
	a, b, c := NewVM(10), NewVM(20), NewVM(30)
	suite.server.Replace([]*VM{a, b, c})
	before := suite.server.VMs()

	suite.NoError(suite.server.Remove(a.ID))
	suite.Equal([]*VM{a, b, c}, before)
	suite.Equal([]int64{20, 30}, suite.server.Sizes())
}

func (suite *ServerTestSuite) TestClearAndReplace() {
	suite.True(suite.server.Allocate(NewVM(30), DefaultLimitRatio))
	suite.server.Clear()
	suite.EqualValues(0, suite.server.Used())
	suite.Empty(suite.server.VMs())

	// Replace mirrors reported state and skips admission.
	suite.server.Replace([]*VM{NewVM(80), NewVM(80)})
	suite.EqualValues(160, suite.server.Used())
	suite.EqualValues(-60, suite.server.Free())
}

func (suite *ServerTestSuite) TestSnapshot() {
	suite.True(suite.server.Allocate(NewVM(25), DefaultLimitRatio))
	suite.True(suite.server.Allocate(NewVM(5), DefaultLimitRatio))
	suite.Equal(Status{
		Capacity: 100,
		Used:     30,
		Free:     70,
		VMs:      []int64{25, 5},
	}, suite.server.Snapshot())
}

func TestNewVMGeneratesDistinctIDs(t *testing.T) {
	a := NewVM(10)
	b := NewVM(10)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
	if a.String() != "VM(10)" {
		t.Fatalf("unexpected string %q", a.String())
	}
}

func (suite *ServerTestSuite) TestInsertAtRestoresPosition() {
	a, b, c := NewVM(10), NewVM(20), NewVM(30)
	suite.server.Replace([]*VM{a, b, c})

	idx := suite.server.IndexOf(b.ID)
	suite.Equal(1, idx)
	suite.NoError(suite.server.Remove(b.ID))
	suite.server.InsertAt(idx, b)
	suite.Equal([]*VM{a, b, c}, suite.server.VMs())

	suite.server.InsertAt(10, NewVM(1))
	suite.Equal([]int64{10, 20, 30, 1}, suite.server.Sizes())
	suite.Equal(-1, suite.server.IndexOf("missing"))
}
