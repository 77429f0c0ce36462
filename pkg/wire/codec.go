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

import (
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// MaxMessageSize bounds a single encoded message.
const MaxMessageSize = 1024 * 1024

// ErrEmptyPayload is returned when the peer closed before sending a message.
var ErrEmptyPayload = errors.New("empty payload")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: cbor encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		panic("wire: cbor decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v in deterministic CBOR.
func Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes one CBOR item into v.
func Unmarshal(data []byte, v interface{}) error {
	return decMode.Unmarshal(data, v)
}

// WriteMessage writes v as one CBOR item. CBOR items are self-delimiting so
// no framing is added.
func WriteMessage(w io.Writer, v interface{}) error {
	return errors.Wrap(encMode.NewEncoder(w).Encode(v), "encode message")
}

// ReadMessage reads exactly one CBOR item of at most MaxMessageSize bytes.
func ReadMessage(r io.Reader, v interface{}) error {
	err := decMode.NewDecoder(io.LimitReader(r, MaxMessageSize)).Decode(v)
	if err == io.EOF {
		return ErrEmptyPayload
	}
	return errors.Wrap(err, "decode message")
}
