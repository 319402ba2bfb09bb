package format

import (
	"bytes"
	"encoding/gob"
)

// Serializer turns structured values into a length-prefixed, self-describing
// byte encoding and back. The core treats it as an external collaborator;
// any codec meeting that contract can be substituted.
type Serializer interface {
	Marshal(dst []byte, value any) ([]byte, error)
	Unmarshal(data []byte, out any) error
}

// GobSerializer is the default Serializer, backed by encoding/gob.
type GobSerializer struct{}

func (GobSerializer) Marshal(dst []byte, value any) ([]byte, error) {
	buf := bytes.NewBuffer(dst[:0])
	if err := gob.NewEncoder(buf).Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobSerializer) Unmarshal(data []byte, out any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(out)
}
