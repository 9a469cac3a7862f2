package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/talatkuyuk/authtokens/token"
)

// Record blob layout, version 1. Fields the Lua scripts need sit at fixed
// offsets ahead of the variable-length tail:
//
//	byte 1      version
//	byte 2      kind
//	byte 3      blacklisted (0/1)
//	bytes 4-11  expiresAt, int64 big endian
//	bytes 12-19 createdAt, int64 big endian
//	byte 20     family length
//	...         family
//	1 byte      subject length
//	...         subject
//	32 bytes    user agent hash
const recordVersionV1 = 1

// Encode serializes a record into its versioned binary form.
func Encode(rec *Record) ([]byte, error) {
	if len(rec.Family) > 255 {
		return nil, errors.New("family too long")
	}
	if len(rec.Subject) == 0 || len(rec.Subject) > 255 {
		return nil, errors.New("invalid subject length")
	}
	if !rec.Kind.Persisted() {
		return nil, errors.New("kind is not persistable")
	}

	var buf bytes.Buffer

	buf.WriteByte(recordVersionV1)
	buf.WriteByte(byte(rec.Kind))
	if rec.Blacklisted {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.CreatedAt); err != nil {
		return nil, err
	}

	buf.WriteByte(byte(len(rec.Family)))
	buf.WriteString(rec.Family)

	buf.WriteByte(byte(len(rec.Subject)))
	buf.WriteString(rec.Subject)

	buf.Write(rec.UserAgentHash[:])

	return buf.Bytes(), nil
}

// Decode parses a record blob. The jti is not part of the blob (it is the
// storage key) and must be supplied by the caller.
func Decode(jti string, data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	if version != recordVersionV1 {
		return nil, ErrCorruptRecord
	}

	kindByte, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	kind := token.Kind(kindByte)
	if !kind.Persisted() {
		return nil, ErrCorruptRecord
	}

	blacklisted, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}

	rec := &Record{
		JTI:         jti,
		Kind:        kind,
		Blacklisted: blacklisted == 1,
	}

	if err := binary.Read(reader, binary.BigEndian, &rec.ExpiresAt); err != nil {
		return nil, ErrCorruptRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.CreatedAt); err != nil {
		return nil, ErrCorruptRecord
	}

	familyLen, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	family := make([]byte, familyLen)
	if _, err := io.ReadFull(reader, family); err != nil {
		return nil, ErrCorruptRecord
	}
	rec.Family = string(family)

	subjectLen, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	if subjectLen == 0 {
		return nil, ErrCorruptRecord
	}
	subject := make([]byte, subjectLen)
	if _, err := io.ReadFull(reader, subject); err != nil {
		return nil, ErrCorruptRecord
	}
	rec.Subject = string(subject)

	if _, err := io.ReadFull(reader, rec.UserAgentHash[:]); err != nil {
		return nil, ErrCorruptRecord
	}

	return rec, nil
}
