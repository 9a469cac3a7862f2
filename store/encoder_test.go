package store

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/talatkuyuk/authtokens/token"
)

func sampleRecord() *Record {
	now := time.Now().Unix()
	rec := &Record{
		JTI:       "jti-1",
		Subject:   "user-1",
		Family:    "fam-1",
		Kind:      token.KindRefresh,
		ExpiresAt: now + 3600,
		CreatedAt: now,
	}
	for i := range rec.UserAgentHash {
		rec.UserAgentHash[i] = byte(i)
	}
	return rec
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := sampleRecord()

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(rec.JTI, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *decoded != *rec {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, rec)
	}
}

func TestEncodeActionRecordWithoutFamily(t *testing.T) {
	rec := sampleRecord()
	rec.Family = ""
	rec.Kind = token.KindResetPassword

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(rec.JTI, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Family != "" || decoded.Kind != token.KindResetPassword {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}

func TestEncodeRejectsInvalidRecords(t *testing.T) {
	noSubject := sampleRecord()
	noSubject.Subject = ""
	if _, err := Encode(noSubject); err == nil {
		t.Fatal("expected empty subject to be rejected")
	}

	accessKind := sampleRecord()
	accessKind.Kind = token.KindAccess
	if _, err := Encode(accessKind); err == nil {
		t.Fatal("expected access kind to be rejected")
	}

	longFamily := sampleRecord()
	longFamily.Family = string(bytes.Repeat([]byte("x"), 256))
	if _, err := Encode(longFamily); err == nil {
		t.Fatal("expected oversized family to be rejected")
	}
}

func TestDecodeRejectsCorruptBlobs(t *testing.T) {
	data, err := Encode(sampleRecord())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cases := map[string][]byte{
		"empty":         {},
		"wrong version": append([]byte{99}, data[1:]...),
		"truncated":     data[:len(data)-8],
		"bad kind":      append([]byte{recordVersionV1, 0}, data[2:]...),
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode("jti-1", blob); !errors.Is(err, ErrCorruptRecord) {
				t.Fatalf("expected ErrCorruptRecord, got %v", err)
			}
		})
	}
}

func TestBlacklistFlagSurvivesRoundTrip(t *testing.T) {
	rec := sampleRecord()
	rec.Blacklisted = true

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(rec.JTI, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Blacklisted {
		t.Fatal("blacklist flag lost")
	}
}
