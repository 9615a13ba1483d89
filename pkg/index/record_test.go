package index

import "testing"

func TestValueGetSizeMatchesSerializedLength(t *testing.T) {
	cases := []Value{
		NewIntValue(42),
		NewDoubleValue(3.14159),
		NewStringValue("hello, world"),
		NewStringValue(""),
	}
	for _, v := range cases {
		buf := make([]byte, v.GetSize())
		n := v.serialize(buf)
		if n != v.GetSize() {
			t.Fatalf("serialize wrote %d bytes, GetSize reported %d", n, v.GetSize())
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	r := NewRecord(
		NewIntValue(7),
		NewStringValue("name_7"),
		NewDoubleValue(27.0),
	)

	buf := make([]byte, r.GetSize())
	n := r.Serialize(buf)
	if n != r.GetSize() {
		t.Fatalf("Serialize wrote %d bytes, GetSize reported %d", n, r.GetSize())
	}

	got, consumed, err := DeserializeRecord(buf)
	if err != nil {
		t.Fatalf("DeserializeRecord: %v", err)
	}
	if consumed != r.GetSize() {
		t.Fatalf("expected to consume %d bytes, consumed %d", r.GetSize(), consumed)
	}
	if !got.Equal(r) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestRecordRoundTripEmpty(t *testing.T) {
	r := NewRecord()
	buf := make([]byte, r.GetSize())
	r.Serialize(buf)

	got, _, err := DeserializeRecord(buf)
	if err != nil {
		t.Fatalf("DeserializeRecord: %v", err)
	}
	if !got.Equal(r) {
		t.Fatalf("expected empty record round trip, got %+v", got)
	}
}

func TestDeserializeRecordTruncated(t *testing.T) {
	if _, _, err := DeserializeRecord([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error deserializing a truncated buffer")
	}
}

func TestDeserializeValueUnknownTag(t *testing.T) {
	if _, _, err := deserializeValue([]byte{99, 0, 0, 0, 0}); err == nil {
		t.Fatalf("expected error for unknown tag")
	}
}
