package driftwood

import "testing"

func TestParseDtype(t *testing.T) {
	tests := []struct {
		in   string
		want Dtype
	}{
		{"<f4", Float32},
		{"<f8", Float64},
		{"<i4", Int32},
		{"<i8", Int64},
		{"|u1", Uint8},
		{"|S32", Bytes(32)},
	}
	for _, tt := range tests {
		got, err := ParseDtype(tt.in)
		if err != nil {
			t.Errorf("ParseDtype(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDtype(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if got.String() != tt.in {
			t.Errorf("ParseDtype(%q).String() = %q", tt.in, got.String())
		}
	}
}

func TestParseDtype_Rejects(t *testing.T) {
	for _, in := range []string{"", "f4", "<f3", "<x4", "<i5", "<f", "?f4", "|S0"} {
		if _, err := ParseDtype(in); err == nil {
			t.Errorf("ParseDtype(%q) should fail", in)
		}
	}
}

func TestDtype_Compatible(t *testing.T) {
	if !Float32.Compatible(Float64) {
		t.Error("float widths should be compatible")
	}
	if Float32.Compatible(Int32) {
		t.Error("float and int should be incompatible")
	}
	if !Bytes(32).Compatible(Bytes(8)) {
		t.Error("byte strings of different widths should be compatible")
	}
}

func TestDtype_JSONRoundTrip(t *testing.T) {
	data, err := jsonCodec.Marshal(Bytes(32))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"|S32"` {
		t.Fatalf("marshal = %s", data)
	}
	var dt Dtype
	if err := jsonCodec.Unmarshal(data, &dt); err != nil {
		t.Fatal(err)
	}
	if dt != Bytes(32) {
		t.Errorf("round trip = %+v", dt)
	}
}
