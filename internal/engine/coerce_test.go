package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sorengranfeldt/mre/internal/core"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		in      core.Value
		to      core.AttrType
		toDN    bool
		norm    Normalization
		want    core.Value
		wantErr bool
	}{
		{name: "integer to string", in: core.Int(42), to: core.TypeString, want: core.Str("42")},
		{name: "boolean true to integer", in: core.Bool(true), to: core.TypeInteger, want: core.Int(1)},
		{name: "boolean false to integer", in: core.Bool(false), to: core.TypeInteger, want: core.Int(0)},
		{name: "string abc to integer fails", in: core.Str("abc"), to: core.TypeInteger, wantErr: true},
		{name: "string to integer", in: core.Str(" 17 "), to: core.TypeInteger, want: core.Int(17)},
		{name: "string to binary", in: core.Str("hi"), to: core.TypeBinary, want: core.Bin([]byte("hi"))},
		{name: "string true to boolean", in: core.Str("True"), to: core.TypeBoolean, want: core.Bool(true)},
		{name: "string 1 to boolean", in: core.Str("1"), to: core.TypeBoolean, want: core.Bool(true)},
		{name: "string 0 to boolean", in: core.Str("0"), to: core.TypeBoolean, want: core.Bool(false)},
		{name: "string yes to boolean fails", in: core.Str("yes"), to: core.TypeBoolean, wantErr: true},
		{name: "integer 1 to boolean", in: core.Int(1), to: core.TypeBoolean, want: core.Bool(true)},
		{name: "integer 2 to boolean fails", in: core.Int(2), to: core.TypeBoolean, wantErr: true},
		{name: "integer to binary fails", in: core.Int(2), to: core.TypeBinary, wantErr: true},
		{name: "binary to string", in: core.Bin([]byte{1, 2, 3}), to: core.TypeString, want: core.Str("AQID")},
		{name: "binary to integer fails", in: core.Bin([]byte{1}), to: core.TypeInteger, wantErr: true},
		{name: "boolean to string", in: core.Bool(true), to: core.TypeString, want: core.Str("true")},
		{
			name: "boolean to string normalized",
			in:   core.Bool(false), to: core.TypeString,
			norm: Normalization{Uppercase: true, Prefix: "is:"},
			want: core.Str("is:FALSE"),
		},
		{name: "boolean to dn fails", in: core.Bool(true), to: core.TypeString, toDN: true, wantErr: true},
		{name: "reference to reference", in: core.Ref("CN=x"), to: core.TypeReference, want: core.Ref("CN=x")},
		{name: "reference to string fails", in: core.Ref("CN=x"), to: core.TypeString, wantErr: true},
		{name: "undefined fails", in: core.Value{}, to: core.TypeString, wantErr: true},
		{name: "integer to dn is string", in: core.Int(7), to: core.TypeInteger, toDN: true, want: core.Str("7")},
		{
			name: "string normalizations in order",
			in:   core.Str("  John DOE  "), to: core.TypeString,
			norm: Normalization{Lowercase: true, Trim: true, Prefix: "u-"},
			want: core.Str("u-john doe"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.in, tt.to, tt.toDN, tt.norm)
			if tt.wantErr {
				var convErr core.ConversionError
				if !errors.As(err, &convErr) {
					t.Fatalf("expected ConversionError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Coerce() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConversionError_NamesBothTypes(t *testing.T) {
	_, err := Coerce(core.Str("abc"), core.TypeInteger, false, Normalization{})
	if err == nil {
		t.Fatal("expected error")
	}
	want := "cannot convert string value 'abc' to integer"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}
