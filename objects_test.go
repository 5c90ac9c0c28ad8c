// quillpdf - a library for reading, editing and writing PDF files
// Copyright (C) 2026  The quillpdf authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pdf

import (
	"bytes"
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		in  Object
		out string
	}{
		{nil, "null"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Integer(0), "0"},
		{Integer(-12), "-12"},
		{Real(1.5), "1.5"},
		{Real(3), "3."},
		{Real(-0.25), "-0.25"},
		{String("a"), "(a)"},
		{String("a (test version)"), "(a (test version))"},
		{String("a (test version"), `(a \(test version)`},
		{String(""), "()"},
		{String("\000"), "<00>"},
		{String("two\nlines"), `(two\nlines)`},
		{Name("hello"), "/hello"},
		{Name("A;Name_With-Various***Chars?"), "/A;Name_With-Various***Chars?"},
		{Name("A B"), "/A#20B"},
		{Name("paper()"), "/paper#28#29"},
		{Name("1.2"), "/1.2"},
		{Array{Integer(1), nil, Integer(3)}, "[1 null 3]"},
		{Array{}, "[]"},
		{Dict{}, "<<\n>>"},
		{Dict{"A": Integer(1)}, "<<\n/A 1\n>>"},
		{Dict{"B": Integer(2), "A": Integer(1)}, "<<\n/A 1\n/B 2\n>>"},
		{NewReference(3, 1), "3 1 R"},
	}
	for _, test := range cases {
		out := format(test.in)
		if out != test.out {
			t.Errorf("wrong format: expected %q but got %q", test.out, out)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := []String{
		String(""),
		String("hello"),
		String("two\nlines"),
		String("a (test) string"),
		String("a )( string"),
		String("back\\slash"),
		String{0, 1, 2, 0xFF},
		String("ein Bär"),
	}
	for _, test := range cases {
		s := testScanner(format(test))
		out, err := s.ReadObject()
		if err != nil {
			t.Errorf("%q: %s", format(test), err)
			continue
		}
		got, ok := out.(String)
		if !ok || !bytes.Equal(got, test) {
			t.Errorf("wrong string: %q != %q", got, test)
		}
	}
}

func TestTextString(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"\000\011\n\f\r",
		"ein Bär",
		"o țesătură",
		"中文",
		"日本語",
	}
	for _, test := range cases {
		enc := TextString(test)
		out := enc.AsTextString()
		if out != test {
			t.Errorf("wrong text: %q != %q", out, test)
		}
	}
}

func TestDateRoundTrip(t *testing.T) {
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("test", -8*60*60),
		time.FixedZone("test", 5*60*60+30*60),
	}
	for _, zone := range zones {
		in := time.Date(1999, 12, 31, 23, 59, 59, 0, zone)
		enc := Date(in)
		out, err := enc.AsDate()
		if err != nil {
			t.Errorf("%q: %s", enc, err)
			continue
		}
		if !out.Equal(in) {
			t.Errorf("wrong date: %s != %s", out, in)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in  string
		out time.Time
	}{
		{"D:19990101", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"D:20060102150405Z", time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)},
		{"D:20060102150405-08'00", time.Date(2006, 1, 2, 15, 4, 5, 0,
			time.FixedZone("", -8*60*60))},
		{"20060102150405", time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)},
	}
	for _, test := range cases {
		out, err := String(test.in).AsDate()
		if err != nil {
			t.Errorf("%q: %s", test.in, err)
			continue
		}
		if !out.Equal(test.out) {
			t.Errorf("%q: wrong date: %s != %s", test.in, out, test.out)
		}
	}

	_, err := String("not a date").AsDate()
	if err == nil {
		t.Error("invalid date not detected")
	}
}

func TestReferenceParts(t *testing.T) {
	ref := NewReference(0xFFFF_FFFF, 0xFFFF)
	if ref.Number() != 0xFFFF_FFFF || ref.Generation() != 0xFFFF {
		t.Errorf("reference parts lost: %d %d", ref.Number(), ref.Generation())
	}
	if NewReference(0, 0) != 0 {
		t.Error("zero reference is not the zero value")
	}
}

func FuzzTextString(f *testing.F) {
	f.Add("")
	f.Add("hello")
	f.Add("ein Bär")
	f.Add("中文")
	f.Fuzz(func(t *testing.T, s string) {
		enc := TextString(s)
		out := enc.AsTextString()
		if out != s && isValidUTF8String(s) {
			t.Errorf("wrong text: %q != %q", out, s)
		}
	})
}

func isValidUTF8String(s string) bool {
	for _, r := range s {
		if r == 0xFFFD {
			return false
		}
	}
	return true
}
