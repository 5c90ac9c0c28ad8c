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
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testScanner(contents string) *scanner {
	buf := bytes.NewReader([]byte(contents))
	return newScanner(buf, 0, func(o Object) (Integer, error) {
		return o.(Integer), nil
	}, nil)
}

func TestReadObject(t *testing.T) {
	cases := []struct {
		in  string
		val Object
		ok  bool
	}{
		{"", nil, false},
		{"null", nil, true},

		{"true", Bool(true), true},
		{"false", Bool(false), true},
		{"TRUE", nil, false},

		{"0", Integer(0), true},
		{"+0", Integer(0), true},
		{"-0", Integer(0), true},
		{"12", Integer(12), true},
		{"+12", Integer(12), true},
		{"-12", Integer(-12), true},
		{"00987", Integer(987), true},
		{"999999999999999999", Integer(999999999999999999), true},

		{".5", Real(.5), true},
		{"+.5", Real(.5), true},
		{"-.5", Real(-.5), true},
		{"0.5", Real(.5), true},
		{"2.", Real(2), true},
		{".", nil, false},

		{"()", String(nil), true},
		{"(test string)", String("test string"), true},
		{"(he(ll)o)", String("he(ll)o"), true},
		{`(he\)ll\(o)`, String("he)ll(o"), true},
		{"(hell\\\no)", String("hello"), true},
		{`(h\145llo)`, String("hello"), true},
		{`(\0612)`, String("12"), true},
		{"<>", String(nil), true},
		{"<68656c6c6f>", String("hello"), true},
		{"<68656C6C6F>", String("hello"), true},
		{"<68 65 6C 6C 6F>", String("hello"), true},
		{"<68656C7>", String("help"), true},

		{"/hello", Name("hello"), true},
		{"/A#20B", Name("A B"), true},
		{"/1.2", Name("1.2"), true},
		{"/", Name(""), true},

		{"[1 2 3]", Array{Integer(1), Integer(2), Integer(3)}, true},
		{"[1 2 R]", Array{NewReference(1, 2)}, true},
		{"[1 2 R 7]", Array{NewReference(1, 2), Integer(7)}, true},
		{"[null true (x)]", Array{nil, Bool(true), String("x")}, true},
		{"[[1] [2]]", Array{Array{Integer(1)}, Array{Integer(2)}}, true},

		{"<< >>", Dict{}, true},
		{"<</A 1/B (x)>>", Dict{"A": Integer(1), "B": String("x")}, true},
		{"<</Ref 3 0 R>>", Dict{"Ref": NewReference(3, 0)}, true},
		{"<</D<</E/F>>>>", Dict{"D": Dict{"E": Name("F")}}, true},

		{"% comment\n42", Integer(42), true},
	}
	for _, test := range cases {
		s := testScanner(test.in)
		s.SkipWhiteSpace()
		val, err := s.ReadObject()
		if test.ok {
			if err != nil {
				t.Errorf("%q: unexpected error %s", test.in, err)
				continue
			}
			if d := cmp.Diff(test.val, val); d != "" {
				t.Errorf("%q: wrong object (-want +got):\n%s", test.in, d)
			}
		} else if err == nil {
			t.Errorf("%q: expected error, got %s", test.in, format(val))
		}
	}
}

func TestReadStream(t *testing.T) {
	in := "<</Length 5>>\nstream\nhello\nendstream"
	s := testScanner(in)
	obj, err := s.ReadObject()
	if err != nil {
		t.Fatal(err)
	}
	stream, ok := obj.(*Stream)
	if !ok {
		t.Fatalf("expected *Stream, got %T", obj)
	}
	data, err := io.ReadAll(stream.R)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("wrong stream data %q", data)
	}
}

func TestReadStreamBadLength(t *testing.T) {
	var warnings []string
	in := "<</Length 3>>\nstream\nhello\nendstream"
	s := newScanner(bytes.NewReader([]byte(in)), 0,
		func(o Object) (Integer, error) { return o.(Integer), nil },
		func(msg string) { warnings = append(warnings, msg) })

	obj, err := s.ReadObject()
	if err != nil {
		t.Fatal(err)
	}
	stream := obj.(*Stream)
	data, err := io.ReadAll(stream.R)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("wrong stream data %q", data)
	}
	if stream.Dict["Length"] != Integer(5) {
		t.Errorf("length not fixed up: %s", format(stream.Dict["Length"]))
	}
	if len(warnings) != 1 {
		t.Errorf("expected one warning, got %d", len(warnings))
	}
}

func TestReadIndirectObject(t *testing.T) {
	cases := []struct {
		in  string
		val Object
		ref Reference
	}{
		{"7 0 obj\n<</X 1>>\nendobj", Dict{"X": Integer(1)}, NewReference(7, 0)},
		{"1 2 obj 42 endobj", Integer(42), NewReference(1, 2)},
		{"5 0 obj 6 0 R endobj", NewReference(6, 0), NewReference(5, 0)},
		{"3 0 obj (hi) endobj", String("hi"), NewReference(3, 0)},
		// missing endobj is tolerated
		{"4 0 obj\n[1 2]\n", Array{Integer(1), Integer(2)}, NewReference(4, 0)},
	}
	for _, test := range cases {
		s := testScanner(test.in)
		val, ref, err := s.ReadIndirectObject()
		if err != nil {
			t.Errorf("%q: %s", test.in, err)
			continue
		}
		if ref != test.ref {
			t.Errorf("%q: wrong reference %s", test.in, ref)
		}
		if d := cmp.Diff(test.val, val); d != "" {
			t.Errorf("%q: wrong object (-want +got):\n%s", test.in, d)
		}
	}
}

func TestSkipWhiteSpace(t *testing.T) {
	s := testScanner("  % comment\n \t\r\n42")
	err := s.SkipWhiteSpace()
	if err != nil {
		t.Fatal(err)
	}
	x, err := s.ReadInteger()
	if err != nil {
		t.Fatal(err)
	}
	if x != 42 {
		t.Errorf("wrong integer %d", x)
	}
}

func TestScannerPositions(t *testing.T) {
	s := newScanner(strings.NewReader("0123456789"), 100, nil, nil)
	err := s.Discard(4)
	if err != nil {
		t.Fatal(err)
	}
	if s.bufPos() != 4 {
		t.Errorf("wrong buffer position %d", s.bufPos())
	}
	if s.filePos() != 104 {
		t.Errorf("wrong file position %d", s.filePos())
	}
}

func TestReadHeaderVersion(t *testing.T) {
	cases := []struct {
		in  string
		out Version
		ok  bool
	}{
		{"%PDF-1.7\n", V1_7, true},
		{"%PDF-1.0\n", V1_0, true},
		{"%PDF-2.0\n", V2_0, true},
		{"garbage\n%PDF-1.5\nmore", V1_5, true},
		{"no header here", 0, false},
	}
	for _, test := range cases {
		s := testScanner(test.in)
		v, err := s.readHeaderVersion()
		if test.ok {
			if err != nil {
				t.Errorf("%q: %s", test.in, err)
			} else if v != test.out {
				t.Errorf("%q: wrong version %s", test.in, v)
			}
		} else if err == nil {
			t.Errorf("%q: expected error", test.in)
		}
	}
}

func FuzzReadObject(f *testing.F) {
	f.Add("null")
	f.Add("<</A 1/B (x)>>")
	f.Add("[1 2 R /x <0a>]")
	f.Add("<</Length 5>>\nstream\nhello\nendstream")
	f.Add("(a (nested) \\451string)")
	f.Fuzz(func(t *testing.T, data string) {
		s := testScanner(data)
		obj, err := s.ReadObject()
		if err != nil {
			return
		}
		if stream, ok := obj.(*Stream); ok {
			io.Copy(io.Discard, stream.R)
		}
	})
}
