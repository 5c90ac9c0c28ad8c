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
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadXRefTable(t *testing.T) {
	in := "xref\n" +
		"0 3\n" +
		"0000000000 65535 f\r\n" +
		"0000000042 00000 n\r\n" +
		"0000000099 00003 n\r\n" +
		"10 1\n" +
		"0000000123 00000 n\r\n" +
		"trailer\n" +
		"<</Size 11/Root 1 0 R>>\n"

	xref := make(map[uint32]*xRefEntry)
	dict, err := readXRefTable(xref, testScanner(in))
	if err != nil {
		t.Fatal(err)
	}

	expected := map[uint32]*xRefEntry{
		0:  {Pos: -1, Generation: 65535},
		1:  {Pos: 42},
		2:  {Pos: 99, Generation: 3},
		10: {Pos: 123},
	}
	if d := cmp.Diff(expected, xref); d != "" {
		t.Errorf("wrong xref table (-want +got):\n%s", d)
	}
	if dict["Root"] != NewReference(1, 0) || dict["Size"] != Integer(11) {
		t.Errorf("wrong trailer %s", format(dict))
	}
	if !xref[0].IsFree() || xref[1].IsFree() {
		t.Error("wrong free marks")
	}
}

func TestDecodeXRefStream(t *testing.T) {
	data := []byte{
		0, 0, 0, 0xFF, 0xFF, // free
		1, 0, 10, 0, 0, // at byte 10
		2, 0, 3, 0, 1, // in object stream 3, index 1
	}
	xref := make(map[uint32]*xRefEntry)
	err := decodeXRefStream(xref, bytes.NewReader(data),
		[]int{1, 2, 2}, []*xRefSubSection{{Start: 0, Size: 3}})
	if err != nil {
		t.Fatal(err)
	}

	expected := map[uint32]*xRefEntry{
		0: {Pos: -1, Generation: 65535},
		1: {Pos: 10},
		2: {Pos: 1, InStream: NewReference(3, 0)},
	}
	if d := cmp.Diff(expected, xref); d != "" {
		t.Errorf("wrong xref table (-want +got):\n%s", d)
	}
}

func TestDecodeXRefStreamDefaultType(t *testing.T) {
	// With W[0] == 0 the entry type defaults to 1.
	data := []byte{0, 7, 0}
	xref := make(map[uint32]*xRefEntry)
	err := decodeXRefStream(xref, bytes.NewReader(data),
		[]int{0, 2, 1}, []*xRefSubSection{{Start: 4, Size: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if xref[4] == nil || xref[4].Pos != 7 {
		t.Errorf("wrong entry %v", xref[4])
	}
}

// buildObjStmFile constructs a small PDF file which stores its catalog
// in an object stream and uses a cross-reference stream.
func buildObjStmFile() []byte {
	o1 := "<</Type/Catalog/Pages 2 0 R>>"
	o2 := "<</Type/Pages/Kids[]/Count 0>>"
	payload := o1 + " " + o2
	idx := fmt.Sprintf("1 0 2 %d\n", len(o1)+1)
	content := idx + payload

	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.5\n")

	pos3 := buf.Len()
	fmt.Fprintf(buf, "3 0 obj\n<</Type/ObjStm/N 2/First %d/Length %d>>\nstream\n%s\nendstream\nendobj\n",
		len(idx), len(content), content)

	pos4 := buf.Len()
	entries := &bytes.Buffer{}
	for _, e := range [][3]int{
		{0, 0, 255}, // free
		{2, 3, 0},   // catalog, in object stream 3
		{2, 3, 1},   // page tree root, in object stream 3
		{1, pos3, 0},
		{1, pos4, 0},
	} {
		entries.WriteByte(byte(e[0]))
		entries.WriteByte(byte(e[1] >> 8))
		entries.WriteByte(byte(e[1]))
		entries.WriteByte(byte(e[2]))
	}
	data := entries.Bytes()
	fmt.Fprintf(buf, "4 0 obj\n<</Type/XRef/Size 5/W[1 2 1]/Root 1 0 R/Length %d>>\nstream\n",
		len(data))
	buf.Write(data)
	buf.WriteString("\nendstream\nendobj\n")

	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", pos4)
	return buf.Bytes()
}

func TestObjectStreams(t *testing.T) {
	file := buildObjStmFile()
	r, err := NewReader(bytes.NewReader(file), int64(len(file)), nil)
	if err != nil {
		t.Fatal(err)
	}

	catalog, err := GetDict(r, NewReference(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	if catalog["Type"] != Name("Catalog") {
		t.Errorf("wrong catalog %s", format(catalog))
	}
	pages, err := GetDict(r, catalog["Pages"])
	if err != nil {
		t.Fatal(err)
	}
	if pages["Type"] != Name("Pages") || pages["Count"] != Integer(0) {
		t.Errorf("wrong page tree root %s", format(pages))
	}

	// dangling references resolve to nil
	obj, err := r.Get(NewReference(20, 0))
	if err != nil || obj != nil {
		t.Errorf("dangling reference: %s, %v", format(obj), err)
	}
	obj, err = r.Get(NewReference(0, 65535))
	if err != nil || obj != nil {
		t.Errorf("free object: %s, %v", format(obj), err)
	}
}

// buildHybridFile constructs a PDF file with a classic cross-reference
// table whose trailer points at an additional cross-reference stream via
// /XRefStm.  Object 1 is defined twice: the classic table points at the
// old definition, the stream at the new one.
func buildHybridFile() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.5\n")

	pos1old := buf.Len()
	buf.WriteString("1 0 obj 111 endobj\n")
	pos1new := buf.Len()
	buf.WriteString("1 0 obj 222 endobj\n")
	pos2 := buf.Len()
	buf.WriteString("2 0 obj 333 endobj\n")

	posStm := buf.Len()
	entry := []byte{1, byte(pos1new >> 8), byte(pos1new), 0}
	fmt.Fprintf(buf, "4 0 obj\n<</Type/XRef/Size 5/W[1 2 1]/Index[1 1]/Length %d>>\nstream\n",
		len(entry))
	buf.Write(entry)
	buf.WriteString("\nendstream\nendobj\n")

	posTable := buf.Len()
	buf.WriteString("xref\n0 3\n")
	fmt.Fprintf(buf, "%010d %05d f\r\n", 0, 65535)
	fmt.Fprintf(buf, "%010d %05d n\r\n", pos1old, 0)
	fmt.Fprintf(buf, "%010d %05d n\r\n", pos2, 0)
	fmt.Fprintf(buf, "trailer\n<</Size 5/Root 2 0 R/XRefStm %d>>\n", posStm)

	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", posTable)
	return buf.Bytes()
}

func TestHybridXRef(t *testing.T) {
	file := buildHybridFile()
	r, err := NewReader(bytes.NewReader(file), int64(len(file)), nil)
	if err != nil {
		t.Fatal(err)
	}

	// within one revision, the /XRefStm entries take precedence over the
	// classic table
	obj, err := r.Get(NewReference(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	if obj != Integer(222) {
		t.Errorf("classic table entry used despite /XRefStm: %s", format(obj))
	}

	// classic entries not covered by the stream still apply
	obj, err = r.Get(NewReference(2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if obj != Integer(333) {
		t.Errorf("classic table entry lost: %s", format(obj))
	}

	// with xref streams disabled, the /XRefStm entry is ignored
	r, err = NewReader(bytes.NewReader(file), int64(len(file)), &OpenOptions{
		IgnoreXRefStreams: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	obj, err = r.Get(NewReference(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	if obj != Integer(111) {
		t.Errorf("unexpected object with xref streams disabled: %s", format(obj))
	}
}

func TestIgnoreXRefStreams(t *testing.T) {
	file := buildObjStmFile()
	_, err := NewReader(bytes.NewReader(file), int64(len(file)), &OpenOptions{
		IgnoreXRefStreams: true,
		DisableRecovery:   true,
	})
	if err == nil {
		t.Error("expected an error for a file without classic xref tables")
	}
}
