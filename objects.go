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
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// Object represents an object in a PDF file.  There are nine native types of
// PDF objects, represented by the types [Array], [Bool], [Dict], [Integer],
// [Name], [Real], [Reference], [*Stream], and [String].  The Go value nil
// stands for the PDF object `null`.
type Object interface {
	// PDF writes the PDF file representation of the object to w.
	PDF(w io.Writer) error
}

// Bool represents a boolean value in a PDF file.
type Bool bool

// PDF implements the [Object] interface.
func (x Bool) PDF(w io.Writer) error {
	var s string
	if x {
		s = "true"
	} else {
		s = "false"
	}
	_, err := w.Write([]byte(s))
	return err
}

// Integer represents an integer constant in a PDF file.
type Integer int64

// PDF implements the [Object] interface.
func (x Integer) PDF(w io.Writer) error {
	s := strconv.FormatInt(int64(x), 10)
	_, err := w.Write([]byte(s))
	return err
}

// Real represents a real number in a PDF file.
type Real float64

// PDF implements the [Object] interface.
func (x Real) PDF(w io.Writer) error {
	s := strconv.FormatFloat(float64(x), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s = s + "."
	}
	_, err := w.Write([]byte(s))
	return err
}

// String represents a raw string in a PDF file.  The character set encoding,
// if any, is determined by the context.
type String []byte

// PDF implements the [Object] interface.
func (x String) PDF(w io.Writer) error {
	l := []byte(x)

	if pw, ok := w.(*posWriter); ok && pw.enc != nil && pw.ref != 0 {
		enc, err := pw.enc.EncryptBytes(pw.ref, bytes.Clone(l))
		if err != nil {
			return err
		}
		l = enc
	}

	level := 0
	for _, c := range l {
		if c == '(' {
			level++
		} else if c == ')' {
			level--
			if level < 0 {
				break
			}
		}
	}
	balanced := level == 0

	var funny []int
	for i, c := range l {
		if c < 32 || c == '\\' ||
			!balanced && (c == '(' || c == ')') {
			funny = append(funny, i)
		}
	}
	n := len(l)

	buf := &bytes.Buffer{}
	if 3*len(funny) <= n {
		buf.WriteString("(")
		pos := 0
		for _, i := range funny {
			if pos < i {
				buf.Write(l[pos:i])
			}
			c := l[i]
			switch c {
			case '\r':
				buf.WriteString(`\r`)
			case '\n':
				buf.WriteString(`\n`)
			case '\t':
				buf.WriteString(`\t`)
			case '\b':
				buf.WriteString(`\b`)
			case '\f':
				buf.WriteString(`\f`)
			case '(':
				buf.WriteString(`\(`)
			case ')':
				buf.WriteString(`\)`)
			case '\\':
				buf.WriteString(`\\`)
			default:
				fmt.Fprintf(buf, `\%03o`, c)
			}
			pos = i + 1
		}
		if pos < n {
			buf.Write(l[pos:n])
		}
		buf.WriteString(")")
	} else {
		fmt.Fprintf(buf, "<%x>", l)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// AsTextString interprets x as a PDF "text string" and returns the
// corresponding utf-8 encoded string.
func (x String) AsTextString() string {
	if isUTF16(string(x)) {
		return utf16Decode(x[2:])
	}
	return pdfDocDecode(x)
}

// TextString creates a String object using the "text string" encoding,
// i.e. using either PDFDocEncoding or UTF-16BE encoding (with a BOM).
func TextString(s string) String {
	buf, ok := pdfDocEncode(s)
	if ok {
		return buf
	}

	enc := utf16.Encode([]rune(s))
	buf = make([]byte, 2*len(enc)+2)
	buf[0] = 0xFE
	buf[1] = 0xFF
	for i, c := range enc {
		buf[2*i+2] = byte(c >> 8)
		buf[2*i+3] = byte(c)
	}
	return String(buf)
}

// AsDate converts a PDF date string to a time.Time object.
// If the string does not have the correct format, an error is returned.
func (x String) AsDate() (time.Time, error) {
	s := x.AsTextString()
	if s == "D:" || s == "" {
		return time.Time{}, nil
	}
	s = strings.ReplaceAll(s, "'", "")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "19") || strings.HasPrefix(s, "20") {
		s = "D:" + s
	}

	formats := []string{
		"D:20060102150405-0700",
		"D:20060102150405-07",
		"D:20060102150405Z0000",
		"D:20060102150405Z00",
		"D:20060102150405Z",
		"D:20060102150405",
		"D:200601021504",
		"D:2006010215",
		"D:20060102",
		"D:200601",
		"D:2006",
		time.ANSIC,
	}
	for _, format := range formats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, errNoDate
}

// Date creates a PDF String object encoding the given date and time.
func Date(t time.Time) String {
	s := t.Format("D:20060102150405-0700")
	k := len(s) - 2
	s = s[:k] + "'" + s[k:]
	return String(s)
}

// Name represents a name object in a PDF file.
type Name string

// PDF implements the [Object] interface.
func (x Name) PDF(w io.Writer) error {
	l := []byte(x)

	var funny []int
	for i, c := range l {
		if isSpace[c] || isDelimiter[c] || c < 0x21 || c > 0x7e || c == '#' {
			funny = append(funny, i)
		}
	}
	n := len(l)

	buf := &bytes.Buffer{}
	buf.WriteString("/")
	pos := 0
	for _, i := range funny {
		if pos < i {
			buf.Write(l[pos:i])
		}
		c := l[i]
		fmt.Fprintf(buf, "#%02x", c)
		pos = i + 1
	}
	if pos < n {
		buf.Write(l[pos:n])
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// Array represents an array of objects in a PDF file.
type Array []Object

func (x Array) String() string {
	return "<Array, " + strconv.Itoa(len(x)) + " elements>"
}

// PDF implements the [Object] interface.
func (x Array) PDF(w io.Writer) error {
	_, err := w.Write([]byte("["))
	if err != nil {
		return err
	}
	for i, val := range x {
		if i > 0 {
			_, err = w.Write([]byte(" "))
			if err != nil {
				return err
			}
		}
		if val == nil {
			_, err = w.Write([]byte("null"))
		} else {
			err = val.PDF(w)
		}
		if err != nil {
			return err
		}
	}
	_, err = w.Write([]byte("]"))
	return err
}

// Dict represents a Dictionary object in a PDF file.
type Dict map[Name]Object

func (x Dict) String() string {
	res := []string{}
	tp, ok := x["Type"].(Name)
	if ok {
		res = append(res, string(tp)+" Dict")
	} else {
		res = append(res, "Dict")
	}
	res = append(res, strconv.Itoa(len(x))+" entries")
	return "<" + strings.Join(res, ", ") + ">"
}

// PDF implements the [Object] interface.  Entries are written in
// alphabetical order of the keys, so that output is deterministic.
func (x Dict) PDF(w io.Writer) error {
	if x == nil {
		_, err := w.Write([]byte("null"))
		return err
	}

	keys := make([]Name, 0, len(x))
	for key, val := range x {
		if val == nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})

	_, err := w.Write([]byte("<<"))
	if err != nil {
		return err
	}

	for _, name := range keys {
		val := x[name]

		_, err = w.Write([]byte("\n"))
		if err != nil {
			return err
		}
		err = name.PDF(w)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(" "))
		if err != nil {
			return err
		}
		err = val.PDF(w)
		if err != nil {
			return err
		}
	}
	_, err = w.Write([]byte("\n>>"))
	return err
}

// Stream represents a stream object in a PDF file.  The payload can be read
// from R.  For streams read from a file, R yields the raw (still filtered)
// payload with any document encryption already removed.
type Stream struct {
	Dict
	R io.Reader
}

func (x *Stream) String() string {
	res := []string{}
	tp, ok := x.Dict["Type"].(Name)
	if ok {
		res = append(res, string(tp)+" Stream")
	} else {
		res = append(res, "Stream")
	}
	length, ok := x.Dict["Length"].(Integer)
	if ok {
		res = append(res, strconv.FormatInt(int64(length), 10)+" bytes")
	}
	switch filter := x.Dict["Filter"].(type) {
	case Name:
		res = append(res, string(filter))
	case Array:
		for _, f := range filter {
			if name, ok := f.(Name); ok {
				res = append(res, string(name))
			}
		}
	}
	return "<" + strings.Join(res, ", ") + ">"
}

// PDF implements the [Object] interface.
//
// The stream payload is copied from R as-is.  The [Writer] takes care
// of encryption and of fixing up the /Length entry before calling this
// method.
func (x *Stream) PDF(w io.Writer) error {
	err := x.Dict.PDF(w)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("\nstream\n"))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, x.R)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("\nendstream"))
	return err
}

// Reference represents a reference to an indirect object in a PDF file.
// The lower 32 bits hold the object number and the next 16 bits the
// generation number.  The zero value does not refer to any object.
type Reference uint64

// NewReference creates a new reference with the given object number and
// generation number.
func NewReference(number uint32, generation uint16) Reference {
	return Reference(uint64(number) | uint64(generation)<<32)
}

// Number returns the object number of the reference.
func (x Reference) Number() uint32 {
	return uint32(x)
}

// Generation returns the generation number of the reference.
func (x Reference) Generation() uint16 {
	return uint16(x >> 32)
}

func (x Reference) String() string {
	res := []string{
		"obj_",
		strconv.FormatUint(uint64(x.Number()), 10),
	}
	gen := x.Generation()
	if gen > 0 {
		res = append(res, "@", strconv.FormatUint(uint64(gen), 10))
	}
	return strings.Join(res, "")
}

// PDF implements the [Object] interface.
func (x Reference) PDF(w io.Writer) error {
	if x>>48 != 0 {
		return fmt.Errorf("invalid reference 0x%016x", uint64(x))
	}
	_, err := fmt.Fprintf(w, "%d %d R", x.Number(), x.Generation())
	return err
}

// format returns the textual PDF representation of obj, for error
// messages and tests.
func format(obj Object) string {
	if obj == nil {
		return "null"
	}
	buf := &bytes.Buffer{}
	err := obj.PDF(buf)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return buf.String()
}
