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
	"errors"
	"fmt"
	"io"
	"strconv"
)

const scannerBufSize = 1024

// scanner is a tokenizer for PDF files.  It reads from r and keeps track
// of the current position in the file.  The base offset is added to all
// positions reported in error messages, so that a scanner reading from an
// [io.SectionReader] still reports absolute file positions.
type scanner struct {
	r         io.Reader
	base      int64
	buf       []byte
	used, pos int

	getInt func(Object) (Integer, error)
	warn   func(string)

	total int64
}

func newScanner(r io.Reader, base int64,
	getInt func(Object) (Integer, error), warn func(string)) *scanner {
	return &scanner{
		r:      r,
		base:   base,
		buf:    make([]byte, scannerBufSize),
		getInt: getInt,
		warn:   warn,
	}
}

// filePos returns the absolute position of the next byte to be read.
func (s *scanner) filePos() int64 {
	return s.base + s.total + int64(s.pos)
}

// bufPos returns the position of the next byte to be read, relative to
// the reader the scanner was created with.
func (s *scanner) bufPos() int64 {
	return s.total + int64(s.pos)
}

func (s *scanner) warning(msg string) {
	if s.warn != nil {
		s.warn(msg)
	}
}

// ReadIndirectObject reads an object definition of the form
// "number generation obj ... endobj".  It returns the object together
// with the reference given in the definition.
func (s *scanner) ReadIndirectObject() (Object, Reference, error) {
	// Some files point the xref entries at the end of the previous line.
	// Fix this up by skipping any leading white space.
	err := s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}

	number, err := s.ReadInteger()
	if err != nil {
		return nil, 0, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}

	generation, err := s.ReadInteger()
	if err != nil {
		return nil, 0, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}

	if number < 0 || number > 0xFFFF_FFFF || generation < 0 || generation > 0xFFFF {
		return nil, 0, &MalformedFileError{
			Pos: s.filePos(),
			Err: errors.New("invalid object identifier"),
		}
	}
	ref := NewReference(uint32(number), uint16(generation))

	err = s.SkipString("obj")
	if err != nil {
		return nil, 0, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}

	obj, err := s.ReadObject()
	if err != nil {
		return nil, 0, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}

	if a, ok := obj.(Integer); ok && a >= 0 && a <= 0xFFFF_FFFF {
		// Check whether this is the start of a reference to an indirect
		// object.
		buf, _ := s.Peek(6) // len("endobj") == 6
		if len(buf) > 0 && buf[0] >= '0' && buf[0] <= '9' {
			b, err := s.ReadInteger()
			if err != nil {
				return nil, 0, err
			}
			err = s.SkipWhiteSpace()
			if err != nil {
				return nil, 0, err
			}
			err = s.SkipString("R")
			if err != nil {
				return nil, 0, err
			}
			err = s.SkipWhiteSpace()
			if err != nil {
				return nil, 0, err
			}

			obj = NewReference(uint32(a), uint16(b))
		}
	}

	err = s.SkipString("endobj")
	if err != nil {
		// Tolerate a missing endobj keyword, as long as the object
		// itself could be read.
		s.warning("missing endobj keyword at byte " +
			strconv.FormatInt(s.filePos(), 10))
	}

	return obj, ref, nil
}

func (s *scanner) ReadObject() (Object, error) {
	buf, err := s.Peek(5) // len("false") == 5
	if err == nil {
		// Below, we return `err` if we cannot detect an object.  Use
		// &MalformedFileError{} when there was no problem reading the input.
		if len(buf) < 5 {
			err = &MalformedFileError{Pos: s.filePos(), Err: io.EOF}
		} else {
			err = &MalformedFileError{Pos: s.filePos()}
		}
	}

	switch {
	case len(buf) == 0:
		// Test this first, so that we can use buf[0] in the following cases.
		return nil, err
	case bytes.HasPrefix(buf, []byte("null")):
		s.pos += 4
		return nil, nil
	case bytes.HasPrefix(buf, []byte("true")):
		s.pos += 4
		return Bool(true), nil
	case bytes.HasPrefix(buf, []byte("false")):
		s.pos += 5
		return Bool(false), nil
	case buf[0] == '/':
		return s.ReadName()
	case buf[0] >= '0' && buf[0] <= '9', buf[0] == '+', buf[0] == '-', buf[0] == '.':
		return s.ReadNumber()
		// It is the caller's responsibility to check whether this is the
		// start of a reference.

	case bytes.HasPrefix(buf, []byte("<<")):
		dict, err := s.ReadDict()
		if err != nil {
			return nil, err
		}

		// check whether this is the start of a stream
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		buf, _ = s.Peek(6) // len("stream") == 6
		if !bytes.HasPrefix(buf, []byte("stream")) {
			return dict, nil
		}
		return s.ReadStreamData(dict)
	case buf[0] == '(':
		s.pos++
		return s.ReadQuotedString()
	case buf[0] == '<':
		s.pos++
		return s.ReadHexString()
	case buf[0] == '[':
		s.pos++
		return s.ReadArray()
	}
	return nil, err
}

// ReadInteger reads an integer, skipping any leading white space.
func (s *scanner) ReadInteger() (Integer, error) {
	err := s.SkipWhiteSpace()
	if err != nil {
		return 0, err
	}
	first := true
	var res []byte
	err = s.ScanBytes(func(c byte) bool {
		if first && (c == '+' || c == '-') {
			res = append(res, c)
		} else if c >= '0' && c <= '9' {
			res = append(res, c)
		} else {
			return false
		}
		first = false
		return true
	})
	if err != nil {
		return 0, err
	}

	x, err := strconv.ParseInt(string(res), 10, 64)
	if err != nil {
		return 0, &MalformedFileError{
			Pos: s.filePos(),
			Err: err,
		}
	}
	return Integer(x), nil
}

// ReadNumber reads an integer or real number.
func (s *scanner) ReadNumber() (Object, error) {
	hasDot := false
	first := true
	var res []byte
	err := s.ScanBytes(func(c byte) bool {
		if !hasDot && c == '.' {
			hasDot = true
			res = append(res, c)
		} else if first && (c == '+' || c == '-') {
			res = append(res, c)
		} else if c >= '0' && c <= '9' {
			res = append(res, c)
		} else {
			return false
		}
		first = false
		return true
	})
	if err != nil {
		return nil, err
	}

	if hasDot {
		x, err := strconv.ParseFloat(string(res), 64)
		if err != nil {
			return nil, &MalformedFileError{Pos: s.filePos(), Err: err}
		}
		return Real(x), nil
	}

	x, err := strconv.ParseInt(string(res), 10, 64)
	if err != nil {
		return nil, &MalformedFileError{Pos: s.filePos(), Err: err}
	}
	return Integer(x), nil
}

// ReadQuotedString reads a ()-delimited string, starting after the opening
// bracket.
func (s *scanner) ReadQuotedString() (String, error) {
	var res []byte
	parentCount := 0
	escape := false
	ignoreLF := false
	isOctal := 0
	octalVal := byte(0)
	err := s.ScanBytes(func(c byte) bool {
		if ignoreLF {
			ignoreLF = false
			if c == '\n' {
				return true
			}
		}
		if isOctal > 0 {
			if c >= '0' && c <= '7' {
				octalVal = octalVal*8 + (c - '0')
				isOctal--
				if isOctal == 0 {
					res = append(res, octalVal)
				}
				return true
			}
			res = append(res, octalVal)
			isOctal = 0
		}
		if escape {
			escape = false
			switch c {
			case '\n':
				return true
			case '\r':
				ignoreLF = true
				return true
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			}
			if c >= '0' && c <= '7' {
				isOctal = 2
				octalVal = c - '0'
				return true
			}
		} else if c == '\\' {
			escape = true
			return true
		} else if c == '(' {
			parentCount++
		} else if c == ')' {
			if parentCount > 0 {
				parentCount--
			} else {
				return false
			}
		} else if c == '\r' {
			c = '\n'
			ignoreLF = true
		}
		res = append(res, c)
		return true
	})
	if err != nil {
		return nil, err
	}

	s.pos++ // we have already seen the closing ")".
	return String(res), nil
}

// ReadHexString reads a <>-delimited string, starting after the opening
// angled bracket.
func (s *scanner) ReadHexString() (String, error) {
	var res []byte
	var hexVal byte
	first := true
	err := s.ScanBytes(func(c byte) bool {
		var d byte
		if c >= '0' && c <= '9' {
			d = c - '0'
		} else if c >= 'A' && c <= 'F' {
			d = c - 'A' + 10
		} else if c >= 'a' && c <= 'f' {
			d = c - 'a' + 10
		} else if c == '>' {
			return false
		} else {
			return true
		}
		if first {
			hexVal = d
		} else {
			res = append(res, 16*hexVal+d)
		}
		first = !first
		return true
	})
	if err != nil {
		return nil, err
	}
	if !first {
		res = append(res, 16*hexVal)
	}

	// If we reach the end of the file, the trailing ">" will be missing.
	s.SkipString(">")

	return String(res), nil
}

// ReadName reads a PDF name object.
func (s *scanner) ReadName() (Name, error) {
	err := s.SkipString("/")
	if err != nil {
		return "", err
	}

	hex := 0
	var hexByte byte
	var res []byte
	err = s.ScanBytes(func(c byte) bool {
		if hex > 0 {
			var val byte
			if c >= '0' && c <= '9' {
				val = c - '0'
			} else if c >= 'A' && c <= 'F' {
				val = c - 'A' + 10
			} else if c >= 'a' && c <= 'f' {
				val = c - 'a' + 10
			}
			hexByte = 16*hexByte + val
			hex--
			if hex == 0 {
				res = append(res, hexByte)
			}
		} else if c == '#' {
			hexByte = 0
			hex = 2
		} else if isSpace[c] || isDelimiter[c] {
			return false
		} else {
			res = append(res, c)
		}
		return true
	})
	if err != nil {
		return "", err
	}

	return Name(res), nil
}

// ReadArray reads an array, starting after the opening "[".
func (s *scanner) ReadArray() (Array, error) {
	var array Array
	integersSeen := 0
	for {
		err := s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}

		buf, err := s.Peek(1)
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 {
			return nil, &MalformedFileError{
				Pos: s.filePos(),
				Err: io.ErrUnexpectedEOF,
			}
		}
		if buf[0] == ']' {
			break
		}
		if integersSeen >= 2 && buf[0] == 'R' {
			s.pos++
			k := len(array)
			a := array[k-2].(Integer)
			b := array[k-1].(Integer)
			if a >= 0 && a <= 0xFFFF_FFFF && b >= 0 && b <= 0xFFFF {
				array = append(array[:k-2], NewReference(uint32(a), uint16(b)))
				integersSeen = 0
				continue
			}
			return nil, &MalformedFileError{
				Pos: s.filePos(),
				Err: errors.New("invalid reference"),
			}
		}

		obj, err := s.ReadObject()
		if err != nil {
			return nil, err
		}

		if _, isInt := obj.(Integer); isInt {
			integersSeen++
		} else {
			integersSeen = 0
		}

		array = append(array, obj)
	}
	s.pos++ // we have already seen the closing "]"

	return array, nil
}

// ReadDict reads a PDF dictionary.
func (s *scanner) ReadDict() (Dict, error) {
	err := s.SkipString("<<")
	if err != nil {
		return nil, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}

	dict := make(Dict)
	for {
		var key Name
		key, err = s.ReadName()
		if _, ok := err.(*MalformedFileError); ok {
			break
		} else if err != nil {
			return nil, err
		}

		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}

		var val Object
		val, err = s.ReadObject()
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}

		// If we found an integer, check whether this is a reference to an
		// indirect object.
		if a, isInt := val.(Integer); isInt {
			buf, err := s.Peek(1)
			if err != nil {
				return nil, err
			}
			if len(buf) == 0 {
				return nil, &MalformedFileError{
					Pos: s.filePos(),
					Err: io.ErrUnexpectedEOF,
				}
			}
			if buf[0] != '/' && buf[0] != '>' {
				b, err := s.ReadInteger()
				if err != nil {
					return nil, err
				}

				err = s.SkipWhiteSpace()
				if err != nil {
					return nil, err
				}

				buf, err := s.Peek(1)
				if err != nil || len(buf) == 0 || buf[0] != 'R' {
					return nil, &MalformedFileError{
						Pos: s.filePos(),
						Err: errors.New("expected R"),
					}
				}
				s.pos++
				err = s.SkipWhiteSpace()
				if err != nil {
					return nil, err
				}

				if a < 0 || a > 0xFFFF_FFFF || b < 0 || b > 0xFFFF {
					return nil, &MalformedFileError{
						Pos: s.filePos(),
						Err: errors.New("invalid reference"),
					}
				}
				val = NewReference(uint32(a), uint16(b))
			}
		}

		dict[key] = val
	}
	err = s.SkipString(">>")
	if err != nil {
		return nil, err
	}

	return dict, nil
}

// ReadStreamData reads the data of a PDF Stream, starting after the Dict.
// If the /Length entry is missing or wrong, the extent of the stream is
// recovered by scanning for the endstream keyword, and the dictionary is
// fixed up accordingly.
func (s *scanner) ReadStreamData(dict Dict) (*Stream, error) {
	l := int64(-1)
	length, err := s.getInt(dict["Length"])
	if err != nil {
		if _, ok := err.(*MalformedFileError); !ok {
			return nil, err
		}
	} else if length >= 0 {
		l = int64(length)
	}

	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}

	err = s.SkipString("stream")
	if err != nil {
		return nil, err
	}

	buf, err := s.Peek(2)
	if err != nil {
		return nil, err
	}
	if len(buf) >= 2 && buf[0] == '\r' && buf[1] == '\n' {
		s.pos += 2
	} else if len(buf) >= 1 && buf[0] == '\n' {
		s.pos++
	} else if len(buf) >= 1 && buf[0] == '\r' {
		// A lone CR is not allowed here, but some writers emit it.
		s.pos++
	}

	origReader, ok := s.r.(io.ReaderAt)
	if !ok {
		// streams inside object streams are not allowed
		return nil, &MalformedFileError{
			Pos: s.filePos(),
			Err: errors.New("stream not allowed here"),
		}
	}
	start := s.bufPos()

	if l >= 0 && !endstreamFollows(origReader, start+l) {
		l = -1
	}
	if l < 0 {
		l, err = scanForEndstream(origReader, start)
		if err != nil {
			return nil, err
		}
		dict["Length"] = Integer(l)
		s.warning("stream at byte " +
			strconv.FormatInt(s.base+start, 10) +
			" has a wrong /Length, recovered by scanning for endstream")
	}

	streamData := io.NewSectionReader(origReader, start, l)
	err = s.Discard(l)
	if err != nil {
		return nil, err
	}

	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}

	err = s.SkipString("endstream")
	if err != nil {
		return nil, err
	}

	return &Stream{
		Dict: dict,
		R:    streamData,
	}, nil
}

// endstreamFollows reports whether the endstream keyword occurs at pos,
// possibly preceded by white space.
func endstreamFollows(r io.ReaderAt, pos int64) bool {
	buf := make([]byte, 32)
	n, _ := r.ReadAt(buf, pos)
	i := 0
	for i < n && isSpace[buf[i]] {
		i++
	}
	return bytes.HasPrefix(buf[i:n], []byte("endstream"))
}

// scanForEndstream determines the length of a stream payload starting at
// the given position by searching for the first occurrence of the
// endstream keyword.  An end-of-line marker directly before the keyword
// is not counted as part of the payload.
func scanForEndstream(r io.ReaderAt, start int64) (int64, error) {
	pat := []byte("endstream")
	overlap := len(pat) - 1
	buf := make([]byte, 4096+overlap)

	chunkStart := start
	valid := 0
	for {
		n, err := r.ReadAt(buf[valid:], chunkStart+int64(valid))
		valid += n

		if idx := bytes.Index(buf[:valid], pat); idx >= 0 {
			end := chunkStart + int64(idx)
			l := end - start

			// exclude the EOL separating payload and keyword
			k := int64(2)
			if l < k {
				k = l
			}
			if k > 0 {
				var eol [2]byte
				if _, err := r.ReadAt(eol[2-k:], end-k); err == nil {
					if eol[1] == '\n' {
						l--
						if k == 2 && eol[0] == '\r' {
							l--
						}
					} else if eol[1] == '\r' {
						l--
					}
				}
			}
			return l, nil
		}

		if err != nil {
			if err == io.EOF {
				return 0, &MalformedFileError{
					Pos: start,
					Err: errors.New("endstream not found"),
				}
			}
			return 0, err
		}

		copy(buf, buf[valid-overlap:valid])
		chunkStart += int64(valid - overlap)
		valid = overlap
	}
}

func (s *scanner) readHeaderVersion() (Version, error) {
	buf, err := s.Peek(scannerBufSize)
	if err != nil {
		return 0, err
	}

	// The header does not always start at the very beginning of the file.
	idx := bytes.Index(buf, []byte("%PDF-"))
	if idx < 0 || idx+8 > len(buf) {
		return 0, &MalformedFileError{
			Err: errors.New("PDF header not found"),
		}
	}
	if idx+8 < len(buf) && buf[idx+8] >= '0' && buf[idx+8] <= '9' {
		return 0, &MalformedFileError{Pos: int64(idx + 5), Err: errVersion}
	}

	version, err := ParseVersion(string(buf[idx+5 : idx+8]))
	if err != nil {
		return 0, &MalformedFileError{Pos: int64(idx + 5), Err: errVersion}
	}
	return version, nil
}

// refill discards the read part of the buffer and reads as much new data as
// possible.  Once the end of file is reached, s.used will be smaller than the
// buffer size, but no error will be returned.
func (s *scanner) refill() error {
	s.total += int64(s.pos)
	copy(s.buf, s.buf[s.pos:s.used])
	s.used -= s.pos
	s.pos = 0

	n, err := io.ReadFull(s.r, s.buf[s.used:])
	s.used += n

	if s.used > 0 || err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}

	return err
}

// Peek returns a view of the next n bytes of input.  The function panics, if n
// is larger than scannerBufSize.  On EOF, short buffers without an error code
// will be returned.
func (s *scanner) Peek(n int) ([]byte, error) {
	if n > scannerBufSize {
		panic("peek window too large")
	}

	var err error
	if s.pos+n > s.used {
		err = s.refill()
	}

	if s.pos+n > s.used {
		return s.buf[s.pos:s.used], err
	}

	return s.buf[s.pos : s.pos+n], nil
}

func (s *scanner) Discard(n int64) error {
	if n < 0 {
		panic("negative offset for Discard()")
	}
	unread := int64(s.used - s.pos)
	if n <= unread {
		s.pos += int(n)
		return nil
	}

	n -= unread
	s.total += int64(s.used)
	s.pos = 0
	s.used = 0

	n, err := io.CopyN(io.Discard, s.r, n)
	s.total += n
	return err
}

func (s *scanner) ScanBytes(accept func(c byte) bool) error {
	empty := true
	for {
		for s.pos < s.used {
			if !accept(s.buf[s.pos]) {
				return nil
			}
			s.pos++
			empty = false
		}
		err := s.refill()
		if err == io.EOF && !empty {
			return nil
		}
		if s.used == 0 {
			return err
		}
	}
}

func (s *scanner) SkipWhiteSpace() error {
	isComment := false
	return s.ScanBytes(func(c byte) bool {
		if isComment {
			if c == '\r' || c == '\n' {
				isComment = false
			}
		} else if c == '%' {
			isComment = true
		} else {
			return isSpace[c]
		}
		return true
	})
}

func (s *scanner) SkipString(pat string) error {
	patBytes := []byte(pat)
	n := len(patBytes)
	buf, err := s.Peek(n)
	if err != nil {
		return err
	}
	if !bytes.Equal(buf, patBytes) {
		return &MalformedFileError{
			Pos: s.filePos(),
			Err: fmt.Errorf("expected %q but found %q", pat, string(buf)),
		}
	}
	s.pos += n
	return nil
}

func (s *scanner) SkipAfter(pat string) error {
	patBytes := []byte(pat)
	n := len(patBytes)
	if n > scannerBufSize {
		panic("SkipAfter target too large")
	}

	for {
		idx := bytes.Index(s.buf[s.pos:s.used], patBytes)
		if idx >= 0 {
			s.pos += idx + n
			return nil
		}
		s.pos = s.used
		err := s.refill()
		if err != nil {
			return err
		}
		if s.used == 0 {
			return io.EOF
		}
	}
}

var (
	isSpace = map[byte]bool{
		0:  true,
		9:  true,
		10: true,
		12: true,
		13: true,
		32: true,
	}
	isDelimiter = map[byte]bool{
		'(': true,
		')': true,
		'<': true,
		'>': true,
		'[': true,
		']': true,
		'{': true,
		'}': true,
		'/': true,
		'%': true,
	}
)
