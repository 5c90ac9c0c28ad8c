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
	"math/bits"
	"strconv"
)

// xRefEntry describes the location of one indirect object.
//
// For objects stored directly in the file, Pos is the byte offset of the
// object definition.  For objects stored inside an object stream, InStream
// is the reference of the containing stream and Pos is the index of the
// object within the stream.  Free entries have Pos == -1.
type xRefEntry struct {
	InStream   Reference
	Pos        int64
	Generation uint16
}

func (entry *xRefEntry) IsFree() bool {
	return entry == nil || entry.InStream == 0 && entry.Pos < 0
}

type xRefSubSection struct {
	Start, Size int64
}

func (r *Reader) findXRef() (int64, error) {
	pos, err := r.lastOccurence("startxref")
	if err != nil {
		return 0, err
	}
	s := r.scannerAt(pos + 9)

	xRefPos, err := s.ReadInteger()
	if err != nil {
		return 0, err
	}

	if xRefPos <= 0 || int64(xRefPos) >= r.size {
		return 0, &MalformedFileError{
			Pos: s.filePos(),
			Err: errors.New("invalid xref position"),
		}
	}

	return int64(xRefPos), nil
}

func (r *Reader) lastOccurence(pat string) (int64, error) {
	const chunkSize = 1024

	buf := make([]byte, chunkSize)
	k := int64(len(pat))
	pos := r.size
	for pos >= k {
		start := pos - chunkSize
		if start < 0 {
			start = 0
		}
		n, err := r.r.ReadAt(buf[:pos-start], start)
		if err != nil && err != io.EOF {
			return 0, err
		}

		idx := bytes.LastIndex(buf[:n], []byte(pat))
		if idx >= 0 {
			return start + int64(idx), nil
		}

		pos = start + k - 1
	}
	return 0, &MalformedFileError{
		Err: errors.New(pat + " not found"),
	}
}

// readXRef reads the complete cross-reference information of the file,
// following the chain of /Prev entries from the newest to the oldest
// revision.  Within the resulting table, entries from newer revisions take
// precedence over entries from older ones.
func (r *Reader) readXRef() (map[uint32]*xRefEntry, Dict, error) {
	start, err := r.findXRef()
	if err != nil {
		return nil, nil, err
	}

	xref := make(map[uint32]*xRefEntry)
	var trailer Dict
	seen := make(map[int64]bool)
	for {
		// avoid xref loops
		if seen[start] {
			break
		}
		seen[start] = true

		s := r.scannerAt(start)

		buf, err := s.Peek(4)
		if err != nil {
			return nil, nil, err
		}
		var dict Dict
		if bytes.Equal(buf, []byte("xref")) {
			// In hybrid-reference files the entries of the xref stream
			// named by /XRefStm take precedence over the entries of the
			// classic table of the same revision.  Since the table comes
			// first in the file, we read it into a separate map and merge
			// it after the stream.
			sub := make(map[uint32]*xRefEntry)
			dict, err = readXRefTable(sub, s)
			if err != nil {
				return nil, nil, err
			}

			if xRefStm, ok := dict["XRefStm"]; ok && !r.ignoreXRefStreams {
				zStart, ok := xRefStm.(Integer)
				if !ok {
					return nil, nil, &MalformedFileError{
						Err: errors.New("wrong type for /XRefStm (expected Integer)"),
					}
				}
				_, err = readXRefStream(xref, r.scannerAt(int64(zStart)))
				if err != nil {
					return nil, nil, err
				}
			}

			for id, entry := range sub {
				if xref[id] == nil {
					xref[id] = entry
				}
			}
		} else {
			if r.ignoreXRefStreams {
				return nil, nil, &MalformedFileError{
					Pos: start,
					Err: errors.New("xref streams disabled"),
				}
			}
			dict, err = readXRefStream(xref, s)
			if err != nil {
				return nil, nil, err
			}
		}

		if trailer == nil {
			trailer = Dict{}
			for key, val := range dict {
				switch key {
				case "Type", "Size", "Index", "W", "Filter", "DecodeParms",
					"Length", "Prev", "XRefStm":
					// xref bookkeeping, not part of the document
				default:
					trailer[key] = val
				}
			}
		}

		prev := dict["Prev"]
		if prev == nil {
			break
		}
		prevStart, ok := prev.(Integer)
		if !ok || prevStart <= 0 || int64(prevStart) >= r.size {
			return nil, nil, &MalformedFileError{
				Pos: start,
				Err: fmt.Errorf("invalid /Prev value %s", format(prev)),
			}
		}
		start = int64(prevStart)
	}

	if trailer == nil {
		trailer = Dict{}
	}
	return xref, trailer, nil
}

func readXRefTable(xref map[uint32]*xRefEntry, s *scanner) (Dict, error) {
	err := s.SkipString("xref")
	if err != nil {
		return nil, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}

	for {
		buf, err := s.Peek(1)
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 || buf[0] < '0' || buf[0] > '9' {
			break
		}

		start, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		length, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}

		err = decodeXRefSection(xref, s, int64(start), int64(start+length))
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
	}

	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}
	err = s.SkipString("trailer")
	if err != nil {
		return nil, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}
	return s.ReadDict()
}

func decodeXRefSection(xref map[uint32]*xRefEntry, s *scanner, start, end int64) error {
	for i := start; i < end; i++ {
		if i < 0 || i > 0xFFFF_FFFF {
			return &MalformedFileError{
				Pos: s.filePos(),
				Err: errors.New("invalid object number"),
			}
		}
		id := uint32(i)

		if xref[id] != nil {
			err := s.Discard(20)
			if err != nil {
				return err
			}
			continue
		}

		buf, err := s.Peek(20)
		if err != nil {
			return err
		}
		if len(buf) < 20 {
			return &MalformedFileError{
				Pos: s.filePos(),
				Err: io.ErrUnexpectedEOF,
			}
		}

		a, err := strconv.ParseInt(string(buf[:10]), 10, 64)
		if err != nil {
			return err
		}
		b, err := strconv.ParseUint(string(bytes.TrimSpace(buf[11:16])), 10, 16)
		if err != nil {
			// fix a common error in some PDF files
			if bytes.HasPrefix(buf, []byte("0000000000 65536 ")) {
				b = 65535
				buf[17] = 'f'
			} else {
				return err
			}
		}
		c := buf[17]
		switch c {
		case 'f':
			xref[id] = &xRefEntry{
				Pos:        -1,
				Generation: uint16(b),
			}
		case 'n':
			xref[id] = &xRefEntry{
				Pos:        a,
				Generation: uint16(b),
			}
		default:
			return &MalformedFileError{
				Pos: s.filePos(),
				Err: errors.New("malformed xref table"),
			}
		}

		s.pos += 20
	}
	return nil
}

func readXRefStream(xref map[uint32]*xRefEntry, s *scanner) (Dict, error) {
	obj, _, err := s.ReadIndirectObject()
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*Stream)
	if !ok {
		return nil, &MalformedFileError{
			Pos: s.filePos(),
			Err: errors.New("invalid xref stream"),
		}
	}
	dict := stream.Dict

	w, ss, err := checkXRefStreamDict(dict)
	if err != nil {
		return nil, err
	}
	decoded, err := DecodeStream(directGetter{}, stream)
	if err != nil {
		return nil, err
	}
	err = decodeXRefStream(xref, decoded, w, ss)
	if err != nil {
		return nil, err
	}

	return dict, nil
}

// directGetter resolves every reference to null.  It is used in contexts
// where the cross-reference information is not yet available.
type directGetter struct{}

func (directGetter) Get(Reference) (Object, error) {
	return nil, nil
}

func checkXRefStreamDict(dict Dict) ([]int, []*xRefSubSection, error) {
	size, ok := dict["Size"].(Integer)
	if !ok {
		return nil, nil, &MalformedFileError{
			Err: errors.New("xref stream with missing /Size"),
		}
	}
	W, ok := dict["W"].(Array)
	if !ok || len(W) < 3 {
		return nil, nil, &MalformedFileError{
			Err: errors.New("xref stream with invalid /W"),
		}
	}
	var w []int
	for i, Wi := range W {
		wi, ok := Wi.(Integer)
		if !ok || i < 3 && (wi < 0 || wi > 8) {
			return nil, nil, &MalformedFileError{
				Err: errors.New("xref stream with invalid /W"),
			}
		}
		w = append(w, int(wi))
	}

	Index := dict["Index"]
	var ss []*xRefSubSection
	if Index == nil {
		ss = append(ss, &xRefSubSection{0, int64(size)})
	} else {
		ind, ok := Index.(Array)
		if !ok || len(ind)%2 != 0 {
			return nil, nil, &MalformedFileError{
				Err: errors.New("xref stream with invalid /Index"),
			}
		}
		for i := 0; i < len(ind); i += 2 {
			start, ok1 := ind[i].(Integer)
			size, ok2 := ind[i+1].(Integer)
			if !ok1 || !ok2 {
				return nil, nil, &MalformedFileError{
					Err: errors.New("xref stream with invalid /Index"),
				}
			}
			ss = append(ss, &xRefSubSection{int64(start), int64(size)})
		}
	}
	return w, ss, nil
}

func decodeXRefStream(xref map[uint32]*xRefEntry, r io.Reader, w []int, ss []*xRefSubSection) error {
	wTotal := 0
	for _, wi := range w {
		wTotal += wi
	}
	buf := make([]byte, wTotal)

	w0 := w[0]
	w1 := w[1]
	w2 := w[2]
	for _, sec := range ss {
		for i := sec.Start; i < sec.Start+sec.Size; i++ {
			_, err := io.ReadFull(r, buf)
			if err != nil {
				return &MalformedFileError{Err: err}
			}

			if i < 0 || i > 0xFFFF_FFFF {
				return &MalformedFileError{
					Err: errors.New("invalid object number"),
				}
			}
			id := uint32(i)
			if xref[id] != nil {
				continue
			}

			tp := decodeInt(buf[:w0])
			if w0 == 0 {
				tp = 1
			}
			a := decodeInt(buf[w0 : w0+w1])
			b := decodeInt(buf[w0+w1 : w0+w1+w2])
			switch tp {
			case 0:
				// free/deleted object
				// a = next free object
				// b = generation number to be used if the object is resurrected
				xref[id] = &xRefEntry{
					Pos:        -1,
					Generation: uint16(b),
				}
			case 1:
				// used object, not compressed
				// a = byte offset of the object
				// b = generation number
				xref[id] = &xRefEntry{
					Pos:        a,
					Generation: uint16(b),
				}
			case 2:
				// used object, compressed
				// a = object number of the containing object stream
				// b = index within the stream
				xref[id] = &xRefEntry{
					Pos:      b,
					InStream: NewReference(uint32(a), 0),
				}
			}
		}
	}
	return nil
}

func decodeInt(buf []byte) (res int64) {
	for _, x := range buf {
		res = res<<8 | int64(x)
	}
	return res
}

func (pdf *Writer) writeXRefTable(xRefDict Dict) error {
	_, err := fmt.Fprintf(pdf.w, "xref\n0 %d\n", pdf.nextNum)
	if err != nil {
		return err
	}
	for i := uint32(0); i < pdf.nextNum; i++ {
		entry := pdf.xref[i]
		if entry != nil && entry.InStream != 0 {
			return errors.New("cannot store compressed objects in an xref table")
		}
		if entry != nil && entry.Pos >= 0 {
			_, err = fmt.Fprintf(pdf.w, "%010d %05d n\r\n",
				entry.Pos, entry.Generation)
		} else {
			// free object
			_, err = pdf.w.Write([]byte("0000000000 65535 f\r\n"))
		}
		if err != nil {
			return err
		}
	}

	_, err = pdf.w.Write([]byte("trailer\n"))
	if err != nil {
		return err
	}
	return xRefDict.PDF(pdf.w)
}

func (pdf *Writer) writeXRefStream(xRefDict Dict) error {
	ref := pdf.Alloc()
	pdf.xref[ref.Number()] = &xRefEntry{Pos: pdf.w.pos, Generation: 0}

	xRefDict["Type"] = Name("XRef")
	xRefDict["Size"] = Integer(pdf.nextNum)

	maxField2 := int64(0)
	maxField3 := uint16(0)
	for i := uint32(0); i < pdf.nextNum; i++ {
		entry := pdf.xref[i]
		if entry == nil {
			continue
		}
		var f2 int64
		var f3 uint16
		if entry.InStream != 0 {
			f2 = int64(entry.InStream.Number())
			f3 = uint16(entry.Pos)
		} else if entry.Pos >= 0 {
			f2 = entry.Pos
			f3 = entry.Generation
		} else {
			f2 = 0
			f3 = entry.Generation
		}
		if f2 > maxField2 {
			maxField2 = f2
		}
		if f3 > maxField3 {
			maxField3 = f3
		}
	}
	w2 := (bits.Len64(uint64(maxField2)) + 7) / 8
	if w2 == 0 {
		w2 = 1
	}
	w3 := (bits.Len16(maxField3) + 7) / 8
	xRefDict["W"] = Array{Integer(1), Integer(w2), Integer(w3)}

	data := &bytes.Buffer{}
	for i := uint32(0); i < pdf.nextNum; i++ {
		entry := pdf.xref[i]
		switch {
		case entry == nil:
			data.WriteByte(0)
			encodeInt64(data, 0, w2)
			encodeInt16(data, 65535, w3)
		case entry.InStream != 0:
			data.WriteByte(2)
			encodeInt64(data, uint64(entry.InStream.Number()), w2)
			encodeInt16(data, uint16(entry.Pos), w3)
		case entry.Pos >= 0:
			data.WriteByte(1)
			encodeInt64(data, uint64(entry.Pos), w2)
			encodeInt16(data, entry.Generation, w3)
		default:
			data.WriteByte(0)
			encodeInt64(data, 0, w2)
			encodeInt16(data, entry.Generation, w3)
		}
	}

	body, err := flateCompress(data.Bytes())
	if err != nil {
		return err
	}
	xRefDict["Filter"] = Name("FlateDecode")
	xRefDict["Length"] = Integer(len(body))

	xref := &Stream{Dict: xRefDict, R: bytes.NewReader(body)}
	return pdf.writeIndirectAt(ref, xref)
}

func encodeInt64(data *bytes.Buffer, x uint64, w int) {
	for i := w - 1; i >= 0; i-- {
		data.WriteByte(byte(x >> (i * 8)))
	}
}

func encodeInt16(data *bytes.Buffer, x uint16, w int) {
	for i := w - 1; i >= 0; i-- {
		data.WriteByte(byte(x >> (i * 8)))
	}
}
