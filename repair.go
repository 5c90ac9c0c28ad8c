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
	"io"
	"strconv"
)

// repairXRef rebuilds the cross-reference information of a damaged file
// by scanning the whole file for indirect object definitions of the
// form "number generation obj".  When an object number occurs more than
// once, the definition which comes later in the file wins, since
// incremental updates append newer revisions at the end.
//
// The trailer dictionary is recovered from the last parseable "trailer"
// keyword, or, failing that, from the newest cross-reference stream
// found during the scan.
func (r *Reader) repairXRef() (map[uint32]*xRefEntry, Dict, error) {
	body := make([]byte, r.size)
	_, err := r.r.ReadAt(body, 0)
	if err != nil && err != io.EOF {
		return nil, nil, err
	}

	xref := scanObjects(body)
	if len(xref) == 0 {
		return nil, nil, &MalformedFileError{
			Err: errors.New("no indirect objects found"),
		}
	}

	// The scanner needs the table to resolve indirect /Length values.
	r.xref = xref

	trailer := r.recoverTrailer(body)

	r.expandObjectStreams(xref)

	if trailer == nil {
		return nil, nil, &MalformedFileError{
			Err: errors.New("could not recover the trailer dictionary"),
		}
	}
	return xref, trailer, nil
}

// scanObjects finds all "number generation obj" headers in body.
// The returned positions point at the first digit of the object number.
func scanObjects(body []byte) map[uint32]*xRefEntry {
	xref := make(map[uint32]*xRefEntry)
	for i := 0; i+3 <= len(body); i++ {
		if body[i] != 'o' || body[i+1] != 'b' || body[i+2] != 'j' {
			continue
		}
		if i+3 < len(body) && !isSpace[body[i+3]] && !isDelimiter[body[i+3]] {
			continue
		}

		j := i
		for j > 0 && isSpace[body[j-1]] {
			j--
		}
		genEnd := j
		for j > 0 && isDigit(body[j-1]) {
			j--
		}
		genStart := j
		if genStart == genEnd || genEnd == i {
			continue
		}
		for j > 0 && isSpace[body[j-1]] {
			j--
		}
		numEnd := j
		if numEnd == genStart {
			continue
		}
		for j > 0 && isDigit(body[j-1]) {
			j--
		}
		numStart := j
		if numStart == numEnd {
			continue
		}
		if numStart > 0 && !isSpace[body[numStart-1]] && !isDelimiter[body[numStart-1]] {
			continue
		}

		num, err1 := strconv.ParseUint(string(body[numStart:numEnd]), 10, 64)
		gen, err2 := strconv.ParseUint(string(body[genStart:genEnd]), 10, 64)
		if err1 != nil || err2 != nil || num == 0 || num > 0xFFFF_FFFF || gen > 0xFFFF {
			continue
		}

		xref[uint32(num)] = &xRefEntry{
			Pos:        int64(numStart),
			Generation: uint16(gen),
		}
	}
	return xref
}

func (r *Reader) recoverTrailer(body []byte) Dict {
	// Try the "trailer" keywords first, newest (last) one wins.
	pat := []byte("trailer")
	end := len(body)
	for end > 0 {
		idx := bytes.LastIndex(body[:end], pat)
		if idx < 0 {
			break
		}
		end = idx

		s := r.scannerAt(int64(idx + len(pat)))
		err := s.SkipWhiteSpace()
		if err != nil {
			continue
		}
		dict, err := s.ReadDict()
		if err != nil || dict["Root"] == nil {
			continue
		}
		delete(dict, "Prev")
		delete(dict, "XRefStm")
		return dict
	}

	// Fall back to the newest cross-reference stream.
	var trailer Dict
	var bestPos int64 = -1
	for _, entry := range r.xref {
		if entry.IsFree() || entry.InStream != 0 || entry.Pos <= bestPos {
			continue
		}
		s := r.scannerAt(entry.Pos)
		obj, _, err := s.ReadIndirectObject()
		if err != nil {
			continue
		}
		stream, ok := obj.(*Stream)
		if !ok || stream.Dict["Type"] != Name("XRef") || stream.Dict["Root"] == nil {
			continue
		}

		dict := Dict{}
		for key, val := range stream.Dict {
			switch key {
			case "Type", "Size", "Index", "W", "Filter", "DecodeParms",
				"Length", "Prev", "XRefStm":
				// xref bookkeeping, not part of the document
			default:
				dict[key] = val
			}
		}
		trailer = dict
		bestPos = entry.Pos
	}
	return trailer
}

// expandObjectStreams adds entries for objects which are only reachable
// through object streams.  Objects found directly in the file take
// precedence over compressed ones.
func (r *Reader) expandObjectStreams(xref map[uint32]*xRefEntry) {
	var stmRefs []Reference
	for num, entry := range xref {
		if entry.IsFree() || entry.InStream != 0 {
			continue
		}
		s := r.scannerAt(entry.Pos)
		obj, _, err := s.ReadIndirectObject()
		if err != nil {
			continue
		}
		if stream, ok := obj.(*Stream); ok && stream.Dict["Type"] == Name("ObjStm") {
			stmRefs = append(stmRefs, NewReference(num, entry.Generation))
		}
	}

	for _, sRef := range stmRefs {
		contents, err := r.objStmScanner(sRef)
		if err != nil {
			r.warning("damaged object stream " + format(sRef) + " ignored")
			continue
		}
		for i, info := range contents.idx {
			if xref[info.number] == nil {
				xref[info.number] = &xRefEntry{
					InStream: sRef,
					Pos:      int64(i),
				}
			}
		}
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
