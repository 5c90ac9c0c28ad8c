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
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/exp/maps"
)

// WriterOptions controls the output of a [Writer].
type WriterOptions struct {
	// Version is the PDF version of the generated file.  The zero value
	// selects PDF 1.7.
	Version Version

	// ID, if non-nil, is used as the file identifier in the trailer.
	// The slice must have two elements.
	ID [][]byte

	// ClassicXRef forces a classic cross-reference table, even for
	// versions which allow cross-reference streams.
	ClassicXRef bool

	// UserPassword and OwnerPassword enable encryption.  The strongest
	// cipher allowed by the PDF version is used.
	UserPassword  string
	OwnerPassword string

	// Permissions are the operations permitted with user access.  This
	// is only used when the file is encrypted.  The zero value grants
	// all permissions.
	Permissions Perm
}

// Writer writes a PDF file object by object.  Objects must be added
// using [Writer.Put], and the file is completed by [Writer.Close].
type Writer struct {
	// Version is the PDF version of the file being written.
	Version Version

	w       *posWriter
	xref    map[uint32]*xRefEntry
	nextNum uint32
	id      [][]byte
	enc     *encryptInfo

	classicXRef bool
}

// NewWriter prepares a new PDF file, writing the header to w.
func NewWriter(w io.Writer, opt *WriterOptions) (*Writer, error) {
	if opt == nil {
		opt = &WriterOptions{}
	}
	version := opt.Version
	if version == 0 {
		version = V1_7
	}
	verString, err := version.ToString()
	if err != nil {
		return nil, err
	}

	pdf := &Writer{
		Version:     version,
		w:           &posWriter{w: w},
		xref:        map[uint32]*xRefEntry{},
		nextNum:     1,
		id:          opt.ID,
		classicXRef: opt.ClassicXRef || version < V1_5,
	}
	pdf.xref[0] = &xRefEntry{Pos: -1, Generation: 65535}

	if opt.UserPassword != "" || opt.OwnerPassword != "" {
		if len(pdf.id) != 2 {
			// The file encryption key depends on the first half of /ID.
			id := make([]byte, 16)
			_, err := rand.Read(id)
			if err != nil {
				return nil, err
			}
			pdf.id = [][]byte{id, id}
		}
		perm := opt.Permissions
		if perm == 0 {
			perm = PermAll
		}
		enc, err := newEncryptInfo(version, pdf.id[0],
			opt.UserPassword, opt.OwnerPassword, perm)
		if err != nil {
			return nil, err
		}
		pdf.enc = enc
		pdf.w.enc = enc
	}

	_, err = fmt.Fprintf(pdf.w, "%%PDF-%s\n%%\x80\x80\x80\x80\n", verString)
	if err != nil {
		return nil, err
	}

	return pdf, nil
}

// Alloc allocates an object number for an indirect object.
func (pdf *Writer) Alloc() Reference {
	res := NewReference(pdf.nextNum, 0)
	pdf.nextNum++
	return res
}

// Put writes an object to the PDF file as an indirect object.  A nil
// object marks the corresponding table entry as free.
//
// Each object number can only be written once.
func (pdf *Writer) Put(ref Reference, obj Object) error {
	if pdf.w == nil {
		return errors.New("writer is closed")
	}
	if _, seen := pdf.xref[ref.Number()]; seen {
		return wrap(errDuplicateRef, format(ref))
	}
	if ref.Number() >= pdf.nextNum {
		pdf.nextNum = ref.Number() + 1
	}
	return pdf.writeIndirectAt(ref, obj)
}

// Close writes the cross-reference information and the trailer.  The
// given trailer dictionary must contain the /Root entry; /Size, /ID and
// /Encrypt are filled in by the writer.
//
// Close does not close the underlying io.Writer.
func (pdf *Writer) Close(trailer Dict) error {
	if pdf.w == nil {
		return errors.New("writer is closed")
	}

	xRefDict := Dict{}
	for key, val := range trailer {
		switch key {
		case "Size", "Prev", "XRefStm", "Encrypt", "ID",
			"Type", "Index", "W", "Filter", "DecodeParms", "Length":
			// managed by the writer
		default:
			xRefDict[key] = val
		}
	}
	if xRefDict["Root"] == nil {
		return errors.New("missing /Root")
	}
	if pdf.enc != nil {
		encDict, err := pdf.enc.AsDict(pdf.Version)
		if err != nil {
			return err
		}
		xRefDict["Encrypt"] = encDict
	}
	if len(pdf.id) == 2 {
		xRefDict["ID"] = Array{String(pdf.id[0]), String(pdf.id[1])}
	}
	xRefDict["Size"] = Integer(pdf.nextNum)

	xRefPos := pdf.w.pos
	var err error
	if pdf.classicXRef {
		err = pdf.writeXRefTable(xRefDict)
	} else {
		err = pdf.writeXRefStream(xRefDict)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(pdf.w, "\nstartxref\n%d\n%%%%EOF\n", xRefPos)
	if err != nil {
		return err
	}

	// make sure we don't accidentally write beyond the end of file
	pdf.w = nil

	return nil
}

func (pdf *Writer) writeIndirectAt(ref Reference, obj Object) error {
	if obj == nil {
		pdf.xref[ref.Number()] = &xRefEntry{Pos: -1, Generation: ref.Generation()}
		return nil
	}
	if stream, ok := obj.(*Stream); ok {
		return pdf.writeStreamAt(ref, stream)
	}

	pos := pdf.w.pos
	_, err := fmt.Fprintf(pdf.w, "%d %d obj\n", ref.Number(), ref.Generation())
	if err != nil {
		return err
	}
	pdf.w.ref = ref
	err = obj.PDF(pdf.w)
	pdf.w.ref = 0
	if err != nil {
		return err
	}
	_, err = pdf.w.Write([]byte("\nendobj\n"))
	if err != nil {
		return err
	}

	pdf.xref[ref.Number()] = &xRefEntry{Pos: pos, Generation: ref.Generation()}
	return nil
}

// writeStreamAt writes a stream object.  The stream payload is read in
// full, so that the /Length entry is always exact, even when the data
// is encrypted.
func (pdf *Writer) writeStreamAt(ref Reference, x *Stream) error {
	data, err := io.ReadAll(x.R)
	if err != nil {
		return err
	}

	isXRef := x.Dict["Type"] == Name("XRef")
	if pdf.enc != nil && !isXRef &&
		!(pdf.enc.sec.unencryptedMetaData && x.Dict["Type"] == Name("Metadata")) {
		data, err = pdf.enc.EncryptStreamData(ref, data)
		if err != nil {
			return err
		}
	}

	dict := maps.Clone(x.Dict)
	if dict == nil {
		dict = Dict{}
	}
	dict["Length"] = Integer(len(data))

	pos := pdf.w.pos
	_, err = fmt.Fprintf(pdf.w, "%d %d obj\n", ref.Number(), ref.Generation())
	if err != nil {
		return err
	}
	if !isXRef {
		// strings in the dictionary of a cross-reference stream are
		// stored unencrypted
		pdf.w.ref = ref
	}
	err = dict.PDF(pdf.w)
	pdf.w.ref = 0
	if err != nil {
		return err
	}
	_, err = pdf.w.Write([]byte("\nstream\n"))
	if err != nil {
		return err
	}
	_, err = pdf.w.Write(data)
	if err != nil {
		return err
	}
	_, err = pdf.w.Write([]byte("\nendstream\nendobj\n"))
	if err != nil {
		return err
	}

	pdf.xref[ref.Number()] = &xRefEntry{Pos: pos, Generation: ref.Generation()}
	return nil
}

type posWriter struct {
	w   io.Writer
	pos int64

	enc *encryptInfo
	ref Reference
}

func (w *posWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	return n, err
}
