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
	"errors"
	"fmt"
	"io"
	"os"
)

// OpenOptions controls how an existing PDF file is opened.
type OpenOptions struct {
	// Password is tried first when the file is encrypted.
	Password string

	// ReadPassword is called when the file is encrypted and Password (if
	// any) did not authenticate.  The function is called repeatedly, with
	// increasing values of try (starting at 0), until it returns the empty
	// string.
	ReadPassword func(ID []byte, try int) string

	// IgnoreXRefStreams makes the reader use only classic cross-reference
	// tables.  Files which use cross-reference streams exclusively cannot
	// be opened with this option.
	IgnoreXRefStreams bool

	// DisableRecovery turns off the full-file scan which normally repairs
	// files with a damaged cross-reference table.
	DisableRecovery bool

	// PrintWarnings copies warnings to stderr as they occur, in addition
	// to recording them.
	PrintWarnings bool
}

// Reader gives read access to the objects of a PDF file.
type Reader struct {
	// Version is the PDF version used in this file.
	Version Version

	// ID is the PDF file identifier from the trailer dictionary, or nil.
	ID [][]byte

	r    io.ReaderAt
	size int64

	xref    map[uint32]*xRefEntry
	trailer Dict

	enc    *encryptInfo
	encRef Reference

	ignoreXRefStreams bool
	printWarnings     bool

	// level guards against unbounded recursion when resolving stream
	// lengths.
	level int

	warnings []string

	closeFn func() error
}

// NewReader creates a new Reader for a PDF file of the given size.
//
// If the file is damaged, the reader tries to rebuild the
// cross-reference information by scanning the file; warnings describing
// the problems found are recorded and can be retrieved using
// [Reader.Warnings].
func NewReader(data io.ReaderAt, size int64, opt *OpenOptions) (*Reader, error) {
	if opt == nil {
		opt = &OpenOptions{}
	}

	r := &Reader{
		r:                 data,
		size:              size,
		ignoreXRefStreams: opt.IgnoreXRefStreams,
		printWarnings:     opt.PrintWarnings,
	}

	version, err := r.scannerAt(0).readHeaderVersion()
	if err != nil {
		r.warning("missing or damaged PDF header")
		version = V1_0
	}
	r.Version = version

	xref, trailer, err := r.readXRef()
	if err != nil {
		var malformed *MalformedFileError
		if opt.DisableRecovery || !errors.As(err, &malformed) {
			return nil, err
		}
		r.warning("damaged cross-reference table, rebuilding by scanning the file")
		xref, trailer, err = r.repairXRef()
		if err != nil {
			return nil, err
		}
	}
	r.xref = xref
	r.trailer = trailer

	if idObj, ok := trailer["ID"].(Array); ok && len(idObj) == 2 {
		var id [][]byte
		for _, obj := range idObj {
			s, ok := obj.(String)
			if !ok {
				id = nil
				break
			}
			id = append(id, []byte(s))
		}
		r.ID = id
	}

	if encObj, ok := trailer["Encrypt"]; ok {
		if ref, ok := encObj.(Reference); ok {
			r.encRef = ref
		}
		readPwd := makePwdFunc(opt)
		r.enc, err = r.parseEncryptDict(encObj, readPwd)
		if err != nil {
			return nil, err
		}
		// check that the password is correct
		_, err = r.enc.sec.GetKey(false)
		if err != nil {
			return nil, err
		}
	}

	// The document catalog can specify a version later than the one in
	// the header.
	if root, err := GetDict(r, trailer["Root"]); err == nil {
		if name, err := GetName(r, root["Version"]); err == nil && name != "" {
			if v, err := ParseVersion(string(name)); err == nil && v > r.Version {
				r.Version = v
			}
		}
	}

	return r, nil
}

// NewReaderFile opens the named PDF file for reading.  The returned
// Reader must be closed using [Reader.Close] when it is no longer
// needed.
func NewReaderFile(fname string, opt *OpenOptions) (*Reader, error) {
	fd, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	fi, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, err
	}
	r, err := NewReader(fd, fi.Size(), opt)
	if err != nil {
		fd.Close()
		return nil, err
	}
	r.closeFn = fd.Close
	return r, nil
}

// Close releases the file underlying the reader, if any.  Readers
// created with [NewReader] do not need to be closed.
func (r *Reader) Close() error {
	if r.closeFn != nil {
		err := r.closeFn()
		r.closeFn = nil
		return err
	}
	return nil
}

func makePwdFunc(opt *OpenOptions) func([]byte, int) string {
	if opt.Password == "" && opt.ReadPassword == nil {
		return nil
	}
	return func(id []byte, try int) string {
		if opt.Password != "" {
			if try == 0 {
				return opt.Password
			}
			try--
		}
		if opt.ReadPassword != nil {
			return opt.ReadPassword(id, try)
		}
		return ""
	}
}

// AuthenticateOwner tries to authenticate the owner of a document. If a
// password is required, this function calls the ReadPassword function
// specified in the [OpenOptions].  The return value is nil if the owner
// was authenticated (or if the document is not encrypted), and an
// object of type [*AuthenticationError] if the required password was
// not supplied.
func (r *Reader) AuthenticateOwner() error {
	if r.enc == nil {
		return nil
	}
	_, err := r.enc.sec.GetKey(true)
	return err
}

// IsEncrypted reports whether the file uses PDF encryption.
func (r *Reader) IsEncrypted() bool {
	return r.enc != nil
}

// Permissions returns the operations the user is allowed to perform on
// the document.  For unencrypted documents and after owner
// authentication this is [PermAll].
func (r *Reader) Permissions() Perm {
	if r.enc == nil || r.enc.sec.ownerAuthenticated {
		return PermAll
	}
	return r.enc.UserPermissions
}

// Get reads an indirect object from the PDF file.  If the object is not
// present, nil is returned without an error.
//
// Strings and streams in the returned object are decrypted as needed.
func (r *Reader) Get(ref Reference) (Object, error) {
	return r.doGet(ref, true)
}

func (r *Reader) doGet(ref Reference, canObjStm bool) (Object, error) {
	entry := r.xref[ref.Number()]
	if entry.IsFree() || entry.Generation != ref.Generation() {
		return nil, nil
	}

	if entry.InStream != 0 {
		if !canObjStm {
			return nil, &MalformedFileError{
				Err: errors.New("object streams inside object streams are not allowed"),
			}
		}
		return r.getFromObjectStream(ref.Number(), entry.InStream)
	}

	s := r.scannerAt(entry.Pos)
	obj, fileRef, err := s.ReadIndirectObject()
	if err != nil {
		return nil, err
	}
	if fileRef != ref {
		r.warning(fmt.Sprintf("object %s found in place of %s",
			format(fileRef), format(ref)))
		return nil, nil
	}

	if r.enc != nil && ref != r.encRef {
		obj, err = r.enc.decryptObject(obj, ref)
		if err != nil {
			return nil, err
		}
	}

	return obj, nil
}

type objStm struct {
	s     *scanner
	idx   []stmObj
	first int64
}

type stmObj struct {
	number uint32
	offs   int64
}

func (r *Reader) objStmScanner(sRef Reference) (*objStm, error) {
	container, err := r.doGet(sRef, false)
	if err != nil {
		return nil, err
	}
	stream, ok := container.(*Stream)
	if !ok {
		return nil, &MalformedFileError{
			Pos: r.errPos(sRef),
			Err: errors.New("wrong type for object stream"),
		}
	}

	N, err := GetInt(r, stream.Dict["N"])
	if err != nil {
		return nil, err
	}
	if N < 0 || N > 10_000_000 {
		return nil, &MalformedFileError{
			Pos: r.errPos(sRef),
			Err: errors.New("invalid /N for object stream"),
		}
	}
	first, err := GetInt(r, stream.Dict["First"])
	if err != nil {
		return nil, err
	}

	decoded, err := DecodeStream(r, stream)
	if err != nil {
		return nil, wrap(err, "decoding object stream")
	}

	s := newScanner(decoded, 0, r.safeGetInt, r.warning)
	idx := make([]stmObj, N)
	for i := range idx {
		number, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		offs, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		if number < 0 || number > 0xFFFF_FFFF || offs < 0 {
			return nil, &MalformedFileError{
				Pos: r.errPos(sRef),
				Err: errors.New("invalid object stream index"),
			}
		}
		idx[i] = stmObj{number: uint32(number), offs: int64(offs)}
	}

	return &objStm{s: s, idx: idx, first: int64(first)}, nil
}

func (r *Reader) getFromObjectStream(number uint32, sRef Reference) (Object, error) {
	contents, err := r.objStmScanner(sRef)
	if err != nil {
		return nil, err
	}

	found := -1
	for i, info := range contents.idx {
		if info.number == number {
			found = i
			break
		}
	}
	if found < 0 {
		return nil, &MalformedFileError{
			Pos: r.errPos(sRef),
			Err: fmt.Errorf("object %d not found in object stream", number),
		}
	}

	s := contents.s
	delta := contents.first + contents.idx[found].offs - s.bufPos()
	if delta < 0 {
		return nil, &MalformedFileError{
			Pos: r.errPos(sRef),
			Err: errors.New("invalid object stream offset"),
		}
	}
	err = s.Discard(delta)
	if err != nil {
		return nil, err
	}

	obj, err := s.ReadObject()
	if err != nil {
		return nil, err
	}
	// Strings in the object stream payload were decrypted together with
	// the stream, so no further decryption is needed here.
	return obj, nil
}

// safeGetInt resolves an integer, with a recursion limit so that a
// malicious file cannot send the reader into an infinite loop while
// resolving a stream /Length.
func (r *Reader) safeGetInt(obj Object) (Integer, error) {
	if _, isRef := obj.(Reference); isRef && r.level > 2 {
		return 0, &MalformedFileError{
			Err: errors.New("length references too deeply nested"),
		}
	}
	r.level++
	defer func() { r.level-- }()
	return GetInt(r, obj)
}

func (r *Reader) scannerAt(pos int64) *scanner {
	return newScanner(io.NewSectionReader(r.r, pos, r.size-pos), pos,
		r.safeGetInt, r.warning)
}

func (r *Reader) errPos(ref Reference) int64 {
	if r.xref == nil {
		return 0
	}
	entry := r.xref[ref.Number()]
	if entry.IsFree() || entry.InStream != 0 {
		return 0
	}
	return entry.Pos
}

func (r *Reader) warning(msg string) {
	if r.printWarnings {
		fmt.Fprintln(os.Stderr, "pdf:", msg)
	}
	r.warnings = append(r.warnings, msg)
}

// Warnings returns the problems found while reading the file so far and
// clears the warning list.  Reading objects lazily can add new warnings
// at any time.
func (r *Reader) Warnings() []string {
	w := r.warnings
	r.warnings = nil
	return w
}
