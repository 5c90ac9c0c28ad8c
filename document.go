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
	"crypto/md5"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"sort"

	"golang.org/x/exp/maps"
)

// randReader is a variable so that tests can make /ID generation
// deterministic.
var randReader io.Reader = rand.Reader

// Document is a mutable, in-memory representation of a PDF file.
//
// Objects are loaded lazily: reading an indirect object for the first
// time parses (and, if needed, decrypts) it and stores the result in a
// cache.  All modifications happen in memory and only become visible in
// a file after a call to [Document.Save] or [Document.Write].
//
// A Document must only be used from one goroutine at a time.
type Document struct {
	r *Reader

	objects map[Reference]Object
	freed   map[uint32]uint16
	maxNum  uint32

	trailer  Dict
	version  Version
	filename string

	warnings []string
}

// New creates an empty document, pre-seeded with a minimal catalog and
// an empty page tree.
func New() *Document {
	doc := &Document{
		objects: map[Reference]Object{},
		freed:   map[uint32]uint16{},
		trailer: Dict{},
		version: V1_7,
	}
	pagesRef := doc.Alloc()
	doc.objects[pagesRef] = Dict{
		"Type":  Name("Pages"),
		"Kids":  Array{},
		"Count": Integer(0),
	}
	rootRef := doc.Alloc()
	doc.objects[rootRef] = Dict{
		"Type":  Name("Catalog"),
		"Pages": pagesRef,
	}
	doc.trailer["Root"] = rootRef
	return doc
}

// Open reads the named PDF file into a new document.  The file stays
// open, since objects are loaded lazily; call [Document.Close] when the
// document is no longer needed.
func Open(fname string, opt *OpenOptions) (*Document, error) {
	r, err := NewReaderFile(fname, opt)
	if err != nil {
		return nil, err
	}
	doc := newDocument(r)
	doc.filename = fname
	return doc, nil
}

// OpenBytes reads a PDF document from a byte slice.  The data is copied
// once, so the caller may modify data after OpenBytes returns.
func OpenBytes(data []byte, opt *OpenOptions) (*Document, error) {
	buf := bytes.Clone(data)
	r, err := NewReader(bytes.NewReader(buf), int64(len(buf)), opt)
	if err != nil {
		return nil, err
	}
	return newDocument(r), nil
}

func newDocument(r *Reader) *Document {
	doc := &Document{
		r:       r,
		objects: map[Reference]Object{},
		freed:   map[uint32]uint16{},
		trailer: maps.Clone(r.trailer),
		version: r.Version,
	}
	for num := range r.xref {
		if num > doc.maxNum {
			doc.maxNum = num
		}
	}
	return doc
}

// Close releases the file underlying the document, if any.  Objects
// already loaded stay accessible.
func (d *Document) Close() error {
	if d.r != nil {
		return d.r.Close()
	}
	return nil
}

// Get reads an indirect object from the document.  Dangling references
// resolve to nil, without an error.
func (d *Document) Get(ref Reference) (Object, error) {
	if _, isFreed := d.freed[ref.Number()]; isFreed {
		return nil, nil
	}
	if obj, ok := d.objects[ref]; ok {
		rewindStream(obj)
		return obj, nil
	}
	if d.r == nil {
		return nil, nil
	}

	obj, err := d.r.Get(ref)
	if err != nil {
		return nil, err
	}
	if stream, ok := obj.(*Stream); ok {
		// Pull the (already decrypted) payload into memory, so that the
		// cached object can be read more than once.
		data, err := io.ReadAll(stream.R)
		if err != nil {
			return nil, err
		}
		stream.Dict["Length"] = Integer(len(data))
		stream.R = bytes.NewReader(data)
	}
	if obj != nil {
		d.objects[ref] = obj
	}
	return obj, nil
}

// GetByID reads the indirect object with the given object and
// generation number.
func (d *Document) GetByID(number uint32, generation uint16) (Object, error) {
	return d.Get(NewReference(number, generation))
}

// Known reports whether the document has an object for the given
// reference.
func (d *Document) Known(ref Reference) bool {
	if _, isFreed := d.freed[ref.Number()]; isFreed {
		return false
	}
	if _, ok := d.objects[ref]; ok {
		return true
	}
	if d.r == nil {
		return false
	}
	entry := d.r.xref[ref.Number()]
	return !entry.IsFree() && entry.Generation == ref.Generation()
}

// Alloc allocates an unused object number for a new indirect object.
func (d *Document) Alloc() Reference {
	d.maxNum++
	return NewReference(d.maxNum, 0)
}

// MakeIndirect stores obj as a new indirect object and returns a
// reference to it.
func (d *Document) MakeIndirect(obj Object) Reference {
	ref := d.Alloc()
	d.objects[ref] = obj
	return ref
}

// Replace substitutes the object with the given object number.  The
// object must already exist in the document, with a generation number
// not larger than the given one.
func (d *Document) Replace(number uint32, generation uint16, obj Object) error {
	cur, ok := d.currentRef(number)
	if !ok || cur.Generation() > generation {
		return &UnknownReferenceError{Ref: NewReference(number, generation)}
	}
	d.objects[cur] = obj
	return nil
}

// currentRef returns the reference under which the object with the given
// number is stored.
func (d *Document) currentRef(number uint32) (Reference, bool) {
	if _, isFreed := d.freed[number]; isFreed {
		return 0, false
	}
	ref := NewReference(number, 0)
	if _, ok := d.objects[ref]; ok {
		return ref, true
	}
	if d.r != nil {
		entry := d.r.xref[number]
		if !entry.IsFree() {
			return NewReference(number, entry.Generation), true
		}
	}
	return 0, false
}

// Remove deletes an indirect object from the document.  The object
// number becomes free, and its generation number is bumped so that
// stale references cannot resolve to a future object.
func (d *Document) Remove(ref Reference) error {
	if !d.Known(ref) {
		return &UnknownReferenceError{Ref: ref}
	}
	delete(d.objects, ref)
	d.freed[ref.Number()] = ref.Generation() + 1
	return nil
}

// Trailer returns the trailer dictionary of the document.  The /Size,
// /Prev and /Encrypt entries are managed by the library and are ignored
// on save.
func (d *Document) Trailer() Dict {
	return d.trailer
}

// Root returns the document catalog dictionary.
func (d *Document) Root() (Dict, error) {
	return GetDict(d, d.trailer["Root"])
}

// Catalog decodes the document catalog into a [Catalog] struct.
func (d *Document) Catalog() (*Catalog, error) {
	root, err := d.Root()
	if err != nil {
		return nil, err
	}
	catalog := &Catalog{}
	err = DecodeDict(d, catalog, root)
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// Info decodes the document information dictionary.  If the document
// has no /Info entry, nil is returned.
func (d *Document) Info() (*Info, error) {
	dict, err := GetDict(d, d.trailer["Info"])
	if err != nil {
		return nil, err
	}
	if dict == nil {
		return nil, nil
	}
	info := &Info{}
	err = DecodeDict(d, info, dict)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// PDFVersion returns the PDF version of the document.  For documents
// read from a file this is the maximum of the header version and the
// catalog /Version entry.
func (d *Document) PDFVersion() Version {
	return d.version
}

// ExtensionLevel returns the Adobe extension level declared in the
// document catalog, or 0.
func (d *Document) ExtensionLevel() int {
	root, err := d.Root()
	if err != nil {
		return 0
	}
	ext, err := GetDict(d, root["Extensions"])
	if err != nil || ext == nil {
		return 0
	}
	adbe, err := GetDict(d, ext["ADBE"])
	if err != nil || adbe == nil {
		return 0
	}
	level, err := GetInt(d, adbe["ExtensionLevel"])
	if err != nil {
		return 0
	}
	return int(level)
}

// IsEncrypted reports whether the file the document was read from uses
// PDF encryption.
func (d *Document) IsEncrypted() bool {
	return d.r != nil && d.r.IsEncrypted()
}

// AuthenticateOwner tries to authenticate the document owner, see
// [Reader.AuthenticateOwner].
func (d *Document) AuthenticateOwner() error {
	if d.r == nil {
		return nil
	}
	return d.r.AuthenticateOwner()
}

// Filename returns the name of the file the document was read from, or
// "" for documents created in memory.
func (d *Document) Filename() string {
	return d.filename
}

// Warnings returns all recorded warnings and clears the warning list.
func (d *Document) Warnings() []string {
	var res []string
	if d.r != nil {
		res = append(res, d.r.Warnings()...)
	}
	res = append(res, d.warnings...)
	d.warnings = nil
	return res
}

func (d *Document) warning(msg string) {
	if d.r != nil {
		d.r.warning(msg)
		return
	}
	d.warnings = append(d.warnings, msg)
}

// DumpXRef writes a human-readable listing of the cross-reference table
// to w.  This is meant for debugging.
func (d *Document) DumpXRef(w io.Writer) error {
	if d.r == nil {
		return nil
	}
	nums := maps.Keys(d.r.xref)
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	for _, num := range nums {
		entry := d.r.xref[num]
		var err error
		switch {
		case entry.IsFree():
			_, err = fmt.Fprintf(w, "%d/%d: free\n", num, entry.Generation)
		case entry.InStream != 0:
			_, err = fmt.Fprintf(w, "%d/0: compressed; object stream %d, index %d\n",
				num, entry.InStream.Number(), entry.Pos)
		default:
			_, err = fmt.Fprintf(w, "%d/%d: offset %d\n",
				num, entry.Generation, entry.Pos)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// StreamMode controls how stream data is treated on save.
type StreamMode int

const (
	// StreamModePreserve keeps stream data exactly as it is stored.
	StreamModePreserve StreamMode = iota

	// StreamModeCompress applies the FlateDecode filter to streams
	// which are stored without a filter.
	StreamModeCompress

	// StreamModeUncompress removes all supported filters from streams.
	// Streams with unsupported filters are preserved unchanged.
	StreamModeUncompress
)

// SaveOptions controls the output of [Document.Save] and
// [Document.Write].
type SaveOptions struct {
	// Version overrides the PDF version of the output file.  The zero
	// value keeps the document's version.
	Version Version

	// StaticID derives the file identifier deterministically from the
	// document contents, instead of generating a random one.
	StaticID bool

	// StreamMode controls re-compression of stream data.
	StreamMode StreamMode

	// ClassicXRef forces a classic cross-reference table.
	ClassicXRef bool

	// UserPassword and OwnerPassword enable encryption of the output.
	UserPassword  string
	OwnerPassword string

	// Permissions are the operations permitted with user access when
	// the output is encrypted.  The zero value grants all permissions.
	Permissions Perm

	// PreservePDFA arranges for the Repair hook to be called after a
	// successful save, so that PDF/A metadata invalidated by
	// restructuring can be restored.
	PreservePDFA bool

	// Repair is called with the name of the written file when
	// PreservePDFA is set.
	Repair func(filename string) error
}

// Save writes the document to the named file.
func (d *Document) Save(fname string, opt *SaveOptions) error {
	fd, err := os.Create(fname)
	if err != nil {
		return err
	}
	err = d.Write(fd, opt)
	if err != nil {
		fd.Close()
		return err
	}
	err = fd.Close()
	if err != nil {
		return err
	}

	if opt != nil && opt.PreservePDFA && opt.Repair != nil {
		return opt.Repair(fname)
	}
	return nil
}

// Write writes the document to w as a complete PDF file.
func (d *Document) Write(w io.Writer, opt *SaveOptions) error {
	if opt == nil {
		opt = &SaveOptions{}
	}
	version := opt.Version
	if version == 0 {
		version = d.version
	}

	err := d.loadAll()
	if err != nil {
		return err
	}

	refs := d.writeOrder()

	if opt.StreamMode != StreamModePreserve {
		for _, ref := range refs {
			stream, ok := d.objects[ref].(*Stream)
			if !ok {
				continue
			}
			d.objects[ref] = d.convertStream(stream, opt.StreamMode)
		}
	}

	var id [][]byte
	if opt.StaticID {
		id = d.contentDigest(version, refs)
	} else {
		first := make([]byte, 16)
		if d.r != nil && len(d.r.ID) == 2 {
			// by convention, the first half of /ID survives rewrites
			first = d.r.ID[0]
		} else {
			err := fillRandom(first)
			if err != nil {
				return err
			}
		}
		second := make([]byte, 16)
		err := fillRandom(second)
		if err != nil {
			return err
		}
		id = [][]byte{first, second}
	}

	pdf, err := NewWriter(w, &WriterOptions{
		Version:       version,
		ID:            id,
		ClassicXRef:   opt.ClassicXRef,
		UserPassword:  opt.UserPassword,
		OwnerPassword: opt.OwnerPassword,
		Permissions:   opt.Permissions,
	})
	if err != nil {
		return err
	}

	for _, ref := range refs {
		obj := d.objects[ref]
		rewindStream(obj)
		err = pdf.Put(ref, obj)
		if err != nil {
			return err
		}
	}

	return pdf.Close(maps.Clone(d.trailer))
}

// loadAll pulls every object listed in the cross-reference table into
// the cache.  Objects which cannot be parsed are skipped with a
// warning.
func (d *Document) loadAll() error {
	if d.r == nil {
		return nil
	}

	isContainer := make(map[Reference]bool)
	for _, entry := range d.r.xref {
		if entry != nil && entry.InStream != 0 {
			isContainer[entry.InStream] = true
		}
	}

	for num, entry := range d.r.xref {
		if entry.IsFree() {
			continue
		}
		if _, isFreed := d.freed[num]; isFreed {
			continue
		}
		ref := NewReference(num, entry.Generation)
		if isContainer[ref] {
			// object streams are unpacked, not copied
			continue
		}
		_, err := d.Get(ref)
		if err != nil {
			if _, ok := err.(*MalformedFileError); ok {
				d.warning("skipping damaged object " + format(ref))
				continue
			}
			return err
		}
	}
	return nil
}

// writeOrder returns the references of all objects to be written, in
// ascending order of object number.  Stale cross-reference and object
// streams are excluded.
func (d *Document) writeOrder() []Reference {
	refs := maps.Keys(d.objects)
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Number() < refs[j].Number()
	})

	res := refs[:0]
	for _, ref := range refs {
		if stream, ok := d.objects[ref].(*Stream); ok {
			tp := stream.Dict["Type"]
			if tp == Name("XRef") || tp == Name("ObjStm") {
				continue
			}
		}
		res = append(res, ref)
	}
	return res
}

func (d *Document) convertStream(stream *Stream, mode StreamMode) *Stream {
	switch mode {
	case StreamModeCompress:
		if stream.Dict["Filter"] != nil {
			return stream
		}
		rewindStream(stream)
		data, err := io.ReadAll(stream.R)
		if err != nil {
			d.warning("cannot read stream data: " + err.Error())
			return stream
		}
		body, err := flateCompress(data)
		if err != nil || len(body) >= len(data) {
			stream.R = bytes.NewReader(data)
			return stream
		}
		dict := maps.Clone(stream.Dict)
		dict["Filter"] = Name("FlateDecode")
		dict["Length"] = Integer(len(body))
		return &Stream{Dict: dict, R: bytes.NewReader(body)}

	case StreamModeUncompress:
		if stream.Dict["Filter"] == nil {
			return stream
		}
		rewindStream(stream)
		decoded, err := DecodeStream(d, stream)
		if err == nil {
			var data []byte
			data, err = io.ReadAll(decoded)
			if err == nil {
				dict := maps.Clone(stream.Dict)
				delete(dict, "Filter")
				delete(dict, "DecodeParms")
				dict["Length"] = Integer(len(data))
				return &Stream{Dict: dict, R: bytes.NewReader(data)}
			}
		}
		d.warning("cannot uncompress stream: " + err.Error())
		rewindStream(stream)
		return stream
	}
	return stream
}

// contentDigest computes a deterministic file identifier from the
// serialized objects.
func (d *Document) contentDigest(version Version, refs []Reference) [][]byte {
	h := md5.New()
	verString, _ := version.ToString()
	io.WriteString(h, verString)
	for _, ref := range refs {
		fmt.Fprintf(h, "\n%d %d\n", ref.Number(), ref.Generation())
		obj := d.objects[ref]
		if obj != nil {
			obj.PDF(h)
		}
		rewindStream(obj)
	}
	sum := h.Sum(nil)
	return [][]byte{sum, sum}
}

// rewindStream makes a cached stream readable again after its payload
// has been consumed.
func rewindStream(obj Object) {
	if stream, ok := obj.(*Stream); ok {
		if s, ok := stream.R.(io.Seeker); ok {
			s.Seek(0, io.SeekStart)
		}
	}
}

func fillRandom(buf []byte) error {
	_, err := io.ReadFull(randReader, buf)
	return err
}
