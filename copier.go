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
)

// A Copier is used to copy objects from one PDF document to another.
// The Copier keeps track of the objects that have already been copied
// and ensures that each object is copied only once.
//
// Indirect objects are allocated in the target document as needed, and
// references are translated accordingly.
type Copier struct {
	trans map[Reference]Reference
	src   Getter
	dst   *Document
}

// NewCopier creates a new Copier which copies objects from src to dst.
func NewCopier(dst *Document, src Getter) *Copier {
	return &Copier{
		trans: make(map[Reference]Reference),
		src:   src,
		dst:   dst,
	}
}

// Copy copies an object from the source document to the target
// document, recursively.
//
// The returned object is guaranteed to be the same type as the input
// object.
func (c *Copier) Copy(obj Object) (Object, error) {
	switch x := obj.(type) {
	case Dict:
		return c.CopyDict(x)
	case Array:
		return c.CopyArray(x)
	case *Stream:
		return c.copyStream(x)
	case Reference:
		return c.CopyReference(x)
	default:
		return obj, nil
	}
}

// CopyDict copies a dictionary from the source document to the target
// document.
func (c *Copier) CopyDict(obj Dict) (Dict, error) {
	res := Dict{}
	for key, val := range obj {
		repl, err := c.Copy(val)
		if err != nil {
			return nil, err
		}
		res[key] = repl
	}
	return res, nil
}

// CopyArray copies an array from the source document to the target
// document.
func (c *Copier) CopyArray(obj Array) (Array, error) {
	var res Array
	for _, val := range obj {
		var repl Object
		if val != nil {
			var err error
			repl, err = c.Copy(val)
			if err != nil {
				return nil, err
			}
		}
		res = append(res, repl)
	}
	return res, nil
}

func (c *Copier) copyStream(obj *Stream) (*Stream, error) {
	dict, err := c.CopyDict(obj.Dict)
	if err != nil {
		return nil, err
	}
	rewindStream(obj)
	data, err := io.ReadAll(obj.R)
	if err != nil {
		return nil, err
	}
	rewindStream(obj)
	dict["Length"] = Integer(len(data))
	return &Stream{Dict: dict, R: bytes.NewReader(data)}, nil
}

// CopyReference copies the indirect object ref refers to, and returns a
// reference to the copy.
//
// This method shortens chains of indirect references, the returned
// reference always points to a direct object.
func (c *Copier) CopyReference(ref Reference) (Reference, error) {
	newRef, ok := c.trans[ref]
	if ok {
		return newRef, nil
	}
	newRef = c.dst.Alloc()
	c.trans[ref] = newRef

	val, err := Resolve(c.src, ref)
	if err != nil {
		return 0, err
	}
	repl, err := c.Copy(val)
	if err != nil {
		return 0, err
	}
	c.dst.objects[newRef] = repl

	return newRef, nil
}

// Redirect makes future copies translate origRef to newRef, instead of
// copying the referenced object.
func (c *Copier) Redirect(origRef, newRef Reference) {
	c.trans[origRef] = newRef
}
