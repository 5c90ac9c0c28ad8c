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

	"golang.org/x/exp/maps"
)

// Pages returns references to the page objects of the document, in
// display order.
func (d *Document) Pages() ([]Reference, error) {
	root, err := d.Root()
	if err != nil {
		return nil, err
	}

	var res []Reference
	seen := make(map[Reference]bool)

	var walk func(obj Object) error
	walk = func(obj Object) error {
		ref, isRef := obj.(Reference)
		if isRef {
			if seen[ref] {
				return &MalformedFileError{
					Err: errors.New("page tree contains a loop"),
				}
			}
			seen[ref] = true
		}

		node, err := GetDict(d, obj)
		if err != nil {
			return err
		}
		if node == nil {
			return nil
		}

		// Some files omit the /Type entry, so we also look at /Kids.
		if node["Type"] == Name("Pages") || node["Kids"] != nil {
			kids, err := GetArray(d, node["Kids"])
			if err != nil {
				return err
			}
			for _, kid := range kids {
				err = walk(kid)
				if err != nil {
					return err
				}
			}
			return nil
		}

		if !isRef {
			return &MalformedFileError{
				Err: errors.New("page object is not indirect"),
			}
		}
		res = append(res, ref)
		return nil
	}

	err = walk(root["Pages"])
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AddPage inserts a page into the page tree, either at the front or at
// the back.  The page can be given as a dictionary, or as a reference
// to a page object already stored in this document.  The /Parent entry
// and the /Count of the page tree root are updated.
//
// The returned reference refers to the inserted page.
func (d *Document) AddPage(page Object, front bool) (Reference, error) {
	var ref Reference
	var dict Dict
	switch x := page.(type) {
	case Reference:
		obj, err := GetDict(d, x)
		if err != nil {
			return 0, err
		}
		if obj == nil {
			return 0, &UnknownReferenceError{Ref: x}
		}
		ref = x
		dict = obj
	case Dict:
		dict = x
		ref = d.MakeIndirect(x)
	default:
		return 0, errors.New("page must be a dictionary or a reference")
	}

	root, err := d.Root()
	if err != nil {
		return 0, err
	}
	pagesRef, ok := root["Pages"].(Reference)
	if !ok {
		return 0, &MalformedFileError{
			Err: errors.New("catalog has no page tree"),
		}
	}
	pages, err := GetDict(d, pagesRef)
	if err != nil {
		return 0, err
	}
	if pages == nil {
		return 0, &MalformedFileError{
			Err: errors.New("page tree root not found"),
		}
	}

	kids, err := GetArray(d, pages["Kids"])
	if err != nil {
		return 0, err
	}
	if front {
		kids = append(Array{ref}, kids...)
	} else {
		kids = append(kids, ref)
	}
	pages["Kids"] = kids

	count, err := GetInt(d, pages["Count"])
	if err != nil {
		return 0, err
	}
	pages["Count"] = count + 1

	if dict["Type"] == nil {
		dict["Type"] = Name("Page")
	}
	dict["Parent"] = pagesRef

	return ref, nil
}

// ImportPage deep-copies a page, together with all objects it
// references, from another document and inserts it into the page tree.
func (d *Document) ImportPage(src *Document, pageRef Reference, front bool) (Reference, error) {
	pageDict, err := GetDict(src, pageRef)
	if err != nil {
		return 0, err
	}
	if pageDict == nil {
		return 0, &UnknownReferenceError{Ref: pageRef}
	}

	// Without this, the copy would drag in the whole source page tree.
	tmp := maps.Clone(pageDict)
	delete(tmp, "Parent")

	c := NewCopier(d, src)
	copied, err := c.CopyDict(tmp)
	if err != nil {
		return 0, err
	}
	return d.AddPage(copied, front)
}

// RemovePage removes a page from the page tree and deletes the page
// object.  The /Count entries along the /Parent chain are updated.
func (d *Document) RemovePage(ref Reference) error {
	page, err := GetDict(d, ref)
	if err != nil {
		return err
	}
	if page == nil {
		return &UnknownReferenceError{Ref: ref}
	}

	parentRef, ok := page["Parent"].(Reference)
	if !ok {
		return &MalformedFileError{
			Err: errors.New("page has no /Parent entry"),
		}
	}
	parent, err := GetDict(d, parentRef)
	if err != nil {
		return err
	}
	kids, err := GetArray(d, parent["Kids"])
	if err != nil {
		return err
	}
	pos := -1
	for i, kid := range kids {
		if kid == ref {
			pos = i
			break
		}
	}
	if pos < 0 {
		return &MalformedFileError{
			Err: errors.New("page not found in parent /Kids"),
		}
	}
	parent["Kids"] = append(kids[:pos], kids[pos+1:]...)

	seen := make(map[Reference]bool)
	for nodeRef := parentRef; ; {
		if seen[nodeRef] {
			return &MalformedFileError{
				Err: errors.New("page tree contains a loop"),
			}
		}
		seen[nodeRef] = true

		node, err := GetDict(d, nodeRef)
		if err != nil {
			return err
		}
		count, err := GetInt(d, node["Count"])
		if err != nil {
			return err
		}
		node["Count"] = count - 1

		next, ok := node["Parent"].(Reference)
		if !ok {
			break
		}
		nodeRef = next
	}

	return d.Remove(ref)
}
