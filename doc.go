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

// Package pdf provides support for reading, editing and writing PDF files.
//
// A PDF file is a container for a collection of numbered objects.  The
// central type of this package is [Document], a mutable in-memory
// representation of such a collection:
//
//	doc, err := pdf.Open("in.pdf", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer doc.Close()
//
//	... read objects with doc.Get, modify the document with
//	... doc.MakeIndirect, doc.Replace, doc.Remove, doc.AddPage ...
//
//	err = doc.Save("out.pdf", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Damaged files are repaired on open where possible; problems found
// along the way are reported via [Document.Warnings].  Encrypted files
// (RC4, AES-128 and AES-256 with the standard security handler) are
// decrypted transparently when the password is supplied in the
// [OpenOptions].
//
// The following types implement the native PDF object types.  All of
// these implement the [Object] interface:
//
//	Array
//	Bool
//	Dict
//	Integer
//	Name
//	Real
//	Reference
//	*Stream
//	String
//
// The lower-level [Reader] and [Writer] types give sequential access to
// the objects of a file without building a document model.
package pdf
