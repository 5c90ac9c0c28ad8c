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
	"strconv"
)

var (
	errVersion         = errors.New("unsupported PDF version")
	errCorrupted       = errors.New("corrupted ciphertext")
	errInvalidPassword = errors.New("invalid password")
	errNoDate          = errors.New("not a valid date string")
	errDuplicateRef    = errors.New("object number already in use")
)

// MalformedFileError indicates that the PDF file could not be parsed.
// Pos, where positive, is the byte offset in the file where the damage
// was detected.
type MalformedFileError struct {
	Pos int64
	Err error
}

func (err *MalformedFileError) Error() string {
	middle := ""
	if err.Err != nil {
		middle = ": " + err.Err.Error()
	}
	tail := ""
	if err.Pos > 0 {
		tail = " (at byte " + strconv.FormatInt(err.Pos, 10) + ")"
	}
	return "not a valid PDF file" + middle + tail
}

func (err *MalformedFileError) Unwrap() error {
	return err.Err
}

// AuthenticationError indicates that authentication against an encrypted
// PDF file failed, either because no password was supplied or because
// all supplied passwords were rejected.  ID is the first element of the
// file identifier of the document in question.
type AuthenticationError struct {
	ID []byte
}

func (err *AuthenticationError) Error() string {
	return "authentication failed"
}

// UnknownReferenceError indicates an operation on an indirect object
// which is not present in the document's cross-reference information.
type UnknownReferenceError struct {
	Ref Reference
}

func (err *UnknownReferenceError) Error() string {
	return "unknown object " + err.Ref.String()
}

func wrap(err error, desc string) error {
	return fmt.Errorf("%s: %w", desc, err)
}
