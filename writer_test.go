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
	"testing"

	"github.com/google/go-cmp/cmp"
)

// writeTestFile writes a minimal PDF file and returns the contents,
// together with the references used for the catalog and a test stream.
func writeTestFile(t *testing.T, opt *WriterOptions) ([]byte, Reference, Reference) {
	t.Helper()

	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, opt)
	if err != nil {
		t.Fatal(err)
	}

	catRef := w.Alloc()
	pagesRef := w.Alloc()
	err = w.Put(pagesRef, Dict{
		"Type":  Name("Pages"),
		"Kids":  Array{},
		"Count": Integer(0),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Put(catRef, Dict{
		"Type":  Name("Catalog"),
		"Pages": pagesRef,
		"Note":  String("all quiet on the western front"),
	})
	if err != nil {
		t.Fatal(err)
	}

	streamRef := w.Alloc()
	err = w.Put(streamRef, &Stream{
		Dict: Dict{},
		R:    bytes.NewReader([]byte("BT /F1 12 Tf ET")),
	})
	if err != nil {
		t.Fatal(err)
	}

	err = w.Close(Dict{"Root": catRef})
	if err != nil {
		t.Fatal(err)
	}

	return buf.Bytes(), catRef, streamRef
}

func TestWriterRoundTrip(t *testing.T) {
	for _, classic := range []bool{true, false} {
		body, catRef, streamRef := writeTestFile(t, &WriterOptions{
			Version:     V1_7,
			ClassicXRef: classic,
		})

		r, err := NewReader(bytes.NewReader(body), int64(len(body)), nil)
		if err != nil {
			t.Fatal(err)
		}
		if r.Version != V1_7 {
			t.Errorf("classic=%t: wrong version %s", classic, r.Version)
		}
		if len(r.Warnings()) != 0 {
			t.Errorf("classic=%t: unexpected warnings", classic)
		}

		catalog, err := GetDict(r, catRef)
		if err != nil {
			t.Fatal(err)
		}
		expected := Dict{
			"Type":  Name("Catalog"),
			"Pages": NewReference(2, 0),
			"Note":  String("all quiet on the western front"),
		}
		if d := cmp.Diff(expected, catalog); d != "" {
			t.Errorf("classic=%t: wrong catalog (-want +got):\n%s", classic, d)
		}

		stream, err := GetStream(r, streamRef)
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(stream.R)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "BT /F1 12 Tf ET" {
			t.Errorf("classic=%t: wrong stream data %q", classic, data)
		}
		if stream.Dict["Length"] != Integer(len(data)) {
			t.Errorf("classic=%t: wrong stream length %s",
				classic, format(stream.Dict["Length"]))
		}
	}
}

func TestWriterVersionHeader(t *testing.T) {
	body, _, _ := writeTestFile(t, &WriterOptions{Version: V1_4})
	if !bytes.HasPrefix(body, []byte("%PDF-1.4\n")) {
		t.Errorf("wrong header %q", body[:16])
	}

	r, err := NewReader(bytes.NewReader(body), int64(len(body)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Version != V1_4 {
		t.Errorf("wrong version %s", r.Version)
	}
}

func TestWriterDuplicateRef(t *testing.T) {
	w, err := NewWriter(io.Discard, nil)
	if err != nil {
		t.Fatal(err)
	}
	ref := w.Alloc()
	err = w.Put(ref, Integer(1))
	if err != nil {
		t.Fatal(err)
	}
	err = w.Put(ref, Integer(2))
	if !errors.Is(err, errDuplicateRef) {
		t.Errorf("duplicate object not detected: %v", err)
	}
}

func TestWriterClosed(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	ref := w.Alloc()
	err = w.Put(ref, Dict{"Type": Name("Catalog")})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Close(Dict{"Root": ref})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Put(w.Alloc(), Integer(1)); err == nil {
		t.Error("write to closed writer not detected")
	}
	if err := w.Close(Dict{"Root": ref}); err == nil {
		t.Error("double close not detected")
	}
}

func TestWriterMissingRoot(t *testing.T) {
	w, err := NewWriter(io.Discard, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(Dict{}); err == nil {
		t.Error("missing /Root not detected")
	}
}

func TestWriterFreeObjects(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	catRef := w.Alloc()
	freeRef := w.Alloc()
	err = w.Put(catRef, Dict{"Type": Name("Catalog")})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Put(freeRef, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = w.Close(Dict{"Root": catRef})
	if err != nil {
		t.Fatal(err)
	}

	body := buf.Bytes()
	r, err := NewReader(bytes.NewReader(body), int64(len(body)), nil)
	if err != nil {
		t.Fatal(err)
	}
	obj, err := r.Get(freeRef)
	if err != nil || obj != nil {
		t.Errorf("free object: %s, %v", format(obj), err)
	}
}

func TestWriterEncryption(t *testing.T) {
	for _, version := range []Version{V1_2, V1_4, V1_6, V2_0} {
		body, catRef, streamRef := writeTestFile(t, &WriterOptions{
			Version:       version,
			UserPassword:  "secret",
			OwnerPassword: "supersecret",
			Permissions:   PermPrint | PermPrintDegraded | PermCopy,
		})

		// without the password the file cannot be opened
		_, err := NewReader(bytes.NewReader(body), int64(len(body)), nil)
		var authErr *AuthenticationError
		if !errors.As(err, &authErr) {
			t.Errorf("%s: expected AuthenticationError, got %v", version, err)
		}

		r, err := NewReader(bytes.NewReader(body), int64(len(body)), &OpenOptions{
			Password: "secret",
		})
		if err != nil {
			t.Fatal(err)
		}
		if !r.IsEncrypted() {
			t.Errorf("%s: encryption not detected", version)
		}

		catalog, err := GetDict(r, catRef)
		if err != nil {
			t.Fatal(err)
		}
		note, ok := catalog["Note"].(String)
		if !ok || !bytes.Equal(note, []byte("all quiet on the western front")) {
			t.Errorf("%s: wrong string %s", version, format(catalog["Note"]))
		}

		stream, err := GetStream(r, streamRef)
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(stream.R)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "BT /F1 12 Tf ET" {
			t.Errorf("%s: wrong stream data %q", version, data)
		}

		perm := r.Permissions()
		if perm != PermPrint|PermPrintDegraded|PermCopy {
			t.Errorf("%s: wrong permissions %b", version, perm)
		}
	}
}

func TestWriterEncryptionOwner(t *testing.T) {
	body, _, _ := writeTestFile(t, &WriterOptions{
		Version:       V1_7,
		UserPassword:  "secret",
		OwnerPassword: "supersecret",
		Permissions:   PermCopy,
	})

	r, err := NewReader(bytes.NewReader(body), int64(len(body)), &OpenOptions{
		Password: "supersecret",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.AuthenticateOwner(); err != nil {
		t.Fatal(err)
	}
	if r.Permissions() != PermAll {
		t.Errorf("wrong owner permissions %b", r.Permissions())
	}
}
