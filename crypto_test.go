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
)

func TestPermBits(t *testing.T) {
	// Only permission sets which respect the implications between the
	// individual bits survive a round trip through the P field.
	cases := []Perm{
		0,
		PermCopy,
		PermPrintDegraded,
		PermPrint | PermPrintDegraded,
		PermForms,
		PermAnnotate | PermForms,
		PermAssemble,
		PermModify | PermAssemble,
		PermAll,
	}
	for _, perm := range cases {
		P := stdSecPermToP(perm)
		if got := stdSecPToPerm(3, P); got != perm {
			t.Errorf("perm %b: got %b", perm, got)
		}
	}

	// the first two bits of P are reserved and must be zero
	if P := stdSecPermToP(PermAll); P&3 != 0 {
		t.Errorf("reserved bits set in P: %b", P)
	}
}

var cryptoVersions = []struct {
	version  Version
	keyBytes int
}{
	{V1_1, 5},
	{V1_4, 16},
	{V1_6, 16},
	{V2_0, 32},
}

func TestStdSecHandlerRoundTrip(t *testing.T) {
	id := []byte("0123456789ABCDEF")
	perm := PermPrint | PermPrintDegraded | PermCopy

	for _, c := range cryptoVersions {
		enc, err := newEncryptInfo(c.version, id, "secret", "supersecret", perm)
		if err != nil {
			t.Fatal(err)
		}
		dict, err := enc.AsDict(c.version)
		if err != nil {
			t.Fatal(err)
		}

		for _, passwd := range []string{"secret", "supersecret"} {
			readPwd := func(_ []byte, try int) string {
				if try == 0 {
					return passwd
				}
				return ""
			}
			sec, err := openStdSecHandler(dict, c.keyBytes, id, readPwd)
			if err != nil {
				t.Fatal(err)
			}
			key, err := sec.GetKey(false)
			if err != nil {
				t.Errorf("%s/%q: %s", c.version, passwd, err)
				continue
			}
			if !bytes.Equal(key, enc.sec.key) {
				t.Errorf("%s/%q: wrong key", c.version, passwd)
			}
		}
	}
}

func TestStdSecHandlerOwner(t *testing.T) {
	id := []byte("0123456789ABCDEF")

	for _, c := range cryptoVersions {
		enc, err := newEncryptInfo(c.version, id, "secret", "supersecret", PermAll)
		if err != nil {
			t.Fatal(err)
		}
		dict, err := enc.AsDict(c.version)
		if err != nil {
			t.Fatal(err)
		}

		readPwd := func(_ []byte, try int) string {
			if try == 0 {
				return "supersecret"
			}
			return ""
		}
		sec, err := openStdSecHandler(dict, c.keyBytes, id, readPwd)
		if err != nil {
			t.Fatal(err)
		}
		_, err = sec.GetKey(true)
		if err != nil {
			t.Errorf("%s: owner authentication failed: %s", c.version, err)
			continue
		}
		if !sec.ownerAuthenticated {
			t.Errorf("%s: owner not marked as authenticated", c.version)
		}
	}
}

func TestStdSecHandlerWrongPasswd(t *testing.T) {
	id := []byte("0123456789ABCDEF")

	for _, c := range cryptoVersions {
		enc, err := newEncryptInfo(c.version, id, "secret", "supersecret", PermAll)
		if err != nil {
			t.Fatal(err)
		}
		dict, err := enc.AsDict(c.version)
		if err != nil {
			t.Fatal(err)
		}

		tries := 0
		readPwd := func(_ []byte, _ int) string {
			tries++
			if tries <= 2 {
				return "wrong password"
			}
			return ""
		}
		sec, err := openStdSecHandler(dict, c.keyBytes, id, readPwd)
		if err != nil {
			t.Fatal(err)
		}
		_, err = sec.GetKey(false)
		var authErr *AuthenticationError
		if !errors.As(err, &authErr) {
			t.Errorf("%s: expected AuthenticationError, got %v", c.version, err)
		}
		if tries != 3 {
			t.Errorf("%s: expected 3 password prompts, got %d", c.version, tries)
		}
	}
}

func TestEncryptBytesRoundTrip(t *testing.T) {
	id := []byte("0123456789ABCDEF")
	msgs := []string{
		"",
		"x",
		"pssst, this is a secret message",
		"exactly 16 chars",
	}

	for _, c := range cryptoVersions {
		enc, err := newEncryptInfo(c.version, id, "secret", "", PermAll)
		if err != nil {
			t.Fatal(err)
		}
		ref := NewReference(7, 2)
		for _, msg := range msgs {
			ciphertext, err := enc.EncryptBytes(ref, []byte(msg))
			if err != nil {
				t.Fatal(err)
			}
			plaintext, err := enc.DecryptBytes(ref, ciphertext)
			if err != nil {
				t.Fatal(err)
			}
			if string(plaintext) != msg {
				t.Errorf("%s: wrong plain text %q != %q",
					c.version, plaintext, msg)
			}
		}
	}
}

func TestEncryptStreamRoundTrip(t *testing.T) {
	id := []byte("0123456789ABCDEF")
	payload := bytes.Repeat([]byte("all work and no play makes jack a dull boy\n"), 100)

	for _, c := range cryptoVersions {
		enc, err := newEncryptInfo(c.version, id, "secret", "", PermAll)
		if err != nil {
			t.Fatal(err)
		}
		ref := NewReference(12, 0)

		ciphertext, err := enc.EncryptStreamData(ref, bytes.Clone(payload))
		if err != nil {
			t.Fatal(err)
		}
		r, err := enc.DecryptStream(ref, bytes.NewReader(ciphertext))
		if err != nil {
			t.Fatal(err)
		}
		plaintext, err := io.ReadAll(r)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(plaintext, payload) {
			t.Errorf("%s: wrong stream contents", c.version)
		}
	}
}

func TestKeyForRef(t *testing.T) {
	// For revision 4 every object has its own key, derived from the object
	// identifier.  For revision 6 the file encryption key is used directly.
	id := []byte("0123456789ABCDEF")

	enc, err := newEncryptInfo(V1_6, id, "secret", "", PermAll)
	if err != nil {
		t.Fatal(err)
	}
	k1, err := enc.sec.KeyForRef(enc.stmF, NewReference(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	k2, err := enc.sec.KeyForRef(enc.stmF, NewReference(2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(k1, k2) {
		t.Error("object keys do not depend on the object number")
	}
	if len(k1) != 16 {
		t.Errorf("wrong key length %d", len(k1))
	}

	enc, err = newEncryptInfo(V2_0, id, "secret", "", PermAll)
	if err != nil {
		t.Fatal(err)
	}
	k1, err = enc.sec.KeyForRef(enc.stmF, NewReference(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(k1, enc.sec.key) {
		t.Error("AES-256 does not use the file encryption key directly")
	}
}

func TestUnsupportedEncryptDict(t *testing.T) {
	id := []byte("0123456789ABCDEF")
	_, err := openStdSecHandler(Dict{
		"R": Integer(17),
		"V": Integer(2),
		"O": String(make([]byte, 32)),
		"U": String(make([]byte, 32)),
		"P": Integer(-4),
	}, 16, id, nil)
	if err == nil {
		t.Error("unknown revision not detected")
	}
}
