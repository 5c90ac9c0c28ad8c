// quillpdf - a library for reading, editing and writing PDF files
// Copyright (C) 2026  The quillpdf authors
//
// Some code here, e.g. the pngUpReader, is taken from
// https://pkg.go.dev/rsc.io/pdf .  Use of this source code is governed by a
// BSD-style license, which is reproduced here:
//
//     Copyright (c) 2009 The Go Authors. All rights reserved.
//
//     Redistribution and use in source and binary forms, with or without
//     modification, are permitted provided that the following conditions are
//     met:
//
//        * Redistributions of source code must retain the above copyright
//     notice, this list of conditions and the following disclaimer.
//        * Redistributions in binary form must reproduce the above
//     copyright notice, this list of conditions and the following disclaimer
//     in the documentation and/or other materials provided with the
//     distribution.
//        * Neither the name of Google Inc. nor the names of its
//     contributors may be used to endorse or promote products derived from
//     this software without specific prior written permission.
//
//     THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
//     "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
//     LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
//     A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
//     OWNER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
//     SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
//     LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
//     DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
//     THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
//     (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
//     OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"fmt"
	"io"
)

// DecodeStream returns a reader for the decoded payload of x.  All filters
// given in the /Filter entry of the stream dictionary are applied in turn.
// Indirect objects inside /Filter and /DecodeParms are resolved using r.
func DecodeStream(r Getter, x *Stream) (io.Reader, error) {
	filter, err := Resolve(r, x.Dict["Filter"])
	if err != nil {
		return nil, err
	}
	parms, err := Resolve(r, x.Dict["DecodeParms"])
	if err != nil {
		return nil, err
	}

	res := x.R
	switch f := filter.(type) {
	case nil:
		// pass
	case Name:
		parmsDict, _ := parms.(Dict)
		res = applyFilter(r, res, f, parmsDict)
	case Array:
		parmsArray, _ := parms.(Array)
		for i, fi := range f {
			name, err := GetName(r, fi)
			if err != nil {
				return nil, err
			}
			var parmsDict Dict
			if i < len(parmsArray) {
				parmsDict, _ = parmsArray[i].(Dict)
			}
			res = applyFilter(r, res, name, parmsDict)
		}
	default:
		return nil, &MalformedFileError{
			Err: fmt.Errorf("invalid /Filter entry %s", format(filter)),
		}
	}
	return res, nil
}

func applyFilter(getter Getter, r io.Reader, name Name, param Dict) io.Reader {
	switch string(name) {
	case "FlateDecode":
		params := map[string]int{
			"Predictor":        1,
			"Colors":           1,
			"BitsPerComponent": 8,
			"Columns":          1,
			"EarlyChange":      1,
		}
		for key := range params {
			val, err := GetInt(getter, param[Name(key)])
			if err == nil && param[Name(key)] != nil {
				params[key] = int(val)
			}
		}
		var zr io.Reader
		var err error
		zr, err = zlib.NewReader(r)
		if err != nil {
			return &errorReader{err}
		}
		switch params["Predictor"] {
		case 1:
			// pass
		case 12:
			columns := params["Columns"]
			zr = &pngUpReader{
				r:    zr,
				hist: make([]byte, 1+columns),
				tmp:  make([]byte, 1+columns),
				pend: []byte{},
			}
		default:
			zr = &errorReader{fmt.Errorf("unsupported predictor %d",
				params["Predictor"])}
		}
		return zr
	case "ASCIIHexDecode":
		return &lazyDecodeReader{r: r, decode: asciiHexDecode}
	case "ASCII85Decode":
		return &lazyDecodeReader{r: r, decode: ascii85Decode}
	default:
		return &errorReader{fmt.Errorf("unsupported filter %q", name)}
	}
}

type pngUpReader struct {
	r    io.Reader
	hist []byte
	tmp  []byte
	pend []byte
}

func (r *pngUpReader) Read(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		if len(r.pend) > 0 {
			m := copy(b, r.pend)
			n += m
			b = b[m:]
			r.pend = r.pend[m:]
			continue
		}
		_, err := io.ReadFull(r.r, r.tmp)
		if err != nil {
			return n, err
		}
		if r.tmp[0] != 2 {
			return n, fmt.Errorf("malformed PNG-Up encoding")
		}
		for i, b := range r.tmp {
			r.hist[i] += b
		}
		r.pend = r.hist[1:]
	}
	return n, nil
}

// lazyDecodeReader reads all of r on first use and serves the decoded
// bytes.  This is used for the ASCII filters, which are only ever applied
// to short streams.
type lazyDecodeReader struct {
	r      io.Reader
	decode func([]byte) ([]byte, error)
	buf    *bytes.Reader
}

func (l *lazyDecodeReader) Read(b []byte) (int, error) {
	if l.buf == nil {
		raw, err := io.ReadAll(l.r)
		if err != nil {
			return 0, err
		}
		dec, err := l.decode(raw)
		if err != nil {
			return 0, err
		}
		l.buf = bytes.NewReader(dec)
	}
	return l.buf.Read(b)
}

func asciiHexDecode(raw []byte) ([]byte, error) {
	var digits []byte
	for _, c := range raw {
		if isSpace[c] {
			continue
		}
		if c == '>' {
			break
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	res := make([]byte, len(digits)/2)
	_, err := hex.Decode(res, digits)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func ascii85Decode(raw []byte) ([]byte, error) {
	if idx := bytes.Index(raw, []byte("~>")); idx >= 0 {
		raw = raw[:idx]
	}
	res := make([]byte, 4*((len(raw)+4)/5)+4)
	n, _, err := ascii85.Decode(res, raw, true)
	if err != nil {
		return nil, err
	}
	return res[:n], nil
}

type errorReader struct {
	err error
}

func (e *errorReader) Read([]byte) (int, error) {
	return 0, e.err
}

// flateCompress compresses data using the FlateDecode filter without a
// predictor.
func flateCompress(data []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zlib.NewWriter(buf)
	_, err := zw.Write(data)
	if err != nil {
		return nil, err
	}
	err = zw.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
