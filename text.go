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
	"unicode/utf16"
)

func isUTF16(s string) bool {
	return len(s) >= 2 && s[0] == 0xFE && s[1] == 0xFF
}

func utf16Decode(s String) string {
	var u []uint16
	for i := 0; i < len(s)-1; i += 2 {
		u = append(u, uint16(s[i])<<8|uint16(s[i+1]))
	}
	return string(utf16.Decode(u))
}

func pdfDocDecode(s String) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 || pdfDocRunes[s[i]] != rune(s[i]) {
			goto Decode
		}
	}
	return string(s)

Decode:
	r := make([]rune, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := pdfDocRunes[s[i]]
		if c == noRune {
			continue
		}
		r = append(r, c)
	}
	return string(r)
}

// pdfDocEncode converts s to PDFDocEncoding.  The second return value
// indicates whether all characters of s could be represented.
func pdfDocEncode(s string) (String, bool) {
	var buf []byte
	for _, r := range s {
		c, ok := pdfDocBytes[r]
		if !ok {
			return nil, false
		}
		buf = append(buf, c)
	}
	return String(buf), true
}

const noRune = rune(-1)

// pdfDocRunes maps PDFDocEncoding code points to runes.  The table
// follows appendix D of the PDF specification; code points without an
// assigned character map to noRune.
var pdfDocRunes = [256]rune{}

var pdfDocBytes = map[rune]byte{}

func init() {
	for i := 0; i < 256; i++ {
		switch {
		case i >= 0x18 && i <= 0x1F:
			special := []rune{
				0x02D8, // BREVE
				0x02C7, // CARON
				0x02C6, // MODIFIER LETTER CIRCUMFLEX ACCENT
				0x02D9, // DOT ABOVE
				0x02DD, // DOUBLE ACUTE ACCENT
				0x02DB, // OGONEK
				0x02DA, // RING ABOVE
				0x02DC, // SMALL TILDE
			}
			pdfDocRunes[i] = special[i-0x18]
		case i == 0x7F:
			pdfDocRunes[i] = noRune
		case i >= 0x80 && i <= 0x9E:
			special := []rune{
				0x2022, // BULLET
				0x2020, // DAGGER
				0x2021, // DOUBLE DAGGER
				0x2026, // HORIZONTAL ELLIPSIS
				0x2014, // EM DASH
				0x2013, // EN DASH
				0x0192, // LATIN SMALL LETTER F WITH HOOK
				0x2044, // FRACTION SLASH
				0x2039, // SINGLE LEFT-POINTING ANGLE QUOTATION MARK
				0x203A, // SINGLE RIGHT-POINTING ANGLE QUOTATION MARK
				0x2212, // MINUS SIGN
				0x2030, // PER MILLE SIGN
				0x201E, // DOUBLE LOW-9 QUOTATION MARK
				0x201C, // LEFT DOUBLE QUOTATION MARK
				0x201D, // RIGHT DOUBLE QUOTATION MARK
				0x2018, // LEFT SINGLE QUOTATION MARK
				0x2019, // RIGHT SINGLE QUOTATION MARK
				0x201A, // SINGLE LOW-9 QUOTATION MARK
				0x2122, // TRADE MARK SIGN
				0xFB01, // LATIN SMALL LIGATURE FI
				0xFB02, // LATIN SMALL LIGATURE FL
				0x0141, // LATIN CAPITAL LETTER L WITH STROKE
				0x0152, // LATIN CAPITAL LIGATURE OE
				0x0160, // LATIN CAPITAL LETTER S WITH CARON
				0x0178, // LATIN CAPITAL LETTER Y WITH DIAERESIS
				0x017D, // LATIN CAPITAL LETTER Z WITH CARON
				0x0131, // LATIN SMALL LETTER DOTLESS I
				0x0142, // LATIN SMALL LETTER L WITH STROKE
				0x0153, // LATIN SMALL LIGATURE OE
				0x0161, // LATIN SMALL LETTER S WITH CARON
				0x017E, // LATIN SMALL LETTER Z WITH CARON
			}
			pdfDocRunes[i] = special[i-0x80]
		case i == 0x9F || i == 0xAD:
			pdfDocRunes[i] = noRune
		case i == 0xA0:
			pdfDocRunes[i] = 0x20AC // EURO SIGN
		default:
			pdfDocRunes[i] = rune(i)
		}
	}
	for i, r := range pdfDocRunes {
		if r == noRune {
			continue
		}
		if _, present := pdfDocBytes[r]; !present {
			pdfDocBytes[r] = byte(i)
		}
	}
}
