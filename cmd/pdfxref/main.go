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

// Pdfxref prints the cross-reference table of a PDF file, together with
// some summary information about the document.  This is mainly useful
// for debugging damaged files.
package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/quillpdf/pdf"
)

func main() {
	passwdArg := flag.String("p", "", "PDF password")
	noStreams := flag.Bool("t", false, "use classic xref tables only")
	noRepair := flag.Bool("R", false, "do not attempt to repair damaged files")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: pdfxref [options] file.pdf")
		os.Exit(2)
	}

	tryPasswd := func(_ []byte, try int) string {
		if *passwdArg != "" && try == 0 {
			return *passwdArg
		}
		fmt.Print("password: ")
		passwd, err := term.ReadPassword(syscall.Stdin)
		fmt.Println("***")
		check(err)
		return string(passwd)
	}

	opt := &pdf.OpenOptions{
		ReadPassword:      tryPasswd,
		IgnoreXRefStreams: *noStreams,
		DisableRecovery:   *noRepair,
		PrintWarnings:     true,
	}
	doc, err := pdf.Open(args[0], opt)
	check(err)
	defer doc.Close()

	fmt.Println("file:", doc.Filename())
	fmt.Println("version:", doc.PDFVersion())
	if level := doc.ExtensionLevel(); level != 0 {
		fmt.Println("extension level:", level)
	}
	if doc.IsEncrypted() {
		fmt.Println("encrypted: yes")
	}
	if pages, err := doc.Pages(); err == nil {
		fmt.Println("pages:", len(pages))
	}
	fmt.Println()

	err = doc.DumpXRef(os.Stdout)
	check(err)
}

func check(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "pdfxref:", err)
		os.Exit(1)
	}
}
