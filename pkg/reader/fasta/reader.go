// Package fasta reads protein FASTA files into accession to sequence maps
package fasta

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is one protein entry
type Record struct {
	Accession   string // first word of the header
	Description string // rest of the header
	Sequence    string // upper case residues, terminal '*' removed
}

// Reader provides streaming access to FASTA entries
type Reader struct {
	scanner *bufio.Scanner
	lineNum int
	header  string // header of the next entry, already consumed
	current *Record
	err     error
}

// NewReader creates a new FASTA reader
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &Reader{scanner: s}
}

// Next advances to the next entry. Returns false when no more entries or error.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}

	var seq bytes.Buffer
	header := r.header
	r.header = ""
	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, ">") {
			if header != "" {
				r.header = line[1:]
				return r.emit(header, seq.Bytes())
			}
			header = line[1:]
			continue
		}
		if header == "" {
			r.err = fmt.Errorf("line %d: sequence before first header", r.lineNum)
			return false
		}
		seq.WriteString(strings.ToUpper(line))
	}
	if err := r.scanner.Err(); err != nil {
		r.err = err
		return false
	}
	if header == "" {
		return false
	}
	return r.emit(header, seq.Bytes())
}

func (r *Reader) emit(header string, seq []byte) bool {
	acc, desc, _ := strings.Cut(strings.TrimSpace(header), " ")
	if acc == "" {
		r.err = fmt.Errorf("line %d: empty FASTA header", r.lineNum)
		return false
	}
	r.current = &Record{
		Accession:   acc,
		Description: strings.TrimSpace(desc),
		Sequence:    strings.TrimRight(string(seq), "*"),
	}
	return true
}

// Record returns the current entry
func (r *Reader) Record() *Record {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// ReadAll maps every accession to its sequence. Duplicate accessions are an error.
func ReadAll(rd io.Reader) (map[string]string, error) {
	r := NewReader(rd)
	out := make(map[string]string)
	for r.Next() {
		rec := r.Record()
		if _, dup := out[rec.Accession]; dup {
			return nil, fmt.Errorf("duplicate accession %s", rec.Accession)
		}
		out[rec.Accession] = rec.Sequence
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile reads a FASTA file, transparently decompressing gzip input
func ReadFile(path string) (map[string]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FASTA file: %w", err)
	}
	defer fh.Close()

	br := bufio.NewReader(fh)
	var in io.Reader = br
	if sig, _ := br.Peek(2); len(sig) == 2 && sig[0] == 0x1f && sig[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		in = gz
	}

	refs, err := ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return refs, nil
}
