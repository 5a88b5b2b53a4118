package token

import (
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"
)

// Pos is an opaque source position. It is only meaningful relative to the
// FileSet that produced it. The zero Pos means "no position".
type Pos int

// IsValid reports whether p represents a valid position.
func (p Pos) IsValid() bool { return p > 0 }

// Position is the unpacked, human-readable form of a Pos: a file name plus
// 1-based line and column, the latter counted in UTF-8 characters per
// spec.md §4.1 ("UTF-8 aware for column counting").
type Position struct {
	Filename string
	FileID   int
	Offset   int // byte offset, 0-based
	Line     int // 1-based
	Column   int // 1-based, in runes
}

// IsValid reports whether the position carries line information.
func (p Position) IsValid() bool { return p.Line > 0 }

func (p Position) String() string {
	if p.Filename == "" && !p.IsValid() {
		return "-"
	}
	s := p.Filename
	if p.IsValid() {
		if s != "" {
			s += ":"
		}
		s += fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	if s == "" {
		s = "-"
	}
	return s
}

// File tracks line-start byte offsets for one source file registered in a
// FileSet, so that a Pos can be translated back to a line/column pair via
// binary search. Grounded on the design of go/token.File, the idiom the
// teacher's own scanner explicitly imitates.
type File struct {
	set  *FileSet
	name string
	id   int
	base Pos // Pos of byte offset 0 in this file
	size int

	mu    sync.Mutex
	lines []int  // byte offset of the start of each line past the first (line 1 implicitly starts at offset 0)
	src   []byte // retained source, for rune-accurate column computation; may be nil
}

// Name returns the file's registered name.
func (f *File) Name() string { return f.name }

// ID returns the file's unique, FileSet-scoped identifier.
func (f *File) ID() int { return f.id }

// Size returns the number of bytes in the file.
func (f *File) Size() int { return f.size }

// Base returns the Pos corresponding to byte offset 0 of this file.
func (f *File) Base() Pos { return f.base }

// Pos converts a byte offset within the file to a Pos.
func (f *File) Pos(offset int) Pos {
	if offset < 0 || offset > f.size {
		panic(fmt.Sprintf("token.File.Pos: offset %d out of range [0,%d]", offset, f.size))
	}
	return f.base + Pos(offset)
}

// Offset converts a Pos within the file back to a byte offset.
func (f *File) Offset(p Pos) int {
	x := int(p - f.base)
	if x < 0 || x > f.size {
		panic(fmt.Sprintf("token.File.Offset: Pos %d out of range for file %q", p, f.name))
	}
	return x
}

// AddLine records that a new line begins at the given byte offset. Offsets
// must be added in increasing order; it is the scanner's job to call this
// exactly once per line terminator it consumes (LF, CR or CRLF, NEL, LS;
// spec.md §4.1 newline handling).
func (f *File) AddLine(offset int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := len(f.lines); (n == 0 || f.lines[n-1] < offset) && offset <= f.size {
		f.lines = append(f.lines, offset)
	}
}

// SetSource retains the file's source bytes so Position can count columns
// in UTF-8 characters rather than bytes (spec.md §4.1's "UTF-8 aware for
// column counting"). Without it, columns fall back to byte offsets.
func (f *File) SetSource(src []byte) {
	f.mu.Lock()
	f.src = src
	f.mu.Unlock()
}

// Position returns the unpacked Position for a Pos known to belong to this
// file.
func (f *File) Position(p Pos) Position {
	offset := f.Offset(p)
	f.mu.Lock()
	i := sort.Search(len(f.lines), func(i int) bool { return f.lines[i] > offset }) - 1
	lineStart := 0
	if i >= 0 {
		lineStart = f.lines[i]
	}
	col := offset - lineStart + 1
	if f.src != nil && lineStart < len(f.src) {
		end := offset
		if end > len(f.src) {
			end = len(f.src)
		}
		col = utf8.RuneCount(f.src[lineStart:end]) + 1
	}
	f.mu.Unlock()
	return Position{
		Filename: f.name,
		FileID:   f.id,
		Offset:   offset,
		Line:     i + 2, // index -1 (before any recorded start) is line 1
		Column:   col,
	}
}

// FileSet is a collection of source files sharing one contiguous Pos space,
// so that a single Pos value unambiguously identifies an offset in exactly
// one of the set's files (spec.md §4.1's "multi-source inclusion").
type FileSet struct {
	mu    sync.Mutex
	files []*File
	base  Pos // base offset for the next AddFile
}

// NewFileSet creates an empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{base: 1} // 0 is reserved for "no position"
}

// AddFile registers a new file of the given size (in bytes) and returns its
// *File handle. The base offset, if not -1, sets the base explicitly;
// -1 means "pick the next available base automatically" (mirrors go/token's
// FileSet.AddFile signature for familiarity).
func (s *FileSet) AddFile(name string, base, size int) *File {
	s.mu.Lock()
	defer s.mu.Unlock()
	if base < 0 {
		base = int(s.base)
	}
	f := &File{
		set:  s,
		name: name,
		id:   len(s.files),
		base: Pos(base),
		size: size,
	}
	s.files = append(s.files, f)
	s.base = Pos(base + size + 1)
	return f
}

// File returns the file containing p, or nil if p belongs to no file in the
// set.
func (s *FileSet) File(p Pos) *File {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := sort.Search(len(s.files), func(i int) bool { return s.files[i].base > p }) - 1
	if i < 0 || i >= len(s.files) {
		return nil
	}
	f := s.files[i]
	if int(p-f.base) > f.size {
		return nil
	}
	return f
}

// FileByID returns the file with the given id, registered by AddFile.
func (s *FileSet) FileByID(id int) *File {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.files) {
		return nil
	}
	return s.files[id]
}

// Position resolves p to its unpacked Position, looking up the owning file.
func (s *FileSet) Position(p Pos) Position {
	if f := s.File(p); f != nil {
		return f.Position(p)
	}
	return Position{}
}

// PosMode controls how much position detail the CLI/printer renders.
type PosMode int

const (
	PosNone  PosMode = iota // no position printed
	PosShort                // line:col only
	PosLong                 // filename:line:col
)

// FormatPos renders p according to mode, resolving it against file. isStart
// is kept for symmetry with span-printing call sites that format a start and
// an end position differently (e.g. an exclusive end column); currently both
// render identically.
func FormatPos(mode PosMode, file *File, p Pos, isStart bool) string {
	_ = isStart
	if mode == PosNone || file == nil {
		return ""
	}
	pos := file.Position(p)
	if mode == PosShort {
		return fmt.Sprintf("%d:%d", pos.Line, pos.Column)
	}
	return pos.String()
}
