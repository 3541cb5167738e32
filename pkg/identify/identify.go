// Package identify classifies paths into the file tags that hooks filter on
// through types, types_or and exclude_types.
package identify

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Tags is a set of file tags
type Tags map[string]struct{}

// Has reports whether tag is present
func (t Tags) Has(tag string) bool {
	_, ok := t[tag]
	return ok
}

// Sorted returns the tags in lexical order
func (t Tags) Sorted() []string {
	out := make([]string, 0, len(t))
	for tag := range t {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func (t Tags) add(tags ...string) {
	for _, tag := range tags {
		t[tag] = struct{}{}
	}
}

const (
	TagFile          = "file"
	TagDirectory     = "directory"
	TagSymlink       = "symlink"
	TagExecutable    = "executable"
	TagNonExecutable = "non-executable"
	TagText          = "text"
	TagBinary        = "binary"
)

// sniffBytes is how much of a file is read to tell text from binary
const sniffBytes = 1024

var extensions = map[string][]string{
	"py":         {"python"},
	"pyi":        {"python", "pyi"},
	"pyx":        {"cython"},
	"yaml":       {"yaml"},
	"yml":        {"yaml"},
	"json":       {"json"},
	"toml":       {"toml"},
	"md":         {"markdown"},
	"markdown":   {"markdown"},
	"rst":        {"rst"},
	"txt":        {"plain-text"},
	"sh":         {"shell"},
	"bash":       {"shell", "bash"},
	"zsh":        {"shell", "zsh"},
	"go":         {"go"},
	"mod":        {"go-mod"},
	"sum":        {"go-sum"},
	"js":         {"javascript"},
	"mjs":        {"javascript"},
	"jsx":        {"javascript", "jsx"},
	"ts":         {"ts"},
	"tsx":        {"ts", "tsx"},
	"html":       {"html"},
	"htm":        {"html"},
	"css":        {"css"},
	"scss":       {"scss"},
	"ini":        {"ini"},
	"cfg":        {"cfg", "ini"},
	"xml":        {"xml"},
	"c":          {"c"},
	"h":          {"c", "header"},
	"cc":         {"c++"},
	"cpp":        {"c++"},
	"hpp":        {"c++", "header"},
	"rs":         {"rust"},
	"java":       {"java"},
	"rb":         {"ruby"},
	"sql":        {"sql"},
	"proto":      {"proto"},
	"feature":    {"gherkin"},
	"dockerfile": {"dockerfile"},
	"png":        {"image", "png"},
	"jpg":        {"image", "jpeg"},
	"jpeg":       {"image", "jpeg"},
	"gif":        {"image", "gif"},
	"zip":        {"zip"},
	"gz":         {"gzip"},
}

var names = map[string][]string{
	"Dockerfile":              {"dockerfile"},
	"Makefile":                {"makefile"},
	"makefile":                {"makefile"},
	"Pipfile":                 {"toml"},
	"setup.cfg":               {"ini"},
	".pre-commit-config.yaml": {"yaml"},
	".gitignore":              {"gitignore"},
	".gitattributes":          {"gitattributes"},
	".editorconfig":           {"editorconfig"},
}

var interpreters = map[string][]string{
	"python":  {"python"},
	"python2": {"python", "python2"},
	"python3": {"python", "python3"},
	"sh":      {"shell", "sh"},
	"bash":    {"shell", "bash"},
	"zsh":     {"shell", "zsh"},
	"node":    {"javascript"},
	"ruby":    {"ruby"},
	"perl":    {"perl"},
}

// known holds every tag a config may reference
var known = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, tag := range []string{TagFile, TagDirectory, TagSymlink, TagExecutable, TagNonExecutable, TagText, TagBinary} {
		m[tag] = struct{}{}
	}
	for _, table := range []map[string][]string{extensions, names, interpreters} {
		for _, tags := range table {
			for _, tag := range tags {
				m[tag] = struct{}{}
			}
		}
	}
	return m
}()

// IsKnown reports whether tag can ever be produced by Path
func IsKnown(tag string) bool {
	_, ok := known[tag]
	return ok
}

// Path returns the tags for the file at path
func Path(path string) (Tags, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	tags := make(Tags)
	switch mode := info.Mode(); {
	case mode&os.ModeSymlink != 0:
		tags.add(TagSymlink)
		return tags, nil
	case mode.IsDir():
		tags.add(TagDirectory)
		return tags, nil
	case !mode.IsRegular():
		return tags, nil
	}

	tags.add(TagFile)
	executable := info.Mode().Perm()&0o111 != 0
	if executable {
		tags.add(TagExecutable)
	} else {
		tags.add(TagNonExecutable)
	}

	fromName := Filename(path)
	tags.add(fromName.Sorted()...)

	head, err := readHead(path)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(head, 0) >= 0 {
		tags.add(TagBinary)
	} else {
		tags.add(TagText)
	}

	if executable && len(fromName) == 0 {
		tags.add(Shebang(head).Sorted()...)
	}
	return tags, nil
}

// Filename returns the tags implied by the file name alone
func Filename(path string) Tags {
	tags := make(Tags)
	base := filepath.Base(path)
	if t, ok := names[base]; ok {
		tags.add(t...)
		return tags
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	if t, ok := extensions[ext]; ok {
		tags.add(t...)
	}
	return tags
}

// Shebang returns the tags implied by a "#!" interpreter line
func Shebang(head []byte) Tags {
	tags := make(Tags)
	if !bytes.HasPrefix(head, []byte("#!")) {
		return tags
	}
	line, _, _ := bytes.Cut(head[2:], []byte("\n"))
	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return tags
	}
	interp := filepath.Base(fields[0])
	if interp == "env" {
		rest := fields[1:]
		for len(rest) > 0 && strings.HasPrefix(rest[0], "-") {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return tags
		}
		interp = rest[0]
	}
	if t, ok := interpreters[interp]; ok {
		tags.add(t...)
		return tags
	}
	// python3.8 and friends
	trimmed := strings.TrimRight(interp, "0123456789.")
	if t, ok := interpreters[trimmed]; ok {
		tags.add(t...)
	}
	return tags
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, sniffBytes)
	n, err := io.ReadFull(bufio.NewReader(f), buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return buf[:n], nil
}
