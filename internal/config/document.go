package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrNoDocument is returned when the persisted document does not exist.
var ErrNoDocument = errors.New("configuration document not found")

// Document is the persisted configuration: named sections holding
// key/value attributes. Sections and attributes it does not know about are
// carried through untouched.
type Document struct {
	root map[string]any

	// raw is the text the document was parsed from. Changed attributes are
	// patched into it line by line so comments and key order survive.
	raw   []byte
	dirty []attrRef
}

type attrRef struct {
	section string
	key     string
}

// NewDocument wraps an already decoded tree.
func NewDocument(root map[string]any) *Document {
	if root == nil {
		root = make(map[string]any)
	}
	return &Document{root: root}
}

// ParseDocument decodes TOML text.
func ParseDocument(data []byte) (*Document, error) {
	root := make(map[string]any)
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML document: %w", err)
	}
	d := NewDocument(root)
	d.raw = data
	return d, nil
}

// ReadDocument loads and decodes the document at path.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoDocument, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseDocument(data)
}

// Bytes encodes the document as TOML. A parsed document keeps its original
// text with only the changed attribute lines rewritten. The whole tree is
// re-encoded when a changed attribute cannot be located in the text.
func (d *Document) Bytes() ([]byte, error) {
	if d.raw != nil {
		if data, ok := d.patch(); ok {
			return data, nil
		}
	}
	data, err := toml.Marshal(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to encode TOML document: %w", err)
	}
	return data, nil
}

// WriteFile writes the document atomically, keeping the mode of an
// existing file.
func (d *Document) WriteFile(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}

	mode := os.FileMode(0o644)
	if fi, statErr := os.Stat(path); statErr == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	d.raw, d.dirty = data, nil
	return nil
}

// patch rewrites the value of every dirty attribute in the raw text,
// keeping indentation and trailing comments.
func (d *Document) patch() ([]byte, bool) {
	pending := make(map[attrRef]bool, len(d.dirty))
	for _, ref := range d.dirty {
		pending[ref] = true
	}
	if len(pending) == 0 {
		return d.raw, true
	}

	lines := strings.SplitAfter(string(d.raw), "\n")
	section := ""
	for i, line := range lines {
		body, eol := strings.CutSuffix(line, "\n")
		trimmed := strings.TrimSpace(body)
		if strings.HasPrefix(trimmed, "[") {
			header, _ := splitComment(trimmed)
			section = strings.TrimSpace(strings.Trim(strings.TrimSpace(header), "[]"))
			continue
		}

		key, rest, ok := strings.Cut(body, "=")
		if !ok {
			continue
		}
		ref := attrRef{section, strings.TrimSpace(key)}
		if !pending[ref] {
			continue
		}
		sec, _ := d.section(section)
		value, err := encodeValue(sec[ref.key])
		if err != nil {
			return nil, false
		}

		out := key + "= " + value
		if _, comment := splitComment(rest); comment != "" {
			out += " " + comment
		}
		if eol {
			out += "\n"
		}
		lines[i] = out
		delete(pending, ref)
	}
	if len(pending) > 0 {
		return nil, false
	}
	return []byte(strings.Join(lines, "")), true
}

// encodeValue renders v as the right-hand side of a TOML key/value pair.
func encodeValue(v any) (string, error) {
	data, err := toml.Marshal(map[string]any{"v": v})
	if err != nil {
		return "", err
	}
	_, value, ok := strings.Cut(strings.TrimSpace(string(data)), "=")
	if !ok {
		return "", fmt.Errorf("unexpected encoding %q", data)
	}
	return strings.TrimSpace(value), nil
}

// splitComment separates s at the first # outside a quoted string.
func splitComment(s string) (string, string) {
	var quote rune
	escaped := false
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case quote == '"' && r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '#':
			return s[:i], s[i:]
		}
	}
	return s, ""
}

// Sections lists the top-level sections in sorted order.
func (d *Document) Sections() []string {
	names := make([]string, 0, len(d.root))
	for name, v := range d.root {
		if _, ok := v.(map[string]any); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (d *Document) section(name string) (map[string]any, bool) {
	sec, ok := d.root[name].(map[string]any)
	return sec, ok
}

// Has reports whether section.key exists.
func (d *Document) Has(section, key string) bool {
	_, ok := d.Attr(section, key)
	return ok
}

// Attr returns the attribute as text. Integers and booleans are rendered
// in their canonical decimal and true/false forms.
func (d *Document) Attr(section, key string) (string, bool) {
	sec, ok := d.section(section)
	if !ok {
		return "", false
	}
	v, ok := sec[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return fmt.Sprint(t), true
	}
}

// String returns the attribute or def when absent.
func (d *Document) String(section, key, def string) string {
	if v, ok := d.Attr(section, key); ok {
		return v
	}
	return def
}

// Int returns the attribute as an integer or def when absent or invalid.
func (d *Document) Int(section, key string, def int) int {
	v, ok := d.Attr(section, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Bool accepts "true" or "1" as true, anything else present as false.
func (d *Document) Bool(section, key string, def bool) bool {
	v, ok := d.Attr(section, key)
	if !ok {
		return def
	}
	return parseFlag(v)
}

// Set overwrites an existing attribute. It never creates sections or
// attributes and reports whether the write happened. The stored TOML type
// follows the existing value where the new text allows it.
func (d *Document) Set(section, key, value string) bool {
	sec, ok := d.section(section)
	if !ok {
		return false
	}
	old, ok := sec[key]
	if !ok {
		return false
	}

	d.dirty = append(d.dirty, attrRef{section, key})
	switch old.(type) {
	case int64:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			sec[key] = n
			return true
		}
	case bool:
		if b, err := strconv.ParseBool(value); err == nil {
			sec[key] = b
			return true
		}
	}
	sec[key] = value
	return true
}

func parseFlag(v string) bool {
	if v == "true" {
		return true
	}
	n, err := strconv.Atoi(v)
	return err == nil && n == 1
}
