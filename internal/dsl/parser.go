package dsl

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"
)

var (
	entityRe    = regexp.MustCompile(`^(entity|template)\s+(\w+)(?:\s+uses\s+([\w.,\s-]+?))?\s*:$`)
	fieldRe     = regexp.MustCompile(`^\s*([\w*]+(?:\.[\w*]+)*):\s*([^\s#]+)(.*)$`)
	containerRe = regexp.MustCompile(`^(set|array|map)\[(\w+)\]$`)
	moduleRe    = regexp.MustCompile(`^\s*module\s+([A-Za-z0-9_.-]+)\s*$`)
)

var knownTypes = map[string]bool{
	"string": true, "html": true, "identifier": true, "formula": true,
	"number": true, "int": true, "bool": true,
	"set": true, "array": true, "map": true, "object": true, "any": true,
}

//go:embed defs/*.dsl
var embeddedFS embed.FS

// parse: options tokenizer: делит "k=v k2='v 2' label=mc3e.Price" на токены, не рвёт по пробелам внутри кавычек/скобок
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	bracketDepth := 0

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && bracketDepth == 0 {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle && bracketDepth == 0 {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '[':
			if !inSingle && !inDouble {
				bracketDepth++
			}
			buf = append(buf, r)
		case ']':
			if !inSingle && !inDouble && bracketDepth > 0 {
				bracketDepth--
			}
			buf = append(buf, r)
		default:
			// разделитель: пробел И ТОЛЬКО если мы не в кавычках и не внутри [...]
			if (r == ' ' || r == '\t') && !inSingle && !inDouble && bracketDepth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

// stripComment срезает "# ..." вне кавычек.
func stripComment(s string) string {
	inSingle, inDouble := false, false
	for i, r := range s {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '#':
			if !inSingle && !inDouble {
				return s[:i]
			}
		}
	}
	return s
}

func parseOptions(raw string) map[string]string {
	opts := map[string]string{}
	raw = strings.TrimSpace(stripComment(raw))
	// убрать необязательный префикс "options:"
	if strings.HasPrefix(strings.ToLower(raw), "options:") {
		raw = strings.TrimSpace(raw[len("options:"):])
	}
	for _, tok := range splitOptionTokens(raw) {
		tok = strings.TrimSpace(strings.TrimSuffix(tok, ","))
		if tok == "" {
			continue
		}
		// флаг без значения → "true"
		if !strings.Contains(tok, "=") {
			opts[strings.ToLower(tok)] = "true"
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		// снять кавычки, если есть
		if len(v) >= 2 {
			if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
				v = v[1 : len(v)-1]
			}
		}
		if k != "" {
			opts[k] = v
		}
	}
	return opts
}

// Parse читает один DSL-файл. name используется только в сообщениях об ошибках.
func Parse(r io.Reader, name string) ([]*Entity, error) {
	var entities []*Entity
	var current *Entity
	currentModule := ""
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// module ...
		if m := moduleRe.FindStringSubmatch(line); m != nil {
			currentModule = m[1]
			continue
		}

		// entity <name> [uses a, b]: | template <name>:
		if m := entityRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				entities = append(entities, current)
			}
			current = &Entity{
				Module:   currentModule,
				Name:     m[2],
				Template: m[1] == "template",
				File:     name,
				Line:     lineNo,
			}
			for _, u := range strings.Split(m[3], ",") {
				if u = strings.TrimSpace(u); u != "" {
					current.Uses = append(current.Uses, u)
				}
			}
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("%s:%d: field outside of entity or template", name, lineNo)
		}

		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("%s:%d: cannot parse %q", name, lineNo, line)
		}
		f := Field{Path: m[1], Type: m[2], Options: parseOptions(m[3]), Line: lineNo}
		if cm := containerRe.FindStringSubmatch(f.Type); cm != nil {
			f.Type, f.Elem = cm[1], cm[2]
			if !knownTypes[f.Elem] || f.Elem == "set" || f.Elem == "array" || f.Elem == "map" {
				return nil, fmt.Errorf("%s:%d: unsupported element type %q", name, lineNo, f.Elem)
			}
		}
		if !knownTypes[f.Type] {
			return nil, fmt.Errorf("%s:%d: unknown type %q", name, lineNo, f.Type)
		}
		if (f.Type == "set" || f.Type == "array" || f.Type == "map") && f.Elem == "" {
			return nil, fmt.Errorf("%s:%d: %s requires an element type, e.g. %s[string]", name, lineNo, f.Type, f.Type)
		}
		current.Fields = append(current.Fields, f)
	}

	if current != nil {
		entities = append(entities, current)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entities, nil
}

// LoadEntities читает один .dsl файл с диска
func LoadEntities(file string) ([]*Entity, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Parse(fh, file)
}

// LoadFS собирает все *.dsl из fsys, ключ: FQN ("item.physical").
func LoadFS(fsys fs.FS) (map[string]*Entity, error) {
	result := make(map[string]*Entity)

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(path.Ext(d.Name()), ".dsl") {
			return nil
		}
		fh, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer fh.Close()

		ents, err := Parse(fh, p)
		if err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		for _, e := range ents {
			if e.Module == "" {
				return fmt.Errorf("%s %q in %s has no module; add `module <name>` at the top", kindWord(e), e.Name, p)
			}
			if _, exists := result[e.FQN()]; exists {
				return fmt.Errorf("duplicate %s %q in module %q (file: %s)", kindWord(e), e.Name, e.Module, p)
			}
			result[e.FQN()] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LoadAllEntities читает каталог с диска; пустой root: встроенные определения.
func LoadAllEntities(root string) (map[string]*Entity, error) {
	if strings.TrimSpace(root) == "" {
		return LoadEmbedded()
	}
	return LoadFS(os.DirFS(root))
}

func LoadEmbedded() (map[string]*Entity, error) {
	sub, err := fs.Sub(embeddedFS, "defs")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

func kindWord(e *Entity) string {
	if e.Template {
		return "template"
	}
	return "entity"
}
