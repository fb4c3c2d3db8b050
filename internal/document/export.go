package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Export: документ в файле экспорта: {"kind":"item","type":"tool","system":{...}}.
// Прочие ключи верхнего уровня (name, img, flags...) сохраняются как есть.
type Export struct {
	Kind   string         `json:"kind"`
	Type   string         `json:"type"`
	System map[string]any `json:"system"`
	Extra  map[string]any `json:"-"`
}

func (e Export) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+3)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["kind"] = e.Kind
	out["type"] = e.Type
	out["system"] = e.System
	return json.Marshal(out)
}

func (e *Export) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	kind, _ := raw["kind"].(string)
	typ, _ := raw["type"].(string)
	if kind == "" || typ == "" {
		return fmt.Errorf("export: kind and type are required")
	}
	e.Kind, e.Type = kind, typ
	switch sys := raw["system"].(type) {
	case map[string]any:
		e.System = sys
	case nil:
		e.System = map[string]any{}
	default:
		return fmt.Errorf("export %s.%s: system must be an object", kind, typ)
	}
	delete(raw, "kind")
	delete(raw, "type")
	delete(raw, "system")
	e.Extra = raw
	return nil
}

// ReadExports читает один документ или массив документов.
// many сообщает, был ли во входе массив, чтобы записать ответ в той же форме.
func ReadExports(r io.Reader) (docs []Export, many bool, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("read export: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, true, fmt.Errorf("parse export: %w", err)
		}
		return docs, true, nil
	}
	var one Export
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, false, fmt.Errorf("parse export: %w", err)
	}
	return []Export{one}, false, nil
}

// WriteExports пишет документы с отступами; many=false: один объект.
func WriteExports(w io.Writer, docs []Export, many bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if !many && len(docs) == 1 {
		return enc.Encode(docs[0])
	}
	return enc.Encode(docs)
}
