package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type Field struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// LineItem is one article row. Field order follows the upstream JSON object.
type LineItem struct {
	Fields []Field
}

func NewLineItem(fields ...Field) LineItem {
	return LineItem{Fields: fields}
}

func (li LineItem) Get(key string) (any, bool) {
	for _, f := range li.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Text returns the cell text for key, or "" when the key is absent.
func (li LineItem) Text(key string) string {
	v, ok := li.Get(key)
	if !ok {
		return ""
	}
	return FormatValue(v)
}

func (li LineItem) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range li.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, fmt.Errorf("marshal line item key %q: %w", f.Key, err)
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal line item value %q: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (li *LineItem) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("line item is not a JSON object")
	}

	om := orderedmap.New[string, json.RawMessage]()
	if err := om.UnmarshalJSON(trimmed); err != nil {
		return fmt.Errorf("decode line item: %w", err)
	}

	fields := make([]Field, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		value, err := decodeValue(pair.Value)
		if err != nil {
			return fmt.Errorf("decode line item field %q: %w", pair.Key, err)
		}
		fields = append(fields, Field{Key: pair.Key, Value: value})
	}
	li.Fields = fields
	return nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Columns is the union of keys over items, in first-seen order.
func Columns(items []LineItem) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, item := range items {
		for _, f := range item.Fields {
			if _, ok := seen[f.Key]; ok {
				continue
			}
			seen[f.Key] = struct{}{}
			out = append(out, f.Key)
		}
	}
	return out
}

func FormatValue(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	default:
		raw, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(raw)
	}
}
