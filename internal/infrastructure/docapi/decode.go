package docapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	simplejson "github.com/bitly/go-simplejson"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

// decodeDocumentResult maps the processing payload onto a DocumentResult.
// Any missing or malformed key yields ErrParse and no partial result.
func decodeDocumentResult(body []byte) (*domain.DocumentResult, error) {
	root, err := simplejson.NewFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, domain.WrapError(domain.ErrProcessing, "decode process response", err)
	}

	data, err := object(root, "data")
	if err != nil {
		return nil, parseError(err)
	}
	header, err := object(data, "TestataDocumento")
	if err != nil {
		return nil, parseError(fmt.Errorf("data.%w", err))
	}

	var result domain.DocumentResult
	document, err := object(header, "Documento")
	if err != nil {
		return nil, parseError(fmt.Errorf("data.TestataDocumento.%w", err))
	}
	if result.Document.Number, err = leaf(document, "Numero"); err == nil {
		if result.Document.Type, err = leaf(document, "Tipo"); err == nil {
			result.Document.Date, err = leaf(document, "Data")
		}
	}
	if err != nil {
		return nil, parseError(fmt.Errorf("data.TestataDocumento.Documento.%w", err))
	}

	if result.Supplier, err = party(header, "Fornitore"); err != nil {
		return nil, parseError(fmt.Errorf("data.TestataDocumento.%w", err))
	}
	if result.Customer, err = party(header, "Cliente"); err != nil {
		return nil, parseError(fmt.Errorf("data.TestataDocumento.%w", err))
	}

	items, err := lineItems(body)
	if err != nil {
		return nil, parseError(fmt.Errorf("data.Articoli: %w", err))
	}
	result.LineItems = items
	return &result, nil
}

func object(parent *simplejson.Json, key string) (*simplejson.Json, error) {
	child, ok := parent.CheckGet(key)
	if !ok {
		return nil, fmt.Errorf("%s: missing", key)
	}
	if _, err := child.Map(); err != nil {
		return nil, fmt.Errorf("%s: not an object", key)
	}
	return child, nil
}

func party(header *simplejson.Json, key string) (domain.Party, error) {
	node, err := object(header, key)
	if err != nil {
		return domain.Party{}, err
	}
	name, err := leaf(node, "RagioneSociale")
	if err != nil {
		return domain.Party{}, fmt.Errorf("%s.%w", key, err)
	}
	taxID, err := leaf(node, "PartitaIva")
	if err != nil {
		return domain.Party{}, fmt.Errorf("%s.%w", key, err)
	}
	return domain.Party{LegalName: name, TaxID: taxID}, nil
}

// leaf reads a scalar value; null renders as an empty string.
func leaf(parent *simplejson.Json, key string) (string, error) {
	node, ok := parent.CheckGet(key)
	if !ok {
		return "", fmt.Errorf("%s: missing", key)
	}
	switch v := node.Interface().(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("%s: not a scalar", key)
	}
}

// lineItems decodes data.Articoli from the raw body so every item keeps
// the upstream key order.
func lineItems(body []byte) ([]domain.LineItem, error) {
	var envelope struct {
		Data struct {
			Articoli json.RawMessage `json:"Articoli"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	raw := bytes.TrimSpace(envelope.Data.Articoli)
	if len(raw) == 0 {
		return nil, errors.New("missing")
	}
	if raw[0] != '[' {
		return nil, errors.New("not an array")
	}

	var items []domain.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.LineItem{}
	}
	return items, nil
}

func parseError(err error) error {
	return domain.WrapError(domain.ErrParse, "decode process response", err)
}
