package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/model"
)

// decodePrefix decodes the single JSON value at the start of text (leading
// whitespace allowed) and returns it with the byte offset just past it.
// Trailing bytes after the value are ignored.
func decodePrefix(text string, maxDepth int) (model.Value, int, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	v, err := decodeValue(dec, 0, maxDepth)
	if err != nil {
		return model.Value{}, 0, err
	}
	return v, int(dec.InputOffset()), nil
}

func decodeValue(dec *json.Decoder, depth, maxDepth int) (model.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return model.Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		if depth >= maxDepth {
			return model.Value{}, common.ErrDepthExceeded
		}
		switch t {
		case '{':
			return decodeObject(dec, depth, maxDepth)
		case '[':
			return decodeArray(dec, depth, maxDepth)
		default:
			return model.Value{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return model.String(t), nil
	case json.Number:
		return model.Number(t), nil
	case bool:
		return model.Bool(t), nil
	case nil:
		return model.Null(), nil
	default:
		return model.Value{}, fmt.Errorf("unexpected token %T", tok)
	}
}

func decodeObject(dec *json.Decoder, depth, maxDepth int) (model.Value, error) {
	members := make([]model.Member, 0, 4)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return model.Value{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return model.Value{}, fmt.Errorf("object key is %T", keyTok)
		}
		val, err := decodeValue(dec, depth+1, maxDepth)
		if err != nil {
			return model.Value{}, err
		}
		members = append(members, model.Member{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return model.Value{}, err
	}
	return model.Object(members...), nil
}

func decodeArray(dec *json.Decoder, depth, maxDepth int) (model.Value, error) {
	items := make([]model.Value, 0, 4)
	for dec.More() {
		val, err := decodeValue(dec, depth+1, maxDepth)
		if err != nil {
			return model.Value{}, err
		}
		items = append(items, val)
	}
	if _, err := dec.Token(); err != nil {
		return model.Value{}, err
	}
	return model.Array(items...), nil
}
