package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	gojson "github.com/goccy/go-json"
)

var kindKeys = []Kind{KindCall, KindCallback, KindEvent, KindStream}

// Unmarshal parses JSON text into a wire object. The keep-alive frame is not
// special-cased here.
func Unmarshal(data []byte) (Object, error) {
	var obj Object
	if err := gojson.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Decode infers the packet kind of obj and returns its typed descriptor.
// An error field always makes the packet an error packet, whatever its
// outer key. Objects with no known kind key, several kind keys, or a
// malformed routing key are rejected.
func Decode(obj Object) (Packet, error) {
	if len(obj) == 0 {
		return Packet{}, ErrEmptyObject
	}
	if raw, ok := obj[keyError]; ok {
		return decodeError(obj, raw)
	}

	var kind Kind
	for _, k := range kindKeys {
		if _, ok := obj[string(k)]; !ok {
			continue
		}
		if kind != "" {
			return Packet{}, fmt.Errorf("%w: both %s and %s", ErrExtraKeys, kind, k)
		}
		kind = k
	}
	if kind == "" {
		return Packet{}, ErrUnsupportedKind
	}

	id, err := decodeID(obj[string(kind)])
	if err != nil {
		return Packet{}, err
	}

	switch kind {
	case KindCall:
		return decodeRouted(obj, KindCall, id, true)
	case KindEvent:
		return decodeRouted(obj, KindEvent, id, false)
	case KindCallback:
		return Packet{Kind: KindCallback, ID: id, Result: obj[keyResult]}, nil
	default:
		return decodeStream(obj, id)
	}
}

func decodeError(obj Object, raw json.RawMessage) (Packet, error) {
	var id int64
	if rawID, ok := obj[string(KindCallback)]; ok {
		v, err := decodeID(rawID)
		if err != nil {
			return Packet{}, err
		}
		id = v
	}
	var werr wireError
	if err := gojson.Unmarshal(raw, &werr); err != nil {
		return Packet{}, fmt.Errorf("protocol: error field: %w", err)
	}
	return Packet{Kind: KindError, ID: id, Message: werr.Message, Code: werr.Code}, nil
}

func decodeRouted(obj Object, kind Kind, id int64, withVersion bool) (Packet, error) {
	if len(obj) != 2 {
		if len(obj) < 2 {
			return Packet{}, ErrMissingRoute
		}
		return Packet{}, fmt.Errorf("%w: %s packet has %d keys", ErrExtraKeys, kind, len(obj))
	}
	for key, args := range obj {
		if key == string(kind) {
			continue
		}
		route, err := ParseRoute(key, withVersion)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: kind, ID: id, Route: route, Args: args}, nil
	}
	return Packet{}, ErrMissingRoute
}

func decodeStream(obj Object, id int64) (Packet, error) {
	p := Packet{Kind: KindStream, ID: id}
	if raw, ok := obj[keyName]; ok {
		if err := gojson.Unmarshal(raw, &p.Name); err != nil {
			return Packet{}, fmt.Errorf("protocol: stream name: %w", err)
		}
	}
	if raw, ok := obj[keySize]; ok {
		var size int64
		if err := gojson.Unmarshal(raw, &size); err != nil {
			return Packet{}, fmt.Errorf("protocol: stream size: %w", err)
		}
		p.Size = &size
	}
	if raw, ok := obj[keyStatus]; ok {
		if err := gojson.Unmarshal(raw, &p.Status); err != nil {
			return Packet{}, fmt.Errorf("protocol: stream status: %w", err)
		}
	}
	return p, nil
}

func decodeID(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return 0, ErrInvalidID
	}
	var id int64
	if err := gojson.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return id, nil
}
