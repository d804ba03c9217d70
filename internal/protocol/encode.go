package protocol

import (
	"encoding/json"
	"strconv"

	gojson "github.com/goccy/go-json"
)

var jsonNull = json.RawMessage("null")

// Encode builds the wire object for p. Unsupported kinds yield a nil object
// and ErrUnsupportedKind.
func Encode(p Packet) (Object, error) {
	switch p.Kind {
	case KindCall:
		return encodeRouted(string(KindCall), p)
	case KindEvent:
		return encodeRouted(string(KindEvent), p)
	case KindCallback:
		return Object{
			string(KindCallback): encodeID(p.ID),
			keyResult:            rawOrNull(p.Result),
		}, nil
	case KindStream:
		return encodeStream(p)
	case KindError:
		errObj, err := gojson.Marshal(wireError{Message: p.Message, Code: p.Code})
		if err != nil {
			return nil, err
		}
		return Object{
			string(KindCallback): encodeID(p.ID),
			keyError:             errObj,
		}, nil
	default:
		return nil, ErrUnsupportedKind
	}
}

// Marshal encodes p and serializes it to JSON text.
func Marshal(p Packet) ([]byte, error) {
	obj, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return gojson.Marshal(obj)
}

func encodeRouted(kindKey string, p Packet) (Object, error) {
	if p.Route.Iface == "" || p.Route.Member == "" {
		return nil, ErrMissingRoute
	}
	route := p.Route
	if p.Kind == KindEvent {
		route.Version = nil
	}
	return Object{
		kindKey:     encodeID(p.ID),
		route.Key(): rawOrNull(p.Args),
	}, nil
}

func encodeStream(p Packet) (Object, error) {
	obj := Object{string(KindStream): encodeID(p.ID)}
	if p.Name != "" {
		name, err := gojson.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		obj[keyName] = name
	}
	if p.Size != nil {
		obj[keySize] = json.RawMessage(strconv.FormatInt(*p.Size, 10))
	}
	if p.Status != "" {
		status, err := gojson.Marshal(p.Status)
		if err != nil {
			return nil, err
		}
		obj[keyStatus] = status
	}
	return obj, nil
}

func encodeID(id int64) json.RawMessage {
	return json.RawMessage(strconv.FormatInt(id, 10))
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return jsonNull
	}
	return raw
}
