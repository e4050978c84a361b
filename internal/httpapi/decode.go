package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"posledger/internal/service"
)

var (
	decimalType     = reflect.TypeOf(decimal.Decimal{})
	unmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
)

// decodeJSON decodes the request body into dest. A body that parses but
// carries values of the wrong type yields a *service.ValidationError keyed by
// field path (items.0.quantity); anything else is returned as is.
func decodeJSON(r *http.Request, dest any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	err = decoder.Decode(dest)
	if err == nil {
		return nil
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}

	var raw any
	generic := json.NewDecoder(bytes.NewReader(body))
	generic.UseNumber()
	if generic.Decode(&raw) != nil {
		return err
	}

	fields := map[string]string{}
	checkJSONTypes(raw, reflect.TypeOf(dest).Elem(), "", fields)
	if len(fields) > 0 {
		return &service.ValidationError{Fields: fields}
	}
	return err
}

// writeDecodeError answers 422 for mistyped fields and 400 for a body that
// could not be read as JSON.
func writeDecodeError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		writeValidation(w, verr)
		return
	}
	writeError(w, http.StatusBadRequest, err)
}

// checkJSONTypes walks v against t and records every value t cannot hold.
func checkJSONTypes(v any, t reflect.Type, path string, fields map[string]string) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if v == nil {
		return
	}

	if t == decimalType || reflect.PointerTo(t).Implements(unmarshalerType) {
		encoded, err := json.Marshal(v)
		if err != nil {
			fields[path] = "invalid value"
			return
		}
		target := reflect.New(t).Interface().(json.Unmarshaler)
		if target.UnmarshalJSON(encoded) != nil {
			if t == decimalType {
				fields[path] = "must be a decimal number"
			} else {
				fields[path] = "invalid value"
			}
		}
		return
	}

	switch t.Kind() {
	case reflect.Struct:
		object, ok := v.(map[string]any)
		if !ok {
			fields[fieldPath(path)] = "must be an object"
			return
		}
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			name, ok := jsonName(sf)
			if !ok {
				continue
			}
			value, found := lookupKey(object, name)
			if !found {
				continue
			}
			checkJSONTypes(value, sf.Type, joinPath(path, name), fields)
		}
	case reflect.Slice, reflect.Array:
		items, ok := v.([]any)
		if !ok {
			fields[fieldPath(path)] = "must be an array"
			return
		}
		for i, item := range items {
			checkJSONTypes(item, t.Elem(), joinPath(path, strconv.Itoa(i)), fields)
		}
	case reflect.Map:
		object, ok := v.(map[string]any)
		if !ok {
			fields[fieldPath(path)] = "must be an object"
			return
		}
		for key, item := range object {
			checkJSONTypes(item, t.Elem(), joinPath(path, key), fields)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := v.(json.Number)
		if !ok {
			fields[path] = "must be an integer"
			return
		}
		if _, err := strconv.ParseInt(n.String(), 10, t.Bits()); err != nil {
			fields[path] = "must be an integer"
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := v.(json.Number)
		if !ok {
			fields[path] = "must be a non-negative integer"
			return
		}
		if _, err := strconv.ParseUint(n.String(), 10, t.Bits()); err != nil {
			fields[path] = "must be a non-negative integer"
		}
	case reflect.Float32, reflect.Float64:
		if _, ok := v.(json.Number); !ok {
			fields[path] = "must be a number"
		}
	case reflect.String:
		if _, ok := v.(string); !ok {
			fields[path] = "must be a string"
		}
	case reflect.Bool:
		if _, ok := v.(bool); !ok {
			fields[path] = "must be a boolean"
		}
	}
}

func jsonName(sf reflect.StructField) (string, bool) {
	if !sf.IsExported() {
		return "", false
	}
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = sf.Name
	}
	return name, true
}

// lookupKey matches keys the way encoding/json does: exact first, then
// case-insensitive.
func lookupKey(object map[string]any, name string) (any, bool) {
	if v, ok := object[name]; ok {
		return v, true
	}
	for key, v := range object {
		if strings.EqualFold(key, name) {
			return v, true
		}
	}
	return nil, false
}

func joinPath(path string, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func fieldPath(path string) string {
	if path == "" {
		return "body"
	}
	return path
}
