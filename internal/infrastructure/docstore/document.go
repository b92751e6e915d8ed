// Package docstore implements the directory store on top of memory, Redis and
// SQL backends.
//
// Every backend keeps one JSON document per "collection/id" pair; deeper path
// segments address fields inside that document. A conditional write therefore
// always compares and swaps a single document, which is what each backend can
// do atomically.
package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lotes/backend/internal/domain/directory"
)

// location is a path resolved to its document key and the field path inside
// the document.
type location struct {
	key    string
	fields []string
}

func locate(path string) (location, error) {
	segments, err := directory.Split(path)
	if err != nil {
		return location{}, err
	}
	if len(segments) < 2 {
		return location{}, fmt.Errorf("%w: %q addresses a collection, not a document", directory.ErrInvalidPath, path)
	}
	return location{
		key:    directory.Join(segments[0], segments[1]),
		fields: segments[2:],
	}, nil
}

func validCollection(collection string) error {
	if !directory.ValidSegment(collection) {
		return directory.ErrInvalidPath
	}
	return nil
}

var jsonNull = []byte("null")

// normalize maps JSON null and empty input to nil.
func normalize(v []byte) []byte {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, jsonNull) {
		return nil
	}
	return v
}

// readAt returns the value at fields inside doc, or nil when absent.
func readAt(doc []byte, fields []string) ([]byte, error) {
	doc = normalize(doc)
	for _, f := range fields {
		if doc == nil {
			return nil, nil
		}
		var node map[string]json.RawMessage
		if err := json.Unmarshal(doc, &node); err != nil {
			// A scalar has no children.
			return nil, nil
		}
		doc = normalize(node[f])
	}
	return doc, nil
}

// writeAt returns doc with the value at fields replaced. A nil value removes
// the field; objects left empty are removed too, so the result is nil when
// nothing remains.
func writeAt(doc []byte, fields []string, value []byte) ([]byte, error) {
	value = normalize(value)
	if len(fields) == 0 {
		if value != nil && !json.Valid(value) {
			return nil, fmt.Errorf("docstore: value is not valid JSON")
		}
		return value, nil
	}

	node := map[string]json.RawMessage{}
	if doc = normalize(doc); doc != nil {
		if err := json.Unmarshal(doc, &node); err != nil {
			// Writing below a scalar replaces it with an object.
			node = map[string]json.RawMessage{}
		}
	}

	child, err := writeAt(node[fields[0]], fields[1:], value)
	if err != nil {
		return nil, err
	}
	if child == nil {
		delete(node, fields[0])
	} else {
		node[fields[0]] = child
	}
	if len(node) == 0 {
		return nil, nil
	}
	return json.Marshal(node)
}

// applyMutation runs m against the field addressed by loc inside doc. It
// reports the new document, the value written at the field, and whether the
// mutation accepted.
func applyMutation(doc []byte, loc location, m directory.Mutation) (updated, value, current []byte, ok bool, err error) {
	current, err = readAt(doc, loc.fields)
	if err != nil {
		return nil, nil, nil, false, err
	}
	next, ok := m(current)
	if !ok {
		return nil, nil, current, false, nil
	}
	next = normalize(next)
	updated, err = writeAt(doc, loc.fields, next)
	if err != nil {
		return nil, nil, current, false, err
	}
	return updated, next, current, true, nil
}

// exhausted decides the outcome once every attempt lost its write. The
// mutation runs once more against doc, the latest stored document: if it now
// aborts the transaction is a plain conflict on that value.
func exhausted(doc []byte, loc location, m directory.Mutation) (bool, []byte, error) {
	_, _, current, ok, err := applyMutation(doc, loc, m)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, current, nil
	}
	return false, nil, directory.ErrTooManyAttempts
}

func overwrite(value []byte) directory.Mutation {
	return func([]byte) ([]byte, bool) { return value, true }
}
