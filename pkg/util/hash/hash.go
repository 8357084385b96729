// Copyright (C) 2021 ScyllaDB

package hash

import (
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
)

const shortLen = 12

func sum(objs ...interface{}) ([]byte, error) {
	hasher := sha512.New()
	encoder := json.NewEncoder(hasher)
	for _, obj := range objs {
		if err := encoder.Encode(obj); err != nil {
			return nil, err
		}
	}
	return hasher.Sum(nil), nil
}

// HashObjects hashes the JSON encoding of objs. Map keys are encoded sorted so
// the result doesn't depend on iteration order.
func HashObjects(objs ...interface{}) (string, error) {
	s, err := sum(objs...)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(s), nil
}

// Short returns a prefix of h suitable for log messages.
func Short(h string) string {
	if len(h) <= shortLen {
		return h
	}
	return h[:shortLen]
}
