package utils

import (
	"encoding/json"
	"errors"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ErrUnparseable is returned by SmartParse when every strategy rejects the input.
var ErrUnparseable = errors.New("completion answer is not parseable JSON")

// SmartParse decodes a completion answer into target, trying strict JSON,
// then json-repair (unquoted keys, single quotes, trailing commas, unclosed
// brackets), then Hjson.
func SmartParse(input string, target interface{}) error {
	strictErr := json.Unmarshal([]byte(input), target)
	if strictErr == nil {
		return nil
	}

	for _, fix := range []func(string) (string, error){repairJSON, hjsonToJSON} {
		fixed, err := fix(input)
		if err != nil {
			continue
		}
		if json.Unmarshal([]byte(fixed), target) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrUnparseable, strictErr)
}

func repairJSON(s string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(s)
	if err != nil {
		return "", fmt.Errorf("repair json: %w", err)
	}
	return repaired, nil
}

func hjsonToJSON(s string) (string, error) {
	var v interface{}
	if err := hjson.Unmarshal([]byte(s), &v); err != nil {
		return "", fmt.Errorf("parse hjson: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("re-encode hjson: %w", err)
	}
	return string(out), nil
}
