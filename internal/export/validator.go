package export

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Validator checks generated output bytes, returning an error when the
// output must not be delivered. All configured validators run even after one
// fails; their diagnostics accumulate on the queue item.
type Validator func(output []byte) error

// WellFormedXML rejects output that is not well-formed XML. It is a
// structural check only, not schema validation.
func WellFormedXML(output []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(output))
	for {
		if _, err := decoder.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("malformed xml: %w", err)
		}
	}
}

// ValidUTF8 rejects output that is not valid UTF-8.
func ValidUTF8(output []byte) error {
	if !utf8.Valid(output) {
		return errors.New("output is not valid utf-8")
	}
	return nil
}

// NotEmpty rejects empty output.
func NotEmpty(output []byte) error {
	if len(bytes.TrimSpace(output)) == 0 {
		return errors.New("output is empty")
	}
	return nil
}
