package format

import (
	"encoding/json"
	"fmt"
	"io"
)

// Names of the supported output formats.
const (
	Text     = "text"
	JSON     = "json"
	Markdown = "markdown"
)

// Valid reports whether name is a known output format.
func Valid(name string) bool {
	switch name {
	case Text, JSON, Markdown:
		return true
	}
	return false
}

// WriteJSON writes v as strict JSON followed by a newline.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}
