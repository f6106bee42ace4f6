package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*
var schemaFiles embed.FS

func loadSchemaFile(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Path)
}

func init() {
	jsonschema.Loaders["embedFS"] = loadSchemaFile
}

// Validate checks r (the raw config file contents) against
// config.schema.json.
func Validate(r io.Reader) error {
	s, err := jsonschema.Compile("embedFS://schemas/config.schema.json")
	if err != nil {
		return err
	}

	var v any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return fmt.Errorf("config: decoding for validation: %w", err)
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("config: schema validation: %w", err)
	}
	return nil
}
