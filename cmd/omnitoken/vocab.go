package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newVocabCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Export the token to id mapping in id order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if format != "json" && format != "yaml" {
				return fmt.Errorf("--format must be 'json' or 'yaml'")
			}

			tok, err := loadModel(cfg)
			if err != nil {
				return err
			}

			tokens, err := tok.Tokens()
			if err != nil {
				return err
			}

			if format == "yaml" {
				return writeVocabYAML(cmd.OutOrStdout(), tokens)
			}
			return writeVocabJSON(cmd.OutOrStdout(), tokens)
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json|yaml")

	return cmd
}

// writeVocabJSON writes {"token": id, ...} with keys in id order.
func writeVocabJSON(w io.Writer, tokens []string) error {
	var key bytes.Buffer
	enc := json.NewEncoder(&key)
	enc.SetEscapeHTML(false)

	buf := []byte("{\n")
	for id, tok := range tokens {
		key.Reset()
		if err := enc.Encode(tok); err != nil {
			return err
		}
		buf = append(buf, "  "...)
		buf = append(buf, bytes.TrimSuffix(key.Bytes(), []byte("\n"))...)
		buf = append(buf, ": "...)
		buf = strconv.AppendInt(buf, int64(id), 10)
		if id < len(tokens)-1 {
			buf = append(buf, ',')
		}
		buf = append(buf, '\n')
	}
	buf = append(buf, "}\n"...)

	_, err := w.Write(buf)
	return err
}

// writeVocabYAML writes a token: id mapping with keys in id order.
func writeVocabYAML(w io.Writer, tokens []string) error {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for id, tok := range tokens {
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: tok},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(id)},
		)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{m}}); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
