package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chatmesh/event"
)

const maxLineSize = 4 << 20

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Validate and canonicalise an NDJSON event stream",
		Long: `Read loosely typed event objects from stdin, one per line, and write their
canonical form to stdout. Blank lines are skipped. The command stops with an
error at the first line that is not a known, well-formed event.`,
		Example: `  chatmesh normalize < events.ndjson`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return normalizeStream(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func normalizeStream(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(w)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		p, err := event.Normalize(m)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return scanner.Err()
}
