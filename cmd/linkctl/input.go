package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
)

// openInput opens path, or stdin for "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// readLines returns the non-empty lines of r, skipping # comments.
func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return out, nil
}

// readRequests parses one request per line: either a JSON object with the
// request fields or a bare option name.
func readRequests(r io.Reader) ([]links.Request, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	reqs := make([]links.Request, 0, len(lines))
	for i, line := range lines {
		if !strings.HasPrefix(line, "{") {
			reqs = append(reqs, links.Request{Option: line})
			continue
		}
		var req links.Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if req.Option == "" {
			return nil, fmt.Errorf("line %d: option is required", i+1)
		}
		if req.Vertical != "" {
			if _, ok := links.ParseVertical(req.Vertical); !ok {
				return nil, fmt.Errorf("line %d: unknown vertical %q", i+1, req.Vertical)
			}
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
