// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package tableutil parses the text tables and key/value blocks printed by switch CLIs.
package tableutil

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNoTable = errors.New("no table found")

// Row is a single table row keyed by column header.
type Row map[string]string

type span struct {
	start, end int
}

func isSeparator(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !strings.Contains(trimmed, "-") {
		return false
	}

	return strings.Trim(trimmed, "- ") == ""
}

func isGridBorder(line string) bool {
	trimmed := strings.TrimSpace(line)

	return strings.HasPrefix(trimmed, "+") && strings.Trim(trimmed, "+-=") == ""
}

// ParseTable parses the first table in out. Both the "simple" tabulate layout
// (header line followed by a line of dashes) and the "grid" layout (+---+
// borders with | separated cells) are supported.
func ParseTable(out string) ([]Row, error) {
	lines := strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n")

	for idx, line := range lines {
		if isGridBorder(line) {
			return parseGrid(lines[idx:])
		}
		if isSeparator(line) && idx > 0 && strings.TrimSpace(lines[idx-1]) != "" {
			return parseSimple(lines[idx-1], line, lines[idx+1:]), nil
		}
	}

	return nil, ErrNoTable
}

func spans(sep string) []span {
	res := []span{}
	start := -1
	runes := []rune(sep)
	for idx, ch := range runes {
		if ch == '-' && start < 0 {
			start = idx
		}
		if ch != '-' && start >= 0 {
			res = append(res, span{start, idx})
			start = -1
		}
	}
	if start >= 0 {
		res = append(res, span{start, len(runes)})
	}

	return res
}

// cell returns the text of column idx, a cell extends up to the start of the next column.
// Offsets are in runes, so that non-ASCII cells keep their columns.
func cell(line []rune, cols []span, idx int) string {
	start := cols[idx].start
	if start >= len(line) {
		return ""
	}
	end := len(line)
	if idx+1 < len(cols) && cols[idx+1].start < end {
		end = cols[idx+1].start
	}

	return strings.TrimSpace(string(line[start:end]))
}

// fits reports whether the line has only spaces between the columns. Lines
// printed after a table (e.g. "Total number of entries 2") run through the gaps.
func fits(line []rune, cols []span) bool {
	for idx := 0; idx+1 < len(cols); idx++ {
		for pos := cols[idx].end; pos < cols[idx+1].start && pos < len(line); pos++ {
			if line[pos] != ' ' {
				return false
			}
		}
	}

	return true
}

func parseSimple(header, sep string, body []string) []Row {
	cols := spans(sep)
	headerRunes := []rune(header)
	names := make([]string, len(cols))
	for idx := range cols {
		names[idx] = cell(headerRunes, cols, idx)
	}

	rows := []Row{}
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			break
		}
		if isSeparator(line) {
			continue
		}

		runes := []rune(line)
		if !fits(runes, cols) {
			break
		}

		row := Row{}
		for idx, name := range names {
			row[name] = cell(runes, cols, idx)
		}
		rows = append(rows, row)
	}

	return rows
}

func gridCells(line string) []string {
	trimmed := strings.Trim(strings.TrimSpace(line), "|")
	parts := strings.Split(trimmed, "|")
	for idx := range parts {
		parts[idx] = strings.TrimSpace(parts[idx])
	}

	return parts
}

func parseGrid(lines []string) ([]Row, error) {
	var names []string
	rows := []Row{}

	for _, line := range lines[1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			break
		}
		if isGridBorder(trimmed) {
			continue
		}
		if !strings.HasPrefix(trimmed, "|") {
			break
		}

		cells := gridCells(trimmed)
		if names == nil {
			names = cells

			continue
		}

		row := Row{}
		for idx, name := range names {
			if idx < len(cells) {
				row[name] = cells[idx]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	if names == nil {
		return nil, fmt.Errorf("grid table without header: %w", ErrNoTable)
	}

	return rows, nil
}

// FillDown carries the last non-empty value of each of cols forward into
// blank cells, for tables that print a group value only on its first row.
func FillDown(rows []Row, cols ...string) {
	last := map[string]string{}
	for _, row := range rows {
		for _, col := range cols {
			if row[col] == "" {
				row[col] = last[col]
			} else {
				last[col] = row[col]
			}
		}
	}
}

// ParseKeyValue parses "Key<sep> value" lines, several pairs may share a line
// separated by commas.
func ParseKeyValue(out, sep string) map[string]string {
	res := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		pairs := []string{line}
		if strings.Count(line, sep) > 1 {
			pairs = strings.Split(line, ",")
		}

		for _, pair := range pairs {
			key, value, ok := strings.Cut(pair, sep)
			if !ok {
				continue
			}

			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			res[key] = strings.TrimSpace(value)
		}
	}

	return res
}

// ExtractJSON strips everything (usually warnings) before the first JSON object or array.
func ExtractJSON(out string) ([]byte, error) {
	idx := strings.IndexAny(out, "{[")
	if idx < 0 {
		return nil, fmt.Errorf("no json in output") //nolint:goerr113
	}

	return []byte(strings.TrimSpace(out[idx:])), nil
}
