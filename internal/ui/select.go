package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrSelectionCanceled = errors.New("selection canceled")

// PromptSelectIndices lists options on out and reads a 1-based selection
// such as "2" or "1,3-5" from in. Returned indices are 0-based.
func PromptSelectIndices(in io.Reader, out io.Writer, prompt string, options []string, allowMulti bool) ([]int, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("no options to select")
	}

	fmt.Fprintln(out, prompt)
	for i, opt := range options {
		fmt.Fprintf(out, "%2d) %s\n", i+1, opt)
	}
	if allowMulti {
		fmt.Fprint(out, "Select (e.g., 1,3-5) or press Enter to cancel: ")
	} else {
		fmt.Fprint(out, "Select (e.g., 1) or press Enter to cancel: ")
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrSelectionCanceled
	}
	return parseSelection(line, len(options), allowMulti)
}

func parseSelection(input string, max int, allowMulti bool) ([]int, error) {
	var result []int
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !allowMulti && strings.Contains(part, "-") {
			return nil, fmt.Errorf("range selection not allowed")
		}
		start, end, err := parseSpan(part, max)
		if err != nil {
			return nil, err
		}
		for i := start; i <= end; i++ {
			result = append(result, i-1)
		}
	}

	result = dedupe(result)
	if len(result) == 0 {
		return nil, fmt.Errorf("no selection made")
	}
	if !allowMulti && len(result) > 1 {
		return nil, fmt.Errorf("multiple selections not allowed")
	}
	return result, nil
}

// parseSpan reads "n" or "a-b" and checks the bounds against max.
func parseSpan(part string, max int) (int, int, error) {
	lo, hi, isRange := strings.Cut(part, "-")
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid selection: %s", part)
	}
	end := start
	if isRange {
		if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
			return 0, 0, fmt.Errorf("invalid selection: %s", part)
		}
	}
	if start < 1 || end > max || start > end {
		return 0, 0, fmt.Errorf("selection out of range: %s", part)
	}
	return start, end, nil
}

func dedupe(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
