package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// The trailing newline is trimmed. If EOF occurs after some input was read,
// the partial line is returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword reads the passphrase from the terminal without echo.
// The caller wipes the returned slice.
func GetPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Enter passphrase: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// GetAssignments reads "path=value" lines until an empty line. The raw
// lines are returned unchanged; see parseAssignment.
func GetAssignments(reader *bufio.Reader, w io.Writer) ([]string, error) {
	if _, err := fmt.Fprintln(w, "Enter fields as section.field=value (empty line to finish)"); err != nil {
		return nil, err
	}

	lines := make([]string, 0)
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
		if err != nil {
			break
		}
	}
	return lines, nil
}

// assignment sets one draft field. A one-element path addresses a
// top-level field (clientName, linkedAssessmentId) or a top-level data key;
// two elements address a field inside a data section.
type assignment struct {
	path  []string
	value any
}

// parseAssignment splits "section.field=value". The value is read as JSON
// when it parses (numbers, booleans, arrays, objects, quoted strings) and
// taken verbatim otherwise.
func parseAssignment(s string) (assignment, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return assignment{}, fmt.Errorf("%w: expected path=value, got %q", common.ErrInvalidArgument, s)
	}
	path := strings.Split(key, ".")
	if len(path) > 2 {
		return assignment{}, fmt.Errorf("%w: path %q is deeper than section.field", common.ErrInvalidArgument, key)
	}
	for _, p := range path {
		if p == "" {
			return assignment{}, fmt.Errorf("%w: empty path element in %q", common.ErrInvalidArgument, key)
		}
	}
	return assignment{path: path, value: parseValue(strings.TrimSpace(raw))}, nil
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
