package review

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/kozaktomas/photo-dedupe/internal/grouper"
	"github.com/kozaktomas/photo-dedupe/internal/library"
)

// Prompt is a line-oriented terminal Reviewer. For each cluster it lists the
// members and reads a "remove list": whitespace separated member numbers,
// "n" or an empty line to keep everything, or "q" to stop reviewing.
type Prompt struct {
	in  *bufio.Reader
	out io.Writer

	// Hyperlinks renders member names as clickable file:// links.
	Hyperlinks bool
}

func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

func (p *Prompt) Review(ctx context.Context, view ClusterView) (Decision, error) {
	fmt.Fprintf(p.out, "\nCluster %d/%d\n", view.Index+1, view.Total)
	for i, m := range view.Cluster.Members {
		name := m.ID.String()
		if p.Hyperlinks && i < len(view.Paths) && view.Paths[i] != "" {
			name = FileLink(view.Paths[i], name)
		}
		fmt.Fprintf(p.out, "  [%d] %s (distance %d)\n", i, name, m.Distance)
	}

	for {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		fmt.Fprint(p.out, "remove list: ")

		line, err := p.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Decision{}, err
		}
		if errors.Is(err, io.EOF) && line == "" {
			fmt.Fprintln(p.out)
			return Decision{Quit: true}, nil
		}

		d, perr := ParseSelection(line, view.Cluster)
		if perr != nil {
			fmt.Fprintf(p.out, "invalid input: %v\n", perr)
			continue
		}
		return d, nil
	}
}

// ParseSelection turns a remove list into a Decision for c.
func ParseSelection(line string, c grouper.Cluster) (Decision, error) {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "", "n":
		return Decision{}, nil
	case "q":
		return Decision{Quit: true}, nil
	}

	var ids []library.Identity
	seen := make(map[int]bool)
	for _, field := range strings.Fields(line) {
		n, err := strconv.Atoi(field)
		if err != nil {
			return Decision{}, fmt.Errorf("%q is not a member number", field)
		}
		if n < 0 || n >= len(c.Members) {
			return Decision{}, fmt.Errorf("member %d out of range 0-%d", n, len(c.Members)-1)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		ids = append(ids, c.Members[n].ID)
	}
	return Decision{Delete: ids}, nil
}

// FileLink returns an OSC 8 hyperlink for terminal emulators that opens the
// file at path and displays text.
func FileLink(path, text string) string {
	u := url.URL{Scheme: "file", Path: path}
	// OSC 8 hyperlink format: \e]8;;URL\e\\TEXT\e]8;;\e\\
	return "\x1b]8;;" + u.String() + "\x1b\\" + text + "\x1b]8;;\x1b\\"
}
