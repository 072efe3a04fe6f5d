package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

// maxTruncation is how many trailing characters a bank may cut off a
// suburb name.
const maxTruncation = 5

// postSuburb matches what follows a suburb on a card line: up to two
// (possibly truncated) state codes and one or two country codes.
const postSuburb = `\s*(nsw|ns|vic|vi|qld|ql|act|ac|nt|wa|tas|ta|sa)?\s*(nsw|ns|vic|vi|qld|ql|act|ac|nt|wa|tas|ta|sa)?\s*(au|aus|us|usa)?\s*(au|aus|us|usa)\s*$`

var (
	postSuburbAnchored = regexp.MustCompile(`^` + postSuburb)
	postSuburbAnywhere = regexp.MustCompile(postSuburb)
	parenthesised      = regexp.MustCompile(`\(.*\)`)
)

// Locator splits the trailing merchant location, e.g. "ULTIMO NSW AU",
// off a card description.
type Locator struct {
	suburbs   map[string]bool
	lengths   []int // distinct suburb lengths, longest first
	truncated map[string]bool
}

type suburbRow struct {
	Suburb string `csv:"Official Name Suburb"`
}

// LoadLocator reads suburb names from a ';' separated gazetteer export with
// an "Official Name Suburb" column. Parenthesised qualifiers such as
// "Ultimo (NSW)" are dropped.
func LoadLocator(path string) (*Locator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open suburbs file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows []*suburbRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return NewLocator(nil), nil
		}
		return nil, fmt.Errorf("read suburbs file %s: %w", path, err)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			names = append(names, row.Suburb)
		}
	}
	return NewLocator(names), nil
}

// NewLocator builds a locator over the given suburb names.
func NewLocator(names []string) *Locator {
	l := &Locator{suburbs: map[string]bool{}, truncated: map[string]bool{}}
	seenLen := map[int]bool{}

	for _, name := range names {
		name = strings.TrimSpace(parenthesised.ReplaceAllString(name, ""))
		if name == "" {
			continue
		}
		lower := asciiLower(name)
		l.suburbs[lower] = true
		if !seenLen[len(lower)] {
			seenLen[len(lower)] = true
			l.lengths = append(l.lengths, len(lower))
		}

		for i := 1; i <= maxTruncation && i < len(lower); i++ {
			cut := lower[:len(lower)-i]
			if len(cut) <= 3 || strings.HasSuffix(cut, " ") || isCompassPoint(cut) {
				break
			}
			l.truncated[cut] = true
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(l.lengths)))
	return l
}

// Split returns the description without its location and the location
// itself. When no location is recognised the description comes back
// unchanged with an empty location.
func (l *Locator) Split(desc string) (string, string) {
	if l == nil || len(l.suburbs) == 0 {
		return desc, ""
	}
	lower := asciiLower(desc)

	// a suburb counts only when a state/country tail follows it; otherwise
	// keep looking after it
	for from := 0; from < len(lower); {
		start, end, ok := l.findSuburb(lower, from)
		if !ok {
			break
		}
		if postSuburbAnchored.MatchString(lower[end:]) {
			return strings.TrimSpace(desc[:start]), strings.TrimSpace(desc[start:])
		}
		from = end
	}

	// the suburb may have been cut short to fit the line
	loc := postSuburbAnywhere.FindStringIndex(lower)
	if loc == nil {
		return desc, ""
	}
	head := strings.TrimRight(lower[:loc[0]], " \t")
	for i := 0; i < len(head); i++ {
		if l.truncated[head[i:]] {
			return strings.TrimSpace(desc[:i]), strings.TrimSpace(desc[i:])
		}
	}
	return desc, ""
}

// findSuburb returns the leftmost suburb occurrence at or after from,
// preferring the longest name at a given position.
func (l *Locator) findSuburb(lower string, from int) (int, int, bool) {
	for pos := from; pos < len(lower); pos++ {
		for _, n := range l.lengths {
			if pos+n <= len(lower) && l.suburbs[lower[pos:pos+n]] {
				return pos, pos + n, true
			}
		}
	}
	return 0, 0, false
}

func isCompassPoint(s string) bool {
	switch s {
	case "north", "south", "east", "west":
		return true
	}
	return false
}

// asciiLower lower-cases ASCII letters only, so byte offsets into the
// result are valid offsets into the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
