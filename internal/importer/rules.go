package importer

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// pair is one entry of an ordered YAML mapping.
type pair struct {
	Key   string
	Value string
}

// orderedMap keeps YAML mapping entries in file order, so the first
// matching prefix or pattern wins the way it was written.
type orderedMap []pair

func (m *orderedMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	out := make(orderedMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key, value string
		if err := node.Content[i].Decode(&key); err != nil {
			return fmt.Errorf("line %d: %w", node.Content[i].Line, err)
		}
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", node.Content[i+1].Line, err)
		}
		out = append(out, pair{Key: key, Value: value})
	}
	*m = out
	return nil
}

// rulesFile is the on-disk layout of the categorisation rules.
type rulesFile struct {
	DisplayNames  map[string]string  `yaml:"display_names"`
	StartsWith    []string           `yaml:"starts_with"`
	StartsWithMap orderedMap         `yaml:"starts_with_map"`
	Regex         orderedMap         `yaml:"regex"`
	Categories    map[string]*string `yaml:"categories"`
}

type regexRule struct {
	re   *regexp.Regexp
	name string
}

// Rules turn raw statement descriptions into display names and categories.
type Rules struct {
	displayNames  map[string]string
	startsWith    []string
	startsWithMap orderedMap
	regex         []regexRule
	categories    map[string]string
}

// LoadRules reads rules from a YAML file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes YAML rules and compiles their patterns. Patterns are
// matched case-insensitively.
func ParseRules(data []byte) (*Rules, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	r := &Rules{
		displayNames:  f.DisplayNames,
		startsWith:    f.StartsWith,
		startsWithMap: f.StartsWithMap,
		categories:    map[string]string{},
	}
	if r.displayNames == nil {
		r.displayNames = map[string]string{}
	}
	for _, p := range f.Regex {
		re, err := regexp.Compile("(?i)" + p.Key)
		if err != nil {
			return nil, fmt.Errorf("regex %q: %w", p.Key, err)
		}
		r.regex = append(r.regex, regexRule{re: re, name: p.Value})
	}
	// a null category leaves the description uncategorised
	for name, cat := range f.Categories {
		if cat != nil && strings.TrimSpace(*cat) != "" {
			r.categories[name] = strings.TrimSpace(*cat)
		}
	}
	return r, nil
}

// Describe maps a cleaned description to its display name. The second
// result reports whether a rule matched; unmatched descriptions come back
// title-cased.
//
// Precedence: exact display name, then known prefixes, then the prefix
// map, then regular expressions.
func (r *Rules) Describe(desc string) (string, bool) {
	if name, ok := r.displayNames[desc]; ok {
		return name, true
	}

	lower := strings.ToLower(desc)
	for _, s := range r.startsWith {
		if strings.HasPrefix(lower, strings.ToLower(s)) {
			return s, true
		}
	}
	for _, p := range r.startsWithMap {
		if strings.HasPrefix(lower, strings.ToLower(p.Key)) {
			return p.Value, true
		}
	}
	for _, rule := range r.regex {
		if rule.re.MatchString(desc) {
			return rule.name, true
		}
	}
	return titleCase(desc), false
}

// Category returns the category for a display name, or "".
func (r *Rules) Category(name string) string {
	return r.categories[name]
}

// Categories lists every distinct category the rules can assign.
func (r *Rules) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range r.categories {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "7-ELEVEN SYDNEY" becomes "7-Eleven Sydney".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
