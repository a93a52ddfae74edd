package consensus

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/kvlabel/internal/common"
	"github.com/Veraticus/kvlabel/internal/model"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

type vocabularyFile struct {
	Unclear    string              `yaml:"unclear"`
	Categories []model.Category    `yaml:"categories"`
	Synonyms   map[string][]string `yaml:"synonyms"`
}

// Vocabulary resolves raw classifier labels onto the closed category set.
// It is built once and never modified, so lookups are safe from any goroutine.
type Vocabulary struct {
	lookup     map[string]model.Category
	categories []model.Category
	unclear    model.Category
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() (*Vocabulary, error) {
	return LoadVocabulary(bytes.NewReader(defaultVocabularyYAML))
}

// LoadVocabularyFile reads a vocabulary from a YAML file.
func LoadVocabularyFile(path string) (*Vocabulary, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied vocabulary path
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadVocabulary(f)
}

// LoadVocabulary parses and validates a YAML vocabulary.
func LoadVocabulary(r io.Reader) (*Vocabulary, error) {
	var file vocabularyFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	return newVocabulary(file)
}

func newVocabulary(file vocabularyFile) (*Vocabulary, error) {
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("%w: vocabulary has no categories", common.ErrInvalidConfig)
	}

	v := &Vocabulary{
		lookup:     make(map[string]model.Category),
		categories: make([]model.Category, 0, len(file.Categories)),
	}

	add := func(label string, cat model.Category) error {
		key := CanonicalLabel(label)
		if key == "" {
			return fmt.Errorf("%w: empty label for %q", common.ErrInvalidConfig, cat.Name)
		}
		if existing, ok := v.lookup[key]; ok && existing.Name != cat.Name {
			return fmt.Errorf("%w: label %q maps to both %q and %q",
				common.ErrInvalidConfig, label, existing.Name, cat.Name)
		}
		v.lookup[key] = cat
		return nil
	}

	for _, cat := range file.Categories {
		cat.Name = strings.TrimSpace(cat.Name)
		cat.Group = strings.TrimSpace(cat.Group)
		if err := add(cat.Name, cat); err != nil {
			return nil, err
		}
		v.categories = append(v.categories, cat)
	}

	if file.Unclear != "" {
		v.unclear = model.Category{Name: strings.TrimSpace(file.Unclear)}
		if err := add(v.unclear.Name, v.unclear); err != nil {
			return nil, err
		}
	}

	for target, labels := range file.Synonyms {
		cat, ok := v.lookup[CanonicalLabel(target)]
		if !ok {
			return nil, fmt.Errorf("%w: synonyms target unknown category %q", common.ErrInvalidConfig, target)
		}
		for _, label := range labels {
			if err := add(label, cat); err != nil {
				return nil, err
			}
		}
	}

	return v, nil
}

// CanonicalLabel folds a raw label for lookup: Unicode compatibility
// normalization, surrounding quotes and punctuation removed, inner whitespace
// collapsed, lowercased.
func CanonicalLabel(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.Trim(s, " \t\r\n'\"`[](){}.,;:*")
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

// Resolve maps a raw label to its category by exact match or synonym.
func (v *Vocabulary) Resolve(raw string) (model.Category, bool) {
	cat, ok := v.lookup[CanonicalLabel(raw)]
	return cat, ok
}

// Categories returns the vocabulary categories in file order, without the
// unclear label.
func (v *Vocabulary) Categories() []model.Category {
	out := make([]model.Category, len(v.categories))
	copy(out, v.categories)
	return out
}

// Unclear returns the name of the catch-all label, or "" if none is configured.
func (v *Vocabulary) Unclear() string {
	return v.unclear.Name
}

// Group returns the ontology group of a category name.
func (v *Vocabulary) Group(name string) string {
	for _, c := range v.categories {
		if c.Name == name {
			return c.Group
		}
	}
	return ""
}
