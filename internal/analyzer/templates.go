package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Wildcard replaces variable tokens in a template.
const Wildcard = "<*>"

// Template is a message shape shared by similar log messages
// (e.g. "Received block <*> of size <*>").
type Template struct {
	ID       string   `json:"id"`
	Pattern  string   `json:"pattern"`
	Count    int      `json:"count"`
	Examples []string `json:"examples,omitempty"`
	tokens   []string
}

// TemplateMiner groups messages into templates with a fixed-depth parse
// tree. The first level splits by token count, the next depth-1 levels by
// leading tokens; at a leaf, a message joins the first template whose
// positional token similarity reaches the threshold, otherwise it starts a
// new one.
type TemplateMiner struct {
	root         *treeNode
	depth        int
	simThreshold float64
	maxChildren  int
	maxExamples  int
	templates    []*Template
}

type treeNode struct {
	children  map[string]*treeNode
	templates []*Template
}

func newTreeNode() *treeNode {
	return &treeNode{children: make(map[string]*treeNode)}
}

// Template miner defaults.
const (
	DefaultTemplateDepth      = 4
	DefaultTemplateSimilarity = 0.5
	DefaultTemplateChildren   = 100
)

// NewTemplateMiner creates a miner. Non-positive arguments (or a similarity
// above 1) select the defaults.
func NewTemplateMiner(depth int, simThreshold float64, maxChildren int) *TemplateMiner {
	if depth <= 0 {
		depth = DefaultTemplateDepth
	}
	if simThreshold <= 0 || simThreshold > 1 {
		simThreshold = DefaultTemplateSimilarity
	}
	if maxChildren <= 0 {
		maxChildren = DefaultTemplateChildren
	}
	return &TemplateMiner{
		root:         newTreeNode(),
		depth:        depth,
		simThreshold: simThreshold,
		maxChildren:  maxChildren,
		maxExamples:  3,
	}
}

// Add assigns message to a template and returns the template ID.
// Empty messages are ignored and yield "".
func (m *TemplateMiner) Add(message string) string {
	tokens := strings.Fields(message)
	if len(tokens) == 0 {
		return ""
	}

	leaf := m.leaf(tokens)

	for _, t := range leaf.templates {
		if similarity(tokens, t.tokens) >= m.simThreshold {
			t.tokens = merge(t.tokens, tokens)
			t.Pattern = strings.Join(t.tokens, " ")
			m.record(t, message)
			return t.ID
		}
	}

	shape := make([]string, len(tokens))
	for i, tok := range tokens {
		if isVariable(tok) {
			tok = Wildcard
		}
		shape[i] = tok
	}
	t := &Template{
		ID:      fmt.Sprintf("T_%d", len(m.templates)+1),
		Pattern: strings.Join(shape, " "),
		tokens:  shape,
	}
	m.templates = append(m.templates, t)
	leaf.templates = append(leaf.templates, t)
	m.record(t, message)
	return t.ID
}

func (m *TemplateMiner) record(t *Template, message string) {
	t.Count++
	if len(t.Examples) < m.maxExamples {
		t.Examples = append(t.Examples, message)
	}
}

// leaf walks, creating as needed, the tree path for tokens.
func (m *TemplateMiner) leaf(tokens []string) *treeNode {
	node := m.child(m.root, fmt.Sprintf("len_%d", len(tokens)), false)
	for i := 0; i < len(tokens) && i < m.depth-1; i++ {
		tok := tokens[i]
		if isVariable(tok) {
			tok = Wildcard
		}
		node = m.child(node, tok, true)
	}
	return node
}

func (m *TemplateMiner) child(node *treeNode, key string, limited bool) *treeNode {
	if next, ok := node.children[key]; ok {
		return next
	}
	// A full node routes new tokens to its wildcard child.
	if limited && len(node.children) >= m.maxChildren {
		key = Wildcard
		if next, ok := node.children[key]; ok {
			return next
		}
	}
	next := newTreeNode()
	node.children[key] = next
	return next
}

// Templates returns all templates sorted by count, most frequent first.
func (m *TemplateMiner) Templates() []Template {
	out := make([]Template, len(m.templates))
	for i, t := range m.templates {
		out[i] = *t
		out[i].Examples = append([]string(nil), t.Examples...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// Len returns the number of templates.
func (m *TemplateMiner) Len() int {
	return len(m.templates)
}

// Reset discards every template.
func (m *TemplateMiner) Reset() {
	m.root = newTreeNode()
	m.templates = nil
}

// Templates mines messages and returns the topN most frequent templates.
// topN <= 0 returns all of them.
func (a *Analyzer) Templates(messages []string, topN int) []Template {
	m := NewTemplateMiner(0, 0, 0)
	for _, msg := range messages {
		m.Add(msg)
	}
	out := m.Templates()
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

var variablePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^-?\d+(\.\d+)?$`),
	regexp.MustCompile(`^0[xX][0-9a-fA-F]+$`),
	regexp.MustCompile(`^/?\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(:\d+)?$`),
	regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`^blk_-?\d+$`),
}

// isVariable reports whether a token looks like a value rather than text:
// numbers, hex, IPs, UUIDs, ISO timestamps, HDFS block ids and long paths.
func isVariable(token string) bool {
	for _, re := range variablePatterns {
		if re.MatchString(token) {
			return true
		}
	}
	return strings.HasPrefix(token, "/") && len(token) > 20
}

// similarity is the fraction of positions where the two sequences agree,
// counting wildcards as matches, over the longer length.
func similarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 || len(a) == 0 || len(b) == 0 {
		return 0
	}

	matches := 0
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == Wildcard || b[i] == Wildcard || a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(longest)
}

// merge turns every position where the sequences differ into a wildcard.
func merge(existing, tokens []string) []string {
	n := len(existing)
	if len(tokens) > n {
		n = len(tokens)
	}
	out := make([]string, n)
	for i := range out {
		if i < len(existing) && i < len(tokens) && existing[i] == tokens[i] {
			out[i] = existing[i]
		} else {
			out[i] = Wildcard
		}
	}
	return out
}
