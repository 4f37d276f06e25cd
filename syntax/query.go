package syntax

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Query holds compiled S-expression patterns. It can be executed against a
// syntax tree to find matching nodes and return captured names. A Query is
// immutable after NewQuery and safe for concurrent use.
type Query struct {
	patterns []Pattern
	captures []string // capture name by index

	rootCandidatesBySymbol map[Symbol][]int
	rootFallbackCandidates []int
}

// Pattern is a single top-level S-expression pattern in a query.
type Pattern struct {
	steps      []QueryStep
	predicates []QueryPredicate
}

// QueryStep is one matching instruction within a pattern.
type QueryStep struct {
	symbol    Symbol  // canonical kind to match unless wildcard
	wildcard  bool    // (_) matches any named node
	field     FieldID // required field on parent, or fieldNone
	captureID int     // index into Query.captures, or -1 if no capture
	isNamed   bool    // whether we expect a named node
	depth     int     // nesting depth (0 = top-level node in pattern)
	// alternatives lists the branches of [...]. If non-nil, symbol is
	// ignored.
	alternatives []alternativeSymbol
	// textMatch matches anonymous nodes by their type, as in "{{" or ":".
	textMatch string
}

type queryPredicateType uint8

const (
	predicateEq queryPredicateType = iota
	predicateNotEq
	predicateMatch
	predicateNotMatch
	predicateExpr
)

// QueryPredicate is a post-match constraint attached to a pattern.
// Supported forms:
//   - (#eq? @a @b) and (#eq? @a "literal"), likewise #not-eq?
//   - (#match? @a "regex"), likewise #not-match?
//   - (#expr? @a "expression") where the expression sees text, type,
//     start, end, row and named of the capture and yields a bool.
type QueryPredicate struct {
	kind queryPredicateType

	leftCapture  string
	rightCapture string // optional for #eq?
	literal      string // literal, regex or expression source
	regex        *regexp.Regexp
	program      *vm.Program
}

type alternativeSymbol struct {
	symbol    Symbol
	wildcard  bool
	isNamed   bool
	textMatch string
}

// QueryMatch represents a successful pattern match with its captures.
type QueryMatch struct {
	PatternIndex int
	Captures     []QueryCapture
}

// QueryCapture is a single captured node within a match.
type QueryCapture struct {
	Name string
	Node Node
}

// exprEnv is the shape of the environment #expr? programs are compiled
// against.
var exprEnv = map[string]any{
	"text":  "",
	"type":  "",
	"start": 0,
	"end":   0,
	"row":   0,
	"named": false,
}

// NewQuery compiles query source against a language. It returns an error
// wrapping ErrQuerySyntax, ErrUnknownNodeType or ErrUnknownField.
func NewQuery(source string, lang *Language) (*Query, error) {
	p := &queryParser{
		input: source,
		lang:  lang,
		q: &Query{
			captures: []string{},
		},
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	p.q.buildRootPatternIndex()
	return p.q, nil
}

// Execute runs the query against a syntax tree and returns all matches in
// document order.
func (q *Query) Execute(tree *Tree) []QueryMatch {
	return q.ExecuteNode(tree.RootNode())
}

// ExecuteNode runs the query over the subtree rooted at node.
func (q *Query) ExecuteNode(node Node) []QueryMatch {
	if node.IsNull() {
		return nil
	}
	var matches []QueryMatch
	q.walkAndMatch(node, &matches)
	return matches
}

// Captures flattens the captures of every match, in match order.
func (q *Query) Captures(tree *Tree) []QueryCapture {
	var out []QueryCapture
	for _, m := range q.Execute(tree) {
		out = append(out, m.Captures...)
	}
	return out
}

func (q *Query) rootPatternCandidates(sym Symbol) []int {
	if cands, ok := q.rootCandidatesBySymbol[sym]; ok {
		return cands
	}
	return q.rootFallbackCandidates
}

// buildRootPatternIndex groups patterns by the symbols their first step can
// match. Patterns starting with a wildcard or a text match are tried at
// every node.
func (q *Query) buildRootPatternIndex() {
	bySymbol := make(map[Symbol][]int)
	var fallback []int
	for pi, pat := range q.patterns {
		if len(pat.steps) == 0 {
			continue
		}
		syms, ok := pat.steps[0].rootSymbols()
		if !ok {
			fallback = append(fallback, pi)
			continue
		}
		for _, sym := range syms {
			bySymbol[sym] = append(bySymbol[sym], pi)
		}
	}

	q.rootFallbackCandidates = fallback
	q.rootCandidatesBySymbol = make(map[Symbol][]int, len(bySymbol))
	for sym, list := range bySymbol {
		list = append(list, fallback...)
		slices.Sort(list)
		q.rootCandidatesBySymbol[sym] = slices.Compact(list)
	}
}

// rootSymbols lists the symbols the step can match, or reports false when
// it can match nodes of any symbol.
func (s *QueryStep) rootSymbols() ([]Symbol, bool) {
	if len(s.alternatives) == 0 {
		if s.textMatch != "" || s.wildcard {
			return nil, false
		}
		return []Symbol{s.symbol}, true
	}
	syms := make([]Symbol, 0, len(s.alternatives))
	for _, alt := range s.alternatives {
		if alt.textMatch != "" || alt.wildcard {
			return nil, false
		}
		syms = append(syms, alt.symbol)
	}
	return syms, true
}

// walkAndMatch tries the candidate patterns at every node of the subtree,
// in pre-order.
func (q *Query) walkAndMatch(node Node, matches *[]QueryMatch) {
	node.Walk(func(n Node) bool {
		for _, pi := range q.rootPatternCandidates(n.Kind()) {
			pat := &q.patterns[pi]
			if caps, ok := q.matchPattern(pat, n); ok {
				*matches = append(*matches, QueryMatch{
					PatternIndex: pi,
					Captures:     caps,
				})
			}
		}
		return true
	})
}

func (q *Query) matchPattern(pat *Pattern, node Node) ([]QueryCapture, bool) {
	if len(pat.steps) == 0 {
		return nil, false
	}
	var captures []QueryCapture
	if !q.matchSteps(pat.steps, 0, node, &captures) {
		return nil, false
	}
	if !matchesPredicates(pat.predicates, captures) {
		return nil, false
	}
	return captures, true
}

func matchesPredicates(predicates []QueryPredicate, captures []QueryCapture) bool {
	for _, pred := range predicates {
		left, ok := captureNode(pred.leftCapture, captures)
		if !ok {
			return false
		}

		switch pred.kind {
		case predicateEq, predicateNotEq:
			right := pred.literal
			if pred.rightCapture != "" {
				rn, ok := captureNode(pred.rightCapture, captures)
				if !ok {
					return false
				}
				right = rn.Text()
			}
			if (left.Text() == right) != (pred.kind == predicateEq) {
				return false
			}

		case predicateMatch, predicateNotMatch:
			if pred.regex.MatchString(left.Text()) != (pred.kind == predicateMatch) {
				return false
			}

		case predicateExpr:
			out, err := expr.Run(pred.program, map[string]any{
				"text":  left.Text(),
				"type":  left.Type(),
				"start": int(left.StartByte()),
				"end":   int(left.EndByte()),
				"row":   int(left.StartPoint().Row),
				"named": left.IsNamed(),
			})
			if err != nil {
				return false
			}
			if b, ok := out.(bool); !ok || !b {
				return false
			}
		}
	}
	return true
}

func captureNode(name string, captures []QueryCapture) (Node, bool) {
	for _, c := range captures {
		if c.Name == name {
			return c.Node, true
		}
	}
	return Node{}, false
}

// matchSteps matches the step at stepIdx, and the child steps nested under
// it, against node.
func (q *Query) matchSteps(steps []QueryStep, stepIdx int, node Node, captures *[]QueryCapture) bool {
	step := &steps[stepIdx]
	if !nodeMatchesStep(step, node) {
		return false
	}
	if step.captureID >= 0 {
		*captures = append(*captures, QueryCapture{
			Name: q.captures[step.captureID],
			Node: node,
		})
	}

	childDepth := step.depth + 1
	for i := stepIdx + 1; i < len(steps) && steps[i].depth > step.depth; i++ {
		if steps[i].depth != childDepth {
			continue
		}
		child := &steps[i]
		matched := false
		for ci, c := range node.Children() {
			if child.field != fieldNone && node.n.field(ci) != child.field {
				continue
			}
			if !nodeMatchesStep(child, c) {
				continue
			}
			mark := len(*captures)
			if q.matchSteps(steps, i, c, captures) {
				matched = true
				break
			}
			*captures = (*captures)[:mark]
		}
		if !matched {
			return false
		}
	}
	return true
}

func nodeMatchesStep(step *QueryStep, node Node) bool {
	if len(step.alternatives) > 0 {
		for _, alt := range step.alternatives {
			switch {
			case alt.wildcard:
				if node.IsNamed() {
					return true
				}
			case alt.textMatch != "":
				if !node.IsNamed() && node.Type() == alt.textMatch {
					return true
				}
			case node.Kind() == alt.symbol && node.IsNamed() == alt.isNamed:
				return true
			}
		}
		return false
	}
	if step.textMatch != "" {
		return !node.IsNamed() && node.Type() == step.textMatch
	}
	if step.wildcard {
		// (_) matches named nodes, as in the usual query semantics.
		return node.IsNamed()
	}
	if node.Kind() != step.symbol {
		return false
	}
	return !step.isNamed || node.IsNamed()
}

// PatternCount returns the number of patterns in the query.
func (q *Query) PatternCount() int {
	return len(q.patterns)
}

// CaptureNames returns the list of unique capture names used in the query.
func (q *Query) CaptureNames() []string {
	return q.captures
}

// queryParser parses S-expression query source into a Query.
type queryParser struct {
	input string
	pos   int
	lang  *Language
	q     *Query
}

func (p *queryParser) errorf(format string, args ...any) error {
	return ErrQuerySyntax.Wrap(fmt.Errorf(format, args...)).With(slog.Int("offset", p.pos))
}

func (p *queryParser) parse() error {
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.input) {
			break
		}

		ch := p.input[p.pos]
		if ch == '(' && p.pos+1 < len(p.input) && p.input[p.pos+1] == '#' {
			if len(p.q.patterns) == 0 {
				return p.errorf("predicate must follow a pattern at position %d", p.pos)
			}
			pred, err := p.parsePredicate()
			if err != nil {
				return err
			}
			last := &p.q.patterns[len(p.q.patterns)-1]
			last.predicates = append(last.predicates, pred)
			if err := p.validatePatternPredicates(last); err != nil {
				return err
			}
			continue
		}

		var (
			pat *Pattern
			err error
		)
		switch ch {
		case '(':
			pat, err = p.parsePattern(0)
		case '[':
			pat, err = p.parseAlternationPattern(0)
		case '"':
			pat, err = p.parseStringPattern(0)
		default:
			return p.errorf("unexpected character %q at position %d", string(ch), p.pos)
		}
		if err != nil {
			return err
		}
		p.q.patterns = append(p.q.patterns, *pat)
	}
	if len(p.q.patterns) == 0 {
		return p.errorf("query has no patterns")
	}
	return nil
}

// parsePattern parses a parenthesized S-expression pattern. depth is the
// nesting depth for the steps produced.
func (p *queryParser) parsePattern(depth int) (*Pattern, error) {
	if p.pos >= len(p.input) || p.input[p.pos] != '(' {
		return nil, p.errorf("expected '(' at position %d", p.pos)
	}
	p.pos++
	p.skipWhitespaceAndComments()

	pat := &Pattern{}
	var step QueryStep
	if p.pos < len(p.input) && p.input[p.pos] == '"' {
		// ("{{") is the same as "{{".
		text, err := p.readString()
		if err != nil {
			return nil, err
		}
		step = QueryStep{textMatch: text}
	} else {
		nodeType, err := p.readIdentifier()
		if err != nil {
			return nil, p.errorf("expected node type after '(' at position %d: %v", p.pos, err)
		}
		step, err = p.resolveStep(nodeType)
		if err != nil {
			return nil, err
		}
	}
	step.captureID = -1
	step.depth = depth
	pat.steps = append(pat.steps, step)

	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.input) {
			return nil, p.errorf("unexpected end of input, expected ')'")
		}

		ch := p.input[p.pos]
		switch {
		case ch == ')':
			p.pos++
			p.skipWhitespaceAndComments()
			if p.pos < len(p.input) && p.input[p.pos] == '@' {
				capName, err := p.readCapture()
				if err != nil {
					return nil, err
				}
				pat.steps[0].captureID = p.ensureCapture(capName)
			}
			if err := p.validatePatternPredicates(pat); err != nil {
				return nil, err
			}
			return pat, nil

		case ch == '@':
			capName, err := p.readCapture()
			if err != nil {
				return nil, err
			}
			pat.steps[0].captureID = p.ensureCapture(capName)

		case ch == '(' && p.pos+1 < len(p.input) && p.input[p.pos+1] == '#':
			pred, err := p.parsePredicate()
			if err != nil {
				return nil, err
			}
			pat.predicates = append(pat.predicates, pred)

		case ch == '(' || ch == '[' || ch == '"':
			child, err := p.parseChild(depth + 1)
			if err != nil {
				return nil, err
			}
			pat.steps = append(pat.steps, child.steps...)
			pat.predicates = append(pat.predicates, child.predicates...)

		case isQueryIdentStart(ch):
			saved := p.pos
			ident, err := p.readIdentifier()
			if err != nil {
				return nil, err
			}
			p.skipWhitespaceAndComments()
			if p.pos >= len(p.input) || p.input[p.pos] != ':' {
				return nil, p.errorf("unexpected identifier %q at position %d", ident, saved)
			}
			p.pos++
			p.skipWhitespaceAndComments()

			fieldID, err := p.resolveField(ident)
			if err != nil {
				return nil, err
			}
			if p.pos >= len(p.input) {
				return nil, p.errorf("expected child pattern after field %q", ident)
			}
			child, err := p.parseChild(depth + 1)
			if err != nil {
				return nil, err
			}
			child.steps[0].field = fieldID
			pat.steps = append(pat.steps, child.steps...)
			pat.predicates = append(pat.predicates, child.predicates...)

		default:
			return nil, p.errorf("unexpected character %q at position %d", string(ch), p.pos)
		}
	}
}

func (p *queryParser) parseChild(depth int) (*Pattern, error) {
	switch p.input[p.pos] {
	case '(':
		return p.parsePattern(depth)
	case '[':
		return p.parseAlternationPattern(depth)
	case '"':
		return p.parseStringPattern(depth)
	}
	return nil, p.errorf("expected '(' or '[' or '\"' at position %d", p.pos)
}

// parseAlternationPattern parses [...] alternation syntax.
func (p *queryParser) parseAlternationPattern(depth int) (*Pattern, error) {
	if p.pos >= len(p.input) || p.input[p.pos] != '[' {
		return nil, p.errorf("expected '[' at position %d", p.pos)
	}
	p.pos++

	var alts []alternativeSymbol
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.input) {
			return nil, p.errorf("unexpected end of input in alternation")
		}
		if p.input[p.pos] == ']' {
			p.pos++
			break
		}

		switch p.input[p.pos] {
		case '(':
			p.pos++
			p.skipWhitespaceAndComments()
			nodeType, err := p.readIdentifier()
			if err != nil {
				return nil, p.errorf("expected node type in alternation: %v", err)
			}
			p.skipWhitespaceAndComments()
			if p.pos >= len(p.input) || p.input[p.pos] != ')' {
				return nil, p.errorf("expected ')' in alternation at position %d", p.pos)
			}
			p.pos++

			step, err := p.resolveStep(nodeType)
			if err != nil {
				return nil, err
			}
			alts = append(alts, alternativeSymbol{symbol: step.symbol, wildcard: step.wildcard, isNamed: step.isNamed})
		case '"':
			text, err := p.readString()
			if err != nil {
				return nil, err
			}
			alts = append(alts, alternativeSymbol{textMatch: text})
		default:
			return nil, p.errorf("unexpected character %q in alternation at position %d", string(p.input[p.pos]), p.pos)
		}
	}
	if len(alts) == 0 {
		return nil, p.errorf("empty alternation")
	}

	step := QueryStep{
		captureID:    -1,
		depth:        depth,
		alternatives: alts,
	}
	p.skipWhitespaceAndComments()
	if p.pos < len(p.input) && p.input[p.pos] == '@' {
		capName, err := p.readCapture()
		if err != nil {
			return nil, err
		}
		step.captureID = p.ensureCapture(capName)
	}
	return &Pattern{steps: []QueryStep{step}}, nil
}

// parseStringPattern parses a "string" pattern for matching anonymous nodes.
func (p *queryParser) parseStringPattern(depth int) (*Pattern, error) {
	text, err := p.readString()
	if err != nil {
		return nil, err
	}
	step := QueryStep{
		captureID: -1,
		depth:     depth,
		textMatch: text,
	}
	p.skipWhitespaceAndComments()
	if p.pos < len(p.input) && p.input[p.pos] == '@' {
		capName, err := p.readCapture()
		if err != nil {
			return nil, err
		}
		step.captureID = p.ensureCapture(capName)
	}
	return &Pattern{steps: []QueryStep{step}}, nil
}

func (p *queryParser) parsePredicate() (QueryPredicate, error) {
	p.pos++ // '('
	p.skipWhitespaceAndComments()

	name, err := p.readPredicateName()
	if err != nil {
		return QueryPredicate{}, err
	}

	p.skipWhitespaceAndComments()
	left, leftIsCapture, err := p.readPredicateArg()
	if err != nil {
		return QueryPredicate{}, err
	}
	if !leftIsCapture {
		return QueryPredicate{}, p.errorf("first predicate argument must be a capture in %s", name)
	}

	p.skipWhitespaceAndComments()
	right, rightIsCapture, err := p.readPredicateArg()
	if err != nil {
		return QueryPredicate{}, err
	}

	p.skipWhitespaceAndComments()
	if p.pos >= len(p.input) || p.input[p.pos] != ')' {
		return QueryPredicate{}, p.errorf("expected ')' to close predicate at position %d", p.pos)
	}
	p.pos++

	switch name {
	case "#eq?", "#not-eq?":
		pred := QueryPredicate{kind: predicateEq, leftCapture: left}
		if name == "#not-eq?" {
			pred.kind = predicateNotEq
		}
		if rightIsCapture {
			pred.rightCapture = right
		} else {
			pred.literal = right
		}
		return pred, nil

	case "#match?", "#not-match?":
		if rightIsCapture {
			return QueryPredicate{}, p.errorf("%s second argument must be a string literal", name)
		}
		rx, err := regexp.Compile(right)
		if err != nil {
			return QueryPredicate{}, ErrQuerySyntax.Wrap(err).With(slog.String("regex", right))
		}
		pred := QueryPredicate{kind: predicateMatch, leftCapture: left, literal: right, regex: rx}
		if name == "#not-match?" {
			pred.kind = predicateNotMatch
		}
		return pred, nil

	case "#expr?":
		if rightIsCapture {
			return QueryPredicate{}, p.errorf("#expr? second argument must be a string literal")
		}
		program, err := expr.Compile(right, expr.Env(exprEnv), expr.AsBool())
		if err != nil {
			return QueryPredicate{}, ErrQuerySyntax.Wrap(err).With(slog.String("source", right))
		}
		return QueryPredicate{kind: predicateExpr, leftCapture: left, literal: right, program: program}, nil
	}
	return QueryPredicate{}, p.errorf("unsupported predicate %q", name)
}

func (p *queryParser) validatePatternPredicates(pat *Pattern) error {
	if len(pat.predicates) == 0 {
		return nil
	}
	captureSet := make(map[string]struct{})
	for _, s := range pat.steps {
		if s.captureID >= 0 {
			captureSet[p.q.captures[s.captureID]] = struct{}{}
		}
	}
	for _, pred := range pat.predicates {
		if _, ok := captureSet[pred.leftCapture]; !ok {
			return p.errorf("predicate references unknown capture @%s", pred.leftCapture)
		}
		if pred.rightCapture != "" {
			if _, ok := captureSet[pred.rightCapture]; !ok {
				return p.errorf("predicate references unknown capture @%s", pred.rightCapture)
			}
		}
	}
	return nil
}

func (p *queryParser) readPredicateName() (string, error) {
	if p.pos >= len(p.input) || p.input[p.pos] != '#' {
		return "", p.errorf("expected predicate name at position %d", p.pos)
	}
	start := p.pos
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch == ')' || ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos], nil
}

func (p *queryParser) readPredicateArg() (arg string, isCapture bool, err error) {
	if p.pos >= len(p.input) {
		return "", false, p.errorf("expected predicate argument at end of input")
	}
	switch p.input[p.pos] {
	case '@':
		name, err := p.readCapture()
		if err != nil {
			return "", false, err
		}
		return name, true, nil
	case '"':
		text, err := p.readString()
		if err != nil {
			return "", false, err
		}
		return text, false, nil
	}
	return "", false, p.errorf("expected capture or string literal in predicate at position %d", p.pos)
}

// readIdentifier reads a node type, field or capture name.
func (p *queryParser) readIdentifier() (string, error) {
	start := p.pos
	for p.pos < len(p.input) {
		ch := rune(p.input[p.pos])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '.' || ch == '-' {
			p.pos++
		} else {
			break
		}
	}
	if p.pos == start {
		return "", p.errorf("expected identifier at position %d", p.pos)
	}
	return p.input[start:p.pos], nil
}

func (p *queryParser) readCapture() (string, error) {
	p.pos++ // '@'
	name, err := p.readIdentifier()
	if err != nil {
		return "", p.errorf("expected capture name after '@'")
	}
	return name, nil
}

// readString reads a quoted string like "{{". Consumes the quotes.
func (p *queryParser) readString() (string, error) {
	p.pos++ // opening '"'
	var sb strings.Builder
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch == '\\' && p.pos+1 < len(p.input) {
			p.pos++
			sb.WriteByte(p.input[p.pos])
			p.pos++
			continue
		}
		if ch == '"' {
			p.pos++
			return sb.String(), nil
		}
		sb.WriteByte(ch)
		p.pos++
	}
	return "", p.errorf("unterminated string")
}

// skipWhitespaceAndComments skips whitespace and ;-style line comments.
func (p *queryParser) skipWhitespaceAndComments() {
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			p.pos++
			continue
		}
		if ch == ';' {
			for p.pos < len(p.input) && p.input[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		break
	}
}

// resolveStep looks up a node type name. "_" is the wildcard; other names
// resolve to their canonical symbol.
func (p *queryParser) resolveStep(name string) (QueryStep, error) {
	if name == "_" {
		return QueryStep{wildcard: true}, nil
	}
	sym, ok := p.lang.SymbolByName(name)
	if !ok {
		return QueryStep{}, ErrUnknownNodeType.Wrap(fmt.Errorf("%q", name)).With(slog.Int("offset", p.pos))
	}
	sym = p.lang.Canonical(sym)
	return QueryStep{symbol: sym, isNamed: p.lang.SymbolMetadata[sym].Named}, nil
}

func (p *queryParser) resolveField(name string) (FieldID, error) {
	fid, ok := p.lang.FieldByName(name)
	if !ok {
		return fieldNone, ErrUnknownField.Wrap(fmt.Errorf("%q", name)).With(slog.Int("offset", p.pos))
	}
	return fid, nil
}

// ensureCapture returns the index for a capture name, adding it if new.
func (p *queryParser) ensureCapture(name string) int {
	for i, cn := range p.q.captures {
		if cn == name {
			return i
		}
	}
	p.q.captures = append(p.q.captures, name)
	return len(p.q.captures) - 1
}

func isQueryIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}
