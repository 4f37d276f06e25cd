package syntax

// item is one symbol on the right-hand side of a production.
type item struct {
	sym   Symbol
	field FieldID
}

// production is one alternative of a nonterminal. suffixFirst[i] and
// suffixNullable[i] describe items[i:]; index len(items) is the empty suffix.
type production struct {
	items          []item
	suffixFirst    []TokenSet
	suffixNullable []bool
}

type ruleDef struct {
	sym  Symbol
	alts [][]item
}

func sym(s Symbol) item                     { return item{sym: s} }
func field(id FieldID, s Symbol) item       { return item{sym: s, field: id} }
func alt(items ...item) []item              { return items }
func rule(s Symbol, alts ...[]item) ruleDef { return ruleDef{sym: s, alts: alts} }

// empty is the epsilon alternative. It must be listed last: the predict table
// never selects it, a nullable nonterminal with no predicted alternative is
// simply skipped.
var empty = alt()

func symbolMetadata() []SymbolMetadata {
	md := make([]SymbolMetadata, symbolCount)
	anon := func(s Symbol, name string) { md[s] = SymbolMetadata{Name: name, Visible: true, Alias: s} }
	named := func(s Symbol, name string) { md[s] = SymbolMetadata{Name: name, Visible: true, Named: true, Alias: s} }
	hidden := func(s Symbol, name string) { md[s] = SymbolMetadata{Name: name, Alias: s} }
	alias := func(s Symbol, name string, to Symbol) {
		md[s] = SymbolMetadata{Name: name, Visible: true, Named: true, Alias: to}
	}

	anon(SymEnd, "end")
	anon(SymLBrace, "{")
	anon(SymRBrace, "}")
	anon(SymLBracket, "[")
	anon(SymRBracket, "]")
	anon(SymColon, ":")
	anon(SymComma, ",")
	alias(SymStringLiteral, "string_literal", SymString)
	anon(SymQuote, `"`)
	anon(SymStringContent, "string_content")
	named(SymNumber, "number")
	named(SymTrue, "true")
	named(SymFalse, "false")
	named(SymNull, "null")
	named(SymIdentifier, "identifier")
	named(SymText, "text")
	named(SymComment, "comment")
	md[SymComment].Extra = true
	anon(SymWhitespace, "whitespace")
	md[SymWhitespace].Extra = true
	anon(SymTagOpen, "{{")
	anon(SymTagClose, "}}")
	anon(SymTripleOpen, "{{{")
	anon(SymTripleClose, "}}}")
	anon(SymAmpersandOpen, "{{&")
	anon(SymSectionOpen, "{{#")
	anon(SymInvertedOpen, "{{^")
	anon(SymCloseOpen, "{{/")
	anon(SymPartialOpen, "{{>")
	anon(SymCommentOpen, "{{!")
	anon(SymDelimiterOpen, "{{=")
	anon(SymDelimiterClose, "=}}")
	anon(SymTagName, "tag_name")
	anon(SymPipe, "|")
	anon(SymCommentText, "comment_text")
	anon(SymDelimiterSpec, "delimiters")
	anon(SymLexError, "lex_error")

	named(SymDocument, "document")
	named(SymObject, "object")
	named(SymPair, "pair")
	named(SymArray, "array")
	named(SymString, "string")
	named(SymMustacheVariable, "mustache_variable")
	named(SymMustacheUnescaped, "mustache_unescaped")
	named(SymMustachePartial, "mustache_partial")
	named(SymMustacheComment, "mustache_comment")
	named(SymMustacheSetDelimiter, "mustache_set_delimiter")
	named(SymMustacheSection, "mustache_section")
	named(SymMustacheInvertedSection, "mustache_inverted_section")
	named(SymMustacheSectionOpen, "mustache_section_open")
	named(SymMustacheInvertedSectionOpen, "mustache_inverted_section_open")
	named(SymMustacheSectionClose, "mustache_section_close")
	named(SymSectionParameters, "section_parameters")
	named(SymError, "ERROR")

	alias(symObjectSection, "mustache_section", SymMustacheSection)
	alias(symObjectInvertedSection, "mustache_inverted_section", SymMustacheInvertedSection)
	alias(symArraySection, "mustache_section", SymMustacheSection)
	alias(symArrayInvertedSection, "mustache_inverted_section", SymMustacheInvertedSection)
	alias(symStringSection, "mustache_section", SymMustacheSection)
	alias(symStringInvertedSection, "mustache_inverted_section", SymMustacheInvertedSection)

	hidden(symContentList, "_content_list")
	hidden(symContent, "_content")
	hidden(symValue, "_value")
	hidden(symStringValue, "_string")
	hidden(symValueSections, "_value_sections")
	hidden(symMoreSections, "_more_sections")
	hidden(symKey, "_key")
	hidden(symObjectBody, "_object_body")
	hidden(symAfterPair, "_after_pair")
	hidden(symAfterObjectTemplate, "_after_object_template")
	hidden(symObjectTemplate, "_object_template")
	hidden(symArrayBody, "_array_body")
	hidden(symAfterValue, "_after_value")
	hidden(symAfterArrayTemplate, "_after_array_template")
	hidden(symArrayTemplate, "_array_template")
	hidden(symStringBody, "_string_body")
	hidden(symStringPart, "_string_part")
	hidden(symTagExpr, "_tag_expr")
	hidden(symTagArgs, "_tag_args")
	hidden(symSectionExpr, "_section_expr")
	hidden(symSectionArgs, "_section_args")
	hidden(symParamNames, "_param_names")
	hidden(symCommentBody, "_comment_body")
	return md
}

var fieldNames = []string{
	fieldNone:       "",
	FieldKey:        "key",
	FieldValue:      "value",
	FieldName:       "name",
	FieldOpen:       "open",
	FieldClose:      "close",
	FieldParameters: "parameters",
	FieldDelimiters: "delimiters",
}

// grammarRules is the hybrid grammar. Alternatives are ordered: when two
// alternatives can start with the same token, the earlier one wins.
func grammarRules() []ruleDef {
	return []ruleDef{
		rule(SymDocument, alt(sym(symContentList))),
		rule(symContentList,
			alt(sym(symContent), sym(symContentList)),
			empty),
		rule(symContent,
			alt(sym(symValue)),
			alt(sym(SymText)),
			alt(sym(SymIdentifier)),
			alt(sym(SymComma)),
			alt(sym(SymMustacheComment)),
			alt(sym(SymMustacheSetDelimiter))),

		// Values. Sections in value position take document-context bodies.
		rule(symValue,
			alt(sym(SymObject)),
			alt(sym(SymArray)),
			alt(sym(symStringValue)),
			alt(sym(SymNumber)),
			alt(sym(SymTrue)),
			alt(sym(SymFalse)),
			alt(sym(SymNull)),
			alt(sym(SymMustacheVariable)),
			alt(sym(SymMustacheUnescaped)),
			alt(sym(SymMustachePartial)),
			alt(sym(symValueSections))),
		rule(symStringValue,
			alt(sym(SymStringLiteral)),
			alt(sym(SymString))),
		rule(symValueSections,
			alt(sym(SymMustacheSection), sym(symMoreSections)),
			alt(sym(SymMustacheInvertedSection), sym(symMoreSections))),
		rule(symMoreSections,
			alt(sym(SymMustacheSection), sym(symMoreSections)),
			alt(sym(SymMustacheInvertedSection), sym(symMoreSections)),
			empty),
		rule(SymMustacheSection,
			alt(field(FieldOpen, SymMustacheSectionOpen), sym(symContentList), field(FieldClose, SymMustacheSectionClose))),
		rule(SymMustacheInvertedSection,
			alt(field(FieldOpen, SymMustacheInvertedSectionOpen), sym(symContentList), field(FieldClose, SymMustacheSectionClose))),

		// Objects.
		rule(SymObject, alt(sym(SymLBrace), sym(symObjectBody), sym(SymRBrace))),
		rule(symObjectBody,
			alt(sym(SymPair), sym(symAfterPair)),
			alt(sym(symObjectTemplate), sym(symAfterObjectTemplate)),
			empty),
		rule(symAfterPair,
			alt(sym(SymComma), sym(symObjectBody)),
			alt(sym(symObjectTemplate), sym(symAfterObjectTemplate)),
			empty),
		rule(symAfterObjectTemplate,
			alt(sym(SymComma), sym(symObjectBody)),
			alt(sym(SymPair), sym(symAfterPair)),
			alt(sym(symObjectTemplate), sym(symAfterObjectTemplate)),
			empty),
		rule(symObjectTemplate,
			alt(sym(symObjectSection)),
			alt(sym(symObjectInvertedSection)),
			alt(sym(SymMustacheComment)),
			alt(sym(SymMustachePartial)),
			alt(sym(SymMustacheSetDelimiter))),
		rule(symObjectSection,
			alt(field(FieldOpen, SymMustacheSectionOpen), sym(symAfterObjectTemplate), field(FieldClose, SymMustacheSectionClose))),
		rule(symObjectInvertedSection,
			alt(field(FieldOpen, SymMustacheInvertedSectionOpen), sym(symAfterObjectTemplate), field(FieldClose, SymMustacheSectionClose))),
		rule(SymPair,
			alt(field(FieldKey, symKey), sym(SymColon), field(FieldValue, symValue))),
		rule(symKey,
			alt(sym(symStringValue)),
			alt(sym(SymIdentifier)),
			alt(sym(SymTrue)),
			alt(sym(SymFalse)),
			alt(sym(SymNull)),
			alt(sym(SymMustacheVariable)),
			alt(sym(SymMustacheUnescaped))),

		// Arrays. Template items come first so that a section in item
		// position gets an array-context body.
		rule(SymArray, alt(sym(SymLBracket), sym(symArrayBody), sym(SymRBracket))),
		rule(symArrayBody,
			alt(sym(symArrayTemplate), sym(symAfterArrayTemplate)),
			alt(sym(symValue), sym(symAfterValue)),
			empty),
		rule(symAfterValue,
			alt(sym(SymComma), sym(symArrayBody)),
			alt(sym(symArrayTemplate), sym(symAfterArrayTemplate)),
			empty),
		rule(symAfterArrayTemplate,
			alt(sym(SymComma), sym(symArrayBody)),
			alt(sym(symArrayTemplate), sym(symAfterArrayTemplate)),
			alt(sym(symValue), sym(symAfterValue)),
			empty),
		rule(symArrayTemplate,
			alt(sym(symArraySection)),
			alt(sym(symArrayInvertedSection)),
			alt(sym(SymMustacheComment)),
			alt(sym(SymMustacheSetDelimiter))),
		rule(symArraySection,
			alt(field(FieldOpen, SymMustacheSectionOpen), sym(symAfterArrayTemplate), field(FieldClose, SymMustacheSectionClose))),
		rule(symArrayInvertedSection,
			alt(field(FieldOpen, SymMustacheInvertedSectionOpen), sym(symAfterArrayTemplate), field(FieldClose, SymMustacheSectionClose))),

		// Templated strings.
		rule(SymString, alt(sym(SymQuote), sym(symStringBody), sym(SymQuote))),
		rule(symStringBody,
			alt(sym(symStringPart), sym(symStringBody)),
			empty),
		rule(symStringPart,
			alt(sym(SymStringContent)),
			alt(sym(SymMustacheVariable)),
			alt(sym(SymMustacheUnescaped)),
			alt(sym(SymMustachePartial)),
			alt(sym(SymMustacheComment)),
			alt(sym(symStringSection)),
			alt(sym(symStringInvertedSection))),
		rule(symStringSection,
			alt(field(FieldOpen, SymMustacheSectionOpen), sym(symStringBody), field(FieldClose, SymMustacheSectionClose))),
		rule(symStringInvertedSection,
			alt(field(FieldOpen, SymMustacheInvertedSectionOpen), sym(symStringBody), field(FieldClose, SymMustacheSectionClose))),

		// Tags.
		rule(SymMustacheVariable,
			alt(sym(SymTagOpen), sym(symTagExpr), sym(SymTagClose))),
		rule(SymMustacheUnescaped,
			alt(sym(SymTripleOpen), sym(symTagExpr), sym(SymTripleClose)),
			alt(sym(SymAmpersandOpen), sym(symTagExpr), sym(SymTagClose))),
		rule(SymMustachePartial,
			alt(sym(SymPartialOpen), sym(symTagExpr), sym(SymTagClose))),
		rule(SymMustacheComment,
			alt(sym(SymCommentOpen), sym(symCommentBody), sym(SymTagClose))),
		rule(symCommentBody,
			alt(sym(SymCommentText)),
			empty),
		rule(SymMustacheSetDelimiter,
			alt(sym(SymDelimiterOpen), field(FieldDelimiters, SymDelimiterSpec), sym(SymDelimiterClose))),
		rule(SymMustacheSectionOpen,
			alt(sym(SymSectionOpen), sym(symSectionExpr), sym(SymTagClose))),
		rule(SymMustacheInvertedSectionOpen,
			alt(sym(SymInvertedOpen), sym(symSectionExpr), sym(SymTagClose))),
		rule(SymMustacheSectionClose,
			alt(sym(SymCloseOpen), sym(symTagExpr), sym(SymTagClose))),
		rule(symTagExpr,
			alt(field(FieldName, SymTagName), sym(symTagArgs))),
		rule(symTagArgs,
			alt(sym(SymTagName), sym(symTagArgs)),
			empty),
		rule(symSectionExpr,
			alt(field(FieldName, SymTagName), sym(symSectionArgs))),
		rule(symSectionArgs,
			alt(sym(SymTagName), sym(symSectionArgs)),
			alt(field(FieldParameters, SymSectionParameters)),
			empty),
		rule(SymSectionParameters,
			alt(sym(SymPipe), sym(symParamNames), sym(SymPipe))),
		rule(symParamNames,
			alt(sym(SymTagName), sym(symParamNames)),
			empty),
	}
}
