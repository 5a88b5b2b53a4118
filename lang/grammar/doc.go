// Package grammar holds kestrel's concrete syntax as an EBNF document
// (grammar.ebnf) checked for well-formedness by grammar_test.go, the same
// mechanism the teacher uses for its own lang/grammar package. Nothing here
// is consumed by lang/scanner or lang/parser at run time: the grammar is
// documentation, hand-kept in sync with spec.md §6.1 and lang/ast's node
// shapes, not a generated parser.
package grammar
