// Package parser turns the line-oriented text output of git subcommands into
// typed records.
//
// Every parser is a pure function of its input string. Callers decide which
// git invocation produces the text; the expected command line is noted on
// each parser.
package parser
