// Package ingest imports flashcards into a deck from markdown files, either
// on disk or in a git repository. Files use "Q:", "A:", and "C:" (optional
// context) line prefixes; "---" separates cards explicitly, and any new "Q:"
// starts a new card.
package ingest

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// ParsedCard is one question/answer/context entry extracted from a source file.
type ParsedCard struct {
	Question string
	Answer   string
	Context  string
}

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	separator      = "---"
)

type section int

const (
	seeking section = iota
	inQuestion
	inAnswer
	inContext
)

// ParseFile reads the file at path and extracts all cards.
func ParseFile(path string) ([]ParsedCard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse extracts all cards from r. Cards without a question are dropped.
func Parse(r io.Reader) ([]ParsedCard, error) {
	var (
		cards   []ParsedCard
		current ParsedCard
		block   []string
		state   = seeking
	)

	endBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch state {
		case inQuestion:
			current.Question = content
		case inAnswer:
			current.Answer = content
		case inContext:
			current.Context = content
		}
		block = nil
	}

	endCard := func() {
		endBlock()
		if current.Question != "" {
			cards = append(cards, current)
		}
		current = ParsedCard{}
		state = seeking
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == separator:
			endCard()
		case strings.HasPrefix(line, questionPrefix):
			if state != seeking { // a new question starts a new card
				endCard()
			} else {
				endBlock()
			}
			state = inQuestion
			block = append(block, trimPrefix(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			endBlock()
			state = inAnswer
			block = append(block, trimPrefix(line, answerPrefix))
		case strings.HasPrefix(line, contextPrefix):
			endBlock()
			state = inContext
			block = append(block, trimPrefix(line, contextPrefix))
		case state != seeking:
			block = append(block, line)
		}
	}
	endCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

// trimPrefix drops the marker and at most one following space, so
// "Q: text" and "Q:text" both yield "text".
func trimPrefix(line, prefix string) string {
	rest := line[len(prefix):]
	return strings.TrimPrefix(rest, " ")
}
