package domain

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// normalizeContent cleans each card field and joins them so that whitespace,
// casing, and line-ending differences do not change the hash. The newline
// separator keeps "question"+"answer" distinct from "questiona"+"nswer".
func normalizeContent(question, answer, context string) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}
	return strings.Join([]string{
		normalizePart(question),
		normalizePart(answer),
		normalizePart(context),
	}, "\n")
}

// ContentHash returns the SHA-256 of the normalized card content as a hex
// string. Cards with the same hash are the same card for import dedupe.
func ContentHash(question, answer, context string) string {
	sum := sha256.Sum256([]byte(normalizeContent(question, answer, context)))
	return fmt.Sprintf("%x", sum)
}
