package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/NavalEP/carechat-engine/internal/models"
)

// The upstream bot is not guaranteed to emit one canonical menu format, so
// question parsing tries a ranked list of grammars and takes the first that
// fits. The parser is lenient but conservative: it never invents options, and
// anything ambiguous falls back to plain-text rendering.

var (
	binaryInputRe = regexp.MustCompile(`(?i)please\s+enter\s+input\s+(\d+)\s+or\s+(\d+)\s+only`)
	rangeInputRe  = regexp.MustCompile(`(?i)please\s+enter\s+input\s+between\s+(\d+)\s+to\s+(\d+)\s+only`)
	numberedRe    = regexp.MustCompile(`^(\d+)[.)]?\s*(.+)$`)
	allCapsRe     = regexp.MustCompile(`^[A-Z][A-Z /&-]*$`)
)

// ParseQuestion extracts a question plus an ordered option list from an agent
// message. It returns nil when no grammar yields at least two options, or when
// the text echoes patient-information form labels.
func ParseQuestion(text string) *models.QuestionWithOptions {
	if strings.TrimSpace(text) == "" || IsPatientInfoEcho(text) {
		return nil
	}

	grammars := []func(string) *models.QuestionWithOptions{
		parseBinaryInput,
		parseRangeInput,
		parseNumberedList,
		parseAllCapsList,
	}
	for _, parse := range grammars {
		if q := parse(text); q != nil && len(q.Options) >= 2 {
			return q
		}
	}
	return nil
}

// questionLines returns the non-empty lines of the text, minus any line that
// carries the "Please Enter input" instruction itself.
func questionLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), "please enter input") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// parseBinaryInput handles "<question-block>\n\nPlease Enter input <A> or <B>
// only". The first surviving line is the question, the rest are options.
func parseBinaryInput(text string) *models.QuestionWithOptions {
	m := binaryInputRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	lines := questionLines(text)
	if len(lines) < 3 {
		return nil
	}
	return &models.QuestionWithOptions{
		Question:      lines[0],
		Options:       lines[1:],
		OptionNumbers: []string{m[1], m[2]},
	}
}

// parseRangeInput handles "Please Enter input between <A> to <B> only",
// generating the inclusive integer range as option numbers. When the range
// length does not equal the option count the grammar is abandoned and the
// next one is tried.
func parseRangeInput(text string) *models.QuestionWithOptions {
	m := rangeInputRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	lo, err1 := strconv.Atoi(m[1])
	hi, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil || hi < lo {
		return nil
	}
	lines := questionLines(text)
	if len(lines) < 3 {
		return nil
	}
	options := lines[1:]
	var numbers []string
	for n := lo; n <= hi; n++ {
		numbers = append(numbers, strconv.Itoa(n))
	}
	if len(numbers) != len(options) {
		return nil
	}
	return &models.QuestionWithOptions{
		Question:      lines[0],
		Options:       options,
		OptionNumbers: numbers,
	}
}

// splitQuestionBlock splits the text at its first blank line: the whole first
// paragraph is the question, the remaining non-empty lines are option
// candidates. Without a paragraph break the first line alone is the question.
// Instruction lines ("Please Enter input ...") never count as options.
func splitQuestionBlock(text string) (string, []string) {
	lines := strings.Split(text, "\n")
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	var para []string
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			break
		}
		para = append(para, line)
	}
	var rest []string
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.Contains(strings.ToLower(line), "please enter input") {
			continue
		}
		rest = append(rest, line)
	}
	if len(para) == 0 {
		return "", nil
	}
	if len(rest) == 0 {
		return para[0], para[1:]
	}
	return strings.Join(para, "\n"), rest
}

// parseNumberedList handles the generic "question paragraph, blank line,
// 1. option" shape. A multi-line question stays one question; only the lines
// after the paragraph break are options. A line without a leading number is
// kept as a literal option; when that happens the numeric tokens are dropped
// entirely rather than padded.
func parseNumberedList(text string) *models.QuestionWithOptions {
	question, rest := splitQuestionBlock(text)
	if question == "" || len(rest) < 2 {
		return nil
	}
	var options, numbers []string
	unnumbered := false
	matched := false
	for _, line := range rest {
		if m := numberedRe.FindStringSubmatch(line); m != nil {
			options = append(options, strings.TrimSpace(m[2]))
			numbers = append(numbers, m[1])
			matched = true
		} else {
			options = append(options, line)
			unnumbered = true
		}
	}
	if !matched {
		return nil
	}
	q := &models.QuestionWithOptions{Question: question, Options: options}
	if !unnumbered {
		q.OptionNumbers = numbers
	}
	return q
}

// parseAllCapsList handles menus whose options are shouted in capitals with
// no numbering at all.
func parseAllCapsList(text string) *models.QuestionWithOptions {
	question, rest := splitQuestionBlock(text)
	if question == "" || len(rest) < 2 {
		return nil
	}
	var options []string
	for _, line := range rest {
		if !allCapsRe.MatchString(line) {
			return nil
		}
		options = append(options, line)
	}
	return &models.QuestionWithOptions{Question: question, Options: options}
}
