package numbering

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidFormat = errors.New("invalid_number_format")

	seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)
)

const DefaultNumberFormat = "{SEQ}"

// FormatNumber renders an invoice number for receipts. Supported tokens are
// {YYYY}, {YY}, {MM}, {DD}, {SEQ} and {SEQn} for an n-digit zero padded
// sequence. The stored number is always the bare integer.
func FormatNumber(template string, issuedAt time.Time, number int64) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("%w: empty template", ErrInvalidFormat)
	}
	if number <= 0 {
		return "", fmt.Errorf("%w: number %d", ErrInvalidFormat, number)
	}

	out := template
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))
	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(number, 10))
	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 || width > 18 {
			return m
		}
		return fmt.Sprintf("%0*d", width, number)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("%w: unresolved token in %q", ErrInvalidFormat, out)
	}
	return out, nil
}

// Label formats number with the configured template, falling back to the
// bare number when the template is unusable.
func (a *Allocator) Label(issuedAt time.Time, number int64) string {
	label, err := FormatNumber(a.settings.Get().NumberFormat, issuedAt, number)
	if err != nil {
		return strconv.FormatInt(number, 10)
	}
	return label
}
