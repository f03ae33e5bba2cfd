package logger

import (
	"io"
	"regexp"
)

// defaultRedactionPatterns match the credential shapes that can leak
// into operational logs: provider API keys, the agent's Moltbook key,
// bearer headers, and generic password/token/secret assignments.
var defaultRedactionPatterns = []string{
	`sk-ant-[a-zA-Z0-9_-]{20,}`,
	`sk-[a-zA-Z0-9_-]{20,}`,
	`moltbook[_-]?(?:api[_-]?key|token)["\s:=]+[a-zA-Z0-9._-]+`,
	`Bearer\s+[a-zA-Z0-9._-]+`,
	`password["\s:=]+[^\s"]+`,
	`pwd["\s:=]+[^\s"]+`,
	`token["\s:=]+[a-zA-Z0-9._-]{20,}`,
	`AKIA[0-9A-Z]{16}`,
	`secret["\s:=]+[^\s"]+`,
}

// Redactor replaces credential-shaped substrings with [REDACTED].
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor builds a redactor with the default pattern set.
func NewRedactor() *Redactor {
	r := &Redactor{patterns: make([]*regexp.Regexp, 0, len(defaultRedactionPatterns))}
	for _, p := range defaultRedactionPatterns {
		r.patterns = append(r.patterns, regexp.MustCompile(p))
	}
	return r
}

// AddPattern compiles and appends a custom pattern.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact applies every pattern to s in order.
func (r *Redactor) Redact(s string) string {
	for _, re := range r.patterns {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// Wrap returns a writer that redacts each write before passing it on.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{next: w, redactor: r}
}

type redactingWriter struct {
	next     io.Writer
	redactor *Redactor
}

// Write reports the input length so zerolog never sees a short write
// when redaction changes the line length.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.next.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
