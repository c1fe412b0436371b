package mirror

import (
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/unicode/norm"
)

// TempSuffix is appended to the hashed name of an in-progress download.
const TempSuffix = ".tmp"

// maxNameBytes is the file name limit of common filesystems.
const maxNameBytes = 255

// fallbackName replaces names that sanitize to nothing.
const fallbackName = "untitled"

// illegalChars are removed from file names. They are reserved on Windows
// and '/' is the path separator everywhere.
const illegalChars = `/\?<>:*|"`

var reservedNames = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com0": {}, "com1": {}, "com2": {}, "com3": {}, "com4": {},
	"com5": {}, "com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt0": {}, "lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {},
	"lpt5": {}, "lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// Sanitize turns a Canvas display name into a single safe path component.
//
// The name is normalized to NFC, separator, reserved and control characters
// are dropped, Windows device names and trailing dots or spaces are removed,
// and the result is cut to 255 bytes. A name with nothing left becomes
// "untitled".
func Sanitize(name string) string {
	name = norm.NFC.String(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r == utf8.RuneError || unicode.IsControl(r) || strings.ContainsRune(illegalChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()

	if out == "." || out == ".." {
		out = ""
	}
	base, _, _ := strings.Cut(strings.ToLower(out), ".")
	if _, reserved := reservedNames[base]; reserved {
		out = ""
	}
	out = strings.TrimRight(out, ". ")
	out = truncate(out, maxNameBytes)

	if out == "" {
		return fallbackName
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// TempName returns the temporary file name used while downloading the file
// with the given display name. Equal names give equal temp names; distinct
// names in one directory never share one.
func TempName(displayName string) string {
	sum := sha3.Sum256([]byte(displayName))
	return hex.EncodeToString(sum[:16]) + TempSuffix
}
