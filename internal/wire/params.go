package wire

import (
	"regexp"
	"strconv"
	"strings"
)

// ParseTabParams parses the default tab-separated param form:
// key1=value1\tkey2=value2... Values never contain a tab.
func ParseTabParams(s string) map[string]string {
	fields := map[string]string{}
	if s == "" {
		return fields
	}
	for _, part := range strings.Split(s, "\t") {
		if part == "" {
			continue
		}
		k, v, ok := splitKV(part)
		if ok {
			fields[k] = v
		}
	}
	return fields
}

func splitKV(part string) (key, value string, ok bool) {
	i := strings.Index(part, "=")
	if i < 0 {
		return "", "", false
	}
	return part[:i], part[i+1:], true
}

// bioDataFieldOrder is the canonical named-field extraction order used both
// for the whitespace fallback parser and for re-emission.
var bioDataFieldOrder = []string{
	"Pin", "No", "Index", "Valid", "Duress", "Type", "MajorVer", "MinorVer", "Format", "Tmp",
}

var bioDataFieldRe = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(bioDataFieldOrder))
	for _, name := range bioDataFieldOrder {
		if name == "Tmp" {
			m[name] = regexp.MustCompile(name + `=(.*)$`)
		} else {
			m[name] = regexp.MustCompile(name + `=([^\s\t]+)`)
		}
	}
	return m
}()

// ParseBioDataWhitespaceParams extracts the ten canonical BIODATA fields by
// named regex extraction rather than splitting on whitespace runs, because
// the separator itself (single space, multiple spaces, or a dropped tab) is
// unreliable on some firmwares.
func ParseBioDataWhitespaceParams(s string) map[string]string {
	fields := map[string]string{}
	for _, name := range bioDataFieldOrder {
		m := bioDataFieldRe[name].FindStringSubmatch(s)
		if m != nil {
			fields[name] = strings.TrimRight(m[1], "\t ")
		}
	}
	return fields
}

// ParseBioDataParams implements the dual-parser strategy:
// attempt the tab-separated parse first; if it recovers fewer than 3 keys,
// fall back to the whitespace named-field extractor. Tmp is always
// extracted greedily to end-of-string regardless of which parser is used.
func ParseBioDataParams(s string) (fields map[string]string, usedFallback bool) {
	tabFields := ParseTabParams(s)
	if len(tabFields) >= 3 {
		// Tmp may still have trailing tabs/spaces if the payload was
		// malformed; re-extract it greedily for safety.
		if _, ok := tabFields["Tmp"]; ok {
			if m := bioDataFieldRe["Tmp"].FindStringSubmatch(s); m != nil {
				tabFields["Tmp"] = m[1]
			}
		}
		return tabFields, false
	}
	return ParseBioDataWhitespaceParams(s), true
}

// tabRepairRe matches runs of whitespace immediately preceding a
// `key=` token, the collapse pattern intermediate processing sometimes
// introduces.
var tabRepairRe = regexp.MustCompile(`\s+([A-Za-z_]+=)`)

// RepairTabs rewrites any whitespace run preceding a key=value token into a
// single tab.
func RepairTabs(s string) string {
	return tabRepairRe.ReplaceAllString(s, "\t$1")
}

// CanonicalizeBioData re-emits a BIODATA field map in the canonical order
// with exactly one tab between present fields.
func CanonicalizeBioData(fields map[string]string) string {
	var parts []string
	for _, name := range bioDataFieldOrder {
		if v, ok := fields[name]; ok {
			parts = append(parts, name+"="+v)
		}
	}
	return strings.Join(parts, "\t")
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func boolFromFlag(s string) bool {
	return s == "1" || strings.EqualFold(s, "true")
}
