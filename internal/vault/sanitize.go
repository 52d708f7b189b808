package vault

import (
	"path"
	"strings"
)

// Sanitize replaces every character outside [A-Za-z0-9] with an underscore
// and collapses runs of underscores: "My/Cool:Project!" -> "My_Cool_Project_".
// The mapping is lossy; folder uniqueness comes from the id prefix.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if isAlnum(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// folderName builds "<id> - <sanitized title>".
func folderName(id int64, title string) string {
	s := Sanitize(title)
	if s == "" || s == "_" {
		s = "Untitled"
	}
	return itoa(id) + " - " + s
}

// fileName makes name safe as a single path element while keeping it
// recognizable: separators and control characters become underscores.
func fileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r < 0x20:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return ""
	}
	return name
}

// stemAndExt splits "wiring.ino" into "wiring" and "ino".
func stemAndExt(name string) (string, string) {
	ext := path.Ext(name)
	if ext == "" || ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), strings.ToLower(ext[1:])
}
