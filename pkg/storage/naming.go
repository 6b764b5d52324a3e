package storage

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"path"
	"strings"
)

// DefaultExtension is used when neither the file name nor the URL carries one
const DefaultExtension = ".mp3"

// Sanitize drops every character outside [A-Za-z0-9._-]
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ShortHash returns the 8 hex digit FNV-1a hash of s
func ShortHash(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// AssetFileName derives the cache file name {id}_{gen}_{sp}{ext}. A part that
// sanitizing alters, or that contains the "_" separator, gets a hash of its
// raw value appended so distinct (id, gen, sp) triples never share a name.
func AssetFileName(id, genus, species, ext string) string {
	return fmt.Sprintf("%s_%s_%s%s", namePart(id), namePart(genus), namePart(species), Sanitize(ext))
}

func namePart(s string) string {
	safe := Sanitize(s)
	if safe == s && !strings.Contains(s, "_") {
		return safe
	}
	return strings.ReplaceAll(safe, "_", "-") + "-" + ShortHash(s)
}

// AssetExtension picks the extension for a downloaded file: the provider's
// file name first, then the URL path, then DefaultExtension.
func AssetExtension(fileName, assetURL string) string {
	if ext := cleanExtension(path.Ext(fileName)); ext != "" {
		return ext
	}
	if u, err := url.Parse(assetURL); err == nil {
		if ext := cleanExtension(path.Ext(u.Path)); ext != "" {
			return ext
		}
	}
	return DefaultExtension
}

func cleanExtension(ext string) string {
	ext = strings.ToLower(Sanitize(ext))
	if len(ext) < 2 || len(ext) > 6 || ext[0] != '.' || strings.Count(ext, ".") != 1 {
		return ""
	}
	return ext
}
