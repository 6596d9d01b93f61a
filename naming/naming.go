// Package naming derives storage folders and filenames for uploaded files.
// Nothing here touches storage.
package naming

import (
	"path"
	"strings"
	"time"
)

const (
	DateFolderLayout = "2006-01-02"
	StampLayout      = "20060102_150405"

	metadataPrefix = "metadata_"
	metadataExt    = ".json"
	defaultSlug    = "project"
	defaultLabel   = "upload"
)

// Layout is where one upload and its metadata record are stored.
type Layout struct {
	Folder           string
	StoredFilename   string
	MetadataFilename string
	FilePath         string
	MetadataPath     string
}

// Slug lowercases name and collapses every run of characters outside
// [a-z0-9] into a single hyphen, trimming hyphens at both ends.
func Slug(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	if b.Len() == 0 {
		return defaultSlug
	}
	return b.String()
}

// Build computes the layout for a file uploaded at the given time. The date
// folder and filename stamp always use the UTC upload time.
func Build(base, projectName, originalFilename, workflowType string, at time.Time) Layout {
	at = at.UTC()
	folder := DateFolder(base, projectName, at)

	label, ext := splitName(originalFilename)
	stem := label + "_" + workflowType + "_" + at.Format(StampLayout)
	stored := stem + ext
	meta := metadataPrefix + stem + metadataExt

	return Layout{
		Folder:           folder,
		StoredFilename:   stored,
		MetadataFilename: meta,
		FilePath:         folder + "/" + stored,
		MetadataPath:     folder + "/" + meta,
	}
}

// DateFolder returns {base}/{slug}/{yyyy-mm-dd} for the UTC date of day.
func DateFolder(base, projectName string, day time.Time) string {
	return path.Join(cleanBase(base), Slug(projectName), day.UTC().Format(DateFolderLayout))
}

// IsMetadataFilename reports whether name follows the metadata naming scheme.
func IsMetadataFilename(name string) bool {
	return strings.HasPrefix(name, metadataPrefix) && strings.HasSuffix(name, metadataExt)
}

// splitName returns a storage-safe label and the original extension
// (with its dot, case preserved).
func splitName(original string) (label, ext string) {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	ext = path.Ext(base)
	label = strings.TrimSuffix(base, ext)
	label = strings.ReplaceAll(label, "..", "")

	label = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		}
		return '-'
	}, label)
	label = strings.Trim(label, "-.")
	if label == "" {
		label = defaultLabel
	}
	if strings.ContainsAny(ext, "/\\ ") {
		ext = ""
	}
	return label, ext
}

func cleanBase(base string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return "/"
	}
	return base
}
