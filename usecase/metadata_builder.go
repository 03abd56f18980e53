package usecase

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"autouploader/domain/dto"
)

const maxTitleRunes = 100

// MetadataTemplate is the operator-configured part of every upload's metadata
type MetadataTemplate struct {
	TitleTemplate string
	Description   string
	Tags          string
	Privacy       string
	CategoryID    string
}

type MetadataBuilder struct {
	template MetadataTemplate
}

func NewMetadataBuilder(template MetadataTemplate) *MetadataBuilder {
	return &MetadataBuilder{template: template}
}

func (b *MetadataBuilder) Build(path string, now time.Time) dto.UploadMetadata {
	privacy := strings.ToLower(b.template.Privacy)
	if privacy == "" {
		privacy = "unlisted"
	}
	categoryID := b.template.CategoryID
	if categoryID == "" {
		categoryID = "20"
	}
	return dto.UploadMetadata{
		Title:       RenderTitle(b.template.TitleTemplate, path, now),
		Description: b.template.Description,
		Tags:        ParseTags(b.template.Tags),
		CategoryID:  categoryID,
		Privacy:     privacy,
		MadeForKids: false,
		ContentType: contentTypeFor(path),
		NotifySubs:  false,
	}
}

// RenderTitle fills {filename}, {filename_ext}, {date} and {time}. Anything
// else in braces is kept as written.
func RenderTitle(template, path string, now time.Time) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.TrimSpace(template) == "" {
		template = "{filename}"
	}

	title := strings.NewReplacer(
		"{filename}", name,
		"{filename_ext}", base,
		"{date}", now.Format("2006-01-02"),
		"{time}", now.Format("15-04-05"),
	).Replace(template)

	title = strings.NewReplacer("<", "", ">", "").Replace(title)
	title = strings.TrimSpace(title)
	if title == "" {
		title = name
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = strings.TrimSpace(string([]rune(title)[:maxTitleRunes]))
	}
	return title
}

func ParseTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".wmv":  "video/x-ms-wmv",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".flv":  "video/x-flv",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".3gp":  "video/3gpp",
	".3g2":  "video/3gpp2",
	".ts":   "video/mp2t",
	".mts":  "video/mp2t",
	".m2ts": "video/mp2t",
	".ogv":  "video/ogg",
}

func contentTypeFor(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}
