// Package discord delivers reports to a Discord channel and answers prefix commands.
package discord

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/ternarybob/finbot/internal/models"
)

// Discord embed limits
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFieldName   = 256
	maxFieldValue  = 1024
	maxFields      = 25
	maxFooter      = 2048
	maxMessage     = 2000
)

const (
	colorUp        = 0x2ECC71
	colorDown      = 0xE74C3C
	colorFilings   = 0x3498DB
	colorNarrative = 0xF1C40F
	colorNotice    = 0xE67E22
)

// SectionEmbed renders one report section as an embed. Fields sharing a group
// become one multi-line embed field.
func SectionEmbed(section *models.Section, at time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: truncate(section.Title, maxTitle),
		Color: sectionColor(section),
	}
	if !at.IsZero() {
		embed.Timestamp = at.UTC().Format(time.RFC3339)
	}

	var description []string
	if section.Notice != "" {
		description = append(description, "⚠️ "+section.Notice)
	}
	if section.Body != "" {
		description = append(description, section.Body)
	}
	embed.Description = truncate(strings.Join(description, "\n\n"), maxDescription)

	for _, group := range groupFields(section.Fields) {
		if len(embed.Fields) == maxFields {
			break
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   truncate(group.name, maxFieldName),
			Value:  truncate(strings.Join(group.lines, "\n"), maxFieldValue),
			Inline: len(group.lines) <= 4,
		})
	}

	if len(section.Links) > 0 && len(embed.Fields) < maxFields {
		lines := make([]string, 0, len(section.Links))
		for _, l := range section.Links {
			lines = append(lines, "["+l.Title+"]("+l.URL+")")
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  linksTitle(section.Kind),
			Value: truncate(strings.Join(lines, "\n"), maxFieldValue),
		})
	}

	if section.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: truncate(section.Footer, maxFooter)}
	}
	return embed
}

func sectionColor(section *models.Section) int {
	if section.Status != models.SectionOK {
		return colorNotice
	}
	switch section.Kind {
	case models.SectionFilings:
		return colorFilings
	case models.SectionNarrative:
		return colorNarrative
	}
	for _, f := range section.Fields {
		if f.Name == "Change" && strings.HasPrefix(f.Value, "▼") {
			return colorDown
		}
	}
	return colorUp
}

func linksTitle(kind models.SectionKind) string {
	if kind == models.SectionFilings {
		return "Recent SEC filings"
	}
	return "Links"
}

type fieldGroup struct {
	name  string
	lines []string
}

func groupFields(fields []models.Field) []fieldGroup {
	var groups []fieldGroup
	index := make(map[string]int)
	for _, f := range fields {
		name := f.Group
		if name == "" {
			name = "Details"
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, fieldGroup{name: name})
		}
		groups[i].lines = append(groups[i].lines, f.Name+": **"+f.Value+"**")
	}
	return groups
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

// splitMessage breaks text into chunks within the message limit, preferring line breaks
func splitMessage(text string) []string {
	var chunks []string
	for utf8.RuneCountInString(text) > maxMessage {
		runes := []rune(text)
		cut := maxMessage
		if nl := strings.LastIndex(string(runes[:cut]), "\n"); nl > 0 {
			cut = utf8.RuneCountInString(string(runes[:cut])[:nl])
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		text = strings.TrimLeft(string(runes[cut:]), "\n")
	}
	if strings.TrimSpace(text) != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
