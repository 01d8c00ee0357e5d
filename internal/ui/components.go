package ui

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/sonroyaalmerol/hkbot/internal/media"
	"github.com/sonroyaalmerol/hkbot/internal/utils"
)

// Discord caps select menus at 25 options and labels at 100 runes.
const (
	maxOptions = 25
	maxLabel   = 100
)

// SearchMenu offers results for the user to pick one. key identifies the
// pending search; the option values are indexes into results.
func SearchMenu(key string, results []media.PartialTrack) []discordgo.MessageComponent {
	opts := make([]discordgo.SelectMenuOption, 0, min(len(results), maxOptions))
	for i, r := range results {
		if i == maxOptions {
			break
		}
		desc := uploader(r)
		if r.Description != "" && len(r.Description) < 16 {
			desc += " · " + r.Description
		}
		opts = append(opts, discordgo.SelectMenuOption{
			Label:       utils.Truncate(fmt.Sprintf("%d. %s", i+1, r.Title), maxLabel),
			Value:       fmt.Sprint(i),
			Description: utils.Truncate(desc, maxLabel),
		})
	}
	minValues := 1
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    SearchPrefix + key,
				Placeholder: "Pick a track to queue",
				MinValues:   &minValues,
				MaxValues:   1,
				Options:     opts,
			},
		}},
	}
}

// SearchKey extracts the search key from a component custom id.
func SearchKey(customID string) (string, bool) {
	return strings.CutPrefix(customID, SearchPrefix)
}

// SearchResults lists the results as text above the menu.
func SearchResults(query string, results []media.PartialTrack) *discordgo.MessageEmbed {
	var b strings.Builder
	for i, r := range results {
		if i == maxOptions {
			break
		}
		fmt.Fprintf(&b, "`%d.` %s\n", i+1, link(r, 0))
	}
	return &discordgo.MessageEmbed{
		Title:       "Results for " + utils.Truncate(query, 200),
		Description: b.String(),
		Color:       colorQueued,
	}
}
