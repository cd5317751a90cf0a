package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kengibson1111/go-gw2-story-progress/gw2"
	"github.com/kengibson1111/go-gw2-story-progress/progress"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	noteStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#A0A0A0"))

	badgeBase = lipgloss.NewStyle().Padding(0, 1).Bold(true)

	// badge colors keyed by status
	badgeStyles = map[progress.Status]lipgloss.Style{
		progress.StatusCompleted:    badgeBase.Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#2E7D32")),
		progress.StatusUndetectable: badgeBase.Foreground(lipgloss.Color("#F9A825")),
		progress.StatusFuture:       badgeBase.Foreground(lipgloss.Color("#8E24AA")),
		progress.StatusPartial:      badgeBase.Foreground(lipgloss.Color("#9E9E9E")),
	}
)

func badge(info progress.StatusInfo) string {
	style, ok := badgeStyles[info.Status]
	if !ok {
		style = badgeBase
	}
	return style.Render(info.Label)
}

func renderTokenInfo(w io.Writer, info *gw2.TokenInfo) {
	fmt.Fprintln(w, titleStyle.Render("API key "+info.Name))
	fmt.Fprintf(w, "id: %s\n", info.ID)
	fmt.Fprintf(w, "permissions: %s\n", strings.Join(info.Permissions, ", "))
}

func renderAccount(w io.Writer, account *gw2.Account) {
	fmt.Fprintln(w, titleStyle.Render(account.Name))
	fmt.Fprintf(w, "world: %d\n", account.World)
	if account.Created != "" {
		fmt.Fprintf(w, "created: %s\n", account.Created)
	}
	fmt.Fprintf(w, "access: %s\n", strings.Join(account.Access, ", "))
}

func renderAchievements(w io.Writer, statuses []progress.AchievementStatus) {
	for _, s := range statuses {
		marker := " "
		if s.Completed {
			marker = "✓"
		}
		line := fmt.Sprintf("%s %-40s", marker, s.Achievement.Name)
		if s.Max > 0 {
			line += " " + mutedStyle.Render(fmt.Sprintf("%d/%d", s.Current, s.Max))
		}
		fmt.Fprintln(w, line)
	}
}

func renderCharacters(w io.Writer, characters []gw2.Character) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d characters", len(characters))))
	for _, c := range characters {
		fmt.Fprintf(w, "%-28s %-8s %-12s %s\n", c.Name, c.Race, c.Profession, mutedStyle.Render(fmt.Sprintf("level %d", c.Level)))
	}
}

func renderStories(w io.Writer, overview *progress.Overview) {
	for _, season := range overview.Seasons {
		fmt.Fprintln(w, titleStyle.Render(season.Season.Name))
		for _, story := range season.Stories {
			info := overview.Statuses[story.Story.ID]
			line := fmt.Sprintf("  %s %s", badge(info), story.Story.Name)
			if len(story.CompletedBy) > 0 {
				line += " " + mutedStyle.Render("("+strings.Join(story.CompletedBy, ", ")+")")
			}
			fmt.Fprintln(w, line)
			if info.Message != "" {
				fmt.Fprintln(w, "    "+noteStyle.Render(info.Message))
			}
		}
	}
}

func renderSeasons(w io.Writer, seasons []progress.SeasonProgress) {
	for _, s := range seasons {
		marker := " "
		if s.CompletedByAccount {
			marker = "✓"
		}
		fmt.Fprintf(w, "%s %-40s %d/%d\n", marker, s.Season.Name, s.CompletedCount, s.TotalCount)
	}
}

func renderPhases(w io.Writer, phases []progress.PersonalStoryPhaseProgress) {
	for _, phase := range phases {
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (level %d)", phase.PhaseName, phase.PhaseLevel)))
		for _, q := range phase.Quests {
			who := mutedStyle.Render("-")
			if len(q.CompletedBy) > 0 {
				who = strings.Join(q.CompletedBy, ", ")
			}
			fmt.Fprintf(w, "  %-48s %s\n", q.QuestName, who)
		}
	}
}
