package update

import (
	"fmt"
	"strings"
	"time"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/scoring"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
)

// #region describe
// describe renders a timeline message such as
// "Savings signal processed: Wealth +12.0".
func describe(sig signals.Signal, deltas []scoring.Delta) string {
	parts := make([]string, 0, len(deltas))
	for _, d := range deltas {
		sign := ""
		if d.Value >= 0 {
			sign = "+"
		}
		parts = append(parts, fmt.Sprintf("%s %s%.1f", d.Stat.DisplayName(), sign, d.Value))
	}
	return label(sig) + ": " + strings.Join(parts, ", ")
}

func label(sig signals.Signal) string {
	switch v := sig.(type) {
	case signals.Financial:
		switch v.Type {
		case signals.Save:
			return "Savings signal processed"
		case signals.Invest:
			return "Investment activity applied"
		}
		return "Spending pattern applied"
	case signals.Activity:
		if v.IsRecovery {
			return "Recovery session logged"
		}
		return "Activity level updated"
	case signals.Sleep:
		return "Sleep pattern analyzed"
	case signals.Focus:
		return "Focus session tracked"
	case signals.NotificationBurst:
		return "Notification burst interpreted"
	case signals.ScreenUsage:
		return "Screen time adjusted"
	}
	return string(sig.Kind())
}
// #endregion describe

// #region suggestions
// Suggest builds coaching prompts from the effective scores at the given
// instant. An untracked stat counts as 0.
func (e *Engine) Suggest(sheet stat.Sheet, at time.Time) []state.Suggestion {
	var out []state.Suggestion
	if sheet.Score(stat.Cognition, at) < e.config.CognitionCutoff {
		out = append(out, state.Suggestion{
			Title:   "Quick picks to recover focus",
			Options: []string{"Start a 25-minute pomodoro", "Mute distracting notifications for 30 minutes"},
		})
	}
	if sheet.Score(stat.Vital, at) < e.config.VitalCutoff {
		out = append(out, state.Suggestion{
			Title:   "Today's vitality buff",
			Options: []string{"10-minute stretch", "20-minute walk"},
		})
	}
	if sheet.Score(stat.Wealth, at) < e.config.WealthCutoff {
		out = append(out, state.Suggestion{
			Title:   "Rebalance your wealth",
			Options: []string{"Confirm this week's automatic savings transfer", "Write a quick spending summary"},
		})
	}
	if len(out) == 0 {
		out = append(out, state.Suggestion{
			Title:   "Keep your current buffs",
			Options: []string{"Keep the focus session streak going", "Run the late-night notification minimizing routine"},
		})
	}
	return out
}
// #endregion suggestions
