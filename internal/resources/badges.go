package resources

import "strings"

// Tone is the colour family a badge renders with.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
	ToneInfo    Tone = "info"
)

// Badge is how a tag coming from backend data is displayed.
type Badge struct {
	Label string `json:"label"`
	Tone  Tone   `json:"tone"`
	Icon  string `json:"icon"`
}

var badges = map[string]Badge{
	"admin":       {Label: "Admin", Tone: ToneInfo, Icon: "★"},
	"user":        {Label: "User", Tone: ToneNeutral, Icon: "●"},
	"pending":     {Label: "Pending", Tone: ToneWarning, Icon: "…"},
	"confirmed":   {Label: "Confirmed", Tone: ToneSuccess, Icon: "✓"},
	"cancelled":   {Label: "Cancelled", Tone: ToneDanger, Icon: "✗"},
	"available":   {Label: "Available", Tone: ToneSuccess, Icon: "✓"},
	"maintenance": {Label: "Maintenance", Tone: ToneWarning, Icon: "⚠"},
	"football":    {Label: "Football", Tone: ToneNeutral, Icon: "⚽"},
	"padel":       {Label: "Padel", Tone: ToneNeutral, Icon: "◎"},
	"tennis":      {Label: "Tennis", Tone: ToneNeutral, Icon: "◎"},
	"basketball":  {Label: "Basketball", Tone: ToneNeutral, Icon: "◉"},
}

// BadgeFor maps a known tag to its badge. Unknown tags get a neutral badge
// labelled with the tag itself.
func BadgeFor(tag string) Badge {
	key := strings.ToLower(strings.TrimSpace(tag))
	if b, ok := badges[key]; ok {
		return b
	}
	if key == "" {
		return Badge{Label: "-", Tone: ToneNeutral, Icon: "·"}
	}
	return Badge{Label: tag, Tone: ToneNeutral, Icon: "·"}
}

// HasBadge reports whether tag has a dedicated badge.
func HasBadge(tag string) bool {
	_, ok := badges[strings.ToLower(strings.TrimSpace(tag))]
	return ok
}
