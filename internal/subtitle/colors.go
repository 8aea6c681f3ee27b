package subtitle

// colorBGR maps named subtitle colors to the BGR hex form used by the
// force_style PrimaryColour parameter.
var colorBGR = map[string]string{
	"white":  "FFFFFF",
	"black":  "000000",
	"red":    "0000FF",
	"green":  "00FF00",
	"blue":   "FF0000",
	"yellow": "00FFFF",
	"cyan":   "FFFF00",
	"orange": "00A5FF",
	"pink":   "CBC0FF",
}

// ColorBGR resolves a named color, defaulting to white for unknown names.
func ColorBGR(name string) string {
	if hex, ok := colorBGR[name]; ok {
		return hex
	}
	return colorBGR["white"]
}
