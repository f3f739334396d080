// Package banner renders the startup greeting.
package banner

import (
	"fmt"
	"io"
	"strings"
)

const (
	reset  = "\x1b[0m"
	blue   = "\x1b[38;5;61m"
	green  = "\x1b[38;5;107m"
	orange = "\x1b[38;5;209m"
)

// line pairs a fragment of the crystal artwork with a fragment of the
// lettering; each side carries its own colour.
type line struct {
	artColor  string
	art       string
	textColor string
	text      string
}

var artwork = []line{
	{blue, "  )", orange, "a,"},
	{blue, "  )/", orange, "#L,                ┌─┐┬  ┌─┐┌┬┐┌┬┐"},
	{blue, "  v(", orange, "\"###a              ├─┘│  ├─┤ │  │"},
	{blue, "  vv,", orange, "\"####a,           ┴  ┴─┘┴ ┴ ┴  ┴"},
	{blue, "  vv(", blue, " 4#####L,         ┌─┐┌─┐┌─┐┬ ┬"},
	{blue, " =vvv", blue, "  !!4#####a       │  ├┤ ├─┘├─┤"},
	{blue, " =vv>", blue, "       !!!##a,.   └─┘└─┘┴  ┴ ┴"},
	{blue, " =v>", green, " sXXXXXXXsssssZP*  ┌─┐┌─┐┌┬┐┌─┐┬ ┬┌─┐┬ ┬"},
	{blue, " %>", green, "_XXXXXXXX7\"\"\"\"      │ ┬├─┤ │ ├┤ │││├─┤└┬┘"},
	{blue, " v", green, "J7\"\"\"\"               └─┘┴ ┴ ┴ └─┘└┴┘┴ ┴ ┴"},
}

// Greeting returns the coloured startup artwork.
func Greeting() string {
	var b strings.Builder
	b.WriteByte('\n')
	for _, l := range artwork {
		b.WriteString(l.artColor)
		b.WriteString(l.art)
		b.WriteString(reset)
		b.WriteString(l.textColor)
		b.WriteString(l.text)
		b.WriteString(reset)
		b.WriteByte('\n')
	}
	return b.String()
}

// Print writes the greeting to w.
func Print(w io.Writer) {
	fmt.Fprint(w, Greeting())
}
