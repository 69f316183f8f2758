// pkg/core/rover.go
package core

// Grid bounds. Both ends are inclusive.
const (
	GridMin = 0
	GridMax = 99
)

// Direction is a cardinal heading.
type Direction string

const (
	North Direction = "N"
	South Direction = "S"
	East  Direction = "E"
	West  Direction = "W"
)

// Directions lists every valid heading.
var Directions = []Direction{North, South, East, West}

// Command is a single movement token sent to the server.
type Command string

const (
	Forward  Command = "f"
	Backward Command = "b"
	Left     Command = "l"
	Right    Command = "r"
)

// Palette holds the display colours handed out to rovers by id.
var Palette = []string{
	"#FF0000", // red
	"#00FF00", // green
	"#0000FF", // blue
	"#FFFF00", // yellow
	"#FF00FF", // magenta
	"#00FFFF", // cyan
}

// RoverColor returns the display colour for a rover id.
// Colour is never sent to or read from the server.
func RoverColor(id int) string {
	idx := id % len(Palette)
	if idx < 0 {
		idx += len(Palette)
	}
	return Palette[idx]
}

// Rover is one fleet unit as known to the client.
type Rover struct {
	ID        int       `json:"id"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Direction Direction `json:"direction"`
	Color     string    `json:"color"`
}

// Obstacle is a static grid hazard.
type Obstacle struct {
	ID int `json:"id"`
	X  int `json:"x"`
	Y  int `json:"y"`
}
