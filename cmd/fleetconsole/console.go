package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/roverfleet/console/internal/dispatcher"
	"github.com/roverfleet/console/internal/gateway"
	"github.com/roverfleet/console/pkg/core"
)

// Console intents routed through the dispatcher.
const (
	CommandListRovers     = ":ROVER:LIST:"
	CommandAddRover       = ":ROVER:ADD:"
	CommandDeleteRover    = ":ROVER:DELETE:"
	CommandSelectRover    = ":ROVER:SELECT:"
	CommandMoveRover      = ":ROVER:MOVE:"
	CommandListObstacles  = ":OBSTACLE:LIST:"
	CommandAddObstacle    = ":OBSTACLE:ADD:"
	CommandDeleteObstacle = ":OBSTACLE:DELETE:"
	CommandReload         = ":FLEET:RELOAD:"
	CommandStatus         = ":CONSOLE:STATUS:"
)

// errUsage marks input the console could not parse.
var errUsage = errors.New("usage")

type verb struct {
	command string
	usage   string
}

var verbs = map[string]verb{
	"list":      {CommandListRovers, "list"},
	"add":       {CommandAddRover, "add"},
	"delete":    {CommandDeleteRover, "delete <rover id>"},
	"select":    {CommandSelectRover, "select <rover id>"},
	"move":      {CommandMoveRover, "move <commands, e.g. ffrff>"},
	"obstacles": {CommandListObstacles, "obstacles"},
	"reload":    {CommandReload, "reload"},
	"status":    {CommandStatus, "status"},
}

var obstacleVerbs = map[string]verb{
	"add":    {CommandAddObstacle, "obstacle add [x y]"},
	"delete": {CommandDeleteObstacle, "obstacle delete <obstacle id>"},
}

const helpText = `commands:
  list                      show rovers, * marks the selection
  add                       spawn a rover at a random cell
  delete <id>               remove a rover
  select <id>               select a rover
  move <f|b|l|r...>         send commands to the selected rover
  obstacles                 show obstacles
  obstacle add [x y]        place an obstacle, random cell without x y
  obstacle delete <id>      remove an obstacle
  reload                    reload rovers and obstacles from the API
  status                    API health and journal counters
  help                      this text
  quit                      end the session
`

func registerConsoleHandlers(d *dispatcher.Dispatcher, a *app) {
	d.Register(CommandListRovers, a.handleListRovers)
	d.Register(CommandAddRover, a.handleAddRover, dispatcher.Logged())
	d.Register(CommandDeleteRover, a.handleDeleteRover, dispatcher.Logged())
	d.Register(CommandSelectRover, a.handleSelectRover, dispatcher.Logged())
	d.Register(CommandMoveRover, a.handleMoveRover, dispatcher.Logged())
	d.Register(CommandListObstacles, a.handleListObstacles)
	d.Register(CommandAddObstacle, a.handleAddObstacle, dispatcher.Logged())
	d.Register(CommandDeleteObstacle, a.handleDeleteObstacle, dispatcher.Logged())
	d.Register(CommandReload, a.handleReload, dispatcher.Logged())
	d.Register(CommandStatus, a.handleStatus)
}

// serve loads the fleet and then reads one command per line until quit,
// EOF or ctx ends.
func (a *app) serve(ctx context.Context, in io.Reader) {
	if err := a.store.Load(ctx); err != nil {
		a.logger.Error("Initial fleet load failed", "error", err)
	}
	a.out.printf("%s", renderRovers(a.store.Snapshot()))
	a.out.printf("type help for commands\n")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		a.out.printf("> ")
		select {
		case <-ctx.Done():
			a.out.printf("\n")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !a.exec(ctx, line) {
				return
			}
		}
	}
}

// exec runs one input line. It returns false when the operator quits.
func (a *app) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	word, args := strings.ToLower(fields[0]), fields[1:]
	switch word {
	case "quit", "exit":
		return false
	case "help", "?":
		a.out.printf("%s", helpText)
		return true
	}

	v, ok := verbs[word]
	if word == "obstacle" {
		if len(args) == 0 {
			a.out.printf("usage: obstacle add [x y] | obstacle delete <id>\n")
			return true
		}
		v, ok = obstacleVerbs[strings.ToLower(args[0])]
		args = args[1:]
	}
	if !ok {
		a.out.printf("unknown command %q, type help\n", word)
		return true
	}

	result, err := a.dispatcher.Dispatch(dispatcher.Event{
		Command:   v.command,
		Args:      args,
		Payload:   ctx,
		Timestamp: time.Now(),
	})
	switch {
	case errors.Is(err, errUsage):
		a.out.printf("%v\nusage: %s\n", err, v.usage)
	case alreadyNotified(err):
		// the store printed a notification
	case err != nil:
		a.out.printf("error: %v\n", err)
	case result != nil:
		a.out.printf("%s", result)
	}
	return true
}

// alreadyNotified reports errors the fleet store turns into notifications.
func alreadyNotified(err error) bool {
	return errors.Is(err, gateway.ErrValidation) ||
		errors.Is(err, gateway.ErrTransport) ||
		errors.Is(err, gateway.ErrInvalidServerData)
}

func eventContext(e dispatcher.Event) context.Context {
	if ctx, ok := e.Payload.(context.Context); ok {
		return ctx
	}
	return context.Background()
}

func intArg(args []string, i int, name string) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing %s: %w", name, errUsage)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number: %w", name, args[i], errUsage)
	}
	return n, nil
}

func (a *app) handleListRovers(dispatcher.Event) (any, error) {
	return renderRovers(a.store.Snapshot()), nil
}

func (a *app) handleAddRover(e dispatcher.Event) (any, error) {
	r, err := a.store.AddRover(eventContext(e))
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("rover %d at (%d,%d) facing %s, selected\n", r.ID, r.X, r.Y, r.Direction), nil
}

func (a *app) handleDeleteRover(e dispatcher.Event) (any, error) {
	id, err := intArg(e.Args, 0, "rover id")
	if err != nil {
		return nil, err
	}
	if err := a.store.DeleteRover(eventContext(e), id); err != nil {
		return nil, err
	}
	return fmt.Sprintf("rover %d deleted\n", id), nil
}

func (a *app) handleSelectRover(e dispatcher.Event) (any, error) {
	id, err := intArg(e.Args, 0, "rover id")
	if err != nil {
		return nil, err
	}
	if err := a.store.SelectRover(id); err != nil {
		return nil, err
	}
	return fmt.Sprintf("rover %d selected\n", id), nil
}

func (a *app) handleMoveRover(e dispatcher.Event) (any, error) {
	if len(e.Args) == 0 {
		return nil, fmt.Errorf("missing commands: %w", errUsage)
	}
	cmds, err := core.ParseCommands(strings.Join(e.Args, ""))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, errUsage)
	}
	if _, ok := a.store.Selected(); !ok {
		return "no rover selected\n", nil
	}

	out, err := a.store.SendCommands(eventContext(e), cmds)
	if err != nil {
		return nil, err
	}
	r := out.Rover
	if out.Kind == gateway.ObstacleStopped {
		// the warning notification already carries the server message
		return fmt.Sprintf("rover %d stopped at (%d,%d) facing %s\n", r.ID, r.X, r.Y, r.Direction), nil
	}
	return fmt.Sprintf("rover %d now at (%d,%d) facing %s\n", r.ID, r.X, r.Y, r.Direction), nil
}

func (a *app) handleListObstacles(dispatcher.Event) (any, error) {
	return renderObstacles(a.store.Snapshot()), nil
}

func (a *app) handleAddObstacle(e dispatcher.Event) (any, error) {
	var (
		o   core.Obstacle
		err error
	)
	switch len(e.Args) {
	case 0:
		o, err = a.store.AddRandomObstacle(eventContext(e))
	case 2:
		x, xErr := intArg(e.Args, 0, "x")
		y, yErr := intArg(e.Args, 1, "y")
		if err := errors.Join(xErr, yErr); err != nil {
			return nil, err
		}
		o, err = a.store.AddObstacle(eventContext(e), x, y)
	default:
		return nil, fmt.Errorf("expected no coordinates or both x and y: %w", errUsage)
	}
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("obstacle %d at (%d,%d)\n", o.ID, o.X, o.Y), nil
}

func (a *app) handleDeleteObstacle(e dispatcher.Event) (any, error) {
	id, err := intArg(e.Args, 0, "obstacle id")
	if err != nil {
		return nil, err
	}
	if err := a.store.DeleteObstacle(eventContext(e), id); err != nil {
		return nil, err
	}
	return fmt.Sprintf("obstacle %d deleted\n", id), nil
}

func (a *app) handleReload(e dispatcher.Event) (any, error) {
	if err := a.store.Load(eventContext(e)); err != nil {
		return nil, err
	}
	return renderRovers(a.store.Snapshot()), nil
}

func (a *app) handleStatus(dispatcher.Event) (any, error) {
	var b strings.Builder
	st := a.monitor.Status()
	fmt.Fprintf(&b, "api:      %s (%s)", a.session.APIBaseURL, st)
	if st.LastError != "" {
		fmt.Fprintf(&b, ", last error: %s", st.LastError)
	}
	b.WriteString("\n")

	stats := a.workers.Stats()
	fmt.Fprintf(&b, "journal:  %d events, %d snapshots, %d failures\n", stats.Events, stats.Snapshots, stats.Failures)
	fmt.Fprintf(&b, "session:  %s\n", a.session.SessionID)

	snap := a.store.Snapshot()
	fmt.Fprintf(&b, "fleet:    %d rovers, %d obstacles", len(snap.Rovers), len(snap.Obstacles))
	if r, ok := a.store.Selected(); ok {
		fmt.Fprintf(&b, ", rover %d selected", r.ID)
	}
	b.WriteString("\n")
	return b.String(), nil
}

func renderRovers(s core.FleetSnapshot) string {
	if len(s.Rovers) == 0 {
		return "no rovers\n"
	}
	var b strings.Builder
	for _, r := range s.Rovers {
		mark := " "
		if r.ID == s.SelectedRoverID {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s rover %-4d (%d,%d) %s %s\n", mark, r.ID, r.X, r.Y, r.Direction, r.Color)
	}
	return b.String()
}

func renderObstacles(s core.FleetSnapshot) string {
	if len(s.Obstacles) == 0 {
		return "no obstacles\n"
	}
	var b strings.Builder
	for _, o := range s.Obstacles {
		fmt.Fprintf(&b, "  obstacle %-4d (%d,%d)\n", o.ID, o.X, o.Y)
	}
	return b.String()
}
