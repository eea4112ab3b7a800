package launcher

import (
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnsupportedPlatform is returned by a Launcher for a platform without known commands
	ErrUnsupportedPlatform = errors.New("unsupported operating system")
	// ErrLaunchFailed is matched by errors of applications that failed to start
	ErrLaunchFailed = errors.New("failed to launch application")
)

// UnsupportedOSMessage is the tool output when the platform has no command for the application
const UnsupportedOSMessage = "Unsupported operating system"

// App is an application that can be launched
type App string

const (
	// AppCalculator is the platform calculator
	AppCalculator App = "calculator"
	// AppBrowser is Google Chrome, started with URL argument
	AppBrowser App = "browser"
)

// Command is the command line to start
type Command struct {
	Name string
	Args []string
}

// String returns the command line
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if strings.ContainsAny(a, " \t") {
			a = `"` + a + `"`
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Launcher provides commands to start applications on a platform
type Launcher interface {
	// Platform returns the GOOS value of the platform
	Platform() string
	// Command returns the command to start the application.
	// For AppBrowser the first argument is the URL to open.
	Command(app App, args ...string) (Command, error)
}

// ForPlatform returns the Launcher for the GOOS value
func ForPlatform(goos string) Launcher {
	switch strings.ToLower(goos) {
	case "windows":
		return Windows{}
	case "darwin":
		return Darwin{}
	case "linux":
		return Linux{}
	default:
		return Unsupported{GOOS: goos}
	}
}

// Default returns the Launcher for the host platform
func Default() Launcher {
	return ForPlatform(runtime.GOOS)
}

// Windows starts applications with the shell `start` command
type Windows struct{}

func (Windows) Platform() string { return "windows" }

func (Windows) Command(app App, args ...string) (Command, error) {
	switch app {
	case AppCalculator:
		return Command{Name: "cmd", Args: []string{"/c", "start", "calc.exe"}}, nil
	case AppBrowser:
		u, err := urlArg(app, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Name: "cmd", Args: []string{"/c", "start", "chrome", u}}, nil
	}
	return Command{}, unknownApp(app)
}

// Darwin starts applications with `open -a`
type Darwin struct{}

func (Darwin) Platform() string { return "darwin" }

func (Darwin) Command(app App, args ...string) (Command, error) {
	switch app {
	case AppCalculator:
		return Command{Name: "open", Args: []string{"-a", "Calculator"}}, nil
	case AppBrowser:
		u, err := urlArg(app, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Name: "open", Args: []string{"-a", "Google Chrome", u}}, nil
	}
	return Command{}, unknownApp(app)
}

// Linux starts the GNOME calculator and google-chrome binaries
type Linux struct{}

func (Linux) Platform() string { return "linux" }

func (Linux) Command(app App, args ...string) (Command, error) {
	switch app {
	case AppCalculator:
		return Command{Name: "gnome-calculator"}, nil
	case AppBrowser:
		u, err := urlArg(app, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Name: "google-chrome", Args: []string{u}}, nil
	}
	return Command{}, unknownApp(app)
}

// Unsupported is the Launcher for any other platform,
// it never returns a command.
type Unsupported struct {
	GOOS string
}

func (u Unsupported) Platform() string { return u.GOOS }

func (u Unsupported) Command(app App, _ ...string) (Command, error) {
	return Command{}, errors.Wrapf(ErrUnsupportedPlatform, "%s on %q", app, u.GOOS)
}

func urlArg(app App, args []string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return "", errors.Newf("%s: URL is required", app)
	}
	return args[0], nil
}

func unknownApp(app App) error {
	return errors.Newf("unknown application: %q", app)
}
