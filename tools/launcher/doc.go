// Package launcher starts desktop applications on the host.
//
// A Launcher maps an application to the platform specific command line,
// a Runner starts the command and returns a Task that can be awaited
// for the launch outcome.
package launcher
