// Package main hosts the Courier CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC
// calls against the background daemon. When the daemon socket is
// unreachable the queue and add commands fall back to direct store access
// so an offline host stays inspectable. Configuration resolution and
// socket discovery are centralized in commandContext so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags
// here.
package main
