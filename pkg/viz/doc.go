// Package viz hosts the mounted graphs of both roles.
//
// A [Host] owns, per role, the set of sub-graph [Instance]s produced by the
// latest graph fetch and which one of them is visible. Every mutation of a
// role's model (mount, click, replay step, resize) happens under the host
// mutex, one event at a time, and subscribers are notified after the lock is
// released.
//
// # Lifecycle
//
//	host := viz.NewHost(viz.Options{})
//	err := host.Mount(ctx, replay.RoleCode, built) // replaces any previous set
//	frame, err := host.Snapshot(replay.RoleCode)
//	host.Unmount(replay.RoleCode)
//
// Mounting subscribes the role to the process-wide [ResizeService];
// unmounting unsubscribes it.
//
// # Interaction
//
// [Host.Click] folds or unfolds a tree node and re-runs the layout with
// animation. [Host.ApplyReplay] recolors every mounted instance of both roles
// and, for roles with follow enabled, eases the camera to the active node.
package viz
