// Package process provides a runtime implementation that launches local child
// processes.
//
// On unix every child is placed in its own process group and termination
// requests are delivered to the whole group, so package-manager wrappers such as
// "npm run dev" pass the signal on to the server they spawned. On Windows the
// interrupt reaches only the direct child; grandchildren may remain running and
// must be cleaned up by the caller.
package process
