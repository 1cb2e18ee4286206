// Package control adapts the IDE control channel.
//
// The IDE owns the authoritative notion of the running project. Each time
// the GUI control socket (re)connects, the IDE sends a connection frame
// carrying the project name. Channel caches that name and re-emits the frame
// as a "new-connection" event on its Target, where the GUI handler listens.
//
// Target mirrors a DOM event target: listeners are identified by pointer
// and registering the same listener twice is a no-op. It also carries a
// one-shot resolve slot that a pending project resolution may occupy.
package control
