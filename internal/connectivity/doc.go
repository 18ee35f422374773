// Package connectivity decides whether the library server is reachable.
//
// Link state alone only proves the host has a network interface up, not that
// the library answers. The monitor therefore combines three signals: the host
// link state as a startup hint, udev netlink events for immediate reaction to
// interface changes, and an active reachability probe that settles every
// disagreement. Interface-down events are trusted directly; interface-up
// events and timer ticks both go through the probe before the monitor reports
// online. Subscribers are notified only when the resulting boolean flips.
package connectivity
