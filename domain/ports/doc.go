// Package ports defines the interfaces on both sides of the plugin boundary.
// Plugins see the host only through HostABI; the host sees plugin runtimes
// only through Driver and Module.
package ports
