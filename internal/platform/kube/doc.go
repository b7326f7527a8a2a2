// Package kube wraps client-go for applying managed objects with
// server-side apply and for reading subsystem state.
package kube
