// Package async provides utilities for parallel task execution with
// per-task error collection.
//
// [RunAll] executes named operations concurrently and reports every
// failure by name, so one slow or failing task never hides the outcome of
// the others. It is used to warm readiness gates for all subsystems a fleet
// pass needs before composition starts.
package async
