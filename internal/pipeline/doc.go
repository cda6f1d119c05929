// Package pipeline turns a project configuration into an ordered list of
// build steps and executes them against a container runtime.
//
// Two variants exist. The two-stage pipeline builds a builder image from
// build/Dockerfile-<mode>, lets it populate deploy/<name> through a bind
// mount, then builds the deployable image from deploy/. The single-stage
// pipeline builds <name>:latest directly from Dockerfile-<mode> at the
// project root. Both may finish by running the final image.
//
// Execution stops at the first failing step; nothing is retried or rolled back.
package pipeline
