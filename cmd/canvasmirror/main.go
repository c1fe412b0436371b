// Package main provides the entry point for the canvasmirror CLI.
//
// canvasmirror mirrors the courses of a Canvas LMS account into a local
// directory tree. Repeated runs only download what changed.
//
// Usage:
//
//	canvasmirror sync -t <term-id> -d <destination>
//	canvasmirror sync -c <course-code> --dry-run
//	canvasmirror courses
//	canvasmirror history [run-id]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
