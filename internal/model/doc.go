// Package model defines the data structures shared by the canvasmirror
// packages.
//
// This package contains the following main types:
//   - RemoteFile: a downloadable Canvas file and its resolved local path
//   - Course, User, Folder, Page, Assignment, Discussion, Module, Syllabus:
//     the Canvas resources walked during discovery
//   - Result and Object: tagged unions over the response shapes Canvas uses
//   - Stats: per-category discovery counters
//   - SyncReport: the outcome of one run, consumed by report writers and
//     the history database
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, mirror, pipeline and report packages all need
// these types, so centralizing them prevents import cycles.
package model
