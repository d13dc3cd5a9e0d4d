// Command handscope detects poker hand boundaries in broadcast video.
//
// Subcommands analyse a video file, browse stored runs and their hands,
// render annotated preview frames, serve the HTTP API and manage the
// configuration file.
package main
