// Package cmd contains the command line interface of lrdb.
//
// The CLI is organized into command groups: serve (run a server node),
// db (local database operations), query (run and benchmark query
// templates), sync (replicate from a source), and user (manage the user
// registry). Configuration follows the flags-plus-environment pattern:
// every flag can also be set via an LRDB_<FLAG> environment variable or
// a .env file.
package cmd
