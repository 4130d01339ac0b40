// Package storage is the document store behind the bot and the admin API.
//
// It holds Users, Settings, MenuButtons, Channels and WelcomeMessages.
// Three drivers share one contract:
//   - "sqlite": embedded database file (modernc.org/sqlite, no cgo)
//   - "postgres": server database through pgx
//   - "mongo": MongoDB, with the collection layout the admin dashboard
//     already reads (users, settings, mainmenubuttons, channels,
//     welcomemessages)
package storage
